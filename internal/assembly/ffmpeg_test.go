package assembly

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/narrator/internal/audio"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if err := Available(); err != nil {
		t.Skip(err)
	}
}

func TestWriteMP3RejectsEmptyUnit(t *testing.T) {
	err := NewMP3Writer("").WriteMP3(context.Background(), audio.Unit{}, filepath.Join(t.TempDir(), "01_x.mp3"))
	assert.Error(t, err)
}

func TestRawFormat(t *testing.T) {
	f, err := rawFormat(audio.Mono16(22050))
	require.NoError(t, err)
	assert.Equal(t, "s16le", f)

	_, err = rawFormat(audio.Format{SampleRate: 8000, Channels: 1, SampleWidth: 3})
	assert.Error(t, err)
}

func TestWriteMP3AndDecodeRoundTrip(t *testing.T) {
	requireFFmpeg(t)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "01_book.mp3")

	u := audio.Silence(audio.Mono16(24000), 2*time.Second)
	require.NoError(t, NewMP3Writer("").WriteMP3(ctx, u, out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	decoded, err := DecodeFile(ctx, out, audio.Mono16(24000))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, decoded.Duration().Seconds(), 0.2)
}
