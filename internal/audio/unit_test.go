package audio

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		bytes  int
		want   time.Duration
	}{
		{"mono 16-bit one second", Mono16(24000), 48000, time.Second},
		{"stereo 16-bit half second", Stereo16(44100), 88200, 500 * time.Millisecond},
		{"empty", Mono16(22050), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := New(tt.format, make([]byte, tt.bytes))
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Duration())
		})
	}
	assert.Equal(t, time.Duration(0), Unit{}.Duration())
}

func TestNewDropsPartialFrames(t *testing.T) {
	u, err := New(Stereo16(8000), make([]byte, 10))
	require.NoError(t, err)
	assert.Len(t, u.Data, 8)
	assert.Equal(t, 2, u.Frames())

	_, err = New(Format{}, nil)
	assert.Error(t, err)
}

func TestSilence(t *testing.T) {
	u := Silence(Mono16(16000), 70*time.Second)
	assert.Equal(t, 70*time.Second, u.Duration())
}

func TestAppend(t *testing.T) {
	var buf Unit
	require.NoError(t, buf.Append(Silence(Mono16(8000), time.Second)))
	assert.Equal(t, Mono16(8000), buf.Format)
	require.NoError(t, buf.Append(Silence(Mono16(8000), 2*time.Second)))
	assert.Equal(t, 3*time.Second, buf.Duration())

	err := buf.Append(Silence(Stereo16(8000), time.Second))
	assert.Error(t, err)
	assert.Equal(t, 3*time.Second, buf.Duration(), "failed append leaves buffer unchanged")

	buf.Reset()
	assert.True(t, buf.Empty())
	require.NoError(t, buf.Append(Silence(Stereo16(8000), time.Second)), "empty buffer adopts new format")
	assert.Equal(t, Stereo16(8000), buf.Format)
}

func TestAppendCopiesData(t *testing.T) {
	src := Unit{Format: Mono16(8000), Data: []byte{1, 2, 3, 4}}
	var buf Unit
	require.NoError(t, buf.Append(src))
	src.Data[0] = 9
	assert.Equal(t, byte(1), buf.Data[0])
}

func TestDecodeMP3RejectsGarbage(t *testing.T) {
	_, err := DecodeMP3(bytes.NewReader([]byte("not an mp3")))
	assert.Error(t, err)
}
