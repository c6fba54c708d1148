package assembly

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apresai/narrator/internal/audio"
)

// Audio quality constants for consistent output across all FFmpeg operations.
const (
	DefaultBitrate = "192k"
	AudioCodec     = "libmp3lame"
)

// Binary is the ffmpeg executable, resolved through PATH.
var Binary = "ffmpeg"

// Available reports whether ffmpeg can be found.
func Available() error {
	if _, err := exec.LookPath(Binary); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH (install: brew install ffmpeg / apt install ffmpeg)")
	}
	return nil
}

func rawFormat(f audio.Format) (string, error) {
	switch f.SampleWidth {
	case 1:
		return "u8", nil
	case 2:
		return "s16le", nil
	case 4:
		return "f32le", nil
	default:
		return "", fmt.Errorf("unsupported sample width %d", f.SampleWidth)
	}
}

// MP3Writer encodes audio units to MP3 files.
type MP3Writer struct {
	Bitrate string
}

// NewMP3Writer returns a writer using bitrate, or DefaultBitrate when empty.
func NewMP3Writer(bitrate string) *MP3Writer {
	if bitrate == "" {
		bitrate = DefaultBitrate
	}
	return &MP3Writer{Bitrate: bitrate}
}

// WriteMP3 encodes u to path, replacing any existing file. The file only
// appears at path once encoding has fully succeeded.
func (w *MP3Writer) WriteMP3(ctx context.Context, u audio.Unit, path string) error {
	if u.Empty() {
		return fmt.Errorf("no audio to write to %s", path)
	}
	inFmt, err := rawFormat(u.Format)
	if err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".part")
	cmd := exec.CommandContext(ctx, Binary,
		"-hide_banner", "-loglevel", "error",
		"-f", inFmt,
		"-ar", strconv.Itoa(u.Format.SampleRate),
		"-ac", strconv.Itoa(u.Format.Channels),
		"-i", "pipe:0",
		"-c:a", AudioCodec,
		"-b:a", w.Bitrate,
		"-f", "mp3",
		"-y",
		tmp,
	)
	cmd.Stdin = u.Reader()
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg mp3 encoding failed: %w\n%s", err, stderr.String())
	}

	info, err := os.Stat(tmp)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(tmp)
		return fmt.Errorf("output file is empty")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("moving %s into place: %w", path, err)
	}
	return nil
}

// DecodeFile converts any audio file ffmpeg understands (wav, aiff, mp3...)
// into PCM of the given format.
func DecodeFile(ctx context.Context, input string, format audio.Format) (audio.Unit, error) {
	outFmt, err := rawFormat(format)
	if err != nil {
		return audio.Unit{}, err
	}
	cmd := exec.CommandContext(ctx, Binary,
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-f", outFmt,
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		"pipe:1",
	)
	var stdout bytes.Buffer
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return audio.Unit{}, fmt.Errorf("ffmpeg decoding %s failed: %w\n%s", filepath.Base(input), err, stderr.String())
	}
	return audio.New(format, stdout.Bytes())
}
