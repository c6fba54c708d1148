// Package audio holds synthesized speech as raw PCM and plays it back.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Format describes interleaved little-endian PCM.
type Format struct {
	SampleRate  int // frames per second
	Channels    int
	SampleWidth int // bytes per sample
}

func (f Format) frameSize() int { return f.Channels * f.SampleWidth }

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %d-bit", f.SampleRate, f.Channels, f.SampleWidth*8)
}

// Valid reports whether f can describe audio.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && f.SampleWidth > 0
}

// Stereo16 is signed 16-bit stereo PCM, which is what DecodeMP3 produces.
func Stereo16(rate int) Format { return Format{SampleRate: rate, Channels: 2, SampleWidth: 2} }

// Mono16 is signed 16-bit mono PCM.
func Mono16(rate int) Format { return Format{SampleRate: rate, Channels: 1, SampleWidth: 2} }

// Unit is a span of decoded audio. The zero value is an empty buffer that
// adopts the format of the first unit appended to it.
type Unit struct {
	Format Format
	Data   []byte
}

// New wraps PCM data. Trailing bytes that do not fill a whole frame are
// dropped.
func New(format Format, data []byte) (Unit, error) {
	if !format.Valid() {
		return Unit{}, fmt.Errorf("invalid audio format %+v", format)
	}
	n := len(data) - len(data)%format.frameSize()
	return Unit{Format: format, Data: data[:n]}, nil
}

// Silence returns d worth of zero samples.
func Silence(format Format, d time.Duration) Unit {
	frames := int(d * time.Duration(format.SampleRate) / time.Second)
	return Unit{Format: format, Data: make([]byte, frames*format.frameSize())}
}

// Empty reports whether the unit holds no samples.
func (u Unit) Empty() bool { return len(u.Data) == 0 }

// Frames is the number of sample frames.
func (u Unit) Frames() int {
	if !u.Format.Valid() {
		return 0
	}
	return len(u.Data) / u.Format.frameSize()
}

// Duration is the playing time of the unit.
func (u Unit) Duration() time.Duration {
	if !u.Format.Valid() {
		return 0
	}
	return time.Duration(u.Frames()) * time.Second / time.Duration(u.Format.SampleRate)
}

// Append adds o to the end of u. Both units must share a format unless u is
// still empty.
func (u *Unit) Append(o Unit) error {
	if o.Empty() {
		return nil
	}
	if u.Empty() {
		u.Format = o.Format
		u.Data = append(u.Data[:0], o.Data...)
		return nil
	}
	if u.Format != o.Format {
		return fmt.Errorf("cannot join audio of different formats (%s and %s)", u.Format, o.Format)
	}
	u.Data = append(u.Data, o.Data...)
	return nil
}

// Reset empties the unit while keeping its buffer for reuse.
func (u *Unit) Reset() {
	u.Data = u.Data[:0]
}

// Reader returns a reader over the raw samples.
func (u Unit) Reader() io.Reader { return bytes.NewReader(u.Data) }

// DecodeMP3 decodes an MP3 stream into 16-bit stereo PCM.
func DecodeMP3(r io.Reader) (Unit, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return Unit{}, fmt.Errorf("decoding mp3: %w", err)
	}
	data, err := io.ReadAll(dec)
	if err != nil {
		return Unit{}, fmt.Errorf("decoding mp3: %w", err)
	}
	return New(Stereo16(dec.SampleRate()), data)
}
