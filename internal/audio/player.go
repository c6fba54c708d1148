//go:build !nocgo

package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process, so the player binds it to the format
// of the first unit it plays.
type Player struct {
	mu     sync.Mutex
	otoCtx *oto.Context
	format Format
}

// NewPlayer returns a player. The audio device is opened on first use.
func NewPlayer() *Player {
	return &Player{}
}

// Play blocks until u has finished playing or ctx is cancelled.
func (p *Player) Play(ctx context.Context, u Unit) error {
	if u.Empty() {
		return nil
	}
	if err := p.open(u.Format); err != nil {
		return err
	}

	player := p.otoCtx.NewPlayer(u.Reader())
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}

func (p *Player) open(f Format) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.otoCtx != nil {
		if f != p.format {
			return fmt.Errorf("audio device opened for %s, cannot play %s", p.format, f)
		}
		return nil
	}

	var sampleFormat oto.Format
	switch f.SampleWidth {
	case 1:
		sampleFormat = oto.FormatUnsignedInt8
	case 2:
		sampleFormat = oto.FormatSignedInt16LE
	case 4:
		sampleFormat = oto.FormatFloat32LE
	default:
		return fmt.Errorf("unsupported sample width %d", f.SampleWidth)
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       sampleFormat,
	})
	if err != nil {
		return fmt.Errorf("opening audio device: %w", err)
	}
	<-ready
	if otoCtx.Err() != nil {
		return errors.Join(errors.New("opening audio device"), otoCtx.Err())
	}

	p.otoCtx = otoCtx
	p.format = f
	return nil
}
