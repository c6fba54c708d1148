//go:build nocgo

package audio

import (
	"context"
	"errors"
)

// Player is unavailable in nocgo builds; exporting to files still works.
type Player struct{}

func NewPlayer() *Player { return &Player{} }

func (p *Player) Play(ctx context.Context, u Unit) error {
	return errors.New("audio playback not available in nocgo build")
}
