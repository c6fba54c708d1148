package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/config"
)

// PiperSynthesizer runs a local neural voice model with the piper CLI.
// Text goes in on stdin; raw 16-bit mono PCM comes back on stdout.
type PiperSynthesizer struct {
	binary     string
	model      string
	speaker    int
	rate       float64
	sampleRate int
}

func NewPiperSynthesizer(s config.Speech) (*PiperSynthesizer, error) {
	if s.PiperModel == "" {
		return nil, fmt.Errorf("PIPER_MODEL is required for the PIPER engine")
	}
	if _, err := os.Stat(s.PiperModel); err != nil {
		return nil, fmt.Errorf("piper model: %w", err)
	}
	sampleRate := s.PiperSampleRate
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	return &PiperSynthesizer{
		binary:     "piper",
		model:      s.PiperModel,
		speaker:    s.PiperSpeaker,
		rate:       s.Rate,
		sampleRate: sampleRate,
	}, nil
}

func (p *PiperSynthesizer) Name() string { return "piper" }

func (p *PiperSynthesizer) args() []string {
	args := []string{"--model", p.model, "--output-raw"}
	if p.speaker > 0 {
		args = append(args, "--speaker", strconv.Itoa(p.speaker))
	}
	if p.rate > 0 && p.rate != 1 {
		// length_scale is phoneme duration, the inverse of speaking rate.
		args = append(args, "--length-scale", strconv.FormatFloat(1/p.rate, 'f', 3, 64))
	}
	return args
}

func (p *PiperSynthesizer) Synthesize(ctx context.Context, text string) (audio.Unit, error) {
	cmd := exec.CommandContext(ctx, p.binary, p.args()...)
	cmd.Stdin = strings.NewReader(text)
	var stdout bytes.Buffer
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return audio.Unit{}, fmt.Errorf("piper failed: %w\n%s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return audio.Unit{}, fmt.Errorf("piper produced no audio")
	}
	return audio.New(audio.Mono16(p.sampleRate), stdout.Bytes())
}

func (p *PiperSynthesizer) Close() error { return nil }
