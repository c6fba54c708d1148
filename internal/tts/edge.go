package tts

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wujunwei928/edge-tts-go/edge_tts"
	"golang.org/x/time/rate"

	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/config"
	"github.com/apresai/narrator/internal/retry"
)

const edgeDefaultVoice = "cs-CZ-AntoninNeural"

// EdgeSynthesizer uses the free Microsoft Edge read-aloud service. It needs
// no credentials, so requests are paced to stay clear of throttling.
type EdgeSynthesizer struct {
	voice   string
	rate    string
	limiter *rate.Limiter
}

func NewEdgeSynthesizer(s config.Speech) *EdgeSynthesizer {
	voice := s.OnlineVoice
	if voice == "" {
		voice = edgeDefaultVoice
	}
	return &EdgeSynthesizer{
		voice:   voice,
		rate:    edgeRate(s.Rate),
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

func (p *EdgeSynthesizer) Name() string { return "online" }

func (p *EdgeSynthesizer) Synthesize(ctx context.Context, text string) (audio.Unit, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return audio.Unit{}, err
	}

	communicate, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(p.voice), edge_tts.SetRate(p.rate))
	if err != nil {
		return audio.Unit{}, fmt.Errorf("edge request: %w", err)
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := communicate.Stream()
		done <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		return audio.Unit{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return audio.Unit{}, &retry.RetryableError{Body: fmt.Sprintf("edge synthesis: %v", r.err)}
		}
		if len(r.data) == 0 {
			return audio.Unit{}, &retry.RetryableError{Body: "edge synthesis: no audio returned"}
		}
		return decodeMP3Bytes(r.data)
	}
}

// edgeRate converts a speaking rate multiplier into the service's relative
// percentage, e.g. 1.25 -> "+25%".
func edgeRate(rate float64) string {
	if rate <= 0 {
		return "+0%"
	}
	return fmt.Sprintf("%+d%%", int(math.Round((rate-1)*100)))
}

func (p *EdgeSynthesizer) Close() error { return nil }

func edgeAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "cs-CZ-AntoninNeural", Name: "Antonin", Gender: "male", Description: "Czech"},
		{ID: "cs-CZ-VlastaNeural", Name: "Vlasta", Gender: "female", Description: "Czech"},
		{ID: "en-US-GuyNeural", Name: "Guy", Gender: "male", Description: "English (US)"},
		{ID: "en-US-JennyNeural", Name: "Jenny", Gender: "female", Description: "English (US)"},
		{ID: "en-GB-RyanNeural", Name: "Ryan", Gender: "male", Description: "English (UK)"},
		{ID: "en-GB-SoniaNeural", Name: "Sonia", Gender: "female", Description: "English (UK)"},
		{ID: "de-DE-ConradNeural", Name: "Conrad", Gender: "male", Description: "German"},
		{ID: "sk-SK-LukasNeural", Name: "Lukas", Gender: "male", Description: "Slovak"},
	}
}
