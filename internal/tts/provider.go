// Package tts turns text chunks into audio through interchangeable speech
// engines.
package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/config"
	"github.com/apresai/narrator/internal/retry"
)

// Engine names a speech engine.
type Engine string

const (
	EngineOffline    Engine = "OFFLINE"
	EngineOnline     Engine = "ONLINE"
	EngineGoogle     Engine = "G_CLOUD"
	EnginePolly      Engine = "POLLY"
	EngineElevenLabs Engine = "ELEVENLABS"
	EngineGemini     Engine = "GEMINI"
	EnginePiper      Engine = "PIPER"
)

// Engines lists every engine in display order.
var Engines = []Engine{EngineOffline, EngineOnline, EngineGoogle, EnginePolly, EngineElevenLabs, EngineGemini, EnginePiper}

// ParseEngine accepts engine names case-insensitively. COQUI is kept as an
// alias for the local neural engine.
func ParseEngine(s string) (Engine, error) {
	e := Engine(strings.ToUpper(strings.TrimSpace(s)))
	if e == "COQUI" {
		return EnginePiper, nil
	}
	for _, known := range Engines {
		if e == known {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown TTS engine %q", s)
}

// Synthesizer converts one chunk of text into audio.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (audio.Unit, error)
	Close() error
}

// Options carries everything an engine may need.
type Options struct {
	Speech config.Speech
	Keys   config.Keys
	Retry  retry.Policy
	Logger *slog.Logger
	// HTTPClient is used by the HTTP engines; a client with a generous
	// timeout is created when nil.
	HTTPClient *http.Client
}

// New creates the synthesizer for engine. Transient failures are retried
// according to opts.Retry.
func New(ctx context.Context, engine Engine, opts Options) (Synthesizer, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 300 * time.Second}
	}

	var (
		s   Synthesizer
		err error
	)
	switch engine {
	case EngineOffline:
		s = NewOfflineSynthesizer(opts.Speech)
	case EngineOnline:
		s = NewEdgeSynthesizer(opts.Speech)
	case EngineGoogle:
		s, err = NewGoogleSynthesizer(ctx, opts.Speech)
	case EnginePolly:
		s, err = NewPollySynthesizer(ctx, opts.Speech)
	case EngineElevenLabs:
		s, err = NewElevenLabsSynthesizer(opts.Speech, opts.Keys.ElevenLabs, opts.HTTPClient)
	case EngineGemini:
		s, err = NewGeminiSynthesizer(opts.Speech, opts.Keys.Gemini, opts.HTTPClient)
	case EnginePiper:
		s, err = NewPiperSynthesizer(opts.Speech)
	default:
		return nil, fmt.Errorf("unknown TTS engine %q", engine)
	}
	if err != nil {
		return nil, err
	}

	policy := opts.Retry
	policy.Logger = opts.Logger
	return &retrying{Synthesizer: s, policy: policy, logger: opts.Logger}, nil
}

// retrying retries transient engine failures and logs each synthesis.
type retrying struct {
	Synthesizer
	policy retry.Policy
	logger *slog.Logger
}

func (r *retrying) Synthesize(ctx context.Context, text string) (audio.Unit, error) {
	start := time.Now()
	var u audio.Unit
	err := retry.Do(ctx, r.policy, r.Name()+" synthesis", func(ctx context.Context) error {
		var err error
		u, err = r.Synthesizer.Synthesize(ctx, text)
		return err
	})
	if err != nil {
		return audio.Unit{}, err
	}
	r.logger.Debug("synthesized chunk",
		"engine", r.Name(),
		"chars", len(text),
		"audio", u.Duration().Round(time.Millisecond),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return u, nil
}

// httpStatusError classifies an HTTP error response: rate limiting and
// server errors are retryable, everything else is permanent.
func httpStatusError(provider string, status int, body []byte, retryAfter string) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		re := &retry.RetryableError{StatusCode: status, Body: string(body)}
		if d, err := time.ParseDuration(strings.TrimSpace(retryAfter) + "s"); err == nil && d > 0 {
			re.RetryAfter = d
		}
		return re
	}
	return fmt.Errorf("%s API error (status %d): %s", provider, status, string(body))
}

func decodeMP3Bytes(data []byte) (audio.Unit, error) {
	if len(data) == 0 {
		return audio.Unit{}, fmt.Errorf("engine returned no audio")
	}
	return audio.DecodeMP3(bytes.NewReader(data))
}

// VoiceInfo describes an available voice for display.
type VoiceInfo struct {
	ID          string
	Name        string
	Gender      string
	Description string
}

// AvailableVoices returns the built-in voice catalog for engine. The
// OFFLINE engine depends on the installed system voices; use
// ListOfflineVoices for it.
func AvailableVoices(engine Engine) ([]VoiceInfo, error) {
	switch engine {
	case EngineOnline:
		return edgeAvailableVoices(), nil
	case EngineGoogle:
		return googleAvailableVoices(), nil
	case EnginePolly:
		return pollyAvailableVoices(), nil
	case EngineElevenLabs:
		return elevenLabsAvailableVoices(), nil
	case EngineGemini:
		return geminiAvailableVoices(), nil
	case EnginePiper:
		return nil, fmt.Errorf("PIPER voices are defined by the model file (see PIPER_MODEL)")
	default:
		return nil, fmt.Errorf("no voice catalog for engine %q", engine)
	}
}
