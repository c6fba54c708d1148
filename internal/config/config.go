// Package config resolves narrator settings from flags, env files and
// defaults into an immutable Config.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/apresai/narrator/internal/segment"
)

// Output types.
const (
	OutputAudio = "AUDIO"
	OutputFile  = "FILE"
)

// Config is built once at startup and passed by value. Resuming a job
// produces a new Config through Apply instead of changing this one.
type Config struct {
	Scope Scope
	Input string

	Chunking  Chunking
	Output    Output
	Speech    Speech
	Translate Translate
	Keys      Keys
	Retry     Retry
	Upload    Upload
}

type Chunking struct {
	Size        int
	ByParagraph bool
}

// Mode returns the segmentation mode for these settings.
func (c Chunking) Mode() segment.Mode {
	if c.ByParagraph {
		return segment.ModeParagraph
	}
	return segment.ModeSentence
}

type Output struct {
	Type        string
	MaxDuration time.Duration
	Bitrate     string
	Clean       bool
}

type Speech struct {
	Engine            string
	Rate              float64
	Language          string
	OfflineVoice      string
	OnlineVoice       string
	GoogleCredentials string
	GoogleVoice       string
	PollyVoice        string
	ElevenLabsVoice   string
	GeminiVoice       string
	PiperModel        string
	PiperSpeaker      int
	PiperSampleRate   int
}

type Translate struct {
	Engine      string
	Source      string
	Target      string
	Prompt      string
	OpenAIModel string
	GeminiModel string
	ClaudeModel string
	NovaModel   string
}

// Keys holds API credentials. None of them are persisted.
type Keys struct {
	OpenAI     string
	Gemini     string
	DeepL      string
	Anthropic  string
	ElevenLabs string
}

type Retry struct {
	MaxAttempts int
	Delay       time.Duration
}

type Upload struct {
	Bucket string
	Prefix string
}

// Defaults returns the configuration with every setting at its default.
func Defaults(scope Scope) Config {
	cfg := Config{Scope: scope}
	for _, d := range Definitions(scope) {
		// Defaults are typed to match their setters.
		_ = d.set(&cfg, d.Default)
	}
	return cfg
}

// Load builds a Config for scope from v, which should have the command's
// flags bound and env lookup enabled (see NewViper). Unset values fall back
// to the definition defaults.
func Load(v *viper.Viper, scope Scope) (Config, error) {
	cfg := Defaults(scope)
	var errs []error
	for _, d := range Definitions(scope) {
		raw := v.Get(d.Flag())
		if raw == nil {
			continue
		}
		if err := d.set(&cfg, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid value %v: %w", d.Key, raw, err))
		}
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Speech.Engine = strings.ToUpper(strings.TrimSpace(c.Speech.Engine))
	if c.Speech.Engine == "COQUI" {
		c.Speech.Engine = "PIPER"
	}
	c.Translate.Engine = strings.ToUpper(strings.TrimSpace(c.Translate.Engine))
	c.Output.Type = strings.ToUpper(strings.TrimSpace(c.Output.Type))
}

// Validate checks the values that the pipeline relies on.
func (c Config) Validate() error {
	var errs []error
	if c.Chunking.Size < 1 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.Chunking.Size))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, fmt.Errorf("RETRY_DELAY must not be negative"))
	}
	if c.Scope&ScopeSpeech != 0 {
		if c.Output.MaxDuration <= 0 {
			errs = append(errs, fmt.Errorf("MAX_FILE_DURATION must be positive"))
		}
		if c.Speech.Rate <= 0 {
			errs = append(errs, fmt.Errorf("SPEAKING_RATE must be positive, got %g", c.Speech.Rate))
		}
		errs = append(errs, checkChoice(ScopeSpeech, "TTS_ENGINE", c.Speech.Engine))
		errs = append(errs, checkChoice(ScopeSpeech, "OUTPUT_TYPE", c.Output.Type))
	}
	if c.Scope&ScopeTranslate != 0 {
		errs = append(errs, checkChoice(ScopeTranslate, "TRANSLATION_ENGINE", c.Translate.Engine))
		if strings.TrimSpace(c.Translate.Target) == "" {
			errs = append(errs, fmt.Errorf("TARGET_LANGUAGE is required"))
		}
	}
	return errors.Join(errs...)
}

func checkChoice(scope Scope, key, value string) error {
	d, ok := Lookup(scope, key)
	if !ok || slices.Contains(d.Choices, value) {
		return nil
	}
	return fmt.Errorf("%s %q is not one of %s", key, value, strings.Join(d.Choices, ", "))
}

// Params returns the job-defining settings keyed by their env names. These
// are what a progress record stores.
func (c Config) Params() map[string]any {
	params := make(map[string]any)
	for _, d := range Definitions(c.Scope) {
		if d.Job && !d.Secret {
			params[d.Key] = d.get(&c)
		}
	}
	return params
}

// Override records one setting replaced by a recorded value.
type Override struct {
	Key  string
	From any
	To   any
}

func (o Override) String() string {
	return fmt.Sprintf("%s: %v -> %v", o.Key, o.From, o.To)
}

// Apply returns a copy of c in which every job setting present in params
// takes the recorded value. Keys that c does not define are ignored. Values
// that cannot be converted keep the current setting and are reported in the
// returned error.
func (c Config) Apply(params map[string]any) (Config, []Override, error) {
	out := c
	var overrides []Override
	var errs []error
	for _, d := range Definitions(c.Scope) {
		if !d.Job || d.Secret {
			continue
		}
		recorded, ok := params[d.Key]
		if !ok {
			continue
		}
		before := d.get(&out)
		if err := d.set(&out, recorded); err != nil {
			errs = append(errs, fmt.Errorf("%s: recorded value %v: %w", d.Key, recorded, err))
			continue
		}
		after := d.get(&out)
		if fmt.Sprint(before) != fmt.Sprint(after) {
			overrides = append(overrides, Override{Key: d.Key, From: before, To: after})
		}
	}
	out.normalize()
	return out, overrides, errors.Join(errs...)
}
