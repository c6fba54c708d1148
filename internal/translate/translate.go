// Package translate translates text chunks through interchangeable LLM and
// machine-translation engines.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/apresai/narrator/internal/config"
	"github.com/apresai/narrator/internal/retry"
)

// Engine names a translation engine.
type Engine string

const (
	EngineOpenAI Engine = "OPENAI"
	EngineGemini Engine = "GEMINI"
	EngineDeepL  Engine = "DEEPL"
	EngineClaude Engine = "CLAUDE"
	EngineNova   Engine = "NOVA"
)

// Engines lists every engine in display order.
var Engines = []Engine{EngineOpenAI, EngineGemini, EngineDeepL, EngineClaude, EngineNova}

// ParseEngine accepts engine names case-insensitively.
func ParseEngine(s string) (Engine, error) {
	e := Engine(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Engines {
		if e == known {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown translation engine %q", s)
}

// Translator translates one chunk of text.
type Translator interface {
	Name() string
	Translate(ctx context.Context, text string) (string, error)
}

// Options carries everything an engine may need.
type Options struct {
	Translate config.Translate
	Keys      config.Keys
	Retry     retry.Policy
	Logger    *slog.Logger
	// HTTPClient is used by the HTTP engines; a default client is created
	// when nil.
	HTTPClient *http.Client
}

// New creates the translator for engine. Every failure is retried with
// exponential backoff according to opts.Retry before it is reported.
func New(ctx context.Context, engine Engine, opts Options) (Translator, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}

	var (
		t   Translator
		err error
	)
	switch engine {
	case EngineOpenAI:
		t, err = NewOpenAITranslator(opts.Translate, opts.Keys.OpenAI, opts.HTTPClient)
	case EngineGemini:
		t, err = NewGeminiTranslator(opts.Translate, opts.Keys.Gemini, opts.HTTPClient)
	case EngineDeepL:
		t, err = NewDeepLTranslator(opts.Translate, opts.Keys.DeepL, opts.HTTPClient)
		if err == nil && opts.Translate.Prompt != config.DefaultTranslationPrompt {
			opts.Logger.Warn("DEEPL ignores TRANSLATION_PROMPT")
		}
	case EngineClaude:
		t, err = NewClaudeTranslator(opts.Translate, opts.Keys.Anthropic)
	case EngineNova:
		t, err = NewNovaTranslator(ctx, opts.Translate)
	default:
		return nil, fmt.Errorf("unknown translation engine %q", engine)
	}
	if err != nil {
		return nil, err
	}

	policy := opts.Retry
	policy.Retryable = retry.Any
	policy.Logger = opts.Logger
	return &retrying{Translator: t, policy: policy}, nil
}

type retrying struct {
	Translator
	policy retry.Policy
}

func (r *retrying) Translate(ctx context.Context, text string) (string, error) {
	var out string
	err := retry.Do(ctx, r.policy, r.Name()+" translation", func(ctx context.Context) error {
		var err error
		out, err = r.Translator.Translate(ctx, text)
		if err == nil && strings.TrimSpace(out) == "" {
			err = fmt.Errorf("empty response from %s", r.Name())
		}
		return err
	})
	return out, err
}

// systemPrompt appends the language pair and output instructions to the
// configured prompt.
func systemPrompt(t config.Translate) string {
	prompt := strings.TrimSpace(t.Prompt)
	if prompt == "" {
		prompt = config.DefaultTranslationPrompt
	}
	return fmt.Sprintf("%s\nTranslate from %s to %s. Reply with the translated text only, without notes or quotation marks.",
		prompt, languageName(t.Source), languageName(t.Target))
}

var languageNames = map[string]string{
	"cs": "Czech", "sk": "Slovak", "en": "English", "de": "German", "fr": "French",
	"es": "Spanish", "it": "Italian", "pl": "Polish", "pt": "Portuguese", "ru": "Russian",
	"uk": "Ukrainian", "ja": "Japanese", "zh": "Chinese", "nl": "Dutch", "hu": "Hungarian",
}

func languageName(code string) string {
	code = strings.TrimSpace(code)
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}
