package config

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Scope selects which commands a setting applies to.
type Scope uint8

const (
	ScopeSpeech Scope = 1 << iota
	ScopeTranslate

	ScopeAll = ScopeSpeech | ScopeTranslate
)

// Definition describes one setting: its environment key, default, help text
// and how it maps onto Config.
type Definition struct {
	Key     string
	Default any
	Help    string
	Group   string
	Choices []string
	Scope   Scope
	// Secret values are never written to progress records or printed.
	Secret bool
	// Job marks settings that shape the produced output. They are recorded
	// with progress and restored when a job resumes.
	Job bool

	get func(*Config) any
	set func(*Config, any) error
}

// Flag returns the command-line flag name, derived from the key
// (CHUNK_SIZE -> chunk-size).
func (d Definition) Flag() string {
	return strings.ToLower(strings.ReplaceAll(d.Key, "_", "-"))
}

func (d Definition) withChoices(choices ...string) Definition {
	d.Choices = choices
	return d
}

func (d Definition) secret() Definition {
	d.Secret = true
	return d
}

func (d Definition) job() Definition {
	d.Job = true
	return d
}

func field[T any](p func(*Config) *T, conv func(any) (T, error)) (func(*Config) any, func(*Config, any) error) {
	get := func(c *Config) any { return *p(c) }
	set := func(c *Config, v any) error {
		t, err := conv(v)
		if err != nil {
			return err
		}
		*p(c) = t
		return nil
	}
	return get, set
}

func str(key string, def string, scope Scope, group, help string, p func(*Config) *string) Definition {
	get, set := field(p, cast.ToStringE)
	return Definition{Key: key, Default: def, Help: help, Group: group, Scope: scope, get: get, set: set}
}

func integer(key string, def int, scope Scope, group, help string, p func(*Config) *int) Definition {
	get, set := field(p, cast.ToIntE)
	return Definition{Key: key, Default: def, Help: help, Group: group, Scope: scope, get: get, set: set}
}

func float(key string, def float64, scope Scope, group, help string, p func(*Config) *float64) Definition {
	get, set := field(p, cast.ToFloat64E)
	return Definition{Key: key, Default: def, Help: help, Group: group, Scope: scope, get: get, set: set}
}

func boolean(key string, def bool, scope Scope, group, help string, p func(*Config) *bool) Definition {
	get, set := field(p, cast.ToBoolE)
	return Definition{Key: key, Default: def, Help: help, Group: group, Scope: scope, get: get, set: set}
}

// seconds stores a duration but exposes it as a number of seconds, the unit
// used on the command line, in env files and in progress records.
func seconds(key string, def float64, scope Scope, group, help string, p func(*Config) *time.Duration) Definition {
	get := func(c *Config) any { return p(c).Seconds() }
	set := func(c *Config, v any) error {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		*p(c) = time.Duration(f * float64(time.Second))
		return nil
	}
	return Definition{Key: key, Default: def, Help: help, Group: group, Scope: scope, get: get, set: set}
}

// Groups in the order they appear in generated env files.
const (
	GroupGeneral     = "General"
	GroupSpeech      = "Speech engine"
	GroupOffline     = "OFFLINE engine"
	GroupOnline      = "ONLINE engine"
	GroupGoogle      = "G_CLOUD engine"
	GroupPolly       = "POLLY engine"
	GroupElevenLabs  = "ELEVENLABS engine"
	GroupGemini      = "GEMINI engine"
	GroupPiper       = "PIPER engine"
	GroupTranslation = "Translation"
	GroupKeys        = "API keys"
	GroupRetry       = "Retries"
	GroupUpload      = "Upload"
)

var groupOrder = []string{
	GroupGeneral, GroupSpeech, GroupOffline, GroupOnline, GroupGoogle, GroupPolly,
	GroupElevenLabs, GroupGemini, GroupPiper, GroupTranslation, GroupKeys, GroupRetry, GroupUpload,
}

// DefaultTranslationPrompt is the system prompt given to LLM translators.
const DefaultTranslationPrompt = "You are a professional book translator. " +
	"Translate the following fantasy text accurately while preserving the style and tone."

var definitions = []Definition{
	integer("CHUNK_SIZE", 3500, ScopeSpeech, GroupGeneral,
		"Maximum characters per chunk sent to the speech engine.",
		func(c *Config) *int { return &c.Chunking.Size }).job(),
	integer("CHUNK_SIZE", 2000, ScopeTranslate, GroupGeneral,
		"Maximum characters per chunk sent to the translator.",
		func(c *Config) *int { return &c.Chunking.Size }).job(),
	boolean("CHUNK_BY_PARAGRAPH", false, ScopeAll, GroupGeneral,
		"Pack whole paragraphs into chunks instead of sentences.",
		func(c *Config) *bool { return &c.Chunking.ByParagraph }).job(),
	boolean("CLEAN_OUTPUT_DIRECTORY", false, ScopeAll, GroupGeneral,
		"Delete the job directory before starting. Discards saved progress.",
		func(c *Config) *bool { return &c.Output.Clean }),

	str("TTS_ENGINE", "ONLINE", ScopeSpeech, GroupSpeech,
		"Speech engine.",
		func(c *Config) *string { return &c.Speech.Engine }).
		withChoices("OFFLINE", "ONLINE", "G_CLOUD", "POLLY", "ELEVENLABS", "GEMINI", "PIPER").job(),
	str("OUTPUT_TYPE", "AUDIO", ScopeSpeech, GroupSpeech,
		"AUDIO reads aloud, FILE exports MP3 segments.",
		func(c *Config) *string { return &c.Output.Type }).withChoices("AUDIO", "FILE"),
	float("SPEAKING_RATE", 1.1, ScopeSpeech, GroupSpeech,
		"Speaking rate multiplier for engines that support it.",
		func(c *Config) *float64 { return &c.Speech.Rate }).job(),
	seconds("MAX_FILE_DURATION", 600, ScopeSpeech, GroupSpeech,
		"Maximum length of one exported MP3 segment, in seconds.",
		func(c *Config) *time.Duration { return &c.Output.MaxDuration }).job(),
	str("MP3_BITRATE", "192k", ScopeSpeech, GroupSpeech,
		"Bitrate of exported MP3 segments.",
		func(c *Config) *string { return &c.Output.Bitrate }).job(),
	str("LANGUAGE_CODE", "cs-CZ", ScopeSpeech, GroupSpeech,
		"BCP-47 language of the spoken text.",
		func(c *Config) *string { return &c.Speech.Language }).job(),

	str("OFFLINE_VOICE_ID", "", ScopeSpeech, GroupOffline,
		"Operating system voice. Set to HELP to list installed voices.",
		func(c *Config) *string { return &c.Speech.OfflineVoice }).job(),
	str("ONLINE_VOICE", "cs-CZ-AntoninNeural", ScopeSpeech, GroupOnline,
		"Edge neural voice name.",
		func(c *Config) *string { return &c.Speech.OnlineVoice }).job(),
	str("G_CLOUD_CREDENTIALS", "./google-key.json", ScopeSpeech, GroupGoogle,
		"Service account key file. Empty uses application default credentials.",
		func(c *Config) *string { return &c.Speech.GoogleCredentials }),
	str("WAVENET_VOICE", "cs-CZ-Standard-B", ScopeSpeech, GroupGoogle,
		"Google Cloud voice name.",
		func(c *Config) *string { return &c.Speech.GoogleVoice }).job(),
	str("POLLY_VOICE", "Joanna", ScopeSpeech, GroupPolly,
		"Amazon Polly voice ID.",
		func(c *Config) *string { return &c.Speech.PollyVoice }).job(),
	str("ELEVENLABS_VOICE", "21m00Tcm4TlvDq8ikWAM", ScopeSpeech, GroupElevenLabs,
		"ElevenLabs voice ID.",
		func(c *Config) *string { return &c.Speech.ElevenLabsVoice }).job(),
	str("GEMINI_TTS_VOICE", "Charon", ScopeSpeech, GroupGemini,
		"Gemini prebuilt voice name.",
		func(c *Config) *string { return &c.Speech.GeminiVoice }).job(),
	str("PIPER_MODEL", "", ScopeSpeech, GroupPiper,
		"Path to the piper .onnx voice model.",
		func(c *Config) *string { return &c.Speech.PiperModel }).job(),
	integer("PIPER_SPEAKER", 0, ScopeSpeech, GroupPiper,
		"Speaker ID for multi-speaker piper models.",
		func(c *Config) *int { return &c.Speech.PiperSpeaker }).job(),
	integer("PIPER_SAMPLE_RATE", 22050, ScopeSpeech, GroupPiper,
		"Sample rate of the piper model output.",
		func(c *Config) *int { return &c.Speech.PiperSampleRate }).job(),

	str("TRANSLATION_ENGINE", "OPENAI", ScopeTranslate, GroupTranslation,
		"Translation engine.",
		func(c *Config) *string { return &c.Translate.Engine }).
		withChoices("OPENAI", "GEMINI", "DEEPL", "CLAUDE", "NOVA").job(),
	str("SOURCE_LANGUAGE", "en", ScopeTranslate, GroupTranslation,
		"Language of the input text.",
		func(c *Config) *string { return &c.Translate.Source }).job(),
	str("TARGET_LANGUAGE", "cs", ScopeTranslate, GroupTranslation,
		"Language to translate into.",
		func(c *Config) *string { return &c.Translate.Target }).job(),
	str("TRANSLATION_PROMPT", DefaultTranslationPrompt, ScopeTranslate, GroupTranslation,
		"System prompt for LLM translators. Ignored by DEEPL.",
		func(c *Config) *string { return &c.Translate.Prompt }).job(),
	str("OPENAI_MODEL", "gpt-4o-mini", ScopeTranslate, GroupTranslation,
		"OpenAI chat model.",
		func(c *Config) *string { return &c.Translate.OpenAIModel }).job(),
	str("GEMINI_MODEL", "gemini-2.5-flash", ScopeTranslate, GroupTranslation,
		"Gemini model.",
		func(c *Config) *string { return &c.Translate.GeminiModel }).job(),
	str("CLAUDE_MODEL", "claude-sonnet-4-5", ScopeTranslate, GroupTranslation,
		"Anthropic model.",
		func(c *Config) *string { return &c.Translate.ClaudeModel }).job(),
	str("NOVA_MODEL", "us.amazon.nova-pro-v1:0", ScopeTranslate, GroupTranslation,
		"Bedrock Nova model ID.",
		func(c *Config) *string { return &c.Translate.NovaModel }).job(),

	str("OPENAI_API_KEY", "", ScopeTranslate, GroupKeys,
		"OpenAI API key.",
		func(c *Config) *string { return &c.Keys.OpenAI }).secret(),
	str("GEMINI_API_KEY", "", ScopeAll, GroupKeys,
		"Gemini API key.",
		func(c *Config) *string { return &c.Keys.Gemini }).secret(),
	str("DEEPL_API_KEY", "", ScopeTranslate, GroupKeys,
		"DeepL API key. Keys ending in :fx use the free endpoint.",
		func(c *Config) *string { return &c.Keys.DeepL }).secret(),
	str("ANTHROPIC_API_KEY", "", ScopeTranslate, GroupKeys,
		"Anthropic API key.",
		func(c *Config) *string { return &c.Keys.Anthropic }).secret(),
	str("ELEVENLABS_API_KEY", "", ScopeSpeech, GroupKeys,
		"ElevenLabs API key.",
		func(c *Config) *string { return &c.Keys.ElevenLabs }).secret(),

	integer("MAX_RETRIES", 3, ScopeAll, GroupRetry,
		"Attempts per chunk before an engine call is given up.",
		func(c *Config) *int { return &c.Retry.MaxAttempts }),
	seconds("RETRY_DELAY", 1.0, ScopeAll, GroupRetry,
		"Initial delay between attempts in seconds. Doubles after each failure.",
		func(c *Config) *time.Duration { return &c.Retry.Delay }),

	str("S3_BUCKET", "", ScopeAll, GroupUpload,
		"Upload finished segments and translations to this bucket. Empty disables uploads.",
		func(c *Config) *string { return &c.Upload.Bucket }),
	str("S3_PREFIX", "narrator/", ScopeAll, GroupUpload,
		"Key prefix for uploaded files.",
		func(c *Config) *string { return &c.Upload.Prefix }),
}

// Definitions returns the settings that apply to scope, in display order.
func Definitions(scope Scope) []Definition {
	var out []Definition
	for _, d := range definitions {
		if d.Scope&scope != 0 {
			out = append(out, d)
		}
	}
	return out
}

// Lookup returns the definition for key within scope.
func Lookup(scope Scope, key string) (Definition, bool) {
	for _, d := range Definitions(scope) {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}
