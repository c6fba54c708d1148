package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/config"
	"github.com/apresai/narrator/internal/retry"
)

func TestParseEngine(t *testing.T) {
	tests := []struct {
		in   string
		want Engine
		ok   bool
	}{
		{"online", EngineOnline, true},
		{" G_CLOUD ", EngineGoogle, true},
		{"coqui", EnginePiper, true},
		{"Polly", EnginePolly, true},
		{"pyttsx", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEngine(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOfflineCommand(t *testing.T) {
	name, args, out, err := offlineCommand("linux", "cs", 1.0, "/tmp/x/chunk.txt", "/tmp/x")
	require.NoError(t, err)
	assert.Equal(t, "espeak-ng", name)
	assert.Equal(t, []string{"-v", "cs", "-s", "175", "-f", "/tmp/x/chunk.txt", "-w", "/tmp/x/chunk.wav"}, args)
	assert.Equal(t, "/tmp/x/chunk.wav", out)

	name, args, out, err = offlineCommand("darwin", "", 2.0, "/tmp/x/chunk.txt", "/tmp/x")
	require.NoError(t, err)
	assert.Equal(t, "say", name)
	assert.Equal(t, []string{"-r", "350", "-f", "/tmp/x/chunk.txt", "-o", "/tmp/x/chunk.aiff"}, args)
	assert.Equal(t, "/tmp/x/chunk.aiff", out)

	name, args, _, err = offlineCommand("windows", "Microsoft Jakub", 1.5, `C:\t\chunk.txt`, `C:\t`)
	require.NoError(t, err)
	assert.Equal(t, "powershell", name)
	script := args[len(args)-1]
	assert.Contains(t, script, "$s.SelectVoice('Microsoft Jakub')")
	assert.Contains(t, script, "$s.Rate = 5")

	_, _, _, err = offlineCommand("plan9", "", 1, "a", "b")
	assert.Error(t, err)
}

func TestPiperArgs(t *testing.T) {
	p := &PiperSynthesizer{model: "voice.onnx", speaker: 2, rate: 1.25, sampleRate: 22050}
	assert.Equal(t, []string{"--model", "voice.onnx", "--output-raw", "--speaker", "2", "--length-scale", "0.800"}, p.args())

	p = &PiperSynthesizer{model: "voice.onnx", rate: 1}
	assert.Equal(t, []string{"--model", "voice.onnx", "--output-raw"}, p.args())
}

func TestHTTPStatusError(t *testing.T) {
	err := httpStatusError("X", http.StatusTooManyRequests, []byte("slow down"), "3")
	var re *retry.RetryableError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 3*time.Second, re.RetryAfter)

	assert.True(t, retry.IsRetryable(httpStatusError("X", 503, nil, "")))
	assert.False(t, retry.IsRetryable(httpStatusError("X", 400, []byte("bad"), "")))
}

func TestNewRequiresKeys(t *testing.T) {
	speech := config.Defaults(config.ScopeSpeech).Speech
	_, err := New(context.Background(), EngineElevenLabs, Options{Speech: speech})
	assert.Error(t, err)
	_, err = New(context.Background(), EngineGemini, Options{Speech: speech})
	assert.Error(t, err)
	_, err = New(context.Background(), EnginePiper, Options{Speech: speech})
	assert.Error(t, err)
	_, err = New(context.Background(), Engine("NOPE"), Options{Speech: speech})
	assert.Error(t, err)
}

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voice-1", r.URL.Path)
		assert.Equal(t, "pcm_24000", r.URL.Query().Get("output_format"))
		assert.Equal(t, "key", r.Header.Get("xi-api-key"))
		var body elevenLabsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hello.", body.Text)
		assert.InDelta(t, 1.1, body.VoiceSettings.Speed, 1e-9)
		w.Write(make([]byte, 48000))
	}))
	defer srv.Close()

	s := config.Defaults(config.ScopeSpeech).Speech
	s.ElevenLabsVoice = "voice-1"
	p, err := NewElevenLabsSynthesizer(s, "key", srv.Client())
	require.NoError(t, err)
	p.baseURL = srv.URL

	u, err := p.Synthesize(context.Background(), "Hello.")
	require.NoError(t, err)
	assert.Equal(t, time.Second, u.Duration())
}

func TestGeminiSynthesize(t *testing.T) {
	pcm := make([]byte, 24000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gkey", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"voiceName":"Kore"`)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{
					"inlineData": map[string]any{"mimeType": "audio/L16", "data": base64.StdEncoding.EncodeToString(pcm)},
				}}},
			}},
		})
	}))
	defer srv.Close()

	s := config.Defaults(config.ScopeSpeech).Speech
	s.GeminiVoice = "Kore"
	p, err := NewGeminiSynthesizer(s, "gkey", srv.Client())
	require.NoError(t, err)
	p.endpoint = srv.URL

	u, err := p.Synthesize(context.Background(), "Ahoj.")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, u.Duration())
	assert.Equal(t, audio.Mono16(24000), u.Format)
}

func TestGeminiServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewGeminiSynthesizer(config.Speech{}, "k", srv.Client())
	require.NoError(t, err)
	p.endpoint = srv.URL

	_, err = p.Synthesize(context.Background(), "x")
	assert.True(t, retry.IsRetryable(err))
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

type flakySynth struct {
	failures int
	calls    int
}

func (f *flakySynth) Name() string { return "flaky" }
func (f *flakySynth) Close() error { return nil }
func (f *flakySynth) Synthesize(ctx context.Context, text string) (audio.Unit, error) {
	f.calls++
	if f.calls <= f.failures {
		return audio.Unit{}, &retry.RetryableError{StatusCode: 500}
	}
	return audio.Silence(audio.Mono16(8000), time.Second), nil
}

func TestRetryingWrapper(t *testing.T) {
	inner := &flakySynth{failures: 2}
	r := &retrying{Synthesizer: inner, policy: retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, logger: discardLogger()}

	u, err := r.Synthesize(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, time.Second, u.Duration())
	assert.Equal(t, 3, inner.calls)

	inner = &flakySynth{failures: 5}
	r.Synthesizer = inner
	_, err = r.Synthesize(context.Background(), "text")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
	assert.Equal(t, "flaky", r.Name())
}

func TestAvailableVoices(t *testing.T) {
	for _, e := range []Engine{EngineOnline, EngineGoogle, EnginePolly, EngineElevenLabs, EngineGemini} {
		voices, err := AvailableVoices(e)
		require.NoError(t, err, e)
		assert.NotEmpty(t, voices, e)
	}
	_, err := AvailableVoices(EngineOffline)
	assert.Error(t, err)
}

func TestEdgeRate(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "+0%"},
		{1.25, "+25%"},
		{0.8, "-20%"},
		{0, "+0%"},
		{2, "+100%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, edgeRate(tt.rate), "rate %v", tt.rate)
	}
}

func TestEdgeSynthesizerSettings(t *testing.T) {
	p := NewEdgeSynthesizer(config.Speech{Rate: 1.5})
	assert.Equal(t, edgeDefaultVoice, p.voice)
	assert.Equal(t, "+50%", p.rate)

	p = NewEdgeSynthesizer(config.Speech{OnlineVoice: "en-GB-RyanNeural", Rate: 1})
	assert.Equal(t, "en-GB-RyanNeural", p.voice)
}
