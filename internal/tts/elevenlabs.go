package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/config"
)

const (
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel

	elevenLabsBaseURL      = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsModelID      = "eleven_multilingual_v2"
	elevenLabsOutputFormat = "pcm_24000"
	elevenLabsSampleRate   = 24000
)

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings *elevenLabsVoiceParams `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceParams struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed"`
}

// ElevenLabsSynthesizer implements Synthesizer using the ElevenLabs TTS API.
type ElevenLabsSynthesizer struct {
	voice      string
	speed      float64
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewElevenLabsSynthesizer(s config.Speech, apiKey string, client *http.Client) (*ElevenLabsSynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY is required for the ELEVENLABS engine")
	}
	voice := s.ElevenLabsVoice
	if voice == "" {
		voice = elevenLabsDefaultVoice
	}
	return &ElevenLabsSynthesizer{
		voice: voice,
		// The API accepts speeds between 0.7 and 1.2.
		speed:      math.Max(0.7, math.Min(1.2, s.Rate)),
		apiKey:     apiKey,
		baseURL:    elevenLabsBaseURL,
		httpClient: client,
	}, nil
}

func (p *ElevenLabsSynthesizer) Name() string { return "elevenlabs" }

func (p *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) (audio.Unit, error) {
	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: elevenLabsModelID,
		VoiceSettings: &elevenLabsVoiceParams{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			UseSpeakerBoost: true,
			Speed:           p.speed,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return audio.Unit{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s?output_format=%s", p.baseURL, p.voice, elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return audio.Unit{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return audio.Unit{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(res.Body)
		return audio.Unit{}, httpStatusError("ElevenLabs", res.StatusCode, errBody, res.Header.Get("Retry-After"))
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return audio.Unit{}, fmt.Errorf("read response: %w", err)
	}

	return audio.New(audio.Mono16(elevenLabsSampleRate), data)
}

func (p *ElevenLabsSynthesizer) Close() error { return nil }

func elevenLabsAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel", Gender: "female", Description: "Calm American female narrator"},
		{ID: "JBFqnCBsd6RMkjVDRZzb", Name: "George", Gender: "male", Description: "Warm British male, clear and authoritative"},
		{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Sarah", Gender: "female", Description: "Soft American female, friendly and engaging"},
		{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Gender: "male", Description: "Deep American male, confident narrator"},
		{ID: "onwK4e9ZLuTAKqWW03F9", Name: "Daniel", Gender: "male", Description: "British male, authoritative news anchor"},
		{ID: "pFZP5JQG7iQjIQuC4Bku", Name: "Lily", Gender: "female", Description: "British female, warm storyteller"},
	}
}
