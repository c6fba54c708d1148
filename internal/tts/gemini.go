package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/config"
)

const (
	geminiDefaultVoice = "Charon"
	geminiEndpoint     = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash-preview-tts:generateContent"
	// Gemini returns raw 24kHz 16-bit signed little-endian mono PCM.
	geminiSampleRate = 24000
)

// geminiRequest is the top-level request to the Gemini generateContent TTS endpoint.
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	SpeechConfig       geminiSpeechConfig `json:"speechConfig"`
}

type geminiSpeechConfig struct {
	VoiceConfig geminiVoiceConfig `json:"voiceConfig"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig geminiPrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type geminiPrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

// geminiResponse is the generateContent response structure.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GeminiSynthesizer implements Synthesizer using Gemini's speech generation.
type GeminiSynthesizer struct {
	voice      string
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewGeminiSynthesizer(s config.Speech, apiKey string, client *http.Client) (*GeminiSynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the GEMINI engine")
	}
	voice := s.GeminiVoice
	if voice == "" {
		voice = geminiDefaultVoice
	}
	return &GeminiSynthesizer{voice: voice, apiKey: apiKey, endpoint: geminiEndpoint, httpClient: client}, nil
}

func (p *GeminiSynthesizer) Name() string { return "gemini" }

func (p *GeminiSynthesizer) Synthesize(ctx context.Context, text string) (audio.Unit, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: text}}},
		},
		GenerationConfig: geminiGenConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: geminiSpeechConfig{
				VoiceConfig: geminiVoiceConfig{
					PrebuiltVoiceConfig: geminiPrebuiltVoice{VoiceName: p.voice},
				},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return audio.Unit{}, fmt.Errorf("marshal Gemini request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return audio.Unit{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	res, err := p.httpClient.Do(req)
	if err != nil {
		return audio.Unit{}, fmt.Errorf("send Gemini request: %w", err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return audio.Unit{}, fmt.Errorf("read Gemini response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return audio.Unit{}, httpStatusError("Gemini", res.StatusCode, respBody, res.Header.Get("Retry-After"))
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return audio.Unit{}, fmt.Errorf("parse Gemini response: %w", err)
	}

	if len(resp.Candidates) == 0 ||
		len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].InlineData == nil {
		return audio.Unit{}, fmt.Errorf("Gemini response contained no audio data")
	}

	pcm, err := base64.StdEncoding.DecodeString(resp.Candidates[0].Content.Parts[0].InlineData.Data)
	if err != nil {
		return audio.Unit{}, fmt.Errorf("decode Gemini audio base64: %w", err)
	}
	return audio.New(audio.Mono16(geminiSampleRate), pcm)
}

func (p *GeminiSynthesizer) Close() error { return nil }

func geminiAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Charon", Name: "Charon", Gender: "male", Description: "Informative, clear male narrator"},
		{ID: "Leda", Name: "Leda", Gender: "female", Description: "Youthful, bright female voice"},
		{ID: "Kore", Name: "Kore", Gender: "female", Description: "Firm, confident female voice"},
		{ID: "Fenrir", Name: "Fenrir", Gender: "male", Description: "Excitable, deep male voice"},
		{ID: "Aoede", Name: "Aoede", Gender: "female", Description: "Bright, expressive female voice"},
		{ID: "Orus", Name: "Orus", Gender: "male", Description: "Firm, authoritative male narrator"},
	}
}
