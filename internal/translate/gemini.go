package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/apresai/narrator/internal/config"
)

const (
	geminiDefaultModel     = "gemini-2.5-flash"
	geminiGenerateEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
)

type geminiTextRequest struct {
	SystemInstruction *geminiTextContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiTextContent `json:"contents"`
	GenerationConfig  *geminiTextGenCfg   `json:"generationConfig,omitempty"`
}

type geminiTextContent struct {
	Parts []geminiTextPart `json:"parts"`
}

type geminiTextPart struct {
	Text string `json:"text"`
}

type geminiTextGenCfg struct {
	Temperature float64 `json:"temperature"`
}

type geminiTextResponse struct {
	Candidates []struct {
		Content geminiTextContent `json:"content"`
	} `json:"candidates"`
}

// GeminiTranslator uses the Gemini generateContent API.
type GeminiTranslator struct {
	apiKey     string
	endpoint   string
	system     string
	httpClient *http.Client
}

func NewGeminiTranslator(t config.Translate, apiKey string, httpClient *http.Client) (*GeminiTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the GEMINI engine")
	}
	model := t.GeminiModel
	if model == "" {
		model = geminiDefaultModel
	}
	return &GeminiTranslator{
		apiKey:     apiKey,
		endpoint:   fmt.Sprintf(geminiGenerateEndpoint, model),
		system:     systemPrompt(t),
		httpClient: httpClient,
	}, nil
}

func (g *GeminiTranslator) Name() string { return "gemini" }

func (g *GeminiTranslator) Translate(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(geminiTextRequest{
		SystemInstruction: &geminiTextContent{Parts: []geminiTextPart{{Text: g.system}}},
		Contents:          []geminiTextContent{{Parts: []geminiTextPart{{Text: text}}}},
		GenerationConfig:  &geminiTextGenCfg{Temperature: 0.3},
	})
	if err != nil {
		return "", fmt.Errorf("marshal Gemini request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send Gemini request: %w", err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read Gemini response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Gemini API error (status %d): %s", res.StatusCode, string(respBody))
	}

	var resp geminiTextResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parse Gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("Gemini returned no candidates")
	}
	var parts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, ""), nil
}
