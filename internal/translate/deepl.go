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
	deepLFreeEndpoint = "https://api-free.deepl.com/v2/translate"
	deepLProEndpoint  = "https://api.deepl.com/v2/translate"
)

type deepLRequest struct {
	Text       []string `json:"text"`
	SourceLang string   `json:"source_lang,omitempty"`
	TargetLang string   `json:"target_lang"`
}

type deepLResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// DeepLTranslator uses the DeepL REST API. It has no notion of a prompt.
type DeepLTranslator struct {
	apiKey     string
	endpoint   string
	source     string
	target     string
	httpClient *http.Client
}

func NewDeepLTranslator(t config.Translate, apiKey string, httpClient *http.Client) (*DeepLTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("DEEPL_API_KEY is required for the DEEPL engine")
	}
	endpoint := deepLProEndpoint
	if strings.HasSuffix(apiKey, ":fx") {
		endpoint = deepLFreeEndpoint
	}
	return &DeepLTranslator{
		apiKey:     apiKey,
		endpoint:   endpoint,
		source:     strings.ToUpper(t.Source),
		target:     deepLTarget(t.Target),
		httpClient: httpClient,
	}, nil
}

// deepLTarget maps bare codes that DeepL only accepts with a region.
func deepLTarget(code string) string {
	code = strings.ToUpper(code)
	switch code {
	case "EN":
		return "EN-US"
	case "PT":
		return "PT-PT"
	}
	return code
}

func (d *DeepLTranslator) Name() string { return "deepl" }

func (d *DeepLTranslator) Translate(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(deepLRequest{Text: []string{text}, SourceLang: d.source, TargetLang: d.target})
	if err != nil {
		return "", fmt.Errorf("marshal DeepL request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send DeepL request: %w", err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read DeepL response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("DeepL API error (status %d): %s", res.StatusCode, string(respBody))
	}

	var resp deepLResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parse DeepL response: %w", err)
	}
	if len(resp.Translations) == 0 {
		return "", fmt.Errorf("DeepL returned no translations")
	}
	return resp.Translations[0].Text, nil
}
