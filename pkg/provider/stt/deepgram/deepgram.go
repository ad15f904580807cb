// Package deepgram provides a Deepgram-backed STT provider using the
// prerecorded transcription REST API. It implements the stt.Provider
// interface for one-shot voice note transcription.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxcodehq/voxcode/pkg/provider/stt"
)

const (
	defaultEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel    = "nova-3"

	// defaultLanguage "multi" enables Deepgram's multilingual auto-detection.
	defaultLanguage = "multi"

	defaultTimeout = 60 * time.Second
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code for recognition (e.g., "en", "de-DE",
// or "multi" for auto-detection).
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithBaseURL overrides the API endpoint. Useful for tests and proxies.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.endpoint = baseURL
	}
}

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// Provider implements stt.Provider backed by the Deepgram prerecorded API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
	client   *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "deepgram" }

// Transcribe submits the audio clip to the prerecorded endpoint and returns
// the first alternative of the first channel.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (stt.Transcript, error) {
	reqURL, err := p.buildURL()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(audio))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", mimeType)

	resp, err := p.client.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("deepgram: API returned %d: %s", resp.StatusCode, summarizeError(body))
	}

	t, ok := parseResponse(body)
	if !ok {
		return stt.Transcript{}, fmt.Errorf("deepgram: unexpected response shape")
	}
	if strings.TrimSpace(t.Text) == "" {
		return stt.Transcript{}, stt.ErrEmptyTranscript
	}
	return t, nil
}

// buildURL constructs the prerecorded endpoint URL with query parameters.
func (p *Provider) buildURL() (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("smart_format", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- response parsing ----

// prerecordedResponse is the subset of the Deepgram prerecorded response the
// bot consumes.
type prerecordedResponse struct {
	Metadata struct {
		Duration  float64           `json:"duration"`
		ModelInfo map[string]struct {
			Name string `json:"name"`
		} `json:"model_info"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// parseResponse decodes a prerecorded API response body into a Transcript.
// Returns (zero, false) when the body has no usable channel/alternative.
func parseResponse(data []byte) (stt.Transcript, bool) {
	var resp prerecordedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Transcript{}, false
	}
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return stt.Transcript{}, false
	}

	alt := resp.Results.Channels[0].Alternatives[0]

	model := ""
	for _, mi := range resp.Metadata.ModelInfo {
		model = mi.Name
		break
	}

	return stt.Transcript{
		Text:          alt.Transcript,
		Confidence:    alt.Confidence,
		AudioDuration: time.Duration(resp.Metadata.Duration * float64(time.Second)),
		Model:         model,
	}, true
}

// summarizeError extracts the err_msg field from a Deepgram error body,
// falling back to a truncated raw body.
func summarizeError(body []byte) string {
	var e struct {
		ErrMsg string `json:"err_msg"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.ErrMsg != "" {
		return e.ErrMsg
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
