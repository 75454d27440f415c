// Package extractor implements the acoustic feature-extraction provider
// against a librosa-based HTTP sidecar.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/skillsenselab/interview-analyzer/acoustic"
)

// ProviderName is the provider's registered name.
const ProviderName = "librosa"

const (
	defaultURL     = "http://localhost:8389"
	defaultTimeout = 120 * time.Second
)

// Config holds configuration for the feature-extraction sidecar.
type Config struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Provider calls the feature-extraction sidecar over HTTP.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a feature-extraction provider.
func NewProvider(cfg Config) *Provider {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the sidecar answers its health endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ExtractFeatures posts the audio together with the speaker turns and
// returns per-speaker acoustic aggregates.
func (p *Provider) ExtractFeatures(ctx context.Context, req acoustic.Request) (*acoustic.Response, error) {
	turns, err := json.Marshal(req.SpeakerTurns)
	if err != nil {
		return nil, fmt.Errorf("marshal speaker turns: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(req.AudioBytes); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	_ = writer.WriteField("speaker_turns", string(turns))
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+"/features", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("feature extraction request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("feature extraction error (status %d): %s", resp.StatusCode, string(body))
	}

	var result acoustic.Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode feature response: %w", err)
	}
	if result.Windows == nil {
		result.Windows = map[string]acoustic.FeatureWindow{}
	}
	return &result, nil
}

var _ acoustic.Provider = (*Provider)(nil)
