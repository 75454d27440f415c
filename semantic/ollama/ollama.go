// Package ollama implements the semantic-analysis provider on top of a
// local Ollama server, asking for strict JSON output per analysis type.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skillsenselab/interview-analyzer/semantic"
)

// ProviderName is the provider's registered name; it doubles as the model
// tag stored with cached results.
const ProviderName = "ollama"

const (
	defaultURL     = "http://localhost:11434"
	defaultModel   = "llama3.2"
	defaultTimeout = 60 * time.Second
)

// Config holds configuration for the Ollama server.
type Config struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Model   string        `yaml:"model" mapstructure:"model"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Provider calls the Ollama chat endpoint.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates an Ollama semantic provider.
func NewProvider(cfg Config) *Provider {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
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
func (p *Provider) Name() string { return ProviderName + ":" + p.cfg.Model }

// IsAvailable checks if the Ollama server responds.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"/api/tags", nil)
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

// Analyze runs one structured analysis over the text. The raw message
// content is returned as-is; the caller validates it against the
// per-type schema.
func (p *Provider) Analyze(ctx context.Context, analysisType semantic.AnalysisType, text string) (json.RawMessage, error) {
	prompt, err := promptFor(analysisType, text)
	if err != nil {
		return nil, err
	}

	chatReq := chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Stream:      false,
		Format:      "json",
		Temperature: 0,
	}
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(msg))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	return json.RawMessage(result.Message.Content), nil
}

const systemPrompt = "You evaluate interview answers. Respond with a single JSON object and nothing else."

func promptFor(analysisType semantic.AnalysisType, text string) (string, error) {
	switch analysisType {
	case semantic.TypeKeywords:
		return fmt.Sprintf(
			"Extract the 5 to 10 most notable technical or professional keywords from this interview answer. "+
				`Respond as {"keywords": ["...", ...]}.`+"\n\nAnswer:\n%s", text), nil
	case semantic.TypePoliteness:
		return fmt.Sprintf(
			"Evaluate the politeness and professional register of this interview answer on a 1 (poor) to 5 (excellent) scale. "+
				"List concrete issues such as casual fillers, and a suggestion for each. "+
				`Respond as {"score": 1-5, "issues": ["..."], "suggestions": ["..."]}.`+"\n\nAnswer:\n%s", text), nil
	case semantic.TypeSentiment:
		return fmt.Sprintf(
			"Assess this interview answer for confidence, calmness, and positivity, each as a number from 0 to 1, with a one-sentence summary. "+
				`Respond as {"confidence": 0-1, "calmness": 0-1, "positivity": 0-1, "summary": "..."}.`+"\n\nAnswer:\n%s", text), nil
	default:
		return "", fmt.Errorf("unknown analysis type %q", analysisType)
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Format      any           `json:"format,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

var _ semantic.Provider = (*Provider)(nil)
