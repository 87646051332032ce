package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/devscontext/devscontext/internal/config"
)

// Provider generates text from a prompt. Implementations wrap one LLM
// HTTP API each.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

const providerTimeout = 120 * time.Second

func newProvider(cfg config.SynthesisConfig) (Provider, error) {
	client := &http.Client{Timeout: providerTimeout}
	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("synthesis: anthropic provider requires api_key")
		}
		return &anthropicProvider{client: client, apiKey: cfg.APIKey, model: cfg.Model}, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("synthesis: openai provider requires api_key")
		}
		return &openaiProvider{client: client, apiKey: cfg.APIKey, model: cfg.Model}, nil
	case "ollama":
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		return &ollamaProvider{client: client, baseURL: base, model: cfg.Model}, nil
	default:
		return nil, fmt.Errorf("synthesis: unknown provider %q", cfg.Provider)
	}
}

// postJSON issues a JSON POST and decodes the JSON response into out.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("synthesis: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("synthesis: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("synthesis: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("synthesis: %s returned %d: %s", url, resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("synthesis: decode response: %w", err)
	}
	return nil
}

type anthropicProvider struct {
	client *http.Client
	apiKey string
	model  string
}

func (p *anthropicProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	payload := map[string]any{
		"model":      p.model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": "2023-06-01",
	}
	if err := postJSON(ctx, p.client, "https://api.anthropic.com/v1/messages", headers, payload, &out); err != nil {
		return "", err
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("synthesis: anthropic returned empty content")
	}
	return out.Content[0].Text, nil
}

type openaiProvider struct {
	client *http.Client
	apiKey string
	model  string
}

func (p *openaiProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	payload := map[string]any{
		"model":      p.model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := postJSON(ctx, p.client, "https://api.openai.com/v1/chat/completions", headers, payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("synthesis: openai returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

type ollamaProvider struct {
	client  *http.Client
	baseURL string
	model   string
}

func (p *ollamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	payload := map[string]any{
		"model":  p.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"num_predict": maxTokens,
		},
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := postJSON(ctx, p.client, p.baseURL+"/api/generate", nil, payload, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}
