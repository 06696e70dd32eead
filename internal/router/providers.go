// Provider adapters for the three protocols named in §6 "LLM provider
// protocol": OpenAI-compatible JSON (default), Anthropic Messages, and
// Google generateContent. Adapted from the teacher's single-provider
// ai/gateway/ollama_client.go HTTP client, generalized to the three
// wire shapes and streaming-vs-non-streaming invocation.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProviderType selects the wire protocol (§6).
type ProviderType string

const (
	ProviderOpenAICompatible ProviderType = "openai_compatible"
	ProviderAnthropic        ProviderType = "anthropic"
	ProviderGemini           ProviderType = "gemini"
)

// HTTPProvider implements Provider over one of the three wire protocols.
type HTTPProvider struct {
	name     string
	kind     ProviderType
	baseURL  string
	apiKey   string
	model    string
	client   *http.Client
}

func NewHTTPProvider(name string, kind ProviderType, baseURL, apiKey, model string) *HTTPProvider {
	return &HTTPProvider{
		name: name, kind: kind, baseURL: baseURL, apiKey: apiKey, model: model,
		client: &http.Client{Timeout: 0}, // per-capability timeout comes from the caller's context
	}
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Invoke(ctx context.Context, capability string, payload any) (json.RawMessage, error) {
	switch p.kind {
	case ProviderAnthropic:
		return p.invokeAnthropic(ctx, payload)
	case ProviderGemini:
		return p.invokeGemini(ctx, payload)
	default:
		return p.invokeOpenAICompatible(ctx, payload)
	}
}

func (p *HTTPProvider) invokeOpenAICompatible(ctx context.Context, payload any) (json.RawMessage, error) {
	body := map[string]any{
		"model":    p.model,
		"messages": []map[string]string{{"role": "user", "content": mustJSON(payload)}},
	}
	resp, err := p.post(ctx, p.baseURL+"/v1/chat/completions", body, map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return nil, fmt.Errorf("router: decode openai-compatible response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("router: openai-compatible response had no choices")
	}
	return json.RawMessage(parsed.Choices[0].Message.Content), nil
}

func (p *HTTPProvider) invokeAnthropic(ctx context.Context, payload any) (json.RawMessage, error) {
	body := map[string]any{
		"model":      p.model,
		"max_tokens": 4096,
		"messages":   []map[string]string{{"role": "user", "content": mustJSON(payload)}},
	}
	resp, err := p.post(ctx, p.baseURL+"/v1/messages", body, map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return nil, fmt.Errorf("router: decode anthropic response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return nil, fmt.Errorf("router: anthropic response had no content")
	}
	return json.RawMessage(parsed.Content[0].Text), nil
}

func (p *HTTPProvider) invokeGemini(ctx context.Context, payload any) (json.RawMessage, error) {
	body := map[string]any{
		"contents": []map[string]any{{"parts": []map[string]string{{"text": mustJSON(payload)}}}},
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	resp, err := p.post(ctx, url, body, nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return nil, fmt.Errorf("router: decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("router: gemini response had no candidates")
	}
	return json.RawMessage(parsed.Candidates[0].Content.Parts[0].Text), nil
}

func (p *HTTPProvider) post(ctx context.Context, url string, body map[string]any, headers map[string]string) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("router: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("router: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("router: request failed: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("router: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("router: provider %s returned status %d: %s", p.name, resp.StatusCode, string(data))
	}
	return data, nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// StreamChunk is one proxied content delta for streaming invocations
// (§4.1 "stream events").
type StreamChunk struct {
	Content string
	Done    bool
}

// InvokeStream calls Invoke and sends the whole response as a single
// final chunk; it does not parse SSE deltas from any provider.
func (p *HTTPProvider) InvokeStream(ctx context.Context, capability string, payload any, chunks chan<- StreamChunk) error {
	defer close(chunks)
	start := time.Now()
	data, err := p.Invoke(ctx, capability, payload)
	_ = start
	if err != nil {
		return err
	}
	chunks <- StreamChunk{Content: string(data), Done: true}
	return nil
}
