// Package ai talks to the generative language model used for keyword
// expansion, categorisation, question generation and OCR text analysis.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/IshaanNene/PharmaScrape/internal/config"
	"github.com/IshaanNene/PharmaScrape/internal/fetcher"
	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// LLMProvider specifies which LLM backend to use.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOllama LLMProvider = "ollama"
	ProviderOpenAI LLMProvider = "openai"
	ProviderCustom LLMProvider = "custom"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	openAIBaseURL = "https://api.openai.com/v1"
	ollamaBaseURL = "http://localhost:11434"
)

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMClient communicates with an LLM backend. Transport and status failures
// come back as *types.FetchError so callers can classify rate limits.
type LLMClient struct {
	cfg     *config.LLMConfig
	fetcher fetcher.Fetcher
	logger  *slog.Logger
}

// NewLLMClient creates a new LLM client on top of f.
func NewLLMClient(cfg *config.Config, f fetcher.Fetcher, logger *slog.Logger) *LLMClient {
	return &LLMClient{
		cfg:     &cfg.LLM,
		fetcher: f,
		logger:  logger.With("component", "llm_client", "provider", cfg.LLM.Provider),
	}
}

// Generate sends a prompt to the LLM and returns the response.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	switch LLMProvider(c.cfg.Provider) {
	case ProviderGemini:
		return c.generateGemini(ctx, prompt)
	case ProviderOllama:
		return c.generateOllama(ctx, prompt)
	case ProviderOpenAI:
		return c.generateOpenAI(ctx, prompt)
	case ProviderCustom:
		return c.generateCustom(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.cfg.Provider)
	}
}

func (c *LLMClient) endpoint(def string) string {
	if c.cfg.Endpoint != "" {
		return strings.TrimRight(c.cfg.Endpoint, "/")
	}
	return def
}

func (c *LLMClient) generateGemini(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":     c.cfg.Temperature,
			"maxOutputTokens": c.cfg.MaxTokens,
		},
	}
	u := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint(geminiBaseURL), url.PathEscape(c.cfg.Model))

	body, err := c.post(ctx, u, payload, map[string]string{"x-goog-api-key": c.cfg.APIKey})
	if err != nil {
		return "", err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", c.decodeError(err)
	}
	if len(result.Candidates) == 0 {
		if result.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini blocked prompt: %s", result.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("no candidates in gemini response")
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func (c *LLMClient) generateOllama(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
	}

	body, err := c.post(ctx, c.endpoint(ollamaBaseURL)+"/api/generate", payload, nil)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", c.decodeError(err)
	}
	return result.Response, nil
}

func (c *LLMClient) generateOpenAI(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
	}

	body, err := c.post(ctx, c.endpoint(openAIBaseURL)+"/chat/completions", payload, map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", c.decodeError(err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *LLMClient) generateCustom(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"prompt": prompt,
		"model":  c.cfg.Model,
	}
	var headers map[string]string
	if c.cfg.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	}

	body, err := c.post(ctx, c.cfg.Endpoint, payload, headers)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *LLMClient) post(ctx context.Context, u string, payload any, headers map[string]string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := types.NewRequest(u)
	if err != nil {
		return nil, err
	}
	req.Method = "POST"
	req.Body = data
	req.Timeout = c.cfg.RequestTimeout
	req.Headers.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Headers.Set(k, v)
	}

	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("llm response", "status", resp.StatusCode, "size", len(resp.Body), "duration", resp.FetchDuration)
	return resp.Body, nil
}

func (c *LLMClient) decodeError(err error) error {
	return &types.FetchError{URL: c.cfg.Provider, Kind: types.KindDecode, Err: err}
}
