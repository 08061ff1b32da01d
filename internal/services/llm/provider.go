// Package llm содержит провайдеров языковых моделей и резолвер,
// выбирающий провайдера по кэшируемому флагу системной конфигурации.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// InvokeRequest — запрос к языковой модели.
type InvokeRequest struct {
	ChatID   string
	Text     string
	Mode     string
	UserUID  string
	UserName string
}

// Provider — стратегия вызова конкретной языковой модели.
type Provider interface {
	// Name возвращает имя провайдера.
	Name() string
	// Invoke отправляет текст модели и возвращает текст ответа.
	Invoke(ctx context.Context, req InvokeRequest) (string, error)
}

// GeminiProvider вызывает Google Gemini generateContent API.
type GeminiProvider struct {
	URL    string
	APIKey string
	Client *http.Client
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Invoke(ctx context.Context, req InvokeRequest) (string, error) {
	const op = "llm.GeminiProvider.Invoke"

	payload := map[string]any{
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": req.Text}},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.APIKey)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, msg)
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
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%s: empty response", op)
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// ChatGPTProvider вызывает OpenAI chat completions API.
type ChatGPTProvider struct {
	URL    string
	APIKey string
	Model  string
	Client *http.Client
}

func (p *ChatGPTProvider) Name() string { return "chatgpt" }

func (p *ChatGPTProvider) Invoke(ctx context.Context, req InvokeRequest) (string, error) {
	const op = "llm.ChatGPTProvider.Invoke"

	model := p.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": req.Text},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, msg)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", op)
	}
	return parsed.Choices[0].Message.Content, nil
}
