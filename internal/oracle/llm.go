// internal/oracle/llm.go
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loan-underwriter/internal/common/errors"
)

// llmClient speaks the chat-completions wire protocol. No client-level
// timeout is set; the per-call context carries the deadline.
type llmClient struct {
	baseURL     string
	apiKey      string
	model       string
	timeout     time.Duration
	maxTokens   int
	temperature float64
	client      *http.Client
}

func newLLMClient(cfg Config) *llmClient {
	return &llmClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{},
	}
}

// complete sends one prompt and returns the raw completion text. Errors are
// already classified: timeout, unavailable, or malformed.
func (l *llmClient) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	requestBody := map[string]interface{}{
		"model": l.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  l.maxTokens,
		"temperature": l.temperature,
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", errors.NewOracleUnavailableError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewOracleTimeoutError(l.timeout)
		}
		return "", errors.NewOracleUnavailableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.NewOracleUnavailableError(
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", errors.NewOracleMalformedError(fmt.Sprintf("decode completion: %v", err))
	}
	if len(completion.Choices) == 0 {
		return "", errors.NewOracleMalformedError("completion contained no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
