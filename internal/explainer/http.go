package explainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"IceStock/internal/transport"
)

// MaxTokens bounds the length of generated explanations.
const MaxTokens = 200

// HTTPExplainer calls a generic text-generation endpoint that accepts
// {"prompt", "max_tokens"} and answers {"text"} or {"output"}.
type HTTPExplainer struct {
	Endpoint string
	APIKey   string
	Client   *transport.Client
}

func NewHTTPExplainer(endpoint, apiKey string, client *transport.Client) *HTTPExplainer {
	return &HTTPExplainer{Endpoint: endpoint, APIKey: apiKey, Client: client}
}

func (e *HTTPExplainer) Name() string { return "http" }

func (e *HTTPExplainer) Explain(ctx context.Context, prompt string) string {
	text, err := e.call(ctx, prompt)
	if err != nil {
		return failure(err)
	}
	return text
}

func (e *HTTPExplainer) call(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{"prompt": prompt, "max_tokens": MaxTokens})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Text   string `json:"text"`
		Output string `json:"output"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return strings.TrimSpace(string(respBody)), nil
	}
	switch {
	case result.Text != "":
		return result.Text, nil
	case result.Output != "":
		return result.Output, nil
	default:
		return strings.TrimSpace(string(respBody)), nil
	}
}
