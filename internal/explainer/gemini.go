package explainer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiExplainer generates explanations with the Gemini API.
type GeminiExplainer struct {
	client *genai.Client
	model  string
}

// NewGeminiExplainer opens a Gemini client; close it with Close.
func NewGeminiExplainer(ctx context.Context, apiKey, model string) (*GeminiExplainer, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiExplainer{client: client, model: model}, nil
}

func (g *GeminiExplainer) Name() string { return "gemini" }

func (g *GeminiExplainer) Explain(ctx context.Context, prompt string) string {
	m := g.client.GenerativeModel(g.model)
	m.SetMaxOutputTokens(MaxTokens)
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return failure(err)
	}
	text := candidateText(resp)
	if text == "" {
		return failure(errors.New("empty response"))
	}
	return text
}

func (g *GeminiExplainer) Close() error {
	return g.client.Close()
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}
