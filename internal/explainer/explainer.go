// Package explainer produces the short natural-language explanation attached
// to every weekly suggestion. Explanations never fail: an unconfigured service
// yields a placeholder and a failing one an inline error message.
package explainer

import (
	"context"
	"encoding/json"
	"fmt"

	"IceStock/internal/model"
	"IceStock/internal/transport"
)

// Placeholder is returned when no explanation service is configured.
const Placeholder = "(Servicio de explicación no configurado) Explicación no generada. Configure explanation_endpoint y explanation_api_key."

// Explainer turns a prompt into an explanation string.
type Explainer interface {
	Explain(ctx context.Context, prompt string) string
	Name() string
}

// PlaceholderExplainer is used when no service is configured.
type PlaceholderExplainer struct{}

func (PlaceholderExplainer) Explain(context.Context, string) string { return Placeholder }
func (PlaceholderExplainer) Name() string                           { return "placeholder" }

// BuildPrompt embeds the suggestion and its strategy in the instruction sent to the model.
func BuildPrompt(s *model.WeeklySuggestion) string {
	payload, err := json.Marshal(s)
	if err != nil {
		payload = []byte(fmt.Sprintf("%+v", *s))
	}
	return fmt.Sprintf("Genera 3-4 frases explicando estas sugerencias y recomendaciones de stock para la semana según este pronóstico y la estrategia %s: %s",
		s.Strategy, payload)
}

func failure(err error) string {
	return fmt.Sprintf("(Error llamando al servicio de explicación): %v", err)
}

// Options selects and configures the explanation backend.
type Options struct {
	Endpoint     string
	APIKey       string
	GeminiAPIKey string
	GeminiModel  string
}

// New picks the generic HTTP endpoint when both its endpoint and key are set,
// Gemini when only a Gemini key is set, and the placeholder otherwise.
func New(ctx context.Context, opts Options, client *transport.Client) (Explainer, error) {
	switch {
	case opts.Endpoint != "" && opts.APIKey != "":
		return NewHTTPExplainer(opts.Endpoint, opts.APIKey, client), nil
	case opts.GeminiAPIKey != "":
		g, err := NewGeminiExplainer(ctx, opts.GeminiAPIKey, opts.GeminiModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return PlaceholderExplainer{}, nil
	}
}
