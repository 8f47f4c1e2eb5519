package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/logger"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// ContentGenerator is the subset of the genai Models service used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini asks a generative model to pick one of a fixed list of categories.
type Gemini struct {
	models     ContentGenerator
	model      string
	categories []string
}

// NewGeminiClient creates a genai client configured from the environment
// (GOOGLE_API_KEY or Vertex AI settings).
func NewGeminiClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return client, nil
}

// NewGemini creates a categorizer restricted to categories.
func NewGemini(models ContentGenerator, model string, categories []string) *Gemini {
	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{models: models, model: model, categories: categories}
}

type geminiAnswer struct {
	Category string `json:"category"`
}

func (g *Gemini) Categorize(ctx context.Context, description string) (string, bool, error) {
	if len(g.categories) == 0 {
		return "", false, nil
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: g.prompt(description)}},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", false, fmt.Errorf("Gemini.Categorize: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", false, fmt.Errorf("Gemini.Categorize: empty response from model")
	}

	var answer geminiAnswer
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &answer); err != nil {
		return "", false, fmt.Errorf("Gemini.Categorize: unmarshal JSON: %w\nraw response: %s", err, rawText)
	}

	for _, c := range g.categories {
		if strings.EqualFold(c, strings.TrimSpace(answer.Category)) {
			return c, true, nil
		}
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("description", description).
		Str("answer", answer.Category).
		Msg("Model answer is not a known category")
	return "", false, nil
}

func (g *Gemini) prompt(description string) string {
	var b strings.Builder
	b.WriteString("You categorize bank statement lines.\n\n")
	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range g.categories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nTransaction description: " + description + "\n\n")
	b.WriteString("Return ONLY a JSON object {\"category\": \"<name>\"}.\n")
	b.WriteString("Use an empty string when no category fits.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	return b.String()
}

// cleanModelJSON strips Markdown fences and surrounding text from a model
// response that should contain a single JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
