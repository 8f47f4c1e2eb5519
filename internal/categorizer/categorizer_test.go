package categorizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/genai"
)

// mockGenerator is a mock implementation of ContentGenerator for testing.
type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	lastModel           string
	lastPrompt          string
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.lastModel = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		m.lastPrompt = contents[0].Parts[0].Text
	}
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestNeedsCategory(t *testing.T) {
	tests := []struct {
		category string
		want     bool
	}{
		{"Uncategorized", true},
		{" misc ", true},
		{"OTHER", true},
		{"Miscellaneous", true},
		{"Groceries", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := NeedsCategory(tt.category); got != tt.want {
			t.Errorf("NeedsCategory(%q) = %v, want %v", tt.category, got, tt.want)
		}
	}
}

func TestKeyword_DefaultRules(t *testing.T) {
	k := NewKeyword(nil)
	tests := []struct {
		description string
		want        string
		wantOK      bool
	}{
		{"KROGER #123", "Groceries", true},
		{"SHELL OIL 5543", "Gas", true},
		{"Starbucks Store #12345", "Restaurants", true},
		{"AMAZON MKTPLACE", "Shopping", true},
		{"NETFLIX.COM", "Entertainment", true},
		{"CVS PHARMACY", "Healthcare", true},
		// "target" is a Groceries keyword, which precedes Shopping's "store"
		{"TARGET STORE", "Groceries", true},
		{"ACME WIDGETS", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			got, ok, err := k.Categorize(context.Background(), tt.description)
			if err != nil {
				t.Fatalf("Categorize() error: %v", err)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Categorize(%q) = %q, %v; want %q, %v", tt.description, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseRules(t *testing.T) {
	data := []byte(`
categories:
  - name: Coffee
    keywords: [" Starbucks ", PEETS, ""]
  - name: Rent
    keywords:
      - landlord
`)
	rules, err := ParseRules(data)
	if err != nil {
		t.Fatalf("ParseRules() error: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Name != "Coffee" || len(rules[0].Keywords) != 2 || rules[0].Keywords[0] != "starbucks" {
		t.Errorf("rules[0] = %+v", rules[0])
	}

	k := NewKeyword(rules)
	got, ok, _ := k.Categorize(context.Background(), "PAYMENT TO LANDLORD LLC")
	if !ok || got != "Rent" {
		t.Errorf("Categorize() = %q, %v; want Rent", got, ok)
	}
	if names := k.Categories(); len(names) != 2 || names[1] != "Rent" {
		t.Errorf("Categories() = %v", names)
	}
}

func TestParseRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid yaml", "categories: [name: x"},
		{"missing name", "categories:\n  - keywords: [a]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRules([]byte(tt.data)); err == nil {
				t.Error("ParseRules() expected error")
			}
		})
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("categories:\n  - name: Pets\n    keywords: [petco]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}
	if len(rules) != 1 || rules[0].Name != "Pets" {
		t.Errorf("LoadRules() = %+v", rules)
	}

	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadRules() expected error for missing file")
	}
}

func TestGemini_Categorize(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantOK   bool
	}{
		{"plain json", `{"category": "Groceries"}`, "Groceries", true},
		{"fenced json", "```json\n{\"category\": \"gas\"}\n```", "Gas", true},
		{"unknown category", `{"category": "Crypto"}`, "", false},
		{"empty answer", `{"category": ""}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return textResponse(tt.response), nil
				},
			}
			g := NewGemini(gen, "", []string{"Groceries", "Gas"})

			got, ok, err := g.Categorize(context.Background(), "WHOLE FOODS")
			if err != nil {
				t.Fatalf("Categorize() error: %v", err)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Categorize() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
			if gen.lastModel != DefaultModelName {
				t.Errorf("model = %q, want %q", gen.lastModel, DefaultModelName)
			}
			if !strings.Contains(gen.lastPrompt, "WHOLE FOODS") || !strings.Contains(gen.lastPrompt, "- Gas") {
				t.Errorf("prompt missing description or categories: %s", gen.lastPrompt)
			}
		})
	}
}

func TestGemini_Errors(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
	}{
		{"api error", nil, errors.New("quota exceeded")},
		{"empty text", textResponse(""), nil},
		{"not json", textResponse("Groceries"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			if _, _, err := NewGemini(gen, "m", []string{"Groceries"}).Categorize(context.Background(), "x"); err == nil {
				t.Error("Categorize() expected error")
			}
		})
	}
}

func TestGemini_NoCategoriesSkipsModel(t *testing.T) {
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			t.Fatal("model should not be called")
			return nil, nil
		},
	}
	if _, ok, err := NewGemini(gen, "", nil).Categorize(context.Background(), "x"); ok || err != nil {
		t.Errorf("Categorize() = %v, %v", ok, err)
	}
}

type stubCategorizer struct {
	category string
	ok       bool
	err      error
	calls    int
}

func (s *stubCategorizer) Categorize(ctx context.Context, description string) (string, bool, error) {
	s.calls++
	return s.category, s.ok, s.err
}

func TestChain(t *testing.T) {
	miss := &stubCategorizer{}
	hit := &stubCategorizer{category: "Gas", ok: true}
	never := &stubCategorizer{category: "Other", ok: true}

	got, ok, err := Chain{miss, hit, never}.Categorize(context.Background(), "x")
	if err != nil || !ok || got != "Gas" {
		t.Errorf("Chain.Categorize() = %q, %v, %v", got, ok, err)
	}
	if never.calls != 0 {
		t.Error("Chain should stop at the first suggestion")
	}

	failing := &stubCategorizer{err: errors.New("boom")}
	if _, _, err := (Chain{failing}).Categorize(context.Background(), "x"); err == nil {
		t.Error("Chain.Categorize() expected error")
	}
}
