package categorizer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule maps keywords to a category.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type rulesFile struct {
	Categories []Rule `yaml:"categories"`
}

// DefaultRules are used when no rules file is configured.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "Groceries", Keywords: []string{"grocery", "supermarket", "food", "market", "kroger", "walmart", "target"}},
		{Name: "Gas", Keywords: []string{"gas", "fuel", "shell", "exxon", "bp", "chevron", "mobil"}},
		{Name: "Restaurants", Keywords: []string{"restaurant", "cafe", "coffee", "starbucks", "mcdonald", "subway", "pizza"}},
		{Name: "Shopping", Keywords: []string{"amazon", "ebay", "store", "shop", "retail", "mall"}},
		{Name: "Utilities", Keywords: []string{"electric", "water", "gas bill", "internet", "phone", "cable"}},
		{Name: "Transportation", Keywords: []string{"uber", "lyft", "taxi", "bus", "train", "parking"}},
		{Name: "Entertainment", Keywords: []string{"movie", "theater", "netflix", "spotify", "game", "entertainment"}},
		{Name: "Healthcare", Keywords: []string{"medical", "doctor", "pharmacy", "hospital", "health", "dental"}},
	}
}

// ParseRules decodes a YAML rules document of the form
//
//	categories:
//	  - name: Groceries
//	    keywords: [grocery, market]
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ParseRules: %w", err)
	}

	rules := make([]Rule, 0, len(f.Categories))
	for i, r := range f.Categories {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("ParseRules: rule %d has no name", i+1)
		}
		var keywords []string
		for _, k := range r.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}
		rules = append(rules, Rule{Name: name, Keywords: keywords})
	}
	return rules, nil
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRules: %w", err)
	}
	return ParseRules(data)
}

// Keyword suggests the first rule with a keyword contained in the description,
// ignoring case.
type Keyword struct {
	rules []Rule
}

// NewKeyword creates a keyword categorizer. Nil rules means DefaultRules.
func NewKeyword(rules []Rule) *Keyword {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Keyword{rules: rules}
}

// Rules returns the configured rules.
func (k *Keyword) Rules() []Rule {
	return k.rules
}

// Categories returns the rule names in order.
func (k *Keyword) Categories() []string {
	names := make([]string, len(k.rules))
	for i, r := range k.rules {
		names[i] = r.Name
	}
	return names
}

func (k *Keyword) Categorize(ctx context.Context, description string) (string, bool, error) {
	desc := strings.ToLower(description)
	for _, r := range k.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(desc, kw) {
				return r.Name, true, nil
			}
		}
	}
	return "", false, nil
}
