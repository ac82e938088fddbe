// Package classifier infers a service category from free text when the
// assistant omits one. The rule table is explicit configuration: rule order
// is the match priority, and nothing is inferred beyond the configured
// keywords.
package classifier

import (
	"fmt"
	"strings"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

type Rule struct {
	Keyword  string
	Category string
}

type KeywordClassifier struct {
	rules []Rule
}

var _ contractx.Classifier = (*KeywordClassifier)(nil)

func NewKeywordClassifier(rules []Rule) *KeywordClassifier {
	cleaned := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		keyword := strings.ToLower(strings.TrimSpace(rule.Keyword))
		category := strings.ToLower(strings.TrimSpace(rule.Category))
		if keyword == "" || category == "" {
			continue
		}
		cleaned = append(cleaned, Rule{Keyword: keyword, Category: category})
	}
	return &KeywordClassifier{rules: cleaned}
}

// Classify returns the category of the first rule whose keyword occurs in
// text, or ok=false when none applies.
func (c *KeywordClassifier) Classify(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, rule := range c.rules {
		if strings.Contains(lowered, rule.Keyword) {
			return rule.Category, true
		}
	}
	return "", false
}

// ParseRules decodes "keyword=category" pairs, preserving their order.
func ParseRules(pairs []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(pairs))
	for _, pair := range pairs {
		keyword, category, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid classifier rule %q, want keyword=category", pair)
		}
		rules = append(rules, Rule{Keyword: keyword, Category: category})
	}
	return rules, nil
}
