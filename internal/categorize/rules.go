package categorize

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
)

//go:embed rules.yaml
var embeddedRules []byte

// MatchType defines how patterns are matched against transaction descriptions.
type MatchType string

const (
	// MatchTypeExact requires the pattern to match the entire description exactly.
	MatchTypeExact MatchType = "exact"
	// MatchTypeContains requires the pattern to be a substring of the description.
	MatchTypeContains MatchType = "contains"
)

// Rule represents a single categorization rule loaded from YAML.
type Rule struct {
	Name        string    `yaml:"name"`
	Pattern     string    `yaml:"pattern"`
	MatchType   MatchType `yaml:"match_type"`
	Priority    int       `yaml:"priority"`
	Category    string    `yaml:"category"`
	SubCategory string    `yaml:"sub_category"`
}

type ruleSet struct {
	Rules []Rule `yaml:"rules"`
}

// Rules is the offline pattern classifier. It implements Classifier for
// deployments without model access and doubles as a deterministic
// implementation in tests. Descriptions that match no rule come back
// Uncategorized, matching the adapter contract.
type Rules struct {
	rules []Rule // sorted by priority, highest first
}

// NewRules creates a rules classifier from YAML data.
func NewRules(data []byte) (*Rules, error) {
	var rs ruleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range rs.Rules {
		if !domain.ValidateCategoryPair(rule.Category, rule.SubCategory) {
			return nil, fmt.Errorf("rule %d (%s): invalid category/subcategory %q / %q",
				i, rule.Name, rule.Category, rule.SubCategory)
		}
		if rule.Priority < 0 || rule.Priority > 999 {
			return nil, fmt.Errorf("rule %d (%s): priority must be in [0,999], got %d", i, rule.Name, rule.Priority)
		}
		if rule.MatchType != MatchTypeExact && rule.MatchType != MatchTypeContains {
			return nil, fmt.Errorf("rule %d (%s): invalid match_type %q (must be 'exact' or 'contains')", i, rule.Name, rule.MatchType)
		}
		if strings.TrimSpace(rule.Pattern) == "" {
			return nil, fmt.Errorf("rule %d (%s): pattern cannot be empty", i, rule.Name)
		}
	}

	// Stable sort preserves YAML file order for equal priorities, which
	// keeps matching deterministic.
	sorted := make([]Rule, len(rs.Rules))
	copy(sorted, rs.Rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	return &Rules{rules: sorted}, nil
}

// LoadEmbeddedRules loads the embedded rules.yaml file.
func LoadEmbeddedRules() (*Rules, error) {
	r, err := NewRules(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules: %w", err)
	}
	return r, nil
}

// LoadRulesFromFile loads rules from a filesystem path.
func LoadRulesFromFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	r, err := NewRules(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return r, nil
}

// Classify implements Classifier. Rules are evaluated in priority order,
// highest first.
func (r *Rules) Classify(ctx context.Context, description string, amount decimal.Decimal) Result {
	normalizedDesc := strings.ToLower(strings.TrimSpace(description))

	for _, rule := range r.rules {
		normalizedPattern := strings.ToLower(strings.TrimSpace(rule.Pattern))

		matched := false
		switch rule.MatchType {
		case MatchTypeExact:
			matched = normalizedDesc == normalizedPattern
		case MatchTypeContains:
			matched = strings.Contains(normalizedDesc, normalizedPattern)
		}

		if matched {
			return Result{
				Category:          rule.Category,
				SubCategory:       rule.SubCategory,
				IsAutoCategorized: true,
			}
		}
	}

	return Uncategorized()
}
