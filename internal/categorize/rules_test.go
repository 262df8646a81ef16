package categorize

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
)

const testRules = `
rules:
  - name: groceries
    pattern: woolworths
    match_type: contains
    priority: 100
    category: "Groceries & Household"
    sub_category: "Supermarkets & Grocery Stores"

  - name: fuel-exact
    pattern: bp
    match_type: exact
    priority: 50
    category: "Transport"
    sub_category: "Fuel & Maintenance"

  - name: delivery-overrides-groceries
    pattern: woolworths delivery
    match_type: contains
    priority: 200
    category: "Dining & Takeaway"
    sub_category: "Food Delivery"
`

func TestRulesClassify(t *testing.T) {
	r, err := NewRules([]byte(testRules))
	if err != nil {
		t.Fatalf("NewRules() failed: %v", err)
	}

	tests := []struct {
		name            string
		description     string
		wantCategory    string
		wantSubCategory string
		wantAuto        bool
	}{
		{
			name:            "contains match",
			description:     "WOOLWORTHS 1234 SYDNEY",
			wantCategory:    domain.CategoryGroceries,
			wantSubCategory: "Supermarkets & Grocery Stores",
			wantAuto:        true,
		},
		{
			name:            "higher priority wins",
			description:     "Woolworths Delivery Order 99",
			wantCategory:    domain.CategoryDining,
			wantSubCategory: "Food Delivery",
			wantAuto:        true,
		},
		{
			name:            "exact match requires full description",
			description:     "BP",
			wantCategory:    domain.CategoryTransport,
			wantSubCategory: "Fuel & Maintenance",
			wantAuto:        true,
		},
		{
			name:         "exact match rejects partial",
			description:  "BP CONNECT STORE",
			wantCategory: domain.CategoryUncategorized,
		},
		{
			name:         "no match degrades to Uncategorized",
			description:  "MYSTERY VENDOR",
			wantCategory: domain.CategoryUncategorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Classify(context.Background(), tt.description, decimal.RequireFromString("10.00"))
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %q; want %q", got.Category, tt.wantCategory)
			}
			if got.SubCategory != tt.wantSubCategory {
				t.Errorf("SubCategory = %q; want %q", got.SubCategory, tt.wantSubCategory)
			}
			if got.IsAutoCategorized != tt.wantAuto {
				t.Errorf("IsAutoCategorized = %v; want %v", got.IsAutoCategorized, tt.wantAuto)
			}
		})
	}
}

func TestNewRulesValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "invalid category",
			yaml: `
rules:
  - name: bad
    pattern: x
    match_type: contains
    priority: 10
    category: "Invented Category"
    sub_category: ""
`,
		},
		{
			name: "subcategory from wrong category",
			yaml: `
rules:
  - name: bad
    pattern: x
    match_type: contains
    priority: 10
    category: "Transport"
    sub_category: "Food Delivery"
`,
		},
		{
			name: "priority out of range",
			yaml: `
rules:
  - name: bad
    pattern: x
    match_type: contains
    priority: 1000
    category: "Transport"
    sub_category: ""
`,
		},
		{
			name: "empty pattern",
			yaml: `
rules:
  - name: bad
    pattern: "  "
    match_type: contains
    priority: 10
    category: "Transport"
    sub_category: ""
`,
		},
		{
			name: "bad match type",
			yaml: `
rules:
  - name: bad
    pattern: x
    match_type: regex
    priority: 10
    category: "Transport"
    sub_category: ""
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRules([]byte(tt.yaml)); err == nil {
				t.Error("NewRules() should have failed")
			}
		})
	}
}

func TestLoadEmbeddedRules(t *testing.T) {
	r, err := LoadEmbeddedRules()
	if err != nil {
		t.Fatalf("LoadEmbeddedRules() failed: %v", err)
	}
	got := r.Classify(context.Background(), "WOOLWORTHS METRO", decimal.RequireFromString("32.10"))
	if got.Category != domain.CategoryGroceries {
		t.Errorf("Category = %q; want %q", got.Category, domain.CategoryGroceries)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name            string
		category        string
		subCategory     string
		wantCategory    string
		wantSubCategory string
		wantOK          bool
	}{
		{
			name:            "valid pair",
			category:        domain.CategoryTransport,
			subCategory:     "Public Transport",
			wantCategory:    domain.CategoryTransport,
			wantSubCategory: "Public Transport",
			wantOK:          true,
		},
		{
			name:         "valid category with invented subcategory keeps category",
			category:     domain.CategoryTransport,
			subCategory:  "Jetpacks",
			wantCategory: domain.CategoryTransport,
			wantOK:       true,
		},
		{
			name:         "invented category degrades",
			category:     "Travel",
			subCategory:  "",
			wantCategory: domain.CategoryUncategorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sanitize(tt.category, tt.subCategory)
			if ok != tt.wantOK {
				t.Errorf("sanitize() ok = %v; want %v", ok, tt.wantOK)
			}
			if got.Category != tt.wantCategory || got.SubCategory != tt.wantSubCategory {
				t.Errorf("sanitize() = %q/%q; want %q/%q",
					got.Category, got.SubCategory, tt.wantCategory, tt.wantSubCategory)
			}
		})
	}
}
