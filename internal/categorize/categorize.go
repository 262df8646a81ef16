// Package categorize maps transaction descriptions to the fixed
// categorization taxonomy.
package categorize

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
)

// Result is a classification outcome. Category is always a valid taxonomy
// entry or "Uncategorized"; SubCategory belongs to the category's
// enumeration or is empty.
type Result struct {
	Category          string
	SubCategory       string
	IsAutoCategorized bool
}

// Uncategorized is the degraded result returned when classification is
// unavailable or produced an out-of-taxonomy answer.
func Uncategorized() Result {
	return Result{Category: domain.CategoryUncategorized}
}

// Classifier assigns a category to a transaction. Implementations must never
// fail the caller: any network failure, malformed response, or
// out-of-taxonomy answer degrades to Uncategorized so ledger operations
// never block or abort on adapter unavailability.
type Classifier interface {
	Classify(ctx context.Context, description string, amount decimal.Decimal) Result
}

// sanitize validates a raw category/subcategory pair against the taxonomy.
func sanitize(category, subCategory string) (Result, bool) {
	if !domain.ValidateCategoryPair(category, subCategory) {
		if domain.ValidateCategoryPair(category, "") {
			// Valid category, invented subcategory: keep the category.
			return Result{Category: category, IsAutoCategorized: true}, true
		}
		return Uncategorized(), false
	}
	return Result{Category: category, SubCategory: subCategory, IsAutoCategorized: true}, true
}
