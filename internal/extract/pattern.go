package extract

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
)

// linePattern matches one statement line in the common
// "02 Jan 2024  DESCRIPTION  -12.34  1,234.56" layout: date, free-text
// description, signed amount, running balance.
var linePattern = regexp.MustCompile(`(\d{2} \w{3} \d{4})\s+(.*?)\s+(-?[\d,]+\.\d{2})\s+(-?[\d,]+\.\d{2})`)

// Pattern is the deterministic fallback extractor used when the primary
// extractor fails or yields nothing. It never fails; unmatched text simply
// produces no candidates.
type Pattern struct{}

// NewPattern creates the fallback pattern extractor.
func NewPattern() *Pattern {
	return &Pattern{}
}

// Name returns the extractor identifier.
func (p *Pattern) Name() string {
	return "pattern"
}

// Extract scans documentText line by line, skipping lines that do not match
// the pattern or carry unparseable fields.
func (p *Pattern) Extract(ctx context.Context, documentText string) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	for _, line := range strings.Split(documentText, "\n") {
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		date, err := time.Parse("02 Jan 2006", m[1])
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(m[3], ",", ""))
		if err != nil {
			continue
		}
		balance, err := decimal.NewFromString(strings.ReplaceAll(m[4], ",", ""))
		if err != nil {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Date:        date,
			Description: strings.TrimSpace(m[2]),
			Amount:      amount,
			Balance:     balance,
		})
	}
	return candidates, nil
}
