// Package extract turns raw statement text into ordered transaction
// candidates.
package extract

import (
	"context"
	"strings"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
)

// Extractor produces candidates from statement text. Implementations may
// fail or return an empty sequence; the ingestion pipeline falls back to the
// pattern extractor in both cases.
type Extractor interface {
	// Name returns the extractor identifier.
	Name() string
	// Extract parses documentText into candidates in original statement order.
	Extract(ctx context.Context, documentText string) ([]domain.Candidate, error)
}

// IsOFX sniffs text for OFX/QFX markers, both v1 SGML and v2 XML headers.
func IsOFX(text string) bool {
	head := text
	if len(head) > 1024 {
		head = head[:1024]
	}
	upper := strings.ToUpper(head)
	return strings.Contains(upper, "OFXHEADER") ||
		strings.Contains(upper, "<?OFX") ||
		strings.Contains(upper, "<OFX>")
}
