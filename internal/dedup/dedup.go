// Package dedup computes statement-line deduplication keys via SHA256
// fingerprinting.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Key creates a SHA256 fingerprint of owner, calendar day, absolute amount,
// and description.
// Format: SHA256("{ownerID}|{YYYY-MM-DD}|{absAmount}|{normalizedDescription}")
// Amount is formatted with 2 decimal places for consistency.
// Description is normalized: lowercase and trimmed.
func Key(ownerID string, date time.Time, amount decimal.Decimal, description string) string {
	normalizedDesc := strings.ToLower(strings.TrimSpace(description))
	day := date.Format("2006-01-02")
	formattedAmount := amount.Abs().StringFixed(2)

	input := fmt.Sprintf("%s|%s|%s|%s", ownerID, day, formattedAmount, normalizedDesc)

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
