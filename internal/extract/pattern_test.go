package extract

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const sampleStatement = `
ACME BANK  Statement Period 01 Jan 2024 - 31 Jan 2024

05 Jan 2024  COFFEE CORNER SYDNEY        -4.50     995.50
06 Jan 2024  WOOLWORTHS 1234             -82.30    913.20
15 Jan 2024  SALARY ACME PTY LTD         3,000.00  3,913.20

Closing balance 3,913.20
`

func TestPatternExtract(t *testing.T) {
	p := NewPattern()
	candidates, err := p.Extract(context.Background(), sampleStatement)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("got %d candidates; want 3", len(candidates))
	}

	first := candidates[0]
	if first.Description != "COFFEE CORNER SYDNEY" {
		t.Errorf("description = %q; want %q", first.Description, "COFFEE CORNER SYDNEY")
	}
	if !first.Amount.Equal(decimal.RequireFromString("-4.50")) {
		t.Errorf("amount = %s; want -4.50", first.Amount)
	}
	if !first.Balance.Equal(decimal.RequireFromString("995.50")) {
		t.Errorf("balance = %s; want 995.50", first.Balance)
	}
	wantDate := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if !first.Date.Equal(wantDate) {
		t.Errorf("date = %v; want %v", first.Date, wantDate)
	}

	// Thousands separators are stripped from amounts.
	salary := candidates[2]
	if !salary.Amount.Equal(decimal.RequireFromString("3000.00")) {
		t.Errorf("salary amount = %s; want 3000.00", salary.Amount)
	}
}

func TestPatternExtractNoMatches(t *testing.T) {
	p := NewPattern()
	candidates, err := p.Extract(context.Background(), "nothing transactional here")
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("got %d candidates; want 0", len(candidates))
	}
}

func TestIsOFX(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "v1 SGML header",
			text: "OFXHEADER:100\nDATA:OFXSGML\n<OFX>...",
			want: true,
		},
		{
			name: "v2 XML processing instruction",
			text: `<?xml version="1.0"?><?OFX OFXHEADER="200"?><OFX>`,
			want: true,
		},
		{
			name: "bare OFX root element",
			text: "<OFX><SIGNONMSGSRSV1>",
			want: true,
		},
		{
			name: "plain statement text",
			text: sampleStatement,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOFX(tt.text); got != tt.want {
				t.Errorf("IsOFX() = %v; want %v", got, tt.want)
			}
		})
	}
}
