package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
)

// DefaultModel is the Gemini model used for statement extraction.
const DefaultModel = "gemini-2.0-flash"

// maxDocumentChars caps how much of a statement is sent to the model. Bank
// statements that exceed this are almost always scans gone wrong.
const maxDocumentChars = 200_000

// Gemini extracts transaction candidates from free-form statement text using
// a Gemini text model. It is the primary extractor for PDF-derived text where
// no structured format is available.
type Gemini struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

// NewGemini creates a Gemini-backed extractor. Credentials come from the
// environment (GEMINI_API_KEY or application default credentials).
func NewGemini(ctx context.Context, model string, logger zerolog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

// Name returns the extractor identifier.
func (g *Gemini) Name() string {
	return "gemini"
}

// Extract asks the model for every transaction line in the document and
// parses the JSON array it returns. An empty array is not an error here; the
// caller decides whether zero candidates warrants a fallback.
func (g *Gemini) Extract(ctx context.Context, documentText string) ([]domain.Candidate, error) {
	if len(documentText) > maxDocumentChars {
		return nil, fmt.Errorf("document too large for extraction: %d chars (max %d)", len(documentText), maxDocumentChars)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildExtractionPrompt(documentText)}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return nil, fmt.Errorf("model returned empty extraction response")
	}

	candidates, err := parseExtractionResponse(raw)
	if err != nil {
		g.logger.Warn().Err(err).Int("responseLen", len(raw)).
			Msg("unparseable extraction response")
		return nil, err
	}
	return candidates, nil
}

type extractedLine struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Balance     string `json:"balance"`
}

func parseExtractionResponse(raw string) ([]domain.Candidate, error) {
	cleaned := cleanModelJSON(raw)

	var lines []extractedLine
	if err := json.Unmarshal([]byte(cleaned), &lines); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response as JSON array: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(lines))
	for i, line := range lines {
		date, err := parseStatementDate(line.Date)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		description := strings.TrimSpace(line.Description)
		if description == "" {
			return nil, fmt.Errorf("line %d: empty description", i)
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(line.Amount, ",", ""))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid amount %q: %w", i, line.Amount, err)
		}

		c := domain.Candidate{
			Date:        date,
			Description: description,
			Amount:      amount,
		}
		if line.Balance != "" {
			balance, err := decimal.NewFromString(strings.ReplaceAll(line.Balance, ",", ""))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid balance %q: %w", i, line.Balance, err)
			}
			c.Balance = balance
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

var statementDateLayouts = []string{
	"2006-01-02",
	"02 Jan 2006",
	"02/01/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

func parseStatementDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range statementDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func buildExtractionPrompt(documentText string) string {
	var b strings.Builder
	b.WriteString("Extract every transaction from the following bank statement text.\n\n")
	b.WriteString("Respond ONLY with a JSON array where each element has the form:\n")
	b.WriteString("{ \"date\": \"YYYY-MM-DD\", \"description\": \"...\", \"amount\": \"-12.34\", \"balance\": \"100.00\" }\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- amount is negative for money leaving the account and positive for money arriving\n")
	b.WriteString("- balance is the running balance after the transaction; use \"\" if the statement does not show one\n")
	b.WriteString("- keep the description exactly as printed, collapsed to a single line\n")
	b.WriteString("- do not invent transactions; if there are none, respond with []\n\n")
	b.WriteString("Statement text:\n\n")
	b.WriteString(documentText)
	return b.String()
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if start := strings.IndexAny(s, "[{"); start != -1 {
		if end := strings.LastIndexAny(s, "]}"); end != -1 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}
