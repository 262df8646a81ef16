package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/rumor-ml/commons.systems/ledgerd/internal/domain"
)

// DefaultModel is the Gemini model used for classification.
const DefaultModel = "gemini-2.0-flash"

// Gemini classifies transactions with a Gemini text model. The prompt pins
// the answer to the fixed taxonomy and the response is validated against it,
// so a hallucinated category degrades to Uncategorized rather than leaking
// into the ledger.
type Gemini struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

// NewGemini creates a Gemini-backed classifier. Credentials come from the
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

// Classify implements Classifier. Never returns an error; failures degrade
// to Uncategorized.
func (g *Gemini) Classify(ctx context.Context, description string, amount decimal.Decimal) Result {
	prompt := buildPrompt(description, amount)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		g.logger.Warn().Err(err).Str("description", description).
			Msg("classification request failed, falling back to Uncategorized")
		return Uncategorized()
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		g.logger.Warn().Str("description", description).
			Msg("empty classification response, falling back to Uncategorized")
		return Uncategorized()
	}

	var parsed struct {
		Category    string `json:"category"`
		SubCategory string `json:"subCategory"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &parsed); err != nil {
		g.logger.Warn().Err(err).Str("response", raw).
			Msg("unparseable classification response, falling back to Uncategorized")
		return Uncategorized()
	}

	result, ok := sanitize(parsed.Category, parsed.SubCategory)
	if !ok {
		g.logger.Warn().Str("category", parsed.Category).Str("subCategory", parsed.SubCategory).
			Msg("out-of-taxonomy classification, falling back to Uncategorized")
	}
	return result
}

func buildPrompt(description string, amount decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("Categorize the following financial transaction.\n\n")
	b.WriteString("Choose the \"category\" strictly from this list:\n")
	for _, c := range domain.Categories() {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\nChoose the \"subCategory\" strictly from the allowed list under each category shown below:\n")
	for _, c := range domain.Categories() {
		fmt.Fprintf(&b, "\n%s:\n", c)
		for _, s := range domain.Taxonomy[c] {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	fmt.Fprintf(&b, "\nTransaction details:\nDescription: %q\nAmount: %s\n\n", description, amount)
	b.WriteString("Respond ONLY with a JSON object in the format:\n")
	b.WriteString("{ \"category\": \"...\", \"subCategory\": \"...\" }\n\n")
	b.WriteString("Do not add anything else. Use only valid entries from the above lists.\n")
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
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}
