package ollama

import (
	"strings"

	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/chunking"
)

const maxSnippet = 6000

var excerpts = chunking.NewSplitter(1000, 0)

func buildAnalysisPrompt(title, text string) string {
	snippet := excerpts.Excerpt(text, maxSnippet)

	var b strings.Builder
	b.WriteString(`You analyze insolvency and bankruptcy forms.
Return strict JSON object with keys:
client_name (string, debtor or client full name),
form_type (string, e.g. "Consumer Proposal"),
form_number (string, e.g. "47"),
confidence (number from 0 to 1),
summary (string),
risks (array of objects with keys type, severity ("high", "medium" or "low"), description, recommendation, regulatory_reference, field_location, deadline (YYYY-MM-DD or empty)).
No markdown, no extra keys.

Title: `)
	b.WriteString(strings.TrimSpace(title))
	b.WriteString("\n\nDocument:\n")
	b.WriteString(snippet)
	return b.String()
}
