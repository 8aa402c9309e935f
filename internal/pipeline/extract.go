package pipeline

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Fields holds the structured values recovered from OCR text. An empty
// string means the field was not detected; a populated field is always a
// validated value of the right shape, never a placeholder.
type Fields struct {
	Amount string `json:"amount"` // formatted with exactly two decimal places
	Date   string `json:"date"`   // M/D/YYYY with "/" separators
}

var (
	// A currency amount only counts when it sits right after one of these
	// anchor keywords; a bare "$19.99" elsewhere in the text is noise.
	// Longer phrases come first so the alternation prefers them.
	amountPattern = regexp.MustCompile(`(?i)(?:grand\s*total|amount\s*due|payment|total|balance|due)\s*[:#.\-]*\s*\$?\s*([0-9][0-9,]*\.[0-9]{2})\b`)

	datePattern = regexp.MustCompile(`\b([0-9]{1,2})[-/]([0-9]{1,2})[-/]([0-9]{4})\b`)
)

// Extract applies pattern-matching heuristics over raw OCR text to recover a
// monetary total and a purchase date. It is a pure function: deterministic,
// no I/O, total over any string.
//
// Amount: every keyword-anchored two-decimal amount is a candidate and the
// numeric maximum wins. Receipts often list subtotal and tax lines before the
// final total, so the largest anchored amount is the closest proxy for the
// true total. This is a documented heuristic, not a guaranteed detector.
//
// Date: the first D{1,2} sep D{1,2} sep DDDD match wins, with separators
// normalized to "/". Month/day ranges are not validated here; malformed
// calendar values pass through uninterpreted.
func Extract(text string) Fields {
	var fields Fields

	var best decimal.Decimal
	found := false
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		candidate, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			continue
		}
		if !found || candidate.GreaterThan(best) {
			best = candidate
			found = true
		}
	}
	if found {
		fields.Amount = best.StringFixed(2)
	}

	if m := datePattern.FindStringSubmatch(text); m != nil {
		fields.Date = m[1] + "/" + m[2] + "/" + m[3]
	}

	return fields
}
