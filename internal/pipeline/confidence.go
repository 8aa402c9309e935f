package pipeline

import "unicode"

// heuristicConfidence scores recognized text in 0..1 by the share of
// printable word characters. Engines that don't report per-word confidence
// (Tesseract's plain text mode, the vision backends) use this so Text always
// carries a comparable score.
func heuristicConfidence(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	var total, sane int
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) ||
			unicode.IsPunct(r) || r == '$' {
			sane++
		}
	}
	return float64(sane) / float64(total)
}
