package receipt

import (
	"fmt"
	"regexp"
)

// User-facing and OCR-extracted dates arrive as M/D/YYYY (or with dashes);
// persisted dates are YYYY-MM-DD. The conversions below are mechanical
// component rearrangements: month/day ranges are deliberately not validated,
// so a malformed OCR date like 13/45/2024 round-trips instead of being
// silently rewritten.

var (
	entryDatePattern   = regexp.MustCompile(`^([0-9]{1,2})[-/]([0-9]{1,2})[-/]([0-9]{4})$`)
	storageDatePattern = regexp.MustCompile(`^([0-9]{4})-([0-9]{2})-([0-9]{2})$`)
)

// ToStorageDate converts an M/D/YYYY string to YYYY-MM-DD, zero-padding
// single-digit components.
func ToStorageDate(s string) (string, error) {
	m := entryDatePattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("date %q is not in MM/DD/YYYY form", s)
	}
	return fmt.Sprintf("%s-%s-%s", m[3], pad2(m[1]), pad2(m[2])), nil
}

// FromStorageDate converts a YYYY-MM-DD string back to MM/DD/YYYY. Values
// not in storage form are returned unchanged.
func FromStorageDate(s string) string {
	m := storageDatePattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return fmt.Sprintf("%s/%s/%s", m[2], m[3], m[1])
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
