package sink

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// NormalizePopulation turns a scraped population cell into a head count.
// Full-width digits are folded, thousands separators and a trailing unit
// suffix are stripped, and empty, "nan" or unreadable values become 0.
func NormalizePopulation(raw string) int {
	s := strings.TrimSpace(width.Fold.String(raw))
	if s == "" || strings.EqualFold(s, "nan") {
		return 0
	}

	s = strings.NewReplacer(",", "", "，", "", " ", "").Replace(s)
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	// spreadsheets re-save integer columns with a .0 suffix
	if whole, frac, ok := strings.Cut(s, "."); ok && strings.Trim(frac, "0") == "" {
		s = whole
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
