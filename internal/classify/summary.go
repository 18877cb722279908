package classify

import (
	"fmt"
	"strings"
)

// Summary aggregates a change record sequence. It is always derived from the
// records, never mutated independently.
type Summary struct {
	Counts map[Category]int `json:"counts"`
	Total  int              `json:"total"`
	Text   string           `json:"text"`
}

// summaryOrder fixes the sentence order of categories.
var summaryOrder = []struct {
	cat  Category
	noun string
}{
	{CategorySpelling, "spelling error(s)"},
	{CategoryOCRArtifact, "OCR artifact(s)"},
	{CategoryFormatting, "formatting issue(s)"},
	{CategoryOther, "other change(s)"},
}

// Summarize computes per-category counts, the total count and the
// fixed-template description sentence. Zero-count categories are omitted
// from the sentence.
func Summarize(records []ChangeRecord) Summary {
	counts := make(map[Category]int)
	for _, r := range records {
		counts[r.Category]++
	}

	s := Summary{Counts: counts, Total: len(records)}
	if len(records) == 0 {
		s.Text = "No changes were made to the text."
		return s
	}

	var parts []string
	for _, e := range summaryOrder {
		if n := counts[e.cat]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, e.noun))
		}
	}
	s.Text = "Fixed " + joinList(parts) + "."
	return s
}

// joinList renders "a", "a and b" or "a, b, and c".
func joinList(parts []string) string {
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
}
