// Package classify turns aligned spans into categorized change records and
// derives aggregate summaries from them.
//
// Categories follow a fixed taxonomy: formatting, spelling, ocr-artifact and
// other. Classification is a pure function of the span sequence; the
// heuristics are tunable through Config since the boundary between a
// misspelling and a visually-driven OCR corruption is not sharp.
package classify

import (
	"strings"
	"unicode"

	"docenhance/internal/align"
)

// Category is the classified kind of a single change.
type Category string

const (
	CategorySpelling    Category = "spelling"
	CategoryOCRArtifact Category = "ocr-artifact"
	CategoryFormatting  Category = "formatting"
	CategoryOther       Category = "other"
)

// ChangeRecord is one classified difference between the original and
// corrected text. Position is the byte offset of the original segment in the
// original text; positions are strictly increasing across a record sequence.
type ChangeRecord struct {
	Original  string   `json:"original_segment"`
	Corrected string   `json:"corrected_segment"`
	Category  Category `json:"category"`
	Position  int      `json:"position"`
}

// Config tunes the classification heuristics.
type Config struct {
	// SpellingMaxRatio is the maximum edit distance between two word-shaped
	// tokens, relative to the longer token, still counted as a misspelling.
	SpellingMaxRatio float64

	// ArtifactMaxRatio is the maximum edit distance, after applying the
	// confusion table, still counted as a visual OCR corruption.
	ArtifactMaxRatio float64

	// Confusions maps character sequences commonly misread by OCR engines to
	// their usual intended reading. Longer keys are applied first.
	Confusions map[string]string
}

// DefaultConfig returns the default heuristics. The confusion table covers
// the usual latin-script misreads; locale-specific deployments can extend it.
func DefaultConfig() Config {
	return Config{
		SpellingMaxRatio: 0.30,
		ArtifactMaxRatio: 0.40,
		Confusions: map[string]string{
			"rn": "m",
			"cl": "d",
			"vv": "w",
			"ﬁ":  "fi",
			"ﬂ":  "fl",
			"0":  "o",
			"1":  "l",
			"2":  "z",
			"5":  "s",
			"6":  "b",
			"8":  "b",
			"9":  "g",
			"|":  "l",
			"!":  "l",
			"¡":  "i",
			"€":  "e",
			"£":  "e",
		},
	}
}

// Classifier assigns categories to aligned spans.
type Classifier struct {
	cfg           Config
	confusionKeys []string
}

// New creates a classifier with the given configuration. Zero-valued ratio
// fields fall back to the defaults.
func New(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.SpellingMaxRatio <= 0 {
		cfg.SpellingMaxRatio = def.SpellingMaxRatio
	}
	if cfg.ArtifactMaxRatio <= 0 {
		cfg.ArtifactMaxRatio = def.ArtifactMaxRatio
	}
	if cfg.Confusions == nil {
		cfg.Confusions = def.Confusions
	}
	// Longest-first application order, stable across runs.
	keys := make([]string, 0, len(cfg.Confusions))
	for k := range cfg.Confusions {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && longerOrEarlier(keys[j], keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return &Classifier{cfg: cfg, confusionKeys: keys}
}

func longerOrEarlier(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b
}

// Classify maps every non-equal span to a ChangeRecord, preserving input
// order. Positions are byte offsets into the original text.
func (c *Classifier) Classify(spans []align.Span) []ChangeRecord {
	var records []ChangeRecord
	pos := 0
	for _, sp := range spans {
		if sp.Op != align.OpEqual {
			records = append(records, ChangeRecord{
				Original:  sp.Original,
				Corrected: sp.Corrected,
				Category:  c.categorize(sp.Original, sp.Corrected),
				Position:  pos,
			})
		}
		pos += len(sp.Original)
	}
	return records
}

// categorize applies the classification policy in order; first match wins.
func (c *Classifier) categorize(original, corrected string) Category {
	// Pure insertions and deletions are judged against an empty counterpart:
	// whitespace or punctuation churn is formatting, anything else is other.
	if original == "" || corrected == "" {
		side := original + corrected
		if stripSpaceAndPunct(side) == "" {
			return CategoryFormatting
		}
		return CategoryOther
	}

	if c.isFormatting(original, corrected) {
		return CategoryFormatting
	}
	if c.isSpelling(original, corrected) {
		return CategorySpelling
	}
	if c.isArtifact(original, corrected) {
		return CategoryOCRArtifact
	}
	return CategoryOther
}

// isFormatting reports whether the two segments differ only in whitespace,
// the casing of the first letter, or punctuation.
func (c *Classifier) isFormatting(o, co string) bool {
	if stripSpace(o) == stripSpace(co) {
		return true
	}
	or, cr := []rune(o), []rune(co)
	if len(or) == len(cr) && len(or) > 0 &&
		unicode.ToLower(or[0]) == unicode.ToLower(cr[0]) &&
		string(or[1:]) == string(cr[1:]) {
		return true
	}
	so, sc := stripSpaceAndPunct(o), stripSpaceAndPunct(co)
	return so == sc && so != ""
}

// isSpelling reports whether both segments are word-shaped (letters only,
// length at least 2) and close in case-insensitive edit distance.
func (c *Classifier) isSpelling(o, co string) bool {
	ot, ct := strings.TrimSpace(o), strings.TrimSpace(co)
	if !wordShaped(ot) || !wordShaped(ct) {
		return false
	}
	lo, lc := []rune(strings.ToLower(ot)), []rune(strings.ToLower(ct))
	if len(lo) > compareMaxRunes || len(lc) > compareMaxRunes {
		return false
	}
	dist := editDistance(lo, lc)
	// A single-edit difference between two words is a misspelling no matter
	// how short the word is.
	if dist <= 1 {
		return true
	}
	return withinRatio(dist, len(lo), len(lc), c.cfg.SpellingMaxRatio)
}

// isArtifact reports whether the original segment looks like a
// visual-similarity OCR corruption of the corrected one.
func (c *Classifier) isArtifact(o, co string) bool {
	ot, ct := strings.TrimSpace(o), strings.TrimSpace(co)
	if ot == "" || ct == "" {
		return false
	}
	// Characters outside a clean print alphabet are a corruption signal on
	// their own.
	for _, r := range ot {
		if !cleanRune(r) {
			return true
		}
	}
	no := []rune(c.normalizeConfusions(strings.ToLower(ot)))
	nc := []rune(strings.ToLower(ct))
	if len(no) > compareMaxRunes || len(nc) > compareMaxRunes {
		return false
	}
	return withinRatio(editDistance(no, nc), len(no), len(nc), c.cfg.ArtifactMaxRatio)
}

// normalizeConfusions rewrites known misread sequences to their intended
// reading, longest keys first.
func (c *Classifier) normalizeConfusions(s string) string {
	for _, k := range c.confusionKeys {
		s = strings.ReplaceAll(s, k, c.cfg.Confusions[k])
	}
	return s
}

func wordShaped(s string) bool {
	runes := []rune(s)
	if len(runes) < 2 {
		return false
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func withinRatio(dist, lenA, lenB int, ratio float64) bool {
	longer := lenA
	if lenB > longer {
		longer = lenB
	}
	if longer == 0 {
		return false
	}
	return float64(dist) <= ratio*float64(longer)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func stripSpaceAndPunct(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, s)
}

// cleanRune reports whether r belongs to the alphabet a clean OCR pass over
// latin-script print is expected to produce.
func cleanRune(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
		return true
	case strings.ContainsRune(`.,;:'"!?()-/&%#@`, r):
		return true
	}
	return false
}

// compareMaxRunes bounds the segment length fed to editDistance, whose
// table is quadratic in the inputs. Segments past the bound are never a
// single misread word, so the similarity checks skip them.
const compareMaxRunes = 256

// editDistance is the optimal string alignment distance: Levenshtein plus
// adjacent transpositions, which keeps swapped-letter typos ("teh") close.
func editDistance(a, b []rune) int {
	n, m := len(a), len(b)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	rows := make([][]int, n+1)
	for i := range rows {
		rows[i] = make([]int, m+1)
		rows[i][0] = i
	}
	for j := 0; j <= m; j++ {
		rows[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d := min3(rows[i-1][j]+1, rows[i][j-1]+1, rows[i-1][j-1]+cost)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				if t := rows[i-2][j-2] + 1; t < d {
					d = t
				}
			}
			rows[i][j] = d
		}
	}
	return rows[n][m]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
