// Package align computes a deterministic alignment between an original OCR
// transcript and its corrected counterpart.
//
// The alignment is produced at word-token granularity, with whitespace runs
// kept as their own token class so that formatting-only differences survive
// the diff. The output is a sequence of spans whose original sides
// concatenate back to the original text and whose corrected sides
// concatenate back to the corrected text, exactly.
package align

import (
	"errors"
	"strings"
	"unicode"
)

// DefaultMaxTextBytes bounds the size of each input text (10MB).
const DefaultMaxTextBytes = 10 << 20

// ErrTextTooLarge is returned when an input exceeds the configured maximum.
// Oversized inputs fail fast instead of degrading silently.
var ErrTextTooLarge = errors.New("input text exceeds the maximum size")

// Op identifies the kind of an aligned span.
type Op uint8

const (
	// OpEqual marks text present unchanged on both sides.
	OpEqual Op = iota
	// OpReplace marks original text substituted by corrected text.
	OpReplace
	// OpInsert marks text present only on the corrected side.
	OpInsert
	// OpDelete marks text present only on the original side.
	OpDelete
)

// String returns a short name for the op.
func (op Op) String() string {
	switch op {
	case OpEqual:
		return "equal"
	case OpReplace:
		return "replace"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Span is one contiguous aligned region. Original is empty for inserts and
// Corrected is empty for deletes.
type Span struct {
	Op        Op
	Original  string
	Corrected string
}

// Align aligns the two texts using the default size limit.
func Align(original, corrected string) ([]Span, error) {
	return AlignWithLimit(original, corrected, DefaultMaxTextBytes)
}

// AlignWithLimit aligns the two texts, rejecting inputs larger than maxBytes.
// A non-positive maxBytes disables the size check.
//
// Identical inputs yield a single equal span (or no spans for empty input).
// Repeated calls with the same inputs yield identical output: ties between
// minimal alignments are broken toward the longest matching prefix.
func AlignWithLimit(original, corrected string, maxBytes int) ([]Span, error) {
	if maxBytes > 0 && (len(original) > maxBytes || len(corrected) > maxBytes) {
		return nil, ErrTextTooLarge
	}
	if original == corrected {
		if original == "" {
			return nil, nil
		}
		return []Span{{Op: OpEqual, Original: original, Corrected: original}}, nil
	}

	ot := tokenize(original)
	ct := tokenize(corrected)

	// Trim the common prefix and suffix before running the LCS.
	p := 0
	for p < len(ot) && p < len(ct) && ot[p] == ct[p] {
		p++
	}
	s := 0
	for s < len(ot)-p && s < len(ct)-p && ot[len(ot)-1-s] == ct[len(ct)-1-s] {
		s++
	}

	var spans []Span
	if p > 0 {
		pre := strings.Join(ot[:p], "")
		spans = append(spans, Span{Op: OpEqual, Original: pre, Corrected: pre})
	}
	spans = append(spans, lcsSpans(ot[p:len(ot)-s], ct[p:len(ct)-s])...)
	if s > 0 {
		suf := strings.Join(ot[len(ot)-s:], "")
		spans = append(spans, Span{Op: OpEqual, Original: suf, Corrected: suf})
	}

	spans = coalesce(spans)
	spans = refine(spans)
	spans = mergeEquals(spans)
	return spans, nil
}

// tokenize splits s into alternating runs of whitespace and non-whitespace.
// Concatenating the tokens reproduces s.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	var toks []string
	start := 0
	inSpace := false
	for i, r := range s {
		sp := unicode.IsSpace(r)
		if i == 0 {
			inSpace = sp
			continue
		}
		if sp != inSpace {
			toks = append(toks, s[start:i])
			start = i
			inSpace = sp
		}
	}
	return append(toks, s[start:])
}

// lcsSpans produces per-token spans for the middle section. The LCS is
// computed with Hirschberg's divide and conquer, so memory stays linear in
// the token count instead of quadratic; two fully divergent inputs near the
// size limit must not exhaust memory.
func lcsSpans(o, c []string) []Span {
	if len(o) == 0 && len(c) == 0 {
		return nil
	}
	spans := make([]Span, 0, 16)
	alignTokens(o, c, &spans)
	return spans
}

// alignTokens appends the span sequence for o against c. Base cases resolve
// single-token sides by scanning for the first match, which keeps ties
// breaking toward the longest matching prefix.
func alignTokens(o, c []string, out *[]Span) {
	switch {
	case len(o) == 0:
		for _, tok := range c {
			*out = append(*out, Span{Op: OpInsert, Corrected: tok})
		}
	case len(c) == 0:
		for _, tok := range o {
			*out = append(*out, Span{Op: OpDelete, Original: tok})
		}
	case len(o) == 1:
		alignSingleOriginal(o[0], c, out)
	case len(c) == 1:
		alignSingleCorrected(o, c[0], out)
	default:
		mid := len(o) / 2
		left := lcsRow(o[:mid], c, false)
		right := lcsRow(o[mid:], c, true)
		split, best := 0, int32(-1)
		for j := 0; j <= len(c); j++ {
			if s := left[j] + right[len(c)-j]; s > best {
				split, best = j, s
			}
		}
		alignTokens(o[:mid], c[:split], out)
		alignTokens(o[mid:], c[split:], out)
	}
}

// alignSingleOriginal aligns one original token against c: inserts up to
// the first occurrence, or deletes the token when c never contains it.
func alignSingleOriginal(tok string, c []string, out *[]Span) {
	for j, ct := range c {
		if ct == tok {
			for _, t := range c[:j] {
				*out = append(*out, Span{Op: OpInsert, Corrected: t})
			}
			*out = append(*out, Span{Op: OpEqual, Original: tok, Corrected: tok})
			for _, t := range c[j+1:] {
				*out = append(*out, Span{Op: OpInsert, Corrected: t})
			}
			return
		}
	}
	*out = append(*out, Span{Op: OpDelete, Original: tok})
	for _, t := range c {
		*out = append(*out, Span{Op: OpInsert, Corrected: t})
	}
}

// alignSingleCorrected aligns o against one corrected token: deletes up to
// the first occurrence, or inserts the token after deleting everything.
func alignSingleCorrected(o []string, tok string, out *[]Span) {
	for i, ot := range o {
		if ot == tok {
			for _, t := range o[:i] {
				*out = append(*out, Span{Op: OpDelete, Original: t})
			}
			*out = append(*out, Span{Op: OpEqual, Original: tok, Corrected: tok})
			for _, t := range o[i+1:] {
				*out = append(*out, Span{Op: OpDelete, Original: t})
			}
			return
		}
	}
	for _, t := range o {
		*out = append(*out, Span{Op: OpDelete, Original: t})
	}
	*out = append(*out, Span{Op: OpInsert, Corrected: tok})
}

// lcsRow returns the LCS lengths of o against every prefix of c, or every
// suffix when reversed, using two rolling rows.
func lcsRow(o, c []string, reversed bool) []int32 {
	prev := make([]int32, len(c)+1)
	cur := make([]int32, len(c)+1)
	for i := 0; i < len(o); i++ {
		oi := o[i]
		if reversed {
			oi = o[len(o)-1-i]
		}
		for j := 1; j <= len(c); j++ {
			cj := c[j-1]
			if reversed {
				cj = c[len(c)-j]
			}
			switch {
			case oi == cj:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev
}

// coalesce merges adjacent equal spans and folds every maximal run of
// non-equal spans into a single replace/insert/delete.
func coalesce(spans []Span) []Span {
	var out []Span
	var obuf, cbuf strings.Builder

	flush := func() {
		o, c := obuf.String(), cbuf.String()
		obuf.Reset()
		cbuf.Reset()
		switch {
		case o == "" && c == "":
		case o == "":
			out = append(out, Span{Op: OpInsert, Corrected: c})
		case c == "":
			out = append(out, Span{Op: OpDelete, Original: o})
		default:
			out = append(out, Span{Op: OpReplace, Original: o, Corrected: c})
		}
	}

	for _, sp := range spans {
		if sp.Op != OpEqual {
			obuf.WriteString(sp.Original)
			cbuf.WriteString(sp.Corrected)
			continue
		}
		flush()
		if n := len(out); n > 0 && out[n-1].Op == OpEqual {
			out[n-1].Original += sp.Original
			out[n-1].Corrected += sp.Corrected
		} else {
			out = append(out, sp)
		}
	}
	flush()
	return out
}

// mergeEquals joins adjacent equal spans, which refinement can leave next
// to the surrounding equal context.
func mergeEquals(spans []Span) []Span {
	out := spans[:0]
	for _, sp := range spans {
		if n := len(out); n > 0 && sp.Op == OpEqual && out[n-1].Op == OpEqual {
			out[n-1].Original += sp.Original
			out[n-1].Corrected += sp.Corrected
			continue
		}
		out = append(out, sp)
	}
	return out
}

// refine re-aligns replace spans whose sides tokenize into the same shape,
// so unrelated word substitutions inside one span are reported separately
// instead of as a single bulk rewrite.
func refine(spans []Span) []Span {
	out := make([]Span, 0, len(spans))
	for _, sp := range spans {
		if sp.Op != OpReplace {
			out = append(out, sp)
			continue
		}
		out = append(out, refineReplace(sp.Original, sp.Corrected)...)
	}
	return out
}

// charRefineMaxBytes bounds character-level re-alignment of a diverging
// replace span; larger spans are reported whole.
const charRefineMaxBytes = 4096

func refineReplace(o, c string) []Span {
	ot, ct := tokenize(o), tokenize(c)
	if len(ot) == len(ct) && len(ot) >= 2 && sameTokenShape(ot, ct) {
		spans := make([]Span, 0, len(ot))
		for k := range ot {
			if ot[k] == ct[k] {
				spans = append(spans, Span{Op: OpEqual, Original: ot[k], Corrected: ct[k]})
			} else {
				spans = append(spans, Span{Op: OpReplace, Original: ot[k], Corrected: ct[k]})
			}
		}
		return spans
	}
	// Word tokens diverge in count or shape. Fall back to character-level
	// alignment for multi-word spans so a large rewrite is split at its
	// shared runs instead of being reported as one bulk block.
	if len(ot) >= 2 && len(ct) >= 2 && len(o) <= charRefineMaxBytes && len(c) <= charRefineMaxBytes {
		return charSpans(o, c)
	}
	return []Span{{Op: OpReplace, Original: o, Corrected: c}}
}

// sameTokenShape reports whether the token lists alternate between word and
// whitespace runs identically: never pair a word with a whitespace run.
func sameTokenShape(ot, ct []string) bool {
	for k := range ot {
		if isSpaceToken(ot[k]) != isSpaceToken(ct[k]) {
			return false
		}
	}
	return true
}

// charSpans aligns a replace span at rune granularity and folds the result
// back into contiguous spans.
func charSpans(o, c string) []Span {
	spans := make([]Span, 0, 8)
	alignTokens(explodeRunes(o), explodeRunes(c), &spans)
	return coalesce(spans)
}

func explodeRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func isSpaceToken(tok string) bool {
	for _, r := range tok {
		return unicode.IsSpace(r)
	}
	return false
}
