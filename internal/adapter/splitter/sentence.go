// Package splitter detects sentence boundaries in raw text.
package splitter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"copilot/internal/domain"
)

// abbreviations that commonly precede a period without ending a sentence.
// The detector is a heuristic, not grammatically complete: initials and
// unusual abbreviations followed by a capital still split.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "st": {},
	"vs": {}, "etc": {}, "e.g": {}, "i.e": {}, "inc": {}, "ltd": {},
	"co": {}, "fig": {}, "no": {}, "dept": {}, "approx": {},
}

// Splitter turns raw text into an ordered sequence of sentence spans.
// Spans carry byte offsets into the input, are non-overlapping, and
// together with the skipped inter-sentence whitespace reconstruct the
// input losslessly.
type Splitter struct{}

// New creates a sentence splitter.
func New() *Splitter {
	return &Splitter{}
}

// Split returns the sentence spans of text in order. Empty or
// whitespace-only input yields no spans.
func (s *Splitter) Split(text string) []domain.TextSpan {
	var spans []domain.TextSpan
	start := -1

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])

		if start < 0 {
			if !unicode.IsSpace(r) {
				start = i
			}
			i += size
			continue
		}

		if r == '.' || r == '!' || r == '?' {
			end := i + size
			if s.isBoundary(text, start, i, end) {
				spans = append(spans, domain.TextSpan{
					Start: start,
					End:   end,
					Text:  text[start:end],
				})
				start = -1
			}
			i = end
			continue
		}

		i += size
	}

	if start >= 0 {
		end := len(text)
		for end > start {
			r, size := utf8.DecodeLastRuneInString(text[start:end])
			if !unicode.IsSpace(r) {
				break
			}
			end -= size
		}
		if end > start {
			spans = append(spans, domain.TextSpan{
				Start: start,
				End:   end,
				Text:  text[start:end],
			})
		}
	}

	return spans
}

// isBoundary decides whether the terminator at punct ends a sentence.
// A boundary needs whitespace after the terminator followed by a capital
// letter, a digit, an opening quote, or end-of-text; a period after a
// known abbreviation does not split.
func (s *Splitter) isBoundary(text string, start, punct, after int) bool {
	if after >= len(text) {
		return true
	}

	r, size := utf8.DecodeRuneInString(text[after:])
	if !unicode.IsSpace(r) {
		return false
	}

	if text[punct] == '.' && s.isAbbreviation(text[start:punct]) {
		return false
	}

	j := after
	for j < len(text) {
		r, size = utf8.DecodeRuneInString(text[j:])
		if !unicode.IsSpace(r) {
			break
		}
		j += size
	}
	if j >= len(text) {
		return true
	}
	if r == '"' || r == '\'' || r == '(' {
		next, _ := utf8.DecodeRuneInString(text[j+size:])
		r = next
	}
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

// isAbbreviation reports whether the word ending the sentence candidate
// is a known abbreviation. Single capitals ("A.") are treated as real
// sentence ends, not initials.
func (s *Splitter) isAbbreviation(sentence string) bool {
	idx := strings.LastIndexFunc(sentence, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	word := sentence[idx+1:]
	word = strings.TrimLeft(word, "(\"'")
	if word == "" || len(word) == 1 {
		return false
	}
	_, ok := abbreviations[strings.ToLower(word)]
	return ok
}

// Clean consolidates runs of whitespace into single spaces. Applied to
// scraped content before segmentation.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
