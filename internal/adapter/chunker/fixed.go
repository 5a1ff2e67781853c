package chunker

import (
	"unicode/utf8"

	"copilot/internal/domain"
)

// fixedGroups packs sentence spans into groups of at most maxSize
// characters, splitting inside a sentence only when a single span alone
// exceeds maxSize. It is the fallback when semantic boundaries are
// unavailable and the refine pass for oversized semantic chunks.
func fixedGroups(text string, spans []domain.TextSpan, maxSize int) [][]domain.TextSpan {
	var groups [][]domain.TextSpan
	var current []domain.TextSpan

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
	}

	for _, span := range spans {
		if len(span.Text) > maxSize {
			flush()
			for _, piece := range splitSpan(span, maxSize) {
				groups = append(groups, []domain.TextSpan{piece})
			}
			continue
		}

		if len(current) > 0 && span.End-current[0].Start > maxSize {
			flush()
		}
		current = append(current, span)
	}
	flush()

	return groups
}

// splitSpan cuts one oversized sentence into contiguous sub-spans of at
// most maxSize bytes, preferring to cut at the last space inside the
// window and never splitting a UTF-8 rune. Each step strictly shrinks
// the remainder, guaranteeing termination.
func splitSpan(span domain.TextSpan, maxSize int) []domain.TextSpan {
	var pieces []domain.TextSpan
	text := span.Text
	offset := span.Start

	for len(text) > maxSize {
		cut := maxSize
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if at := lastSpace(text[:cut]); at > 0 {
			cut = at
		}
		if cut == 0 {
			cut = maxSize
		}
		pieces = append(pieces, domain.TextSpan{
			Start: offset,
			End:   offset + cut,
			Text:  text[:cut],
		})
		offset += cut
		text = text[cut:]
	}
	if len(text) > 0 {
		pieces = append(pieces, domain.TextSpan{
			Start: offset,
			End:   offset + len(text),
			Text:  text,
		})
	}
	return pieces
}

func lastSpace(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' {
			return i + 1
		}
	}
	return -1
}
