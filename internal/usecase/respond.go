package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"copilot/internal/domain"
	"copilot/internal/port"
)

// InsufficientInfoAnswer is returned verbatim when no evidence passage
// is available. It carries no citations.
const InsufficientInfoAnswer = "I could not find a specific answer to your question in the documentation. Please try rephrasing your question or asking about a broader topic."

// Responder assembles a grounded answer with numbered citations from
// retrieved passages.
type Responder struct {
	completer port.Completer
}

// NewResponder creates a response assembler.
func NewResponder(completer port.Completer) *Responder {
	return &Responder{completer: completer}
}

const respondSystemPrompt = "You are a helpful customer support assistant for a data catalog product. You answer strictly from the provided documentation passages and never invent information."

var (
	citationRef = regexp.MustCompile(`\[(\d+)\]`)
	spaceRun    = regexp.MustCompile(` {2,}`)
)

// Assemble generates an answer grounded only in the supplied passages.
// Empty passages short-circuit to the fixed insufficient-information
// answer without calling the model. Citation references in the
// generated text are validated afterwards: dangling references are
// stripped and only cited passages appear in the citation list.
func (r *Responder) Assemble(ctx context.Context, query string, passages []domain.RankedPassage) (domain.Answer, error) {
	if len(passages) == 0 {
		return domain.Answer{Text: InsufficientInfoAnswer}, nil
	}

	text, err := r.completer.Complete(ctx, respondSystemPrompt, r.prompt(query, passages))
	if err != nil {
		return domain.Answer{}, err
	}

	return buildAnswer(strings.TrimSpace(text), passages), nil
}

func (r *Responder) prompt(query string, passages []domain.RankedPassage) string {
	var b strings.Builder
	b.WriteString("Answer the user's question using ONLY the numbered passages below.\n")
	b.WriteString("Cite passages inline with their number in square brackets, e.g. [1].\n")
	b.WriteString("Do not reference passages that are not listed. If the passages do not answer the question, say so.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nPassages:\n", query)
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, p.Title, p.URL, p.Snippet)
	}
	b.WriteString("Answer:")
	return b.String()
}

// buildAnswer validates the citation references in text against the
// passage list: references beyond the list are removed, and the
// returned citations contain exactly the numbers still referenced.
func buildAnswer(text string, passages []domain.RankedPassage) domain.Answer {
	used := make(map[int]bool)
	cleaned := citationRef.ReplaceAllStringFunc(text, func(ref string) string {
		n, err := strconv.Atoi(ref[1 : len(ref)-1])
		if err != nil || n < 1 || n > len(passages) {
			return ""
		}
		used[n] = true
		return ref
	})
	cleaned = strings.TrimSpace(spaceRun.ReplaceAllString(cleaned, " "))

	var citations []domain.Citation
	for i, p := range passages {
		if !used[i+1] {
			continue
		}
		citations = append(citations, domain.Citation{
			Number:  i + 1,
			Title:   p.Title,
			URL:     p.URL,
			Snippet: p.Snippet,
			Score:   p.Score,
		})
	}
	return domain.Answer{Text: cleaned, Citations: citations}
}

// RoutingAnswer builds the acknowledgement sent when a ticket's topic
// is outside the assistant's answerable set and is handed to a team.
func RoutingAnswer(topic, team string) domain.Answer {
	text := fmt.Sprintf(
		"This ticket has been classified as a %q issue and routed to our %s. They will review it and follow up with you directly.",
		topic, team)
	return domain.Answer{Text: text}
}
