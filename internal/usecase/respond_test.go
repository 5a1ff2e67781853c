package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"copilot/internal/domain"
)

func passagesFixture() []domain.RankedPassage {
	return []domain.RankedPassage{
		{SourceID: "d1", Title: "Connecting Snowflake", URL: "https://docs.example.com/sf", Snippet: "Open the connector page.", Score: 0.9},
		{SourceID: "d2", Title: "Permissions", URL: "https://docs.example.com/perm", Snippet: "Grant the read role.", Score: 0.8},
	}
}

func TestAssembleEmptyPassages(t *testing.T) {
	completer := &stubCompleter{}
	r := NewResponder(completer)

	got, err := r.Assemble(context.Background(), "how do i", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != InsufficientInfoAnswer {
		t.Errorf("expected the fixed insufficient-information answer, got %q", got.Text)
	}
	if len(got.Citations) != 0 {
		t.Errorf("insufficient-information answer must carry no citations: %#v", got.Citations)
	}
	if completer.calls != 0 {
		t.Error("no model call should happen without evidence")
	}
}

func TestAssembleCitationSoundness(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		"Open the connector page [1]. Then grant the read role [2].",
	}}
	r := NewResponder(completer)

	got, err := r.Assemble(context.Background(), "how do i connect snowflake", passagesFixture())
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d: %#v", len(got.Citations), got.Citations)
	}
	for i, c := range got.Citations {
		if c.Number != i+1 {
			t.Errorf("citations must be numbered in rank order: %#v", got.Citations)
		}
		if !strings.Contains(got.Text, fmt.Sprintf("[%d]", c.Number)) {
			t.Errorf("listed citation [%d] not referenced in text %q", c.Number, got.Text)
		}
	}
}

func TestAssembleStripsDanglingReferences(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		"Open the connector page [1]. See also the admin guide [7].",
	}}
	r := NewResponder(completer)

	got, err := r.Assemble(context.Background(), "q", passagesFixture())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got.Text, "[7]") {
		t.Errorf("dangling reference must be stripped: %q", got.Text)
	}
	if len(got.Citations) != 1 || got.Citations[0].Number != 1 {
		t.Errorf("only referenced passages may be cited: %#v", got.Citations)
	}
}

func TestAssembleOmitsUnreferencedCitations(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		"Grant the read role [2].",
	}}
	r := NewResponder(completer)

	got, err := r.Assemble(context.Background(), "q", passagesFixture())
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Citations) != 1 || got.Citations[0].Number != 2 {
		t.Errorf("unreferenced passage must not be listed: %#v", got.Citations)
	}
	if got.Citations[0].Title != "Permissions" {
		t.Errorf("citation metadata must follow the passage: %#v", got.Citations[0])
	}
}

func TestAssembleProviderErrorPropagates(t *testing.T) {
	completer := &stubCompleter{err: domain.PermanentProviderError("completion", errors.New("bad key"))}
	r := NewResponder(completer)

	_, err := r.Assemble(context.Background(), "q", passagesFixture())
	if !domain.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestRoutingAnswer(t *testing.T) {
	got := RoutingAnswer("Connector", "Data Engineering Team")
	if !strings.Contains(got.Text, "Connector") || !strings.Contains(got.Text, "Data Engineering Team") {
		t.Errorf("routing answer must name topic and team: %q", got.Text)
	}
	if len(got.Citations) != 0 {
		t.Error("routing answers carry no citations")
	}
}
