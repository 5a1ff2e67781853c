package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Document is a raw piece of knowledge-base content handed to the
// segmentation engine: a (url, title, text) tuple from a scraper or
// file import. SourceID identifies the document across re-ingestions.
type Document struct {
	SourceID string
	URL      string
	Title    string
	Text     string
}

// TextSpan is a single sentence-level span of a source text.
// Spans are non-overlapping, ordered, and Start/End are byte offsets
// into the text they were split from.
type TextSpan struct {
	Start int
	End   int
	Text  string
}

// Chunk is a retrieval-unit-sized, sentence-aligned contiguous span of a
// source document. Start/End are byte offsets into the segmented text.
type Chunk struct {
	SourceID string
	URL      string
	Title    string
	Start    int
	End      int
	Text     string
}

// Size returns the chunk size in characters.
func (c Chunk) Size() int {
	return len(c.Text)
}

// Key returns the identity of a chunk for idempotent upserts:
// re-ingesting the same (source, offsets) overwrites, never duplicates.
func (c Chunk) Key() string {
	data := fmt.Sprintf("%s:%d-%d", c.SourceID, c.Start, c.End)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// RankedPassage is one result of a retrieval query.
type RankedPassage struct {
	SourceID   string
	URL        string
	Title      string
	Start      int
	End        int
	Score      float64
	Snippet    string
	Collection string
}

// Overlaps reports whether two passages cover overlapping offset ranges
// of the same source document.
func (p RankedPassage) Overlaps(other RankedPassage) bool {
	if p.SourceID != other.SourceID {
		return false
	}
	return p.Start < other.End && other.Start < p.End
}

// Classification is the structured triage result for a query or ticket.
// Topic, Sentiment and Priority are drawn from closed vocabularies
// supplied as configuration.
type Classification struct {
	Topic               string  `json:"topic"`
	Sentiment           string  `json:"sentiment"`
	Priority            string  `json:"priority"`
	TopicConfidence     float64 `json:"topic_confidence"`
	SentimentConfidence float64 `json:"sentiment_confidence"`
	PriorityConfidence  float64 `json:"priority_confidence"`
}

// Citation is a numbered reference to a retrieved passage that grounds
// part of an assembled answer. Numbers follow passage rank order.
type Citation struct {
	Number  int     `json:"number"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Answer is the assembled response to a query.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// Ticket is a customer-support ticket fetched from the document store.
type Ticket struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Processed bool   `json:"processed"`
}

// Resolution statuses.
const (
	StatusResolved = "resolved"
	StatusRouted   = "routed"
	StatusFailed   = "failed"
)

// Resolution is the outcome of running a ticket through the pipeline.
type Resolution struct {
	TicketID       string         `json:"ticket_id"`
	Classification Classification `json:"classification"`
	Answer         Answer         `json:"answer"`
	Status         string         `json:"status"`
	RoutedTo       string         `json:"routed_to,omitempty"`
}
