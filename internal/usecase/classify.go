package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"copilot/internal/domain"
	"copilot/internal/port"
)

// Classifier triages a query or ticket into topic, sentiment and
// priority labels drawn from closed vocabularies. Malformed or
// out-of-vocabulary model output degrades to the vocabulary fallback
// instead of failing the run.
type Classifier struct {
	completer port.Completer
	vocab     domain.Vocabulary
}

// NewClassifier creates a classifier over the given vocabulary.
func NewClassifier(completer port.Completer, vocab domain.Vocabulary) *Classifier {
	return &Classifier{completer: completer, vocab: vocab}
}

const classifySystemPrompt = "You are an expert support ticket classification system for a data catalog product. You respond with a single JSON object and nothing else."

type classifierOutput struct {
	Topic               string  `json:"topic"`
	Sentiment           string  `json:"sentiment"`
	Priority            string  `json:"priority"`
	TopicConfidence     float64 `json:"topic_confidence"`
	SentimentConfidence float64 `json:"sentiment_confidence"`
	PriorityConfidence  float64 `json:"priority_confidence"`
}

// Classify labels one piece of text. When the model output cannot be
// validated the vocabulary fallback is returned together with an error
// wrapping ErrMalformedOutput; the caller records it and proceeds.
// Provider errors are returned as-is and end the run.
func (c *Classifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	raw, err := c.completer.Complete(ctx, classifySystemPrompt, c.prompt(text))
	if err != nil {
		return c.vocab.Fallback(), err
	}

	var out classifierOutput
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &out); err != nil {
		return c.vocab.Fallback(), fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}

	result := domain.Classification{
		Topic:               out.Topic,
		Sentiment:           out.Sentiment,
		Priority:            out.Priority,
		TopicConfidence:     clamp01(out.TopicConfidence),
		SentimentConfidence: clamp01(out.SentimentConfidence),
		PriorityConfidence:  clamp01(out.PriorityConfidence),
	}
	if !c.vocab.HasTopic(result.Topic) || !c.vocab.HasSentiment(result.Sentiment) || !c.vocab.HasPriority(result.Priority) {
		return c.vocab.Fallback(), fmt.Errorf("%w: labels out of vocabulary: %q/%q/%q",
			domain.ErrMalformedOutput, result.Topic, result.Sentiment, result.Priority)
	}
	return result, nil
}

func (c *Classifier) prompt(text string) string {
	var b strings.Builder
	b.WriteString("Classify the following support request.\n\n")
	b.WriteString("Choose exactly one label per category:\n")
	fmt.Fprintf(&b, "- topic: %s\n", quoteList(c.vocab.Topics))
	fmt.Fprintf(&b, "- sentiment: %s\n", quoteList(c.vocab.Sentiments))
	fmt.Fprintf(&b, "- priority: %s (most to least urgent)\n\n", quoteList(c.vocab.Priorities))
	b.WriteString("Also provide a confidence between 0.0 and 1.0 per category.\n\n")
	b.WriteString("Respond with exactly this JSON shape:\n")
	b.WriteString(`{"topic": "...", "sentiment": "...", "priority": "...", "topic_confidence": 0.0, "sentiment_confidence": 0.0, "priority_confidence": 0.0}`)
	b.WriteString("\n\nSupport request:\n---\n")
	b.WriteString(text)
	b.WriteString("\n---\n")
	return b.String()
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}

// stripCodeFence removes a surrounding markdown code fence, which
// models add around JSON despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
