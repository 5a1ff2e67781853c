package domain

// Vocabulary holds the closed label sets classification may draw from.
// Priorities are ordered highest first, so the last entry is the lowest
// priority.
type Vocabulary struct {
	Topics     []string
	Sentiments []string
	Priorities []string
}

// DefaultVocabulary returns the support-ticket label sets.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Topics: []string{
			"How-to", "Product", "Connector", "Lineage", "API/SDK",
			"SSO", "Glossary", "Best practices", "Sensitive data", "Other",
		},
		Sentiments: []string{"Frustrated", "Curious", "Angry", "Neutral"},
		Priorities: []string{"P0", "P1", "P2"},
	}
}

// HasTopic reports whether topic is in the vocabulary.
func (v Vocabulary) HasTopic(topic string) bool { return contains(v.Topics, topic) }

// HasSentiment reports whether sentiment is in the vocabulary.
func (v Vocabulary) HasSentiment(sentiment string) bool { return contains(v.Sentiments, sentiment) }

// HasPriority reports whether priority is in the vocabulary.
func (v Vocabulary) HasPriority(priority string) bool { return contains(v.Priorities, priority) }

// LowestPriority returns the least urgent priority label.
func (v Vocabulary) LowestPriority() string {
	if len(v.Priorities) == 0 {
		return ""
	}
	return v.Priorities[len(v.Priorities)-1]
}

// Fallback is the deterministic default classification used when model
// output is malformed or out of vocabulary.
func (v Vocabulary) Fallback() Classification {
	return Classification{
		Topic:     "Other",
		Sentiment: "Neutral",
		Priority:  v.LowestPriority(),
	}
}

func contains(set []string, s string) bool {
	for _, item := range set {
		if item == s {
			return true
		}
	}
	return false
}
