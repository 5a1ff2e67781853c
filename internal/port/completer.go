package port

import "context"

// Completer represents a language model used for classification and
// response generation.
type Completer interface {
	// Complete generates text from a system and user prompt.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
