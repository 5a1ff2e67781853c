package port

import (
	"context"

	"copilot/internal/domain"
)

// ContentSource supplies raw (url, title, text) documents to the
// segmentation engine. The engine has no knowledge of how they were
// fetched.
type ContentSource interface {
	Documents(ctx context.Context) ([]domain.Document, error)
}
