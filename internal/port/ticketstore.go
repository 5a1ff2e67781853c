package port

import (
	"context"

	"copilot/internal/domain"
)

// TicketStore is the document-store boundary consumed by the core.
// Schema details belong to the storage collaborator.
type TicketStore interface {
	// FetchUnprocessed returns up to limit tickets that have not been
	// resolved yet, in stable ID order. limit <= 0 means no limit.
	FetchUnprocessed(ctx context.Context, limit int) ([]domain.Ticket, error)

	// WriteResult stores the resolution for a ticket and marks it
	// processed.
	WriteResult(ctx context.Context, id string, res domain.Resolution) error

	Close() error
}
