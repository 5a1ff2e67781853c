package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"copilot/internal/domain"
	"copilot/internal/port"
)

// DefaultTeam receives tickets whose topic has no routing entry.
const DefaultTeam = "General Support"

// Resolver processes unresolved support tickets. Tickets whose topic is
// in the answerable set go through retrieval and answer generation;
// everything else gets a routing acknowledgement naming the owning
// team. Independent tickets run in a bounded pool; the shared provider
// rate limiter inside the adapters keeps the pool under the external
// rate budget.
type Resolver struct {
	store    port.TicketStore
	pipeline *Pipeline
	eligible map[string]bool
	routing  map[string]string
	workers  int
	log      *zap.Logger
}

// NewResolver creates a ticket resolver. eligibleTopics lists the
// topics answerable from the knowledge base; routing maps the remaining
// topics to team names.
func NewResolver(store port.TicketStore, pipeline *Pipeline, eligibleTopics []string, routing map[string]string, workers int, log *zap.Logger) *Resolver {
	eligible := make(map[string]bool, len(eligibleTopics))
	for _, topic := range eligibleTopics {
		eligible[topic] = true
	}
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		store:    store,
		pipeline: pipeline,
		eligible: eligible,
		routing:  routing,
		workers:  workers,
		log:      log,
	}
}

// ResolveResult summarizes one batch run.
type ResolveResult struct {
	Processed int
	Resolved  int
	Routed    int
	Failed    int
	Errors    []string
}

// ResolveBatch fetches up to limit unprocessed tickets and resolves
// them. progress, if non-nil, is called once per finished ticket.
func (r *Resolver) ResolveBatch(ctx context.Context, limit int, progress func()) (*ResolveResult, error) {
	tickets, err := r.store.FetchUnprocessed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch tickets: %w", err)
	}

	result := &ResolveResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, ticket := range tickets {
		ticket := ticket
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res := r.resolveOne(gctx, ticket)
			writeErr := r.store.WriteResult(gctx, ticket.ID, res)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			switch res.Status {
			case domain.StatusResolved:
				result.Resolved++
			case domain.StatusRouted:
				result.Routed++
			default:
				result.Failed++
			}
			if writeErr != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("write result for %s: %v", ticket.ID, writeErr))
			}
			if progress != nil {
				progress()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// resolveOne runs the stages for a single ticket. Classification always
// happens; retrieval and generation only for answerable topics.
func (r *Resolver) resolveOne(ctx context.Context, ticket domain.Ticket) domain.Resolution {
	p := r.pipeline
	query := ticket.Subject + "\n\n" + ticket.Body
	log := r.log.With(zap.String("ticket_id", ticket.ID))

	if err := p.pace(ctx); err != nil {
		return domain.Resolution{TicketID: ticket.ID, Status: domain.StatusFailed}
	}
	classification, err := p.classifier.Classify(ctx, query)
	if err != nil && !errors.Is(err, domain.ErrMalformedOutput) {
		log.Error("classification failed", zap.Error(err))
		return domain.Resolution{TicketID: ticket.ID, Classification: classification, Status: domain.StatusFailed}
	}

	if !r.eligible[classification.Topic] {
		team, ok := r.routing[classification.Topic]
		if !ok {
			team = DefaultTeam
		}
		log.Info("ticket routed", zap.String("topic", classification.Topic), zap.String("team", team))
		return domain.Resolution{
			TicketID:       ticket.ID,
			Classification: classification,
			Answer:         RoutingAnswer(classification.Topic, team),
			Status:         domain.StatusRouted,
			RoutedTo:       team,
		}
	}

	if err := p.pace(ctx); err != nil {
		return domain.Resolution{TicketID: ticket.ID, Classification: classification, Status: domain.StatusFailed}
	}
	passages, err := p.retriever.Retrieve(ctx, query)
	if err != nil {
		if domain.IsProviderError(err) {
			log.Error("retrieval failed", zap.Error(err))
			return domain.Resolution{TicketID: ticket.ID, Classification: classification, Status: domain.StatusFailed}
		}
		passages = nil
	}

	if len(passages) > 0 {
		if err := p.pace(ctx); err != nil {
			return domain.Resolution{TicketID: ticket.ID, Classification: classification, Status: domain.StatusFailed}
		}
	}
	answer, err := p.responder.Assemble(ctx, query, passages)
	if err != nil {
		log.Error("response generation failed", zap.Error(err))
		return domain.Resolution{TicketID: ticket.ID, Classification: classification, Status: domain.StatusFailed}
	}

	log.Info("ticket resolved", zap.String("topic", classification.Topic), zap.Int("citations", len(answer.Citations)))
	return domain.Resolution{
		TicketID:       ticket.ID,
		Classification: classification,
		Answer:         answer,
		Status:         domain.StatusResolved,
	}
}

// DefaultRouting maps non-answerable topics to owning teams.
func DefaultRouting() map[string]string {
	return map[string]string{
		"Connector":      "Data Engineering Team",
		"Lineage":        "Data Engineering Team",
		"Glossary":       "Data Governance Team",
		"Sensitive data": "Security Team",
	}
}
