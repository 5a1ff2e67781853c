package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"copilot/internal/backoff"
	"copilot/internal/domain"
)

// Pipeline drives one query through the resolution state machine:
// RECEIVED -> CLASSIFIED -> RETRIEVED -> ANSWERED -> DONE, with FAILED
// reachable from any non-terminal stage when a provider is exhausted.
// Stages run strictly sequentially; before each external-model call the
// pipeline waits the configured minimum inter-call delay.
type Pipeline struct {
	classifier *Classifier
	retriever  *Retriever
	responder  *Responder

	clock backoff.Clock
	delay time.Duration
	log   *zap.Logger
}

// NewPipeline wires the three stages. delay is the minimum spacing
// between consecutive external-model calls of one run.
func NewPipeline(classifier *Classifier, retriever *Retriever, responder *Responder, clock backoff.Clock, delay time.Duration, log *zap.Logger) *Pipeline {
	if clock == nil {
		clock = backoff.RealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		classifier: classifier,
		retriever:  retriever,
		responder:  responder,
		clock:      clock,
		delay:      delay,
		log:        log,
	}
}

// Run resolves a single query. The returned state is terminal (DONE or
// FAILED) unless the context was cancelled, between stages or during a
// provider call, in which case it carries the last completed stage and
// the cancelled flag.
// Contained failures (degraded classification, empty retrieval) are
// recorded in Errors while the run continues.
func (p *Pipeline) Run(ctx context.Context, query string) domain.PipelineState {
	state := domain.NewPipelineState(uuid.NewString(), query)
	log := p.log.With(zap.String("run_id", state.RunID))

	// RECEIVED -> CLASSIFIED
	if ctx.Err() != nil {
		return state.CancelledAt()
	}
	if err := p.pace(ctx); err != nil {
		return state.CancelledAt()
	}
	classification, err := p.classifier.Classify(ctx, query)
	switch {
	case err == nil:
		state = state.WithClassification(classification)
	case errors.Is(err, domain.ErrMalformedOutput):
		// Degrade, never abort: the fallback labels carry the run.
		log.Warn("classification degraded", zap.Error(err))
		state = state.WithError(domain.StageClassified, err, false).WithClassification(classification)
	default:
		if ctx.Err() != nil {
			return state.CancelledAt()
		}
		log.Error("classification provider exhausted", zap.Error(err))
		return state.Failed(domain.StageClassified, err, domain.IsTransient(err))
	}

	// CLASSIFIED -> RETRIEVED
	if ctx.Err() != nil {
		return state.CancelledAt()
	}
	if err := p.pace(ctx); err != nil {
		return state.CancelledAt()
	}
	passages, err := p.retriever.Retrieve(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return state.CancelledAt()
		}
		if domain.IsProviderError(err) {
			log.Error("retrieval provider exhausted", zap.Error(err))
			return state.Failed(domain.StageRetrieved, err, domain.IsTransient(err))
		}
		// Anything else degrades to "no evidence".
		log.Warn("retrieval degraded to empty", zap.Error(err))
		state = state.WithError(domain.StageRetrieved, err, false)
		passages = nil
	}
	state = state.WithPassages(passages)

	// RETRIEVED -> ANSWERED
	if ctx.Err() != nil {
		return state.CancelledAt()
	}
	if len(passages) > 0 {
		if err := p.pace(ctx); err != nil {
			return state.CancelledAt()
		}
	}
	answer, err := p.responder.Assemble(ctx, query, passages)
	if err != nil {
		if ctx.Err() != nil {
			return state.CancelledAt()
		}
		log.Error("response provider exhausted", zap.Error(err))
		return state.Failed(domain.StageAnswered, err, domain.IsTransient(err))
	}
	state = state.WithAnswer(answer)

	// ANSWERED -> DONE
	if ctx.Err() != nil {
		return state.CancelledAt()
	}
	state = state.WithStage(domain.StageDone)
	log.Info("run complete",
		zap.String("topic", state.Classification.Topic),
		zap.Int("passages", len(state.Passages)),
		zap.Int("citations", len(state.Answer.Citations)))
	return state
}

// pace enforces the minimum inter-call delay before the next external
// call. A cancellation while waiting aborts the transition.
func (p *Pipeline) pace(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	return p.clock.Sleep(ctx, p.delay)
}
