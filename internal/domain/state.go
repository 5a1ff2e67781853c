package domain

// Stage identifies a pipeline state. A run advances strictly
// Received -> Classified -> Retrieved -> Answered -> Done, with Failed
// reachable from any non-terminal stage on an unrecoverable adapter error.
type Stage int

const (
	StageReceived Stage = iota
	StageClassified
	StageRetrieved
	StageAnswered
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "RECEIVED"
	case StageClassified:
		return "CLASSIFIED"
	case StageRetrieved:
		return "RETRIEVED"
	case StageAnswered:
		return "ANSWERED"
	case StageDone:
		return "DONE"
	case StageFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// StageError records a contained failure during one transition.
type StageError struct {
	Stage     Stage  `json:"stage"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// PipelineState is the per-query record threaded through the orchestrator.
// Stages never mutate a state in place; each transition returns a new value,
// so a state observed by the caller is immutable.
type PipelineState struct {
	RunID          string
	Query          string
	Stage          Stage
	Classification Classification
	Passages       []RankedPassage
	Answer         Answer
	Errors         []StageError
	Cancelled      bool
	// FailedStage and Retryable are meaningful only when Stage == StageFailed.
	FailedStage Stage
	Retryable   bool
}

// NewPipelineState creates the initial state for one query run.
func NewPipelineState(runID, query string) PipelineState {
	return PipelineState{
		RunID: runID,
		Query: query,
		Stage: StageReceived,
	}
}

// WithStage returns a copy of the state advanced to the given stage.
func (s PipelineState) WithStage(stage Stage) PipelineState {
	s.Stage = stage
	return s
}

// WithClassification returns a copy carrying the classification result.
func (s PipelineState) WithClassification(c Classification) PipelineState {
	s.Classification = c
	s.Stage = StageClassified
	return s
}

// WithPassages returns a copy carrying the retrieved passages.
func (s PipelineState) WithPassages(passages []RankedPassage) PipelineState {
	s.Passages = passages
	s.Stage = StageRetrieved
	return s
}

// WithAnswer returns a copy carrying the assembled answer.
func (s PipelineState) WithAnswer(a Answer) PipelineState {
	s.Answer = a
	s.Stage = StageAnswered
	return s
}

// WithError returns a copy with a contained stage failure recorded.
func (s PipelineState) WithError(stage Stage, err error, retryable bool) PipelineState {
	errs := make([]StageError, len(s.Errors), len(s.Errors)+1)
	copy(errs, s.Errors)
	s.Errors = append(errs, StageError{
		Stage:     stage,
		Message:   err.Error(),
		Retryable: retryable,
	})
	return s
}

// Failed returns a copy moved to the FAILED terminal state, identifying
// the failing stage and whether a retry is advisable.
func (s PipelineState) Failed(stage Stage, err error, retryable bool) PipelineState {
	s = s.WithError(stage, err, retryable)
	s.Stage = StageFailed
	s.FailedStage = stage
	s.Retryable = retryable
	return s
}

// CancelledAt returns a copy marked cancelled, preserving the last
// completed stage.
func (s PipelineState) CancelledAt() PipelineState {
	s.Cancelled = true
	return s
}
