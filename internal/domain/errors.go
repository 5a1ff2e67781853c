package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedOutput indicates the model returned unparseable or
	// out-of-vocabulary structured data. Handled per component by
	// degrading to a deterministic default; never propagated raw.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrDataIntegrity indicates chunk boundaries would split a sentence
	// or offsets are inconsistent. A correct implementation never
	// produces this.
	ErrDataIntegrity = errors.New("chunk offset integrity violated")
)

// ProviderError is a failure from an external provider (embedding,
// completion, vector store). Transient failures (rate limit, timeout)
// are retried with backoff by the adapters; permanent failures
// (auth/config) surface immediately.
type ProviderError struct {
	Provider  string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TransientProviderError wraps a retryable provider failure.
func TransientProviderError(provider string, err error) error {
	return &ProviderError{Provider: provider, Transient: true, Err: err}
}

// PermanentProviderError wraps a non-retryable provider failure.
func PermanentProviderError(provider string, err error) error {
	return &ProviderError{Provider: provider, Transient: false, Err: err}
}

// IsProviderError reports whether err is (or wraps) a provider failure.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}
