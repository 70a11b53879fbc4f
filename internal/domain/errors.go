package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy for one pipeline run. Item-level failures never surface as
// errors; they are absorbed into fallbacks and counted in the Summary.
var (
	// ErrBatchTooLarge aborts a run whose input exceeds the configured
	// caps. No partial output is produced.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrRetryable marks a transient external failure whose retries were
	// exhausted. The run degrades to sentiment-only mode.
	ErrRetryable = errors.New("retryable service error")

	// ErrFatalService marks a non-recoverable external failure (bad
	// credentials, permanent rejection). The run degrades immediately.
	ErrFatalService = errors.New("fatal service error")

	// ErrBadPayload marks an unparseable response for a single item; the
	// item falls back to empty findings without degrading the run.
	ErrBadPayload = errors.New("malformed service payload")
)

// RowError describes one rejected ingestion row.
type RowError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Reason)
}

// ValidationError reports a bad input schema or an input whose rows were all
// rejected. It aborts the run before any processing happens.
type ValidationError struct {
	Message string
	Rows    []RowError
}

func (e *ValidationError) Error() string {
	if len(e.Rows) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		parts = append(parts, r.Error())
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}
