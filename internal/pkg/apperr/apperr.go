package apperr

import (
	"errors"
	"fmt"
)

// Request-level failures. These surface to the caller before any
// persistence side effect.
var (
	ErrNotFound    = errors.New("conversation not found or access denied")
	ErrInvalidRole = errors.New("invalid chat message role")
)

// ErrStaleWatermark means a summarization pass lost the race: a newer
// watermark was already stored. Expected under concurrent folds, logged
// and swallowed by the summarizer, never shown to users.
var ErrStaleWatermark = errors.New("stale summary watermark")

// UpstreamError wraps a failed or timed-out call to an external
// capability (LLM, retrieval, HRV API).
type UpstreamError struct {
	Op  string // "llm", "retrieval", "hrv", "embedding"
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failure: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func Upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
