// Package failure defines the error kinds the pipeline distinguishes when
// deciding whether a stage failure ends the task or degrades the result.
package failure

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a pipeline error.
type Kind string

const (
	// Acquisition means the reference could not be resolved or downloaded. Fatal.
	Acquisition Kind = "AcquisitionError"
	// Extraction means no strategy produced usable content. Fatal.
	Extraction Kind = "ExtractionError"
	// Planning means the outline could not be planned and the default was used.
	Planning Kind = "PlanningError"
	// GenerationChunk means a text chunk exhausted its retries.
	GenerationChunk Kind = "GenerationChunkError"
	// RecommendationTier means one recommendation strategy failed.
	RecommendationTier Kind = "RecommendationTierError"
	// ImageRequest means one illustration request failed.
	ImageRequest Kind = "ImageRequestError"
	// ExportTier means an export tier failed. Fatal only for the HTML render.
	ExportTier Kind = "ExportTierError"
	// RateLimited is a transient refusal from a collaborator.
	RateLimited Kind = "RateLimited"
	// Internal covers programming and environment errors with no better kind.
	Internal Kind = "InternalError"
)

// Error is a classified pipeline error.
type Error struct {
	Kind       Kind
	Op         string
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the error text without the kind prefix.
func (e *Error) Message() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Op
	}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// RateLimit builds a RateLimited error carrying the collaborator's retry hint.
func RateLimit(op string, retryAfter time.Duration, err error) error {
	if err == nil {
		err = errors.New("rate limited")
	}
	return &Error{Kind: RateLimited, Op: op, Err: err, RetryAfter: retryAfter}
}

// KindOf returns the kind of the outermost classified error in the chain,
// or Internal when the chain holds none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// As returns the outermost classified error in the chain.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsRateLimited reports whether any error in the chain is RateLimited.
func IsRateLimited(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if fe, ok := e.(*Error); ok && fe.Kind == RateLimited {
			return true
		}
	}
	return false
}

// Fatal reports whether kind aborts a task on its own.
func Fatal(kind Kind) bool {
	return kind == Acquisition || kind == Extraction
}
