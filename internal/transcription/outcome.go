package transcription

import (
	"errors"
	"fmt"
	"time"
)

// Failure kinds recorded per chunk.
type Kind string

const (
	KindParse     Kind = "parse_error"
	KindRemote    Kind = "remote_error"
	KindNetwork   Kind = "network_error"
	KindExhausted Kind = "exhausted_retries"
	KindCancelled Kind = "cancelled"
)

var (
	ErrParse                = errors.New("unparseable inference response")
	ErrRemote               = errors.New("inference endpoint rejected request")
	ErrNetwork              = errors.New("network failure")
	ErrTransientUnavailable = errors.New("inference endpoint unavailable")
	ErrExhaustedRetries     = errors.New("retries exhausted")
	ErrCancelled            = errors.New("transcription cancelled")
)

// Failure is a classified, final per-chunk error.
type Failure struct {
	Kind       Kind
	StatusCode int
	Detail     string
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", f.Kind, f.StatusCode, f.Detail)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Unwrap exposes the sentinel for the kind and the underlying cause.
func (f *Failure) Unwrap() []error {
	errs := []error{f.sentinel()}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

func (f *Failure) sentinel() error {
	switch f.Kind {
	case KindParse:
		return ErrParse
	case KindRemote:
		return ErrRemote
	case KindNetwork:
		return ErrNetwork
	case KindExhausted:
		return ErrExhaustedRetries
	default:
		return ErrCancelled
	}
}

// Outcome is the single result produced for a chunk once retries are done.
// Exactly one of Text (with Failure == nil) or Failure is meaningful.
type Outcome struct {
	Index    int
	Text     string
	Failure  *Failure
	Attempts int
	Elapsed  time.Duration
}

// OK reports whether the chunk was transcribed.
func (o Outcome) OK() bool { return o.Failure == nil }

// Success builds a successful outcome.
func Success(index int, text string) Outcome {
	return Outcome{Index: index, Text: text, Attempts: 1}
}

// Failed builds a failed outcome.
func Failed(index int, f *Failure) Outcome {
	return Outcome{Index: index, Failure: f, Attempts: 1}
}
