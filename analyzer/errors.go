package analyzer

import (
	"errors"
	"fmt"
)

// Kind classifies why an analysis failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnectivity
	KindParse
	KindEmptyStatistics
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindParse:
		return "parse"
	case KindEmptyStatistics:
		return "empty_statistics"
	default:
		return "unknown"
	}
}

var (
	// ErrNoSessions is returned by Summarize when nothing matched the user.
	// It is an informational outcome, not a failure.
	ErrNoSessions = errors.New("no sessions found for user")

	ErrEmptyStatistics = errors.New("mean requires at least one data point")

	// ErrMixedOffsets is returned when only one timestamp of a session
	// carries a UTC offset.
	ErrMixedOffsets = errors.New("can't subtract offset-naive and offset-aware datetimes")
)

// Error is a classified analysis failure. Its message is the underlying
// error text so it can be surfaced verbatim in the failure result.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ParseError reports a timestamp that is not valid ISO-8601.
type ParseError struct {
	Field string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Invalid isoformat string: %q", e.Value)
}
