package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed request.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindTimeout
	KindServer
	KindUnauthorized
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

var errRequestTimeout = errors.New("request timed out")

// Error is returned for every failed request except cancellation, which is
// reported as the context error.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCanceled reports whether err comes from a cancelled caller. Such errors
// are dropped silently.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// KindOf returns the kind of an *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// StatusOf returns the upstream HTTP status of err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Message is the human readable text of err, suitable for display.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}

// IsClientError reports an upstream 4xx other than 401.
func IsClientError(err error) bool {
	s := StatusOf(err)
	return s >= http.StatusBadRequest && s < http.StatusInternalServerError && s != http.StatusUnauthorized
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if IsCanceled(err) {
		return "canceled"
	}
	if k := KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}
