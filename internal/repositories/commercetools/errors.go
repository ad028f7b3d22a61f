package commercetools

import (
	"fmt"
	"net/http"
)

// Error implements repositories.RepositoryError for the remote commerce API.
type Error struct {
	op          string
	status      int
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing resource.
func (e *Error) IsNotFound() bool {
	return e != nil && e.notFound
}

// IsConflict reports whether the error represents a stale-version write.
func (e *Error) IsConflict() bool {
	return e != nil && e.conflict
}

// IsUnavailable reports whether the error represents a transient outage.
func (e *Error) IsUnavailable() bool {
	return e != nil && e.unavailable
}

// StatusCode returns the HTTP status the remote API answered with, or zero.
func (e *Error) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.status
}

func newStatusError(op string, status int, err error) *Error {
	e := &Error{op: op, status: status, err: err}
	switch {
	case status == http.StatusNotFound:
		e.notFound = true
	case status == http.StatusConflict:
		e.conflict = true
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		e.unavailable = true
	}
	return e
}

func notFoundError(op string, err error) *Error {
	return &Error{op: op, status: http.StatusNotFound, err: err, notFound: true}
}
