package resource

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when resource id is unknown to the manager
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidConfiguration is returned for unparsable URIs and malformed option values
	ErrInvalidConfiguration = errors.New("invalid resource configuration")
	// ErrConnection is returned when dial, auth or handshake fails
	ErrConnection = errors.New("redis connection failed")
	// ErrParse is returned when server version is not in dotted numeric form
	ErrParse = errors.New("unable to parse redis version")
)

// kindError ties an underlying cause to one of the sentinel kinds above
type kindError struct {
	kind  error
	cause error
	msg   string
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.msg + ": " + e.kind.Error()
	}

	return e.msg + ": " + e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

// Cause makes kindError work with errors.Cause
func (e *kindError) Cause() error {
	if e.cause == nil {
		return e.kind
	}

	return e.cause
}

func newKindError(kind, cause error, format string, args ...interface{}) error {
	return &kindError{kind: kind, cause: cause, msg: fmt.Sprintf(format, args...)}
}

func notFound(id string) error {
	return errors.Wrapf(ErrNotFound, "resource %q", id)
}

func invalidConfig(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfiguration, format, args...)
}

func invalidConfigCause(cause error, format string, args ...interface{}) error {
	return newKindError(ErrInvalidConfiguration, cause, format, args...)
}

func connectionError(cause error, format string, args ...interface{}) error {
	return newKindError(ErrConnection, cause, format, args...)
}

func parseError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrParse, format, args...)
}
