package failures

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a job failure. Only Validation, ToolUnavailable, Transcode
// and Transfer are ever returned from a job; Cleanup is logged where it happens.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindToolUnavailable
	KindTranscode
	KindTransfer
	KindCleanup
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindToolUnavailable:
		return "tool_unavailable"
	case KindTranscode:
		return "transcode"
	case KindTransfer:
		return "transfer"
	case KindCleanup:
		return "cleanup"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to the status returned to API callers.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindToolUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure with an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf reports a request that can never succeed as given.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// ToolUnavailable reports that an external codec tool is not installed.
func ToolUnavailable(tool string, err error) error {
	return &Error{Kind: KindToolUnavailable, Msg: fmt.Sprintf("required tool %q is not available", tool), Err: err}
}

// Transcode reports a backend failure on a valid request. Detail carries the
// backend's diagnostic text.
func Transcode(detail string, err error) error {
	return &Error{Kind: KindTranscode, Msg: "transcode failed: " + detail, Err: err}
}

// Transfer reports a remote fetch/store/sign failure.
func Transfer(op string, err error) error {
	return &Error{Kind: KindTransfer, Msg: op + " failed", Err: err}
}

// Cleanup wraps a failed deletion for logging.
func Cleanup(target string, err error) error {
	return &Error{Kind: KindCleanup, Msg: "cleanup of " + target + " failed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps any error to a response status.
func HTTPStatus(err error) int {
	return KindOf(err).HTTPStatus()
}
