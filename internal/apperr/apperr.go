// Package apperr defines the closed error taxonomy (spec §7) used for
// every externally observable failure that survives the connection —
// framing failures are handled separately by protocol.FramingError and
// always tear the transport down instead.
package apperr

import "fmt"

// Code is the wire error code carried in an Error payload.
type Code uint32

const (
	CodeNone Code = iota
	CodeInvalidArgument
	CodePermission
	CodeNotFound
	CodeQuotaExceeded
	CodeInternal
	CodeTimeout
	CodeCompilation
	CodeExecution
)

func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "InvalidArgument"
	case CodePermission:
		return "Permission"
	case CodeNotFound:
		return "NotFound"
	case CodeQuotaExceeded:
		return "QuotaExceeded"
	case CodeInternal:
		return "Internal"
	case CodeTimeout:
		return "Timeout"
	case CodeCompilation:
		return "Compilation"
	case CodeExecution:
		return "Execution"
	default:
		return "None"
	}
}

// Error is the Go representation of the wire Error payload.
type Error struct {
	Code    Code
	Message string
	Context string
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Context)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code Code, context string, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Context: context}
}

func InvalidArgument(context, format string, args ...interface{}) *Error {
	return New(CodeInvalidArgument, context, format, args...)
}

func Permission(context, format string, args ...interface{}) *Error {
	return New(CodePermission, context, format, args...)
}

func NotFound(context, format string, args ...interface{}) *Error {
	return New(CodeNotFound, context, format, args...)
}

func QuotaExceeded(context, format string, args ...interface{}) *Error {
	return New(CodeQuotaExceeded, context, format, args...)
}

func Internal(context, format string, args ...interface{}) *Error {
	return New(CodeInternal, context, format, args...)
}

// As extracts an *Error from err, if it is one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
