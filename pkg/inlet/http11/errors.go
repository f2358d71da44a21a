package http11

import (
	"errors"
	"fmt"
)

// Parser errors
var (
	// ErrMalformedRequestLine indicates the request line is not
	// exactly METHOD SP URI SP VERSION.
	ErrMalformedRequestLine = errors.New("http11: malformed request line")

	// ErrInvalidQuery indicates a query string with an invalid percent escape.
	ErrInvalidQuery = errors.New("http11: invalid query string")

	// ErrInvalidContentLength indicates a Content-Length header that is not a
	// non-negative decimal number.
	ErrInvalidContentLength = errors.New("http11: invalid Content-Length")

	// ErrUnsupportedTransferEncoding indicates a Transfer-Encoding other than identity.
	// Only Content-Length delimited bodies are understood.
	ErrUnsupportedTransferEncoding = errors.New("http11: unsupported Transfer-Encoding")

	// ErrInvalidForm indicates an url-encoded body with an invalid percent escape.
	ErrInvalidForm = errors.New("http11: invalid url-encoded form")

	// ErrInvalidJSON indicates a JSON body that failed strict decoding.
	ErrInvalidJSON = errors.New("http11: invalid JSON body")

	// ErrMalformedMultipart indicates broken multipart/form-data framing.
	ErrMalformedMultipart = errors.New("http11: malformed multipart/form-data body")

	// ErrMissingBoundary indicates a multipart content type without a boundary parameter.
	ErrMissingBoundary = errors.New("http11: multipart content type without boundary")
)

// Accumulator errors
var (
	// ErrExcessBody indicates more bytes arrived than the declared Content-Length.
	// Pipelined requests are not supported, so surplus bytes are rejected.
	ErrExcessBody = errors.New("http11: more body bytes than declared Content-Length")

	// ErrBodyTooLarge indicates the request would grow the buffer past its limit.
	ErrBodyTooLarge = errors.New("http11: request body too large")

	// ErrHeadersTooLarge indicates the header block grew past the buffer limit
	// before its terminator was found.
	ErrHeadersTooLarge = errors.New("http11: request headers too large")
)

// Response errors
var (
	// ErrResponseFinished indicates a second write in the same request cycle.
	ErrResponseFinished = errors.New("http11: response already finished")

	// ErrHandlerPanic indicates the request handler panicked.
	ErrHandlerPanic = errors.New("http11: handler panic")
)

// HTTPError is an error that maps to an HTTP status code.
//
// Errors with a 4xx status are client errors: the request was malformed.
// Errors with a 5xx status are internal errors.
//
// Example:
//
//	err := ClientError(400, ErrMalformedRequestLine, "expected METHOD URI VERSION")
//	errors.Is(err, ErrMalformedRequestLine) // true
//	StatusOf(err)                           // 400
type HTTPError struct {
	// Status is the HTTP status code sent for this error.
	Status int

	// Message is a human readable description sent as the response body.
	Message string

	// Err is the underlying error (optional).
	Err error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// Unwrap returns the underlying error.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether the error was caused by the peer.
func (e *HTTPError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// ClientError returns an HTTPError with a 4xx status. An empty message
// falls back to the status text.
func ClientError(status int, err error, message string) *HTTPError {
	if status < 400 || status > 499 {
		status = StatusBadRequest
	}
	if message == "" {
		message = StatusText(status)
	}
	return &HTTPError{Status: status, Message: message, Err: err}
}

// InternalError wraps err as a 500 HTTPError.
func InternalError(err error) *HTTPError {
	return &HTTPError{Status: StatusInternalServerError, Message: StatusText(StatusInternalServerError), Err: err}
}

// StatusOf returns the status code an error maps to.
// Errors that are not HTTPErrors are internal errors.
func StatusOf(err error) int {
	if err == nil {
		return StatusOK
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return StatusInternalServerError
}

// asHTTPError converts any error into an HTTPError.
func asHTTPError(err error) *HTTPError {
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}
	return InternalError(err)
}
