// Package http11 implements an incremental HTTP/1.1 engine for hosts that
// hand over raw byte chunks from a stream socket.
//
// One Exchange is bound to one connection. Chunks are folded into an
// Accumulator, which finds the end of the header block and signals when the
// Content-Length delimited body is complete. The Request parses the head and
// body; the Response serializes a reply and drives the Connection's send and
// close. Nothing is shared between connections.
package http11

// Protocol
const (
	// Version is the only protocol version that enables keep-alive.
	Version = "HTTP/1.1"
)

// Content types recognized by the body parser
const (
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
	ContentTypeJSON           = "application/json"
	ContentTypeMultipart      = "multipart/form-data"
	ContentTypeOctetStream    = "application/octet-stream"
	ContentTypeTextPlain      = "text/plain"
)

// Header names (lower-cased, as stored in Header)
const (
	headerContentType      = "content-type"
	headerContentLength    = "content-length"
	headerConnection       = "connection"
	headerDate             = "date"
	headerTransferEncoding = "transfer-encoding"
)

// Buffer sizing
const (
	// DefaultBufferSize is the initial accumulator capacity.
	DefaultBufferSize = 64 << 10

	// DefaultGrowQuantum is the accumulator growth step.
	DefaultGrowQuantum = 64 << 10

	// DefaultMaxBufferSize bounds one request (head and body).
	DefaultMaxBufferSize = 10 << 20
)

// dateFormat is RFC 1123 with a fixed GMT zone, as required for the Date header.
const dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

var (
	crlf       = []byte("\r\n")
	colonSpace = []byte(": ")
)

// defaultHeaders are emitted by the response serializer itself; caller-set
// headers with these names are never written a second time.
var defaultHeaders = map[string]struct{}{
	headerContentType:   {},
	headerContentLength: {},
	headerConnection:    {},
	headerDate:          {},
}
