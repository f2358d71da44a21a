package http11

import (
	"bytes"
	"fmt"
	"strings"
)

// RequestState is the position of a Request in its request cycle.
type RequestState int

const (
	// StateHeader is the initial state: header bytes are accumulating.
	StateHeader RequestState = iota

	// StateHeaderParsed indicates the head was parsed.
	StateHeaderParsed

	// StateBody indicates body bytes are accumulating.
	StateBody

	// StateBodyComplete indicates the declared Content-Length was reached.
	StateBodyComplete

	// StateBodyParsed indicates the body was decoded; the request is ready.
	StateBodyParsed
)

// String returns the string representation of the request state
func (s RequestState) String() string {
	switch s {
	case StateHeader:
		return "accumulating-header"
	case StateHeaderParsed:
		return "header-parsed"
	case StateBody:
		return "accumulating-body"
	case StateBodyComplete:
		return "body-complete"
	case StateBodyParsed:
		return "body-parsed"
	default:
		return "unknown"
	}
}

type bodyKind uint8

const (
	bodyNone bodyKind = iota
	bodyForm
	bodyJSON
	bodyRaw
)

// Request is one HTTP/1.1 request, assembled from pushed chunks.
//
// A Request owns its Accumulator and is reused for every request of a
// keep-alive connection through Reset. After the body is parsed the parsed
// body is one of: Form (url-encoded and multipart), JSON, or raw bytes.
type Request struct {
	Head

	// ContentType is the parsed Content-Type header.
	ContentType ContentType

	// ContentLength is the declared body length, 0 when absent.
	ContentLength int64

	// Form holds url-encoded and multipart text fields; for file parts
	// it holds the filename.
	Form Form

	// Files holds multipart file payloads.
	Files Files

	// RemoteAddr is the network address of the client (set by the transport).
	RemoteAddr string

	json any
	raw  []byte
	kind bodyKind

	acc    *Accumulator
	state  RequestState
	ready  bool
	onHead func(*Request) error
}

// NewRequest creates a Request that owns acc and subscribes to its events.
func NewRequest(acc *Accumulator) *Request {
	r := &Request{
		Head: Head{
			Header: make(Header),
			Query:  make(map[string]string),
		},
		Form:  make(Form),
		Files: make(Files),
		acc:   acc,
	}
	acc.OnEvent(r.handleEvent)
	return r
}

// Push folds chunk into the request. It reports true when this chunk
// completed the request and the body has been parsed.
func (r *Request) Push(chunk []byte) (bool, error) {
	r.ready = false
	if err := r.acc.Push(chunk); err != nil {
		return false, err
	}
	return r.ready, nil
}

// handleEvent drives the request state machine from accumulator events.
func (r *Request) handleEvent(ev Event) error {
	switch ev := ev.(type) {
	case HeaderReady:
		return r.onHeaderReady(ev.Range)
	case BodyComplete:
		return r.onBodyComplete()
	default:
		return InternalError(fmt.Errorf("http11: unexpected accumulator event %T", ev))
	}
}

func (r *Request) onHeaderReady(head Range) error {
	if err := ParseHead(r.acc.Bytes(head), &r.Head); err != nil {
		return err
	}
	r.state = StateHeaderParsed

	if te := r.Header.Get(headerTransferEncoding); te != "" && !strings.EqualFold(te, "identity") {
		return ClientError(StatusLengthRequired, ErrUnsupportedTransferEncoding, "Transfer-Encoding is not supported, send Content-Length")
	}
	n, err := parseContentLength(r.Header.Get(headerContentLength))
	if err != nil {
		return err
	}
	r.ContentLength = n
	r.ContentType = ParseContentType(r.Header.Get(headerContentType))
	r.acc.Expect(n)
	r.state = StateBody

	if r.onHead != nil {
		return r.onHead(r)
	}
	return nil
}

func (r *Request) onBodyComplete() error {
	r.state = StateBodyComplete
	if err := r.parseBody(); err != nil {
		return err
	}
	r.state = StateBodyParsed
	r.ready = true
	return nil
}

// parseBody decodes the body by content type. The accumulator is released
// whatever the outcome.
func (r *Request) parseBody() error {
	defer r.acc.Reset()

	ct := r.ContentType
	switch {
	case ct.IsMultipart():
		r.kind = bodyForm
		return ParseMultipartFormData(ct.Boundary(), r.acc.Body(), r.Form, r.Files)
	case ct.MediaType == ContentTypeFormURLEncoded:
		r.kind = bodyForm
		return ParseFormData(bytes.Clone(r.acc.Body()), r.Form)
	case ct.MediaType == ContentTypeJSON:
		r.kind = bodyJSON
		v, err := ParseJSON(bytes.Clone(r.acc.Body()))
		if err != nil {
			return err
		}
		r.json = v
		return nil
	default:
		r.kind = bodyRaw
		r.raw = bytes.Clone(r.acc.Body())
		return nil
	}
}

// State returns the current request cycle state.
func (r *Request) State() RequestState {
	return r.state
}

// JSON returns the decoded JSON body, or nil when the body was not JSON.
func (r *Request) JSON() any {
	if r.kind != bodyJSON {
		return nil
	}
	return r.json
}

// Body returns the raw body for content types that are not decoded,
// or nil otherwise.
func (r *Request) Body() []byte {
	if r.kind != bodyRaw {
		return nil
	}
	return r.raw
}

// Accumulator returns the accumulator owned by the request.
func (r *Request) Accumulator() *Accumulator {
	return r.acc
}

// Reset prepares the request for the next cycle on the same connection.
func (r *Request) Reset() {
	r.Header.Reset()
	clear(r.Query)
	clear(r.Form)
	clear(r.Files)
	r.Head = Head{Header: r.Header, Query: r.Query}
	r.ContentType = ContentType{}
	r.ContentLength = 0
	r.json = nil
	r.raw = nil
	r.kind = bodyNone
	r.state = StateHeader
	r.ready = false
	r.acc.Reset()
}
