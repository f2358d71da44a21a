package http11

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/bytebufferpool"
)

// Connection is the transport a Response is written to.
//
// Send must deliver p completely or fail; it must not retain p after
// returning. Close releases the transport. Both may block.
type Connection interface {
	Send(ctx context.Context, p []byte) error
	Close(ctx context.Context) error
}

// Response buffers one HTTP/1.1 response and writes it with a single Send.
//
// WriteJSON, Write, WriteString and WriteError all finish the response.
// After a successful send the Response resets itself (and its Request) for
// the next cycle when keep-alive is set, or closes the Connection otherwise.
// Once the connection is gone the Response is closed and every write is a
// no-op.
type Response struct {
	conn Connection
	req  *Request

	status      int
	reason      string
	header      Header
	contentType string
	body        []byte

	lastStatus int

	keepAlive bool
	sendDate  bool
	finished  bool
	closed    bool

	now func() time.Time
}

// NewResponse creates a Response bound to conn. req is reset together with
// the response after each keep-alive cycle; it may be nil.
func NewResponse(conn Connection, req *Request) *Response {
	return &Response{
		conn:     conn,
		req:      req,
		status:   StatusOK,
		header:   make(Header),
		sendDate: true,
		now:      time.Now,
	}
}

// Header returns the caller-set headers.
// Content-Type, Content-Length, Connection and Date are written by the
// response itself; entries with those names are not sent.
func (r *Response) Header() Header {
	return r.header
}

// SetHeader replaces the values of a response header.
// Setting Content-Type is the same as SetContentType.
func (r *Response) SetHeader(name, value string) *Response {
	if strings.EqualFold(name, headerContentType) {
		return r.SetContentType(value)
	}
	r.header.Set(name, value)
	return r
}

// SetHeaders sets every header in headers.
func (r *Response) SetHeaders(headers map[string]string) *Response {
	for k, v := range headers {
		r.SetHeader(k, v)
	}
	return r
}

// SetContentType sets the Content-Type. An empty value is ignored.
func (r *Response) SetContentType(contentType string) *Response {
	if contentType != "" {
		r.contentType = contentType
	}
	return r
}

// SetStatus sets the status code. The reason phrase is the status text.
func (r *Response) SetStatus(code int) *Response {
	r.status = code
	r.reason = ""
	return r
}

// SetStatusMessage overrides the reason phrase of the status line.
func (r *Response) SetStatusMessage(reason string) *Response {
	r.reason = sanitize(reason)
	return r
}

// SetKeepAlive controls whether the connection is kept open after this
// response.
func (r *Response) SetKeepAlive(keepAlive bool) *Response {
	r.keepAlive = keepAlive
	return r
}

// SetSendDate controls whether the Date header is sent.
func (r *Response) SetSendDate(send bool) *Response {
	r.sendDate = send
	return r
}

// Status returns the status code.
func (r *Response) Status() int { return r.status }

// KeepAlive reports whether the connection stays open after this response.
func (r *Response) KeepAlive() bool { return r.keepAlive }

// Finished reports whether the response of the current cycle was written.
func (r *Response) Finished() bool { return r.finished }

// Closed reports whether the connection is gone.
func (r *Response) Closed() bool { return r.closed }

// WriteJSON marshals v and sends it as application/json.
// A value that cannot be marshaled produces a 500 response and the
// marshal error is returned.
func (r *Response) WriteJSON(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		merr := fmt.Errorf("http11: marshal response: %w", err)
		if werr := r.WriteError(ctx, InternalError(merr)); werr != nil {
			return werr
		}
		return merr
	}
	r.contentType = ContentTypeJSON
	r.body = body
	return r.finalize(ctx)
}

// Write sends body as the response body.
func (r *Response) Write(ctx context.Context, body []byte) error {
	r.body = body
	return r.finalize(ctx)
}

// WriteString sends s as the response body.
func (r *Response) WriteString(ctx context.Context, s string) error {
	r.body = []byte(s)
	return r.finalize(ctx)
}

// WriteError sends err as a text/plain response. The status comes from
// an HTTPError; any other error is sent as 500.
func (r *Response) WriteError(ctx context.Context, err error) error {
	he := asHTTPError(err)
	r.status = he.Status
	r.reason = ""
	r.contentType = ContentTypeTextPlain
	r.body = []byte(he.Message)
	return r.finalize(ctx)
}

// finalize serializes and sends the response, then resets or closes.
func (r *Response) finalize(ctx context.Context) error {
	if r.closed {
		return nil
	}
	if r.finished {
		return ErrResponseFinished
	}
	r.finished = true
	r.lastStatus = r.status

	if containsFold(r.header.Get(headerConnection), "close") {
		r.keepAlive = false
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = r.appendHead(buf.B)
	buf.B = append(buf.B, r.body...)

	if err := r.conn.Send(ctx, buf.B); err != nil {
		return fmt.Errorf("http11: send response: %w", err)
	}

	if r.keepAlive {
		r.reset()
		return nil
	}

	r.reset()
	r.closed = true
	if err := r.conn.Close(ctx); err != nil {
		return fmt.Errorf("http11: close connection: %w", err)
	}
	return nil
}

// appendHead appends the status line and header block.
func (r *Response) appendHead(dst []byte) []byte {
	dst = appendStatusLine(dst, r.status, r.reason)

	contentType := r.contentType
	if contentType == "" {
		contentType = ContentTypeTextPlain
	}
	dst = appendHeaderLine(dst, "Content-Type", contentType)
	dst = appendHeaderLine(dst, "Content-Length", strconv.Itoa(len(r.body)))
	if r.keepAlive {
		dst = appendHeaderLine(dst, "Connection", "keep-alive")
	}
	if r.sendDate {
		dst = appendHeaderLine(dst, "Date", r.now().UTC().Format(dateFormat))
	}

	for _, name := range slices.Sorted(maps.Keys(r.header)) {
		if _, ok := defaultHeaders[name]; ok {
			continue
		}
		wire := canonicalName(name)
		for _, v := range r.header[name] {
			dst = appendHeaderLine(dst, wire, v)
		}
	}

	return append(dst, crlf...)
}

func appendHeaderLine(dst []byte, name, value string) []byte {
	dst = append(dst, name...)
	dst = append(dst, colonSpace...)
	dst = append(dst, sanitize(value)...)
	return append(dst, crlf...)
}

// sanitize replaces CR and LF so a value cannot end the header block.
func sanitize(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Map(func(c rune) rune {
		if c == '\r' || c == '\n' {
			return ' '
		}
		return c
	}, s)
}

// open starts a new cycle: the response may be written once more.
func (r *Response) open(keepAlive bool) {
	r.finished = false
	r.keepAlive = keepAlive
}

// reset clears per-cycle state and resets the bound request.
// finished stays set until the next cycle opens.
func (r *Response) reset() {
	r.status = StatusOK
	r.reason = ""
	r.header.Reset()
	r.contentType = ""
	r.body = nil
	if r.req != nil {
		r.req.Reset()
	}
}

// MarkClosed records that the far end closed the connection. The response
// becomes inert and the request state is released.
func (r *Response) MarkClosed() {
	if r.closed {
		return
	}
	r.closed = true
	r.reset()
}
