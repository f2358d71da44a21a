package http11

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// recordingObserver implements Observer for testing
type recordingObserver struct {
	done   []string
	status []int
	failed []error
	grown  [][2]int
}

func (o *recordingObserver) RequestDone(method string, status int, _ time.Duration) {
	o.done = append(o.done, method)
	o.status = append(o.status, status)
}

func (o *recordingObserver) RequestFailed(err error) {
	o.failed = append(o.failed, err)
}

func (o *recordingObserver) BufferGrown(from, to int) {
	o.grown = append(o.grown, [2]int{from, to})
}

func newTestExchange(handler Handler, config ExchangeConfig) (*Exchange, *mockConnection) {
	conn := &mockConnection{}
	config.DisableDate = true
	return NewExchange(conn, handler, config), conn
}

func echoPath(ctx context.Context, req *Request, res *Response) error {
	return res.WriteString(ctx, req.Path)
}

func TestExchangeKeepAliveCycles(t *testing.T) {
	ex, conn := newTestExchange(echoPath, ExchangeConfig{})
	ctx := context.Background()

	if err := ex.Push(ctx, []byte("GET /first HTTP/1.1\r\nHost: h\r\n\r\n")); err != nil {
		t.Fatalf("first Push failed: %v", err)
	}
	if err := ex.Push(ctx, []byte("GET /second HTTP/1.1\r\n")); err != nil {
		t.Fatalf("partial Push failed: %v", err)
	}
	if conn.Sends() != 1 {
		t.Fatalf("sends = %d after partial request, want 1", conn.Sends())
	}
	if err := ex.Push(ctx, []byte("\r\n")); err != nil {
		t.Fatalf("final Push failed: %v", err)
	}

	want := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 6\r\nConnection: keep-alive\r\n\r\n/first" +
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 7\r\nConnection: keep-alive\r\n\r\n/second"
	if got := conn.GetWritten(); got != want {
		t.Errorf("wire =\n%q\nwant\n%q", got, want)
	}
	if conn.IsClosed() {
		t.Error("keep-alive connection closed")
	}
}

func TestExchangeHTTP10Closes(t *testing.T) {
	ex, conn := newTestExchange(echoPath, ExchangeConfig{})
	if err := ex.Push(context.Background(), []byte("GET /old HTTP/1.0\r\n\r\n")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if !conn.IsClosed() || !ex.Response().Closed() {
		t.Error("HTTP/1.0 connection left open")
	}
	if strings.Contains(conn.GetWritten(), "Connection: keep-alive") {
		t.Errorf("HTTP/1.0 response advertises keep-alive: %q", conn.GetWritten())
	}

	// Pushes after close are ignored.
	if err := ex.Push(context.Background(), []byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("Push after close = %v, want nil", err)
	}
	if conn.Sends() != 1 {
		t.Errorf("sends = %d, want 1", conn.Sends())
	}
}

func TestExchangeDisableKeepAlive(t *testing.T) {
	ex, conn := newTestExchange(echoPath, ExchangeConfig{DisableKeepAlive: true})
	if err := ex.Push(context.Background(), []byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if !conn.IsClosed() {
		t.Error("DisableKeepAlive did not close the connection")
	}
}

func TestExchangeMalformedHeadCloses(t *testing.T) {
	obs := &recordingObserver{}
	called := false
	ex, conn := newTestExchange(func(ctx context.Context, req *Request, res *Response) error {
		called = true
		return nil
	}, ExchangeConfig{Observer: obs})

	if err := ex.Push(context.Background(), []byte("GARBAGE\r\n\r\n")); err != nil {
		t.Fatalf("Push = %v, want the error answered on the wire", err)
	}
	if called {
		t.Error("handler called for a malformed request")
	}

	want := "HTTP/1.1 400 Bad Request\r\nContent-Type: text/plain\r\nContent-Length: 22\r\n\r\nmalformed request line"
	if got := conn.GetWritten(); got != want {
		t.Errorf("wire =\n%q\nwant\n%q", got, want)
	}
	if !conn.IsClosed() {
		t.Error("connection kept after a malformed head")
	}
	if len(obs.failed) != 1 || !errors.Is(obs.failed[0], ErrMalformedRequestLine) {
		t.Errorf("failed = %v, want one ErrMalformedRequestLine", obs.failed)
	}
	if len(obs.status) != 1 || obs.status[0] != StatusBadRequest {
		t.Errorf("status = %v, want [400]", obs.status)
	}
}

func TestExchangeInvalidBodyKeepsConnection(t *testing.T) {
	ex, conn := newTestExchange(echoPath, ExchangeConfig{})
	ctx := context.Background()

	err := ex.Push(ctx, []byte("POST /j HTTP/1.1\r\nContent-Type: application/json\r\nContent-Length: 4\r\n\r\n{bad"))
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if !strings.HasPrefix(conn.GetWritten(), "HTTP/1.1 400 Bad Request\r\n") {
		t.Errorf("wire = %q, want a 400 response", conn.GetWritten())
	}
	if conn.IsClosed() {
		t.Fatal("connection closed although the whole body was received")
	}

	if err := ex.Push(ctx, []byte("GET /next HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("next Push failed: %v", err)
	}
	if !strings.HasSuffix(conn.GetWritten(), "\r\n\r\n/next") {
		t.Errorf("wire = %q, want the next response", conn.GetWritten())
	}
}

func TestExchangeUnsupportedTransferEncoding(t *testing.T) {
	ex, conn := newTestExchange(echoPath, ExchangeConfig{})
	if err := ex.Push(context.Background(), []byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if !strings.HasPrefix(conn.GetWritten(), "HTTP/1.1 411 Length Required\r\n") {
		t.Errorf("wire = %q, want 411", conn.GetWritten())
	}
	if !conn.IsClosed() {
		t.Error("connection kept after an unparsed body")
	}
}

func TestExchangeBodyTooLarge(t *testing.T) {
	ex, conn := newTestExchange(echoPath, ExchangeConfig{
		Accumulator: AccumulatorConfig{InitialSize: 32, GrowQuantum: 32, MaxSize: 64},
	})
	ctx := context.Background()
	if err := ex.Push(ctx, []byte("POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\n")); err != nil {
		t.Fatalf("head Push failed: %v", err)
	}
	if err := ex.Push(ctx, []byte(strings.Repeat("x", 50))); err != nil {
		t.Fatalf("body Push failed: %v", err)
	}
	if !strings.HasPrefix(conn.GetWritten(), "HTTP/1.1 413 Payload Too Large\r\n") {
		t.Errorf("wire = %q, want 413", conn.GetWritten())
	}
	if !conn.IsClosed() {
		t.Error("connection kept after an oversized body")
	}
}

func TestExchangeHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusLine string
	}{
		{"plain error", errors.New("boom"), "HTTP/1.1 500 Internal Server Error\r\n"},
		{"client error", ClientError(StatusNotFound, nil, "no such thing"), "HTTP/1.1 404 Not Found\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			ex, conn := newTestExchange(func(ctx context.Context, req *Request, res *Response) error {
				return tt.err
			}, ExchangeConfig{Observer: obs})

			if err := ex.Push(context.Background(), []byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
				t.Fatalf("Push = %v, want the error answered on the wire", err)
			}
			if !strings.HasPrefix(conn.GetWritten(), tt.statusLine) {
				t.Errorf("wire = %q, want %q", conn.GetWritten(), tt.statusLine)
			}
			if conn.IsClosed() {
				t.Error("handler error closed a keep-alive connection")
			}
			if len(obs.failed) != 1 || len(obs.done) != 1 {
				t.Errorf("failed = %v done = %v", obs.failed, obs.done)
			}
		})
	}
}

func TestExchangeHandlerErrorAfterWrite(t *testing.T) {
	late := errors.New("audit log unavailable")
	ex, conn := newTestExchange(func(ctx context.Context, req *Request, res *Response) error {
		if err := res.WriteString(ctx, "ok"); err != nil {
			return err
		}
		return late
	}, ExchangeConfig{})

	err := ex.Push(context.Background(), []byte("GET / HTTP/1.1\r\n\r\n"))
	if !errors.Is(err, late) {
		t.Fatalf("Push = %v, want %v", err, late)
	}
	if conn.Sends() != 1 || !strings.HasSuffix(conn.GetWritten(), "ok") {
		t.Errorf("wire = %q, want the handler's response only", conn.GetWritten())
	}
}

func TestExchangeHandlerPanic(t *testing.T) {
	obs := &recordingObserver{}
	ex, conn := newTestExchange(func(ctx context.Context, req *Request, res *Response) error {
		panic("nil map")
	}, ExchangeConfig{Observer: obs})

	if err := ex.Push(context.Background(), []byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("Push = %v", err)
	}
	if !strings.HasPrefix(conn.GetWritten(), "HTTP/1.1 500 Internal Server Error\r\n") {
		t.Errorf("wire = %q, want 500", conn.GetWritten())
	}
	if len(obs.failed) != 1 || !errors.Is(obs.failed[0], ErrHandlerPanic) {
		t.Errorf("failed = %v, want ErrHandlerPanic", obs.failed)
	}
}

func TestExchangeHandlerWithoutWrite(t *testing.T) {
	ex, conn := newTestExchange(func(ctx context.Context, req *Request, res *Response) error {
		res.SetHeader("X-Seen", req.Method)
		return nil
	}, ExchangeConfig{})

	if err := ex.Push(context.Background(), []byte("DELETE /x HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	want := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 0\r\nConnection: keep-alive\r\nX-Seen: DELETE\r\n\r\n"
	if got := conn.GetWritten(); got != want {
		t.Errorf("wire =\n%q\nwant\n%q", got, want)
	}
}

func TestExchangeHooks(t *testing.T) {
	var chunks int
	var sawHead string
	ex, conn := newTestExchange(echoPath, ExchangeConfig{
		Hooks: Hooks{
			OnHeader: func(req *Request) error {
				sawHead = req.Method + " " + req.Path
				if req.Header.Get("authorization") == "" {
					return ClientError(StatusUnauthorized, nil, "")
				}
				return nil
			},
			OnData: func(req *Request, chunk []byte) {
				chunks++
			},
		},
	})
	ctx := context.Background()

	if err := ex.Push(ctx, []byte("POST /secure HTTP/1.1\r\n")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if err := ex.Push(ctx, []byte("Content-Length: 3\r\n\r\n")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if chunks != 2 {
		t.Errorf("OnData called %d times, want 2", chunks)
	}
	if sawHead != "POST /secure" {
		t.Errorf("OnHeader saw %q", sawHead)
	}
	if !strings.HasPrefix(conn.GetWritten(), "HTTP/1.1 401 Unauthorized\r\n") {
		t.Errorf("wire = %q, want 401", conn.GetWritten())
	}
	if !conn.IsClosed() {
		t.Error("connection kept although the body was never read")
	}
}

func TestExchangeObserver(t *testing.T) {
	obs := &recordingObserver{}
	ex, _ := newTestExchange(echoPath, ExchangeConfig{
		Accumulator: AccumulatorConfig{InitialSize: 16, GrowQuantum: 16},
		Observer:    obs,
	})

	if err := ex.Push(context.Background(), []byte("PUT /resource HTTP/1.1\r\nContent-Length: 2\r\n\r\nok")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if len(obs.done) != 1 || obs.done[0] != "PUT" || obs.status[0] != StatusOK {
		t.Errorf("done = %v status = %v", obs.done, obs.status)
	}
	if len(obs.grown) != 1 || obs.grown[0] != [2]int{16, 48} {
		t.Errorf("grown = %v, want [[16 48]]", obs.grown)
	}
	if len(obs.failed) != 0 {
		t.Errorf("failed = %v, want none", obs.failed)
	}
}

func TestExchangeClose(t *testing.T) {
	called := false
	ex, conn := newTestExchange(func(ctx context.Context, req *Request, res *Response) error {
		called = true
		return nil
	}, ExchangeConfig{})
	ctx := context.Background()

	if err := ex.Push(ctx, []byte("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	ex.Close()
	ex.Close()
	if err := ex.Push(ctx, []byte("defghij")); err != nil {
		t.Fatalf("Push after Close = %v, want nil", err)
	}
	if called || conn.Sends() != 0 {
		t.Errorf("handler called = %v, sends = %d after Close", called, conn.Sends())
	}
	if ex.Request().State() != StateHeader {
		t.Errorf("request state = %v, want reset", ex.Request().State())
	}
}
