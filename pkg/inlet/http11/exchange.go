package http11

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Handler processes a parsed request and writes the response.
//
// A handler that returns without writing gets an empty 200 response.
// A handler that returns an error before writing gets an error response
// built from it (see WriteError). An error returned after the response was
// written is passed on to the caller of Exchange.Push.
type Handler func(ctx context.Context, req *Request, res *Response) error

// Hooks are optional per-connection callbacks.
type Hooks struct {
	// OnHeader is called once the head of a request has been parsed,
	// before its body arrives. A non-nil error fails the request.
	OnHeader func(req *Request) error

	// OnData is called with every chunk before it is folded in.
	OnData func(req *Request, chunk []byte)
}

// Observer receives request cycle outcomes, e.g. for metrics.
type Observer interface {
	// RequestDone is called after a response was sent.
	RequestDone(method string, status int, elapsed time.Duration)

	// RequestFailed is called for every error caught at the cycle boundary.
	RequestFailed(err error)

	// BufferGrown is called when an accumulator reallocates.
	BufferGrown(from, to int)
}

// ExchangeConfig configures an Exchange.
type ExchangeConfig struct {
	// Accumulator sizes the request buffer.
	Accumulator AccumulatorConfig

	// DisableKeepAlive closes the connection after every response.
	DisableKeepAlive bool

	// DisableDate suppresses the Date response header.
	DisableDate bool

	// Logger receives one line per request and per caught error.
	// Default: discard
	Logger *slog.Logger

	// Hooks are optional lifecycle callbacks.
	Hooks Hooks

	// Observer is optional.
	Observer Observer
}

// Exchange binds one Request, one Response and a Handler to a connection.
// It is the request-cycle boundary: parse failures and handler errors are
// turned into error responses here, and the cycle is reset afterwards.
//
// An Exchange is not safe for concurrent use; chunks of one connection must
// be pushed sequentially, and the bytes of a request must not be pushed
// before the response to the previous one has been sent.
type Exchange struct {
	req     *Request
	res     *Response
	handler Handler
	config  ExchangeConfig
	logger  *slog.Logger
}

// NewExchange creates the request/response pair for conn.
func NewExchange(conn Connection, handler Handler, config ExchangeConfig) *Exchange {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Observer != nil && config.Accumulator.OnGrow == nil {
		config.Accumulator.OnGrow = config.Observer.BufferGrown
	}

	req := NewRequest(NewAccumulator(config.Accumulator))
	res := NewResponse(conn, req)
	res.SetSendDate(!config.DisableDate)

	e := &Exchange{
		req:     req,
		res:     res,
		handler: handler,
		config:  config,
		logger:  config.Logger.With("component", "exchange"),
	}
	if config.Hooks.OnHeader != nil {
		req.onHead = config.Hooks.OnHeader
	}
	return e
}

// Request returns the request of the exchange.
func (e *Exchange) Request() *Request { return e.req }

// Response returns the response of the exchange.
func (e *Exchange) Response() *Response { return e.res }

// Push folds one inbound chunk into the current request and, when the
// request is complete, runs the handler. The returned error is a transport
// failure or a handler error raised after its response was sent; the
// caller decides whether to close the connection.
func (e *Exchange) Push(ctx context.Context, chunk []byte) error {
	if e.res.closed {
		return nil
	}
	if e.config.Hooks.OnData != nil {
		e.config.Hooks.OnData(e.req, chunk)
	}

	ready, err := e.req.Push(chunk)
	if err != nil {
		return e.fail(ctx, err)
	}
	if !ready {
		return nil
	}
	return e.dispatch(ctx)
}

// dispatch runs the handler for a completed request.
func (e *Exchange) dispatch(ctx context.Context) error {
	start := time.Now()
	method, path := e.req.Method, e.req.Path
	e.res.open(e.req.KeepAlive && !e.config.DisableKeepAlive)

	herr := e.serve(ctx)
	switch {
	case herr != nil && !e.res.finished:
		e.logFailure(herr, method, path)
		if err := e.res.WriteError(ctx, herr); err != nil {
			return err
		}
	case herr != nil:
		e.logFailure(herr, method, path)
		return herr
	case !e.res.finished:
		if err := e.res.Write(ctx, nil); err != nil {
			return err
		}
	}

	status := e.res.lastStatus
	elapsed := time.Since(start)
	e.logger.Info("request",
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", float64(elapsed.Microseconds())/1000.0,
		"remote", e.req.RemoteAddr,
	)
	if e.config.Observer != nil {
		e.config.Observer.RequestDone(method, status, elapsed)
	}
	return nil
}

// serve calls the handler, converting a panic into a 500 error.
func (e *Exchange) serve(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = InternalError(fmt.Errorf("%w: %v", ErrHandlerPanic, p))
		}
	}()
	return e.handler(ctx, e.req, e.res)
}

// fail answers a request that could not be parsed. The connection is kept
// only when the whole body had been received, otherwise leftover bytes of
// the broken request would be read as the next one.
func (e *Exchange) fail(ctx context.Context, err error) error {
	method := e.req.Method
	e.logFailure(err, method, e.req.Path)
	keep := e.req.KeepAlive && e.req.state >= StateBodyComplete && !e.config.DisableKeepAlive
	e.res.open(keep)
	if werr := e.res.WriteError(ctx, err); werr != nil {
		e.req.Reset()
		return werr
	}
	if e.config.Observer != nil {
		e.config.Observer.RequestDone(method, e.res.lastStatus, 0)
	}
	return nil
}

func (e *Exchange) logFailure(err error, method, path string) {
	if e.config.Observer != nil {
		e.config.Observer.RequestFailed(err)
	}
	status := StatusOf(err)
	attrs := []any{
		"status", status,
		"method", method,
		"path", path,
		"remote", e.req.RemoteAddr,
		"error", err,
	}
	if status >= StatusInternalServerError {
		e.logger.Error("request failed", attrs...)
		return
	}
	e.logger.Warn("request rejected", attrs...)
}

// Close handles the far end closing the connection: the response becomes
// inert and the request state is released. Close is idempotent.
func (e *Exchange) Close() {
	e.res.MarkClosed()
}
