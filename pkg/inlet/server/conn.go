package server

import (
	"context"
	"net"
	"sync"
	"time"
)

// netConnection adapts a net.Conn to http11.Connection.
type netConnection struct {
	conn         net.Conn
	writeTimeout time.Duration
	onWrite      func(n int)

	closeOnce sync.Once
	closeErr  error
}

func newNetConnection(conn net.Conn, writeTimeout time.Duration, onWrite func(n int)) *netConnection {
	return &netConnection{
		conn:         conn,
		writeTimeout: writeTimeout,
		onWrite:      onWrite,
	}
}

// Send writes p completely. The write deadline is the earlier of the
// configured write timeout and the context deadline.
func (c *netConnection) Send(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var deadline time.Time
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	n, err := c.conn.Write(p)
	if c.onWrite != nil && n > 0 {
		c.onWrite(n)
	}
	return err
}

// Close closes the underlying connection once; later calls return the
// first result.
func (c *netConnection) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
