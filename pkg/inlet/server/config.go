package server

import (
	"log/slog"
	"net"
	"time"

	"github.com/watt-toolkit/inlet/pkg/inlet/http11"
)

// Config holds server configuration
type Config struct {
	// Addr is the TCP address to listen on (e.g., "localhost:8080")
	// Default: "localhost:8080"
	Addr string

	// IdleTimeout is how long a connection may stay silent, between or
	// inside requests, before it is closed.
	// Default: 10 seconds
	IdleTimeout time.Duration

	// WriteTimeout bounds the write of one response.
	// Default: 10 seconds
	WriteTimeout time.Duration

	// ReadChunkSize is the size of the per-connection read buffer; every
	// read is pushed into the request as one chunk.
	// Default: 4096 bytes
	ReadChunkSize int

	// BufferSize is the initial request buffer capacity.
	// Default: 64 KiB
	BufferSize int

	// GrowQuantum is the request buffer growth step.
	// Default: 64 KiB
	GrowQuantum int

	// MaxBufferSize bounds the bytes of one request (head and body).
	// Default: 10 MiB
	MaxBufferSize int

	// MaxConnections is the maximum number of concurrent connections
	// 0 means unlimited
	// Default: 0 (unlimited)
	MaxConnections int

	// DisableKeepAlive closes every connection after its first response.
	// Default: false (keep-alive enabled)
	DisableKeepAlive bool

	// DisableDate suppresses the Date response header.
	DisableDate bool

	// OnConnect is called for every accepted connection before any byte is
	// read. A non-nil error closes the connection.
	OnConnect func(conn net.Conn) error

	// Hooks are passed to every connection's exchange.
	Hooks http11.Hooks

	// Logger receives connection and request logs.
	// Default: discard
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *Metrics
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:           "localhost:8080",
		IdleTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadChunkSize:  4096,
		BufferSize:     http11.DefaultBufferSize,
		GrowQuantum:    http11.DefaultGrowQuantum,
		MaxBufferSize:  http11.DefaultMaxBufferSize,
		MaxConnections: 0, // Unlimited
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadChunkSize <= 0 {
		c.ReadChunkSize = d.ReadChunkSize
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.GrowQuantum <= 0 {
		c.GrowQuantum = d.GrowQuantum
	}
	if c.MaxBufferSize == 0 {
		c.MaxBufferSize = d.MaxBufferSize
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// exchangeConfig derives the per-connection exchange settings.
func (c Config) exchangeConfig(logger *slog.Logger, observer http11.Observer) http11.ExchangeConfig {
	return http11.ExchangeConfig{
		Accumulator: http11.AccumulatorConfig{
			InitialSize: c.BufferSize,
			GrowQuantum: c.GrowQuantum,
			MaxSize:     c.MaxBufferSize,
		},
		DisableKeepAlive: c.DisableKeepAlive,
		DisableDate:      c.DisableDate,
		Logger:           logger,
		Hooks:            c.Hooks,
		Observer:         observer,
	}
}
