// Package config loads the inlet process configuration from defaults, a JSON
// file, the environment and command-line flags, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/watt-toolkit/inlet/pkg/inlet/http11"
	"github.com/watt-toolkit/inlet/pkg/inlet/server"
)

// Environment variables read by Load
const (
	EnvAddr        = "INLET_ADDR"
	EnvMetricsAddr = "INLET_METRICS_ADDR"
	EnvLogLevel    = "INLET_LOG_LEVEL"
	EnvLogFormat   = "INLET_LOG_FORMAT"
)

// ErrInvalid indicates a configuration that failed validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Duration is a time.Duration that reads and writes JSON as "10s".
// A JSON number is taken as seconds.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(v * float64(time.Second))
	default:
		return fmt.Errorf("config: invalid duration %s", b)
	}
	return nil
}

// Config is the process configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `json:"addr" validate:"required,hostname_port"`

	// MetricsAddr is the listen address of the Prometheus endpoint.
	// Empty disables it.
	MetricsAddr string `json:"metrics_addr" validate:"omitempty,hostname_port"`

	IdleTimeout  Duration `json:"idle_timeout" validate:"gte=0"`
	WriteTimeout Duration `json:"write_timeout" validate:"gte=0"`

	ReadChunkSize  int `json:"read_chunk_size" validate:"gte=512,lte=1048576"`
	BufferSize     int `json:"buffer_size" validate:"gte=1024"`
	GrowQuantum    int `json:"grow_quantum" validate:"gte=1024"`
	MaxBufferSize  int `json:"max_buffer_size" validate:"gtefield=BufferSize"`
	MaxConnections int `json:"max_connections" validate:"gte=0"`

	DisableKeepAlive bool `json:"disable_keep_alive"`
	DisableDate      bool `json:"disable_date"`

	LogLevel  string `json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `json:"log_format" validate:"oneof=json text"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Addr:          "localhost:8080",
		IdleTimeout:   Duration(10 * time.Second),
		WriteTimeout:  Duration(10 * time.Second),
		ReadChunkSize: 4096,
		BufferSize:    http11.DefaultBufferSize,
		GrowQuantum:   http11.DefaultGrowQuantum,
		MaxBufferSize: http11.DefaultMaxBufferSize,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate reports every field that holds an unusable value.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s=%v violates %s", fe.Field(), fe.Value(), rule))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// SlogLevel returns LogLevel as a slog.Level; unknown names map to Info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ServerConfig maps the configuration onto the transport settings.
func (c Config) ServerConfig() server.Config {
	return server.Config{
		Addr:             c.Addr,
		IdleTimeout:      time.Duration(c.IdleTimeout),
		WriteTimeout:     time.Duration(c.WriteTimeout),
		ReadChunkSize:    c.ReadChunkSize,
		BufferSize:       c.BufferSize,
		GrowQuantum:      c.GrowQuantum,
		MaxBufferSize:    c.MaxBufferSize,
		MaxConnections:   c.MaxConnections,
		DisableKeepAlive: c.DisableKeepAlive,
		DisableDate:      c.DisableDate,
	}
}

// Source names where a configuration is read from.
type Source struct {
	// Path is the JSON file; empty means none.
	Path string

	// LookupEnv reads environment variables; nil means none.
	LookupEnv func(key string) (string, bool)

	// Flags is a parsed flag set built with RegisterFlags; nil means none.
	// Only flags given on the command line override other sources.
	Flags *flag.FlagSet
}

// Load builds the configuration from src and validates it.
func Load(src Source) (Config, error) {
	c := Default()
	if src.Path != "" {
		if err := c.loadFile(src.Path); err != nil {
			return Config{}, err
		}
	}
	if src.LookupEnv != nil {
		c.applyEnv(src.LookupEnv)
	}
	if src.Flags != nil {
		c.applyFlags(src.Flags)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// loadFile decodes the JSON file at path over c. Unknown fields are rejected.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAddr); ok {
		c.Addr = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		c.MetricsAddr = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogFormat); ok {
		c.LogFormat = strings.ToLower(v)
	}
}

// RegisterFlags defines the configuration flags on fs.
func RegisterFlags(fs *flag.FlagSet) {
	d := Default()
	fs.String("addr", d.Addr, "HTTP listen address")
	fs.String("metrics-addr", d.MetricsAddr, "Prometheus listen address (empty disables)")
	fs.Duration("idle-timeout", time.Duration(d.IdleTimeout), "close connections silent for this long")
	fs.Duration("write-timeout", time.Duration(d.WriteTimeout), "bound on writing one response")
	fs.Int("read-chunk-size", d.ReadChunkSize, "bytes read from a connection at a time")
	fs.Int("buffer-size", d.BufferSize, "initial request buffer capacity")
	fs.Int("grow-quantum", d.GrowQuantum, "request buffer growth step")
	fs.Int("max-buffer-size", d.MaxBufferSize, "maximum bytes of one request")
	fs.Int("max-connections", d.MaxConnections, "maximum concurrent connections (0 = unlimited)")
	fs.Bool("disable-keep-alive", d.DisableKeepAlive, "close connections after each response")
	fs.Bool("disable-date", d.DisableDate, "omit the Date response header")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
	fs.String("log-format", d.LogFormat, "log format: json or text")
}

// applyFlags copies the flags set on the command line into c.
func (c *Config) applyFlags(fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		g, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		switch v := g.Get().(type) {
		case string:
			switch f.Name {
			case "addr":
				c.Addr = v
			case "metrics-addr":
				c.MetricsAddr = v
			case "log-level":
				c.LogLevel = strings.ToLower(v)
			case "log-format":
				c.LogFormat = strings.ToLower(v)
			}
		case time.Duration:
			switch f.Name {
			case "idle-timeout":
				c.IdleTimeout = Duration(v)
			case "write-timeout":
				c.WriteTimeout = Duration(v)
			}
		case int:
			switch f.Name {
			case "read-chunk-size":
				c.ReadChunkSize = v
			case "buffer-size":
				c.BufferSize = v
			case "grow-quantum":
				c.GrowQuantum = v
			case "max-buffer-size":
				c.MaxBufferSize = v
			case "max-connections":
				c.MaxConnections = v
			}
		case bool:
			switch f.Name {
			case "disable-keep-alive":
				c.DisableKeepAlive = v
			case "disable-date":
				c.DisableDate = v
			}
		}
	})
}
