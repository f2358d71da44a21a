package http11

import (
	"bytes"
	"math"
	"net/url"
	"strings"
)

// Head is the parsed request line and header block.
type Head struct {
	// Method is the upper-cased request method, e.g. "GET".
	Method string

	// OriginalURL is the request-target exactly as received.
	OriginalURL string

	// Path is the request-target without the query string.
	Path string

	// RawQuery is the query string without the '?'.
	RawQuery string

	// Proto is the protocol version token, e.g. "HTTP/1.1".
	Proto string

	// Header holds the header fields keyed by lower-cased name.
	Header Header

	// Query holds the percent-decoded query parameters, last occurrence wins.
	Query map[string]string

	// KeepAlive is true for HTTP/1.1 requests without "Connection: close".
	KeepAlive bool
}

// ParseHead parses the request line and header lines in text into h.
//
// Format: METHOD SP request-target SP HTTP-Version CRLF, then
// "name: value" lines up to the first blank line. Lines may end in LF alone.
// Lines without a colon are ignored. Header and Query of h are created if nil.
//
// Only a malformed request line or query string fails, with a 400 error.
func ParseHead(text []byte, h *Head) error {
	if h.Header == nil {
		h.Header = make(Header)
	}
	if h.Query == nil {
		h.Query = make(map[string]string)
	}

	line, rest := nextLine(text)
	fields := strings.Split(string(line), " ")
	if len(fields) != 3 || fields[0] == "" || fields[1] == "" || fields[2] == "" {
		return ClientError(StatusBadRequest, ErrMalformedRequestLine, "malformed request line")
	}

	h.Method = strings.ToUpper(fields[0])
	h.OriginalURL = fields[1]
	h.Proto = fields[2]
	h.Path, h.RawQuery, _ = strings.Cut(h.OriginalURL, "?")
	if err := parseQuery(h.RawQuery, h.Query); err != nil {
		return err
	}

	for len(rest) > 0 {
		line, rest = nextLine(rest)
		if len(line) == 0 {
			break
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		name := strings.ToLower(string(trimSpace(line[:colon])))
		if name == "" {
			continue
		}
		h.Header.Add(name, string(trimSpace(line[colon+1:])))
	}

	h.KeepAlive = h.Proto == Version && !containsFold(h.Header.Get(headerConnection), "close")
	return nil
}

// parseQuery decodes "a=1&b=2" into dst. Later names overwrite earlier ones;
// a piece without '=' maps to the empty string.
func parseQuery(raw string, dst map[string]string) error {
	for raw != "" {
		var piece string
		piece, raw, _ = strings.Cut(raw, "&")
		if piece == "" {
			continue
		}
		k, v, _ := strings.Cut(piece, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return ClientError(StatusBadRequest, ErrInvalidQuery, "invalid query string")
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return ClientError(StatusBadRequest, ErrInvalidQuery, "invalid query string")
		}
		if key == "" {
			continue
		}
		dst[key] = val
	}
	return nil
}

// parseContentLength parses a Content-Length value.
// An empty value means no body.
func parseContentLength(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return -1, ClientError(StatusBadRequest, ErrInvalidContentLength, "invalid Content-Length")
		}
		// Prevent overflow
		if n > (math.MaxInt64-9)/10 {
			return -1, ClientError(StatusBadRequest, ErrInvalidContentLength, "invalid Content-Length")
		}
		n = n*10 + int64(c-'0')
	}
	return n, nil
}

// nextLine splits b at the first LF, dropping the line terminator
// (CRLF or LF).
func nextLine(b []byte) (line, rest []byte) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		line, rest = b, nil
	} else {
		line, rest = b[:i], b[i+1:]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, rest
}

// trimSpace trims leading and trailing spaces and tabs (per RFC 9112)
func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

// containsFold reports whether substr is within s, ignoring ASCII case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
