package http11

import "strings"

// ContentType is a parsed Content-Type header value.
type ContentType struct {
	// MediaType is the lower-cased type/subtype, e.g. "multipart/form-data".
	MediaType string

	// Params holds the parameters with lower-cased names.
	Params map[string]string

	raw string
}

// ParseContentType parses a Content-Type value. It never fails: a value
// without a slash is kept as-is and treated as opaque by the body parser.
func ParseContentType(value string) ContentType {
	ct := ContentType{raw: strings.TrimSpace(value)}
	parts := strings.Split(ct.raw, ";")
	ct.MediaType = strings.ToLower(strings.TrimSpace(parts[0]))
	for _, p := range parts[1:] {
		name, val, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		val = strings.TrimSpace(val)
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
		if name == "" {
			continue
		}
		if ct.Params == nil {
			ct.Params = make(map[string]string, 1)
		}
		ct.Params[name] = val
	}
	return ct
}

// Boundary returns the multipart boundary parameter, or "".
func (ct ContentType) Boundary() string {
	return ct.Params["boundary"]
}

// IsMultipart reports whether the media type is multipart/form-data.
func (ct ContentType) IsMultipart() bool {
	return ct.MediaType == ContentTypeMultipart
}

// String returns the header value as it was received.
func (ct ContentType) String() string {
	return ct.raw
}
