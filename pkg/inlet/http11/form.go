package http11

import (
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Form maps field names to their values in arrival order.
type Form map[string][]string

// Get returns the first value of name, or "".
func (f Form) Get(name string) string {
	vs := f[name]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Add appends value to name.
func (f Form) Add(name, value string) {
	f[name] = append(f[name], value)
}

// Files maps part names to raw payloads. A repeated name is stored under
// name+N, N counting from 2.
type Files map[string][]byte

// put stores data under name, or under the first free name+N.
func (fs Files) put(name string, data []byte) string {
	key := name
	for n := 2; ; n++ {
		if _, taken := fs[key]; !taken {
			break
		}
		key = name + strconv.Itoa(n)
	}
	fs[key] = data
	return key
}

// ParseFormData decodes an application/x-www-form-urlencoded body into dst.
//
// The body is split on '&' and each piece on its first '='. Both sides are
// percent-decoded and trimmed; a piece without '=' is a name with an empty
// value. Values are appended, so repeated names keep order and count.
func ParseFormData(body []byte, dst Form) error {
	data := string(body)
	for data != "" {
		var piece string
		piece, data, _ = strings.Cut(data, "&")
		if piece == "" {
			continue
		}
		k, v, _ := strings.Cut(piece, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return ClientError(StatusBadRequest, ErrInvalidForm, "invalid url-encoded form")
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return ClientError(StatusBadRequest, ErrInvalidForm, "invalid url-encoded form")
		}
		dst.Add(strings.TrimSpace(key), strings.TrimSpace(val))
	}
	return nil
}

// ParseJSON strictly decodes a JSON body. An empty body yields an empty object.
func ParseJSON(body []byte) (any, error) {
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, ClientError(StatusBadRequest, ErrInvalidJSON, "invalid JSON body: "+err.Error())
	}
	return v, nil
}
