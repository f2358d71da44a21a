package http11

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	contentDispositionRe = regexp.MustCompile(`(?i)^[ \t]*content-disposition[ \t]*:(.*)$`)
	partContentTypeRe    = regexp.MustCompile(`(?i)^[ \t]*content-type[ \t]*:(.*)$`)
	dispositionParamRe   = regexp.MustCompile(`([a-zA-Z]*)[ \t]*=[ \t]*(?:"([^"]*)"|'([^']*)')`)
)

// ParseMultipartFormData parses a multipart/form-data body.
//
// Every occurrence of "--"+boundary in body is located; each pair of
// adjacent occurrences frames one part. A part's header lines run up to the
// first blank line. Content-Disposition supplies name and the optional
// filename; a Content-Type marks the part as a file.
//
// Text parts are appended to form[name]. File payloads are stored in
// files[name] (name+N when taken) and the filename is appended to form[name].
// Payloads are copied, so body may be released afterwards.
func ParseMultipartFormData(boundary string, body []byte, form Form, files Files) error {
	if boundary == "" {
		return ClientError(StatusBadRequest, ErrMissingBoundary, "multipart/form-data without boundary")
	}

	offsets := boundaryOffsets(body, []byte("--"+boundary))
	if len(offsets) < 2 {
		return ClientError(StatusBadRequest, ErrMalformedMultipart,
			"multipart/form-data body contains less than two boundary strings")
	}

	for i := 0; i+1 < len(offsets); i++ {
		if err := parsePart(body[offsets[i]:offsets[i+1]], form, files); err != nil {
			return err
		}
	}
	return nil
}

// parsePart parses one block that starts with a boundary marker and ends
// right before the next one.
func parsePart(block []byte, form Form, files Files) error {
	var (
		name, filename, partType string
		hasName, terminated      bool
	)

	// The first line is the boundary marker itself.
	_, rest := nextLine(block)
	for len(rest) > 0 {
		var line []byte
		line, rest = nextLine(rest)
		if len(trimSpace(line)) == 0 {
			terminated = true
			break
		}
		if m := contentDispositionRe.FindSubmatch(line); m != nil {
			for _, p := range dispositionParamRe.FindAllSubmatch(m[1], -1) {
				val := string(p[2])
				if len(p[3]) > 0 {
					val = string(p[3])
				}
				switch strings.ToLower(string(p[1])) {
				case "name":
					name, hasName = val, true
				case "filename":
					filename = val
				}
			}
			continue
		}
		if m := partContentTypeRe.FindSubmatch(line); m != nil {
			partType = strings.TrimSpace(string(m[1]))
		}
	}

	if !terminated {
		return ClientError(StatusBadRequest, ErrMalformedMultipart, "multipart part without header terminator")
	}
	if !hasName {
		return ClientError(StatusBadRequest, ErrMalformedMultipart, "multipart part without name")
	}

	// The line break before the next marker belongs to the delimiter.
	payload := block[len(block)-len(rest):]
	switch {
	case bytes.HasSuffix(payload, crlf):
		payload = payload[:len(payload)-2]
	case len(payload) > 0 && payload[len(payload)-1] == '\n':
		payload = payload[:len(payload)-1]
	}

	if partType == "" {
		form.Add(name, string(payload))
		return nil
	}
	files.put(name, bytes.Clone(payload))
	form.Add(name, filename)
	return nil
}

// boundaryOffsets returns every offset of marker in body.
func boundaryOffsets(body, marker []byte) []int {
	var res []int
	if len(body) < len(marker) {
		return res
	}
	for off := 0; off < len(body); {
		i := bytes.Index(body[off:], marker)
		if i < 0 {
			break
		}
		res = append(res, off+i)
		off += i + 1
	}
	return res
}
