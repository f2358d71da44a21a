package main

import (
	"context"
	"errors"

	"github.com/watt-toolkit/inlet/pkg/inlet/http11"
)

var errNoRoute = errors.New("no route")

// requestSummary is the JSON document describeRequest answers with.
type requestSummary struct {
	Method      string              `json:"method"`
	Path        string              `json:"path"`
	Query       map[string]string   `json:"query,omitempty"`
	Headers     map[string][]string `json:"headers"`
	ContentType string              `json:"content_type,omitempty"`
	Form        map[string][]string `json:"form,omitempty"`
	Files       map[string]int      `json:"files,omitempty"`
	JSON        any                 `json:"json,omitempty"`
	Body        string              `json:"body,omitempty"`
	Length      int64               `json:"content_length"`
	Remote      string              `json:"remote,omitempty"`
}

// describeRequest serves /healthz and echoes every other request under /
// as a requestSummary.
func describeRequest(ctx context.Context, req *http11.Request, res *http11.Response) error {
	switch req.Path {
	case "/healthz":
		return res.WriteString(ctx, "ok")
	case "/favicon.ico":
		return http11.ClientError(http11.StatusNotFound, errNoRoute, "")
	}

	summary := requestSummary{
		Method:      req.Method,
		Path:        req.Path,
		Query:       req.Query,
		Headers:     req.Header,
		ContentType: req.ContentType.MediaType,
		Form:        req.Form,
		JSON:        req.JSON(),
		Body:        string(req.Body()),
		Length:      req.ContentLength,
		Remote:      req.RemoteAddr,
	}
	if len(req.Files) > 0 {
		summary.Files = make(map[string]int, len(req.Files))
		for name, data := range req.Files {
			summary.Files[name] = len(data)
		}
	}
	return res.WriteJSON(ctx, summary)
}
