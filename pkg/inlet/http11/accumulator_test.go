package http11

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestFindHeaderEnd(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"canonical", "GET / HTTP/1.1\r\nHost: h\r\n\r\n", len("GET / HTTP/1.1\r\nHost: h\r\n") + 2},
		{"canonical with body", "GET / HTTP/1.1\r\n\r\nbody", 18},
		{"tolerant", "GET / HTTP/1.1\nHost: h\n\n", len("GET / HTTP/1.1\nHost: h\n") + 1},
		{"none", "GET / HTTP/1.1\r\nHost: h\r\n", 0},
		{"empty", "", 0},
		{"single byte", "\n", 0},
		{"partial canonical", "abc\r\n\r", 0},
		{"cr lf lf", "abc\r\n\n", 6},
		{"canonical before tolerant", "a\r\n\r\n\n\n", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindHeaderEnd([]byte(tt.input)); got != tt.want {
				t.Errorf("FindHeaderEnd(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFindHeaderEndNoTerminator(t *testing.T) {
	for n := 0; n < 64; n++ {
		input := bytes.Repeat([]byte("a\r"), n)
		if got := FindHeaderEnd(input); got != 0 {
			t.Fatalf("FindHeaderEnd(len=%d) = %d, want 0", len(input), got)
		}
	}
}

func TestAccumulatorHeaderReady(t *testing.T) {
	acc, rec := newRecordingAccumulator(AccumulatorConfig{}, 0)
	head := "GET /a HTTP/1.1\r\nHost: h\r\n\r\n"

	if err := acc.Push([]byte(head)); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if len(rec.headers) != 1 {
		t.Fatalf("header events = %d, want 1", len(rec.headers))
	}
	if rec.headers[0] != (Range{Start: 0, End: len(head)}) {
		t.Errorf("header range = %+v, want [0,%d)", rec.headers[0], len(head))
	}
	if acc.HeadEnd() != len(head) {
		t.Errorf("HeadEnd = %d, want %d", acc.HeadEnd(), len(head))
	}
	if rec.complete != 1 {
		t.Errorf("complete events = %d, want 1 for an empty body", rec.complete)
	}
}

func TestAccumulatorSplitTerminator(t *testing.T) {
	splits := []struct {
		name   string
		chunks []string
		want   int
	}{
		{"crlf|crlf", []string{"GET / HTTP/1.1\r\n", "\r\n"}, 18},
		{"crlfcr|lf", []string{"GET / HTTP/1.1\r\n\r", "\n"}, 18},
		{"cr|lfcrlf", []string{"GET / HTTP/1.1\r", "\n\r\n"}, 18},
		{"lf|lf", []string{"GET / HTTP/1.1\n", "\n"}, 16},
		{"byte by byte", strings.Split("GET / HTTP/1.1\r\n\r\n", ""), 18},
		{"crlf|lf", []string{"GET / HTTP/1.1\r\n", "\n"}, 17},
	}

	for _, tt := range splits {
		t.Run(tt.name, func(t *testing.T) {
			acc, rec := newRecordingAccumulator(AccumulatorConfig{}, 0)
			for _, c := range tt.chunks {
				if err := acc.Push([]byte(c)); err != nil {
					t.Fatalf("Push(%q) failed: %v", c, err)
				}
			}
			if acc.HeadEnd() != tt.want {
				t.Errorf("HeadEnd = %d, want %d", acc.HeadEnd(), tt.want)
			}
			if len(rec.headers) != 1 {
				t.Errorf("header events = %d, want 1", len(rec.headers))
			}
			if got := FindHeaderEnd([]byte(strings.Join(tt.chunks, ""))); got != tt.want {
				t.Errorf("single-buffer offset = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAccumulatorCompletesOnce(t *testing.T) {
	acc, rec := newRecordingAccumulator(AccumulatorConfig{}, 5)

	if err := acc.Push([]byte("POST /p HTTP/1.1\r\nContent-Length: 5\r\n\r\n")); err != nil {
		t.Fatalf("Push head failed: %v", err)
	}
	if rec.complete != 0 {
		t.Fatalf("complete fired before body")
	}
	if err := acc.Push([]byte("hel")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if rec.complete != 0 {
		t.Fatalf("complete fired on partial body")
	}
	if acc.CurrentBodyLength() != 3 {
		t.Errorf("CurrentBodyLength = %d, want 3", acc.CurrentBodyLength())
	}
	if err := acc.Push([]byte("lo")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if rec.complete != 1 {
		t.Fatalf("complete events = %d, want 1", rec.complete)
	}
	if string(acc.Body()) != "hello" {
		t.Errorf("Body = %q, want %q", acc.Body(), "hello")
	}

	// A later empty push does not fire again.
	if err := acc.Push(nil); err != nil {
		t.Fatalf("Push(nil) failed: %v", err)
	}
	if rec.complete != 1 {
		t.Errorf("complete events = %d after unrelated push, want 1", rec.complete)
	}
}

func TestAccumulatorRejectsExcessBody(t *testing.T) {
	acc, rec := newRecordingAccumulator(AccumulatorConfig{}, 2)

	err := acc.Push([]byte("POST / HTTP/1.1\r\nContent-Length: 2\r\n\r\nabc"))
	if !errors.Is(err, ErrExcessBody) {
		t.Fatalf("err = %v, want ErrExcessBody", err)
	}
	if StatusOf(err) != StatusBadRequest {
		t.Errorf("status = %d, want 400", StatusOf(err))
	}
	if rec.complete != 0 {
		t.Errorf("complete fired for an oversized body")
	}
}

func TestAccumulatorGrowPreservesBytes(t *testing.T) {
	acc, rec := newRecordingAccumulator(AccumulatorConfig{InitialSize: 16, GrowQuantum: 16}, 100)

	var want bytes.Buffer
	head := "POST / HTTP/1.1\r\n\r\n"
	chunks := []string{head[:10], head[10:]}
	for i := 0; i < 10; i++ {
		chunks = append(chunks, strings.Repeat(string(rune('a'+i)), 10))
	}

	grows := 0
	acc.config.OnGrow = func(from, to int) {
		grows++
		if to%16 != 0 || to <= from {
			t.Errorf("grow %d -> %d is not a larger multiple of the quantum", from, to)
		}
	}

	for _, c := range chunks {
		want.WriteString(c)
		if err := acc.Push([]byte(c)); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		if got := acc.Bytes(Range{Start: 0, End: acc.WriteStart()}); !bytes.Equal(got, want.Bytes()) {
			t.Fatalf("accumulated bytes = %q, want %q", got, want.Bytes())
		}
		if acc.WriteStart() > acc.Cap() {
			t.Fatalf("writeStart %d exceeds capacity %d", acc.WriteStart(), acc.Cap())
		}
	}

	if grows == 0 {
		t.Error("expected at least one grow")
	}
	if acc.Cap() != 128 {
		t.Errorf("Cap = %d, want 128 (smallest multiple of 16 fitting 119 bytes)", acc.Cap())
	}
	if rec.complete != 1 {
		t.Errorf("complete events = %d, want 1", rec.complete)
	}
}

func TestAccumulatorGrowSingleLargeChunk(t *testing.T) {
	acc := NewAccumulator(AccumulatorConfig{InitialSize: 8, GrowQuantum: 10})
	chunk := bytes.Repeat([]byte("x"), 25)
	if err := acc.Push(chunk); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if acc.Cap() != 30 {
		t.Errorf("Cap = %d, want 30", acc.Cap())
	}
	if acc.Len() != 25 {
		t.Errorf("Len = %d, want 25", acc.Len())
	}
}

func TestAccumulatorMaxSize(t *testing.T) {
	t.Run("headers", func(t *testing.T) {
		acc := NewAccumulator(AccumulatorConfig{InitialSize: 8, GrowQuantum: 8, MaxSize: 16})
		err := acc.Push([]byte("GET /very/long/path HTTP/1.1\r\n"))
		if !errors.Is(err, ErrHeadersTooLarge) {
			t.Fatalf("err = %v, want ErrHeadersTooLarge", err)
		}
		if StatusOf(err) != StatusRequestHeaderFieldsTooLarge {
			t.Errorf("status = %d, want 431", StatusOf(err))
		}
	})

	t.Run("body", func(t *testing.T) {
		acc, _ := newRecordingAccumulator(AccumulatorConfig{InitialSize: 32, GrowQuantum: 32, MaxSize: 32}, 100)
		if err := acc.Push([]byte("POST / HTTP/1.1\r\n\r\n")); err != nil {
			t.Fatalf("Push head failed: %v", err)
		}
		err := acc.Push(bytes.Repeat([]byte("b"), 20))
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Fatalf("err = %v, want ErrBodyTooLarge", err)
		}
		if StatusOf(err) != StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", StatusOf(err))
		}
	})

	t.Run("head and body in one chunk", func(t *testing.T) {
		acc := NewAccumulator(AccumulatorConfig{InitialSize: 16, GrowQuantum: 16, MaxSize: 32})
		if err := acc.Push([]byte("POST / HTTP/1.1\r")); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		err := acc.Push(append([]byte("\n\r\n"), bytes.Repeat([]byte("b"), 40)...))
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Fatalf("err = %v, want ErrBodyTooLarge", err)
		}
	})
}

func TestAccumulatorResetIdempotent(t *testing.T) {
	acc, _ := newRecordingAccumulator(AccumulatorConfig{InitialSize: 16, GrowQuantum: 16}, 40)
	if err := acc.Push([]byte("POST / HTTP/1.1\r\n\r\n0123456789012345678901234567890123456789")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		acc.Reset()
		if acc.Len() != 0 || acc.ReadPos() != 0 || acc.WriteStart() != 0 || acc.HeadEnd() != 0 {
			t.Fatalf("reset %d: cursors not zeroed: len=%d read=%d write=%d head=%d",
				i, acc.Len(), acc.ReadPos(), acc.WriteStart(), acc.HeadEnd())
		}
		if acc.Cap() != 16 {
			t.Fatalf("reset %d: Cap = %d, want 16", i, acc.Cap())
		}
		if acc.CurrentBodyLength() != 0 {
			t.Fatalf("reset %d: CurrentBodyLength = %d, want 0", i, acc.CurrentBodyLength())
		}
	}
}

func TestAccumulatorNextCycleAfterReset(t *testing.T) {
	acc, rec := newRecordingAccumulator(AccumulatorConfig{}, 0)
	for i := 0; i < 3; i++ {
		if err := acc.Push([]byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
			t.Fatalf("cycle %d: Push failed: %v", i, err)
		}
		acc.Reset()
	}
	if len(rec.headers) != 3 || rec.complete != 3 {
		t.Errorf("events = %d headers / %d complete, want 3 / 3", len(rec.headers), rec.complete)
	}
}

func TestAccumulatorBodyBeforeHead(t *testing.T) {
	acc := NewAccumulator(AccumulatorConfig{})
	if err := acc.Push([]byte("GET / HT")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if acc.Body() != nil {
		t.Errorf("Body = %q before terminator, want nil", acc.Body())
	}
	if acc.CurrentBodyLength() != 0 {
		t.Errorf("CurrentBodyLength = %d, want 0", acc.CurrentBodyLength())
	}
}

func TestAccumulatorHandlerErrorAbortsPush(t *testing.T) {
	acc := NewAccumulator(AccumulatorConfig{})
	boom := errors.New("boom")
	acc.OnEvent(func(ev Event) error {
		if _, ok := ev.(HeaderReady); ok {
			return boom
		}
		t.Errorf("unexpected event %T", ev)
		return nil
	})
	if err := acc.Push([]byte("GET / HTTP/1.1\r\n\r\n")); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func BenchmarkAccumulatorPush(b *testing.B) {
	head := []byte("POST /upload HTTP/1.1\r\nHost: example.com\r\nContent-Length: 4096\r\n\r\n")
	body := bytes.Repeat([]byte("z"), 512)
	acc := NewAccumulator(AccumulatorConfig{})
	acc.OnEvent(func(ev Event) error {
		if _, ok := ev.(HeaderReady); ok {
			acc.Expect(4096)
		}
		return nil
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = acc.Push(head)
		for j := 0; j < 8; j++ {
			_ = acc.Push(body)
		}
		acc.Reset()
	}
}
