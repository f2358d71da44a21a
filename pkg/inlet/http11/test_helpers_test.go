package http11

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"
)

// mockConnection implements Connection for testing
type mockConnection struct {
	mu      sync.Mutex
	sent    bytes.Buffer
	sends   int
	closed  bool
	sendErr error
}

func (m *mockConnection) Send(ctx context.Context, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	if m.closed {
		return errors.New("mock: send on closed connection")
	}
	m.sends++
	m.sent.Write(p)
	return nil
}

func (m *mockConnection) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConnection) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConnection) GetWritten() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent.String()
}

func (m *mockConnection) Sends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sends
}

// eventRecorder collects accumulator events
type eventRecorder struct {
	headers  []Range
	complete int
	acc      *Accumulator
	expect   int64
}

func (r *eventRecorder) handle(ev Event) error {
	switch ev := ev.(type) {
	case HeaderReady:
		r.headers = append(r.headers, ev.Range)
		r.acc.Expect(r.expect)
	case BodyComplete:
		r.complete++
	}
	return nil
}

func newRecordingAccumulator(config AccumulatorConfig, expect int64) (*Accumulator, *eventRecorder) {
	acc := NewAccumulator(config)
	rec := &eventRecorder{acc: acc, expect: expect}
	acc.OnEvent(rec.handle)
	return acc, rec
}

var fixedTime = time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }
