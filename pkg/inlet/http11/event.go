package http11

// Range is a half-open byte range [Start, End) into an Accumulator.
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Event is emitted by an Accumulator while bytes are pushed.
// The set of events is closed: HeaderReady and BodyComplete.
type Event interface {
	event()
}

// HeaderReady is emitted once per request cycle when the header
// terminator has been found. Range covers the header block including
// the terminator.
type HeaderReady struct {
	Range Range
}

// BodyComplete is emitted once per request cycle when the body length
// first equals the declared Content-Length.
type BodyComplete struct{}

func (HeaderReady) event()  {}
func (BodyComplete) event() {}

// EventHandler receives accumulator events synchronously, inside the Push
// that produced them. A non-nil error aborts the Push and is returned from it.
type EventHandler func(Event) error
