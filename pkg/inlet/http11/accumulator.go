package http11

// AccumulatorConfig holds sizing for an Accumulator.
type AccumulatorConfig struct {
	// InitialSize is the capacity allocated on creation and on every Reset.
	// Default: 64 KiB
	InitialSize int

	// GrowQuantum is the growth step. A grow allocates the smallest multiple
	// of the quantum that fits the occupied bytes plus the incoming chunk.
	// Default: 64 KiB
	GrowQuantum int

	// MaxSize bounds the occupied bytes of one request cycle.
	// 0 means unlimited.
	// Default: 10 MiB
	MaxSize int

	// OnGrow is called after every reallocation (optional).
	OnGrow func(from, to int)
}

// DefaultAccumulatorConfig returns the default accumulator sizing.
func DefaultAccumulatorConfig() AccumulatorConfig {
	return AccumulatorConfig{
		InitialSize: DefaultBufferSize,
		GrowQuantum: DefaultGrowQuantum,
		MaxSize:     DefaultMaxBufferSize,
	}
}

// Accumulator collects the raw bytes of one request cycle.
//
// Design:
//   - Growth by full reallocation and copy of the occupied window [readPos, writeStart)
//   - Header terminator scan resumes where the previous Push stopped, so the
//     total scan work of one message is linear in its size
//   - "\r\n\r\n" and the tolerant "\n\n" are both accepted as terminators
//   - Events are dispatched synchronously from Push
//
// headEnd is 0 until the terminator is found and is then fixed until Reset.
// BodyComplete fires at most once per cycle.
type Accumulator struct {
	buf        []byte
	length     int // bytes filled
	readPos    int
	writeStart int
	headEnd    int // offset just past the terminator, 0 = not found

	scanPos   int   // next offset to test for the terminator
	expected  int64 // declared Content-Length
	completed bool

	config  AccumulatorConfig
	onEvent EventHandler
}

// NewAccumulator creates an Accumulator. Zero config fields take defaults;
// a negative MaxSize disables the limit.
func NewAccumulator(config AccumulatorConfig) *Accumulator {
	if config.InitialSize <= 0 {
		config.InitialSize = DefaultBufferSize
	}
	if config.GrowQuantum <= 0 {
		config.GrowQuantum = DefaultGrowQuantum
	}
	if config.MaxSize == 0 {
		config.MaxSize = DefaultMaxBufferSize
	}
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	return &Accumulator{
		buf:    make([]byte, config.InitialSize),
		config: config,
	}
}

// OnEvent registers the handler for HeaderReady and BodyComplete.
// Only one handler is kept; a later call replaces it.
func (a *Accumulator) OnEvent(h EventHandler) {
	a.onEvent = h
}

// Expect records the declared Content-Length of the current request.
// It is normally called from the HeaderReady handler, before the
// completion check of the same Push.
func (a *Accumulator) Expect(contentLength int64) {
	a.expected = contentLength
}

// Push appends chunk, scans for the header terminator and checks body
// completion. Events raised by this chunk are dispatched before Push returns.
func (a *Accumulator) Push(chunk []byte) error {
	if len(chunk) > 0 {
		if err := a.ensure(chunk); err != nil {
			return err
		}
		copy(a.buf[a.writeStart:], chunk)
		a.length += len(chunk)
		a.writeStart += len(chunk)
	}

	if a.headEnd == 0 {
		end, next := scanTerminator(a.buf[:a.writeStart], a.scanPos)
		a.scanPos = next
		if end == 0 {
			return nil
		}
		a.headEnd = end
		if err := a.emit(HeaderReady{Range: Range{Start: a.readPos, End: end}}); err != nil {
			return err
		}
	}

	return a.checkComplete()
}

// checkComplete fires BodyComplete the first time the body length equals
// the declared Content-Length and rejects surplus bytes.
func (a *Accumulator) checkComplete() error {
	if a.headEnd == 0 {
		return nil
	}
	n := int64(a.length - (a.headEnd - a.readPos))
	if n > a.expected {
		return ClientError(StatusBadRequest, ErrExcessBody, "request body exceeds Content-Length")
	}
	if n == a.expected && !a.completed {
		a.completed = true
		return a.emit(BodyComplete{})
	}
	return nil
}

func (a *Accumulator) emit(ev Event) error {
	if a.onEvent == nil {
		return nil
	}
	return a.onEvent(ev)
}

// ensure makes room for chunk, reallocating when needed.
func (a *Accumulator) ensure(chunk []byte) error {
	n := len(chunk)
	if a.writeStart+n <= len(a.buf) {
		return nil
	}

	need := a.writeStart - a.readPos + n
	if a.config.MaxSize > 0 && need > a.config.MaxSize {
		if a.headEnd == 0 && !a.headEndsIn(chunk) {
			return ClientError(StatusRequestHeaderFieldsTooLarge, ErrHeadersTooLarge, "")
		}
		return ClientError(StatusRequestEntityTooLarge, ErrBodyTooLarge, "")
	}

	q := a.config.GrowQuantum
	size := (need + q - 1) / q * q
	if a.config.MaxSize > 0 && size > a.config.MaxSize {
		size = a.config.MaxSize
	}

	grown := make([]byte, size)
	copied := copy(grown, a.buf[a.readPos:a.writeStart])

	shift := a.readPos
	if a.headEnd > 0 {
		a.headEnd -= shift
	}
	a.scanPos -= shift
	if a.scanPos < 0 {
		a.scanPos = 0
	}

	from := len(a.buf)
	a.buf = grown
	a.readPos = 0
	a.writeStart = copied
	a.length = copied

	if a.config.OnGrow != nil {
		a.config.OnGrow(from, size)
	}
	return nil
}

// headEndsIn reports whether the header terminator would be found once
// chunk is appended.
func (a *Accumulator) headEndsIn(chunk []byte) bool {
	tail := a.buf[a.scanPos:a.writeStart]
	probe := make([]byte, 0, len(tail)+len(chunk))
	probe = append(append(probe, tail...), chunk...)
	return FindHeaderEnd(probe) > 0
}

// Body returns the body bytes [headEnd, writeStart), or nil before the
// header terminator has been found. The slice aliases the internal buffer
// and is invalid after Reset.
func (a *Accumulator) Body() []byte {
	if a.headEnd == 0 {
		return nil
	}
	return a.buf[a.headEnd:a.writeStart]
}

// Bytes returns the bytes of r. The slice aliases the internal buffer.
func (a *Accumulator) Bytes(r Range) []byte {
	return a.buf[r.Start:r.End]
}

// CurrentBodyLength returns writeStart - headEnd, or 0 before the header
// terminator has been found.
func (a *Accumulator) CurrentBodyLength() int {
	if a.headEnd == 0 {
		return 0
	}
	return a.writeStart - a.headEnd
}

// HeadEnd returns the offset just past the header terminator, 0 if not found.
func (a *Accumulator) HeadEnd() int { return a.headEnd }

// Len returns the number of bytes filled.
func (a *Accumulator) Len() int { return a.length }

// Cap returns the current buffer capacity.
func (a *Accumulator) Cap() int { return len(a.buf) }

// ReadPos returns the read cursor.
func (a *Accumulator) ReadPos() int { return a.readPos }

// WriteStart returns the write cursor.
func (a *Accumulator) WriteStart() int { return a.writeStart }

// Reset discards the buffer, allocates a fresh one of the initial size and
// zeroes all cursors. The event handler stays registered.
func (a *Accumulator) Reset() {
	a.buf = make([]byte, a.config.InitialSize)
	a.length = 0
	a.readPos = 0
	a.writeStart = 0
	a.headEnd = 0
	a.scanPos = 0
	a.expected = 0
	a.completed = false
}

// FindHeaderEnd returns the offset just past the first header terminator in
// b: index+4 for "\r\n\r\n", index+2 for "\n\n", 0 when there is none.
func FindHeaderEnd(b []byte) int {
	end, _ := scanTerminator(b, 0)
	return end
}

// scanTerminator tests every offset from `from` for a header terminator,
// the canonical form first. It returns the end offset (0 if none) and the
// offset the next scan must resume from. A trailing "\r", "\r\n" or
// "\r\n\r" may still become a canonical terminator, so the scan parks on it.
func scanTerminator(buf []byte, from int) (end, next int) {
	i := from
	for ; i+1 < len(buf); i++ {
		switch buf[i] {
		case '\r':
			if i+3 < len(buf) {
				if buf[i+1] == '\n' && buf[i+2] == '\r' && buf[i+3] == '\n' {
					return i + 4, i
				}
				continue
			}
			if isTerminatorPrefix(buf[i:]) {
				return 0, i
			}
		case '\n':
			if buf[i+1] == '\n' {
				return i + 2, i
			}
		}
	}
	return 0, i
}

// isTerminatorPrefix reports whether b is a proper prefix of "\r\n\r\n".
func isTerminatorPrefix(b []byte) bool {
	const term = "\r\n\r\n"
	if len(b) >= len(term) {
		return false
	}
	for i := range b {
		if b[i] != term[i] {
			return false
		}
	}
	return true
}
