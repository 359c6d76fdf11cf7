package compression

import (
	"bufio"
	"io"
)

const noCode = 0xFFFF

// LZWEncoder produces a GIF-style variable width code stream. The
// dictionary is a trie stored in flat daughter / sister arrays: daughter[c]
// is the first extension of string c and sister[c] links the extensions of
// the same parent.
type LZWEncoder struct {
	bw  lsbWriter
	buf *bufio.Writer
	err error

	litWidth  uint
	clearCode uint16
	endCode   uint16

	numBits  uint
	nextFree uint16

	current uint16
	started bool
	closed  bool

	daughter [lzwMaxCodes]uint16
	sister   [lzwMaxCodes]uint16
	suffix   [lzwMaxCodes]uint8
}

// NewLZWEncoder returns an encoder writing codes for litWidth-bit literals to
// w. The clear code is written immediately.
func NewLZWEncoder(w io.Writer, litWidth uint) (*LZWEncoder, error) {
	if litWidth < 2 || litWidth > 8 {
		return nil, ErrLZWLiteralSize
	}
	e := &LZWEncoder{
		buf:       bufio.NewWriter(w),
		litWidth:  litWidth,
		clearCode: 1 << litWidth,
	}
	e.bw.w = e.buf
	e.endCode = e.clearCode + 1
	e.reset()
	e.emit(e.clearCode)
	return e, e.err
}

func (e *LZWEncoder) reset() {
	e.numBits = e.litWidth + 1
	e.nextFree = e.endCode + 1
	for i := range e.daughter {
		e.daughter[i] = noCode
		e.sister[i] = noCode
	}
}

func (e *LZWEncoder) emit(code uint16) {
	if e.err != nil {
		return
	}
	e.err = e.bw.write(code, e.numBits)
}

// grow advances the free-slot counter the way the decoder will once it has
// seen the code just emitted.
func (e *LZWEncoder) grow() {
	e.nextFree++
	if e.nextFree > 1<<e.numBits && e.numBits < lzwMaxBits {
		e.numBits++
	}
}

// WriteByte appends one literal to the stream.
func (e *LZWEncoder) WriteByte(c byte) error {
	if e.err != nil {
		return e.err
	}
	if e.closed {
		return io.ErrClosedPipe
	}
	if uint16(c) >= e.clearCode {
		return ErrLZWBadCode
	}
	if !e.started {
		e.current = uint16(c)
		e.started = true
		return nil
	}

	for child := e.daughter[e.current]; child != noCode; child = e.sister[child] {
		if e.suffix[child] == c {
			e.current = child
			return nil
		}
	}

	e.emit(e.current)

	entry := e.nextFree
	e.suffix[entry] = c
	e.daughter[entry] = noCode
	e.sister[entry] = e.daughter[e.current]
	e.daughter[e.current] = entry
	e.grow()

	if e.nextFree == lzwMaxCodes {
		e.emit(e.clearCode)
		e.reset()
	}

	e.current = uint16(c)
	return e.err
}

func (e *LZWEncoder) Write(p []byte) (int, error) {
	for i, c := range p {
		if err := e.WriteByte(c); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// Close writes the pending code and the end code, then flushes.
func (e *LZWEncoder) Close() error {
	if e.closed {
		return e.err
	}
	e.closed = true
	if e.started {
		e.emit(e.current)
		// The decoder adds a dictionary entry on receipt of that last code,
		// which may widen the end code by one bit.
		e.grow()
	}
	e.emit(e.endCode)
	if e.err == nil {
		e.err = e.bw.flush()
	}
	if e.err == nil {
		e.err = e.buf.Flush()
	}
	return e.err
}
