package compression

import (
	"errors"
	"io"
)

var errBitOverflow = errors.New("compression: bit count overflow")

// lsbReader reads variable width codes packed least-significant bit first,
// the order GIF code streams use. github.com/32bitkid/bitreader only reads
// MSB first, so the code stream gets its own accumulator.
type lsbReader struct {
	r         io.ByteReader
	buffer    uint32
	remaining uint
}

func newLSBReader(r io.ByteReader) *lsbReader {
	return &lsbReader{r: r}
}

func (br *lsbReader) fill() error {
	b, err := br.r.ReadByte()
	if err != nil {
		if err == io.EOF && br.remaining > 0 {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	br.buffer |= uint32(b) << br.remaining
	br.remaining += 8
	return nil
}

func (br *lsbReader) read(n uint) (uint16, error) {
	if n > 16 {
		return 0, errBitOverflow
	}
	for br.remaining < n {
		if err := br.fill(); err != nil {
			return 0, err
		}
	}
	val := uint16(br.buffer & (1<<n - 1))
	br.buffer >>= n
	br.remaining -= n
	return val, nil
}

// lsbWriter is the mirror of lsbReader.
type lsbWriter struct {
	w         io.ByteWriter
	buffer    uint32
	remaining uint
}

func (bw *lsbWriter) write(code uint16, n uint) error {
	bw.buffer |= uint32(code) << bw.remaining
	bw.remaining += n
	for bw.remaining >= 8 {
		if err := bw.w.WriteByte(uint8(bw.buffer)); err != nil {
			return err
		}
		bw.buffer >>= 8
		bw.remaining -= 8
	}
	return nil
}

// flush writes any partial byte, zero padded.
func (bw *lsbWriter) flush() error {
	if bw.remaining == 0 {
		return nil
	}
	err := bw.w.WriteByte(uint8(bw.buffer))
	bw.buffer = 0
	bw.remaining = 0
	return err
}
