package compression

import (
	"errors"
	"io"
)

var ErrRLEOverrun = errors.New("rle: run exceeds scanline")

// UnpackPCX decodes one PCX scanline into dst. A byte with both top bits set
// is a run header: its low six bits give the count for the byte that
// follows. Any other byte is a literal.
//
// A run longer than the space left in dst returns ErrRLEOverrun after filling
// dst; the surplus is never written.
func UnpackPCX(r io.ByteReader, dst []byte) error {
	d := NewPCXDecoder(r)
	if err := d.ReadLine(dst); err != nil {
		return err
	}
	if d.Pending() > 0 {
		return ErrRLEOverrun
	}
	return nil
}

// PCXDecoder decodes a PCX stream one scanline at a time. Some encoders let
// a run cross the end of a line; the rest of such a run carries over into
// the next ReadLine.
type PCXDecoder struct {
	r    io.ByteReader
	val  byte
	left int
}

func NewPCXDecoder(r io.ByteReader) *PCXDecoder {
	return &PCXDecoder{r: r}
}

// ReadLine fills dst completely.
func (d *PCXDecoder) ReadLine(dst []byte) error {
	for off := 0; off < len(dst); {
		if d.left == 0 {
			val, err := d.r.ReadByte()
			if err != nil {
				return err
			}
			d.left = 1
			if val >= 0xC0 {
				d.left = int(val & 0x3F)
				if val, err = d.r.ReadByte(); err != nil {
					return err
				}
			}
			d.val = val
			continue
		}
		n := d.left
		if n > len(dst)-off {
			n = len(dst) - off
		}
		for i := 0; i < n; i++ {
			dst[off+i] = d.val
		}
		off += n
		d.left -= n
	}
	return nil
}

// Pending is the number of run bytes decoded but not yet delivered.
func (d *PCXDecoder) Pending() int { return d.left }

// PCXLine accumulates one encoded PCX scanline.
type PCXLine struct {
	b []byte
	n int
	c byte
}

func (r *PCXLine) Put(b byte) {
	if r.n == 0 {
		r.c = b
		r.n = 1
		return
	}
	if b == r.c && r.n != 63 {
		r.n++
		return
	}
	r.emit()
	r.c = b
	r.n = 1
}

func (r *PCXLine) emit() {
	if r.n != 1 || r.c >= 0xC0 {
		r.b = append(r.b, 0xC0|byte(r.n))
	}
	r.b = append(r.b, r.c)
}

// Flush terminates the current run and returns the encoded line. The
// returned slice is reused by the next Reset.
func (r *PCXLine) Flush() []byte {
	if r.n != 0 {
		r.emit()
	}
	r.n = 0
	return r.b
}

func (r *PCXLine) Reset() {
	r.b = r.b[:0]
	r.n = 0
}

// UnpackCounted fills dst from count / value pairs. A count of zero stands
// for 256. A run past the end of dst returns ErrRLEOverrun.
func UnpackCounted(r io.ByteReader, dst []byte) error {
	for n := 0; n < len(dst); {
		count, err := r.ReadByte()
		if err != nil {
			return err
		}
		val, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return err
		}
		run := int(count)
		if run == 0 {
			run = 256
		}
		if n+run > len(dst) {
			return ErrRLEOverrun
		}
		for end := n + run; n < end; n++ {
			dst[n] = val
		}
	}
	return nil
}

// PackCounted is the inverse of UnpackCounted.
func PackCounted(src []byte) []byte {
	var out []byte
	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && run < 256 && src[i+run] == src[i] {
			run++
		}
		out = append(out, uint8(run), src[i])
		i += run
	}
	return out
}
