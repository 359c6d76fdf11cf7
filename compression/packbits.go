package compression

import (
	"errors"
	"io"
)

var ErrPackBitsOverflow = errors.New("packbits: run exceeds destination")

// UnpackBits fills dst from a PackBits (IFF ByteRun1) stream. Control bytes
// 0..127 copy the next n+1 bytes literally, 129..255 repeat the next byte
// 257-n times and 128 is a no-op, reported through noop when it is non-nil.
//
// UnpackBits never writes past len(dst): a run that would overflow returns
// ErrPackBitsOverflow. Read failures are returned unchanged.
func UnpackBits(r io.ByteReader, dst []byte, noop func()) error {
	for pos := 0; pos < len(dst); {
		cmd, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch {
		case cmd < 128:
			n := int(cmd) + 1
			if pos+n > len(dst) {
				return ErrPackBitsOverflow
			}
			for i := 0; i < n; i++ {
				b, err := r.ReadByte()
				if err != nil {
					return err
				}
				dst[pos] = b
				pos++
			}
		case cmd > 128:
			n := 257 - int(cmd)
			if pos+n > len(dst) {
				return ErrPackBitsOverflow
			}
			b, err := r.ReadByte()
			if err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				dst[pos] = b
				pos++
			}
		default:
			if noop != nil {
				noop()
			}
		}
	}
	return nil
}

// PackBits compresses src with the PackBits scheme. Runs of three or more
// identical bytes become repeat packets; everything else is emitted as
// literal packets of at most 128 bytes.
func PackBits(src []byte) []byte {
	var out []byte
	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && run < 128 && src[i+run] == src[i] {
			run++
		}
		if run >= 3 {
			out = append(out, uint8(257-run), src[i])
			i += run
			continue
		}

		start := i
		for i < len(src) && i-start < 128 {
			if i+2 < len(src) && src[i] == src[i+1] && src[i] == src[i+2] {
				break
			}
			i++
		}
		out = append(out, uint8(i-start-1))
		out = append(out, src[start:i]...)
	}
	return out
}
