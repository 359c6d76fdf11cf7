package compression

import (
	"errors"
	"io"
)

var ErrPackBytesOverflow = errors.New("packbytes: run exceeds destination")

// Apple IIgs PackBytes flag values, in the top two bits of each header.
const (
	packUnpacked = 0x00 // 1..64 literal bytes follow
	packRepeat1  = 0x40 // next byte repeated 1..64 times
	packRepeat4  = 0x80 // next 4 bytes repeated 1..64 times
	packQuad     = 0xC0 // next byte repeated 4..256 times, in steps of 4
)

// UnpackBytes expands an Apple IIgs PackBytes stream into dst. It stops
// once dst is full; a header whose expansion would not fit returns
// ErrPackBytesOverflow with dst left filled up to that point.
func UnpackBytes(r io.ByteReader, dst []byte) error {
	var quad [4]byte
	for pos := 0; pos < len(dst); {
		hdr, err := r.ReadByte()
		if err != nil {
			return err
		}
		count := int(hdr&0x3F) + 1
		switch hdr & 0xC0 {
		case packUnpacked:
			if pos+count > len(dst) {
				return ErrPackBytesOverflow
			}
			for i := 0; i < count; i++ {
				if dst[pos], err = r.ReadByte(); err != nil {
					return err
				}
				pos++
			}
		case packRepeat1, packQuad:
			if hdr&0xC0 == packQuad {
				count *= 4
			}
			if pos+count > len(dst) {
				return ErrPackBytesOverflow
			}
			b, err := r.ReadByte()
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				dst[pos] = b
				pos++
			}
		case packRepeat4:
			if pos+count*4 > len(dst) {
				return ErrPackBytesOverflow
			}
			for i := range quad {
				if quad[i], err = r.ReadByte(); err != nil {
					return err
				}
			}
			for i := 0; i < count; i++ {
				pos += copy(dst[pos:], quad[:])
			}
		}
	}
	return nil
}

// PackBytes compresses src using the single-byte repeat, quad repeat and
// literal packet kinds.
func PackBytes(src []byte) []byte {
	var out []byte
	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && run < 256 && src[i+run] == src[i] {
			run++
		}
		switch {
		case run >= 8:
			n := run / 4
			out = append(out, packQuad|uint8(n-1), src[i])
			i += n * 4
			continue
		case run >= 3:
			out = append(out, packRepeat1|uint8(run-1), src[i])
			i += run
			continue
		}

		start := i
		for i < len(src) && i-start < 64 {
			if i+2 < len(src) && src[i] == src[i+1] && src[i] == src[i+2] {
				break
			}
			i++
		}
		out = append(out, packUnpacked|uint8(i-start-1))
		out = append(out, src[start:i]...)
	}
	return out
}
