package compression

import (
	"errors"
	"io"
)

const (
	lzwMaxBits  = 12
	lzwMaxCodes = 1 << lzwMaxBits
)

var (
	ErrLZWBadCode     = errors.New("lzw: code out of range")
	ErrLZWTableFull   = errors.New("lzw: dictionary full without clear code")
	ErrLZWLiteralSize = errors.New("lzw: literal width must be in [2,8]")
)

// lzwDecoder is the call-scoped dictionary of one GIF-style code stream.
type lzwDecoder struct {
	prefix [lzwMaxCodes]uint16
	suffix [lzwMaxCodes]uint8
	stack  [lzwMaxCodes + 1]uint8
}

// DecodeLZW decodes a variable width LZW code stream as found in GIF image
// data. Codes start litWidth+1 bits wide and grow up to 12 bits. Every decoded
// byte is handed to emit in output order; a non-nil error from emit stops
// decoding and is returned as is.
//
// Decoding ends at the end code. A stream that runs out before the end code
// returns the underlying read error.
func DecodeLZW(r io.ByteReader, litWidth uint, emit func(b uint8) error) error {
	if litWidth < 2 || litWidth > 8 {
		return ErrLZWLiteralSize
	}

	var (
		br = newLSBReader(r)
		d  = new(lzwDecoder)

		clearCode = uint16(1) << litWidth
		endCode   = clearCode + 1

		numBits  uint
		nextFree uint16
		maxCode  uint16

		oldCode   uint16
		firstByte uint8
		depth     int

		code, inCode uint16
		err          error
	)

reset:
	numBits = litWidth + 1
	nextFree = endCode + 1
	maxCode = 1 << numBits

	// First code after a clear is a bare literal.
	code, err = br.read(numBits)
	if err != nil {
		return err
	}
	if code == clearCode {
		goto reset
	}
	if code == endCode {
		goto done
	}
	if code >= clearCode {
		return ErrLZWBadCode
	}
	firstByte = uint8(code)
	if err = emit(firstByte); err != nil {
		return err
	}
	oldCode = code

next:
	code, err = br.read(numBits)
	if err != nil {
		return err
	}
	if code == clearCode {
		goto reset
	}
	if code == endCode {
		goto done
	}
	if code > nextFree {
		return ErrLZWBadCode
	}
	if nextFree >= lzwMaxCodes {
		return ErrLZWTableFull
	}

	inCode = code
	depth = 0
	if code == nextFree {
		// KwKwK: the code being defined right now, i.e. the previous string
		// followed by its own first byte.
		d.stack[depth] = firstByte
		depth++
		code = oldCode
	}
	for code > endCode {
		d.stack[depth] = d.suffix[code]
		depth++
		code = d.prefix[code]
	}
	firstByte = uint8(code)
	d.stack[depth] = firstByte
	depth++

	for depth > 0 {
		depth--
		if err = emit(d.stack[depth]); err != nil {
			return err
		}
	}

	d.prefix[nextFree] = oldCode
	d.suffix[nextFree] = firstByte
	nextFree++
	if nextFree >= maxCode && numBits < lzwMaxBits {
		numBits++
		maxCode <<= 1
	}
	oldCode = inCode
	goto next

done:
	return nil
}
