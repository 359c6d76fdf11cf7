package compression

import (
	"bytes"
	"errors"

	"github.com/32bitkid/bitreader"
)

var ErrPixelDepth = errors.New("pixels: unsupported bits per pixel")

func checkDepth(bpp uint) error {
	switch bpp {
	case 1, 2, 4, 8:
		return nil
	}
	return ErrPixelDepth
}

// UnpackPixels splits n packed pixels of bpp bits out of src, leftmost pixel
// in the most significant bits.
func UnpackPixels(src []byte, bpp uint, n int) ([]uint8, error) {
	if err := checkDepth(bpp); err != nil {
		return nil, err
	}
	br := bitreader.NewReader(bytes.NewReader(src))
	out := make([]uint8, n)
	for i := range out {
		v, err := br.Read8(bpp)
		if err != nil {
			return out[:i], err
		}
		out[i] = v
	}
	return out, nil
}

// UnpackBits1 reads n single-bit flags, most significant first.
func UnpackBits1(src []byte, n int) ([]bool, error) {
	br := bitreader.NewReader(bytes.NewReader(src))
	out := make([]bool, n)
	for i := range out {
		v, err := br.Read1()
		if err != nil {
			return out[:i], err
		}
		out[i] = v
	}
	return out, nil
}

// PackPixels is the inverse of UnpackPixels. The final byte is zero padded.
func PackPixels(px []uint8, bpp uint) ([]byte, error) {
	if err := checkDepth(bpp); err != nil {
		return nil, err
	}
	perByte := int(8 / bpp)
	mask := uint8(1<<bpp - 1)
	out := make([]byte, (len(px)+perByte-1)/perByte)
	for i, v := range px {
		shift := 8 - bpp*uint(i%perByte+1)
		out[i/perByte] |= (v & mask) << shift
	}
	return out, nil
}

// Planes splits planar bytes into per-pixel indices: bit i of each pixel
// comes from planes[i], most significant bit leftmost.
func Planes(planes [][]byte, width int, dst []uint8) {
	for x := 0; x < width; x++ {
		bit := uint8(0x80) >> uint(x&7)
		var v uint8
		for p := len(planes) - 1; p >= 0; p-- {
			v <<= 1
			if planes[p][x>>3]&bit != 0 {
				v |= 1
			}
		}
		dst[x] = v
	}
}

// ToPlanes is the inverse of Planes. Each plane row must be at least
// (width+7)/8 bytes and zeroed.
func ToPlanes(px []uint8, planes [][]byte) {
	for x, v := range px {
		bit := uint8(0x80) >> uint(x&7)
		for p := range planes {
			if v&(1<<uint(p)) != 0 {
				planes[p][x>>3] |= bit
			}
		}
	}
}
