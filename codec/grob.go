package codec

import (
	"bytes"
	"io"
	"math/bits"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/compression"
	"github.com/32bitkid/retrofmt/screen"
)

const (
	grobMagic     = "HPHP48-"
	grobPrologue  = 0x02B1E
	grobHeadSize  = 18
	grobMaxLines  = 80
	grobFieldBits = 20
)

// grobPlanes guesses how many grey planes are stacked in a grob of the
// given height. Grey pictures are stored as 2 to 4 screens on top of each
// other.
func grobPlanes(height int) int {
	p := 1
	switch {
	case height >= 256:
		p = 4
	case height >= 192:
		p = 3
	case height >= 128:
		p = 2
	}
	if p > 1 && (height%p != 0 || height/p > grobMaxLines) {
		return 1
	}
	return p
}

// grobField reads a 20 bit field of the object header. Nibbles are stored
// low first.
func grobField(buf []byte, nibble int) int {
	v := 0
	for i := 0; i < grobFieldBits/4; i++ {
		n := nibble + i
		v |= int(buf[n/2]>>(4*uint(n&1))&0x0F) << (4 * uint(i))
	}
	return v
}

func putGrobField(buf []byte, nibble, v int) {
	for i := 0; i < grobFieldBits/4; i++ {
		n := nibble + i
		buf[n/2] |= uint8(v>>(4*uint(i))&0x0F) << (4 * uint(n&1))
	}
}

type grobHeader struct {
	width, height int
}

func (h grobHeader) rowBytes() int { return (h.width + 7) / 8 }

func readGrobHeader(r io.Reader) (grobHeader, error) {
	var buf [grobHeadSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return grobHeader{}, err
	}
	if string(buf[:7]) != grobMagic {
		return grobHeader{}, mismatch("no HP48 header")
	}
	body := buf[8:]
	if grobField(body, 0) != grobPrologue {
		return grobHeader{}, mismatch("not a graphic object")
	}
	h := grobHeader{height: grobField(body, 10), width: grobField(body, 15)}
	if h.width == 0 || h.height == 0 {
		return grobHeader{}, mismatch("empty grob")
	}
	if size := grobField(body, 5); size != 15+2*h.rowBytes()*h.height {
		return grobHeader{}, mismatch("size field %d does not match %dx%d", size, h.width, h.height)
	}
	return h, nil
}

type grobCodec struct{}

func (grobCodec) Format() Format             { return FormatGROB }
func (grobCodec) Name() string               { return "HP-48 graphic object" }
func (grobCodec) Extensions() []string       { return []string{"grb", "gro"} }
func (grobCodec) Capabilities() Capabilities { return CanLoad | CanSave }

func (grobCodec) Test(ctx *Context, r io.ReadSeeker) error {
	h, err := readGrobHeader(r)
	if err != nil {
		return err
	}
	if ctx.FileSize < int64(grobHeadSize+h.rowBytes()*h.height) {
		return mismatch("file shorter than its bitmap")
	}
	return nil
}

// Load merges the planes into the index, plane p giving bit p. A set bit is
// a dark pixel on the LCD, so every bit is inverted and the brightest pixel
// gets the highest index.
func (grobCodec) Load(ctx *Context, r io.ReadSeeker) error {
	h, err := readGrobHeader(r)
	if err != nil {
		return err
	}
	stride := h.rowBytes()
	if err := ctx.claim(grobHeadSize+int64(stride)*int64(h.height), "bitmap"); err != nil {
		return err
	}
	planes := grobPlanes(h.height)
	height := h.height / planes
	ctx.Palette.Set(0, screen.Gray(1<<uint(planes)))
	if err := ctx.PreLoad(h.width, height, screen.PixelSimple, planes); err != nil {
		return err
	}

	data, err := binio.ReadBytes(r, stride*h.height)
	if err != nil {
		return err
	}
	for i := range data {
		data[i] = bits.Reverse8(data[i])
	}

	c := ctx.Canvas
	row := make([]uint8, h.width)
	for y := 0; y < height; y++ {
		for x := range row {
			row[x] = 0
		}
		for p := 0; p < planes; p++ {
			off := (p*height + y) * stride
			set, err := compression.UnpackBits1(data[off:off+stride], h.width)
			if err != nil {
				return err
			}
			for x, on := range set {
				if !on {
					row[x] |= 1 << uint(p)
				}
			}
		}
		drawIndexed(c, y, row)
	}
	return nil
}

// Save writes one plane per bit of the highest index; grey pictures must
// have a height that loads back as the same plane count.
func (grobCodec) Save(ctx *Context, w io.Writer) error {
	c := ctx.Canvas
	width, height := ctx.Width, ctx.Height
	planes := bits.Len8(maxIndex(c))
	if planes < 1 {
		planes = 1
	}
	if planes > 4 {
		return unsupported("grobs hold at most 16 grey levels, index %d used", maxIndex(c))
	}
	if planes > 1 && grobPlanes(height*planes) != planes {
		return unsupported("a %d line picture cannot hold %d grey planes", height, planes)
	}
	total := height * planes
	h := grobHeader{width: width, height: total}
	if 15+2*h.rowBytes()*total >= 1<<grobFieldBits {
		return unsupported("%dx%d does not fit a grob", width, height)
	}

	var head [grobHeadSize]byte
	copy(head[:], grobMagic+"R")
	putGrobField(head[8:], 0, grobPrologue)
	putGrobField(head[8:], 5, 15+2*h.rowBytes()*total)
	putGrobField(head[8:], 10, total)
	putGrobField(head[8:], 15, width)

	var out bytes.Buffer
	out.Write(head[:])
	row := make([]uint8, width)
	line := make([]byte, h.rowBytes())
	for p := 0; p < planes; p++ {
		for y := 0; y < height; y++ {
			readRow(c, y, row)
			for i := range line {
				line[i] = 0
			}
			for x, v := range row {
				if v>>uint(p)&1 == 0 {
					line[x/8] |= 1 << uint(x&7)
				}
			}
			out.Write(line)
		}
	}
	return binio.WriteBytes(w, out.Bytes())
}
