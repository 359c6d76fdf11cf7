package codec

import (
	"io"
	"math/bits"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/compression"
	"github.com/32bitkid/retrofmt/screen"
)

const (
	hgrSize      = 0x2000
	hgrShortSize = 8184
	hgrLines     = 192
	hgrLineBytes = 40
	hgrWidth     = hgrLineBytes * 7

	dhgrSize  = 2 * hgrSize
	dhgrCells = 140
)

// HGR colour indices in DefaultPalettes.AppleHGR.
const (
	hgrBlack = iota
	hgrPurple
	hgrGreen
	hgrBlue
	hgrOrange
	hgrWhite
)

// hgrLine is the offset of line y in the interleaved frame buffer.
func hgrLine(y int) int {
	return (y&7)*0x400 + ((y>>3)&7)*0x80 + (y>>6)*0x28
}

// hgrBits unpacks one line into 280 dot flags plus the palette bit of each
// dot's byte. Bit 0 of a byte is the leftmost dot, bit 7 selects the
// palette.
func hgrBits(line []byte) (dots, high []bool, err error) {
	rev := make([]byte, len(line))
	for i, b := range line {
		rev[i] = bits.Reverse8(b)
	}
	flags, err := compression.UnpackBits1(rev, len(line)*8)
	if err != nil {
		return nil, nil, err
	}
	dots = make([]bool, 0, len(line)*7)
	high = make([]bool, 0, len(line)*7)
	for i := range line {
		f := flags[i*8 : i*8+8]
		for _, on := range f[:7] {
			dots = append(dots, on)
			high = append(high, f[7])
		}
	}
	return dots, high, nil
}

// hgrColor is the artifact colour of a lit dot on its own.
func hgrColor(x int, high bool) uint8 {
	switch {
	case x&1 == 0 && !high:
		return hgrPurple
	case x&1 == 0:
		return hgrBlue
	case !high:
		return hgrGreen
	}
	return hgrOrange
}

// hgrRow resolves one line: adjacent lit dots are white, a lone lit dot
// takes the colour of its column and palette bit, and a dark dot between
// two lit ones takes their colour.
func hgrRow(dots, high []bool, dst []uint8) {
	lit := func(x int) bool { return x >= 0 && x < len(dots) && dots[x] }
	for x := range dots {
		switch {
		case dots[x] && (lit(x-1) || lit(x+1)):
			dst[x] = hgrWhite
		case dots[x]:
			dst[x] = hgrColor(x, high[x])
		case lit(x-1) && lit(x+1):
			dst[x] = hgrColor(x-1, high[x-1])
		default:
			dst[x] = hgrBlack
		}
	}
}

type hgrCodec struct{ loadOnly }

func (hgrCodec) Format() Format             { return FormatHGR }
func (hgrCodec) Name() string               { return "Apple II hi-res" }
func (hgrCodec) Extensions() []string       { return []string{"hgr", "bin"} }
func (hgrCodec) Capabilities() Capabilities { return CanLoad | FixedSize }

func (hgrCodec) Test(ctx *Context, r io.ReadSeeker) error {
	if ctx.FileSize != hgrSize && ctx.FileSize != hgrShortSize {
		return mismatch("%d bytes is not a hi-res page", ctx.FileSize)
	}
	return nil
}

func (hgrCodec) Load(ctx *Context, r io.ReadSeeker) error {
	mem, err := binio.ReadBytes(r, int(ctx.FileSize))
	if err != nil {
		return err
	}
	// the screen holes at the end of the page may be missing
	if len(mem) < hgrSize {
		mem = append(mem, make([]byte, hgrSize-len(mem))...)
	}
	ctx.Palette.Set(0, screen.DefaultPalettes.AppleHGR)
	if err := ctx.PreLoad(hgrWidth, hgrLines, screen.PixelSimple, 3); err != nil {
		return err
	}

	row := make([]uint8, hgrWidth)
	for y := 0; y < hgrLines; y++ {
		o := hgrLine(y)
		dots, high, err := hgrBits(mem[o : o+hgrLineBytes])
		if err != nil {
			return err
		}
		hgrRow(dots, high, row)
		drawIndexed(ctx.Canvas, y, row)
	}
	return nil
}

// dhgrColor rotates a cell's four dots into the lo-res colour number.
func dhgrColor(v uint8) uint8 {
	return ((v << 1) & 0x0E) | (v >> 3)
}

// dhgrMixed reports whether the picture uses the per-byte colour flag of
// the mixed mode: some bytes have bit 7 set while other non-zero ones
// don't.
func dhgrMixed(mem []byte) bool {
	flagged, plain := false, false
	for _, b := range mem {
		switch {
		case b&0x80 != 0:
			flagged = true
		case b != 0:
			plain = true
		}
	}
	return flagged && plain
}

type dhgrCodec struct{ loadOnly }

func (dhgrCodec) Format() Format             { return FormatDHGR }
func (dhgrCodec) Name() string               { return "Apple II double hi-res" }
func (dhgrCodec) Extensions() []string       { return []string{"dhr", "dhgr", "a2fc", "2fc"} }
func (dhgrCodec) Capabilities() Capabilities { return CanLoad | FixedSize }

func (c dhgrCodec) Test(ctx *Context, r io.ReadSeeker) error {
	if ctx.FileSize != dhgrSize {
		return mismatch("%d bytes is not a double hi-res page", ctx.FileSize)
	}
	for _, e := range c.Extensions() {
		if ctx.Ext() == e {
			return nil
		}
	}
	return mismatch("extension %q", ctx.Ext())
}

// Load reads the auxiliary bank followed by the main one. In mixed mode the
// picture is 560 dots wide and bytes without bit 7 are shown monochrome;
// otherwise it is 140 colour cells wide.
func (dhgrCodec) Load(ctx *Context, r io.ReadSeeker) error {
	mem, err := binio.ReadBytes(r, dhgrSize)
	if err != nil {
		return err
	}
	aux, primary := mem[:hgrSize], mem[hgrSize:]
	mixed := dhgrMixed(mem)
	ctx.Palette.Set(0, screen.DefaultPalettes.AppleLo)

	width, ratio := dhgrCells, screen.PixelWide
	if mixed {
		width, ratio = dhgrCells*4, screen.PixelTall
		ctx.debug("mixed colour / monochrome mode")
	}
	if err := ctx.PreLoad(width, hgrLines, ratio, 4); err != nil {
		return err
	}

	line := make([]byte, 2*hgrLineBytes)
	row := make([]uint8, width)
	for y := 0; y < hgrLines; y++ {
		o := hgrLine(y)
		for i := 0; i < hgrLineBytes; i++ {
			line[2*i], line[2*i+1] = aux[o+i], primary[o+i]
		}
		dots, colour, err := hgrBits(line)
		if err != nil {
			return err
		}
		for cell := 0; cell < dhgrCells; cell++ {
			var v uint8
			for k := 0; k < 4; k++ {
				if dots[cell*4+k] {
					v |= 1 << uint(k)
				}
			}
			c := dhgrColor(v)
			if !mixed {
				row[cell] = c
				continue
			}
			for k := 0; k < 4; k++ {
				x := cell*4 + k
				switch {
				case colour[x]:
					row[x] = c
				case dots[x]:
					row[x] = 15
				default:
					row[x] = 0
				}
			}
		}
		drawIndexed(ctx.Canvas, y, row)
	}
	return nil
}
