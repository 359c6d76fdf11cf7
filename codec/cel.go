package codec

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/compression"
	"github.com/32bitkid/retrofmt/screen"
)

const (
	kissMagic      = "KiSC"
	kissMarkCell   = 0x20
	kissMarkPal    = 0x10
	kissHeaderSize = 32
	kissLegacyPal  = 16 * 2
)

type celHeader struct {
	legacy        bool
	bpp           int
	width, height int
	xoff, yoff    int
}

func (h *celHeader) stride() int { return (h.width*h.bpp + 7) / 8 }

func readCELHeader(ctx *Context, r io.Reader) (*celHeader, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	if string(head[:]) != kissMagic {
		h := &celHeader{legacy: true, bpp: 4, width: int(le.Uint16(head[0:])), height: int(le.Uint16(head[2:]))}
		if h.width == 0 || h.height == 0 || ctx.FileSize != int64(4+h.stride()*h.height) {
			return nil, mismatch("not a cell")
		}
		return h, nil
	}

	rest, err := binio.ReadBytes(r, kissHeaderSize-4)
	if err != nil {
		return nil, err
	}
	if rest[0] != kissMarkCell {
		return nil, mismatch("KiSS mark %#x is not a cell", rest[0])
	}
	h := &celHeader{
		bpp:    int(rest[1]),
		width:  int(le.Uint16(rest[4:])),
		height: int(le.Uint16(rest[6:])),
		xoff:   int(le.Uint16(rest[8:])),
		yoff:   int(le.Uint16(rest[10:])),
	}
	if h.bpp != 4 && h.bpp != 8 {
		return nil, mismatch("%d bits per pixel", h.bpp)
	}
	if h.width == 0 || h.height == 0 {
		return nil, mismatch("empty cell")
	}
	return h, nil
}

type celCodec struct{}

func (celCodec) Format() Format             { return FormatCEL }
func (celCodec) Name() string               { return "KiSS cell" }
func (celCodec) Extensions() []string       { return []string{"cel"} }
func (celCodec) Capabilities() Capabilities { return CanLoad | CanSave }

func (celCodec) Test(ctx *Context, r io.ReadSeeker) error {
	_, err := readCELHeader(ctx, r)
	return err
}

// kissPalette reads the first group of a .KCF file, either with a KiSS
// header and 12 or 24 bit entries or as a bare list of 12 bit entries.
func kissPalette(buf []byte) ([]screen.RGB, error) {
	plus := func(lo, hi uint8) screen.RGB {
		return screen.RGB{R: (lo >> 4) * 0x11, G: (hi & 0x0F) * 0x11, B: (lo & 0x0F) * 0x11}
	}
	if len(buf) < kissHeaderSize || string(buf[:4]) != kissMagic {
		if len(buf) < kissLegacyPal {
			return nil, malformed("palette file is %d bytes", len(buf))
		}
		out := make([]screen.RGB, 16)
		for i := range out {
			out[i] = plus(buf[2*i], buf[2*i+1])
		}
		return out, nil
	}
	if buf[4] != kissMarkPal {
		return nil, malformed("KiSS mark %#x is not a palette", buf[4])
	}
	bpp := buf[5]
	n := int(binary.LittleEndian.Uint16(buf[8:]))
	if n > 256 {
		n = 256
	}
	data := buf[kissHeaderSize:]
	out := make([]screen.RGB, 0, n)
	for i := 0; i < n; i++ {
		switch bpp {
		case 12:
			if len(data) < 2*i+2 {
				return nil, malformed("palette cut at entry %d", i)
			}
			out = append(out, plus(data[2*i], data[2*i+1]))
		case 24:
			if len(data) < 3*i+3 {
				return nil, malformed("palette cut at entry %d", i)
			}
			out = append(out, screen.RGB{R: data[3*i], G: data[3*i+1], B: data[3*i+2]})
		default:
			return nil, malformed("%d bit palette entries", bpp)
		}
	}
	return out, nil
}

// Load reads a cell. Cells carry no colours: a .KCF with the same name is
// used when present, a grey ramp otherwise. Index 0 is always see-through.
func (celCodec) Load(ctx *Context, r io.ReadSeeker) error {
	h, err := readCELHeader(ctx, r)
	if err != nil {
		return err
	}
	ctx.Palette.Set(0, screen.Gray(1<<uint(h.bpp)))
	if path, ok := binio.FindSidecar(ctx.FileName, "kcf"); ok {
		buf, err := readWholeFile(path, kissHeaderSize+256*3)
		if err != nil {
			return err
		}
		pal, err := kissPalette(buf)
		if err != nil {
			return err
		}
		ctx.Palette.Set(0, pal)
	}
	if h.xoff != 0 || h.yoff != 0 {
		ctx.debug("cell offset ignored", "x", h.xoff, "y", h.yoff)
	}
	if err := ctx.PreLoad(h.width, h.height, screen.PixelSimple, h.bpp); err != nil {
		return err
	}
	ctx.TransparentColor = 0
	ctx.BackgroundTransparent = true

	br := bufio.NewReader(r)
	buf := make([]byte, h.stride())
	for y := 0; y < h.height; y++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return err
		}
		if err := drawPacked(ctx.Canvas, y, h.width, buf, uint(h.bpp)); err != nil {
			return err
		}
	}
	return nil
}

func (celCodec) Save(ctx *Context, w io.Writer) error {
	if ctx.Width > 0xFFFF || ctx.Height > 0xFFFF {
		return unsupported("%dx%d does not fit a cell header", ctx.Width, ctx.Height)
	}
	h := &celHeader{bpp: int(depthFor(maxIndex(ctx.Canvas), 4, 8)), width: ctx.Width, height: ctx.Height}

	var head [kissHeaderSize]byte
	copy(head[:], kissMagic)
	head[4], head[5] = kissMarkCell, uint8(h.bpp)
	binary.LittleEndian.PutUint16(head[8:], uint16(h.width))
	binary.LittleEndian.PutUint16(head[10:], uint16(h.height))

	bw := bufio.NewWriter(w)
	bw.Write(head[:])
	row := make([]uint8, h.width)
	for y := 0; y < h.height; y++ {
		packed, err := compression.PackPixels(readRow(ctx.Canvas, y, row), uint(h.bpp))
		if err != nil {
			return err
		}
		bw.Write(packed)
	}
	return bw.Flush()
}
