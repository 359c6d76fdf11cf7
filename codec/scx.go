package codec

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/32bitkid/retrofmt/compression"
	"github.com/32bitkid/retrofmt/screen"
)

// ColoRIX pictures start with "RIX3", the size as two little endian words,
// the palette type and the storage type. Storage 0 holds one byte per
// pixel under a 256 colour palette; storage 1 to 4 holds that many
// bitplanes, interleaved per line, under 2 to 16 colours. The palette has
// 6-bit VGA components.
const (
	scxMagic      = "RIX3"
	scxHeaderSize = 10
	scxVGAPalette = 0xAF
)

type scxHeader struct {
	width, height int
	planes        int // 0 for chunky
}

func (h *scxHeader) colors() int {
	if h.planes == 0 {
		return 256
	}
	return 1 << uint(h.planes)
}

func (h *scxHeader) lineSize() int {
	if h.planes == 0 {
		return h.width
	}
	return h.planes * ((h.width + 7) / 8)
}

func readSCXHeader(r io.Reader) (*scxHeader, error) {
	buf := make([]byte, scxHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if string(buf[:4]) != scxMagic {
		return nil, mismatch("no RIX3 magic")
	}
	if buf[8] != scxVGAPalette {
		return nil, mismatch("palette type %#x", buf[8])
	}
	h := &scxHeader{
		width:  int(binary.LittleEndian.Uint16(buf[4:])),
		height: int(binary.LittleEndian.Uint16(buf[6:])),
		planes: int(buf[9]),
	}
	if h.planes > 4 {
		return nil, mismatch("storage type %d", buf[9])
	}
	if h.width == 0 || h.height == 0 {
		return nil, mismatch("%dx%d", h.width, h.height)
	}
	return h, nil
}

type scxCodec struct{}

func (scxCodec) Format() Format             { return FormatSCX }
func (scxCodec) Name() string               { return "ColoRIX VGA paint" }
func (scxCodec) Extensions() []string       { return []string{"sci", "scp", "scf", "scx"} }
func (scxCodec) Capabilities() Capabilities { return CanLoad | CanSave }

func (scxCodec) Test(ctx *Context, r io.ReadSeeker) error {
	_, err := readSCXHeader(r)
	return err
}

func (scxCodec) Load(ctx *Context, r io.ReadSeeker) error {
	h, err := readSCXHeader(r)
	if err != nil {
		return err
	}
	if err := ctx.claim(int64(scxHeaderSize+h.colors()*3+h.lineSize()*h.height), "picture"); err != nil {
		return err
	}
	br := bufio.NewReader(r)
	pal, err := readRGB(br, h.colors())
	if err != nil {
		return err
	}
	for i, c := range pal {
		ctx.Palette[i] = screen.RGB{R: expand6(c.R), G: expand6(c.G), B: expand6(c.B)}
	}

	bpp := 8
	if h.planes > 0 {
		bpp = h.planes
	}
	if err := ctx.PreLoad(h.width, h.height, screen.PixelSimple, bpp); err != nil {
		return err
	}

	line := make([]byte, h.lineSize())
	planeBytes := (h.width + 7) / 8
	planes := make([][]byte, h.planes)
	scratch := make([]uint8, h.width)
	for y := 0; y < h.height; y++ {
		if _, err := io.ReadFull(br, line); err != nil {
			return err
		}
		if h.planes == 0 {
			drawIndexed(ctx.Canvas, y, line)
			continue
		}
		for p := range planes {
			planes[p] = line[p*planeBytes : (p+1)*planeBytes]
		}
		drawPlanar(ctx.Canvas, y, h.width, planes, scratch)
	}
	return nil
}

// Save stores up to 16 colours as bitplanes and anything else chunky.
func (scxCodec) Save(ctx *Context, w io.Writer) error {
	if ctx.Width > 0xFFFF || ctx.Height > 0xFFFF {
		return unsupported("%dx%d does not fit the header", ctx.Width, ctx.Height)
	}
	h := &scxHeader{width: ctx.Width, height: ctx.Height}
	if top := maxIndex(ctx.Canvas); top < 16 {
		h.planes = int(depthFor(top, 1, 2, 3, 4))
	}

	bw := bufio.NewWriter(w)
	hdr := make([]byte, scxHeaderSize)
	copy(hdr, scxMagic)
	binary.LittleEndian.PutUint16(hdr[4:], uint16(h.width))
	binary.LittleEndian.PutUint16(hdr[6:], uint16(h.height))
	hdr[8], hdr[9] = scxVGAPalette, uint8(h.planes)
	bw.Write(hdr)

	pal := make([]byte, 0, h.colors()*3)
	for _, c := range ctx.Palette[:h.colors()] {
		pal = append(pal, c.R>>2, c.G>>2, c.B>>2)
	}
	bw.Write(pal)

	row := make([]uint8, h.width)
	planeBytes := (h.width + 7) / 8
	for y := 0; y < h.height; y++ {
		readRow(ctx.Canvas, y, row)
		if h.planes == 0 {
			bw.Write(row)
			continue
		}
		planes := make([][]byte, h.planes)
		for p := range planes {
			planes[p] = make([]byte, planeBytes)
		}
		compression.ToPlanes(row, planes)
		for _, plane := range planes {
			bw.Write(plane)
		}
	}
	return bw.Flush()
}
