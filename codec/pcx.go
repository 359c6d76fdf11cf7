package codec

import (
	"bufio"
	"io"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/compression"
	"github.com/32bitkid/retrofmt/screen"
)

const (
	pcxMagic        = 0x0A
	pcxPaletteMagic = 0x0C
	pcxHeaderSize   = 128

	// pcxLineSlack is how far bytesPerLine may exceed what the width needs.
	pcxLineSlack = 16
)

// CGA four colour palettes as EGA indices, selected by the top three bits
// of the fourth header palette byte.
var pcxCGA4 = [8][3]uint8{
	{2, 4, 6}, {10, 12, 14},
	{3, 5, 7}, {11, 13, 15},
	{3, 4, 7}, {11, 12, 15},
	{3, 4, 7}, {11, 12, 15},
}

type pcxHeader struct {
	version      uint8
	encoding     uint8
	bpp          int
	xmin, ymin   int
	xmax, ymax   int
	colormap     [48]byte
	planes       int
	bytesPerLine int
	paletteInfo  uint8
}

func (h *pcxHeader) width() int  { return h.xmax - h.xmin + 1 }
func (h *pcxHeader) height() int { return h.ymax - h.ymin + 1 }

func readPCXHeader(r io.Reader) (*pcxHeader, error) {
	var buf [pcxHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	if buf[0] != pcxMagic {
		return nil, mismatch("not a PCX file")
	}
	word := func(o int) int { return int(buf[o]) | int(buf[o+1])<<8 }
	h := &pcxHeader{
		version:      buf[1],
		encoding:     buf[2],
		bpp:          int(buf[3]),
		xmin:         word(4),
		ymin:         word(6),
		xmax:         word(8),
		ymax:         word(10),
		planes:       int(buf[65]),
		bytesPerLine: word(66),
		paletteInfo:  buf[68],
	}
	copy(h.colormap[:], buf[16:64])

	switch h.version {
	case 0, 2, 3, 4, 5:
	default:
		return nil, mismatch("unknown version %d", h.version)
	}
	if h.encoding > 1 {
		return nil, mismatch("unknown encoding %d", h.encoding)
	}
	switch h.bpp {
	case 1, 2, 4, 8:
	default:
		return nil, mismatch("unsupported bpp %d", h.bpp)
	}
	if h.planes < 1 || h.planes > 4 {
		return nil, mismatch("unsupported plane count %d", h.planes)
	}
	if h.xmax < h.xmin || h.ymax < h.ymin {
		return nil, mismatch("inverted window")
	}
	need := (h.width()*h.bpp + 7) / 8
	if h.bytesPerLine < need {
		return nil, mismatch("line too short for the width")
	}
	if h.bytesPerLine > need+need&1+pcxLineSlack {
		return nil, mismatch("%d bytes per line for %d pixels", h.bytesPerLine, h.width())
	}
	switch {
	case h.planes == 1:
	case h.bpp == 1:
	case h.bpp == 8 && (h.planes == 3 || h.planes == 4):
	default:
		return nil, unsupported("%d planes of %d bits", h.planes, h.bpp)
	}
	return h, nil
}

type pcxCodec struct{}

func (pcxCodec) Format() Format             { return FormatPCX }
func (pcxCodec) Name() string               { return "PC Paintbrush" }
func (pcxCodec) Extensions() []string       { return []string{"pcx"} }
func (pcxCodec) Capabilities() Capabilities { return CanLoad | CanSave }

func (pcxCodec) Test(ctx *Context, r io.ReadSeeker) error {
	if _, err := readPCXHeader(r); err != nil {
		return err
	}
	if ctx.FileSize < pcxHeaderSize+1 {
		return mismatch("no image data")
	}
	return nil
}

func (pcxCodec) Load(ctx *Context, r io.ReadSeeker) error {
	h, err := readPCXHeader(r)
	if err != nil {
		return err
	}
	width, height := h.width(), h.height()
	trueColor := h.bpp == 8 && h.planes >= 3

	bpp := h.bpp * h.planes
	if trueColor {
		bpp = 24
	}
	if err := ctx.PreLoad(width, height, screen.PixelSimple, bpp); err != nil {
		return err
	}

	pcxPalette(ctx, h, width, height)
	if h.bpp == 8 && h.planes == 1 {
		if err := pcxTailPalette(ctx, r); err != nil {
			return err
		}
		if _, err := r.Seek(pcxHeaderSize, io.SeekStart); err != nil {
			return err
		}
	}

	line := make([]byte, h.bytesPerLine*h.planes)
	if h.encoding == 0 {
		if err := ctx.claim(pcxHeaderSize+int64(len(line))*int64(height), "pixel data"); err != nil {
			return err
		}
	}
	br := bufio.NewReader(r)
	dec := compression.NewPCXDecoder(br)

	c := ctx.Canvas
	scratch := make([]uint8, width)
	planes := make([][]byte, h.planes)
	for p := range planes {
		planes[p] = line[p*h.bytesPerLine : (p+1)*h.bytesPerLine]
	}
	for y := 0; y < height; y++ {
		if h.encoding == 1 {
			err = dec.ReadLine(line)
		} else {
			_, err = io.ReadFull(br, line)
		}
		if err != nil {
			return err
		}
		switch {
		case trueColor:
			for x := 0; x < width; x++ {
				c.SetPixelRGB(x, y, planes[0][x], planes[1][x], planes[2][x])
			}
		case h.planes > 1:
			drawPlanar(c, y, width, planes, scratch)
		default:
			if err := drawPacked(c, y, width, line, uint(h.bpp)); err != nil {
				return err
			}
		}
	}
	if dec.Pending() > 0 {
		ctx.warn("run continues past the last line", "bytes", dec.Pending())
	}
	return nil
}

func pcxPalette(ctx *Context, h *pcxHeader, width, height int) {
	ega := make([]screen.RGB, 16)
	for i := range ega {
		ega[i] = screen.RGB{R: h.colormap[i*3], G: h.colormap[i*3+1], B: h.colormap[i*3+2]}
	}
	black := screen.RGB{}

	switch {
	case h.bpp == 1 && h.planes == 1:
		if ega[1] == black && ega[2] == black {
			// CGA 640x200: the foreground is a CGA colour number in the
			// top nibble of the first byte, zero meaning bright white.
			fg := h.colormap[0] >> 4
			if fg == 0 {
				fg = 15
			}
			ctx.Palette[0] = black
			ctx.Palette[1] = screen.DefaultPalettes.EGA[fg]
			ctx.debug("CGA two colour palette", "foreground", fg)
			return
		}
		ctx.Palette.Set(0, ega[:2])
	case h.bpp == 2 && h.planes == 1 && width == 320 && height == 200:
		ctx.Palette[0] = screen.DefaultPalettes.EGA[h.colormap[0]>>4]
		idx := int(h.colormap[3] >> 5)
		if h.paletteInfo != 0 {
			i := 0
			if h.colormap[5] >= h.colormap[4] {
				i = 1
			}
			idx = i * 2
			if h.colormap[4+i] > 200 {
				idx++
			}
		}
		for i, v := range pcxCGA4[idx] {
			ctx.Palette[i+1] = screen.DefaultPalettes.EGA[v]
		}
		ctx.debug("CGA four colour palette", "index", idx)
	case h.bpp == 8 && h.planes >= 3:
	default:
		ctx.Palette.Set(0, ega)
	}
}

// pcxTailPalette reads the 256 colour palette stored after the image
// data. Without one the header palette stays in place.
func pcxTailPalette(ctx *Context, r io.ReadSeeker) error {
	if ctx.FileSize < pcxHeaderSize+769 {
		ctx.warn("no room for a 256 colour palette")
		return nil
	}
	if _, err := r.Seek(ctx.FileSize-769, io.SeekStart); err != nil {
		return err
	}
	marker, err := binio.ReadByte(r)
	if err != nil {
		return err
	}
	if marker != pcxPaletteMagic {
		ctx.warn("256 colour palette marker missing", "found", marker)
		return nil
	}
	colors, err := readRGB(r, 256)
	if err != nil {
		return err
	}
	ctx.Palette.Set(0, colors)
	return nil
}

func (pcxCodec) Save(ctx *Context, w io.Writer) error {
	c := ctx.Canvas
	width, height := ctx.Width, ctx.Height
	top := maxIndex(c)

	black := screen.RGB{}
	bpp, planes := 8, 1
	switch {
	case top < 2 && !(ctx.Palette[1] == black && ctx.Palette[2] == black):
		bpp = 1
	case top < 16:
		bpp, planes = 1, 4
	}
	bytesPerLine := (width*bpp + 7) / 8
	bytesPerLine += bytesPerLine & 1

	var hdr [pcxHeaderSize]byte
	put := func(o, v int) { hdr[o], hdr[o+1] = uint8(v), uint8(v>>8) }
	hdr[0], hdr[1], hdr[2], hdr[3] = pcxMagic, 5, 1, uint8(bpp)
	put(8, width-1)
	put(10, height-1)
	put(12, width)
	put(14, height)
	for i := 0; i < 16; i++ {
		p := ctx.Palette[i]
		hdr[16+i*3], hdr[17+i*3], hdr[18+i*3] = p.R, p.G, p.B
	}
	hdr[65] = uint8(planes)
	put(66, bytesPerLine)
	hdr[68] = 1

	bw := bufio.NewWriter(w)
	bw.Write(hdr[:])

	row := make([]uint8, width)
	planeBuf := make([][]byte, planes)
	var enc compression.PCXLine
	for y := 0; y < height; y++ {
		readRow(c, y, row)
		enc.Reset()
		switch {
		case planes == 4:
			for p := range planeBuf {
				planeBuf[p] = make([]byte, bytesPerLine)
			}
			compression.ToPlanes(row, planeBuf)
		case bpp == 1:
			packed, err := compression.PackPixels(row, 1)
			if err != nil {
				return err
			}
			planeBuf[0] = make([]byte, bytesPerLine)
			copy(planeBuf[0], packed)
		default:
			planeBuf[0] = make([]byte, bytesPerLine)
			copy(planeBuf[0], row)
		}
		var line []byte
		for _, plane := range planeBuf {
			for _, b := range plane {
				enc.Put(b)
			}
			line = enc.Flush()
		}
		bw.Write(line)
	}

	if bpp == 8 {
		bw.WriteByte(pcxPaletteMagic)
		writeRGB(bw, ctx.Palette[:])
	}
	return bw.Flush()
}
