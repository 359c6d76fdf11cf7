package codec

import (
	"bufio"
	"encoding/binary"
	"image"
	"image/png"
	"io"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/screen"
)

const (
	biRGB            = 0
	biRLE8           = 1
	biRLE4           = 2
	biBitfields      = 3
	biPNG            = 5
	biAlphaBitfields = 6

	bmpFileHeaderSize = 14
)

type bitField struct {
	mask  uint32
	shift uint
	scale float64
}

func newBitField(mask uint32) bitField {
	f := bitField{mask: mask}
	if mask == 0 {
		return f
	}
	for mask&1 == 0 {
		f.shift++
		mask >>= 1
	}
	f.scale = 255.0 / float64(mask)
	return f
}

func (f bitField) value(v uint32) uint8 {
	if f.mask == 0 {
		return 0
	}
	return uint8(0.5 + float64((v&f.mask)>>f.shift)*f.scale)
}

// dibHeader is the bitmap information header shared by BMP files and ICO
// sub-images.
type dibHeader struct {
	size        int
	width       int
	height      int
	topDown     bool
	bitCount    int
	compression uint32
	colors      int
	fields      [3]bitField
}

func readDIB(r io.Reader) (*dibHeader, error) {
	size, err := binio.ReadDwordLE(r)
	if err != nil {
		return nil, err
	}
	switch size {
	case 12, 16, 40, 52, 56, 64, 108, 124:
	default:
		return nil, mismatch("unknown info header size %d", size)
	}
	buf, err := binio.ReadBytes(r, int(size)-4)
	if err != nil {
		return nil, err
	}
	h := &dibHeader{size: int(size)}
	le := binary.LittleEndian
	if size == 12 {
		h.width = int(le.Uint16(buf[0:]))
		h.height = int(int16(le.Uint16(buf[2:])))
		h.bitCount = int(le.Uint16(buf[6:]))
	} else {
		h.width = int(int32(le.Uint32(buf[0:])))
		h.height = int(int32(le.Uint32(buf[4:])))
		h.bitCount = int(le.Uint16(buf[10:]))
		if size >= 20 {
			h.compression = le.Uint32(buf[12:])
		}
		if size >= 36 {
			h.colors = int(le.Uint32(buf[28:]))
		}
	}
	if h.height < 0 {
		h.height = -h.height
		h.topDown = true
	}
	if h.width <= 0 || h.height == 0 {
		return nil, mismatch("bad dimensions %dx%d", h.width, h.height)
	}

	if h.compression == biPNG {
		return h, nil
	}
	switch h.bitCount {
	case 1, 2, 4, 8:
		if h.colors == 0 || h.colors > 1<<uint(h.bitCount) {
			h.colors = 1 << uint(h.bitCount)
		}
	case 16:
		h.setMasks(0x7C00, 0x03E0, 0x001F)
	case 24:
	case 32:
		h.setMasks(0xFF0000, 0x00FF00, 0x0000FF)
	default:
		return nil, mismatch("bad bit count %d", h.bitCount)
	}
	if h.bitCount > 8 {
		h.colors = 0
	}

	if h.compression == biBitfields || h.compression == biAlphaBitfields {
		if size >= 52 {
			h.setMasks(le.Uint32(buf[36:]), le.Uint32(buf[40:]), le.Uint32(buf[44:]))
		} else {
			// masks follow a plain 40 byte header
			n := 12
			if h.compression == biAlphaBitfields {
				n = 16
			}
			masks, err := binio.ReadBytes(r, n)
			if err != nil {
				return nil, err
			}
			h.setMasks(le.Uint32(masks[0:]), le.Uint32(masks[4:]), le.Uint32(masks[8:]))
		}
	}
	return h, nil
}

func (h *dibHeader) setMasks(r, g, b uint32) {
	h.fields = [3]bitField{newBitField(r), newBitField(g), newBitField(b)}
}

func (h *dibHeader) stride() int {
	return ((h.width*h.bitCount + 31) / 32) * 4
}

func (h *dibHeader) readPalette(r io.Reader, pal *screen.Palette) error {
	entry := 4
	if h.size == 12 {
		entry = 3
	}
	buf, err := binio.ReadBytes(r, h.colors*entry)
	if err != nil {
		return err
	}
	for i := 0; i < h.colors && i < len(pal); i++ {
		o := i * entry
		pal[i] = screen.RGB{R: buf[o+2], G: buf[o+1], B: buf[o]}
	}
	return nil
}

func (h *dibHeader) row(i int) int {
	if h.topDown {
		return i
	}
	return h.height - 1 - i
}

// decode reads the pixel data of an already announced picture.
func (h *dibHeader) decode(ctx *Context, r io.Reader) error {
	switch h.compression {
	case biRLE8, biRLE4:
		if h.topDown {
			return malformed("compressed bitmaps cannot be top-down")
		}
		return h.decodeRLE(ctx, byteReader(r))
	case biRGB, biBitfields, biAlphaBitfields:
	default:
		return unsupported("compression %d", h.compression)
	}

	if err := ctx.claim(int64(h.stride())*int64(h.height), "bitmap"); err != nil {
		return err
	}
	c := ctx.Canvas
	buf := make([]byte, h.stride())
	for i := 0; i < h.height; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		y := h.row(i)
		switch h.bitCount {
		case 1, 2, 4, 8:
			if err := drawPacked(c, y, h.width, buf, uint(h.bitCount)); err != nil {
				return err
			}
		case 24:
			for x := 0; x < h.width; x++ {
				c.SetPixelRGB(x, y, buf[x*3+2], buf[x*3+1], buf[x*3])
			}
		case 16, 32:
			for x := 0; x < h.width; x++ {
				var v uint32
				if h.bitCount == 16 {
					v = uint32(binary.LittleEndian.Uint16(buf[x*2:]))
				} else {
					v = binary.LittleEndian.Uint32(buf[x*4:])
				}
				c.SetPixelRGB(x, y, h.fields[0].value(v), h.fields[1].value(v), h.fields[2].value(v))
			}
		}
	}
	return nil
}

func (h *dibHeader) decodeRLE(ctx *Context, r io.ByteReader) error {
	c := ctx.Canvas
	x, y := 0, h.height-1
	put := func(v uint8) {
		if x < h.width && y >= 0 {
			c.SetPixel(x, y, v)
		}
		x++
	}
	next := func() (uint8, uint8, error) {
		b1, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		b2, err := r.ReadByte()
		return b1, b2, err
	}

	for y >= 0 {
		b1, b2, err := next()
		if err != nil {
			return err
		}
		if b1 > 0 {
			for k := 0; k < int(b1); k++ {
				switch {
				case h.compression == biRLE8:
					put(b2)
				case k%2 == 0:
					put(b2 >> 4)
				default:
					put(b2 & 0x0F)
				}
			}
			continue
		}
		switch b2 {
		case 0:
			x, y = 0, y-1
		case 1:
			return nil
		case 2:
			dx, dy, err := next()
			if err != nil {
				return err
			}
			x, y = x+int(dx), y-int(dy)
		default:
			n := int(b2)
			stored := n
			if h.compression == biRLE4 {
				stored = (n + 1) / 2
			}
			data := make([]byte, stored+stored&1)
			for i := range data {
				if data[i], err = r.ReadByte(); err != nil {
					return err
				}
			}
			for k := 0; k < n; k++ {
				switch {
				case h.compression == biRLE8:
					put(data[k])
				case k%2 == 0:
					put(data[k/2] >> 4)
				default:
					put(data[k/2] & 0x0F)
				}
			}
		}
	}
	return nil
}

// loadPNG decodes an embedded PNG stream into the canvas.
func loadPNG(ctx *Context, r io.Reader) error {
	img, err := png.Decode(r)
	if err != nil {
		return malformed("embedded png: %v", err)
	}
	b := img.Bounds()
	pm, paletted := img.(*image.Paletted)
	bpp := 24
	if paletted {
		bpp = 8
		pal := screen.FromColors(pm.Palette)
		ctx.Palette.Set(0, pal[:len(pm.Palette)])
	}
	if err := ctx.PreLoad(b.Dx(), b.Dy(), screen.PixelSimple, bpp); err != nil {
		return err
	}
	c := ctx.Canvas
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if paletted {
				c.SetPixel(x-b.Min.X, y-b.Min.Y, pm.ColorIndexAt(x, y))
				continue
			}
			cr, cg, cb, _ := img.At(x, y).RGBA()
			c.SetPixelRGB(x-b.Min.X, y-b.Min.Y, uint8(cr>>8), uint8(cg>>8), uint8(cb>>8))
		}
	}
	return nil
}

type bmpCodec struct{}

func (bmpCodec) Format() Format             { return FormatBMP }
func (bmpCodec) Name() string               { return "Windows / OS2 bitmap" }
func (bmpCodec) Extensions() []string       { return []string{"bmp", "dib"} }
func (bmpCodec) Capabilities() Capabilities { return CanLoad | CanSave }

func readBMPFileHeader(r io.Reader) (offBits uint32, err error) {
	var buf [bmpFileHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	if buf[0] != 'B' || buf[1] != 'M' {
		return 0, mismatch("bad signature")
	}
	return binary.LittleEndian.Uint32(buf[10:]), nil
}

func (bmpCodec) Test(ctx *Context, r io.ReadSeeker) error {
	offBits, err := readBMPFileHeader(r)
	if err != nil {
		return err
	}
	if _, err := readDIB(r); err != nil {
		return err
	}
	if int64(offBits) > ctx.FileSize {
		return mismatch("pixel data beyond end of file")
	}
	return nil
}

func (bmpCodec) Load(ctx *Context, r io.ReadSeeker) error {
	offBits, err := readBMPFileHeader(r)
	if err != nil {
		return err
	}
	h, err := readDIB(r)
	if err != nil {
		return err
	}
	if h.compression == biPNG {
		if _, err := r.Seek(int64(offBits), io.SeekStart); err != nil {
			return err
		}
		return loadPNG(ctx, r)
	}
	if err := h.readPalette(r, &ctx.Palette); err != nil {
		return err
	}
	bpp := h.bitCount
	if bpp > 8 {
		bpp = 24
	}
	if err := ctx.PreLoad(h.width, h.height, screen.PixelSimple, bpp); err != nil {
		return err
	}
	if _, err := r.Seek(int64(offBits), io.SeekStart); err != nil {
		return err
	}
	return h.decode(ctx, bufio.NewReader(r))
}

// Save writes an uncompressed 8 bit bitmap: BGR0 palette, rows bottom to
// top, each padded to four bytes.
func (bmpCodec) Save(ctx *Context, w io.Writer) error {
	width, height := ctx.Width, ctx.Height
	stride := (width + 3) &^ 3
	offBits := bmpFileHeaderSize + 40 + 256*4
	fileSize := offBits + stride*height

	bw := bufio.NewWriter(w)
	bw.WriteString("BM")
	binio.WriteDwordLE(bw, uint32(fileSize))
	binio.WriteDwordLE(bw, 0)
	binio.WriteDwordLE(bw, uint32(offBits))

	binio.WriteDwordLE(bw, 40)
	binio.WriteDwordLE(bw, uint32(width))
	binio.WriteDwordLE(bw, uint32(height))
	binio.WriteWordLE(bw, 1)
	binio.WriteWordLE(bw, 8)
	binio.WriteDwordLE(bw, biRGB)
	binio.WriteDwordLE(bw, uint32(stride*height))
	binio.WriteDwordLE(bw, 0)
	binio.WriteDwordLE(bw, 0)
	binio.WriteDwordLE(bw, 0)
	binio.WriteDwordLE(bw, 0)

	for _, c := range ctx.Palette {
		bw.Write([]byte{c.B, c.G, c.R, 0})
	}

	row := make([]uint8, stride)
	for y := height - 1; y >= 0; y-- {
		readRow(ctx.Canvas, y, row[:width])
		bw.Write(row)
	}
	return bw.Flush()
}
