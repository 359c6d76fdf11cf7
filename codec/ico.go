package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"image"
	"io"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/screen"
)

const (
	icoTypeIcon   = 1
	icoTypeCursor = 2
	icoEntrySize  = 16
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

type icoEntry struct {
	width, height int
	size          uint32
	offset        uint32
	depth         int
	png           bool
}

type icoCodec struct{}

func (icoCodec) Format() Format             { return FormatICO }
func (icoCodec) Name() string               { return "Windows icon / cursor" }
func (icoCodec) Extensions() []string       { return []string{"ico", "cur"} }
func (icoCodec) Capabilities() Capabilities { return CanLoad | CanSave }

func readICODirectory(ctx *Context, r io.ReadSeeker) ([]icoEntry, error) {
	var hdr [6]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	kind, count := le.Uint16(hdr[2:]), int(le.Uint16(hdr[4:]))
	if le.Uint16(hdr[0:]) != 0 || (kind != icoTypeIcon && kind != icoTypeCursor) || count == 0 {
		return nil, mismatch("not an icon directory")
	}
	raw, err := binio.ReadBytes(r, count*icoEntrySize)
	if err != nil {
		return nil, err
	}

	entries := make([]icoEntry, count)
	for i := range entries {
		e := raw[i*icoEntrySize:]
		entry := icoEntry{
			width:  int(e[0]),
			height: int(e[1]),
			size:   le.Uint32(e[8:]),
			offset: le.Uint32(e[12:]),
		}
		if entry.width == 0 {
			entry.width = 256
		}
		if entry.height == 0 {
			entry.height = 256
		}
		if int64(entry.offset)+int64(entry.size) > ctx.FileSize || entry.size < 8 {
			return nil, mismatch("entry %d outside the file", i)
		}
		entries[i] = entry
	}

	// the real depth lives in each payload
	for i := range entries {
		e := &entries[i]
		if _, err := r.Seek(int64(e.offset), io.SeekStart); err != nil {
			return nil, err
		}
		var sig [8]byte
		if _, err := io.ReadFull(r, sig[:]); err != nil {
			return nil, err
		}
		if bytes.Equal(sig[:], pngSignature) {
			e.png, e.depth = true, 32
			continue
		}
		size := le.Uint32(sig[0:])
		if size != 40 && size != 12 && size != 108 && size != 124 {
			return nil, mismatch("entry %d is neither a bitmap nor a png", i)
		}
		if _, err := r.Seek(int64(e.offset), io.SeekStart); err != nil {
			return nil, err
		}
		h, err := readDIB(r)
		if err != nil {
			return nil, err
		}
		e.depth = h.bitCount
	}
	return entries, nil
}

// bestICOEntry prefers colour depth, then area.
func bestICOEntry(entries []icoEntry) icoEntry {
	best := entries[0]
	for _, e := range entries[1:] {
		if e.depth > best.depth || (e.depth == best.depth && e.width*e.height > best.width*best.height) {
			best = e
		}
	}
	return best
}

func (icoCodec) Test(ctx *Context, r io.ReadSeeker) error {
	_, err := readICODirectory(ctx, r)
	return err
}

func (icoCodec) Load(ctx *Context, r io.ReadSeeker) error {
	entries, err := readICODirectory(ctx, r)
	if err != nil {
		return err
	}
	e := bestICOEntry(entries)
	ctx.debug("icon entry", "entries", len(entries), "width", e.width, "height", e.height, "depth", e.depth)
	if _, err := r.Seek(int64(e.offset), io.SeekStart); err != nil {
		return err
	}
	if e.png {
		return loadPNG(ctx, bufio.NewReader(io.LimitReader(r, int64(e.size))))
	}

	h, err := readDIB(r)
	if err != nil {
		return err
	}
	// the height covers the colour bitmap and the mask below it
	h.height /= 2
	if h.height == 0 {
		return malformed("empty icon bitmap")
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
	br := bufio.NewReader(r)
	if err := h.decode(ctx, br); err != nil {
		return err
	}

	stride := ((h.width + 31) / 32) * 4
	mask := make([]byte, stride)
	var masked []image.Point
	for i := 0; i < h.height; i++ {
		if _, err := io.ReadFull(br, mask); err != nil {
			ctx.warn("icon mask missing", "row", i)
			return nil
		}
		y := h.height - 1 - i
		for x := 0; x < h.width; x++ {
			if mask[x>>3]&(0x80>>uint(x&7)) != 0 {
				masked = append(masked, image.Point{x, y})
			}
		}
	}
	if len(masked) == 0 {
		return nil
	}
	ctx.TransparentColor = icoTransparent(ctx.Canvas, masked, h)
	ctx.BackgroundTransparent = true
	for _, p := range masked {
		ctx.Canvas.SetPixel(p.X, p.Y, ctx.TransparentColor)
	}
	return nil
}

// icoTransparent picks the index for masked pixels: the colour they all
// share in the bitmap when there is one, otherwise the first index past
// the palette.
func icoTransparent(c screen.Canvas, masked []image.Point, h *dibHeader) uint8 {
	first := c.GetPixel(masked[0].X, masked[0].Y)
	shared := h.bitCount <= 8
	for _, p := range masked[1:] {
		if !shared {
			break
		}
		shared = c.GetPixel(p.X, p.Y) == first
	}
	switch {
	case shared:
		return first
	case h.colors > 0 && h.colors < 256:
		return uint8(h.colors)
	}
	return 0xFF
}

// Save writes a single 8 bit icon; the transparent colour, when set, goes
// to the mask.
func (icoCodec) Save(ctx *Context, w io.Writer) error {
	width, height := ctx.Width, ctx.Height
	if width > 256 || height > 256 {
		return unsupported("icons are at most 256x256, not %dx%d", width, height)
	}
	stride := (width + 3) &^ 3
	maskStride := ((width + 31) / 32) * 4
	size := 40 + 256*4 + (stride+maskStride)*height

	bw := bufio.NewWriter(w)
	binio.WriteWordLE(bw, 0)
	binio.WriteWordLE(bw, icoTypeIcon)
	binio.WriteWordLE(bw, 1)
	bw.Write([]byte{uint8(width), uint8(height), 0, 0})
	binio.WriteWordLE(bw, 1)
	binio.WriteWordLE(bw, 8)
	binio.WriteDwordLE(bw, uint32(size))
	binio.WriteDwordLE(bw, 6+icoEntrySize)

	binio.WriteDwordLE(bw, 40)
	binio.WriteDwordLE(bw, uint32(width))
	binio.WriteDwordLE(bw, uint32(height*2))
	binio.WriteWordLE(bw, 1)
	binio.WriteWordLE(bw, 8)
	for i := 0; i < 6; i++ {
		binio.WriteDwordLE(bw, 0)
	}
	for _, c := range ctx.Palette {
		bw.Write([]byte{c.B, c.G, c.R, 0})
	}

	row := make([]uint8, stride)
	mask := make([]byte, maskStride*height)
	for y := height - 1; y >= 0; y-- {
		readRow(ctx.Canvas, y, row[:width])
		if ctx.BackgroundTransparent {
			m := mask[(height-1-y)*maskStride:]
			for x, v := range row[:width] {
				if v == ctx.TransparentColor {
					m[x>>3] |= 0x80 >> uint(x&7)
				}
			}
		}
		bw.Write(row)
	}
	bw.Write(mask)
	return bw.Flush()
}
