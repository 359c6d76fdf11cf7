package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/compression"
	"github.com/32bitkid/retrofmt/screen"
)

const (
	camgLace = 0x0004
	camgEHB  = 0x0080
	camgHAM  = 0x0800

	iffMaskNone        = 0
	iffMaskPlane       = 1
	iffMaskTransparent = 2
)

type bmhd struct {
	width, height    int
	planes           int
	masking          uint8
	compression      uint8
	transparentColor uint8
	xAspect, yAspect uint8
}

func (h *bmhd) ratio() screen.PixelRatio {
	x, y := int(h.xAspect), int(h.yAspect)
	switch {
	case x == 0 || y == 0:
		return screen.PixelSimple
	case x >= 2*y:
		return screen.PixelWide
	case y >= 2*x:
		return screen.PixelTall
	}
	return screen.PixelSimple
}

type iffCodec struct{}

func (iffCodec) Format() Format             { return FormatIFF }
func (iffCodec) Name() string               { return "Amiga IFF ILBM / PBM" }
func (iffCodec) Extensions() []string       { return []string{"lbm", "iff", "ilbm", "bbm"} }
func (iffCodec) Capabilities() Capabilities { return CanLoad | CanSave }

// readFORM checks the container header and returns the form type.
func readFORM(r io.Reader) (string, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", err
	}
	if string(hdr[0:4]) != "FORM" {
		return "", mismatch("not an IFF file")
	}
	kind := string(hdr[8:12])
	if kind != "ILBM" && kind != "PBM " {
		return "", mismatch("unknown form %q", kind)
	}
	return kind, nil
}

func (iffCodec) Test(ctx *Context, r io.ReadSeeker) error {
	_, err := readFORM(r)
	return err
}

func (iffCodec) Load(ctx *Context, r io.ReadSeeker) error {
	br := bufio.NewReader(r)
	kind, err := readFORM(br)
	if err != nil {
		return err
	}

	var h *bmhd
	var camg uint32
	colors := 0
	for {
		var id [4]byte
		if _, err := io.ReadFull(br, id[:]); err != nil {
			if err == io.EOF && h != nil {
				return malformed("no BODY chunk")
			}
			return err
		}
		size, err := binio.ReadDwordBE(br)
		if err != nil {
			return err
		}
		if err := ctx.claim(int64(size), string(id[:])+" chunk"); err != nil {
			return err
		}
		padded := int64(size) + int64(size&1)

		switch string(id[:]) {
		case "BMHD":
			buf, err := binio.ReadBytes(br, int(size))
			if err != nil {
				return err
			}
			if h, err = parseBMHD(buf); err != nil {
				return err
			}
			padded -= int64(size)
		case "CMAP":
			n := int(size) / 3
			if n > 256 {
				n = 256
			}
			pal, err := readRGB(br, n)
			if err != nil {
				return err
			}
			ctx.Palette.Set(0, pal)
			colors = n
			padded -= int64(n * 3)
		case "CAMG":
			if size < 4 {
				return malformed("short CAMG chunk")
			}
			if camg, err = binio.ReadDwordBE(br); err != nil {
				return err
			}
			padded -= 4
		case "CRNG":
			if size < 8 {
				return malformed("short CRNG chunk")
			}
			var rec [8]byte
			if _, err := io.ReadFull(br, rec[:]); err != nil {
				return err
			}
			// the first word is padding
			ctx.Cycles = append(ctx.Cycles, parseCycle(rec[2:]))
			padded -= 8
		case "ANNO", "TEXT":
			buf, err := binio.ReadBytes(br, int(size))
			if err != nil {
				return err
			}
			ctx.SetComment(string(bytes.TrimRight(buf, "\x00")))
			padded -= int64(size)
		case "BODY":
			if h == nil {
				return malformed("BODY before BMHD")
			}
			return loadIFFBody(ctx, br, kind, h, camg, colors)
		default:
			ctx.debug("skipping chunk", "id", string(id[:]), "size", size)
		}
		if err := binio.Skip(br, padded); err != nil {
			return err
		}
	}
}

func parseBMHD(buf []byte) (*bmhd, error) {
	if len(buf) < 20 {
		return nil, malformed("short BMHD chunk")
	}
	be := binary.BigEndian
	h := &bmhd{
		width:            int(be.Uint16(buf[0:])),
		height:           int(be.Uint16(buf[2:])),
		planes:           int(buf[8]),
		masking:          buf[9],
		compression:      buf[10],
		transparentColor: uint8(be.Uint16(buf[12:])),
		xAspect:          buf[14],
		yAspect:          buf[15],
	}
	if h.planes < 1 || h.planes > 8 {
		return nil, unsupported("%d bitplanes", h.planes)
	}
	if h.compression > 1 {
		return nil, unsupported("compression %d", h.compression)
	}
	return h, nil
}

func loadIFFBody(ctx *Context, r *bufio.Reader, kind string, h *bmhd, camg uint32, colors int) error {
	ham := camg&camgHAM != 0 && (h.planes == 6 || h.planes == 8)
	if camg&camgEHB != 0 && h.planes == 6 {
		for i := 0; i < 32; i++ {
			c := ctx.Palette[i]
			ctx.Palette[i+32] = screen.RGB{R: c.R >> 1, G: c.G >> 1, B: c.B >> 1}
		}
	}
	if colors == 0 && !ham {
		ctx.Palette.Set(0, screen.Gray(1<<uint(h.planes)))
	}

	ratio := h.ratio()
	if camg&camgLace != 0 && ratio == screen.PixelTall {
		ratio = screen.PixelSimple
	}
	bpp := h.planes
	if ham {
		bpp = 24
	}
	if err := ctx.PreLoad(h.width, h.height, ratio, bpp); err != nil {
		return err
	}
	if h.masking == iffMaskTransparent {
		ctx.TransparentColor = h.transparentColor
		ctx.BackgroundTransparent = true
	}

	var planeBytes, rowBytes, planes int
	if kind == "PBM " {
		rowBytes = h.width + h.width&1
	} else {
		planeBytes = ((h.width + 15) / 16) * 2
		planes = h.planes
		if h.masking == iffMaskPlane {
			planes++
		}
		rowBytes = planeBytes * planes
	}

	warned := false
	noop := func() {
		if !warned {
			ctx.warn("ByteRun1 no-op control byte")
			warned = true
		}
	}

	c := ctx.Canvas
	row := make([]byte, rowBytes)
	scratch := make([]uint8, h.width)
	planeRows := make([][]byte, h.planes)
	for y := 0; y < h.height; y++ {
		var err error
		if h.compression == 1 {
			err = compression.UnpackBits(r, row, noop)
		} else {
			_, err = io.ReadFull(r, row)
		}
		if err != nil {
			return err
		}

		if kind == "PBM " {
			drawIndexed(c, y, row[:h.width])
			continue
		}
		for p := range planeRows {
			planeRows[p] = row[p*planeBytes : (p+1)*planeBytes]
		}
		if !ham {
			drawPlanar(c, y, h.width, planeRows, scratch)
			continue
		}
		compression.Planes(planeRows, h.width, scratch)
		hamRow(c, y, scratch, &ctx.Palette, uint(h.planes-2))
	}
	return nil
}

// hamRow resolves hold-and-modify pixels: the top two bits select between
// a palette lookup and changing one component of the previous colour.
func hamRow(c screen.Canvas, y int, px []uint8, pal *screen.Palette, bits uint) {
	mask := uint8(1<<bits - 1)
	widen := func(v uint8) uint8 {
		if bits == 4 {
			return v * 0x11
		}
		return v<<2 | v>>4
	}
	cur := pal[0]
	for x, v := range px {
		data := v & mask
		switch v >> bits {
		case 0:
			cur = pal[data]
		case 1:
			cur.B = widen(data)
		case 2:
			cur.R = widen(data)
		case 3:
			cur.G = widen(data)
		}
		c.SetPixelRGB(x, y, cur.R, cur.G, cur.B)
	}
}

type iffChunk struct {
	bytes.Buffer
	id string
}

func (ch *iffChunk) writeTo(w io.Writer) {
	binio.WriteBytes(w, []byte(ch.id))
	binio.WriteDwordBE(w, uint32(ch.Len()))
	binio.WriteBytes(w, ch.Bytes())
	if ch.Len()&1 != 0 {
		binio.WriteByte(w, 0)
	}
}

// Save writes an ILBM with as few planes as the used indices need, each
// plane row packed on its own.
func (iffCodec) Save(ctx *Context, w io.Writer) error {
	c := ctx.Canvas
	width, height := ctx.Width, ctx.Height
	if width > 0xFFFF || height > 0xFFFF {
		return unsupported("%dx%d does not fit a BMHD", width, height)
	}
	planes := int(depthFor(maxIndex(c), 1, 2, 3, 4, 5, 6, 7, 8))

	xAspect, yAspect := uint8(1), uint8(1)
	switch ctx.Ratio {
	case screen.PixelWide:
		xAspect = 2
	case screen.PixelTall:
		yAspect = 2
	}

	hdr := iffChunk{id: "BMHD"}
	binio.WriteWordBE(&hdr, uint16(width))
	binio.WriteWordBE(&hdr, uint16(height))
	binio.WriteDwordBE(&hdr, 0)
	masking := uint8(iffMaskNone)
	if ctx.BackgroundTransparent {
		masking = iffMaskTransparent
	}
	hdr.Write([]byte{uint8(planes), masking, 1, 0})
	binio.WriteWordBE(&hdr, uint16(ctx.TransparentColor))
	hdr.Write([]byte{xAspect, yAspect})
	binio.WriteWordBE(&hdr, uint16(width))
	binio.WriteWordBE(&hdr, uint16(height))

	cmap := iffChunk{id: "CMAP"}
	writeRGB(&cmap, ctx.Palette[:1<<uint(planes)])

	body := iffChunk{id: "BODY"}
	planeBytes := ((width + 15) / 16) * 2
	planeRows := make([][]byte, planes)
	row := make([]uint8, width)
	for y := 0; y < height; y++ {
		for p := range planeRows {
			planeRows[p] = make([]byte, planeBytes)
		}
		compression.ToPlanes(readRow(c, y, row), planeRows)
		for _, plane := range planeRows {
			body.Write(compression.PackBits(plane))
		}
	}

	chunks := []*iffChunk{&hdr, &cmap}
	for _, cy := range ctx.Cycles {
		crng := &iffChunk{id: "CRNG"}
		binio.WriteWordBE(crng, 0)
		crng.Write(cy.record())
		chunks = append(chunks, crng)
	}
	if ctx.Comment != "" {
		anno := iffChunk{id: "ANNO"}
		anno.WriteString(ctx.Comment)
		chunks = append(chunks, &anno)
	}
	chunks = append(chunks, &body)

	var form bytes.Buffer
	form.WriteString("ILBM")
	for _, ch := range chunks {
		ch.writeTo(&form)
	}
	bw := bufio.NewWriter(w)
	bw.WriteString("FORM")
	binio.WriteDwordBE(bw, uint32(form.Len()))
	bw.Write(form.Bytes())
	return bw.Flush()
}
