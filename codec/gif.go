package codec

import (
	"bufio"
	"bytes"
	"image"
	"io"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/compression"
	"github.com/32bitkid/retrofmt/screen"
)

// Section indicators.
const (
	gifExtension       = 0x21
	gifImageDescriptor = 0x2C
	gifTrailer         = 0x3B
)

// Extensions.
const (
	gifGraphicControl = 0xF9
	gifComment        = 0xFE
	gifApplication    = 0xFF
)

// Application identifiers written by GrafX2.
const (
	gifGFX2Path = "GFX2PATH\x00\x00\x00"
	gifGFX2Mode = "GFX2MODE2.6"
	gifCycles   = "CRNG\x00\x00\x00\x001.0"
)

// Masks.
const (
	gifColorMapFollows = 1 << 7
	gifColorTableSize  = 7
	gifInterlace       = 1 << 6
	gifTransparentSet  = 1 << 0
	gifDisposalMethod  = 7 << 2
)

// Disposal methods.
const (
	gifDisposeNone       = 0
	gifDisposeLeave      = 1
	gifDisposeBackground = 2
	gifDisposePrevious   = 3
)

type gifCodec struct{}

func (gifCodec) Format() Format             { return FormatGIF }
func (gifCodec) Name() string               { return "GIF" }
func (gifCodec) Extensions() []string       { return []string{"gif"} }
func (gifCodec) Capabilities() Capabilities { return CanLoad | CanSave | HasLayers }

func (gifCodec) Test(ctx *Context, r io.ReadSeeker) error {
	var sig [6]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return err
	}
	if s := string(sig[:]); s != "GIF87a" && s != "GIF89a" {
		return mismatch("bad signature %q", s)
	}
	w, err := binio.ReadWordLE(r)
	if err != nil {
		return err
	}
	h, err := binio.ReadWordLE(r)
	if err != nil {
		return err
	}
	if w == 0 || h == 0 {
		return mismatch("zero sized screen")
	}
	return nil
}

// gifBlocks reads the data of a chain of GIF sub-blocks as one stream,
// returning io.EOF at the zero length terminator.
type gifBlocks struct {
	r    io.ByteReader
	left int
	done bool
}

func (b *gifBlocks) ReadByte() (byte, error) {
	for b.left == 0 {
		if b.done {
			return 0, io.EOF
		}
		n, err := b.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			b.done = true
			return 0, io.EOF
		}
		b.left = int(n)
	}
	b.left--
	c, err := b.r.ReadByte()
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return c, err
}

func (b *gifBlocks) drain() ([]byte, error) {
	var out []byte
	for {
		c, err := b.ReadByte()
		if err == io.EOF && b.done {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
}

type gifFrame struct {
	rect        image.Rectangle
	disposal    uint8
	transparent bool
	transIndex  uint8
	delay       int
}

type gifLoader struct {
	ctx    *Context
	r      *bufio.Reader
	width  int
	height int

	background uint8
	ratio      screen.PixelRatio
	bpp        int
	looping    bool
	frames     int

	gce     gifFrame
	hasGCE  bool
	prev    gifFrame
	restore []uint8
}

func (gifCodec) Load(ctx *Context, r io.ReadSeeker) error {
	l := &gifLoader{ctx: ctx, r: bufio.NewReader(r), bpp: 8}
	return l.load()
}

func (l *gifLoader) load() error {
	if err := binio.Skip(l.r, 6); err != nil {
		return err
	}
	var lsd [7]byte
	if _, err := io.ReadFull(l.r, lsd[:]); err != nil {
		return err
	}
	l.width = int(lsd[0]) | int(lsd[1])<<8
	l.height = int(lsd[2]) | int(lsd[3])<<8
	l.background = lsd[5]
	switch aspect := lsd[6]; {
	case aspect == 0:
	case int(aspect)+15 < 48:
		l.ratio = screen.PixelTall
	case int(aspect)+15 > 96:
		l.ratio = screen.PixelWide
	}
	if lsd[4]&gifColorMapFollows != 0 {
		l.bpp = int(lsd[4]&gifColorTableSize) + 1
		colors, err := readRGB(l.r, 1<<uint(l.bpp))
		if err != nil {
			return err
		}
		l.ctx.Palette.Set(0, colors)
	}

	for {
		block, err := l.r.ReadByte()
		if err != nil {
			if l.frames > 0 {
				l.ctx.warn("missing trailer")
				return nil
			}
			return err
		}
		switch block {
		case gifExtension:
			err = l.readExtension()
		case gifImageDescriptor:
			err = l.readImage()
		case gifTrailer:
			return nil
		default:
			if l.frames == 0 {
				return malformed("unknown block 0x%02X", block)
			}
			l.ctx.warn("stopped at unknown block", "block", block)
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (l *gifLoader) readExtension() error {
	label, err := l.r.ReadByte()
	if err != nil {
		return err
	}
	blocks := &gifBlocks{r: l.r}
	data, err := blocks.drain()
	if err != nil {
		return err
	}

	switch label {
	case gifGraphicControl:
		if len(data) < 4 {
			return malformed("short graphic control extension")
		}
		l.hasGCE = true
		l.gce = gifFrame{
			disposal:    (data[0] & gifDisposalMethod) >> 2,
			transparent: data[0]&gifTransparentSet != 0,
			delay:       (int(data[1]) | int(data[2])<<8) * 10,
			transIndex:  data[3],
		}
	case gifComment:
		l.ctx.SetComment(string(data))
	case gifApplication:
		// the first sub-block is the 11 byte identifier
		if len(data) < 11 {
			return nil
		}
		switch id := string(data[:11]); id {
		case "NETSCAPE2.0", "ANIMEXTS1.0":
			l.looping = true
		case gifGFX2Path:
			l.ctx.SourcePath = string(bytes.TrimRight(data[11:], "\x00"))
		case gifGFX2Mode:
			l.ctx.ScreenMode = string(bytes.TrimRight(data[11:], "\x00"))
		case gifCycles:
			for rec := data[11:]; len(rec) >= 6; rec = rec[6:] {
				l.ctx.Cycles = append(l.ctx.Cycles, parseCycle(rec))
			}
		default:
			l.ctx.debug("unknown application extension", "id", id)
		}
	default:
		l.ctx.debug("skipped extension", "label", label)
	}
	return nil
}

func (l *gifLoader) readImage() error {
	var desc [9]byte
	if _, err := io.ReadFull(l.r, desc[:]); err != nil {
		return err
	}
	frame := gifFrame{}
	if l.hasGCE {
		frame = l.gce
	}
	l.hasGCE = false
	left := int(desc[0]) | int(desc[1])<<8
	top := int(desc[2]) | int(desc[3])<<8
	w := int(desc[4]) | int(desc[5])<<8
	h := int(desc[6]) | int(desc[7])<<8
	frame.rect = image.Rect(left, top, left+w, top+h)
	if bounds := l.bounds(); !frame.rect.In(bounds) {
		l.ctx.warn("frame clipped to the screen", "frame", l.frames, "rect", frame.rect)
		frame.rect = frame.rect.Intersect(bounds)
	}

	if desc[8]&gifColorMapFollows != 0 {
		n := 1 << (uint(desc[8]&gifColorTableSize) + 1)
		colors, err := readRGB(l.r, n)
		if err != nil {
			return err
		}
		if l.frames > 0 {
			l.ctx.warn("local palette replaces the global one", "frame", l.frames)
		}
		l.ctx.Palette.Set(0, colors)
	}

	if err := l.startFrame(frame); err != nil {
		return err
	}

	litWidth, err := l.r.ReadByte()
	if err != nil {
		return err
	}
	rows := gifRows(h, desc[8]&gifInterlace != 0)
	canvas := l.ctx.Canvas
	total := w * h
	n := 0
	blocks := &gifBlocks{r: l.r}
	err = compression.DecodeLZW(blocks, uint(litWidth), func(c uint8) error {
		if n >= total {
			return nil
		}
		x, y := left+n%w, top+rows[n/w]
		n++
		if frame.transparent && c == frame.transIndex {
			return nil
		}
		if !image.Pt(x, y).In(frame.rect) {
			return nil
		}
		canvas.SetPixel(x, y, c)
		return nil
	})
	if err != nil && !(n == total && (err == io.EOF || err == io.ErrUnexpectedEOF)) {
		return err
	}
	if n < total {
		l.ctx.warn("image data ended early", "pixels", n, "expected", total)
	}
	if _, err := blocks.drain(); err != nil {
		return err
	}
	l.prev = frame
	l.frames++
	return nil
}

// startFrame announces the picture on the first image, and opens a new
// layer with the previous frame disposed of on the others.
func (l *gifLoader) startFrame(frame gifFrame) error {
	ctx := l.ctx
	if l.frames == 0 {
		if err := ctx.PreLoad(l.width, l.height, l.ratio, l.bpp); err != nil {
			return err
		}
		if frame.transparent {
			ctx.TransparentColor = frame.transIndex
			ctx.BackgroundTransparent = true
		}
		if l.background != 0 {
			fillRect(ctx.Canvas, l.bounds(), l.background)
		}
		ctx.Canvas.SetFrameDuration(frame.delay)
		l.saveRestore(frame)
		return nil
	}

	if l.frames == 1 {
		if l.looping || frame.delay > 0 || l.prev.delay > 0 {
			ctx.SetImageMode(screen.ModeAnimation)
		} else {
			ctx.SetImageMode(screen.ModeLayers)
		}
	}
	if err := ctx.Canvas.SetLayer(l.frames); err != nil {
		return err
	}
	if ctx.Mode == screen.ModeAnimation {
		switch l.prev.disposal {
		case gifDisposeBackground:
			bg := l.background
			if l.prev.transparent {
				bg = l.prev.transIndex
			}
			fillRect(ctx.Canvas, l.prev.rect.Intersect(l.bounds()), bg)
		case gifDisposePrevious:
			l.putRestore()
		}
	}
	ctx.Canvas.SetFrameDuration(frame.delay)
	l.saveRestore(frame)
	return nil
}

func (l *gifLoader) bounds() image.Rectangle {
	return image.Rect(0, 0, l.width, l.height)
}

func (l *gifLoader) saveRestore(frame gifFrame) {
	l.restore = l.restore[:0]
	if frame.disposal != gifDisposePrevious {
		return
	}
	r := frame.rect.Intersect(l.bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			l.restore = append(l.restore, l.ctx.Canvas.GetPixel(x, y))
		}
	}
}

func (l *gifLoader) putRestore() {
	r, i := l.prev.rect.Intersect(l.bounds()), 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if i < len(l.restore) {
				l.ctx.Canvas.SetPixel(x, y, l.restore[i])
			}
			i++
		}
	}
}

func fillRect(c screen.Canvas, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c.SetPixel(x, y, v)
		}
	}
}

// gifRows maps the n-th stored row of an image to its screen row.
func gifRows(h int, interlaced bool) []int {
	rows := make([]int, 0, h)
	if !interlaced {
		for y := 0; y < h; y++ {
			rows = append(rows, y)
		}
		return rows
	}
	passes := [4]struct{ start, step int }{{0, 8}, {4, 8}, {2, 4}, {1, 2}}
	for _, p := range passes {
		for y := p.start; y < h; y += p.step {
			rows = append(rows, y)
		}
	}
	return rows
}

func (gifCodec) Save(ctx *Context, w io.Writer) error {
	c := ctx.Canvas
	width, height := ctx.Width, ctx.Height
	layers := c.LayerCount()

	frames := make([][]uint8, layers)
	delays := make([]int, layers)
	var top uint8
	for i := range frames {
		if err := c.SetLayer(i); err != nil {
			return err
		}
		px := make([]uint8, width*height)
		for y := 0; y < height; y++ {
			readRow(c, y, px[y*width:(y+1)*width])
		}
		for _, v := range px {
			if v > top {
				top = v
			}
		}
		frames[i] = px
		delays[i] = c.FrameDuration()
	}
	if err := c.SetLayer(0); err != nil {
		return err
	}
	bits := depthFor(top, 1, 2, 3, 4, 5, 6, 7, 8)

	bw := bufio.NewWriter(w)
	bw.WriteString("GIF89a")
	binio.WriteWordLE(bw, uint16(width))
	binio.WriteWordLE(bw, uint16(height))
	bw.WriteByte(gifColorMapFollows | uint8(bits-1)<<4 | uint8(bits-1))
	background := uint8(0)
	if ctx.BackgroundTransparent {
		background = ctx.TransparentColor
	}
	bw.WriteByte(background)
	switch ctx.Ratio {
	case screen.PixelWide:
		bw.WriteByte(2*64 - 15)
	case screen.PixelTall:
		bw.WriteByte(64/2 - 15)
	default:
		bw.WriteByte(0)
	}
	writeRGB(bw, ctx.Palette[:1<<bits])

	if layers > 1 && ctx.Options.GIFLoop >= 0 {
		writeGIFApplication(bw, "NETSCAPE2.0", []byte{1, uint8(ctx.Options.GIFLoop), uint8(ctx.Options.GIFLoop >> 8)})
	}
	if ctx.Comment != "" {
		bw.Write([]byte{gifExtension, gifComment})
		writeGIFBlocks(bw, []byte(ctx.Comment))
	}
	if ctx.SourcePath != "" {
		writeGIFApplication(bw, gifGFX2Path, []byte(ctx.SourcePath))
	}
	if ctx.ScreenMode != "" {
		writeGIFApplication(bw, gifGFX2Mode, []byte(ctx.ScreenMode))
	}
	if len(ctx.Cycles) > 0 {
		var recs []byte
		for _, cy := range ctx.Cycles {
			recs = append(recs, cy.record()...)
		}
		writeGIFApplication(bw, gifCycles, recs)
	}

	litWidth := bits
	if litWidth < 2 {
		litWidth = 2
	}
	animated := layers > 1 && ctx.Mode == screen.ModeAnimation
	for i, px := range frames {
		rect := image.Rect(0, 0, width, height)
		if animated && i > 0 {
			rect = gifDelta(frames[i-1], px, width, height)
		}
		if layers > 1 || ctx.BackgroundTransparent {
			flags := uint8(gifDisposeLeave << 2)
			if ctx.BackgroundTransparent {
				flags |= gifTransparentSet
			}
			bw.Write([]byte{gifExtension, gifGraphicControl, 4, flags})
			binio.WriteWordLE(bw, uint16(delays[i]/10))
			bw.Write([]byte{ctx.TransparentColor, 0})
		}

		bw.WriteByte(gifImageDescriptor)
		binio.WriteWordLE(bw, uint16(rect.Min.X))
		binio.WriteWordLE(bw, uint16(rect.Min.Y))
		binio.WriteWordLE(bw, uint16(rect.Dx()))
		binio.WriteWordLE(bw, uint16(rect.Dy()))
		bw.WriteByte(0)

		var data bytes.Buffer
		enc, err := compression.NewLZWEncoder(&data, litWidth)
		if err != nil {
			return err
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			if _, err := enc.Write(px[y*width+rect.Min.X : y*width+rect.Max.X]); err != nil {
				return err
			}
		}
		if err := enc.Close(); err != nil {
			return err
		}
		bw.WriteByte(uint8(litWidth))
		writeGIFBlocks(bw, data.Bytes())
	}
	bw.WriteByte(gifTrailer)
	return bw.Flush()
}

// gifDelta is the smallest rectangle holding every pixel that differs
// between two frames; identical frames give a single pixel.
func gifDelta(prev, cur []uint8, width, height int) image.Rectangle {
	r := image.Rectangle{}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if prev[y*width+x] != cur[y*width+x] {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	if r.Empty() {
		return image.Rect(0, 0, 1, 1)
	}
	return r
}

func writeGIFApplication(w *bufio.Writer, id string, payload []byte) {
	w.Write([]byte{gifExtension, gifApplication, 11})
	w.WriteString(id)
	writeGIFBlocks(w, payload)
}

func writeGIFBlocks(w *bufio.Writer, data []byte) {
	for len(data) > 0 {
		n := len(data)
		if n > 255 {
			n = 255
		}
		w.WriteByte(uint8(n))
		w.Write(data[:n])
		data = data[n:]
	}
	w.WriteByte(0)
}
