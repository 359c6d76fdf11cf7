package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/screen"
)

const (
	fliMagic       = 0xAF11
	flcMagic       = 0xAF12
	fliHeaderSize  = 128
	fliFrameMagic  = 0xF1FA
	fliPrefixMagic = 0xF100
	fliJiffyMS     = 1000.0 / 70
)

// Chunk types of a frame.
const (
	fliColor256 = 4
	fliSS2      = 7
	fliColor64  = 11
	fliLC       = 12
	fliBlack    = 13
	fliBRun     = 15
	fliCopy     = 16
	fliPStamp   = 18
)

type fliHeader struct {
	magic         uint16
	frames        int
	width, height int
	delay         int
	first         int64
}

func readFLIHeader(r io.Reader) (*fliHeader, error) {
	var buf [fliHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	h := &fliHeader{
		magic:  le.Uint16(buf[4:]),
		frames: int(le.Uint16(buf[6:])),
		width:  int(le.Uint16(buf[8:])),
		height: int(le.Uint16(buf[10:])),
		first:  fliHeaderSize,
	}
	depth := le.Uint16(buf[12:])
	switch h.magic {
	case fliMagic:
		h.delay = int(float64(le.Uint16(buf[16:]))*fliJiffyMS + 0.5)
	case flcMagic:
		h.delay = int(le.Uint32(buf[16:]))
		if o := le.Uint32(buf[80:]); o != 0 {
			h.first = int64(o)
		}
	default:
		return nil, mismatch("not an animation")
	}
	if depth != 0 && depth != 8 {
		return nil, mismatch("depth %d", depth)
	}
	if h.width == 0 || h.height == 0 || h.frames == 0 {
		return nil, mismatch("empty animation")
	}
	return h, nil
}

type flicCodec struct{ loadOnly }

func (flicCodec) Format() Format             { return FormatFLI }
func (flicCodec) Name() string               { return "Autodesk Animator FLI / FLC" }
func (flicCodec) Extensions() []string       { return []string{"fli", "flc", "flh"} }
func (flicCodec) Capabilities() Capabilities { return CanLoad | HasLayers }

func (flicCodec) Test(ctx *Context, r io.ReadSeeker) error {
	h, err := readFLIHeader(r)
	if err != nil {
		return err
	}
	if h.first >= ctx.FileSize {
		return mismatch("no frames")
	}
	return nil
}

// fliFrame holds the frame buffer every chunk draws into.
type fliFrame struct {
	width, height int
	pix           []byte
	palette       *screen.Palette
}

func (f *fliFrame) line(y int) []byte { return f.pix[y*f.width : (y+1)*f.width] }

func (flicCodec) Load(ctx *Context, r io.ReadSeeker) error {
	h, err := readFLIHeader(r)
	if err != nil {
		return err
	}
	if err := ctx.PreLoad(h.width, h.height, screen.PixelSimple, 8); err != nil {
		return err
	}
	if h.frames > 1 {
		ctx.SetImageMode(screen.ModeAnimation)
	}
	if _, err := r.Seek(h.first, io.SeekStart); err != nil {
		return err
	}

	br := bufio.NewReader(r)
	frame := &fliFrame{width: h.width, height: h.height, pix: make([]byte, h.width*h.height), palette: &ctx.Palette}
	c := ctx.Canvas
	for n := 0; n < h.frames; {
		size, err := binio.ReadDwordLE(br)
		if err != nil {
			return err
		}
		kind, err := binio.ReadWordLE(br)
		if err != nil {
			return err
		}
		if size < 6 {
			return malformed("frame %d has size %d", n, size)
		}
		if err := ctx.claim(int64(size), "frame"); err != nil {
			return err
		}
		body, err := binio.ReadBytes(br, int(size)-6)
		if err != nil {
			return err
		}
		if kind != fliFrameMagic {
			if kind != fliPrefixMagic {
				ctx.debug("skipping block", "type", kind)
			}
			continue
		}

		delay, err := frame.apply(ctx, body)
		if err != nil {
			return err
		}
		if n > 0 {
			if err := c.SetLayer(n); err != nil {
				return err
			}
		}
		if delay == 0 {
			delay = h.delay
		}
		c.SetFrameDuration(delay)
		for y := 0; y < h.height; y++ {
			drawIndexed(c, y, frame.line(y))
		}
		n++
	}
	return nil
}

// apply runs every chunk of one frame and returns the frame's own delay,
// zero when it has none.
func (f *fliFrame) apply(ctx *Context, body []byte) (int, error) {
	if len(body) < 10 {
		return 0, malformed("short frame header")
	}
	le := binary.LittleEndian
	chunks := int(le.Uint16(body[0:]))
	delay := int(le.Uint16(body[2:]))
	rd := bytes.NewReader(body[10:])
	for i := 0; i < chunks; i++ {
		size, err := binio.ReadDwordLE(rd)
		if err != nil {
			return 0, err
		}
		kind, err := binio.ReadWordLE(rd)
		if err != nil {
			return 0, err
		}
		if size < 6 {
			return 0, malformed("chunk %d has size %d", i, size)
		}
		if int64(size)-6 > int64(rd.Len()) {
			return 0, truncated("chunk %d claims %d bytes, %d left in the frame", i, size, rd.Len())
		}
		data, err := binio.ReadBytes(rd, int(size)-6)
		if err != nil {
			return 0, err
		}
		cr := bytes.NewReader(data)
		switch kind {
		case fliColor256:
			err = f.color(cr, false)
		case fliColor64:
			err = f.color(cr, true)
		case fliBlack:
			for j := range f.pix {
				f.pix[j] = 0
			}
		case fliBRun:
			err = f.brun(cr)
		case fliLC:
			err = f.lc(cr)
		case fliSS2:
			err = f.ss2(cr)
		case fliCopy:
			_, err = io.ReadFull(cr, f.pix)
		case fliPStamp:
		default:
			ctx.debug("skipping chunk", "type", kind)
		}
		if err != nil {
			return 0, err
		}
	}
	return delay, nil
}

func (f *fliFrame) color(r *bytes.Reader, six bool) error {
	packets, err := binio.ReadWordLE(r)
	if err != nil {
		return err
	}
	idx := 0
	for p := 0; p < int(packets); p++ {
		skip, err := r.ReadByte()
		if err != nil {
			return err
		}
		count, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx += int(skip)
		n := int(count)
		if n == 0 {
			n = 256
		}
		colors, err := readRGB(r, n)
		if err != nil {
			return err
		}
		for _, c := range colors {
			if idx >= len(f.palette) {
				return malformed("palette packet past entry 255")
			}
			if six {
				c = screen.RGB{R: expand6(c.R), G: expand6(c.G), B: expand6(c.B)}
			}
			f.palette[idx] = c
			idx++
		}
	}
	return nil
}

// brun decodes a full frame: positive counts repeat a byte, negative ones
// copy literals. The leading packet count is ignored, lines end on width.
func (f *fliFrame) brun(r *bytes.Reader) error {
	for y := 0; y < f.height; y++ {
		if _, err := r.ReadByte(); err != nil {
			return err
		}
		line := f.line(y)
		for x := 0; x < f.width; {
			b, err := r.ReadByte()
			if err != nil {
				return err
			}
			count := int(int8(b))
			if count >= 0 {
				v, err := r.ReadByte()
				if err != nil {
					return err
				}
				if x+count > f.width {
					return malformed("run past the end of line %d", y)
				}
				for k := 0; k < count; k++ {
					line[x] = v
					x++
				}
				continue
			}
			if x-count > f.width {
				return malformed("literal past the end of line %d", y)
			}
			if _, err := io.ReadFull(r, line[x:x-count]); err != nil {
				return err
			}
			x -= count
		}
	}
	return nil
}

// lc is the byte oriented delta of FLI files.
func (f *fliFrame) lc(r *bytes.Reader) error {
	skip, err := binio.ReadWordLE(r)
	if err != nil {
		return err
	}
	lines, err := binio.ReadWordLE(r)
	if err != nil {
		return err
	}
	if int(skip)+int(lines) > f.height {
		return malformed("delta covers lines %d to %d", skip, int(skip)+int(lines))
	}
	for y := int(skip); y < int(skip)+int(lines); y++ {
		packets, err := r.ReadByte()
		if err != nil {
			return err
		}
		line := f.line(y)
		x := 0
		for p := 0; p < int(packets); p++ {
			s, err := r.ReadByte()
			if err != nil {
				return err
			}
			b, err := r.ReadByte()
			if err != nil {
				return err
			}
			x += int(s)
			count := int(int8(b))
			if count >= 0 {
				if x+count > f.width {
					return malformed("literal past the end of line %d", y)
				}
				if _, err := io.ReadFull(r, line[x:x+count]); err != nil {
					return err
				}
				x += count
				continue
			}
			v, err := r.ReadByte()
			if err != nil {
				return err
			}
			if x-count > f.width {
				return malformed("run past the end of line %d", y)
			}
			for k := 0; k < -count; k++ {
				line[x] = v
				x++
			}
		}
	}
	return nil
}

// ss2 is the word oriented delta of FLC files.
func (f *fliFrame) ss2(r *bytes.Reader) error {
	lines, err := binio.ReadWordLE(r)
	if err != nil {
		return err
	}
	y := 0
	for l := 0; l < int(lines); l++ {
		var packets int
		for {
			w, err := binio.ReadWordLE(r)
			if err != nil {
				return err
			}
			switch w & 0xC000 {
			case 0xC000:
				y -= int(int16(w))
				continue
			case 0x8000:
				if y < f.height {
					f.line(y)[f.width-1] = uint8(w)
				}
				continue
			}
			packets = int(w)
			break
		}
		if y >= f.height {
			return malformed("delta past line %d", f.height)
		}
		line := f.line(y)
		x := 0
		for p := 0; p < packets; p++ {
			s, err := r.ReadByte()
			if err != nil {
				return err
			}
			b, err := r.ReadByte()
			if err != nil {
				return err
			}
			x += int(s)
			count := int(int8(b))
			if count >= 0 {
				if x+2*count > f.width {
					return malformed("literal past the end of line %d", y)
				}
				if _, err := io.ReadFull(r, line[x:x+2*count]); err != nil {
					return err
				}
				x += 2 * count
				continue
			}
			var pair [2]byte
			if _, err := io.ReadFull(r, pair[:]); err != nil {
				return err
			}
			if x-2*count > f.width {
				return malformed("run past the end of line %d", y)
			}
			for k := 0; k < -count; k++ {
				line[x], line[x+1] = pair[0], pair[1]
				x += 2
			}
		}
		y++
	}
	return nil
}
