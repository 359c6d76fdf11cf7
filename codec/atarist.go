package codec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/compression"
	"github.com/32bitkid/retrofmt/screen"
)

const (
	stWidth     = 320
	stHeight    = 200
	stPlanes    = 4
	stLineBytes = 160
	stScreen    = stLineBytes * stHeight

	pi1Size      = 2 + 32 + stScreen
	pi1EliteSize = pi1Size + 32

	neoHeaderSize = 128
	neoSize       = neoHeaderSize + stScreen
)

// stColor decodes an ST/STE palette word. The STE keeps the extra low bit
// of each component in bit 3.
func stColor(w uint16) screen.RGB {
	c := func(v uint16) uint8 {
		v &= 0x0F
		return uint8((v&7)<<1|(v>>3)&1) * 0x11
	}
	return screen.RGB{R: c(w >> 8), G: c(w >> 4), B: c(w)}
}

func stWord(c screen.RGB) uint16 {
	n := func(v uint8) uint16 {
		v >>= 4
		return uint16(v>>1 | (v&1)<<3)
	}
	return n(c.R)<<8 | n(c.G)<<4 | n(c.B)
}

func readSTPalette(buf []byte, pal *screen.Palette) {
	for i := 0; i < 16; i++ {
		pal[i] = stColor(binary.BigEndian.Uint16(buf[2*i:]))
	}
}

func writeSTPalette(w io.Writer, pal *screen.Palette) error {
	var buf [32]byte
	for i := 0; i < 16; i++ {
		binary.BigEndian.PutUint16(buf[2*i:], stWord(pal[i]))
	}
	return binio.WriteBytes(w, buf[:])
}

// drawST decodes low resolution video memory: each group of 16 pixels is
// four consecutive words, one per bitplane.
func drawST(ctx *Context, mem []byte) {
	planes := make([][]byte, stPlanes)
	px := make([]uint8, 16)
	for y := 0; y < stHeight; y++ {
		line := mem[y*stLineBytes:]
		for g := 0; g < stWidth/16; g++ {
			for p := range planes {
				o := g*8 + p*2
				planes[p] = line[o : o+2]
			}
			compression.Planes(planes, 16, px)
			for i, v := range px {
				ctx.Canvas.SetPixel(g*16+i, y, v)
			}
		}
	}
}

func encodeST(ctx *Context) ([]byte, error) {
	if ctx.Width != stWidth || ctx.Height != stHeight {
		return nil, unsupported("only %dx%d pictures, not %dx%d", stWidth, stHeight, ctx.Width, ctx.Height)
	}
	if top := maxIndex(ctx.Canvas); top > 15 {
		return nil, unsupported("index %d does not fit 16 colours", top)
	}
	mem := make([]byte, stScreen)
	row := make([]uint8, stWidth)
	planes := make([][]byte, stPlanes)
	for y := 0; y < stHeight; y++ {
		readRow(ctx.Canvas, y, row)
		line := mem[y*stLineBytes:]
		for g := 0; g < stWidth/16; g++ {
			for p := range planes {
				o := g*8 + p*2
				planes[p] = line[o : o+2]
			}
			compression.ToPlanes(row[g*16:(g+1)*16], planes)
		}
	}
	return mem, nil
}

type pi1Codec struct{}

func (pi1Codec) Format() Format             { return FormatPI1 }
func (pi1Codec) Name() string               { return "Degas low resolution" }
func (pi1Codec) Extensions() []string       { return []string{"pi1"} }
func (pi1Codec) Capabilities() Capabilities { return CanLoad | CanSave | FixedSize }

func (pi1Codec) Test(ctx *Context, r io.ReadSeeker) error {
	if ctx.FileSize != pi1Size && ctx.FileSize != pi1EliteSize {
		return mismatch("%d bytes", ctx.FileSize)
	}
	res, err := binio.ReadWordBE(r)
	if err != nil {
		return err
	}
	if res != 0 {
		return mismatch("resolution %d", res)
	}
	return nil
}

func (pi1Codec) Load(ctx *Context, r io.ReadSeeker) error {
	buf, err := binio.ReadBytes(r, pi1Size)
	if err != nil {
		return err
	}
	if res := binary.BigEndian.Uint16(buf); res != 0 {
		return unsupported("resolution %d", res)
	}
	readSTPalette(buf[2:], &ctx.Palette)
	if err := ctx.PreLoad(stWidth, stHeight, screen.PixelSimple, stPlanes); err != nil {
		return err
	}
	drawST(ctx, buf[34:])
	return nil
}

func (pi1Codec) Save(ctx *Context, w io.Writer) error {
	mem, err := encodeST(ctx)
	if err != nil {
		return err
	}
	if err := binio.WriteWordBE(w, 0); err != nil {
		return err
	}
	if err := writeSTPalette(w, &ctx.Palette); err != nil {
		return err
	}
	return binio.WriteBytes(w, mem)
}

type neoCodec struct{}

func (neoCodec) Format() Format             { return FormatNEO }
func (neoCodec) Name() string               { return "NEOchrome" }
func (neoCodec) Extensions() []string       { return []string{"neo"} }
func (neoCodec) Capabilities() Capabilities { return CanLoad | CanSave | FixedSize }

func (neoCodec) Test(ctx *Context, r io.ReadSeeker) error {
	if ctx.FileSize != neoSize {
		return mismatch("%d bytes", ctx.FileSize)
	}
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return err
	}
	if binary.BigEndian.Uint16(head[2:]) != 0 {
		return mismatch("not low resolution")
	}
	return nil
}

func (neoCodec) Load(ctx *Context, r io.ReadSeeker) error {
	buf, err := binio.ReadBytes(r, neoSize)
	if err != nil {
		return err
	}
	if res := binary.BigEndian.Uint16(buf[2:]); res != 0 {
		return unsupported("resolution %d", res)
	}
	readSTPalette(buf[4:], &ctx.Palette)
	if err := ctx.PreLoad(stWidth, stHeight, screen.PixelSimple, stPlanes); err != nil {
		return err
	}
	drawST(ctx, buf[neoHeaderSize:])
	return nil
}

func (neoCodec) Save(ctx *Context, w io.Writer) error {
	mem, err := encodeST(ctx)
	if err != nil {
		return err
	}
	var head bytes.Buffer
	binio.WriteDwordBE(&head, 0)
	writeSTPalette(&head, &ctx.Palette)
	name := []byte("        .   ")
	copy(name, "RETROFMT")
	head.Write(name)
	head.Write(make([]byte, neoHeaderSize-head.Len()))
	if err := binio.WriteBytes(w, head.Bytes()); err != nil {
		return err
	}
	return binio.WriteBytes(w, mem)
}
