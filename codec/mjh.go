package codec

import (
	"bufio"
	"io"

	"github.com/32bitkid/retrofmt/compression"
)

// MJH files hold a standard CPC screen squeezed into count / value runs,
// behind the magic, the mode and the 16 inks as hardware numbers.
const (
	mjhMagic      = "MJH"
	mjhHeaderSize = len(mjhMagic) + 1 + 16
)

type mjhCodec struct{}

func (mjhCodec) Format() Format             { return FormatMJH }
func (mjhCodec) Name() string               { return "Amstrad CPC packed screen (MJH)" }
func (mjhCodec) Extensions() []string       { return []string{"mjh"} }
func (mjhCodec) Capabilities() Capabilities { return CanLoad | CanSave | FixedSize }

func readMJHHeader(r io.Reader) (mode uint8, inks []byte, err error) {
	hdr := make([]byte, mjhHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return 0, nil, err
	}
	if string(hdr[:len(mjhMagic)]) != mjhMagic {
		return 0, nil, mismatch("no MJH magic")
	}
	if mode = hdr[3]; mode > 2 {
		return 0, nil, mismatch("mode %d", mode)
	}
	return mode, hdr[4:], nil
}

func (mjhCodec) Test(ctx *Context, r io.ReadSeeker) error {
	if _, _, err := readMJHHeader(r); err != nil {
		return err
	}
	if ctx.FileSize <= int64(mjhHeaderSize) {
		return mismatch("no screen data")
	}
	return nil
}

// Load unpacks the whole screen before drawing it, the runs ignoring the
// CRTC line order.
func (mjhCodec) Load(ctx *Context, r io.ReadSeeker) error {
	br := bufio.NewReader(r)
	mode, inks, err := readMJHHeader(br)
	if err != nil {
		return err
	}
	for i, v := range inks {
		ctx.Palette[i] = cpcInk(v)
	}
	mem := make([]byte, cpcScreenSize)
	if err := compression.UnpackCounted(br, mem); err != nil {
		return err
	}

	width, bpp, ratio := cpcGeometry(mode, scrLayout.bytesPerLine())
	if err := ctx.PreLoad(width, scrLayout.lines, ratio, bpp); err != nil {
		return err
	}
	drawCPC(ctx, mem, scrLayout, mode)
	return nil
}

func (mjhCodec) Save(ctx *Context, w io.Writer) error {
	mode, err := cpcSaveMode(ctx)
	if err != nil {
		return err
	}
	if ctx.Height != scrLayout.lines || ctx.Width != scrLayout.bytesPerLine()*pixelsPerByte(mode) {
		return unsupported("%dx%d is not a standard mode %d screen", ctx.Width, ctx.Height, mode)
	}
	mem := cpcMemory(ctx.Canvas, scrLayout, mode, cpcScreenSize, 0, 1)

	bw := bufio.NewWriter(w)
	bw.WriteString(mjhMagic)
	bw.WriteByte(mode)
	bw.Write(cpcInkBytes(&ctx.Palette, 16))
	bw.Write(compression.PackCounted(mem))
	return bw.Flush()
}
