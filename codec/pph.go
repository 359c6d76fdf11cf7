package codec

import (
	"encoding/binary"
	"io"

	"github.com/32bitkid/retrofmt/binio"
)

// Perfect Pix pictures are interlaced over two CPC screens: the .EVE file
// holds the even lines and the .ODD file the odd ones, each a memory dump
// laid out by the CRTC. The .PPH file itself is a header: the mode, the
// width and height in pixels, then 16 inks as hardware numbers.
const pphHeaderSize = 5 + 16

var pphFields = [2]string{"eve", "odd"}

type pphHeader struct {
	mode          uint8
	width, height int
	inks          []byte
}

// field returns the registers and memory size of one of the two screens.
func (h *pphHeader) field() (crtc, int, error) {
	return cpcScreenFor(h.width/pixelsPerByte(h.mode), h.height/2)
}

func readPPHHeader(r io.Reader) (*pphHeader, error) {
	buf := make([]byte, pphHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	h := &pphHeader{
		mode:   buf[0],
		width:  int(le.Uint16(buf[1:])),
		height: int(le.Uint16(buf[3:])),
		inks:   buf[5:],
	}
	if h.mode > 2 {
		return nil, mismatch("mode %d", h.mode)
	}
	if h.width == 0 || h.width%pixelsPerByte(h.mode) != 0 {
		return nil, mismatch("width %d in mode %d", h.width, h.mode)
	}
	if h.height == 0 || h.height%2 != 0 {
		return nil, mismatch("height %d", h.height)
	}
	return h, nil
}

type pphCodec struct{}

func (pphCodec) Format() Format       { return FormatPPH }
func (pphCodec) Name() string         { return "Amstrad CPC Perfect Pix (PPH + ODD/EVE)" }
func (pphCodec) Extensions() []string { return []string{"pph"} }
func (pphCodec) Capabilities() Capabilities {
	return CanLoad | CanSave | NeedsSidecar
}

func (pphCodec) Test(ctx *Context, r io.ReadSeeker) error {
	if ctx.Ext() != "pph" || ctx.FileSize != pphHeaderSize {
		return mismatch("not a Perfect Pix header")
	}
	h, err := readPPHHeader(r)
	if err != nil {
		return err
	}
	if _, _, err := h.field(); err != nil {
		return mismatch("%v", err)
	}
	for _, ext := range pphFields {
		if _, ok := binio.FindSidecar(ctx.FileName, ext); !ok {
			return mismatch("no .%s file", ext)
		}
	}
	return nil
}

func (pphCodec) Load(ctx *Context, r io.ReadSeeker) error {
	h, err := readPPHHeader(r)
	if err != nil {
		return err
	}
	regs, size, err := h.field()
	if err != nil {
		return err
	}
	l := regs.layout()

	fields := make([][]byte, len(pphFields))
	for i, ext := range pphFields {
		path, ok := binio.FindSidecar(ctx.FileName, ext)
		if !ok {
			return malformed("no .%s file", ext)
		}
		buf, err := readWholeFile(path, int64(size+amsdosHeaderSize))
		if err != nil {
			return err
		}
		if fields[i] = stripAMSDOS(buf); len(fields[i]) != size {
			return malformed("%s holds %d bytes, the screen needs %d", path, len(fields[i]), size)
		}
	}

	for i, v := range h.inks {
		ctx.Palette[i] = cpcInk(v)
	}
	_, bpp, ratio := cpcGeometry(h.mode, l.bytesPerLine())
	if err := ctx.PreLoad(h.width, h.height, ratio, bpp); err != nil {
		return err
	}
	for i, mem := range fields {
		drawCPCLines(ctx.Canvas, mem, l, h.mode, i, 2)
	}
	return nil
}

func (pphCodec) Save(ctx *Context, w io.Writer) error {
	mode, err := cpcSaveMode(ctx)
	if err != nil {
		return err
	}
	if ctx.Width > 0xFFFF || ctx.Height%2 != 0 {
		return unsupported("%dx%d cannot be split in two fields", ctx.Width, ctx.Height)
	}
	h := &pphHeader{mode: mode, width: ctx.Width, height: ctx.Height, inks: cpcInkBytes(&ctx.Palette, 16)}
	regs, size, err := h.field()
	if err != nil {
		return err
	}
	l := regs.layout()

	for i, ext := range pphFields {
		path, err := cpcSidecarPath(ctx, ext)
		if err != nil {
			return err
		}
		ctx.stage(path, cpcMemory(ctx.Canvas, l, mode, size, i, 2))
	}

	hdr := make([]byte, 5, pphHeaderSize)
	hdr[0] = mode
	binary.LittleEndian.PutUint16(hdr[1:], uint16(h.width))
	binary.LittleEndian.PutUint16(hdr[3:], uint16(h.height))
	return binio.WriteBytes(w, append(hdr, h.inks...))
}
