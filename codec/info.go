package codec

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/compression"
	"github.com/32bitkid/retrofmt/screen"
)

// Workbench icons are a DiskObject: a big endian structure holding a
// Gadget whose render pointers, when not zero, announce the Image
// structures that follow. Drawers carry 56 more bytes of window state
// before the first image. Each image is plane after plane of 16-bit
// aligned rows. The optional second image is drawn while the icon is
// selected and loads as a second layer.
//
// Icons have no palette; the Workbench one is assumed, MagicWB's for
// eight colours or more.
const (
	infoMagic       = 0xE310
	infoVersion     = 1
	infoHeaderSize  = 78
	infoDrawerSize  = 56
	infoImageSize   = 20
	infoProject     = 4
	infoMaxDepth    = 8
	infoGadgImage   = 0x0004
	infoGadgHighImg = 0x0002
)

// DiskObject field offsets.
const (
	infoWidthAt        = 12
	infoHeightAt       = 14
	infoFlagsAt        = 16
	infoRenderAt       = 22
	infoSelectAt       = 26
	infoTypeAt         = 48
	infoDrawerAt       = 66
	infoStackAt        = 74
	infoImageWidthAt   = 4
	infoImageHeightAt  = 6
	infoImageDepthAt   = 8
	infoImageDataAt    = 10
	infoImagePlanePick = 14
)

type infoImage struct {
	width, height, depth int
}

func (im infoImage) planeSize() int { return (im.width + 15) / 16 * 2 * im.height }

type infoCodec struct{}

func (infoCodec) Format() Format             { return FormatINFO }
func (infoCodec) Name() string               { return "Amiga Workbench icon" }
func (infoCodec) Extensions() []string       { return []string{"info"} }
func (infoCodec) Capabilities() Capabilities { return CanLoad | CanSave | HasLayers }

func readInfoHeader(r io.Reader) ([]byte, error) {
	hdr := make([]byte, infoHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}
	be := binary.BigEndian
	if be.Uint16(hdr) != infoMagic || be.Uint16(hdr[2:]) != infoVersion {
		return nil, mismatch("no DiskObject magic")
	}
	if be.Uint32(hdr[infoRenderAt:]) == 0 {
		return nil, mismatch("icon without an image")
	}
	return hdr, nil
}

func readInfoImage(r io.Reader) (infoImage, error) {
	buf := make([]byte, infoImageSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return infoImage{}, err
	}
	be := binary.BigEndian
	im := infoImage{
		width:  int(int16(be.Uint16(buf[infoImageWidthAt:]))),
		height: int(int16(be.Uint16(buf[infoImageHeightAt:]))),
		depth:  int(int16(be.Uint16(buf[infoImageDepthAt:]))),
	}
	if im.width <= 0 || im.height <= 0 || im.depth <= 0 || im.depth > infoMaxDepth {
		return infoImage{}, malformed("image %dx%d, depth %d", im.width, im.height, im.depth)
	}
	return im, nil
}

func (infoCodec) Test(ctx *Context, r io.ReadSeeker) error {
	_, err := readInfoHeader(r)
	return err
}

func (infoCodec) Load(ctx *Context, r io.ReadSeeker) error {
	br := bufio.NewReader(r)
	hdr, err := readInfoHeader(br)
	if err != nil {
		return err
	}
	be := binary.BigEndian
	if be.Uint32(hdr[infoDrawerAt:]) != 0 {
		if _, err := br.Discard(infoDrawerSize); err != nil {
			return err
		}
	}
	first, err := readInfoImage(br)
	if err != nil {
		return err
	}
	if err := ctx.claim(int64(infoHeaderSize+infoImageSize+first.depth*first.planeSize()), "image"); err != nil {
		return err
	}

	ctx.Palette.Set(0, screen.Gray(1<<uint(first.depth)))
	if first.depth >= 3 {
		ctx.Palette.Set(0, screen.DefaultPalettes.MagicWB)
	} else {
		ctx.Palette.Set(0, screen.DefaultPalettes.Workbench[:1<<uint(first.depth)])
	}
	if err := ctx.PreLoad(first.width, first.height, screen.PixelTall, first.depth); err != nil {
		return err
	}
	if err := drawInfoImage(ctx.Canvas, br, first); err != nil {
		return err
	}

	if be.Uint32(hdr[infoSelectAt:]) == 0 {
		return nil
	}
	second, err := readInfoImage(br)
	if err != nil {
		return err
	}
	ctx.SetImageMode(screen.ModeLayers)
	if err := ctx.Canvas.SetLayer(1); err != nil {
		return err
	}
	if err := drawInfoImage(ctx.Canvas, br, second); err != nil {
		return err
	}
	return ctx.Canvas.SetLayer(0)
}

// drawInfoImage reads the planes of im and draws the part that fits the
// canvas.
func drawInfoImage(c screen.Canvas, r io.Reader, im infoImage) error {
	planes := make([][]byte, im.depth)
	for p := range planes {
		buf, err := binio.ReadBytes(r, im.planeSize())
		if err != nil {
			return err
		}
		planes[p] = buf
	}
	stride := (im.width + 15) / 16 * 2
	rows := make([][]byte, im.depth)
	scratch := make([]uint8, im.width)
	width := min(im.width, c.Width())
	for y := 0; y < im.height && y < c.Height(); y++ {
		for p := range rows {
			rows[p] = planes[p][y*stride : (y+1)*stride]
		}
		compression.Planes(rows, im.width, scratch)
		drawIndexed(c, y, scratch[:width])
	}
	return nil
}

// Save writes a project icon. A second layer becomes the selected image.
func (infoCodec) Save(ctx *Context, w io.Writer) error {
	if ctx.Width > 0x7FFF || ctx.Height > 0x7FFF {
		return unsupported("%dx%d is too large for an icon", ctx.Width, ctx.Height)
	}
	c := ctx.Canvas
	layers := min(c.LayerCount(), 2)
	var top uint8
	for i := 0; i < layers; i++ {
		if err := c.SetLayer(i); err != nil {
			return err
		}
		if m := maxIndex(c); m > top {
			top = m
		}
	}
	depth := int(depthFor(top, 1, 2, 3, 4, 5, 6, 7, 8))
	im := infoImage{width: ctx.Width, height: ctx.Height, depth: depth}

	be := binary.BigEndian
	hdr := make([]byte, infoHeaderSize)
	be.PutUint16(hdr, infoMagic)
	be.PutUint16(hdr[2:], infoVersion)
	be.PutUint16(hdr[infoWidthAt:], uint16(im.width))
	be.PutUint16(hdr[infoHeightAt:], uint16(im.height))
	flags := uint16(infoGadgImage)
	be.PutUint32(hdr[infoRenderAt:], 1)
	if layers > 1 {
		flags |= infoGadgHighImg
		be.PutUint32(hdr[infoSelectAt:], 1)
	}
	be.PutUint16(hdr[infoFlagsAt:], flags)
	hdr[infoTypeAt] = infoProject
	be.PutUint32(hdr[infoStackAt:], 4096)

	bw := bufio.NewWriter(w)
	bw.Write(hdr)
	for i := 0; i < layers; i++ {
		if err := c.SetLayer(i); err != nil {
			return err
		}
		bw.Write(infoImageHeader(im))
		bw.Write(infoPlanes(c, im))
	}
	if err := c.SetLayer(0); err != nil {
		return err
	}
	return bw.Flush()
}

func infoImageHeader(im infoImage) []byte {
	be := binary.BigEndian
	buf := make([]byte, infoImageSize)
	be.PutUint16(buf[infoImageWidthAt:], uint16(im.width))
	be.PutUint16(buf[infoImageHeightAt:], uint16(im.height))
	be.PutUint16(buf[infoImageDepthAt:], uint16(im.depth))
	be.PutUint32(buf[infoImageDataAt:], 1)
	buf[infoImagePlanePick] = uint8(1<<uint(im.depth) - 1)
	return buf
}

// infoPlanes returns the bitplanes of the current layer, plane after plane.
func infoPlanes(c screen.Canvas, im infoImage) []byte {
	stride := (im.width + 15) / 16 * 2
	out := make([]byte, im.depth*im.planeSize())
	rows := make([][]byte, im.depth)
	px := make([]uint8, im.width)
	for y := 0; y < im.height; y++ {
		for p := range rows {
			at := p*im.planeSize() + y*stride
			rows[p] = out[at : at+stride]
		}
		compression.ToPlanes(readRow(c, y, px), rows)
	}
	return out
}
