package codec

import (
	"io"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/screen"
)

// Mode 5 pictures are 288x256 mode 1 screens whose inks change on every
// line. Pen 0 keeps one ink for the whole picture, pens 1 and 2 take a new
// one per line and pen 3 two, switching at a byte column given per line.
// The .CM5 file holds the inks: pen 0, then for each line pen 1, pen 2,
// pen 3 left and right, the switch column and three unused bytes. The
// pixels sit line after line in a .GFX file next to it.
//
// A loaded picture is indexed by firmware colour number.
const (
	cm5Width   = 288
	cm5Lines   = 256
	cm5Stride  = cm5Width / 4
	cm5Record  = 8
	cm5Size    = 1 + cm5Lines*cm5Record
	cm5GFXSize = cm5Stride * cm5Lines
)

type cm5Codec struct{}

func (cm5Codec) Format() Format       { return FormatCM5 }
func (cm5Codec) Name() string         { return "Amstrad CPC mode 5 (CM5 + GFX)" }
func (cm5Codec) Extensions() []string { return []string{"cm5"} }
func (cm5Codec) Capabilities() Capabilities {
	return CanLoad | CanSave | FixedSize | NeedsSidecar
}

func (cm5Codec) Test(ctx *Context, r io.ReadSeeker) error {
	if ctx.FileSize != cm5Size {
		return mismatch("%d bytes", ctx.FileSize)
	}
	if _, ok := binio.FindSidecar(ctx.FileName, "gfx"); !ok {
		return mismatch("no .GFX file")
	}
	return nil
}

func (cm5Codec) Load(ctx *Context, r io.ReadSeeker) error {
	inks, err := binio.ReadBytes(r, cm5Size)
	if err != nil {
		return err
	}
	path, ok := binio.FindSidecar(ctx.FileName, "gfx")
	if !ok {
		return malformed("no .GFX file")
	}
	gfx, err := readWholeFile(path, cm5GFXSize+amsdosHeaderSize)
	if err != nil {
		return err
	}
	if gfx = stripAMSDOS(gfx); len(gfx) != cm5GFXSize {
		return malformed("%s holds %d bytes", path, len(gfx))
	}

	ctx.Palette.Set(0, cpcFirmwarePalette()[:27])
	if err := ctx.PreLoad(cm5Width, cm5Lines, screen.PixelSimple, 5); err != nil {
		return err
	}
	c := ctx.Canvas
	pen0 := cpcFirmwareOf(inks[0])
	px := make([]uint8, 0, 4)
	for y := 0; y < cm5Lines; y++ {
		rec := inks[1+y*cm5Record:]
		for col, b := range gfx[y*cm5Stride : (y+1)*cm5Stride] {
			for i, pen := range cpcPixels(1, b, px[:0]) {
				ink := pen0
				switch pen {
				case 1, 2:
					ink = cpcFirmwareOf(rec[pen-1])
				case 3:
					ink = cpcFirmwareOf(rec[3])
					if col < int(rec[4]) {
						ink = cpcFirmwareOf(rec[2])
					}
				}
				c.SetPixel(col*4+i, y, ink)
			}
		}
	}
	return nil
}

// Save gives pen 0 the most used colour and shares the others out per
// line. A line needing more than four other colours, or four that no
// switch column separates, cannot be stored.
func (cm5Codec) Save(ctx *Context, w io.Writer) error {
	if ctx.Width != cm5Width || ctx.Height != cm5Lines {
		return unsupported("%dx%d, mode 5 pictures are %dx%d", ctx.Width, ctx.Height, cm5Width, cm5Lines)
	}
	if top := maxIndex(ctx.Canvas); top >= 27 {
		return unsupported("index %d is not a firmware colour", top)
	}
	path, err := cpcSidecarPath(ctx, "gfx")
	if err != nil {
		return err
	}

	rows := make([][]uint8, cm5Lines)
	var used [27]int
	for y := range rows {
		rows[y] = readRow(ctx.Canvas, y, make([]uint8, cm5Width))
		for _, v := range rows[y] {
			used[v]++
		}
	}
	var pen0 uint8
	for v, n := range used {
		if n > used[pen0] {
			pen0 = uint8(v)
		}
	}

	inks := make([]byte, 1, cm5Size)
	inks[0] = 0x40 | cpcHardwareOf(pen0)
	gfx := make([]byte, 0, cm5GFXSize)
	for y, row := range rows {
		rec, pens, err := cm5Line(row, pen0)
		if err != nil {
			return unsupported("line %d: %v", y, err)
		}
		inks = append(inks, rec[:]...)
		for col := 0; col < cm5Stride; col++ {
			gfx = append(gfx, cpcByte(1, pens[col*4:col*4+4]))
		}
	}
	ctx.stage(path, gfx)
	return binio.WriteBytes(w, inks)
}

// cm5Line assigns the colours of one line to pens 1 to 3 and returns the
// line's ink record with the pen of every pixel.
func cm5Line(row []uint8, pen0 uint8) (rec [cm5Record]byte, pens []uint8, err error) {
	var first, last [27]int
	var colors []uint8
	for x, v := range row {
		if v == pen0 {
			continue
		}
		if !containsInk(colors, v) {
			first[v] = x
			colors = append(colors, v)
		}
		last[v] = x
	}

	// pen 1, pen 2, pen 3 left and right
	ink := [4]uint8{pen0, pen0, pen0, pen0}
	split := cm5Stride
	switch n := len(colors); {
	case n > 4:
		return rec, nil, mismatch("%d colours besides pen 0", n)
	case n == 4:
		found := false
	search:
		for _, left := range colors {
			for _, right := range colors {
				if left == right || last[left]/4 >= first[right]/4 {
					continue
				}
				ink[2], ink[3], split = left, right, first[right]/4
				k := 0
				for _, v := range colors {
					if v != left && v != right {
						ink[k] = v
						k++
					}
				}
				found = true
				break search
			}
		}
		if !found {
			return rec, nil, mismatch("no switch column separates its colours")
		}
	default:
		copy(ink[:], colors)
		ink[3] = ink[2]
	}

	for i, v := range ink {
		rec[i] = 0x40 | cpcHardwareOf(v)
	}
	rec[4] = uint8(split)

	pens = make([]uint8, len(row))
	for x, v := range row {
		switch v {
		case pen0:
			pens[x] = 0
		case ink[0]:
			pens[x] = 1
		case ink[1]:
			pens[x] = 2
		default:
			pens[x] = 3
		}
	}
	return rec, pens, nil
}

func containsInk(inks []uint8, v uint8) bool {
	for _, c := range inks {
		if c == v {
			return true
		}
	}
	return false
}
