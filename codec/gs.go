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
	gsMode640   = 0x80
	gsMaxFile   = 4 << 20
	gsTableSize = 16
)

// gsBlock is one length-prefixed block of an Apple Preferred Format file.
type gsBlock struct {
	name string
	data []byte
}

// walkGSBlocks splits buf into blocks. Every length must land inside the
// file and the last one must end exactly at its end.
func walkGSBlocks(buf []byte) ([]gsBlock, error) {
	var blocks []gsBlock
	for pos := 0; pos < len(buf); {
		if len(buf)-pos < 5 {
			return nil, mismatch("trailing bytes after the last block")
		}
		size := int(binary.LittleEndian.Uint32(buf[pos:]))
		nameLen := int(buf[pos+4])
		if size < 5+nameLen || size > len(buf)-pos {
			return nil, mismatch("block at %d has bad length %d", pos, size)
		}
		blocks = append(blocks, gsBlock{
			name: string(buf[pos+5 : pos+5+nameLen]),
			data: buf[pos+5+nameLen : pos+size],
		})
		pos += size
	}
	return blocks, nil
}

func gsColor(v uint16) screen.RGB {
	return screen.RGB{
		R: uint8(v>>8&0xF) * 0x11,
		G: uint8(v>>4&0xF) * 0x11,
		B: uint8(v&0xF) * 0x11,
	}
}

func gsEntry(c screen.RGB) uint16 {
	return uint16(c.R>>4)<<8 | uint16(c.G>>4)<<4 | uint16(c.B>>4)
}

// gsWriter turns unpacked scan line bytes into pixels. In 320 mode each
// nibble is a colour of the line's table; in 640 mode each pair of bits
// picks one of four colours from a quarter of the table that depends on
// the pixel's position in its byte.
type gsWriter struct {
	canvas screen.Canvas
	width  int
	// multi holds one palette per scan line; pixels then become true colour.
	multi [][]screen.RGB
}

func (gw *gsWriter) line(y int, mode uint16, src []byte) {
	table := int(mode & 0x0F)
	for x := 0; x < gw.width; x++ {
		var v uint8
		if mode&gsMode640 != 0 {
			b := src[x/4]
			shift := uint(6 - 2*(x&3))
			v = uint8(((x+2)&3)*4) + (b>>shift)&3
		} else {
			b := src[x/2]
			if x&1 == 0 {
				v = b >> 4
			} else {
				v = b & 0x0F
			}
		}
		if gw.multi != nil && y < len(gw.multi) {
			c := gw.multi[y][v]
			gw.canvas.SetPixelRGB(x, y, c.R, c.G, c.B)
			continue
		}
		gw.canvas.SetPixel(x, y, uint8(table*gsTableSize)+v)
	}
}

func (gw *gsWriter) lineBytes(mode uint16) int {
	if mode&gsMode640 != 0 {
		return (gw.width + 3) / 4
	}
	return (gw.width + 1) / 2
}

type gsCodec struct{}

func (gsCodec) Format() Format             { return Format2GS }
func (gsCodec) Name() string               { return "Apple IIgs preferred format" }
func (gsCodec) Extensions() []string       { return []string{"2gs", "shr", "apf"} }
func (gsCodec) Capabilities() Capabilities { return CanLoad | CanSave }

func readGSBlocks(ctx *Context, r io.Reader) ([]gsBlock, error) {
	if ctx.FileSize < 5 || ctx.FileSize > gsMaxFile {
		return nil, mismatch("implausible size %d", ctx.FileSize)
	}
	buf, err := binio.ReadBytes(r, int(ctx.FileSize))
	if err != nil {
		return nil, err
	}
	blocks, err := walkGSBlocks(buf)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		if b.name == "MAIN" {
			return blocks, nil
		}
	}
	return nil, mismatch("no MAIN block")
}

func (gsCodec) Test(ctx *Context, r io.ReadSeeker) error {
	_, err := readGSBlocks(ctx, r)
	return err
}

func (gsCodec) Load(ctx *Context, r io.ReadSeeker) error {
	blocks, err := readGSBlocks(ctx, r)
	if err != nil {
		return err
	}
	var main []byte
	var multi [][]screen.RGB
	for _, b := range blocks {
		switch b.name {
		case "MAIN":
			if main == nil {
				main = b.data
			}
		case "MULTIPAL":
			if multi, err = parseMultipal(b.data); err != nil {
				return err
			}
		case "NOTE":
			ctx.SetComment(parseGSNote(b.data))
		default:
			ctx.debug("skipping block", "name", b.name, "size", len(b.data))
		}
	}
	return loadGSMain(ctx, main, multi)
}

func parseMultipal(data []byte) ([][]screen.RGB, error) {
	rd := bytes.NewReader(data)
	n, err := binio.ReadWordLE(rd)
	if err != nil {
		return nil, err
	}
	out := make([][]screen.RGB, n)
	for i := range out {
		out[i] = make([]screen.RGB, gsTableSize)
		for j := range out[i] {
			v, err := binio.ReadWordLE(rd)
			if err != nil {
				return nil, err
			}
			out[i][j] = gsColor(v)
		}
	}
	return out, nil
}

func parseGSNote(data []byte) string {
	if len(data) >= 2 {
		if n := int(binary.LittleEndian.Uint16(data)); n <= len(data)-2 {
			return string(data[2 : 2+n])
		}
	}
	return string(data)
}

func loadGSMain(ctx *Context, data []byte, multi [][]screen.RGB) error {
	rd := bytes.NewReader(data)
	word := func() (uint16, error) { return binio.ReadWordLE(rd) }

	master, err := word()
	if err != nil {
		return err
	}
	width, err := word()
	if err != nil {
		return err
	}
	tables, err := word()
	if err != nil {
		return err
	}
	if tables > 16 {
		return malformed("%d colour tables", tables)
	}
	for t := 0; t < int(tables); t++ {
		for e := 0; e < gsTableSize; e++ {
			v, err := word()
			if err != nil {
				return err
			}
			ctx.Palette[t*gsTableSize+e] = gsColor(v)
		}
	}
	lines, err := word()
	if err != nil {
		return err
	}
	if width == 0 || lines == 0 {
		return malformed("empty picture %dx%d", width, lines)
	}

	type dirEntry struct{ packed, mode uint16 }
	dir := make([]dirEntry, lines)
	for i := range dir {
		if dir[i].packed, err = word(); err != nil {
			return err
		}
		if dir[i].mode, err = word(); err != nil {
			return err
		}
	}

	ratio := screen.PixelSimple
	if master&gsMode640 != 0 {
		ratio = screen.PixelTall
	}
	bpp := 4
	if multi != nil {
		bpp = 24
	}
	if err := ctx.PreLoad(int(width), int(lines), ratio, bpp); err != nil {
		return err
	}

	gw := &gsWriter{canvas: ctx.Canvas, width: int(width), multi: multi}
	for y, d := range dir {
		packed, err := binio.ReadBytes(rd, int(d.packed))
		if err != nil {
			return err
		}
		line := make([]byte, gw.lineBytes(d.mode))
		if err := compression.UnpackBytes(bytes.NewReader(packed), line); err != nil {
			return err
		}
		gw.line(y, d.mode, line)
	}
	return nil
}

// Save writes 320 mode lines. Every line has to stay inside one sixteen
// colour table; the table is the high nibble of its indices.
func (gsCodec) Save(ctx *Context, w io.Writer) error {
	c := ctx.Canvas
	width, height := ctx.Width, ctx.Height
	if width > 0xFFFF || height > 0xFFFF {
		return unsupported("%dx%d is too large", width, height)
	}

	row := make([]uint8, width)
	packedLines := make([][]byte, height)
	modes := make([]uint16, height)
	tables := 1
	for y := 0; y < height; y++ {
		readRow(c, y, row)
		table := row[0] >> 4
		line := make([]byte, (width+1)/2)
		for x, v := range row {
			if v>>4 != table {
				return unsupported("line %d mixes colour tables %d and %d", y, table, v>>4)
			}
			if x&1 == 0 {
				line[x/2] = (v & 0x0F) << 4
			} else {
				line[x/2] |= v & 0x0F
			}
		}
		if int(table)+1 > tables {
			tables = int(table) + 1
		}
		modes[y] = uint16(table)
		packedLines[y] = compression.PackBytes(line)
		if len(packedLines[y]) > 0xFFFF {
			return unsupported("line %d packs to %d bytes", y, len(packedLines[y]))
		}
	}

	var main bytes.Buffer
	binio.WriteWordLE(&main, 0)
	binio.WriteWordLE(&main, uint16(width))
	binio.WriteWordLE(&main, uint16(tables))
	for i := 0; i < tables*gsTableSize; i++ {
		binio.WriteWordLE(&main, gsEntry(ctx.Palette[i]))
	}
	binio.WriteWordLE(&main, uint16(height))
	for y := range packedLines {
		binio.WriteWordLE(&main, uint16(len(packedLines[y])))
		binio.WriteWordLE(&main, modes[y])
	}
	for _, p := range packedLines {
		main.Write(p)
	}

	if err := writeGSBlock(w, "MAIN", main.Bytes()); err != nil {
		return err
	}
	if ctx.Comment == "" {
		return nil
	}
	var note bytes.Buffer
	binio.WriteWordLE(&note, uint16(len(ctx.Comment)))
	note.WriteString(ctx.Comment)
	return writeGSBlock(w, "NOTE", note.Bytes())
}

func writeGSBlock(w io.Writer, name string, data []byte) error {
	var hdr bytes.Buffer
	binio.WriteDwordLE(&hdr, uint32(5+len(name)+len(data)))
	hdr.WriteByte(uint8(len(name)))
	hdr.WriteString(name)
	if err := binio.WriteBytes(w, hdr.Bytes()); err != nil {
		return err
	}
	return binio.WriteBytes(w, data)
}
