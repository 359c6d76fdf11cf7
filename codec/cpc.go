package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/screen"
)

const (
	amsdosHeaderSize = 128
	cpcScreenSize    = 0x4000
	cpcOverscanSize  = 2 * cpcScreenSize
	cpcMinScreen     = 16000
	cpcLines         = 200

	ocpPaletteSize = 239
	ocpInkStride   = 12

	gosLines  = 272
	kitColors = 16

	// Overscan dumps may keep their CRTC registers in a record at the end
	// of the window: the magic, then R1, R6, R12 and R13.
	crtcMagic  = "CRTC"
	crtcRecord = cpcOverscanSize - 16
)

var (
	cpcStandard = crtc{r1: 40, r6: cpcLines / 8, r12: 0x30}
	cpcOverscan = crtc{r1: 48, r6: gosLines / 8, r12: 0x2C}
)

// cpcHardware maps hardware colour numbers to firmware colours.
var cpcHardware = [32]uint8{
	13, 13, 19, 25, 1, 7, 10, 16,
	7, 25, 24, 26, 6, 8, 15, 17,
	1, 19, 18, 20, 0, 2, 9, 11,
	4, 22, 21, 23, 3, 5, 12, 14,
}

// cpcDefaultInks is the firmware palette after a reset. The two flashing
// pens keep their first colour.
var cpcDefaultInks = [16]uint8{1, 24, 20, 6, 26, 0, 2, 8, 10, 12, 14, 16, 18, 22, 1, 16}

// cpcFirmware returns firmware colour n: 9*G + 3*R + B, each gun off, half
// or full.
func cpcFirmware(n uint8) screen.RGB {
	level := [3]uint8{0x00, 0x80, 0xFF}
	return screen.RGB{R: level[n/3%3], G: level[n/9%3], B: level[n%3]}
}

func cpcFirmwarePalette() *screen.Palette {
	var p screen.Palette
	for i := uint8(0); i < 27; i++ {
		p[i] = cpcFirmware(i)
	}
	return &p
}

// cpcHardwareOf is the inverse of cpcHardware, taking the first match.
func cpcHardwareOf(fw uint8) uint8 {
	for hw, v := range cpcHardware {
		if v == fw {
			return uint8(hw)
		}
	}
	return 0x14
}

func cpcInk(v uint8) screen.RGB {
	return cpcFirmware(cpcFirmwareOf(v))
}

// amsdosChecksum is the sum of the first 67 header bytes.
func amsdosChecksum(hdr []byte) uint16 {
	var sum uint16
	for _, b := range hdr[:67] {
		sum += uint16(b)
	}
	return sum
}

func hasAMSDOS(buf []byte) bool {
	if len(buf) < amsdosHeaderSize {
		return false
	}
	sum := amsdosChecksum(buf)
	return sum != 0 && sum == binary.LittleEndian.Uint16(buf[67:])
}

// stripAMSDOS drops a valid disc header from buf.
func stripAMSDOS(buf []byte) []byte {
	if hasAMSDOS(buf) {
		return buf[amsdosHeaderSize:]
	}
	return buf
}

func amsdosHeader(name string, load uint16, length int) []byte {
	hdr := make([]byte, amsdosHeaderSize)
	base := []byte(name)
	for i := 0; i < 11; i++ {
		hdr[1+i] = ' '
		if i < len(base) {
			hdr[1+i] = base[i]
		}
	}
	hdr[18] = 2
	binary.LittleEndian.PutUint16(hdr[21:], load)
	binary.LittleEndian.PutUint16(hdr[24:], uint16(length))
	hdr[64] = uint8(length)
	hdr[65] = uint8(length >> 8)
	hdr[66] = uint8(length >> 16)
	binary.LittleEndian.PutUint16(hdr[67:], amsdosChecksum(hdr))
	return hdr
}

// crtc holds the CRTC registers that shape a screen: R1 is the displayed
// width in words, R6 the height in character rows and R12/R13 the start
// address. Bits 12-13 of the start select the 16K page.
type crtc struct {
	r1, r6   int
	r12, r13 uint8
}

func (c crtc) layout() cpcLayout {
	start := (int(c.r12)<<8 | int(c.r13)) & 0x3FFF
	return cpcLayout{start: start, r1: c.r1, base: (start & 0x3000) << 2, lines: c.r6 * 8}
}

func (c crtc) record() []byte {
	rec := make([]byte, cpcOverscanSize-crtcRecord)
	copy(rec, crtcMagic)
	rec[4], rec[5], rec[6], rec[7] = uint8(c.r1), uint8(c.r6), c.r12, c.r13
	return rec
}

// cpcScreenFor picks the registers for bytesPerLine by lines: a standard
// 16K screen when the picture fits one, overscan across two pages
// otherwise. It also returns the size of the memory window.
func cpcScreenFor(bytesPerLine, lines int) (crtc, int, error) {
	if bytesPerLine <= 0 || bytesPerLine%2 != 0 || lines <= 0 || lines%8 != 0 {
		return crtc{}, 0, unsupported("%d bytes by %d lines is not a CRTC screen", bytesPerLine, lines)
	}
	r1, r6 := bytesPerLine/2, lines/8
	if r1 > 0xFF || r6 > 0x7F {
		return crtc{}, 0, unsupported("%d bytes by %d lines is too large", bytesPerLine, lines)
	}
	if std := (crtc{r1: r1, r6: r6, r12: 0x30}); std.layout().fits(cpcScreenSize) {
		return std, cpcScreenSize, nil
	}
	if over := (crtc{r1: r1, r6: r6, r12: 0x2C}); over.layout().fits(crtcRecord) {
		return over, cpcOverscanSize, nil
	}
	return crtc{}, 0, unsupported("%d bytes by %d lines needs more than 32K", bytesPerLine, lines)
}

// cpcLayout describes how the CRTC walks video memory.
type cpcLayout struct {
	start int
	r1    int
	base  int
	lines int
}

// offset is where byte col of line y lives, relative to base. Bits 12-13
// of the memory address select the 16K page, so crossing them carries
// into the next page.
func (l cpcLayout) offset(y, col int) int {
	ma := l.start + (y/8)*l.r1 + col/2
	addr := (ma&0x3000)<<2 | (y&7)<<11 | (ma&0x3FF)<<1 | col&1
	return addr - l.base
}

func (l cpcLayout) bytesPerLine() int { return 2 * l.r1 }

// fits reports whether every byte of the picture has an address of its
// own below limit.
func (l cpcLayout) fits(limit int) bool {
	used := make([]bool, limit)
	for y := 0; y < l.lines; y++ {
		for col := 0; col < l.bytesPerLine(); col++ {
			o := l.offset(y, col)
			if o < 0 || o >= limit || used[o] {
				return false
			}
			used[o] = true
		}
	}
	return true
}

func cpcGeometry(mode uint8, bytesPerLine int) (width, bpp int, ratio screen.PixelRatio) {
	switch mode {
	case 0:
		return bytesPerLine * 2, 4, screen.PixelWide
	case 2:
		return bytesPerLine * 8, 1, screen.PixelTall
	}
	return bytesPerLine * 4, 2, screen.PixelSimple
}

// cpcPixels splits one video byte into its pixels.
func cpcPixels(mode uint8, b uint8, dst []uint8) []uint8 {
	bit := func(n uint) uint8 { return b >> n & 1 }
	switch mode {
	case 0:
		return append(dst,
			bit(7)|bit(3)<<1|bit(5)<<2|bit(1)<<3,
			bit(6)|bit(2)<<1|bit(4)<<2|bit(0)<<3,
		)
	case 2:
		for n := 7; n >= 0; n-- {
			dst = append(dst, bit(uint(n)))
		}
		return dst
	}
	for p := uint(0); p < 4; p++ {
		dst = append(dst, bit(7-p)|bit(3-p)<<1)
	}
	return dst
}

// cpcByte is the inverse of cpcPixels.
func cpcByte(mode uint8, px []uint8) uint8 {
	var b uint8
	set := func(v uint8, n uint) { b |= (v & 1) << n }
	switch mode {
	case 0:
		a, c := px[0], px[1]
		set(a, 7)
		set(a>>1, 3)
		set(a>>2, 5)
		set(a>>3, 1)
		set(c, 6)
		set(c>>1, 2)
		set(c>>2, 4)
		set(c>>3, 0)
	case 2:
		for i, v := range px[:8] {
			set(v, uint(7-i))
		}
	default:
		for p, v := range px[:4] {
			set(v, uint(7-p))
			set(v>>1, uint(3-p))
		}
	}
	return b
}

func pixelsPerByte(mode uint8) int {
	switch mode {
	case 0:
		return 2
	case 2:
		return 8
	}
	return 4
}

func drawCPC(ctx *Context, mem []byte, l cpcLayout, mode uint8) {
	drawCPCLines(ctx.Canvas, mem, l, mode, 0, 1)
}

// drawCPCLines draws line n of the layout on canvas row first+n*step.
func drawCPCLines(c screen.Canvas, mem []byte, l cpcLayout, mode uint8, first, step int) {
	px := make([]uint8, 0, 8)
	for line := 0; line < l.lines; line++ {
		y, x := first+line*step, 0
		for col := 0; col < l.bytesPerLine(); col++ {
			var b uint8
			if o := l.offset(line, col); o >= 0 && o < len(mem) {
				b = mem[o]
			}
			for _, v := range cpcPixels(mode, b, px[:0]) {
				c.SetPixel(x, y, v)
				x++
			}
		}
	}
}

// cpcMemory is the inverse of drawCPCLines: a size byte window holding
// canvas rows first, first+step and so on.
func cpcMemory(c screen.Canvas, l cpcLayout, mode uint8, size, first, step int) []byte {
	mem := make([]byte, size)
	n := pixelsPerByte(mode)
	row := make([]uint8, l.bytesPerLine()*n)
	for line := 0; line < l.lines; line++ {
		readRow(c, first+line*step, row)
		for col := 0; col < l.bytesPerLine(); col++ {
			mem[l.offset(line, col)] = cpcByte(mode, row[col*n:(col+1)*n])
		}
	}
	return mem
}

// cpcSaveMode picks the video mode of a picture: from the width of a
// standard screen, otherwise from its pixel ratio.
func cpcSaveMode(ctx *Context) (uint8, error) {
	mode := uint8(1)
	switch std := ctx.Height == cpcLines; {
	case std && ctx.Width == 160:
		mode = 0
	case std && ctx.Width == 640:
		mode = 2
	case std && ctx.Width == 320:
	case ctx.Ratio == screen.PixelWide:
		mode = 0
	case ctx.Ratio == screen.PixelTall:
		mode = 2
	}
	n := pixelsPerByte(mode)
	if ctx.Width%n != 0 {
		return 0, unsupported("width %d is not a whole number of mode %d bytes", ctx.Width, mode)
	}
	if top := maxIndex(ctx.Canvas); int(top) >= 1<<uint(8/n) {
		return 0, unsupported("index %d does not exist in mode %d", top, mode)
	}
	return mode, nil
}

// cpcFirmwareOf decodes a palette byte that holds either a firmware colour
// or a hardware number with bit 6 set.
func cpcFirmwareOf(v uint8) uint8 {
	if v >= 0x40 {
		return cpcHardware[v&0x1F]
	}
	if v > 26 {
		return 0
	}
	return v
}

// cpcInkBytes encodes the first n palette entries as hardware numbers.
func cpcInkBytes(pal *screen.Palette, n int) []byte {
	fw := cpcFirmwarePalette()
	out := make([]byte, n)
	for i := range out {
		out[i] = 0x40 | cpcHardwareOf(fw.Nearest(pal[i], 27))
	}
	return out
}

// cpcSidecarPath is where a companion of the saved file goes: an existing
// file of that extension, whatever its case, or a new lower case one.
func cpcSidecarPath(ctx *Context, ext string) (string, error) {
	if ctx.FileName == "" {
		return "", unsupported("a file name is needed to place the .%s file", ext)
	}
	if existing, ok := binio.FindSidecar(ctx.FileName, ext); ok {
		return existing, nil
	}
	return binio.SwapExt(ctx.FileName, ext), nil
}

func readWholeFile(path string, max int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, max))
}

// ocpPalette parses an OCP Art Studio palette: mode, two animation bytes,
// then 12 bytes per pen of which the first is the displayed ink.
func ocpPalette(buf []byte) (mode uint8, inks [16]screen.RGB, err error) {
	buf = stripAMSDOS(buf)
	if len(buf) < ocpPaletteSize {
		return 0, inks, malformed("palette file is %d bytes", len(buf))
	}
	mode = buf[0]
	if mode > 2 {
		return 0, inks, malformed("palette for mode %d", mode)
	}
	for i := range inks {
		inks[i] = cpcInk(buf[3+ocpInkStride*i])
	}
	return mode, inks, nil
}

func writeOCPPalette(w io.Writer, mode uint8, pal *screen.Palette) error {
	inks := cpcInkBytes(pal, 16)
	buf := make([]byte, ocpPaletteSize)
	buf[0] = mode
	for pen := 0; pen < 17; pen++ {
		// the border pen copies pen 0
		ink := inks[pen%16]
		for k := 0; k < ocpInkStride; k++ {
			buf[3+ocpInkStride*pen+k] = ink
		}
	}
	return binio.WriteBytes(w, buf)
}

type scrCodec struct{}

func (scrCodec) Format() Format       { return FormatSCR }
func (scrCodec) Name() string         { return "Amstrad CPC screen" }
func (scrCodec) Extensions() []string { return []string{"scr", "win"} }
func (scrCodec) Capabilities() Capabilities {
	return CanLoad | CanSave | FixedSize | NeedsSidecar
}

var scrLayout = cpcStandard.layout()

// readSCR returns the video memory of a standard screen, or of a 32K
// overscan one.
func readSCR(ctx *Context, r io.Reader) ([]byte, error) {
	if ctx.FileSize > cpcOverscanSize+amsdosHeaderSize {
		return nil, mismatch("too large for a screen dump")
	}
	buf, err := binio.ReadBytes(r, int(ctx.FileSize))
	if err != nil {
		return nil, err
	}
	data := stripAMSDOS(buf)
	if len(data) != cpcOverscanSize && (len(data) < cpcMinScreen || len(data) > cpcScreenSize) {
		return nil, mismatch("%d bytes of screen data", len(data))
	}
	return data, nil
}

// scrRegisters returns the CRTC setup a dump was taken with. Overscan
// dumps without a register record get the usual 384x272 overscan.
func scrRegisters(mem []byte) (crtc, error) {
	if len(mem) <= cpcScreenSize {
		return cpcStandard, nil
	}
	regs := cpcOverscan
	if rec := mem[crtcRecord:]; string(rec[:4]) == crtcMagic {
		regs = crtc{r1: int(rec[4]), r6: int(rec[5]), r12: rec[6], r13: rec[7]}
	}
	if regs.r1 == 0 || regs.r6 == 0 || !regs.layout().fits(crtcRecord) {
		return crtc{}, malformed("R1=%d R6=%d do not fit the dump", regs.r1, regs.r6)
	}
	return regs, nil
}

// Test accepts raw dumps only when an OCP palette sits next to them.
func (scrCodec) Test(ctx *Context, r io.ReadSeeker) error {
	buf, err := readSCR(ctx, r)
	if err != nil {
		return err
	}
	if len(buf) == int(ctx.FileSize) {
		if _, ok := binio.FindSidecar(ctx.FileName, "pal"); !ok {
			return mismatch("raw screen without a palette file")
		}
	}
	return nil
}

func (scrCodec) Load(ctx *Context, r io.ReadSeeker) error {
	mem, err := readSCR(ctx, r)
	if err != nil {
		return err
	}

	mode := uint8(1)
	for i, ink := range cpcDefaultInks {
		ctx.Palette[i] = cpcFirmware(ink)
	}
	if path, ok := binio.FindSidecar(ctx.FileName, "pal"); ok {
		buf, err := readWholeFile(path, ocpPaletteSize+amsdosHeaderSize)
		if err != nil {
			return err
		}
		var inks [16]screen.RGB
		if mode, inks, err = ocpPalette(buf); err != nil {
			return err
		}
		ctx.Palette.Set(0, inks[:])
		ctx.debug("palette sidecar", "path", path, "mode", mode)
	} else {
		ctx.warn("no palette file, using firmware defaults")
	}

	regs, err := scrRegisters(mem)
	if err != nil {
		return err
	}
	l := regs.layout()
	width, bpp, ratio := cpcGeometry(mode, l.bytesPerLine())
	if err := ctx.PreLoad(width, l.lines, ratio, bpp); err != nil {
		return err
	}
	drawCPC(ctx, mem, l, mode)
	return nil
}

// Save writes the screen with a disc header. A 160, 320 or 640 by 200
// picture is a standard screen in mode 0, 1 or 2; anything else becomes
// overscan with its registers recorded. The palette goes to an OCP file
// next to FileName when there is one.
func (scrCodec) Save(ctx *Context, w io.Writer) error {
	mode, err := cpcSaveMode(ctx)
	if err != nil {
		return err
	}
	regs, size, err := cpcScreenFor(ctx.Width/pixelsPerByte(mode), ctx.Height)
	if err != nil {
		return err
	}
	if size == cpcScreenSize && regs != cpcStandard {
		// a 16K dump always reads back with the standard registers
		regs.r12, size = cpcOverscan.r12, cpcOverscanSize
	}
	l := regs.layout()
	mem := cpcMemory(ctx.Canvas, l, mode, size, 0, 1)
	if size > cpcScreenSize {
		copy(mem[crtcRecord:], regs.record())
	}

	if ctx.FileName != "" {
		if err := stageOCPSidecar(ctx, mode); err != nil {
			return err
		}
	}
	if err := binio.WriteBytes(w, amsdosHeader("SCREEN  SCR", uint16(l.base), len(mem))); err != nil {
		return err
	}
	return binio.WriteBytes(w, mem)
}

func stageOCPSidecar(ctx *Context, mode uint8) error {
	path, err := cpcSidecarPath(ctx, "pal")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := writeOCPPalette(&buf, mode, &ctx.Palette); err != nil {
		return err
	}
	ctx.stage(path, buf.Bytes())
	return nil
}

// gosCodec reads iMPdraw overscan pictures. The 32K of video memory is
// split over a .GO1 and a .GO2 file and the Plus palette lives in a .KIT.
type gosCodec struct{ loadOnly }

func (gosCodec) Format() Format             { return FormatGOS }
func (gosCodec) Name() string               { return "iMPdraw overscan (CPC)" }
func (gosCodec) Extensions() []string       { return []string{"go1"} }
func (gosCodec) Capabilities() Capabilities { return CanLoad | FixedSize | NeedsSidecar }

var gosLayout = cpcOverscan.layout()

func readGOHalf(r io.Reader, size int64) ([]byte, error) {
	if size > cpcScreenSize+amsdosHeaderSize {
		return nil, mismatch("%d bytes is too large for half a screen", size)
	}
	buf, err := binio.ReadBytes(r, int(size))
	if err != nil {
		return nil, err
	}
	data := stripAMSDOS(buf)
	if len(data) != cpcScreenSize {
		return nil, mismatch("%d bytes of screen data", len(data))
	}
	return data, nil
}

func (gosCodec) Test(ctx *Context, r io.ReadSeeker) error {
	if ctx.Ext() != "go1" {
		return mismatch("extension %q", ctx.Ext())
	}
	if _, err := readGOHalf(r, ctx.FileSize); err != nil {
		return err
	}
	if _, ok := binio.FindSidecar(ctx.FileName, "go2"); !ok {
		return mismatch("no .GO2 half")
	}
	return nil
}

// kitPalette decodes Plus palette words: red and blue nibbles in the low
// byte, green in the high one.
func kitPalette(buf []byte) ([]screen.RGB, error) {
	buf = stripAMSDOS(buf)
	if len(buf) < kitColors*2 {
		return nil, malformed("kit file is %d bytes", len(buf))
	}
	out := make([]screen.RGB, kitColors)
	for i := range out {
		lo, hi := buf[2*i], buf[2*i+1]
		out[i] = screen.RGB{R: (lo >> 4) * 0x11, G: (hi & 0x0F) * 0x11, B: (lo & 0x0F) * 0x11}
	}
	return out, nil
}

func (gosCodec) Load(ctx *Context, r io.ReadSeeker) error {
	first, err := readGOHalf(r, ctx.FileSize)
	if err != nil {
		return err
	}
	path, ok := binio.FindSidecar(ctx.FileName, "go2")
	if !ok {
		return malformed("no .GO2 half")
	}
	buf, err := readWholeFile(path, cpcScreenSize+amsdosHeaderSize)
	if err != nil {
		return err
	}
	second, err := readGOHalf(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return malformed("%s: %v", path, err)
	}

	for i, ink := range cpcDefaultInks {
		ctx.Palette[i] = cpcFirmware(ink)
	}
	if kit, ok := binio.FindSidecar(ctx.FileName, "kit"); ok {
		buf, err := readWholeFile(kit, kitColors*2+amsdosHeaderSize)
		if err != nil {
			return err
		}
		pal, err := kitPalette(buf)
		if err != nil {
			return err
		}
		ctx.Palette.Set(0, pal)
	} else {
		ctx.warn("no .KIT palette, using firmware defaults")
	}

	const mode = 0
	width, bpp, ratio := cpcGeometry(mode, gosLayout.bytesPerLine())
	if err := ctx.PreLoad(width, gosLines, ratio, bpp); err != nil {
		return err
	}
	drawCPC(ctx, append(first, second...), gosLayout, mode)
	return nil
}
