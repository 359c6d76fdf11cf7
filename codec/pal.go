package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/32bitkid/retrofmt/screen"
)

const (
	jascMagic   = "JASC-PAL"
	jascVersion = "0100"
	rawPalSize  = 768
)

type palCodec struct{}

func (palCodec) Format() Format             { return FormatPAL }
func (palCodec) Name() string               { return "Palette (JASC / raw)" }
func (palCodec) Extensions() []string       { return []string{"pal"} }
func (palCodec) Capabilities() Capabilities { return CanLoad | CanSave | PaletteOnly }

func isJASC(r io.Reader) bool {
	var head [len(jascMagic)]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return false
	}
	return string(head[:]) == jascMagic
}

func (palCodec) Test(ctx *Context, r io.ReadSeeker) error {
	if isJASC(r) || ctx.FileSize == rawPalSize {
		return nil
	}
	return mismatch("neither a JASC palette nor %d raw bytes", rawPalSize)
}

func (palCodec) Load(ctx *Context, r io.ReadSeeker) error {
	if isJASC(r) {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return loadJASC(ctx, r)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	colors, err := readRGB(r, 256)
	if err != nil {
		return err
	}
	// a VGA DAC dump never goes past 63
	six := true
	for _, c := range colors {
		if c.R > 63 || c.G > 63 || c.B > 63 {
			six = false
			break
		}
	}
	if six {
		for i, c := range colors {
			colors[i] = screen.RGB{R: expand6(c.R), G: expand6(c.G), B: expand6(c.B)}
		}
	}
	ctx.debug("raw palette", "sixBit", six)
	ctx.Palette.Set(0, colors)
	return nil
}

func loadJASC(ctx *Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	next := func() (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return strings.TrimSpace(sc.Text()), nil
	}

	if _, err := next(); err != nil {
		return err
	}
	if v, err := next(); err != nil {
		return err
	} else if v != jascVersion {
		ctx.warn("unexpected JASC version", "version", v)
	}
	line, err := next()
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 0 {
		return malformed("bad colour count %q", line)
	}
	if n > 256 {
		ctx.warn("palette truncated", "colors", n)
		n = 256
	}
	for i := 0; i < n; i++ {
		line, err := next()
		if err != nil {
			return err
		}
		f := strings.Fields(line)
		if len(f) < 3 {
			return malformed("entry %d: %q", i, line)
		}
		var rgb [3]uint8
		for k := range rgb {
			v, err := strconv.Atoi(f[k])
			if err != nil || v < 0 || v > 255 {
				return malformed("entry %d: %q", i, line)
			}
			rgb[k] = uint8(v)
		}
		ctx.Palette[i] = screen.RGB{R: rgb[0], G: rgb[1], B: rgb[2]}
	}
	return nil
}

// Save writes a 256 entry JASC palette, or the raw 8 bit table when the
// target name asks for a .raw / .act file.
func (palCodec) Save(ctx *Context, w io.Writer) error {
	switch ctx.Ext() {
	case "raw", "act":
		return writeRGB(w, ctx.Palette[:])
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\r\n%s\r\n%d\r\n", jascMagic, jascVersion, len(ctx.Palette))
	for _, c := range ctx.Palette {
		fmt.Fprintf(bw, "%d %d %d\r\n", c.R, c.G, c.B)
	}
	return bw.Flush()
}
