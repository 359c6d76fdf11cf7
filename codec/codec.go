package codec

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/screen"
)

// MaxCommentLength bounds Context.Comment, in bytes.
const MaxCommentLength = 99

// Codec reads and writes one file format. Test must only decide whether r
// holds the format; it never touches the palette or the canvas.
type Codec interface {
	Format() Format
	Name() string
	Extensions() []string
	Capabilities() Capabilities

	Test(ctx *Context, r io.ReadSeeker) error
	Load(ctx *Context, r io.ReadSeeker) error
	Save(ctx *Context, w io.Writer) error
}

type Options struct {
	// ClearPalette zeroes the whole palette before a load, so entries past
	// the format's colour count end up black instead of keeping old values.
	ClearPalette bool

	// MaxDimension rejects pictures wider or taller than this at PreLoad.
	// Zero means screen.DefaultMaxDimension.
	MaxDimension int

	// GIFLoop is the NETSCAPE2.0 repeat count written for animations.
	// Zero loops forever, a negative value omits the extension.
	GIFLoop int
}

// Context is the state of one Test, Load or Save call. The caller owns it
// and discards it after a failed load.
type Context struct {
	FileName string
	FileSize int64

	Width, Height int
	Mode          screen.ImageMode
	Ratio         screen.PixelRatio
	BitsPerPixel  int

	Palette               screen.Palette
	TransparentColor      uint8
	BackgroundTransparent bool
	Comment               string

	// Cycles are the palette ranges a viewer rotates to animate the
	// picture. SourcePath and ScreenMode are what the drawing program
	// recorded about where the picture came from.
	Cycles     []ColorCycle
	SourcePath string
	ScreenMode string

	Canvas  screen.Canvas
	Options Options
	Log     *slog.Logger

	format    Format
	preloaded bool
	sidecars  []sidecar
}

// sidecar is a companion file produced by a Save, held back until the
// main file is written.
type sidecar struct {
	path string
	data []byte
}

// Ext is the lower case extension of FileName, without the dot.
func (ctx *Context) Ext() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(ctx.FileName), "."))
}

// SetComment stores s, cut to MaxCommentLength bytes on a rune boundary.
func (ctx *Context) SetComment(s string) {
	if len(s) > MaxCommentLength {
		s = s[:MaxCommentLength]
		for len(s) > 0 && !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
	}
	ctx.Comment = s
}

// PreLoad announces the picture to the canvas. It must run once, before
// the first pixel; an error means the load has to stop.
func (ctx *Context) PreLoad(width, height int, ratio screen.PixelRatio, bpp int) error {
	if ctx.preloaded {
		return malformed("picture announced twice")
	}
	ctx.preloaded = true

	if max := ctx.Options.MaxDimension; max > 0 && (width > max || height > max) {
		return &Error{Kind: KindTooLarge, Err: screen.ErrTooLarge}
	}
	ctx.Width, ctx.Height = width, height
	ctx.Ratio, ctx.BitsPerPixel = ratio, bpp
	if ctx.Canvas == nil {
		return nil
	}
	return ctx.Canvas.PreLoad(screen.Info{
		Width:        width,
		Height:       height,
		FileSize:     ctx.FileSize,
		Format:       ctx.format.String(),
		Ratio:        ratio,
		BitsPerPixel: bpp,
		Palette:      &ctx.Palette,
	})
}

// SetImageMode records the mode and forwards it to the canvas.
func (ctx *Context) SetImageMode(mode screen.ImageMode) {
	ctx.Mode = mode
	if ctx.Canvas != nil {
		ctx.Canvas.SetImageMode(mode)
	}
}

// claim rejects a length read from the file when the whole file is
// shorter, before anything of that length is allocated.
func (ctx *Context) claim(n int64, what string) error {
	if n < 0 || n > ctx.FileSize {
		return truncated("%s claims %d bytes of a %d byte file", what, n, ctx.FileSize)
	}
	return nil
}

// stage queues a companion file of the one being saved.
func (ctx *Context) stage(path string, data []byte) {
	ctx.sidecars = append(ctx.sidecars, sidecar{path: path, data: data})
}

// Sidecars lists the companion files the last Save staged.
func (ctx *Context) Sidecars() []string {
	out := make([]string, len(ctx.sidecars))
	for i, sc := range ctx.sidecars {
		out[i] = sc.path
	}
	return out
}

// CommitSidecars writes the companion files staged by the last Save. Call
// it once the main file is in place; each file replaces its target only
// when completely written.
func (ctx *Context) CommitSidecars() error {
	for len(ctx.sidecars) > 0 {
		sc := ctx.sidecars[0]
		f, err := binio.Create(sc.path)
		if err != nil {
			return err
		}
		if err := binio.WriteBytes(f, sc.data); err != nil {
			f.Abort()
			return err
		}
		if err := f.Commit(); err != nil {
			return err
		}
		ctx.sidecars = ctx.sidecars[1:]
	}
	return nil
}

func (ctx *Context) debug(msg string, args ...interface{}) {
	if ctx.Log == nil {
		return
	}
	ctx.Log.Debug(msg, append([]interface{}{"format", ctx.format}, args...)...)
}

func (ctx *Context) warn(msg string, args ...interface{}) {
	if ctx.Log == nil {
		return
	}
	ctx.Log.Warn(msg, append([]interface{}{"format", ctx.format, "file", ctx.FileName}, args...)...)
}

// Test rewinds r and asks c whether it holds its format. Any rejection is a
// KindFormatMismatch error.
func Test(c Codec, ctx *Context, r io.ReadSeeker) error {
	if err := ctx.begin(c, r); err != nil {
		return classify(c.Format(), "test", err)
	}
	if err := c.Test(ctx, r); err != nil {
		e := classify(c.Format(), "test", err).(*Error)
		e.Kind = KindFormatMismatch
		return e
	}
	return nil
}

// Load rewinds r and decodes it into ctx.Canvas and ctx.Palette.
func Load(c Codec, ctx *Context, r io.ReadSeeker) error {
	if !c.Capabilities().Has(CanLoad) {
		return classify(c.Format(), "load", unsupported("loading is not implemented"))
	}
	if ctx.Canvas == nil && !c.Capabilities().Has(PaletteOnly) {
		return classify(c.Format(), "load", malformed("no canvas to load into"))
	}
	if err := ctx.begin(c, r); err != nil {
		return classify(c.Format(), "load", err)
	}
	if ctx.Options.ClearPalette {
		ctx.Palette.Clear()
	}
	ctx.Comment = ""
	ctx.BackgroundTransparent = false
	ctx.Cycles, ctx.SourcePath, ctx.ScreenMode = nil, "", ""
	if err := c.Load(ctx, r); err != nil {
		return classify(c.Format(), "load", err)
	}
	if !ctx.preloaded && !c.Capabilities().Has(PaletteOnly) {
		return classify(c.Format(), "load", malformed("no picture found"))
	}
	return nil
}

// Save encodes ctx.Canvas and ctx.Palette into w. Formats spread over
// several files stage the others on ctx; see CommitSidecars.
func Save(c Codec, ctx *Context, w io.Writer) error {
	ctx.sidecars = nil
	if !c.Capabilities().Has(CanSave) {
		return classify(c.Format(), "save", unsupported("saving is not implemented"))
	}
	ctx.format = c.Format()
	if ctx.Canvas != nil {
		ctx.Width, ctx.Height = ctx.Canvas.Width(), ctx.Canvas.Height()
	}
	if !c.Capabilities().Has(PaletteOnly) {
		if ctx.Canvas == nil {
			return classify(c.Format(), "save", malformed("nothing to save"))
		}
		if ctx.Width <= 0 || ctx.Height <= 0 {
			return classify(c.Format(), "save", &Error{Kind: KindMalformed, Err: screen.ErrEmpty})
		}
	}
	if err := c.Save(ctx, w); err != nil {
		ctx.sidecars = nil
		return classify(c.Format(), "save", err)
	}
	return nil
}

func (ctx *Context) begin(c Codec, r io.ReadSeeker) error {
	ctx.format = c.Format()
	ctx.preloaded = false
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if ctx.FileSize == 0 {
		size, err := binio.FileLength(r)
		if err != nil {
			return err
		}
		ctx.FileSize = size
	}
	return nil
}
