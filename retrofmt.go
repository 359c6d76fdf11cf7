// Package retrofmt loads and saves legacy picture files.
//
// The formats themselves live in the codec package; this package deals
// with files on disk: it opens them, inflates compressed copies, probes
// the registry for a codec and makes sure a failed save never leaves a
// half written file behind.
//
// Supported formats include GIF, PCX, BMP, ICO, Amiga IFF and Workbench
// icons, Apple IIgs preferred format, HP-48 grobs, ColoRIX, Amstrad CPC
// screens in their standard, overscan, MJH, mode 5 and Perfect Pix forms,
// Apple II hi-res and double hi-res pages, FLI/FLC animations, KiSS cells,
// Atari ST Degas and NEOchrome pictures and JASC palettes.

package retrofmt

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/codec"
	"github.com/32bitkid/retrofmt/screen"
)

var (
	ErrNoCodec     = errors.New("retrofmt: no codec for this file name")
	ErrCannotSave  = errors.New("retrofmt: format cannot be saved")
	ErrEmptySource = errors.New("retrofmt: empty file")
)

// Root is the entry point for file access. The zero value works: it
// inflates every known container and logs nothing.
type Root struct {
	Containers ContainerLUT
	Options    codec.Options
	Log        *slog.Logger
}

func New() Root {
	return Root{Containers: Containers}
}

func (root Root) containers() ContainerLUT {
	if root.Containers == nil {
		return Containers
	}
	return root.Containers
}

func (root Root) context(name string) *codec.Context {
	return &codec.Context{FileName: name, Options: root.Options, Log: root.Log}
}

// Probe reports which codec reads the file at path.
func (root Root) Probe(path string) (codec.Codec, error) {
	src, err := root.open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	ctx := root.context(src.name)
	ctx.FileSize = src.size
	return codec.Detect(ctx, src)
}

// LoadFile decodes the file at path into canvas. A nil canvas gets a fresh
// screen.Picture. The returned context holds the palette and metadata.
func (root Root) LoadFile(path string, canvas screen.Canvas) (*codec.Context, error) {
	src, err := root.open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if canvas == nil {
		canvas = &screen.Picture{MaxDimension: root.Options.MaxDimension}
	}
	ctx := root.context(src.name)
	ctx.FileSize = src.size
	c, err := codec.Detect(ctx, src)
	if err != nil {
		return nil, err
	}
	ctx.Canvas = canvas
	if err := codec.Load(c, ctx, src); err != nil {
		return nil, err
	}
	if root.Log != nil {
		root.Log.Debug("loaded", "file", path, "codec", c.Name(),
			"width", ctx.Width, "height", ctx.Height, "layers", canvas.LayerCount())
	}
	return ctx, nil
}

// CodecFor picks the first saveable codec claiming the extension of path,
// ignoring a trailing container extension.
func (root Root) CodecFor(path string) (codec.Codec, error) {
	name, _ := root.containers().split(path)
	cs := codec.ByExtension(filepath.Ext(name))
	for _, c := range cs {
		if c.Capabilities().Has(codec.CanSave) {
			return c, nil
		}
	}
	if len(cs) > 0 {
		return nil, ErrCannotSave
	}
	return nil, ErrNoCodec
}

// SaveFile encodes ctx with c into path. The file only replaces an
// existing one once everything was written; a container extension
// compresses the output. Companion files, such as a CPC palette, follow
// once the main file is in place.
func (root Root) SaveFile(path string, c codec.Codec, ctx *codec.Context) error {
	if !c.Capabilities().Has(codec.CanSave) {
		return ErrCannotSave
	}
	name, container := root.containers().split(path)
	ctx.FileName = name
	if ctx.Log == nil {
		ctx.Log = root.Log
	}

	f, err := binio.Create(path)
	if err != nil {
		return err
	}
	if err := save(f, c, ctx, container); err != nil {
		f.Abort()
		return err
	}
	if err := f.Commit(); err != nil {
		return err
	}
	return ctx.CommitSidecars()
}

func save(f *binio.SafeFile, c codec.Codec, ctx *codec.Context, container *Container) error {
	bw := bufio.NewWriter(f)
	if container == nil {
		if err := codec.Save(c, ctx, bw); err != nil {
			return err
		}
		return bw.Flush()
	}
	cw, err := container.Compress(bw)
	if err != nil {
		return err
	}
	if err := codec.Save(c, ctx, cw); err != nil {
		cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

// Convert loads src and saves it as dst, picking the output format from
// the extension of dst.
func (root Root) Convert(src, dst string) error {
	c, err := root.CodecFor(dst)
	if err != nil {
		return err
	}
	ctx, err := root.LoadFile(src, nil)
	if err != nil {
		return err
	}
	return root.SaveFile(dst, c, ctx)
}

// LoadPalette reads a palette-only file, or the palette of any picture.
func (root Root) LoadPalette(path string) (*screen.Palette, error) {
	ctx, err := root.LoadFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &ctx.Palette, nil
}

// Describe is a one line summary of a loaded context.
func Describe(ctx *codec.Context) string {
	var b strings.Builder
	if ctx.Width > 0 {
		fmt.Fprintf(&b, "%dx%d %dbpp", ctx.Width, ctx.Height, ctx.BitsPerPixel)
	} else {
		b.WriteString("palette")
	}
	if ctx.Canvas != nil && ctx.Canvas.LayerCount() > 1 {
		fmt.Fprintf(&b, " %d layers", ctx.Canvas.LayerCount())
	}
	if ctx.BackgroundTransparent {
		fmt.Fprintf(&b, " transparent=%d", ctx.TransparentColor)
	}
	if ctx.Comment != "" {
		fmt.Fprintf(&b, " comment=%q", ctx.Comment)
	}
	return b.String()
}
