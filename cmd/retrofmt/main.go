package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/32bitkid/retrofmt"
	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/codec"
	"github.com/32bitkid/retrofmt/screen"
)

const usage = `usage:
  retrofmt [flags] list
  retrofmt [flags] probe <file>...
  retrofmt [flags] convert <input> <output>

Outputs ending in .png are rendered; any other extension is saved with the
matching codec. A trailing .gz, .zst, .xz or .lzma compresses the output.

flags:
`

func main() {
	var (
		verbose      = flag.Bool("v", false, "log codec decisions")
		clearPalette = flag.Bool("clear-palette", false, "zero the palette before loading")
		maxDim       = flag.Int("max", 0, "reject pictures larger than this (0 for the default)")
		loop         = flag.Int("loop", 0, "GIF repeat count, 0 loops forever, -1 plays once")
		scale        = flag.Int("scale", 1, "PNG output scale, applied after pixel ratio correction")
		layer        = flag.Int("layer", 0, "layer or frame rendered to PNG")
		crt          = flag.Bool("crt", false, "render PNG output as a colour monitor would show it")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	root := retrofmt.New()
	root.Log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	root.Options = codec.Options{ClearPalette: *clearPalette, MaxDimension: *maxDim, GIFLoop: *loop}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch cmd, rest := args[0], args[1:]; {
	case cmd == "list" && len(rest) == 0:
		list()
	case cmd == "probe" && len(rest) > 0:
		err = probe(root, rest)
	case cmd == "convert" && len(rest) == 2:
		err = convert(root, rest[0], rest[1], render{scale: *scale, layer: *layer, crt: *crt})
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "retrofmt:", err)
		os.Exit(1)
	}
}

func list() {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for _, c := range codec.All() {
		fmt.Fprintf(w, "%-28s %-24s %s\n", c.Name(), strings.Join(c.Extensions(), ","), c.Capabilities())
	}
}

func probe(root retrofmt.Root, paths []string) error {
	failed := 0
	for _, path := range paths {
		pic := &screen.Picture{MaxDimension: root.Options.MaxDimension}
		ctx, err := root.LoadFile(path, pic)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("%s: %s\n", path, retrofmt.Describe(ctx))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

type render struct {
	scale, layer int
	crt          bool
}

func convert(root retrofmt.Root, in, out string, opts render) error {
	if !strings.EqualFold(filepath.Ext(out), ".png") {
		return root.Convert(in, out)
	}

	pic := &screen.Picture{MaxDimension: root.Options.MaxDimension}
	ctx, err := root.LoadFile(in, pic)
	if err != nil {
		return err
	}
	if pic.Width() == 0 {
		return fmt.Errorf("%s has no pixels to render", in)
	}
	if opts.layer < 0 || opts.layer >= pic.LayerCount() {
		return fmt.Errorf("layer %d out of range, %s has %d", opts.layer, in, pic.LayerCount())
	}

	img := pic.Image(opts.layer)
	if p, ok := img.(*image.Paletted); ok && ctx.BackgroundTransparent {
		img = withTransparency(p, ctx.TransparentColor)
	}
	img = screen.Scale(img, ctx.Ratio, 1)
	if opts.crt {
		img = screen.CRT(img)
	}
	img = screen.Scale(img, screen.PixelSimple, opts.scale)

	f, err := binio.Create(out)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := png.Encode(w, img); err != nil {
		f.Abort()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Abort()
		return err
	}
	return f.Commit()
}

func withTransparency(p *image.Paletted, idx uint8) *image.Paletted {
	pal := make(color.Palette, len(p.Palette))
	copy(pal, p.Palette)
	if int(idx) < len(pal) {
		pal[idx] = color.NRGBA{}
	}
	out := *p
	out.Palette = pal
	return &out
}
