package codec

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/32bitkid/retrofmt/screen"
)

// source returns a context holding a w x h picture painted by fill.
func source(w, h int, fill func(x, y int) uint8) *Context {
	ctx := &Context{}
	pic := screen.NewPicture(w, h, &ctx.Palette)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pic.SetPixel(x, y, fill(x, y))
		}
	}
	ctx.Canvas = pic
	return ctx
}

// steps fills the palette with colours every codec can store exactly.
func steps(ctx *Context, n int) {
	for i := 0; i < n; i++ {
		v := uint8(i%16) * 0x11
		ctx.Palette[i] = screen.RGB{R: v, G: 0xFF - v, B: uint8(i/16) * 0x11}
	}
}

func save(t *testing.T, c Codec, ctx *Context) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Save(c, ctx, &buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	return buf.Bytes()
}

func load(t *testing.T, c Codec, name string, data []byte) (*Context, *screen.Picture) {
	t.Helper()
	pic := &screen.Picture{}
	ctx := &Context{FileName: name, Canvas: pic}
	if err := Load(c, ctx, bytes.NewReader(data)); err != nil {
		t.Fatalf("load: %v", err)
	}
	return ctx, pic
}

func roundTrip(t *testing.T, c Codec, name string, src *Context) (*Context, *screen.Picture) {
	t.Helper()
	return load(t, c, name, save(t, c, src))
}

func samePixels(t *testing.T, expected, actual screen.Canvas) {
	t.Helper()
	if expected.Width() != actual.Width() || expected.Height() != actual.Height() {
		t.Fatalf("expected(%dx%d) != actual(%dx%d)",
			expected.Width(), expected.Height(), actual.Width(), actual.Height())
	}
	for y := 0; y < expected.Height(); y++ {
		for x := 0; x < expected.Width(); x++ {
			if e, a := expected.GetPixel(x, y), actual.GetPixel(x, y); e != a {
				t.Fatalf("(%d,%d): expected(%d) != actual(%d)", x, y, e, a)
			}
		}
	}
}

func samePalette(t *testing.T, expected, actual *screen.Palette, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if expected[i] != actual[i] {
			t.Fatalf("palette[%d]: expected(%v) != actual(%v)", i, expected[i], actual[i])
		}
	}
}

func pattern(mod int) func(x, y int) uint8 {
	return func(x, y int) uint8 { return uint8((x*3 + y*5) % mod) }
}

func TestRegistry(t *testing.T) {
	seen := map[Format]bool{}
	for _, c := range All() {
		if seen[c.Format()] {
			t.Fatalf("%v registered twice", c.Format())
		}
		seen[c.Format()] = true
		found, err := Lookup(c.Format())
		if err != nil || found.Format() != c.Format() {
			t.Fatalf("lookup %v: %v", c.Format(), err)
		}
		if len(c.Extensions()) == 0 {
			t.Fatalf("%v has no extensions", c.Format())
		}
	}
	if _, err := Lookup(FormatUnknown); err != ErrUnknownFormat {
		t.Fatalf("expected(%v) != actual(%v)", ErrUnknownFormat, err)
	}
	if cs := ByExtension(".PCX"); len(cs) != 1 || cs[0].Format() != FormatPCX {
		t.Fatalf("expected PCX for .PCX, got %v", cs)
	}
}

type fixture struct {
	format Format
	name   string
	data   []byte
}

// fixtures returns a small sample of every format. Formats spread over
// several files get their companions written to a temporary directory.
func fixtures(t *testing.T) []fixture {
	t.Helper()
	pic := func(w, h, colors int) *Context {
		ctx := source(w, h, pattern(colors))
		steps(ctx, colors)
		ctx.Palette[0] = screen.RGB{}
		return ctx
	}
	dir := t.TempDir()
	spread := func(c Codec, name string, ctx *Context) fixture {
		ctx.FileName = filepath.Join(dir, name)
		data := save(t, c, ctx)
		if err := ctx.CommitSidecars(); err != nil {
			t.Fatal(err)
		}
		return fixture{c.Format(), ctx.FileName, data}
	}
	gos := writeFile(t, dir, "g.go1", make([]byte, cpcScreenSize))
	writeFile(t, dir, "g.go2", make([]byte, cpcScreenSize))

	return []fixture{
		{FormatGIF, "a.gif", save(t, gifCodec{}, pic(9, 5, 16))},
		{FormatBMP, "a.bmp", save(t, bmpCodec{}, pic(9, 5, 16))},
		{FormatICO, "a.ico", save(t, icoCodec{}, pic(9, 5, 16))},
		{FormatIFF, "a.lbm", save(t, iffCodec{}, pic(9, 5, 16))},
		{FormatINFO, "a.info", save(t, infoCodec{}, pic(9, 5, 16))},
		{FormatGROB, "a.grb", save(t, grobCodec{}, pic(9, 5, 2))},
		{Format2GS, "a.2gs", save(t, gsCodec{}, pic(9, 5, 16))},
		{FormatPCX, "a.pcx", save(t, pcxCodec{}, pic(9, 5, 16))},
		{FormatSCX, "a.sci", save(t, scxCodec{}, pic(9, 5, 16))},
		{FormatMJH, "a.mjh", save(t, mjhCodec{}, pic(320, 200, 1))},
		{FormatSCR, "a.scr", save(t, scrCodec{}, pic(320, 200, 4))},
		{FormatGOS, gos, make([]byte, cpcScreenSize)},
		spread(cm5Codec{}, "c.cm5", pic(cm5Width, cm5Lines, 1)),
		spread(pphCodec{}, "p.pph", pic(320, 400, 4)),
		{FormatPI1, "a.pi1", save(t, pi1Codec{}, pic(320, 200, 16))},
		{FormatNEO, "a.neo", save(t, neoCodec{}, pic(320, 200, 16))},
		{FormatCEL, "a.cel", save(t, celCodec{}, pic(9, 5, 16))},
		{FormatPAL, "a.pal", save(t, palCodec{}, pic(1, 1, 16))},
		{FormatFLI, "a.fli", testFLI()},
		{FormatHGR, "a.bin", testHGR()},
		{FormatDHGR, "a.dhr", make([]byte, dhgrSize)},
	}
}

func TestEveryCodecRejectsOtherSamples(t *testing.T) {
	samples := fixtures(t)
	if len(samples) != len(All()) {
		t.Fatalf("expected(%d) != actual(%d) samples", len(All()), len(samples))
	}
	for _, c := range All() {
		for _, fx := range samples {
			err := Test(c, &Context{FileName: fx.name}, bytes.NewReader(fx.data))
			switch {
			case fx.format == c.Format() && err != nil:
				t.Fatalf("%v rejects its own sample: %v", c.Format(), err)
			case fx.format != c.Format() && err == nil:
				t.Fatalf("%v accepts the %v sample", c.Format(), fx.format)
			}
		}
	}
}

func TestDetectIsUnambiguous(t *testing.T) {
	for _, fx := range fixtures(t) {
		c, err := Detect(&Context{FileName: fx.name}, bytes.NewReader(fx.data))
		if err != nil {
			t.Fatalf("%v: %v", fx.format, err)
		}
		if c.Format() != fx.format {
			t.Fatalf("expected(%v) != actual(%v)", fx.format, c.Format())
		}
	}

	legacyCel := []byte{3, 0, 2, 0, 0x12, 0x30, 0x45, 0x60}
	rawPal := append([]byte{0, 0, 0}, bytes.Repeat([]byte{0x3F}, rawPalSize-3)...)
	for name, data := range map[string][]byte{"b.cel": legacyCel, "b.pal": rawPal} {
		c, err := Detect(&Context{FileName: name}, bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if ext := strings.TrimPrefix(filepath.Ext(name), "."); c.Extensions()[0] != ext {
			t.Fatalf("%s: detected as %v", name, c.Format())
		}
	}
}

func TestDetectUnknown(t *testing.T) {
	_, err := Detect(&Context{FileName: "noise.dat"}, bytes.NewReader([]byte("not a picture at all")))
	if !errors.Is(err, ErrFormatMismatch) {
		t.Fatalf("expected(%v) != actual(%v)", ErrFormatMismatch, err)
	}
}

func TestErrorKinds(t *testing.T) {
	gif := save(t, gifCodec{}, source(13, 7, pattern(16)))

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"mismatch", func() error {
			return Test(bmpCodec{}, &Context{}, bytes.NewReader(gif))
		}, ErrFormatMismatch},
		{"truncated", func() error {
			return Load(gifCodec{}, &Context{Canvas: &screen.Picture{}}, bytes.NewReader(gif[:40]))
		}, ErrTruncated},
		{"too large", func() error {
			ctx := &Context{Canvas: &screen.Picture{}, Options: Options{MaxDimension: 8}}
			return Load(gifCodec{}, ctx, bytes.NewReader(gif))
		}, ErrTooLarge},
		{"unsupported save", func() error {
			return Save(flicCodec{}, source(2, 2, pattern(2)), io.Discard)
		}, ErrUnsupported},
		{"unsupported size", func() error {
			return Save(pi1Codec{}, source(2, 2, pattern(2)), io.Discard)
		}, ErrUnsupported},
		{"no canvas", func() error {
			return Load(gifCodec{}, &Context{}, bytes.NewReader(gif))
		}, ErrMalformed},
	}
	for _, tt := range tests {
		err := tt.run()
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected(%v) != actual(%v)", tt.name, tt.want, err)
		}
		var e *Error
		if !errors.As(err, &e) || e.Format == FormatUnknown {
			t.Fatalf("%s: error %v carries no format", tt.name, err)
		}
	}
}

func TestPreLoadOnce(t *testing.T) {
	ctx := &Context{Canvas: &screen.Picture{}}
	if err := ctx.PreLoad(4, 4, screen.PixelSimple, 8); err != nil {
		t.Fatal(err)
	}
	if err := ctx.PreLoad(4, 4, screen.PixelSimple, 8); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected(%v) != actual(%v)", ErrMalformed, err)
	}
}

func TestSetComment(t *testing.T) {
	ctx := &Context{}
	ctx.SetComment(strings.Repeat("é", 60))
	if len(ctx.Comment) > MaxCommentLength {
		t.Fatalf("expected at most %d bytes, got %d", MaxCommentLength, len(ctx.Comment))
	}
	if ctx.Comment != strings.Repeat("é", 49) {
		t.Fatalf("comment cut inside a rune: %q", ctx.Comment)
	}
}

func TestClearPalette(t *testing.T) {
	data := save(t, celCodec{}, source(4, 4, pattern(4)))
	ctx := &Context{Canvas: &screen.Picture{}, Options: Options{ClearPalette: true}}
	ctx.Palette[200] = screen.RGB{R: 1, G: 2, B: 3}
	if err := Load(celCodec{}, ctx, bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	if c := ctx.Palette[200]; c != (screen.RGB{}) {
		t.Fatalf("expected(black) != actual(%v)", c)
	}

	ctx = &Context{Canvas: &screen.Picture{}}
	ctx.Palette[200] = screen.RGB{R: 1, G: 2, B: 3}
	if err := Load(celCodec{}, ctx, bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	if c := ctx.Palette[200]; c != (screen.RGB{R: 1, G: 2, B: 3}) {
		t.Fatalf("expected the old entry to survive, got %v", c)
	}
}

// writeFile puts data in dir and returns its path.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
