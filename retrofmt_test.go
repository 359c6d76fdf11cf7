package retrofmt

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/32bitkid/retrofmt/codec"
	"github.com/32bitkid/retrofmt/screen"
)

func picture(w, h int) *codec.Context {
	ctx := &codec.Context{}
	for i := 0; i < 16; i++ {
		ctx.Palette[i] = screen.RGB{R: uint8(i) * 0x11, G: 0x80, B: 0xFF - uint8(i)*0x11}
	}
	pic := screen.NewPicture(w, h, &ctx.Palette)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pic.SetPixel(x, y, uint8((x+2*y)%16))
		}
	}
	ctx.Canvas = pic
	return ctx
}

func lookup(t *testing.T, f codec.Format) codec.Codec {
	t.Helper()
	c, err := codec.Lookup(f)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestContainerRoundTrip(t *testing.T) {
	root := New()
	for _, ext := range []string{"", ".gz", ".zst", ".xz", ".lzma"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "title.gif"+ext)
			src := picture(9, 4)
			if err := root.SaveFile(path, lookup(t, codec.FormatGIF), src); err != nil {
				t.Fatalf("save: %v", err)
			}

			c, err := root.Probe(path)
			if err != nil {
				t.Fatalf("probe: %v", err)
			}
			if c.Format() != codec.FormatGIF {
				t.Fatalf("expected(%v) != actual(%v)", codec.FormatGIF, c.Format())
			}

			dst, err := root.LoadFile(path, nil)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if want := filepath.Join(dir, "title.gif"); dst.FileName != want {
				t.Fatalf("expected(%s) != actual(%s)", want, dst.FileName)
			}
			for y := 0; y < 4; y++ {
				for x := 0; x < 9; x++ {
					e, a := src.Canvas.GetPixel(x, y), dst.Canvas.GetPixel(x, y)
					if e != a {
						t.Fatalf("(%d,%d): expected(%d) != actual(%d)", x, y, e, a)
					}
				}
			}
			if dst.Palette[5] != src.Palette[5] {
				t.Fatalf("expected(%v) != actual(%v)", src.Palette[5], dst.Palette[5])
			}
		})
	}
}

func TestCodecFor(t *testing.T) {
	root := New()
	tests := []struct {
		path string
		want codec.Format
		err  error
	}{
		{"a.PCX", codec.FormatPCX, nil},
		{"a.lbm.gz", codec.FormatIFF, nil},
		{"a.neo.zst", codec.FormatNEO, nil},
		{"a.fli", codec.FormatUnknown, ErrCannotSave},
		{"a.txt", codec.FormatUnknown, ErrNoCodec},
		{"gz", codec.FormatUnknown, ErrNoCodec},
	}
	for _, tt := range tests {
		c, err := root.CodecFor(tt.path)
		if !errors.Is(err, tt.err) {
			t.Fatalf("%s: expected(%v) != actual(%v)", tt.path, tt.err, err)
		}
		if err == nil && c.Format() != tt.want {
			t.Fatalf("%s: expected(%v) != actual(%v)", tt.path, tt.want, c.Format())
		}
	}
}

func TestFailedSaveLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wrong.pi1")
	err := New().SaveFile(path, lookup(t, codec.FormatPI1), picture(10, 10))
	if !errors.Is(err, codec.ErrUnsupported) {
		t.Fatalf("expected(%v) != actual(%v)", codec.ErrUnsupported, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected an empty directory, found %s", entries[0].Name())
	}
}

func TestSaveReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bmp")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := New().SaveFile(path, lookup(t, codec.FormatBMP), picture(3, 3)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:2]) != "BM" {
		t.Fatalf("expected a bitmap, got % x", data[:2])
	}
}

func TestUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.bin")
	if err := os.WriteFile(path, []byte("plain text, nothing to see here"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New().LoadFile(path, nil)
	if !errors.Is(err, codec.ErrUnknownFormat) {
		t.Fatalf("expected(%v) != actual(%v)", codec.ErrUnknownFormat, err)
	}
	var e *codec.Error
	if !errors.As(err, &e) || e.Kind != codec.KindFormatMismatch {
		t.Fatalf("expected a format mismatch, got %v", err)
	}
}

func TestEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.pcx")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New().Probe(path); !errors.Is(err, ErrEmptySource) {
		t.Fatalf("expected(%v) != actual(%v)", ErrEmptySource, err)
	}
}

func TestLoadPalette(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.pal.gz")
	src := picture(1, 1)
	if err := New().SaveFile(path, lookup(t, codec.FormatPAL), src); err != nil {
		t.Fatal(err)
	}
	pal, err := New().LoadPalette(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 16; i++ {
		if pal[i] != src.Palette[i] {
			t.Fatalf("%d: expected(%v) != actual(%v)", i, src.Palette[i], pal[i])
		}
	}
}

func TestDescribe(t *testing.T) {
	ctx := picture(4, 2)
	ctx.Width, ctx.Height, ctx.BitsPerPixel = 4, 2, 4
	ctx.BackgroundTransparent, ctx.TransparentColor = true, 3
	ctx.Comment = "hi"
	if s, want := Describe(ctx), `4x2 4bpp transparent=3 comment="hi"`; s != want {
		t.Fatalf("expected(%s) != actual(%s)", want, s)
	}
	if s := Describe(&codec.Context{}); s != "palette" {
		t.Fatalf("expected(palette) != actual(%s)", s)
	}
}

func TestSidecarFollowsMainFile(t *testing.T) {
	pic := func() *codec.Context {
		ctx := picture(320, 200)
		for y := 0; y < 200; y++ {
			for x := 0; x < 320; x++ {
				ctx.Canvas.SetPixel(x, y, uint8(x%4))
			}
		}
		return ctx
	}
	scr := lookup(t, codec.FormatSCR)

	dir := t.TempDir()
	broken := New()
	broken.Containers = ContainerLUT{"bad": {
		Compress: func(w io.Writer) (io.WriteCloser, error) { return failingClose{w}, nil },
	}}
	if err := broken.SaveFile(filepath.Join(dir, "shot.scr.bad"), scr, pic()); err == nil {
		t.Fatal("expected the container error")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected an empty directory, found %s", entries[0].Name())
	}

	if err := New().SaveFile(filepath.Join(dir, "shot.scr"), scr, pic()); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"shot.scr", "shot.pal"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
	}
}

// failingClose accepts every write and fails once the stream is closed.
type failingClose struct{ io.Writer }

func (failingClose) Close() error { return errors.New("no space left") }
