package codec

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// mode5 uses four colours besides the background on every line: one that
// changes per line, two fixed ones and one cycling over four inks.
func mode5(x, y int) uint8 {
	switch {
	case x < 100:
		return 0
	case x < 150:
		return uint8(y%20 + 1)
	case x < 200:
		return 21
	case x < 250:
		return 22
	}
	return uint8(23 + y%4)
}

func TestCM5RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := source(cm5Width, cm5Lines, mode5)
	src.FileName = filepath.Join(dir, "pic.cm5")
	data := save(t, cm5Codec{}, src)
	if len(data) != cm5Size {
		t.Fatalf("expected(%d) != actual(%d)", cm5Size, len(data))
	}
	if sc := src.Sidecars(); len(sc) != 1 || sc[0] != filepath.Join(dir, "pic.gfx") {
		t.Fatalf("expected(pic.gfx) != actual(%v)", sc)
	}
	if err := src.CommitSidecars(); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dir, "pic.gfx"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != cm5GFXSize {
		t.Fatalf("expected(%d) != actual(%d)", cm5GFXSize, info.Size())
	}

	ctx := &Context{FileName: src.FileName}
	if err := Test(cm5Codec{}, ctx, bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	dst, pic := load(t, cm5Codec{}, src.FileName, data)
	samePixels(t, src.Canvas, pic)
	samePalette(t, cpcFirmwarePalette(), &dst.Palette, 27)
}

func TestCM5LineSplit(t *testing.T) {
	row := make([]uint8, cm5Width)
	for x := range row {
		row[x] = mode5(x, 3)
	}
	rec, pens, err := cm5Line(row, 0)
	if err != nil {
		t.Fatal(err)
	}
	// 4 ends in the byte column where 21 starts, so 22 takes the right half
	if rec[4] != 50 {
		t.Fatalf("expected(50) != actual(%d)", rec[4])
	}
	if cpcFirmwareOf(rec[2]) != 4 || cpcFirmwareOf(rec[3]) != 22 {
		t.Fatalf("expected(4, 22) != actual(%d, %d)", cpcFirmwareOf(rec[2]), cpcFirmwareOf(rec[3]))
	}
	if pens[0] != 0 || pens[100] != 3 || pens[220] != 3 || pens[150] != 1 || pens[260] != 2 {
		t.Fatalf("unexpected pens %v", pens[:4])
	}
}

func TestCM5TooManyColours(t *testing.T) {
	src := source(cm5Width, cm5Lines, pattern(6))
	src.FileName = filepath.Join(t.TempDir(), "busy.cm5")
	var buf bytes.Buffer
	if err := Save(cm5Codec{}, src, &buf); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected(%v) != actual(%v)", ErrUnsupported, err)
	}
	if sc := src.Sidecars(); len(sc) != 0 {
		t.Fatalf("expected no staged files, got %v", sc)
	}
}

func TestCM5NeedsGFX(t *testing.T) {
	path := writeFile(t, t.TempDir(), "alone.cm5", make([]byte, cm5Size))
	ctx := &Context{FileName: path}
	if err := Test(cm5Codec{}, ctx, bytes.NewReader(make([]byte, cm5Size))); !errors.Is(err, ErrFormatMismatch) {
		t.Fatalf("expected(%v) != actual(%v)", ErrFormatMismatch, err)
	}
}
