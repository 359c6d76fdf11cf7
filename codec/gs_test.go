package codec

import (
	"bytes"
	"errors"
	"image/color"
	"io"
	"testing"

	"github.com/32bitkid/retrofmt/binio"
	"github.com/32bitkid/retrofmt/screen"
)

func TestGSRoundTrip(t *testing.T) {
	src := source(13, 6, func(x, y int) uint8 { return uint8(y%2*16 + (x*3+y)%16) })
	steps(src, 32)
	src.SetComment("note")

	dst, pic := roundTrip(t, gsCodec{}, "a.2gs", src)
	samePixels(t, src.Canvas, pic)
	samePalette(t, &src.Palette, &dst.Palette, 32)
	if dst.Comment != "note" {
		t.Fatalf("expected(note) != actual(%q)", dst.Comment)
	}
}

func TestGSSaveRejectsMixedTables(t *testing.T) {
	src := source(2, 1, func(x, y int) uint8 { return uint8(x*16 + 3) })
	if err := Save(gsCodec{}, src, io.Discard); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected(%v) != actual(%v)", ErrUnsupported, err)
	}
}

// gsMain builds a one table MAIN block holding a single scan line.
func gsMain(master, width, mode uint16, packed []byte) []byte {
	var main bytes.Buffer
	binio.WriteWordLE(&main, master)
	binio.WriteWordLE(&main, width)
	binio.WriteWordLE(&main, 1)
	main.Write(make([]byte, gsTableSize*2))
	binio.WriteWordLE(&main, 1)
	binio.WriteWordLE(&main, uint16(len(packed)))
	binio.WriteWordLE(&main, mode)
	main.Write(packed)
	return main.Bytes()
}

func gsFile(blocks ...gsBlock) []byte {
	var out bytes.Buffer
	for _, b := range blocks {
		writeGSBlock(&out, b.name, b.data)
	}
	return out.Bytes()
}

func TestGSRepeatedByte(t *testing.T) {
	file := gsFile(gsBlock{"MAIN", gsMain(0, 8, 0, []byte{0x43, 0xAB})})
	_, pic := load(t, gsCodec{}, "a.shr", file)
	for x := 0; x < 8; x++ {
		want := uint8(0xA + x%2)
		if c := pic.GetPixel(x, 0); c != want {
			t.Fatalf("x=%d: expected(%d) != actual(%d)", x, want, c)
		}
	}
}

func TestGS640Mode(t *testing.T) {
	file := gsFile(gsBlock{"MAIN", gsMain(gsMode640, 4, gsMode640, []byte{0x00, 0x1B})})
	ctx, pic := load(t, gsCodec{}, "a.shr", file)
	for x, want := range []uint8{8, 13, 2, 7} {
		if c := pic.GetPixel(x, 0); c != want {
			t.Fatalf("x=%d: expected(%d) != actual(%d)", x, want, c)
		}
	}
	if ctx.Ratio != screen.PixelTall {
		t.Fatalf("expected(%v) != actual(%v)", screen.PixelTall, ctx.Ratio)
	}
}

func TestGSMultipal(t *testing.T) {
	var multi bytes.Buffer
	binio.WriteWordLE(&multi, 1)
	for e := 0; e < gsTableSize; e++ {
		v := uint16(0)
		switch e {
		case 0xA:
			v = 0x0F00
		case 0xB:
			v = 0x00F0
		}
		binio.WriteWordLE(&multi, v)
	}
	file := gsFile(
		gsBlock{"MAIN", gsMain(0, 8, 0, []byte{0x43, 0xAB})},
		gsBlock{"MULTIPAL", multi.Bytes()},
	)
	ctx, pic := load(t, gsCodec{}, "a.shr", file)
	if ctx.BitsPerPixel != 24 {
		t.Fatalf("expected(24) != actual(%d)", ctx.BitsPerPixel)
	}
	img := pic.Image(0)
	if c := img.At(0, 0); c != (color.NRGBA{R: 0xFF, A: 0xFF}) {
		t.Fatalf("expected(red) != actual(%v)", c)
	}
	if c := img.At(1, 0); c != (color.NRGBA{G: 0xFF, A: 0xFF}) {
		t.Fatalf("expected(green) != actual(%v)", c)
	}
}

func TestGSBlocksMustChain(t *testing.T) {
	file := gsFile(gsBlock{"MAIN", gsMain(0, 8, 0, []byte{0x43, 0xAB})})
	file = append(file, 0, 0)
	if _, err := walkGSBlocks(file); err == nil {
		t.Fatal("expected trailing bytes to be rejected")
	}
}
