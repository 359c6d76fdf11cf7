package codec

import (
	"testing"

	"github.com/32bitkid/retrofmt/screen"
)

// testHGR is a page with a few lit dots on the first three lines.
func testHGR() []byte {
	mem := make([]byte, hgrSize)
	mem[0] = 0x01     // dot 0
	mem[1] = 0x03     // dots 7 and 8
	mem[0x400] = 0x81 // line 1, dot 0, second palette
	mem[0x800] = 0x05 // line 2, dots 0 and 2
	return mem
}

func TestHGRLineOffsets(t *testing.T) {
	tests := []struct{ y, want int }{
		{0, 0}, {1, 0x400}, {8, 0x80}, {64, 0x28}, {191, 0x1FD0},
	}
	for _, tt := range tests {
		if o := hgrLine(tt.y); o != tt.want {
			t.Fatalf("line %d: expected(%#x) != actual(%#x)", tt.y, tt.want, o)
		}
	}
}

func TestHGRColours(t *testing.T) {
	_, pic := load(t, hgrCodec{}, "a.hgr", testHGR())
	tests := []struct {
		x, y int
		want uint8
	}{
		{0, 0, hgrPurple},
		{1, 0, hgrBlack},
		{7, 0, hgrWhite},
		{8, 0, hgrWhite},
		{9, 0, hgrBlack},
		{0, 1, hgrBlue},
		{0, 2, hgrPurple},
		{1, 2, hgrPurple},
		{2, 2, hgrPurple},
	}
	for _, tt := range tests {
		if c := pic.GetPixel(tt.x, tt.y); c != tt.want {
			t.Fatalf("(%d,%d): expected(%d) != actual(%d)", tt.x, tt.y, tt.want, c)
		}
	}
}

func TestHGRShortPage(t *testing.T) {
	_, pic := load(t, hgrCodec{}, "a.hgr", testHGR()[:hgrShortSize])
	if pic.Width() != hgrWidth || pic.Height() != hgrLines {
		t.Fatalf("expected(280x192) != actual(%dx%d)", pic.Width(), pic.Height())
	}
	if c := pic.GetPixel(7, 0); c != hgrWhite {
		t.Fatalf("expected(%d) != actual(%d)", hgrWhite, c)
	}
}

func TestDHGRColourCells(t *testing.T) {
	mem := make([]byte, dhgrSize)
	mem[0] = 0x01
	ctx, pic := load(t, dhgrCodec{}, "a.dhr", mem)
	if pic.Width() != dhgrCells || ctx.Ratio != screen.PixelWide {
		t.Fatalf("expected 140 wide cells, got %d (%v)", pic.Width(), ctx.Ratio)
	}
	if c := pic.GetPixel(0, 0); c != dhgrColor(1) || c != 2 {
		t.Fatalf("expected(2) != actual(%d)", c)
	}
}

func TestDHGRMixed(t *testing.T) {
	mem := make([]byte, dhgrSize)
	mem[0] = 0x8F       // aux: dots 0-3 lit, colour flag
	mem[hgrSize] = 0x01 // main: dot 7 lit, monochrome
	ctx, pic := load(t, dhgrCodec{}, "a.dhr", mem)
	if pic.Width() != 4*dhgrCells || ctx.Ratio != screen.PixelTall {
		t.Fatalf("expected 560 dots, got %d (%v)", pic.Width(), ctx.Ratio)
	}
	want := []uint8{15, 15, 15, 15, 1, 1, 1, 15, 0}
	for x, e := range want {
		if c := pic.GetPixel(x, 0); c != e {
			t.Fatalf("x=%d: expected(%d) != actual(%d)", x, e, c)
		}
	}
}

func TestDHGRRequiresExtension(t *testing.T) {
	ctx := &Context{FileName: "a.bin", FileSize: dhgrSize}
	if err := (dhgrCodec{}).Test(ctx, nil); err == nil {
		t.Fatal("expected a 16K .bin file to be rejected")
	}
}
