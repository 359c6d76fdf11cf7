package compression

import (
	"bytes"
	"testing"
)

func TestUnpackPixels(t *testing.T) {
	tests := []struct {
		bpp  uint
		src  []byte
		want []uint8
	}{
		{1, []byte{0xA5}, []uint8{1, 0, 1, 0, 0, 1, 0, 1}},
		{2, []byte{0x1B}, []uint8{0, 1, 2, 3}},
		{4, []byte{0x12, 0xF0}, []uint8{1, 2, 0xF}},
		{8, []byte{7, 200}, []uint8{7, 200}},
	}
	for _, tt := range tests {
		got, err := UnpackPixels(tt.src, tt.bpp, len(tt.want))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Fatalf("bpp %d: expected(%v) != actual(%v)", tt.bpp, tt.want, got)
		}
		packed, err := PackPixels(got, tt.bpp)
		if err != nil {
			t.Fatal(err)
		}
		if tt.bpp != 4 && !bytes.Equal(packed, tt.src) {
			t.Fatalf("bpp %d: expected(% x) != actual(% x)", tt.bpp, tt.src, packed)
		}
	}
}

func TestUnpackPixelsShort(t *testing.T) {
	got, err := UnpackPixels([]byte{0xFF}, 4, 3)
	if err == nil {
		t.Fatal("expected an error reading past the source")
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pixels before the error, got %d", len(got))
	}
	if _, err := UnpackPixels(nil, 3, 1); err != ErrPixelDepth {
		t.Fatalf("expected depth error, got %v", err)
	}
}

func TestUnpackBits1(t *testing.T) {
	got, err := UnpackBits1([]byte{0x81}, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !got[0] || got[1] || !got[7] {
		t.Fatalf("unexpected flags %v", got)
	}
}

func TestPlanes(t *testing.T) {
	px := []uint8{0, 1, 2, 3, 4, 5, 6, 7, 7, 0}
	planes := [][]byte{make([]byte, 2), make([]byte, 2), make([]byte, 2)}
	ToPlanes(px, planes)
	if planes[0][0] != 0x55 || planes[1][0] != 0x33 || planes[2][0] != 0x0F {
		t.Fatalf("unexpected planes % x", planes)
	}
	back := make([]uint8, len(px))
	Planes(planes, len(px), back)
	if !bytes.Equal(back, px) {
		t.Fatalf("expected(%v) != actual(%v)", px, back)
	}
}
