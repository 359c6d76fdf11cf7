package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/32bitkid/retrofmt/screen"
)

func TestMJHRoundTrip(t *testing.T) {
	src := source(320, 200, pattern(4))
	for i := 0; i < 16; i++ {
		src.Palette[i] = cpcFirmware(uint8(i + 3))
	}
	data := save(t, mjhCodec{}, src)
	if string(data[:3]) != mjhMagic || data[3] != 1 {
		t.Fatalf("expected(MJH mode 1) != actual(%q)", data[:4])
	}
	if len(data) >= mjhHeaderSize+cpcScreenSize {
		t.Fatalf("expected packed data, got %d bytes", len(data))
	}

	dst, pic := load(t, mjhCodec{}, "pic.mjh", data)
	samePixels(t, src.Canvas, pic)
	samePalette(t, &src.Palette, &dst.Palette, 16)
}

func TestMJHRunsOverflow(t *testing.T) {
	data := append([]byte(mjhMagic), 0)
	data = append(data, make([]byte, 16)...)
	// 65 runs of 256 bytes, one too many for the screen
	data = append(data, make([]byte, 65*2)...)
	err := Load(mjhCodec{}, &Context{Canvas: &screen.Picture{}}, bytes.NewReader(data))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected(%v) != actual(%v)", ErrMalformed, err)
	}
}

func TestMJHNeedsStandardScreen(t *testing.T) {
	var buf bytes.Buffer
	err := Save(mjhCodec{}, source(256, 200, pattern(4)), &buf)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected(%v) != actual(%v)", ErrUnsupported, err)
	}
}
