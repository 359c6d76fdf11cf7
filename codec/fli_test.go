package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/32bitkid/retrofmt/screen"
)

func fliChunk(kind uint16, data []byte) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint32(6+len(data)))
	binary.Write(&b, binary.LittleEndian, kind)
	b.Write(data)
	return b.Bytes()
}

func fliFrameBlock(delay uint16, chunks ...[]byte) []byte {
	body := make([]byte, 10)
	binary.LittleEndian.PutUint16(body[0:], uint16(len(chunks)))
	binary.LittleEndian.PutUint16(body[2:], delay)
	for _, ch := range chunks {
		body = append(body, ch...)
	}
	return fliChunk(fliFrameMagic, body)
}

// testFLI is a 4x2, two frame animation: a 64 level palette with a
// byte-run first frame, then a line delta.
func testFLI() []byte {
	frames := [][]byte{
		fliFrameBlock(0,
			fliChunk(fliColor64, []byte{1, 0, 0, 2, 63, 0, 0, 0, 63, 0}),
			fliChunk(fliBRun, []byte{1, 4, 1, 2, 0xFE, 0, 1, 2, 1}),
		),
		fliFrameBlock(0,
			fliChunk(fliLC, []byte{1, 0, 1, 0, 1, 2, 1, 2}),
		),
	}
	hdr := make([]byte, fliHeaderSize)
	le := binary.LittleEndian
	le.PutUint16(hdr[4:], fliMagic)
	le.PutUint16(hdr[6:], uint16(len(frames)))
	le.PutUint16(hdr[8:], 4)
	le.PutUint16(hdr[10:], 2)
	le.PutUint16(hdr[12:], 8)
	le.PutUint16(hdr[16:], 5)
	out := hdr
	for _, f := range frames {
		out = append(out, f...)
	}
	le.PutUint32(out[0:], uint32(len(out)))
	return out
}

func TestFLIFrames(t *testing.T) {
	data := testFLI()
	if len(data) != 205 {
		t.Fatalf("expected(205) != actual(%d)", len(data))
	}
	ctx, pic := load(t, flicCodec{}, "a.fli", data)
	if pic.LayerCount() != 2 || pic.Mode() != screen.ModeAnimation {
		t.Fatalf("expected 2 animation frames, got %d (%v)", pic.LayerCount(), pic.Mode())
	}
	if ctx.Palette[0] != (screen.RGB{R: 0xFF}) || ctx.Palette[1] != (screen.RGB{G: 0xFF}) {
		t.Fatalf("expected red and green, got %v %v", ctx.Palette[0], ctx.Palette[1])
	}

	want := [2][2][4]uint8{
		{{1, 1, 1, 1}, {0, 1, 1, 1}},
		{{1, 1, 1, 1}, {0, 1, 2, 1}},
	}
	for n, frame := range want {
		_ = pic.SetLayer(n)
		if d := pic.FrameDuration(); d != 71 {
			t.Fatalf("frame %d: expected(71) != actual(%d)", n, d)
		}
		for y, row := range frame {
			for x, e := range row {
				if c := pic.GetPixel(x, y); c != e {
					t.Fatalf("frame %d (%d,%d): expected(%d) != actual(%d)", n, x, y, e, c)
				}
			}
		}
	}
}

func TestFLIFrameDelay(t *testing.T) {
	data := testFLI()
	// the second frame carries its own delay
	binary.LittleEndian.PutUint16(data[fliHeaderSize+47+6+2:], 250)
	_, pic := load(t, flicCodec{}, "a.fli", data)
	_ = pic.SetLayer(1)
	if d := pic.FrameDuration(); d != 250 {
		t.Fatalf("expected(250) != actual(%d)", d)
	}
}

func TestFLISS2(t *testing.T) {
	f := &fliFrame{width: 4, height: 3, pix: make([]byte, 12), palette: &screen.Palette{}}
	// one line: skip a line, then two words at x=0 and a repeated word
	data := []byte{
		1, 0,
		0xFF, 0xFF,
		2, 0,
		0, 1, 7, 8,
		0, 0xFF, 9, 10,
	}
	if err := f.ss2(bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	if line := f.line(1); !bytes.Equal(line, []byte{7, 8, 9, 10}) {
		t.Fatalf("expected(07 08 09 0a) != actual(% x)", line)
	}
	if line := f.line(0); !bytes.Equal(line, make([]byte, 4)) {
		t.Fatalf("expected line 0 untouched, got % x", line)
	}
}

func TestFLIRejectsDepth(t *testing.T) {
	data := testFLI()
	binary.LittleEndian.PutUint16(data[12:], 16)
	if err := Test(flicCodec{}, &Context{}, bytes.NewReader(data)); err == nil {
		t.Fatal("expected a 16 bit animation to be rejected")
	}
}

func TestFLISizesMustFit(t *testing.T) {
	tests := []struct {
		name   string
		offset int
	}{
		{"frame", fliHeaderSize},
		// the line delta chunk of the second frame
		{"chunk", fliHeaderSize + 47 + 16},
	}
	for _, tt := range tests {
		data := testFLI()
		binary.LittleEndian.PutUint32(data[tt.offset:], 0x7FFFFFF0)
		ctx := &Context{FileName: "a.fli", Canvas: &screen.Picture{}}
		err := Load(flicCodec{}, ctx, bytes.NewReader(data))
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("%s: expected(%v) != actual(%v)", tt.name, ErrTruncated, err)
		}
	}
}
