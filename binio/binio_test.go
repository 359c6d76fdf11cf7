package binio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	for v := 0; v < 1<<16; v++ {
		buf.Reset()
		if err := WriteWordLE(&buf, uint16(v)); err != nil {
			t.Fatal(err)
		}
		if err := WriteWordBE(&buf, uint16(v)); err != nil {
			t.Fatal(err)
		}
		le, err := ReadWordLE(&buf)
		if err != nil {
			t.Fatal(err)
		}
		be, err := ReadWordBE(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if int(le) != v || int(be) != v {
			t.Fatalf("expected(%d) != actual(%d, %d)", v, le, be)
		}
	}
}

func TestDwordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	// every bit pattern of each byte lane, plus a stride over the full range
	values := []uint32{0, 1, 0xFFFFFFFF, 0x80000000, 0x12345678}
	for v := uint64(0); v < 1<<32; v += 0x10001 {
		values = append(values, uint32(v))
	}
	for _, v := range values {
		buf.Reset()
		WriteDwordLE(&buf, v)
		WriteDwordBE(&buf, v)
		le, _ := ReadDwordLE(&buf)
		be, err := ReadDwordBE(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if le != v || be != v {
			t.Fatalf("expected(%#x) != actual(%#x, %#x)", v, le, be)
		}
	}
}

func TestEndianness(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56, 0x78}
	if v, _ := ReadWordLE(bytes.NewReader(data)); v != 0x3412 {
		t.Fatalf("expected(%#x) != actual(%#x)", 0x3412, v)
	}
	if v, _ := ReadWordBE(bytes.NewReader(data)); v != 0x1234 {
		t.Fatalf("expected(%#x) != actual(%#x)", 0x1234, v)
	}
	if v, _ := ReadDwordLE(bytes.NewReader(data)); v != 0x78563412 {
		t.Fatalf("expected(%#x) != actual(%#x)", 0x78563412, v)
	}
	if v, _ := ReadDwordBE(bytes.NewReader(data)); v != 0x12345678 {
		t.Fatalf("expected(%#x) != actual(%#x)", 0x12345678, v)
	}
}

func TestShortRead(t *testing.T) {
	if _, err := ReadDwordLE(bytes.NewReader([]byte{1, 2})); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
	if _, err := ReadWordBE(bytes.NewReader(nil)); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if _, err := ReadByte(bytes.NewReader(nil)); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

type limitedWriter struct{ n int }

func (w *limitedWriter) Write(p []byte) (int, error) {
	if len(p) > w.n {
		n := w.n
		w.n = 0
		return n, nil
	}
	w.n -= len(p)
	return len(p), nil
}

func TestShortWrite(t *testing.T) {
	w := &limitedWriter{n: 3}
	if err := WriteDwordBE(w, 1); err != io.ErrShortWrite {
		t.Fatalf("expected short write, got %v", err)
	}
}

func TestFileLengthKeepsPosition(t *testing.T) {
	r := bytes.NewReader(make([]byte, 100))
	r.Seek(42, io.SeekStart)
	n, err := FileLength(r)
	if err != nil {
		t.Fatal(err)
	}
	if n != 100 {
		t.Fatalf("expected(%d) != actual(%d)", 100, n)
	}
	if pos, _ := r.Seek(0, io.SeekCurrent); pos != 42 {
		t.Fatalf("expected(%d) != actual(%d)", 42, pos)
	}
}

func TestSkip(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2, 3, 4})
	if err := Skip(r, 3); err != nil {
		t.Fatal(err)
	}
	if b, _ := ReadByte(r); b != 4 {
		t.Fatalf("expected(4) != actual(%d)", b)
	}
	if err := Skip(io.LimitReader(bytes.NewReader([]byte{1}), 1), 2); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}

func TestFindSidecar(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "SCREEN.SCR")
	os.WriteFile(main, []byte{0}, 0644)
	os.WriteFile(filepath.Join(dir, "screen.pal"), []byte{0}, 0644)

	path, ok := FindSidecar(main, "PAL")
	if !ok {
		t.Fatal("expected to find the palette sidecar")
	}
	if filepath.Base(path) != "screen.pal" {
		t.Fatalf("unexpected sidecar %q", path)
	}
	if _, ok := FindSidecar(main, "KIT"); ok {
		t.Fatal("found a sidecar that does not exist")
	}
	if got := SwapExt(main, "GO2"); got != filepath.Join(dir, "SCREEN.GO2") {
		t.Fatalf("unexpected swapped path %q", got)
	}
}

func TestSafeFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.bin")

	f, err := Create(target)
	if err != nil {
		t.Fatal(err)
	}
	WriteBytes(f, []byte("partial"))
	f.Abort()
	if _, err := os.Stat(target); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("aborted file should not exist: %v", err)
	}
	if names, _ := listDir(dir); len(names) != 0 {
		t.Fatalf("temporary files left behind: %v", names)
	}

	f, err = Create(target)
	if err != nil {
		t.Fatal(err)
	}
	WriteBytes(f, []byte("done"))
	if err := f.Commit(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "done" {
		t.Fatalf("expected(%q) != actual(%q)", "done", data)
	}
}

func TestReadBytesDoesNotTrustLength(t *testing.T) {
	// a length no file this small can hold must fail as a short read, not
	// as an allocation of that size
	_, err := ReadBytes(bytes.NewReader([]byte{1, 2, 3}), 1<<40)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("expected(%v) != actual(%v)", io.ErrUnexpectedEOF, err)
	}
	if _, err := ReadBytes(bytes.NewReader(nil), 1<<20); err != io.EOF {
		t.Fatalf("expected(%v) != actual(%v)", io.EOF, err)
	}
	if _, err := ReadBytes(bytes.NewReader(nil), -1); err != ErrNegativeLength {
		t.Fatalf("expected(%v) != actual(%v)", ErrNegativeLength, err)
	}

	data := make([]byte, 3*readChunk+5)
	for i := range data {
		data[i] = byte(i)
	}
	got, err := ReadBytes(bytes.NewReader(data), len(data))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("large read differs from its source")
	}
}
