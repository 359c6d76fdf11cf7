package compression

import (
	"bytes"
	"testing"
)

type brTestCase struct {
	len   uint
	value uint16
}

func runBrTest(t *testing.T, data []byte, cases []brTestCase) {
	br := newLSBReader(bytes.NewReader(data))

	for i, tCase := range cases {
		val, err := br.read(tCase.len)
		if err != nil {
			t.Fatal(err)
		}
		if tCase.value != val {
			t.Fatalf("%d: expected(%d) != actual(%d)", i, tCase.value, val)
		}
	}
}

func TestLSBReader(t *testing.T) {
	runBrTest(
		t,
		[]byte{0x8C, 0x2D, 0x99},
		[]brTestCase{
			{3, 4},
			{3, 1},
			{4, 6},
			{9, 0x4B},
			{5, 0x13},
		},
	)
}

func TestLSBReaderTruncated(t *testing.T) {
	br := newLSBReader(bytes.NewReader([]byte{0xFF}))
	if _, err := br.read(4); err != nil {
		t.Fatal(err)
	}
	if _, err := br.read(9); err == nil {
		t.Fatal("expected an error reading past the end")
	}
	if _, err := br.read(17); err != errBitOverflow {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestLSBWriterMirrorsReader(t *testing.T) {
	var buf bytes.Buffer
	bw := &lsbWriter{w: &buf}
	codes := []brTestCase{{3, 4}, {3, 1}, {4, 6}, {9, 0x10B}, {12, 0xABC}, {1, 1}}
	for _, c := range codes {
		if err := bw.write(c.value, c.len); err != nil {
			t.Fatal(err)
		}
	}
	if err := bw.flush(); err != nil {
		t.Fatal(err)
	}
	runBrTest(t, buf.Bytes(), codes)
}
