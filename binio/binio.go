// Package binio implements the fixed-width integer reads and writes every
// picture codec is built on.
//
// All primitives report failure through their error result and never retry:
// a short read returns io.EOF when nothing at all could be read and
// io.ErrUnexpectedEOF otherwise, a short write returns io.ErrShortWrite.
package binio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var ErrNegativeLength = errors.New("binio: negative length")

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// ReadByte reads a single byte. If r is an io.ByteReader it is used directly.
func ReadByte(r io.Reader) (uint8, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var buf [1]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func ReadWordLE(r io.Reader) (uint16, error) {
	var buf [2]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func ReadWordBE(r io.Reader) (uint16, error) {
	var buf [2]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func ReadDwordLE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func ReadDwordBE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// readChunk bounds the up-front allocation of ReadBytes.
const readChunk = 64 << 10

// ReadBytes reads exactly n bytes into a freshly allocated slice. Large
// reads grow the slice as data arrives, so a bogus length from a damaged
// file fails with io.ErrUnexpectedEOF instead of allocating it.
func ReadBytes(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	if n <= readChunk {
		buf := make([]byte, n)
		if err := readFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	var buf bytes.Buffer
	buf.Grow(readChunk)
	copied, err := io.CopyN(&buf, r, int64(n))
	switch {
	case err == io.EOF && copied > 0:
		return nil, io.ErrUnexpectedEOF
	case err != nil:
		return nil, err
	}
	return buf.Bytes(), nil
}

// Skip discards n bytes, seeking when the reader allows it.
func Skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if s, ok := r.(io.Seeker); ok {
		_, err := s.Seek(n, io.SeekCurrent)
		return err
	}
	copied, err := io.CopyN(io.Discard, r, n)
	if err == io.EOF && copied > 0 {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func write(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

func WriteByte(w io.Writer, b uint8) error {
	if bw, ok := w.(io.ByteWriter); ok {
		return bw.WriteByte(b)
	}
	return write(w, []byte{b})
}

func WriteWordLE(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return write(w, buf[:])
}

func WriteWordBE(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return write(w, buf[:])
}

func WriteDwordLE(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return write(w, buf[:])
}

func WriteDwordBE(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return write(w, buf[:])
}

// WriteBytes writes buf in full.
func WriteBytes(w io.Writer, buf []byte) error {
	return write(w, buf)
}
