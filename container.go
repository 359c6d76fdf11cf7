package retrofmt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// MaxInflated caps the size of a decompressed picture held in memory.
const MaxInflated = 64 << 20

var ErrTooLarge = errors.New("retrofmt: decompressed file too large")

type DecompressFn func(io.Reader) (io.ReadCloser, error)
type CompressFn func(io.Writer) (io.WriteCloser, error)

// Container is a whole-file compression wrapped around a picture, such as
// the ".gz" of "title.pcx.gz".
type Container struct {
	Decompress DecompressFn
	Compress   CompressFn
}

// ContainerLUT maps a lower case extension, without the dot, to its
// container.
type ContainerLUT map[string]Container

var Containers = ContainerLUT{
	"gz": {
		Decompress: func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) },
		Compress:   func(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil },
	},
	"zst": {
		Decompress: func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
		Compress: func(w io.Writer) (io.WriteCloser, error) { return zstd.NewWriter(w) },
	},
	"xz": {
		Decompress: func(r io.Reader) (io.ReadCloser, error) {
			xr, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(xr), nil
		},
		Compress: func(w io.Writer) (io.WriteCloser, error) { return xz.NewWriter(w) },
	},
	"lzma": {
		Decompress: func(r io.Reader) (io.ReadCloser, error) {
			lr, err := lzma.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(lr), nil
		},
		Compress: func(w io.Writer) (io.WriteCloser, error) { return lzma.NewWriter(w) },
	},
}

// split strips a container extension from path. The container is nil when
// path names a plain file.
func (lut ContainerLUT) split(path string) (string, *Container) {
	ext := filepath.Ext(path)
	c, ok := lut[strings.ToLower(strings.TrimPrefix(ext, "."))]
	if !ok || len(ext) == len(path) {
		return path, nil
	}
	return strings.TrimSuffix(path, ext), &c
}

type source struct {
	io.ReadSeeker
	io.Closer
	name string
	size int64
}

// open returns a seekable view of path. Compressed files are inflated into
// memory and named after the file inside.
func (root Root) open(path string) (*source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	name, container := root.containers().split(path)
	if container == nil {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, err
		}
		if info.Size() == 0 {
			file.Close()
			return nil, ErrEmptySource
		}
		return &source{ReadSeeker: file, Closer: file, name: path, size: info.Size()}, nil
	}
	defer file.Close()

	dr, err := container.Decompress(file)
	if err != nil {
		return nil, fmt.Errorf("retrofmt: %s: %w", filepath.Base(path), err)
	}
	defer dr.Close()

	data, err := io.ReadAll(io.LimitReader(dr, MaxInflated+1))
	switch {
	case err != nil:
		return nil, fmt.Errorf("retrofmt: %s: %w", filepath.Base(path), err)
	case len(data) > MaxInflated:
		return nil, ErrTooLarge
	case len(data) == 0:
		return nil, ErrEmptySource
	}
	if root.Log != nil {
		root.Log.Debug("inflated", "file", path, "size", len(data))
	}
	return &source{ReadSeeker: bytes.NewReader(data), Closer: io.NopCloser(nil), name: name, size: int64(len(data))}, nil
}
