package codec

import (
	"io"
	"strings"
)

// codecs is probed in this order by Detect. Formats with a real signature
// come first, the size and extension heuristics last.
var codecs = []Codec{
	gifCodec{},
	bmpCodec{},
	icoCodec{},
	iffCodec{},
	infoCodec{},
	flicCodec{},
	grobCodec{},
	gsCodec{},
	pcxCodec{},
	scxCodec{},
	mjhCodec{},
	scrCodec{},
	gosCodec{},
	cm5Codec{},
	pphCodec{},
	pi1Codec{},
	neoCodec{},
	hgrCodec{},
	dhgrCodec{},
	celCodec{},
	palCodec{},
}

// All returns the registered codecs in probing order.
func All() []Codec {
	out := make([]Codec, len(codecs))
	copy(out, codecs)
	return out
}

func Lookup(f Format) (Codec, error) {
	for _, c := range codecs {
		if c.Format() == f {
			return c, nil
		}
	}
	return nil, ErrUnknownFormat
}

// ByExtension returns the codecs claiming ext, with or without its dot.
func ByExtension(ext string) []Codec {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var out []Codec
	for _, c := range codecs {
		for _, e := range c.Extensions() {
			if e == ext {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Detect returns the first codec whose Test accepts r. When none does the
// error is a KindFormatMismatch.
func Detect(ctx *Context, r io.ReadSeeker) (Codec, error) {
	for _, c := range codecs {
		if !c.Capabilities().Has(CanLoad) {
			continue
		}
		err := Test(c, ctx, r)
		if err == nil {
			ctx.debug("detected", "codec", c.Name())
			return c, nil
		}
		if e, ok := err.(*Error); ok && e.Err != nil {
			ctx.debug("rejected", "codec", c.Name(), "reason", e.Err)
		}
	}
	return nil, &Error{Kind: KindFormatMismatch, Err: ErrUnknownFormat}
}
