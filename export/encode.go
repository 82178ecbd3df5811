package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	_ "image/gif" // data URL decoding

	"github.com/hazyhaar/cardgen/rasterize"
)

const jpegQuality = 95

// encodeImage serializes the fallback render. JPEG has no alpha channel, so
// the image is flattened onto the opaque theme background first.
func encodeImage(img image.Image, format rasterize.Format, themeBackground string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case rasterize.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("export: encode png: %w", err)
		}
	case rasterize.FormatJPEG:
		flat := flatten(img, themeBackground)
		if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("export: encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
	return buf.Bytes(), nil
}

// flatten composites img over a solid background.
func flatten(img image.Image, themeBackground string) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	r, g, bl, ok := parseHexColor(themeBackground)
	if !ok {
		r, g, bl = 0, 0, 0
	}
	draw.Draw(out, b, image.NewUniform(rgb(r, g, bl)), image.Point{}, draw.Src)
	draw.Draw(out, b, img, b.Min, draw.Over)
	return out
}

func rgb(r, g, b int) color.RGBA {
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}

func mimeFor(format rasterize.Format) string {
	if format == rasterize.FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

func extFor(format rasterize.Format) string {
	if format == rasterize.FormatJPEG {
		return "jpg"
	}
	return "png"
}

// parseHexColor parses a #rgb or #rrggbb color.
func parseHexColor(v string) (r, g, b int, ok bool) {
	hex := func(c byte) (int, bool) {
		switch {
		case c >= '0' && c <= '9':
			return int(c - '0'), true
		case c >= 'a' && c <= 'f':
			return int(c-'a') + 10, true
		case c >= 'A' && c <= 'F':
			return int(c-'A') + 10, true
		}
		return 0, false
	}
	if len(v) == 0 || v[0] != '#' {
		return 0, 0, 0, false
	}
	switch len(v) {
	case 4:
		for i, dst := range []*int{&r, &g, &b} {
			n, valid := hex(v[1+i])
			if !valid {
				return 0, 0, 0, false
			}
			*dst = n*16 + n
		}
		return r, g, b, true
	case 7:
		for i, dst := range []*int{&r, &g, &b} {
			hi, ok1 := hex(v[1+2*i])
			lo, ok2 := hex(v[2+2*i])
			if !ok1 || !ok2 {
				return 0, 0, 0, false
			}
			*dst = hi*16 + lo
		}
		return r, g, b, true
	}
	return 0, 0, 0, false
}
