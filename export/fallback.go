package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/hazyhaar/cardgen/card"
	"github.com/hazyhaar/cardgen/render"
)

// fallbackFont parses the bundled typeface once.
var fallbackFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// renderFallback draws the card directly when no browser rasterizer is
// reachable. It reproduces the layout geometry from the scale table with a
// bundled typeface. Logo and background data URLs are decoded and drawn;
// the remote avatar is replaced by a placeholder ring since the fallback
// performs no network I/O.
func renderFallback(s card.State) (image.Image, error) {
	ft, err := fallbackFont()
	if err != nil {
		return nil, fmt.Errorf("export: parse fallback font: %w", err)
	}
	face := func(size int) (font.Face, error) {
		return opentype.NewFace(ft, &opentype.FaceOptions{
			Size:    float64(scaled(size)),
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}

	dc := gg.NewContext(TargetWidth, TargetHeight)
	dc.SetHexColor(s.Theme.Background)
	dc.Clear()

	if s.Background != nil {
		if img, err := decodeDataURL(s.Background.DataURL); err == nil {
			drawCover(dc, img)
			r, g, b, ok := parseHexColor(s.Theme.Background)
			if ok {
				dc.SetRGBA255(r, g, b, int(s.OverlayOpacity*255))
				dc.DrawRectangle(0, 0, TargetWidth, TargetHeight)
				dc.Fill()
			}
		}
	}

	// Accent footer bar.
	bar := float64(scaled(baseAccentBar))
	dc.SetHexColor(s.Theme.Accent)
	dc.DrawRectangle(0, TargetHeight-bar, TargetWidth, bar)
	dc.Fill()

	pad := float64(scaled(baseHeaderPadding))
	avatar := float64(scaled(baseAvatarSize))

	// Avatar placeholder ring.
	dc.SetHexColor(s.Theme.Border)
	dc.SetLineWidth(float64(scaled(baseAvatarBorder)))
	dc.DrawCircle(pad+avatar/2, pad+avatar/2, avatar/2)
	dc.Stroke()

	handle := s.Handle
	if handle == "" {
		handle = render.PlaceholderHandle
	}
	repo := s.RepoLabel
	if repo == "" {
		repo = render.PlaceholderRepo
	}

	dc.SetHexColor(s.Theme.Accent)
	textX := pad + avatar + float64(scaled(baseHeaderGap))

	f, err := face(baseUsernameFont)
	if err != nil {
		return nil, fmt.Errorf("export: fallback face: %w", err)
	}
	dc.SetFontFace(f)
	dc.DrawStringAnchored(handle, textX, pad+avatar*0.35, 0, 0.5)

	if f, err = face(baseRepoFont); err == nil {
		dc.SetFontFace(f)
		dc.DrawStringAnchored("/"+repo, textX, pad+avatar*0.75, 0, 0.5)
	}

	centerX := float64(TargetWidth) / 2
	titleY := float64(TargetHeight) * 0.45

	if s.Logo != nil {
		if img, err := decodeDataURL(s.Logo.DataURL); err == nil {
			logo := float64(scaled(baseLogoSize))
			drawContain(dc, img, centerX, titleY-logo*0.9, logo)
			titleY += logo * 0.35
		}
	}

	if f, err = face(baseTitleFont); err == nil {
		dc.SetFontFace(f)
		dc.DrawStringAnchored(s.Title, centerX, titleY, 0.5, 0.5)
	}

	if s.Description != "" {
		if f, err = face(baseDescFont); err == nil {
			dc.SetFontFace(f)
			width := float64(TargetWidth) - 2*float64(scaled(baseBodyPadding))*2
			dc.DrawStringWrapped(s.Description, centerX, titleY+float64(scaled(baseTitleFont)),
				0.5, 0, width, 1.4, gg.AlignCenter)
		}
	}

	if f, err = face(baseProviderFont); err == nil {
		dc.SetFontFace(f)
		dc.DrawStringAnchored("GitHub", float64(TargetWidth)-pad, float64(TargetHeight)-float64(scaled(baseFooterHeight))/2, 1, 0.5)
	}

	return dc.Image(), nil
}

// drawCover paints img over the full canvas with cover semantics: scaled to
// fill, centered, overflow cropped.
func drawCover(dc *gg.Context, img image.Image) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	scale := math.Max(
		float64(TargetWidth)/float64(b.Dx()),
		float64(TargetHeight)/float64(b.Dy()),
	)
	dc.Push()
	dc.Translate(
		(float64(TargetWidth)-float64(b.Dx())*scale)/2,
		(float64(TargetHeight)-float64(b.Dy())*scale)/2,
	)
	dc.Scale(scale, scale)
	dc.DrawImage(img, 0, 0)
	dc.Pop()
}

// drawContain paints img centered at (cx, cy) fitted inside a size×size box.
func drawContain(dc *gg.Context, img image.Image, cx, cy, size float64) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	scale := math.Min(size/float64(b.Dx()), size/float64(b.Dy()))
	dc.Push()
	dc.Translate(cx-float64(b.Dx())*scale/2, cy-float64(b.Dy())*scale/2)
	dc.Scale(scale, scale)
	dc.DrawImage(img, 0, 0)
	dc.Pop()
}

// decodeDataURL decodes a base64 data URL into an image.
func decodeDataURL(dataURL string) (image.Image, error) {
	_, payload, ok := strings.Cut(dataURL, ",")
	if !ok {
		return nil, fmt.Errorf("export: malformed data url")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("export: decode data url: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("export: decode image: %w", err)
	}
	return img, nil
}
