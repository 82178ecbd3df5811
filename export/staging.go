package export

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"

	"github.com/hazyhaar/cardgen/card"
)

// stageID names the staging container element inside the capture document.
const stageID = "exportStage"

// buildStagingDoc assembles the standalone document the rasterizer captures:
// the card stylesheet, the desktop override layer, and a staging container
// at the exact target size holding the prepared clone. The container paints
// the theme background itself and bakes the accent bar in as a bottom
// border, so the footer bar survives even if the clone's own border is lost.
// The document exists only for the duration of one capture and is never
// part of any visible page.
func buildStagingDoc(clone *html.Node, s card.State, css string) (string, error) {
	var markup bytes.Buffer
	if err := html.Render(&markup, clone); err != nil {
		return "", fmt.Errorf("export: render clone: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">\n<style>\n")
	b.WriteString(css)
	b.WriteString("\n</style>\n<style id=\"exportOverrides\">\n")
	b.WriteString(overrideStylesheet())
	b.WriteString("</style>\n</head>\n<body style=\"margin: 0;\">\n")
	fmt.Fprintf(&b,
		`<div id=%q style="position: relative; width: %dpx; height: %dpx; overflow: hidden; background-color: %s; border-bottom: %s solid %s;">`,
		stageID, TargetWidth, TargetHeight, s.Theme.Background, px(baseAccentBar), s.Theme.Accent)
	b.WriteString("\n")
	b.Write(markup.Bytes())
	b.WriteString("\n</div>\n</body></html>\n")
	return b.String(), nil
}
