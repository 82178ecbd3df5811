package export

import (
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/cardgen/card"
)

// overlayID names the synthesized overlay node so tests and teardown checks
// can find it.
const overlayID = "exportOverlay"

// applyBackground composites the background image and legibility overlay
// onto the clone. The live preview darkens the photo with a ::before
// pseudo-element, which rasterizers do not capture, so the overlay becomes a
// real node inserted as the first child, with all content re-stacked above
// it. Without a background image the step is a no-op and the solid theme
// color shows through.
func applyBackground(clone *html.Node, s card.State) {
	if s.Background == nil {
		return
	}

	appendStyle(clone, fmt.Sprintf(
		"background-image: url('%s'); background-size: cover; background-position: center;",
		s.Background.DataURL))

	overlay := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
	}
	setAttr(overlay, "id", overlayID)
	setAttr(overlay, "style", fmt.Sprintf(
		"position: absolute; top: 0; right: 0; bottom: 0; left: 0; background-color: %s; opacity: %.2f; z-index: 0;",
		s.Theme.Background, s.OverlayOpacity))

	// Raise every existing child above the overlay before inserting it.
	for c := clone.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			appendStyle(c, "position: relative; z-index: 1;")
		}
	}
	clone.InsertBefore(overlay, clone.FirstChild)
}
