package export

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// overrideStylesheet builds the desktop-forcing rule set injected into the
// staging document. Every rule carries !important so it outranks the
// responsive block in the card stylesheet. The same values are re-asserted
// inline by applyDesktopInline, a deliberate redundancy for rasterizers that
// drop injected stylesheets.
func overrideStylesheet() string {
	var b strings.Builder
	rule := func(sel string, decls ...string) {
		b.WriteString("#exportStage " + sel + " {")
		for _, d := range decls {
			b.WriteString(" " + d + " !important;")
		}
		b.WriteString(" }\n")
	}

	rule(".card",
		fmt.Sprintf("width: %dpx", TargetWidth),
		fmt.Sprintf("height: %dpx", TargetHeight),
		"max-width: none",
		"aspect-ratio: auto",
		"margin: 0",
		"border-radius: "+px(baseCardRadius),
		"border-bottom-width: "+px(baseAccentBar),
	)
	rule(".card-header",
		"flex-direction: row",
		"align-items: center",
		"gap: "+px(baseHeaderGap),
		fmt.Sprintf("padding: %s %s 0", px(baseHeaderPadding), px(baseHeaderPadding)),
	)
	rule(".card-info", "order: 0")
	rule(".profile-pic",
		"width: "+px(baseAvatarSize),
		"height: "+px(baseAvatarSize),
		"border-width: "+px(baseAvatarBorder),
		"border-radius: 50%",
	)
	rule(".username", "font-size: "+px(baseUsernameFont))
	rule(".repo-name", "font-size: "+px(baseRepoFont))
	rule(".card-body", fmt.Sprintf("padding: 0 %s", px(baseBodyPadding)))
	rule(".project-logo",
		"width: "+px(baseLogoSize),
		"height: "+px(baseLogoSize),
	)
	rule(".project-name", "font-size: "+px(baseTitleFont))
	rule(".project-description",
		"font-size: "+px(baseDescFont),
		"max-height: "+px(baseDescMaxHeight),
	)
	rule(".card-footer",
		"height: "+px(baseFooterHeight),
		fmt.Sprintf("padding: 0 %s", px(baseHeaderPadding)),
	)
	rule(".provider-logo", "font-size: "+px(baseProviderFont))

	return b.String()
}

// inlineOverrides maps known child element ids to the inline declarations
// that re-assert the canonical desktop layout on the clone.
func inlineOverrides() map[string]string {
	return map[string]string{
		"githubCard": strings.Join([]string{
			fmt.Sprintf("width: %dpx", TargetWidth),
			fmt.Sprintf("height: %dpx", TargetHeight),
			"max-width: none",
			"aspect-ratio: auto",
			"margin: 0",
			"border-radius: " + px(baseCardRadius),
			"border-bottom-width: " + px(baseAccentBar),
		}, "; ") + ";",
		"cardHeader": fmt.Sprintf(
			"flex-direction: row; align-items: center; gap: %s; padding: %s %s 0;",
			px(baseHeaderGap), px(baseHeaderPadding), px(baseHeaderPadding)),
		"cardInfo": "order: 0;",
		"profilePic": fmt.Sprintf(
			"width: %s; height: %s; border-width: %s; border-radius: 50%%;",
			px(baseAvatarSize), px(baseAvatarSize), px(baseAvatarBorder)),
		"displayUsername":    "font-size: " + px(baseUsernameFont) + ";",
		"displayRepoName":    "font-size: " + px(baseRepoFont) + ";",
		"cardBody":           fmt.Sprintf("padding: 0 %s;", px(baseBodyPadding)),
		"projectLogo":        fmt.Sprintf("width: %s; height: %s;", px(baseLogoSize), px(baseLogoSize)),
		"displayProjectName": "font-size: " + px(baseTitleFont) + ";",
		"displayDescription": fmt.Sprintf("font-size: %s; max-height: %s;", px(baseDescFont), px(baseDescMaxHeight)),
		"cardFooter":         fmt.Sprintf("height: %s; padding: 0 %s;", px(baseFooterHeight), px(baseHeaderPadding)),
		"providerLogo":       "font-size: " + px(baseProviderFont) + ";",
	}
}

// forceDesktopLayout applies the inline re-assertion layer and repairs the
// structural order of flex children on the clone.
func forceDesktopLayout(clone *html.Node) {
	for id, decls := range inlineOverrides() {
		if n := findByID(clone, id); n != nil {
			appendStyle(n, decls)
		}
	}

	// Responsive rules can visually reorder flex children via `order`.
	// Style overrides alone do not undo that reliably under every
	// rasterizer, so the structure is corrected directly.
	ensureOrder(findByID(clone, "cardHeader"), "profilePic", "cardInfo")
	ensureOrder(findByID(clone, "cardInfo"), "displayUsername", "displayRepoName")
}

// ensureOrder makes the child with firstID precede the child with secondID
// under parent, moving the first node when needed.
func ensureOrder(parent *html.Node, firstID, secondID string) {
	if parent == nil {
		return
	}
	var first, second *html.Node
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch attrVal(c, "id") {
		case firstID:
			first = c
		case secondID:
			second = c
		}
	}
	if first == nil || second == nil {
		return
	}
	for c := second.NextSibling; c != nil; c = c.NextSibling {
		if c == first {
			parent.RemoveChild(first)
			parent.InsertBefore(first, second)
			return
		}
	}
}
