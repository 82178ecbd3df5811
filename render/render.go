// Package render projects the card state onto HTML: the live preview the
// browser shows, and the card subtree the export pipeline clones. Theme
// colors travel as CSS custom properties so the stylesheet, the preview, and
// the export staging document all read the same values.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"

	"github.com/hazyhaar/cardgen/card"
	"github.com/hazyhaar/cardgen/profile"
)

//go:embed templates/*.tmpl assets/*.css
var content embed.FS

// Placeholder copy shown before the user fills a field.
const (
	PlaceholderHandle = "username"
	PlaceholderRepo   = "repository-name"
)

// Renderer renders card state to HTML. Safe for concurrent use.
type Renderer struct {
	page     *template.Template
	cardTmpl *template.Template
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	css      string
}

// New creates a Renderer with the embedded templates and stylesheet.
func New() (*Renderer, error) {
	cardTmpl, err := template.ParseFS(content, "templates/card.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("render: parse card template: %w", err)
	}
	page, err := template.ParseFS(content, "templates/preview.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("render: parse preview template: %w", err)
	}
	css, err := content.ReadFile("assets/card.css")
	if err != nil {
		return nil, fmt.Errorf("render: read stylesheet: %w", err)
	}

	// The description supports a small Markdown subset. Raw HTML in the
	// source is never honored, and the rendered output is sanitized again
	// before being marked safe for the template.
	md := goldmark.New(goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()))

	policy := bluemonday.NewPolicy()
	policy.AllowStandardURLs()
	policy.AllowElements("p", "em", "strong", "code", "br")
	policy.AllowAttrs("href").OnElements("a")
	policy.RequireNoFollowOnLinks(true)

	return &Renderer{
		page:     page,
		cardTmpl: cardTmpl,
		md:       md,
		policy:   policy,
		css:      string(css),
	}, nil
}

// CSS returns the card stylesheet, including the responsive rules the export
// pipeline must override.
func (r *Renderer) CSS() string { return r.css }

// cardView is the template payload derived from a state snapshot.
type cardView struct {
	State         card.State
	Handle        string
	RepoLabel     string
	AvatarURL     string
	Description   template.HTML
	HasBackground bool
	StyleVars     template.CSS
}

func (r *Renderer) view(s card.State) cardView {
	v := cardView{
		State:         s,
		Handle:        s.Handle,
		RepoLabel:     s.RepoLabel,
		AvatarURL:     s.AvatarURL,
		HasBackground: s.Background != nil,
	}
	if v.Handle == "" {
		v.Handle = PlaceholderHandle
	}
	if v.RepoLabel == "" {
		v.RepoLabel = PlaceholderRepo
	}
	if v.AvatarURL == "" {
		v.AvatarURL = profile.DefaultAvatarURL
	}
	if s.Description != "" {
		v.Description = r.renderDescription(s.Description)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--accent-color: %s; --border-color: %s; --bg-color: %s; --bg-overlay-opacity: %.2f;",
		cssColor(s.Theme.Accent), cssColor(s.Theme.Border), cssColor(s.Theme.Background), s.OverlayOpacity)
	if s.Background != nil {
		fmt.Fprintf(&sb, " background-image: url('%s');", s.Background.DataURL)
	}
	v.StyleVars = template.CSS(sb.String())
	return v
}

// renderDescription converts Markdown to sanitized HTML.
func (r *Renderer) renderDescription(src string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		// Fall back to the escaped plain text.
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(r.policy.Sanitize(buf.String()))
}

// CardHTML renders the card fragment.
func (r *Renderer) CardHTML(s card.State) (string, error) {
	var buf bytes.Buffer
	if err := r.cardTmpl.Execute(&buf, r.view(s)); err != nil {
		return "", fmt.Errorf("render: card: %w", err)
	}
	return buf.String(), nil
}

// CardNode renders the card and parses it back into a DOM node, the form the
// export pipeline consumes. The returned node is the card element itself.
func (r *Renderer) CardNode(s card.State) (*html.Node, error) {
	fragment, err := r.CardHTML(s)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("render: parse card: %w", err)
	}
	node := findByID(doc, "githubCard")
	if node == nil {
		return nil, fmt.Errorf("render: card root not found in rendered fragment")
	}
	return node, nil
}

// PreviewDocument renders the full standalone preview page: stylesheet plus
// card fragment, used by the iframe preview and as the rasterizer's source
// of truth for live styling.
func (r *Renderer) PreviewDocument(s card.State) (string, error) {
	cardHTML, err := r.CardHTML(s)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = r.page.Execute(&buf, struct {
		CSS  template.CSS
		Card template.HTML
	}{
		CSS:  template.CSS(r.css),
		Card: template.HTML(cardHTML),
	})
	if err != nil {
		return "", fmt.Errorf("render: preview: %w", err)
	}
	return buf.String(), nil
}

// cssColor guards against template injection through a color value that
// somehow bypassed validation: anything not shaped like a hex color falls
// back to black.
func cssColor(v string) string {
	if len(v) == 0 || v[0] != '#' || len(v) > 7 {
		return "#000000"
	}
	for _, c := range v[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return "#000000"
		}
	}
	return v
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}
