package export

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var imgWithID = cascadia.MustCompile("img[id]")

// cloneTree deep-clones a DOM subtree. The live node is never mutated by the
// export pipeline; every transformation happens on the clone.
func cloneTree(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneTree(ch))
	}
	return c
}

// refreshImageSources re-copies every img src from the live subtree into the
// clone, matched by id. A clone alone can carry a stale src when the live
// image was swapped by reference after attachment.
func refreshImageSources(clone, live *html.Node) {
	for _, img := range cascadia.QueryAll(clone, imgWithID) {
		id := attrVal(img, "id")
		src := findByID(live, id)
		if src == nil {
			continue
		}
		if v := attrVal(src, "src"); v != "" {
			setAttr(img, "src", v)
		}
	}
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// appendStyle appends declarations to an element's inline style. Inline
// values re-assert what the override stylesheet already demands, so the
// canonical layout survives rasterizers that ignore injected stylesheets.
func appendStyle(n *html.Node, decls string) {
	cur := strings.TrimSpace(attrVal(n, "style"))
	if cur != "" && !strings.HasSuffix(cur, ";") {
		cur += ";"
	}
	if cur != "" {
		cur += " "
	}
	setAttr(n, "style", cur+decls)
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attrVal(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attrVal(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}
