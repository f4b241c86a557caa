package docs

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PreviewElement is the custom element embedding a live preview in
// documentation.
const PreviewElement = "preview"

// ModelPathAttr moves from a preview element into its iframe's query string.
const ModelPathAttr = "modelpath"

// RewritePreviews replaces the enclosing element of every <preview> in
// fragment with an <iframe> pointing at the sibling preview route. The
// attributes of the first <preview> in that element are copied onto the
// iframe, except modelpath, which becomes the modelPath query parameter. A
// <preview> with no enclosing element is replaced itself.
func RewritePreviews(fragment string) (string, error) {
	container := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), container)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}

	// Collect first so replacements don't disturb the traversal.
	var previews []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == PreviewElement {
			previews = append(previews, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)

	replaced := make(map[*html.Node]bool)
	for _, preview := range previews {
		target := preview.Parent
		if target == nil {
			continue
		}
		if target == container {
			target = preview
		}
		if replaced[target] || detached(target, container) {
			continue
		}
		replaced[target] = true

		iframe := Iframe(preview)
		target.Parent.InsertBefore(iframe, target)
		target.Parent.RemoveChild(target)
	}

	var b strings.Builder
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// detached reports whether n has been removed from the tree rooted at root,
// which happens to previews nested inside an already replaced element.
func detached(n, root *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return false
		}
	}
	return true
}

// Iframe builds the iframe standing in for preview.
func Iframe(preview *html.Node) *html.Node {
	iframe := &html.Node{Type: html.ElementNode, Data: "iframe", DataAtom: atom.Iframe}

	query := url.Values{}
	for _, attr := range preview.Attr {
		switch strings.ToLower(attr.Key) {
		case ModelPathAttr:
			if attr.Val != "" {
				query.Set("modelPath", attr.Val)
			}
		case "src":
		default:
			iframe.Attr = append(iframe.Attr, html.Attribute{Namespace: attr.Namespace, Key: attr.Key, Val: attr.Val})
		}
	}

	src := "./preview"
	if len(query) > 0 {
		src += "?" + query.Encode()
	}
	iframe.Attr = append(iframe.Attr, html.Attribute{Key: "src", Val: src})

	return iframe
}
