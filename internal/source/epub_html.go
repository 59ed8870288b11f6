package source

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// scanMarkupImages extracts image references from XHTML content: the
// src of <img> elements and the href/xlink:href of SVG <image>
// elements. External and data: URLs are ignored. The x/net/html parser
// tolerates the malformed markup real EPUBs contain.
func scanMarkupImages(data []byte) []string {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	var refs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.Img:
				if src := attrValue(n, "src"); src != "" {
					refs = append(refs, src)
				}
			case n.DataAtom == atom.Image || strings.EqualFold(n.Data, "image"):
				ref := attrValue(n, "xlink:href")
				if ref == "" {
					ref = attrValue(n, "href")
				}
				if ref != "" {
					refs = append(refs, ref)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	out := refs[:0]
	for _, r := range refs {
		if isLocalRef(r) {
			out = append(out, r)
		}
	}
	return out
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		name := a.Key
		if a.Namespace != "" {
			name = a.Namespace + ":" + a.Key
		}
		if strings.EqualFold(name, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// isLocalRef reports whether ref points inside the archive rather than
// at an external or inline resource.
func isLocalRef(ref string) bool {
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "http://"),
		strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "data:"),
		strings.HasPrefix(lower, "file:"):
		return false
	}
	return true
}

// resolveEpubRef resolves href relative to the directory of basePath.
// Both are zip-internal, forward-slash paths. Fragments and URL
// escaping are stripped. References that escape the archive root
// resolve to "".
func resolveEpubRef(basePath, href string) string {
	href = strings.TrimSpace(href)
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if href == "" || strings.HasPrefix(href, "/") {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	cleaned := path.Clean(path.Join(path.Dir(basePath), href))
	if !safeArchivePath(cleaned) {
		return ""
	}
	return cleaned
}
