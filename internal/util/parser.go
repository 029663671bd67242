package util

import (
	"strings"

	"golang.org/x/net/html"
)

// ParseLinks collects the href values of anchor elements whose target ends
// with the given suffix, case-insensitively. Listing pages are plain
// directory indexes and frequently malformed; the tolerant parser in
// x/net/html hands back whatever tree it could build and this walk takes
// any anchors found in it. A page with no matching anchors yields an empty
// slice.
func ParseLinks(root *html.Node, suffix string) []string {
	links := []string{}
	suffix = strings.ToLower(suffix)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := anchorHref(n); ok && strings.HasSuffix(strings.ToLower(href), suffix) {
				links = append(links, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return links
}

func anchorHref(n *html.Node) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == "href" && attr.Val != "" {
			return attr.Val, true
		}
	}
	return "", false
}
