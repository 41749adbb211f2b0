package crawler

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/sitemapper/internal/urlnorm"
)

// Extractor returns the outbound links of an HTML body.
type Extractor interface {
	ExtractLinks(body string) ([]string, error)
}

// HTMLExtractor collects the href of every <a> element that is already an
// absolute http(s) URL. Relative links are skipped. Order and duplicates
// are kept as they appear in the markup.
type HTMLExtractor struct{}

// ExtractLinks implements Extractor.
func (HTMLExtractor) ExtractLinks(body string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	links := make([]string, 0)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := getAttr(n, "href"); ok && urlnorm.HasScheme(href) {
				links = append(links, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
