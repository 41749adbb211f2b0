package analysis

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Image is an <img> element.
type Image struct {
	Src    string
	Alt    string
	HasAlt bool
}

// Page is a fetched HTML document ready for analysis.
type Page struct {
	URL  string
	Body string

	doc      *goquery.Document
	text     string
	bodyText string
}

// ParsePage parses body as HTML. The HTML parser recovers from malformed
// markup, so an error only comes from reading the input.
func ParsePage(url, body string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html of %s: %w", url, err)
	}
	return &Page{
		URL:      url,
		Body:     body,
		doc:      doc,
		text:     visibleText(doc.Selection),
		bodyText: visibleText(doc.Find("body")),
	}, nil
}

// Document exposes the parsed DOM.
func (p *Page) Document() *goquery.Document {
	return p.doc
}

// Title returns the text of the first <title> and whether one exists.
func (p *Page) Title() (string, bool) {
	sel := p.doc.Find("title").First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Text(), true
}

// MetaDescription returns the content of <meta name="description">.
func (p *Page) MetaDescription() (string, bool) {
	return p.doc.Find(`meta[name="description"]`).First().Attr("content")
}

// MetaKeywords returns the content of every <meta name="keywords">.
func (p *Page) MetaKeywords() []string {
	keywords := []string{}
	p.doc.Find(`meta[name="keywords"]`).Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok {
			keywords = append(keywords, content)
		}
	})
	return keywords
}

// Headings returns the trimmed text of every h1-h6 in document order.
func (p *Page) Headings() []string {
	return p.texts("h1, h2, h3, h4, h5, h6", true)
}

// H1s returns the text of every <h1>.
func (p *Page) H1s() []string {
	return p.texts("h1", false)
}

// SectionCount returns the number of <section> elements.
func (p *Page) SectionCount() int {
	return p.doc.Find("section").Length()
}

// HasJSONLD reports whether the page embeds JSON-LD structured data.
func (p *Page) HasJSONLD() bool {
	return p.doc.Find(`script[type="application/ld+json"]`).Length() > 0
}

// Images returns every <img> element.
func (p *Page) Images() []Image {
	var images []Image
	p.doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		alt, ok := s.Attr("alt")
		images = append(images, Image{Src: src, Alt: alt, HasAlt: ok && strings.TrimSpace(alt) != ""})
	})
	return images
}

// Text returns the visible text of the whole document, whitespace collapsed.
func (p *Page) Text() string {
	return p.text
}

// BodyText returns the visible text of <body>, whitespace collapsed.
func (p *Page) BodyText() string {
	return p.bodyText
}

func (p *Page) texts(selector string, trim bool) []string {
	out := []string{}
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if trim {
			text = strings.TrimSpace(text)
		}
		out = append(out, text)
	})
	return out
}

// invisibleTags hold text that is never rendered.
var invisibleTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
}

// visibleText joins the text nodes under sel with single spaces. Unlike
// Selection.Text it separates adjacent elements, so "<h1>a</h1><p>b</p>"
// yields "a b" rather than "ab".
func visibleText(sel *goquery.Selection) string {
	var words []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			words = append(words, strings.Fields(n.Data)...)
			return
		case html.ElementNode:
			if _, skip := invisibleTags[n.Data]; skip {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(words, " ")
}
