package analysis

import (
	"encoding/json"
	"fmt"
)

// Placeholder values used when a page gives no better information.
const (
	UnknownAuthor = "Unknown Author"
	UnknownDate   = "Unknown Date"
	UnknownImage  = "Unknown Image URL"
)

// ArticleJSONLD is a schema.org Article.
type ArticleJSONLD struct {
	Context       string          `json:"@context"`
	Type          string          `json:"@type"`
	Headline      string          `json:"headline"`
	Author        PersonJSONLD    `json:"author"`
	DatePublished string          `json:"datePublished"`
	Image         string          `json:"image"`
	ArticleBody   string          `json:"articleBody"`
	Publisher     PublisherJSONLD `json:"publisher"`
}

// PersonJSONLD is a schema.org Person.
type PersonJSONLD struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

// PublisherJSONLD is a schema.org Organization with a logo.
type PublisherJSONLD struct {
	Type string      `json:"@type"`
	Name string      `json:"name"`
	Logo ImageJSONLD `json:"logo"`
}

// ImageJSONLD is a schema.org ImageObject.
type ImageJSONLD struct {
	Type string `json:"@type"`
	URL  string `json:"url"`
}

// GenerateArticleJSONLD builds an Article description for a page.
func GenerateArticleJSONLD(title, author, datePublished, imageURL, description string) ArticleJSONLD {
	return ArticleJSONLD{
		Context:       "http://schema.org",
		Type:          "Article",
		Headline:      title,
		Author:        PersonJSONLD{Type: "Person", Name: author},
		DatePublished: datePublished,
		Image:         imageURL,
		ArticleBody:   description,
		Publisher: PublisherJSONLD{
			Type: "Organization",
			Name: "Unknown Publisher",
			Logo: ImageJSONLD{Type: "ImageObject", URL: "https://example.com/logo.png"},
		},
	}
}

// JSONLDScript wraps v in a <script type="application/ld+json"> element,
// indenting the JSON by two spaces.
func JSONLDScript(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal JSON-LD: %w", err)
	}
	return `<script type="application/ld+json">` + string(data) + `</script>`, nil
}

// suggestArticle returns a JSON-LD script describing page as an Article.
func suggestArticle(page *Page) (string, error) {
	title, _ := page.Title()
	description, _ := page.MetaDescription()
	return JSONLDScript(GenerateArticleJSONLD(title, UnknownAuthor, UnknownDate, UnknownImage, description))
}
