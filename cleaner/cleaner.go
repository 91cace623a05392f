// Package cleaner post-processes captured HTML before it is written.
package cleaner

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
)

// Cleaner holds the reusable Markdown converter. It is safe for concurrent use.
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// Markdown converts the main content of a rendered page to Markdown.
// Relative links are resolved against sourceURL's origin.
func (c *Cleaner) Markdown(rawHTML, sourceURL string) (string, error) {
	content := mainContent(rawHTML, sourceURL)

	domain := ""
	if u, err := url.Parse(sourceURL); err == nil && u.Host != "" {
		domain = u.Scheme + "://" + u.Host
	}

	md, err := c.mdConverter.ConvertString(content, converter.WithDomain(domain))
	if err != nil {
		return "", fmt.Errorf("cleaner: markdown conversion: %w", err)
	}
	return md, nil
}

// Title returns the trimmed <title> of the document, or "".
func Title(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
