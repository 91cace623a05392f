package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the minimum TextContent length (in characters) for
// readability output to be used. Shorter articles usually mean the
// algorithm missed the main content, so the whole page is kept instead.
const minContentLength = 50

// mainContent runs Mozilla Readability on rawHTML and returns the article
// HTML, or rawHTML itself when extraction fails or comes back too short.
func mainContent(rawHTML, sourceURL string) string {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Debug("readability: invalid source URL, using full page", "url", sourceURL, "error", err)
		return rawHTML
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed, using full page", "url", sourceURL, "error", err)
		return rawHTML
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Debug("readability: extracted content too short, using full page",
			"url", sourceURL, "length", len(article.TextContent))
		return rawHTML
	}
	return article.Content
}
