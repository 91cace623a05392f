package cleaner

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// InternalLinks returns the route paths that rawHTML links to under
// baseURL, in document order and without duplicates. Links are resolved
// against pageURL; query strings and fragments are dropped, and the path
// prefix of baseURL is removed so results compare with route paths.
func InternalLinks(rawHTML, pageURL, baseURL string) []string {
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	prefix := strings.TrimSuffix(base.Path, "/")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		resolved, err := page.Parse(href)
		if err != nil {
			return
		}
		// Skip javascript:, mailto:, tel: and other hosts.
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if !strings.EqualFold(resolved.Host, base.Host) {
			return
		}

		p := resolved.Path
		if prefix != "" {
			if p != prefix && !strings.HasPrefix(p, prefix+"/") {
				return
			}
			p = strings.TrimPrefix(p, prefix)
		}
		if p == "" {
			p = "/"
		}

		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		links = append(links, p)
	})

	return links
}
