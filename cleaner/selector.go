package cleaner

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// CompileSelectors parses every selector with cascadia. It fails on the
// first selector that does not parse.
func CompileSelectors(selectors []string) ([]cascadia.Sel, error) {
	compiled := make([]cascadia.Sel, 0, len(selectors))
	for _, s := range selectors {
		sel, err := cascadia.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid CSS selector %q: %w", s, err)
		}
		compiled = append(compiled, sel)
	}
	return compiled, nil
}

// StripSelectors removes every element matching any of the selectors from
// rawHTML and re-serializes the document. With no selectors the input is
// returned unchanged.
func StripSelectors(rawHTML string, selectors []string) (string, error) {
	if len(selectors) == 0 {
		return rawHTML, nil
	}
	compiled, err := CompileSelectors(selectors)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	removed := 0
	for _, sel := range compiled {
		for _, node := range cascadia.QueryAll(doc, sel) {
			if node.Parent != nil {
				node.Parent.RemoveChild(node)
				removed++
			}
		}
	}
	if removed == 0 {
		return rawHTML, nil
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
