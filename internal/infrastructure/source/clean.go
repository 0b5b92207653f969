package source

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanText normalises article text: optional HTML stripping, collapsed
// whitespace within lines and no blank lines.
func CleanText(raw string, stripHTML bool) string {
	if stripHTML && strings.ContainsAny(raw, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
			doc.Find("script, style").Remove()
			doc.Find("br, p, div, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
				s.AppendHtml("\n")
			})
			raw = doc.Text()
		}
	}

	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
