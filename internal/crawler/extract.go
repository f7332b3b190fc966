package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// nonContentSelector matches elements stripped before text extraction:
// scripts, navigation, chrome and boilerplate.
const nonContentSelector = "script, style, noscript, iframe, svg, form, " +
	"nav, header, footer, aside, " +
	".nav, .navbar, .menu, .header, .footer, .sidebar, .breadcrumb, .cookie-banner"

// contentSelectors are tried in order; the first match with text wins.
// With no match the whole body is used.
var contentSelectors = []string{
	"main",
	"article",
	"[role=main]",
	"#content",
	".content",
	"#main",
	".main-content",
}

// page is the extracted form of one crawled URL before chunking.
type page struct {
	URL   string
	Title string
	Text  string
}

// extractPage pulls the title and readable text out of an HTML document.
//
// The goquery path strips non-content elements and tries the content-region
// selectors; when it yields too little text, go-readability gets a shot at
// the raw document before falling back to full-body text.
func extractPage(pageURL string, body []byte) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find(nonContentSelector).Remove()

	var text string
	for _, sel := range contentSelectors {
		if region := doc.Find(sel).First(); region.Length() > 0 {
			if t := CollapseWhitespace(region.Text()); len(t) >= minContentLength {
				text = t
				break
			}
		}
	}

	if text == "" {
		text = readableText(pageURL, body)
	}
	if text == "" {
		text = CollapseWhitespace(doc.Find("body").Text())
	}

	return &page{URL: pageURL, Title: title, Text: text}, nil
}

// readableText runs go-readability over the raw document. Returns "" when
// the parser fails or extracts nothing substantial.
func readableText(pageURL string, body []byte) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return ""
	}
	text := CollapseWhitespace(article.TextContent)
	if len(text) < minContentLength {
		return ""
	}
	return text
}
