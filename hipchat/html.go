package hipchat

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// htmlToText flattens an HTML notification body into Slack-flavored text.
// Line breaks become newlines and links become <href|label>.
func htmlToText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}

	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithNodes(textNode("\n"))
	})
	doc.Find("p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendNodes(textNode("\n"))
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		label := strings.TrimSpace(s.Text())
		link := "<" + href + ">"
		if label != "" && label != href {
			link = "<" + href + "|" + label + ">"
		}
		s.ReplaceWithNodes(textNode(link))
	})

	return strings.TrimSpace(doc.Text())
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
