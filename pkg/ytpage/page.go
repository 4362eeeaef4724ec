// Package ytpage extracts the title and author from a YouTube watch page.
package ytpage

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Page holds what could be scraped from a watch page. Empty means not found.
type Page struct {
	Title  string
	Author string
}

var (
	authorRe      = regexp.MustCompile(`(?i)"author":"([^"]+)"`)
	youtubeSuffix = regexp.MustCompile(` - YouTube$`)
)

// Parse reads the <title> element, falling back to <meta name="title">,
// and the "author" field of the embedded player JSON.
func Parse(body []byte) Page {
	var page Page

	if m := authorRe.FindSubmatch(body); m != nil {
		page.Author = string(m[1])
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return page
	}

	var title, metaTitle string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = n.FirstChild.Data
				}
			case "meta":
				if metaTitle == "" && attr(n, "name") == "title" {
					metaTitle = attr(n, "content")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	page.Title = youtubeSuffix.ReplaceAllString(title, "")
	if strings.TrimSpace(page.Title) == "" {
		page.Title = metaTitle
	}
	return page
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
