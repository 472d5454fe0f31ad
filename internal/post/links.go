package post

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractLinks pulls anchor hrefs and iframe embed sources out of a raw
// HTML post body.
func ExtractLinks(body string) (links, embeds []string, err error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, nil, err
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				if href := attr(n, "href"); href != "" {
					links = append(links, href)
				}
			case "iframe", "embed":
				if src := attr(n, "src"); src != "" {
					embeds = append(embeds, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, embeds, nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
