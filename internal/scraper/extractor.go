package scraper

import (
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var (
	titleRe = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	linkRe  = regexp.MustCompile(`(?i)<a[^>]+href=["']([^"'#][^"']*)["']`)
)

// Extract turns a RawPage into a CleanPage. The readability extractor runs
// first; when it yields nothing, a structural heuristic over the parsed DOM
// takes over (main → article → body, scripts/styles/navigation stripped).
func Extract(raw *RawPage) *CleanPage {
	text := readabilityText(raw)
	if strings.TrimSpace(text) == "" {
		text = structuralText(raw.HTML)
	}

	return &CleanPage{
		URL:   raw.URL,
		Title: extractTitle(raw.HTML),
		Text:  strings.TrimSpace(text),
		Links: extractLinks(raw.HTML),
	}
}

func readabilityText(raw *RawPage) string {
	pageURL, err := url.Parse(raw.URL)
	if err != nil {
		pageURL = nil
	}
	article, err := readability.FromReader(strings.NewReader(raw.HTML), pageURL)
	if err != nil {
		return ""
	}
	return article.TextContent
}

// structuralText walks the DOM preferring <main>, then <article>, then
// <body>, with script/style/nav/header/footer subtrees removed.
func structuralText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	container := findElement(doc, "main")
	if container == nil {
		container = findElement(doc, "article")
	}
	if container == nil {
		container = findElement(doc, "body")
	}
	if container == nil {
		container = doc
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "header", "footer", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)
	return strings.TrimSpace(sb.String())
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

// extractTitle returns the text of the first <title> tag, or "".
func extractTitle(rawHTML string) string {
	if m := titleRe.FindStringSubmatch(rawHTML); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractLinks returns deduplicated href values from <a> tags. Fragment-only
// and empty hrefs are excluded.
func extractLinks(rawHTML string) []string {
	seen := make(map[string]bool)
	links := []string{}
	for _, m := range linkRe.FindAllStringSubmatch(rawHTML, -1) {
		href := strings.TrimSpace(m[1])
		if href == "" || seen[href] {
			continue
		}
		seen[href] = true
		links = append(links, href)
	}
	return links
}
