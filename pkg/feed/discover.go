package feed

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// feedMediaTypes are the link types recognized during autodiscovery.
var feedMediaTypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
	"application/rdf+xml":  true,
	"text/xml":             true,
}

// discoverFeedLink scans an HTML page for <link rel="alternate"> pointing at
// an RSS/Atom feed and returns the href resolved against baseURL. Empty
// result means the page advertises no feed. The tokenizer is tolerant of
// broken markup and decodes entities on its own.
func discoverFeedLink(body []byte, baseURL string) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "link" {
				continue
			}
			var rel, typ, href string
			for _, attr := range tok.Attr {
				switch strings.ToLower(attr.Key) {
				case "rel":
					rel = strings.ToLower(attr.Val)
				case "type":
					typ = strings.ToLower(strings.TrimSpace(attr.Val))
				case "href":
					href = attr.Val
				}
			}
			if rel != "alternate" || href == "" || !feedMediaTypes[typ] {
				continue
			}
			return resolveRef(baseURL, href)
		}
	}
}

// imgSrc returns the src of the first <img> tag in an HTML fragment.
func imgSrc(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "img" {
				continue
			}
			for _, attr := range tok.Attr {
				if strings.ToLower(attr.Key) == "src" && attr.Val != "" {
					return attr.Val
				}
			}
		}
	}
}

// resolveRef resolves a possibly relative href against the page URL.
func resolveRef(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
