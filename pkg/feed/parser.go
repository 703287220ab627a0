// Package feed extracts image references from RSS/Atom feeds and mirrors
// them into per-feed local directories.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/umputun/randpic/pkg/scan"
)

// Item is one feed entry reduced to its image reference. ID falls back to
// the image URL when the entry carries no explicit identifier.
type Item struct {
	URL string
	ID  string
}

// maxDiscoverHops bounds RSS/Atom autodiscovery recursion so two HTML pages
// pointing at each other can't loop forever.
const maxDiscoverHops = 3

// Parser turns feed documents into ordered image item lists. When a body is
// an HTML page instead of a feed, the parser follows its rel=alternate feed
// link (autodiscovery) and parses that instead.
type Parser struct {
	client  *Client
	Verbose bool
}

// NewParser creates a feed parser using client for autodiscovery fetches.
func NewParser(client *Client) *Parser {
	return &Parser{client: client}
}

// ParseURL fetches feedURL and parses the result.
func (p *Parser) ParseURL(ctx context.Context, feedURL string) ([]Item, error) {
	body, err := p.client.Get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return p.parse(ctx, body, feedURL, 0)
}

// Parse extracts items from body; baseURL resolves relative autodiscovery
// links.
func (p *Parser) Parse(ctx context.Context, body []byte, baseURL string) ([]Item, error) {
	return p.parse(ctx, body, baseURL, 0)
}

func (p *Parser) parse(ctx context.Context, body []byte, baseURL string, hops int) ([]Item, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		// not a feed, maybe an HTML page advertising one
		alt := discoverFeedLink(body, baseURL)
		if alt == "" {
			return nil, fmt.Errorf("parse feed %s: %w", baseURL, err)
		}
		if hops >= maxDiscoverHops {
			return nil, fmt.Errorf("feed autodiscovery from %s: too many hops", baseURL)
		}
		if p.Verbose {
			log.Printf("[DEBUG] %s is not a feed, discovered %s", baseURL, alt)
		}
		altBody, fetchErr := p.client.Get(ctx, alt)
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch discovered feed: %w", fetchErr)
		}
		return p.parse(ctx, altBody, alt, hops+1)
	}

	items := make([]Item, 0, len(parsed.Items))
	seen := map[string]string{} // id -> first url
	for _, entry := range parsed.Items {
		imgURL := imageURL(entry, parsed.FeedType)
		if imgURL == "" {
			if p.Verbose {
				log.Printf("[DEBUG] no image in entry %q, dropped", entry.Title)
			}
			continue
		}

		id := entry.GUID
		if id == "" {
			id = entry.Link
		}
		if id == "" {
			id = imgURL
		}

		if prev, ok := seen[id]; ok {
			if prev != imgURL {
				log.Printf("[WARN] duplicate id %q with different urls, keeping %s over %s", id, prev, imgURL)
			}
			continue
		}
		seen[id] = imgURL
		items = append(items, Item{URL: imgURL, ID: id})
	}
	return items, nil
}

// imageURL tries the extraction strategies in their fixed priority order and
// returns the first hit. The order is tuned against real-world feeds, not
// derived from the format specs: atom enclosure links (type optional) come
// first, then media:content, then rss enclosures (image type required),
// then a bare url element, then an img tag in the description.
func imageURL(entry *gofeed.Item, feedType string) string {
	// gofeed folds atom rel=enclosure links and rss <enclosure> into the
	// same list, the feed type tells the two strategies apart
	if feedType == "atom" {
		if u := enclosureURL(entry, false); u != "" {
			return u
		}
	}

	// media rss <media:content url=...>
	if media, ok := entry.Extensions["media"]; ok {
		for _, content := range media["content"] {
			if u := content.Attrs["url"]; u != "" {
				return u
			}
		}
	}

	if feedType != "atom" {
		if u := enclosureURL(entry, true); u != "" {
			return u
		}
	}

	// non-standard bare <url> element with a recognizable image extension
	if u := entry.Custom["url"]; u != "" && hasImageExt(u) {
		return strings.TrimSpace(u)
	}

	// last resort, first <img src> inside the description html
	if src := imgSrc(entry.Description); src != "" {
		return src
	}

	return ""
}

// enclosureURL returns the first enclosure with an image type; unless
// needType is set, an absent type is accepted too.
func enclosureURL(entry *gofeed.Item, needType bool) string {
	for _, enc := range entry.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") || (!needType && enc.Type == "") {
			return enc.URL
		}
	}
	return ""
}

// hasImageExt checks the path portion of a URL against the image allow-list.
func hasImageExt(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	return scan.IsImagePath(u.Path)
}
