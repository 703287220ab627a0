package feed

import (
	"context"
	"crypto/sha1" //nolint:gosec // content addressing, not crypto
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/umputun/randpic/pkg/scan"
	"github.com/umputun/randpic/pkg/store"
)

// markerName is the timestamp marker inside each feed directory. Its mtime
// is the time of the last successful poll and the file itself is the flock
// target serializing invocations of the same feed.
const markerName = ".stamp"

// flickr serves sized variants with a one-letter suffix; rewrite to the
// large "b" size before downloading
var flickrSizeRe = regexp.MustCompile(`_[a-z]\.(jpe?g|png|gif)$`)

// Mirror maintains one local directory per feed URL, holding the feed's
// current images. Directories live under StateDir, named by a hash of the
// feed URL, and are re-polled when the marker is older than TTL.
type Mirror struct {
	StateDir string
	TTL      time.Duration
	NoCache  bool // re-poll regardless of marker age
	Verbose  bool

	client *Client
	parser *Parser
}

// NewMirror creates a mirror using client for feed and image fetches.
func NewMirror(stateDir string, ttl time.Duration, client *Client) *Mirror {
	return &Mirror{
		StateDir: stateDir,
		TTL:      ttl,
		client:   client,
		parser:   NewParser(client),
	}
}

// Sync brings the local directory for feedURL up to date and returns its
// path together with the held per-feed lock. The lock spans the whole
// inspect-poll-prune sequence and stays held so the caller can finish its
// selection before a concurrent invocation may prune the directory; the
// caller must Release it. A second invocation of the same feed blocks on it
// and then reuses the result.
func (m *Mirror) Sync(ctx context.Context, feedURL string) (string, *store.Lock, error) {
	dir := filepath.Join(m.StateDir, "feed-"+hashKey(feedURL))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("create feed dir %s: %w", dir, err)
	}

	marker := filepath.Join(dir, markerName)
	lock, err := store.AcquireLock(marker)
	if err != nil {
		return "", nil, err
	}

	if !m.needsPoll(marker, dir) {
		if m.Verbose {
			log.Printf("[DEBUG] feed dir %s is fresh, skip poll", dir)
		}
		return dir, lock, nil
	}

	if err := m.poll(ctx, feedURL, dir, marker); err != nil {
		lock.Release()
		return "", nil, err
	}
	return dir, lock, nil
}

// needsPoll decides whether the feed has to be re-fetched: caching disabled,
// marker missing or expired, or no images on disk.
func (m *Mirror) needsPoll(marker, dir string) bool {
	if m.NoCache {
		return true
	}
	info, err := os.Stat(marker)
	if err != nil || time.Since(info.ModTime()) >= m.TTL {
		return true
	}
	return len(m.images(dir)) == 0
}

func (m *Mirror) poll(ctx context.Context, feedURL, dir, marker string) error {
	existing := m.images(dir)

	items, err := m.parser.ParseURL(ctx, feedURL)
	if err != nil {
		// a failed poll never empties a previously usable mirror
		if len(existing) > 0 {
			log.Printf("[WARN] poll of %s failed, keeping %d cached images: %v", feedURL, len(existing), err)
			return nil
		}
		return fmt.Errorf("poll %s: %w", feedURL, err)
	}

	fresh := map[string]bool{}
	for _, item := range items {
		name, ok := m.fileName(item)
		if !ok {
			if m.Verbose {
				log.Printf("[DEBUG] skip %s: no usable image extension", item.URL)
			}
			continue
		}
		path := filepath.Join(dir, name)

		// presence implies freshness, no conditional re-fetch
		if _, err := os.Stat(path); err == nil {
			fresh[name] = true
			continue
		}

		dlURL := rewritePhotoHost(item.URL)
		if err := m.client.Download(ctx, dlURL, path); err != nil {
			log.Printf("[WARN] download failed, item skipped this round: %v", err)
			continue
		}
		fresh[name] = true
	}

	if len(fresh) == 0 {
		if len(existing) > 0 {
			// keep the old images and leave the marker alone so the next
			// invocation retries the poll
			log.Printf("[WARN] poll of %s yielded no usable images, keeping %d cached", feedURL, len(existing))
			return nil
		}
		return fmt.Errorf("feed %s has no usable images and no cache to fall back on", feedURL)
	}

	// prune images that vanished from the feed
	for _, name := range existing {
		if !fresh[name] {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				log.Printf("[WARN] failed to prune %s: %v", name, err)
			}
		}
	}

	if err := touch(marker); err != nil {
		return fmt.Errorf("update marker %s: %w", marker, err)
	}

	// marker plus at least one image must survive
	if len(m.images(dir)) < 1 {
		return fmt.Errorf("feed dir %s ended up empty after poll", dir)
	}

	log.Printf("[INFO] feed %s synced, %d images", feedURL, len(fresh))
	return nil
}

// fileName derives the stable local name for an item: hash of the id plus
// the extension taken from the URL path. Items without an allow-listed
// extension are rejected.
func (m *Mirror) fileName(item Item) (string, bool) {
	u, err := url.Parse(item.URL)
	if err != nil {
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(u.Path))
	if ext == "" || !scan.IsImagePath(u.Path) {
		return "", false
	}
	return hashKey(item.ID) + ext, true
}

// images lists the non-marker, non-hidden files currently in a feed dir.
func (m *Mirror) images(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

// rewritePhotoHost maps known photo-host thumbnail URLs to their large-size
// variant.
func rewritePhotoHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.ToLower(u.Hostname())
	if host != "flickr.com" && !strings.HasSuffix(host, ".flickr.com") && !strings.HasSuffix(host, "staticflickr.com") {
		return rawURL
	}
	if !flickrSizeRe.MatchString(u.Path) || strings.HasSuffix(strings.TrimSuffix(u.Path, filepath.Ext(u.Path)), "_b") {
		return rawURL
	}
	u.Path = flickrSizeRe.ReplaceAllString(u.Path, "_b.$1")
	return u.String()
}

// touch creates the marker or bumps its mtime to now.
func touch(path string) error {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err == nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // path under state dir
	if err != nil {
		return err
	}
	return f.Close()
}

func hashKey(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec // content addressing, not crypto
	return hex.EncodeToString(sum[:])
}
