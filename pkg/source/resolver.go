// Package source routes a target argument to the feed mirror or the
// directory enumerator and produces the candidate list.
package source

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/umputun/randpic/pkg/feed"
	"github.com/umputun/randpic/pkg/scan"
	"github.com/umputun/randpic/pkg/store"
)

// Resolver decides whether a target is a feed URL or a directory and builds
// the candidate set accordingly. For directories it drives the file-list
// cache; for feeds it drives the mirror.
type Resolver struct {
	Store    *store.Store
	Mirror   *feed.Mirror
	Walker   *scan.Walker
	Locate   *scan.Locate // nil disables the locate accelerator
	StateDir string
	NoCache  bool
	Verbose  bool
}

// Result is a resolved candidate set. The per-resource lock stays held until
// Close, so the invocation's read-select-invalidate span is serialized
// against other invocations of the same resource.
type Result struct {
	Candidates []string

	dir   string // enumerated directory, empty for feed sources
	store *store.Store
	lock  *store.Lock
}

// Close releases the resource lock. Safe on every exit path.
func (r *Result) Close() {
	r.lock.Release()
}

// Invalidate drops the backing file-list cache entry so the next invocation
// re-enumerates. No-op for feed sources.
func (r *Result) Invalidate() error {
	if r.dir == "" || r.store == nil {
		return nil
	}
	log.Printf("[INFO] invalidating cached file list for %s", r.dir)
	return r.store.Invalidate(r.dir)
}

// IsFeedURL reports whether target looks like a feed source rather than a
// filesystem path.
func IsFeedURL(target string) bool {
	t := strings.ToLower(target)
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") || strings.HasPrefix(t, "feed://")
}

// NormalizeURL maps the feed:// alias onto plain http.
func NormalizeURL(target string) string {
	if strings.HasPrefix(strings.ToLower(target), "feed://") {
		return "http://" + target[len("feed://"):]
	}
	return target
}

// Resolve builds the candidate set for target. The caller must Close the
// result.
func (r *Resolver) Resolve(ctx context.Context, target string) (*Result, error) {
	if IsFeedURL(target) {
		return r.resolveFeed(ctx, NormalizeURL(target))
	}
	return r.resolveDir(ctx, target)
}

func (r *Resolver) resolveFeed(ctx context.Context, feedURL string) (*Result, error) {
	dir, lock, err := r.Mirror.Sync(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	files, err := r.Walker.Walk(dir)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("enumerate feed dir: %w", err)
	}
	return &Result{Candidates: files, lock: lock}, nil
}

func (r *Resolver) resolveDir(ctx context.Context, target string) (*Result, error) {
	dir, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}

	lock, err := store.AcquireLock(store.DirLockPath(r.StateDir, dir))
	if err != nil {
		return nil, err
	}
	res := &Result{dir: dir, store: r.Store, lock: lock}

	if !r.NoCache {
		files, ok, err := r.Store.Load(dir)
		if err != nil {
			lock.Release()
			return nil, err
		}
		if ok {
			if r.Verbose {
				log.Printf("[DEBUG] reusing cached file list for %s, %d entries", dir, len(files))
			}
			res.Candidates = files
			return res, nil
		}
	}

	files, err := r.enumerate(ctx, dir)
	if err != nil {
		lock.Release()
		return nil, err
	}
	res.Candidates = files

	// single writer per run: nothing was loaded above, so this invocation
	// owns the entry
	if !r.NoCache {
		if err := r.Store.Save(dir, files); err != nil {
			lock.Release()
			return nil, err
		}
	}
	return res, nil
}

// enumerate prefers the locate index when enabled and falls back to the
// recursive walk on any accelerator failure.
func (r *Resolver) enumerate(ctx context.Context, dir string) ([]string, error) {
	if r.Locate != nil {
		files, err := r.Locate.Candidates(ctx, dir)
		if err == nil {
			log.Printf("[INFO] locate index produced %d candidates for %s", len(files), dir)
			return files, nil
		}
		log.Printf("[WARN] locate accelerator failed, walking instead: %v", err)
	}

	files, err := r.Walker.Walk(dir)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] enumerated %d candidates under %s", len(files), dir)
	return files, nil
}
