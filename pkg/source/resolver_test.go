package source

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/randpic/pkg/feed"
	"github.com/umputun/randpic/pkg/scan"
	"github.com/umputun/randpic/pkg/store"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	stateDir := t.TempDir()
	st, err := store.New(filepath.Join(stateDir, "cache.db"), 3*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	client := feed.NewClient(5*time.Second, "randpic/test")
	return &Resolver{
		Store:    st,
		Mirror:   feed.NewMirror(stateDir, 3*time.Hour, client),
		Walker:   &scan.Walker{},
		StateDir: stateDir,
	}
}

func TestIsFeedURL(t *testing.T) {
	assert.True(t, IsFeedURL("http://example.com/feed"))
	assert.True(t, IsFeedURL("HTTPS://example.com/feed"))
	assert.True(t, IsFeedURL("feed://example.com/feed"))
	assert.False(t, IsFeedURL("/home/user/pics"))
	assert.False(t, IsFeedURL("pics"))
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "http://e.com/f", NormalizeURL("feed://e.com/f"))
	assert.Equal(t, "https://e.com/f", NormalizeURL("https://e.com/f"))
	assert.Equal(t, "/some/dir", NormalizeURL("/some/dir"))
}

func TestResolver_Resolve_Directory(t *testing.T) {
	r := newTestResolver(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o600))

	res, err := r.Resolve(t.Context(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg")}, res.Candidates)
	res.Close()

	t.Run("second resolve served from cache", func(t *testing.T) {
		// remove the file on disk; the cached list still names it
		require.NoError(t, os.Remove(filepath.Join(dir, "a.jpg")))

		res, err := r.Resolve(t.Context(), dir)
		require.NoError(t, err)
		defer res.Close()
		assert.Equal(t, []string{filepath.Join(dir, "a.jpg")}, res.Candidates)
	})

	t.Run("invalidate forces re-enumeration", func(t *testing.T) {
		res, err := r.Resolve(t.Context(), dir)
		require.NoError(t, err)
		require.NoError(t, res.Invalidate())
		res.Close()

		res, err = r.Resolve(t.Context(), dir)
		require.NoError(t, err)
		defer res.Close()
		assert.Empty(t, res.Candidates)
	})
}

func TestResolver_Resolve_DirectoryNoCache(t *testing.T) {
	r := newTestResolver(t)
	r.NoCache = true

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("x"), 0o600))

	res, err := r.Resolve(t.Context(), dir)
	require.NoError(t, err)
	res.Close()

	// nothing was persisted
	_, ok, err := r.Store.Load(dir)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_Resolve_MissingDirectory(t *testing.T) {
	r := newTestResolver(t)
	_, err := r.Resolve(t.Context(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestResolver_Resolve_Feed(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/img/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("GIF89a\x2c\x01\xc8\x00")) //nolint:errcheck
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, _ *http.Request) {
		body := `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>` +
			fmt.Sprintf(`<item><guid>g1</guid><enclosure url="%s/img/1.jpg" type="image/jpeg"/></item>`, srv.URL) +
			`</channel></rss>`
		w.Write([]byte(body)) //nolint:errcheck
	})

	r := newTestResolver(t)
	res, err := r.Resolve(t.Context(), srv.URL+"/feed")
	require.NoError(t, err)
	defer res.Close()

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, ".jpg", filepath.Ext(res.Candidates[0]))

	// feed results have no file-list cache entry to invalidate
	require.NoError(t, res.Invalidate())
}

func TestResolver_Resolve_LocateFallback(t *testing.T) {
	r := newTestResolver(t)
	r.Locate = &scan.Locate{Binary: "no-such-locate-binary"}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("x"), 0o600))

	res, err := r.Resolve(t.Context(), dir)
	require.NoError(t, err)
	defer res.Close()
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg")}, res.Candidates)
}
