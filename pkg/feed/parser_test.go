package feed

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParser() *Parser {
	return NewParser(NewClient(5*time.Second, "randpic/test"))
}

func TestParser_Parse_RSSEnclosure(t *testing.T) {
	body := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>pics</title>
<item>
	<title>one</title>
	<guid>id-1</guid>
	<enclosure url="http://example.com/one.jpg" type="image/jpeg" length="1000"/>
</item>
<item>
	<title>audio only</title>
	<guid>id-2</guid>
	<enclosure url="http://example.com/two.mp3" type="audio/mpeg" length="1000"/>
</item>
</channel></rss>`

	items, err := testParser().Parse(t.Context(), []byte(body), "http://example.com/feed")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "http://example.com/one.jpg", items[0].URL)
	assert.Equal(t, "id-1", items[0].ID)
}

func TestParser_Parse_MediaContent(t *testing.T) {
	body := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/"><channel><title>pics</title>
<item>
	<title>media</title>
	<guid>m-1</guid>
	<media:content url="http://example.com/m.png" medium="image"/>
</item>
</channel></rss>`

	items, err := testParser().Parse(t.Context(), []byte(body), "http://example.com/feed")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "http://example.com/m.png", items[0].URL)
}

func TestParser_Parse_DescriptionImg(t *testing.T) {
	body := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>pics</title>
<item>
	<title>desc</title>
	<link>http://example.com/post/1</link>
	<description>&lt;p&gt;look: &lt;img alt="x" src="http://example.com/d.gif"&gt;&lt;/p&gt;</description>
</item>
<item>
	<title>no image anywhere</title>
	<description>just text</description>
</item>
</channel></rss>`

	items, err := testParser().Parse(t.Context(), []byte(body), "http://example.com/feed")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "http://example.com/d.gif", items[0].URL)
	assert.Equal(t, "http://example.com/post/1", items[0].ID, "id falls back to link text")
}

func TestParser_Parse_AtomEnclosureLink(t *testing.T) {
	body := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>pics</title>
	<entry>
		<title>a1</title>
		<id>urn:a1</id>
		<link rel="alternate" href="http://example.com/post/a1"/>
		<link rel="enclosure" type="image/png" href="http://example.com/a1.png"/>
	</entry>
</feed>`

	items, err := testParser().Parse(t.Context(), []byte(body), "http://example.com/feed")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "http://example.com/a1.png", items[0].URL)
	assert.Equal(t, "urn:a1", items[0].ID)
}

func TestParser_Parse_Deterministic(t *testing.T) {
	body := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>pics</title>
<item><guid>1</guid><enclosure url="http://e.com/1.jpg" type="image/jpeg"/></item>
<item><guid>2</guid><enclosure url="http://e.com/2.jpg" type="image/jpeg"/></item>
<item><guid>3</guid><enclosure url="http://e.com/3.jpg" type="image/jpeg"/></item>
</channel></rss>`

	p := testParser()
	first, err := p.Parse(t.Context(), []byte(body), "http://e.com/feed")
	require.NoError(t, err)
	second, err := p.Parse(t.Context(), []byte(body), "http://e.com/feed")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "http://e.com/1.jpg", first[0].URL)
	assert.Equal(t, "http://e.com/3.jpg", first[2].URL)
}

func TestParser_Parse_DuplicateID(t *testing.T) {
	body := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>pics</title>
<item><guid>same</guid><enclosure url="http://e.com/first.jpg" type="image/jpeg"/></item>
<item><guid>same</guid><enclosure url="http://e.com/second.jpg" type="image/jpeg"/></item>
</channel></rss>`

	items, err := testParser().Parse(t.Context(), []byte(body), "http://e.com/feed")
	require.NoError(t, err)
	require.Len(t, items, 1, "conflicting id keeps first url only")
	assert.Equal(t, "http://e.com/first.jpg", items[0].URL)
}

func TestParser_Parse_Autodiscovery(t *testing.T) {
	feedBody := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>pics</title>
<item><guid>x</guid><enclosure url="http://e.com/x.jpg" type="image/jpeg"/></item>
</channel></rss>`

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(feedBody)) //nolint:errcheck
	})

	page := `<html><head>
<title>my site</title>
<link rel="stylesheet" href="/style.css">
<link rel="alternate" type="application/rss+xml" href="/feed.xml">
</head><body>hi</body></html>`

	items, err := testParser().Parse(t.Context(), []byte(page), srv.URL+"/")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "http://e.com/x.jpg", items[0].URL)
}

func TestParser_Parse_Garbage(t *testing.T) {
	_, err := testParser().Parse(t.Context(), []byte("neither feed nor html link here"), "http://e.com/")
	require.Error(t, err)
}

func TestImageURL_StrategyOrder(t *testing.T) {
	t.Run("rss: media:content wins over enclosure and description", func(t *testing.T) {
		body := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/"><channel><title>pics</title>
<item>
	<guid>p</guid>
	<enclosure url="http://e.com/enc.jpg" type="image/jpeg"/>
	<media:content url="http://e.com/media.jpg"/>
	<description>&lt;img src="http://e.com/desc.jpg"&gt;</description>
</item>
</channel></rss>`

		items, err := testParser().Parse(t.Context(), []byte(body), "http://e.com/feed")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "http://e.com/media.jpg", items[0].URL)
	})

	t.Run("rss: enclosure wins over description", func(t *testing.T) {
		body := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>pics</title>
<item>
	<guid>p</guid>
	<enclosure url="http://e.com/enc.jpg" type="image/jpeg"/>
	<description>&lt;img src="http://e.com/desc.jpg"&gt;</description>
</item>
</channel></rss>`

		items, err := testParser().Parse(t.Context(), []byte(body), "http://e.com/feed")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "http://e.com/enc.jpg", items[0].URL)
	})

	t.Run("atom: enclosure link wins over media:content", func(t *testing.T) {
		body := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:media="http://search.yahoo.com/mrss/">
	<title>pics</title>
	<entry>
		<id>urn:p</id>
		<link rel="enclosure" href="http://e.com/enc.png"/>
		<media:content url="http://e.com/media.jpg"/>
	</entry>
</feed>`

		items, err := testParser().Parse(t.Context(), []byte(body), "http://e.com/feed")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "http://e.com/enc.png", items[0].URL, "typeless atom enclosure link accepted")
	})
}

func TestHasImageExt(t *testing.T) {
	assert.True(t, hasImageExt("http://e.com/a.JPG"))
	assert.True(t, hasImageExt("http://e.com/a.png?size=big"))
	assert.False(t, hasImageExt("http://e.com/a.svg"))
	assert.False(t, hasImageExt("http://e.com/dir/"))
}
