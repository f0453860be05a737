package extract

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/statifier/pkg/utils"
)

const rssWithNamespaces = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom" xmlns:wfw="http://wellformedweb.org/CommentAPI/">
  <channel>
    <title>News</title>
    <link>http://example.com/</link>
    <atom:link href="http://example.com/feed.rss" rel="self" type="application/rss+xml"/>
    <item>
      <title>First</title>
      <link>http://example.com/news/1.html</link>
      <comments>/news/1.html#comments</comments>
      <wfw:commentRss>http://example.com/news/1/feed</wfw:commentRss>
      <description>http://example.com/not-a-link</description>
    </item>
  </channel>
</rss>`

const rssPlain = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <link>http://example.com/</link>
    <item><link>news/2.html</link></item>
  </channel>
</rss>`

func TestParseXML_Strict(t *testing.T) {
	_, err := ParseXML([]byte(`<rss><channel><link>http://x/</channel></rss>`))
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrParsing)

	_, err = ParseXML([]byte(`<rss><channel>`))
	require.Error(t, err)
}

func TestDeclaredNamespaces(t *testing.T) {
	doc, err := ParseXML([]byte(rssWithNamespaces))
	require.NoError(t, err)
	ns := DeclaredNamespaces(doc)
	assert.Equal(t, "http://www.w3.org/2005/Atom", ns["atom"])
	assert.Equal(t, "http://wellformedweb.org/CommentAPI/", ns["wfw"])
}

func TestXML_RSSWithNamespaces(t *testing.T) {
	e, _ := newExtractor("example.com")
	doc, err := ParseXML([]byte(rssWithNamespaces))
	require.NoError(t, err)

	got := slices.Collect(e.XML(doc, mustURL(t, "http://example.com/feed.rss")))
	assert.ElementsMatch(t, []string{
		"http://example.com/",
		"http://example.com/feed.rss",
		"http://example.com/news/1.html",
		"http://example.com/news/1.html#comments",
		"http://example.com/news/1/feed",
	}, got)
}

func TestXML_NamespacedElementsIgnoredWithoutDeclaration(t *testing.T) {
	e, _ := newExtractor("example.com")
	doc, err := ParseXML([]byte(rssPlain))
	require.NoError(t, err)

	got := slices.Collect(e.XML(doc, mustURL(t, "http://example.com/feed.rss")))
	assert.Equal(t, []string{"http://example.com/", "http://example.com/news/2.html"}, got)
}

func TestXML_NonRSSYieldsNothing(t *testing.T) {
	e, _ := newExtractor("example.com")
	doc, err := ParseXML([]byte(`<urlset><url><loc>http://example.com/a</loc></url></urlset>`))
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(e.XML(doc, mustURL(t, "http://example.com/sitemap.xml"))))
}
