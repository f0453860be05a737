package extract

import (
	"io"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/statifier/pkg/models"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []models.ExternalLinkEvent
}

func (r *recordingEmitter) EmitExternalLink(ev models.ExternalLinkEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func newExtractor(domains ...string) (*Extractor, *recordingEmitter) {
	em := &recordingEmitter{}
	return NewExtractor(NewExternalTracker(domains, em), testLogger()), em
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func htmlDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func TestExternalTracker_IsInternal(t *testing.T) {
	tr := NewExternalTracker([]string{"Example.com", "localhost:8080"}, nil)
	assert.True(t, tr.IsInternal("http://example.com/a"))
	assert.True(t, tr.IsInternal("http://EXAMPLE.com:9000/a"))
	assert.True(t, tr.IsInternal("http://localhost:8080/"))
	assert.False(t, tr.IsInternal("http://localhost:9090/"))
	assert.False(t, tr.IsInternal("http://sub.example.com/"))
}

func TestHTML_AllLinkAttributes(t *testing.T) {
	e, _ := newExtractor("example.com")
	body := `<html><head>
<link rel="stylesheet" href="/css/site.css"><script src="js/app.js"></script>
</head><body background="/img/bg.gif">
<a href="page.html">p</a><img src="/img/logo.png"><iframe src="/frame.html"></iframe>
<form action="/search"></form><video src="/v.mp4" poster="/poster.jpg"><source src="/v.webm"></video>
<audio src="/a.mp3"></audio><object data="/obj.swf"></object><embed src="/e.swf">
<table background="/t.png"><tr background="/tr.png"><td background="/td.png">x</td></tr></table>
<div style="background: url('/img/div.png')"></div>
<section style="background-image:url(/img/section.png)"></section>
<applet code="Applet.class"></applet><area href="/map.html">
</body></html>`

	got := slices.Collect(e.HTML(htmlDoc(t, body), mustURL(t, "http://example.com/dir/index.html")))

	for _, want := range []string{
		"http://example.com/css/site.css",
		"http://example.com/dir/js/app.js",
		"http://example.com/img/bg.gif",
		"http://example.com/dir/page.html",
		"http://example.com/img/logo.png",
		"http://example.com/frame.html",
		"http://example.com/search",
		"http://example.com/v.mp4",
		"http://example.com/poster.jpg",
		"http://example.com/v.webm",
		"http://example.com/a.mp3",
		"http://example.com/obj.swf",
		"http://example.com/e.swf",
		"http://example.com/t.png",
		"http://example.com/tr.png",
		"http://example.com/td.png",
		"http://example.com/img/div.png",
		"http://example.com/img/section.png",
		"http://example.com/dir/Applet.class",
		"http://example.com/map.html",
	} {
		assert.Contains(t, got, want)
	}
}

func TestHTML_MalformedMarkupTolerated(t *testing.T) {
	e, _ := newExtractor("example.com")
	body := `<html><body><p><a href="/ok.html">unclosed<div><img src="/x.png"`
	got := slices.Collect(e.HTML(htmlDoc(t, body), mustURL(t, "http://example.com/")))
	assert.Contains(t, got, "http://example.com/ok.html")
}

func TestHTML_UnsupportedSchemesSkipped(t *testing.T) {
	e, em := newExtractor("example.com")
	body := `<a href="mailto:me@example.com">m</a><a href="javascript:void(0)">j</a>
<a href="tel:+331">t</a><img src="data:image/png;base64,AAAA"><a href="">empty</a>`
	got := slices.Collect(e.HTML(htmlDoc(t, body), mustURL(t, "http://example.com/")))
	assert.Equal(t, []string{"data:image/png;base64,AAAA"}, got)
	// data: links have no host, so they count as external
	assert.Len(t, em.events, 1)
}

func TestHTML_ExternalLinkReportedOnce(t *testing.T) {
	e, em := newExtractor("thisdomain.com")
	body := `<a href="http://otherdomain.com/x">1</a><a href="http://otherdomain.com/x">2</a><a href="/internal">3</a>`
	base := mustURL(t, "http://thisdomain.com/page.html")

	got := slices.Collect(e.HTML(htmlDoc(t, body), base))

	// External links stay candidates
	assert.Equal(t, []string{"http://otherdomain.com/x", "http://otherdomain.com/x", "http://thisdomain.com/internal"}, got)
	require.Len(t, em.events, 1)
	assert.Equal(t, models.ExternalLinkEvent{Source: "http://thisdomain.com/page.html", Target: "http://otherdomain.com/x"}, em.events[0])

	// Same target on another page in the same run is not reported again
	_ = slices.Collect(e.HTML(htmlDoc(t, body), mustURL(t, "http://thisdomain.com/other.html")))
	assert.Len(t, em.events, 1)
}

func TestCSS_ResolvesURLs(t *testing.T) {
	e, em := newExtractor("oldhost")
	body := []byte(`a{background:url('/img/x.png')} b{background:url("../y.gif")} c{src: url( z.woff )} d{x:url(http://cdn.net/f.ttf)}`)
	got := slices.Collect(e.CSS(body, mustURL(t, "http://oldhost/css/style.css")))

	assert.Equal(t, []string{
		"http://oldhost/img/x.png",
		"http://oldhost/y.gif",
		"http://oldhost/css/z.woff",
		"http://cdn.net/f.ttf",
	}, got)
	require.Len(t, em.events, 1)
	assert.Equal(t, "http://cdn.net/f.ttf", em.events[0].Target)
}

func TestCandidates_EarlyStop(t *testing.T) {
	e, _ := newExtractor("example.com")
	body := []byte(`url(/a) url(/b) url(/c)`)
	var got []string
	for link := range e.CSS(body, mustURL(t, "http://example.com/")) {
		got = append(got, link)
		if len(got) == 2 {
			break
		}
	}
	assert.Len(t, got, 2)
}
