package extract

import (
	"iter"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// htmlLinkAttributes lists the element/attribute pairs that carry links
var htmlLinkAttributes = []struct {
	Element   string
	Attribute string
}{
	{"a", "href"},
	{"applet", "code"},
	{"area", "href"},
	{"bgsound", "src"},
	{"body", "background"},
	{"embed", "src"},
	{"fig", "src"},
	{"form", "action"},
	{"frame", "src"},
	{"iframe", "src"},
	{"img", "src"},
	{"input", "src"},
	{"layer", "src"},
	{"link", "href"},
	{"object", "data"},
	{"overlay", "src"},
	{"script", "src"},
	{"table", "background"},
	{"td", "background"},
	{"tr", "background"},
	{"video", "src"},
	{"video", "poster"},
	{"audio", "src"},
	{"source", "src"},
}

// htmlStyleElements are scanned for url(...) references in their inline style attribute
var htmlStyleElements = []string{"div", "section", "article", "a"}

func htmlReferences(doc *goquery.Document) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, rule := range htmlLinkAttributes {
			for _, sel := range doc.Find(rule.Element + "[" + rule.Attribute + "]").EachIter() {
				value, _ := sel.Attr(rule.Attribute)
				if !yield(value) {
					return
				}
			}
		}
		for _, element := range htmlStyleElements {
			for _, sel := range doc.Find(element + "[style]").EachIter() {
				style, _ := sel.Attr("style")
				for ref := range cssReferences([]byte(style)) {
					if !yield(ref) {
						return
					}
				}
			}
		}
	}
}

// HTML returns the links carried by a parsed HTML document
func (e *Extractor) HTML(doc *goquery.Document, base *url.URL) iter.Seq[string] {
	return e.candidates(htmlReferences(doc), base)
}
