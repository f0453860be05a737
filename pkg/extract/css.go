package extract

import (
	"iter"
	"net/url"
	"regexp"
)

// cssURLPattern captures the payload of url(...), quotes optional
var cssURLPattern = regexp.MustCompile(`url\s*\(\s*["']?([^)"']+)["']?\s*\)`)

// cssReferences yields every url(...) payload in body
func cssReferences(body []byte) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, m := range cssURLPattern.FindAllSubmatch(body, -1) {
			if !yield(string(m[1])) {
				return
			}
		}
	}
}

// CSS returns the links referenced by a stylesheet
func (e *Extractor) CSS(body []byte, base *url.URL) iter.Seq[string] {
	return e.candidates(cssReferences(body), base)
}
