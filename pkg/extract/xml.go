package extract

import (
	"bytes"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/Sriram-PR/statifier/pkg/utils"
)

// ParseXML parses body strictly; malformed documents are rejected
func ParseXML(body []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed XML document: %w", utils.ErrParsing, err)
	}
	return doc, nil
}

// DeclaredNamespaces returns the prefix to URI map declared on the document element
func DeclaredNamespaces(doc *xmlquery.Node) map[string]string {
	namespaces := make(map[string]string)
	root := documentElement(doc)
	if root == nil {
		return namespaces
	}
	for _, attr := range root.Attr {
		if attr.Name.Space == "xmlns" {
			namespaces[attr.Name.Local] = attr.Value
		}
	}
	return namespaces
}

func documentElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// isElement matches an element by namespace URI and local name; ns "" means no namespace
func isElement(n *xmlquery.Node, ns, local string) bool {
	return n.Type == xmlquery.ElementNode && n.NamespaceURI == ns && n.Data == local
}

func childElements(parent *xmlquery.Node) iter.Seq[*xmlquery.Node] {
	return func(yield func(*xmlquery.Node) bool) {
		for n := parent.FirstChild; n != nil; n = n.NextSibling {
			if n.Type == xmlquery.ElementNode && !yield(n) {
				return
			}
		}
	}
}

// rssReferences walks rss/channel for link, item/link and item/comments, plus atom:link/@href and
// item/wfw:commentRss when those namespaces are declared
func rssReferences(doc *xmlquery.Node) iter.Seq[string] {
	namespaces := DeclaredNamespaces(doc)
	atomNS, hasAtom := namespaces["atom"]
	wfwNS, hasWfw := namespaces["wfw"]

	return func(yield func(string) bool) {
		root := documentElement(doc)
		if root == nil || !isElement(root, "", "rss") {
			return
		}
		for channel := range childElements(root) {
			if !isElement(channel, "", "channel") {
				continue
			}
			for child := range childElements(channel) {
				switch {
				case isElement(child, "", "link"):
					if !yield(strings.TrimSpace(child.InnerText())) {
						return
					}
				case hasAtom && isElement(child, atomNS, "link"):
					if href := child.SelectAttr("href"); href != "" {
						if !yield(href) {
							return
						}
					}
				case isElement(child, "", "item"):
					for field := range childElements(child) {
						if isElement(field, "", "link") || isElement(field, "", "comments") ||
							(hasWfw && isElement(field, wfwNS, "commentRss")) {
							if !yield(strings.TrimSpace(field.InnerText())) {
								return
							}
						}
					}
				}
			}
		}
	}
}

// XML returns the links of an RSS feed; documents that are not RSS yield nothing
func (e *Extractor) XML(doc *xmlquery.Node, base *url.URL) iter.Seq[string] {
	return e.candidates(rssReferences(doc), base)
}
