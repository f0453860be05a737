package parse

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// QueryMarker separates a mirrored file name from its decoded query string
const QueryMarker = "%3F"

// PathMapper maps URLs to paths under a mirror root
type PathMapper struct {
	Root         string // Mirror root on disk; used to detect paths that already exist as directories
	DefaultIndex string // File name used for directory-like paths, usually "index.html"
}

// NewPathMapper creates a PathMapper, defaulting the index name to "index.html"
func NewPathMapper(root, defaultIndex string) PathMapper {
	if defaultIndex == "" {
		defaultIndex = "index.html"
	}
	return PathMapper{Root: root, DefaultIndex: defaultIndex}
}

// LocalPath maps a URL to a slash-separated path relative to the mirror root, always starting with "/".
// The path is percent-decoded; directory-like paths get the default index; a query string is kept
// as QueryMarker plus the decoded query, so queries that differ once decoded never share a file.
// Spellings of the same decoded query (?x=%41 and ?x=A, ?x=a%2Fb and ?x=a/b) map to one file.
// Dot segments are cleaned so the result never escapes the root.
func (m PathMapper) LocalPath(u *url.URL) string {
	decoded, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		decoded = u.Path
	}
	if decoded == "" || decoded[0] != '/' {
		decoded = "/" + decoded
	}

	trailingSlash := strings.HasSuffix(decoded, "/")
	local := path.Clean(decoded)
	if trailingSlash || local == "/" || m.isDir(local) {
		local = path.Join(local, m.DefaultIndex)
	}

	if u.RawQuery != "" {
		query, err := url.PathUnescape(u.RawQuery)
		if err != nil {
			query = u.RawQuery
		}
		// A "/" in the query would create a directory level inside the file name
		local += QueryMarker + strings.ReplaceAll(query, "/", "%2F")
	}
	return local
}

// LocalPathString is LocalPath for an unparsed URL
func (m PathMapper) LocalPathString(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return m.LocalPath(u), nil
}

// FilesystemPath joins a local path onto the mirror root using OS separators
func (m PathMapper) FilesystemPath(localPath string) string {
	return filepath.Join(m.Root, filepath.FromSlash(localPath))
}

func (m PathMapper) isDir(local string) bool {
	if m.Root == "" {
		return false
	}
	info, err := os.Stat(m.FilesystemPath(local))
	return err == nil && info.IsDir()
}
