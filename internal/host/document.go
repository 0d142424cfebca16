// Package host holds the editor-side types shared by the lint pipeline and the hosts driving it.
package host

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Document identifies a source file within an editing session.
// URI is the address the editor uses; Path is the absolute location on disk.
type Document struct {
	URI        string
	Path       string
	LanguageID string

	key string
}

// Key returns the identity diagnostics are stored under. File URIs are keyed by
// their canonical form so that differently escaped URIs of one file collapse.
func (d Document) Key() string {
	if d.key != "" {
		return d.key
	}
	return d.URI
}

// DocumentFromPath builds a Document for a file on disk.
func DocumentFromPath(path, languageID string) Document {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	uri := PathToURI(path)
	return Document{
		URI:        uri,
		Path:       path,
		LanguageID: languageID,
		key:        uri,
	}
}

// DocumentFromURI builds a Document from an editor URI. Non-file URIs yield an empty Path.
func DocumentFromURI(uri, languageID string) Document {
	path := URIToPath(uri)
	key := uri
	if path != "" {
		key = PathToURI(path)
	}
	return Document{
		URI:        uri,
		Path:       path,
		LanguageID: languageID,
		key:        key,
	}
}

// URIToPath converts a file:// URI to an absolute filesystem path.
func URIToPath(uri string) string {
	if uri == "" {
		return ""
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" && parsed.Scheme != "file" {
		return ""
	}
	path := parsed.Path
	if parsed.Scheme == "" {
		path = uri
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	path = filepath.FromSlash(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

// PathToURI converts a filesystem path to a file:// URI.
func PathToURI(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// Language recognizes the documents a linter is responsible for.
type Language struct {
	ID         string
	Name       string
	Extensions []string
}

// Recognizes reports whether doc belongs to the language, by explicit language id
// or, failing that, by file extension.
func (l Language) Recognizes(doc Document) bool {
	if l.ID != "" && doc.LanguageID == l.ID {
		return true
	}
	name := doc.Path
	if name == "" {
		name = doc.URI
	}
	for _, ext := range l.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
