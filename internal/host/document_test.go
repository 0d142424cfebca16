package host

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir with space", "main.metta")

	uri := PathToURI(path)
	assert.Contains(t, uri, "file://")
	assert.Contains(t, uri, "dir%20with%20space")
	assert.Equal(t, path, URIToPath(uri))
}

func TestURIToPathRejectsOtherSchemes(t *testing.T) {
	assert.Equal(t, "", URIToPath("untitled:Untitled-1"))
	assert.Equal(t, "", URIToPath(""))
}

func TestLanguageRecognizes(t *testing.T) {
	lang := Language{ID: "metta", Name: "MeTTa", Extensions: []string{".metta"}}

	tests := []struct {
		name string
		doc  Document
		want bool
	}{
		{name: "language id", doc: Document{URI: "untitled:1", LanguageID: "metta"}, want: true},
		{name: "extension fallback", doc: Document{Path: "/w/a.metta", LanguageID: "plaintext"}, want: true},
		{name: "uri extension", doc: Document{URI: "file:///w/b.metta"}, want: true},
		{name: "other file", doc: Document{Path: "/w/a.py", LanguageID: "python"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lang.Recognizes(tt.doc))
		})
	}
}

func TestDocumentKeyIsCanonical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a@b c.metta")
	fromPath := DocumentFromPath(path, "metta")

	escaped := strings.Replace(PathToURI(path), "@", "%40", 1)
	fromURI := DocumentFromURI(escaped, "metta")

	assert.Equal(t, fromPath.Key(), fromURI.Key())
	assert.Equal(t, fromPath.Path, fromURI.Path)
	assert.Equal(t, escaped, fromURI.URI, "the editor URI is kept for publishing")
}

func TestDocumentKeyForNonFileURI(t *testing.T) {
	doc := DocumentFromURI("untitled:Untitled-1", "metta")
	assert.Equal(t, "untitled:Untitled-1", doc.Key())
	assert.Equal(t, "file:///w/a.metta", Document{URI: "file:///w/a.metta"}.Key())
}
