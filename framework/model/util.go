package model

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// namespaceFileIdentity is the UUIDv5 namespace for model file identities.
var namespaceFileIdentity = uuid.NewSHA1(uuid.NameSpaceURL, []byte("xmodel/file-identity/v1"))

// FileID produces a stable identifier for a document URI.
func FileID(uri string) string {
	return uuid.NewSHA1(namespaceFileIdentity, []byte(uri)).String()
}

// PathToURI converts a filesystem path to a file:// URI.
func PathToURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

// URIToPath converts a file:// URI back to a filesystem path. Other strings
// are returned unchanged.
func URIToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return filepath.FromSlash(u.Path)
}
