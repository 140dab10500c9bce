package collector

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Document is one query document read from disk.
type Document struct {
	// Name is the file's base name without extension.
	Name string

	// Path is the path relative to the collection root.
	Path string

	// Content is the raw file text.
	Content string

	// Hash is the hex sha256 fingerprint of Content.
	Hash string
}

// ID returns the identifier the document is registered under.
//
// With an empty repo name the plain file name is used. With a repo name the
// identifier carries the repo and a short content fingerprint, so that two
// repositories (or two revisions) contributing a query with the same file
// name never collide inside the shared collection. A missing Hash is
// recomputed from Content, so hand-built documents are safe too.
func (d Document) ID(repoName string) string {
	if repoName == "" {
		return d.Name
	}
	hash := d.Hash
	if hash == "" {
		hash = hashContent(d.Content)
	}
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return fmt.Sprintf("%s:%s:%s", repoName, d.Name, hash)
}

// hashContent returns the hex sha256 digest of the content.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
