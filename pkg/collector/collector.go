// Package collector finds query documents in a source tree and fingerprints
// their content for registration.
package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// defaultSkipDirs are directories that never contain query documents worth
// registering: dependencies, build output and version control data.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true,
}

// maxDocumentSize caps the size of a single query document. A query file
// larger than this is almost certainly not a query; it is skipped with a
// warning rather than failing the run.
const maxDocumentSize = 1024 * 1024

// Collector walks a source tree and produces query documents.
type Collector struct {
	root    string
	pattern string
	logger  *zap.Logger
}

// New creates a collector rooted at root, matching files against pattern.
//
// The pattern is matched with filepath.Match semantics. A leading "**/" is
// stripped first; if the remainder has no path separator (e.g. "**/*.graphql"
// or "*.graphql") it is matched against the base name of every file in the
// tree, so it matches at any depth. A remainder that still contains a
// separator (e.g. "**/queries/*.graphql") is matched against the path
// relative to root, so it only matches files at that exact relative path.
func New(root, pattern string, logger *zap.Logger) (*Collector, error) {
	if root == "" {
		return nil, fmt.Errorf("collector: root directory is required")
	}
	if pattern == "" {
		return nil, fmt.Errorf("collector: pattern is required")
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("collector: invalid pattern %q: %w", pattern, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("collector: root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("collector: root %q is not a directory", root)
	}

	return &Collector{
		root:    filepath.Clean(root),
		pattern: pattern,
		logger:  logger,
	}, nil
}

// Collect walks the tree and returns the matching documents in lexical
// walk order. An empty result is not an error.
func (c *Collector) Collect() ([]Document, error) {
	var docs []Document

	err := filepath.Walk(c.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != c.root && defaultSkipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		if !c.matches(rel, info.Name()) {
			return nil
		}

		if info.Size() > maxDocumentSize {
			c.logger.Warn("skipping oversized query document",
				zap.String("path", rel),
				zap.Int64("size", info.Size()))
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		if len(strings.TrimSpace(string(content))) == 0 {
			c.logger.Warn("skipping empty query document", zap.String("path", rel))
			return nil
		}

		docs = append(docs, Document{
			Name:    strings.TrimSuffix(info.Name(), filepath.Ext(info.Name())),
			Path:    rel,
			Content: string(content),
			Hash:    hashContent(string(content)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collector: walking %s: %w", c.root, err)
	}

	if len(docs) == 0 {
		c.logger.Warn("no query documents found",
			zap.String("root", c.root),
			zap.String("pattern", c.pattern))
	}
	return docs, nil
}

// matches reports whether a file matches the collector pattern.
func (c *Collector) matches(rel, base string) bool {
	pattern := strings.TrimPrefix(c.pattern, "**/")
	if !strings.ContainsRune(pattern, filepath.Separator) && !strings.Contains(pattern, "/") {
		ok, _ := filepath.Match(pattern, base)
		return ok
	}
	ok, _ := filepath.Match(filepath.FromSlash(pattern), rel)
	return ok
}
