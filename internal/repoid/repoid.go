// Package repoid derives the repository identifier used to namespace
// document names across repositories sharing one GraphQL engine.
package repoid

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	git "github.com/go-git/go-git/v5"
)

// Detect returns a repository identifier for the tree rooted at root.
// Priority: "owner/repo" slug from the origin remote → base name of the
// resolved root directory → "local".
func Detect(root string) string {
	if slug := slugFromRemote(root); slug != "" {
		return Sanitize(slug)
	}

	abs, err := filepath.Abs(root)
	if err == nil {
		if base := filepath.Base(abs); base != "." && base != string(os.PathSeparator) {
			return Sanitize(base)
		}
	}

	return "local"
}

// slugFromRemote extracts the "owner/repo" slug from the origin remote URL.
func slugFromRemote(root string) string {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return ""
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}

	return ParseSlug(urls[0])
}

var (
	// SSH format: git@host.tld:owner/repo.git
	sshPattern = regexp.MustCompile(`^[^@]+@[^:]+:([^/]+/[^/]+?)(?:\.git)?$`)
	// HTTPS format: https://host.tld/owner/repo.git
	httpsPattern = regexp.MustCompile(`^https?://[^/]+/([^/]+/[^/]+?)(?:\.git)?/?$`)
)

// ParseSlug extracts the "owner/repo" slug from a git remote URL.
// Returns "" when the URL does not look like a forge remote.
func ParseSlug(url string) string {
	if matches := sshPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}
	if matches := httpsPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}
	return ""
}

// Sanitize lowercases the identifier and keeps only characters that are
// safe inside a query name: alphanumerics, underscore, hyphen and slash.
func Sanitize(s string) string {
	s = strings.ToLower(s)
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '/' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "local"
	}
	return result.String()
}
