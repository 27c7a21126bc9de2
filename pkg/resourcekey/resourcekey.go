// Package resourcekey derives the logical key under which a project's payment
// entitlement is tracked.
package resourcekey

import (
	"errors"
	"net/url"
	"strings"
)

var ErrNoKey = errors.New("cannot derive resource key")

// Derive returns the entitlement key for a project. An explicit project ID
// always wins. Otherwise the key is the last non-empty path segment of the
// repository URL with any ".git" suffix stripped. Trailing slashes are
// ignored; a URL with no usable path segment (bare host, only slashes) is an
// error rather than an empty key.
func Derive(projectID, repoURL string) (string, error) {
	if projectID != "" {
		return projectID, nil
	}
	if repoURL == "" {
		return "", ErrNoKey
	}

	u, err := url.Parse(repoURL)
	if err != nil {
		return "", ErrNoKey
	}

	path := u.Path
	// A schemeless input like "acme/widgets" parses entirely into Path.
	// A scheme with no path ("https://github.com") leaves Path empty.
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return "", ErrNoKey
	}

	key := strings.TrimSuffix(segments[len(segments)-1], ".git")
	if key == "" {
		return "", ErrNoKey
	}
	return key, nil
}
