// Package pathutil converts between file:// URIs and local OS paths.
// It backs the library binder (turning a goto result's uri back into
// a path to cat). It does not do host/container path mapping itself --
// that's internal/rewriteuri's byte-level substitution, deliberately
// kept structure-free per the proxy's duck-typed JSON handling.
//
// Grounded on the teacher's utils/uri.go.
package pathutil

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// IsWindowsAbsPath reports whether p looks like a Windows absolute
// path (C:\... or C:/...), regardless of the runtime OS -- the proxy
// may run on Linux while rewriting paths that originated on Windows.
func IsWindowsAbsPath(p string) bool {
	if len(p) < 2 {
		return false
	}
	letter := p[0]
	isLetter := (letter >= 'A' && letter <= 'Z') || (letter >= 'a' && letter <= 'z')
	return isLetter && p[1] == ':'
}

// FileURIToPath converts a file:// URI into a local OS path, decoding
// percent escapes.
func FileURIToPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("pathutil: invalid uri: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("pathutil: not a file uri: %s", u.Scheme)
	}

	if u.Host != "" {
		p, err := url.PathUnescape(u.Path)
		if err != nil {
			return "", fmt.Errorf("pathutil: invalid uri path escape: %w", err)
		}
		return filepath.FromSlash("//" + u.Host + p), nil
	}

	p, err := url.PathUnescape(u.Path)
	if err != nil {
		return "", fmt.Errorf("pathutil: invalid uri path escape: %w", err)
	}

	// file:///C:/path -> /C:/path; strip the leading slash in front of
	// the drive letter.
	if strings.HasPrefix(p, "/") && len(p) >= 3 && p[2] == ':' {
		p = p[1:]
	}

	return filepath.FromSlash(p), nil
}

// PathToFileURI converts a local OS path into a file:// URI.
func PathToFileURI(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("pathutil: path is empty")
	}

	isWindowsAbs := IsWindowsAbsPath(path)
	if !isWindowsAbs {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	slashPath := strings.ReplaceAll(path, "\\", "/")
	if isWindowsAbs {
		slashPath = strings.ReplaceAll(slashPath, "//", "/")
	} else {
		slashPath = filepath.ToSlash(filepath.Clean(path))
	}

	if len(slashPath) >= 2 && slashPath[1] == ':' {
		slashPath = "/" + slashPath
	}

	u := url.URL{Scheme: "file", Path: slashPath}
	return u.String(), nil
}

// TrimFileScheme strips a leading file:// or file: prefix, falling
// back to the input unchanged when it isn't a file URI. Used where
// the caller only needs a best-effort path, not full URI decoding.
func TrimFileScheme(uri string) string {
	return strings.TrimPrefix(strings.TrimPrefix(uri, "file://"), "file:")
}
