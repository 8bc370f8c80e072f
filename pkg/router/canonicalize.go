package router

import (
	"errors"
	"net/url"
	"strings"
)

// Path errors. Each is wrapped in a *ResolutionError by Table.Match.
var (
	ErrBackslashInPath       = errors.New("router: path contains backslash")
	ErrNullByteInPath        = errors.New("router: path contains null byte")
	ErrInvalidPercentEscape  = errors.New("router: invalid percent escape sequence")
	ErrPathEscapesRoot       = errors.New("router: path escapes root via ..")
	ErrEncodedSlashInSegment = errors.New("router: encoded slash in path segment")
)

// Canonical is a normalized request path.
type Canonical struct {
	// Path is the normalized path, without query string.
	Path string

	// Query is the raw query string, without the leading "?".
	Query string

	// Changed reports whether normalization altered the path.
	Changed bool
}

// Location returns the path with its query string re-attached.
func (c Canonical) Location() string {
	if c.Query == "" {
		return c.Path
	}
	return c.Path + "?" + c.Query
}

// CanonicalizePath normalizes a request path:
//   - a missing leading slash is added
//   - repeated slashes collapse (/blog//post becomes /blog/post)
//   - "." segments are removed and ".." segments resolved
//   - a trailing slash is removed, except for the root
//
// Paths containing a backslash, a NUL byte (literal or %00), a malformed
// percent escape, or a ".." that climbs above the root are rejected. The
// query string is carried through untouched.
func CanonicalizePath(input string) (Canonical, error) {
	if input == "" {
		return Canonical{Path: "/", Changed: true}, nil
	}

	path, query, _ := strings.Cut(input, "?")

	if strings.Contains(path, "\\") {
		return Canonical{}, ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return Canonical{}, ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return Canonical{}, err
		}
	}

	var segments []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) == 0 {
				return Canonical{}, ErrPathEscapesRoot
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	normalized := "/" + strings.Join(segments, "/")
	return Canonical{
		Path:    normalized,
		Query:   query,
		Changed: normalized != path,
	}, nil
}

func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// decodeSegment unescapes one path segment. An encoded slash is only
// allowed inside a catch-all, where it cannot change which route matches.
func decodeSegment(segment string, catchAll bool) (string, error) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", ErrInvalidPercentEscape
	}
	if !catchAll && strings.Contains(decoded, "/") {
		return "", ErrEncodedSlashInSegment
	}
	return decoded, nil
}
