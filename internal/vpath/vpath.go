// Package vpath translates between user-facing virtual paths and the origin
// paths sent to the Graph API. Everything here is pure; cache keys must be
// derived from OriginPath, never from raw user input, so that equivalent
// spellings such as "/a/b/" and "/a//b" share one key.
//
// Percent-decoding happens exactly once, in Normalize, at the edge where an
// encoded request path enters. Every other function takes a decoded path
// and only cleans it, so a literal "%" in a name survives.
package vpath

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidPath is returned for paths with malformed percent-encoding or
// control characters.
var ErrInvalidPath = errors.New("vpath: invalid path")

// Translator applies and strips the configured storage root.
type Translator struct {
	root string // normalized, "/" or "/x/y"
}

// NewTranslator returns a Translator for the given storage root. An empty
// root means the drive root.
func NewTranslator(root string) *Translator {
	clean, err := Clean(root)
	if err != nil {
		// Root comes from validated config; keep it verbatim if it is odd.
		clean = "/" + strings.Trim(root, "/")
	}

	return &Translator{root: clean}
}

// Root returns the normalized storage root.
func (t *Translator) Root() string {
	return t.root
}

// Normalize decodes percent-encoding and then cleans the result. It is the
// only decoding step; its output must not be passed through it again.
func Normalize(p string) (string, error) {
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidPath, p, err)
	}

	return Clean(decoded)
}

// Clean applies Unicode NFC, collapses duplicate slashes and trims the
// trailing slash of an already decoded path. The result always starts with
// "/". Dot segments are rejected rather than resolved.
func Clean(p string) (string, error) {
	segs := splitSegments(norm.NFC.String(p))
	for _, s := range segs {
		if s == "." || s == ".." {
			return "", fmt.Errorf("%w: %q contains a dot segment", ErrInvalidPath, p)
		}

		if strings.ContainsFunc(s, isControl) {
			return "", fmt.Errorf("%w: %q contains a control character", ErrInvalidPath, p)
		}
	}

	return "/" + strings.Join(segs, "/"), nil
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// OriginPath prepends the storage root to a decoded virtual path.
func (t *Translator) OriginPath(virtual string) (string, error) {
	clean, err := Clean(virtual)
	if err != nil {
		return "", err
	}

	return join(t.root, clean), nil
}

// AbsolutePath strips the storage root prefix from a decoded origin path if
// present. The prefix must match whole segments: with root "/Pub",
// "/Public/x" is left alone.
func (t *Translator) AbsolutePath(p string) (string, error) {
	clean, err := Clean(p)
	if err != nil {
		return "", err
	}

	if t.root == "/" {
		return clean, nil
	}

	if clean == t.root {
		return "/", nil
	}

	if rest, ok := strings.CutPrefix(clean, t.root+"/"); ok {
		return "/" + rest, nil
	}

	return clean, nil
}

// Contains reports whether the decoded origin path p lies inside the
// storage root.
func (t *Translator) Contains(p string) bool {
	clean, err := Clean(p)
	if err != nil {
		return false
	}

	return t.root == "/" || clean == t.root || strings.HasPrefix(clean, t.root+"/")
}

// DecodeSegments URL-decodes an encoded request path and returns its
// non-empty segments, for breadcrumbs. Malformed encoding yields
// ErrInvalidPath.
func DecodeSegments(p string) ([]string, error) {
	clean, err := Normalize(p)
	if err != nil {
		return nil, err
	}

	return splitSegments(clean), nil
}

// Split returns the cleaned parent path and final segment of a decoded
// path. The root splits into ("/", "").
func Split(p string) (parent, name string, err error) {
	clean, err := Clean(p)
	if err != nil {
		return "", "", err
	}

	idx := strings.LastIndex(clean, "/")
	if idx == 0 {
		return "/", clean[1:], nil
	}

	return clean[:idx], clean[idx+1:], nil
}

// Encode percent-encodes each segment of a decoded path, the inverse of
// Normalize for use in links: Normalize(Encode(p)) == Clean(p).
func Encode(p string) string {
	segs := splitSegments(p)
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}

	return "/" + strings.Join(segs, "/")
}

func join(root, clean string) string {
	if root == "/" {
		return clean
	}

	if clean == "/" {
		return root
	}

	return root + clean
}

func splitSegments(p string) []string {
	parts := strings.Split(p, "/")
	segs := parts[:0]

	for _, s := range parts {
		if s != "" {
			segs = append(segs, s)
		}
	}

	return segs
}
