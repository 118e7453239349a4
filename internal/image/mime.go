package image

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// DefaultAccept is the accept list used when none is configured.
var DefaultAccept = []string{"image/*"}

// Accept is a list of MIME patterns such as "image/*" or "image/png".
type Accept []string

// NewAccept validates patterns and returns an Accept. An empty list yields
// DefaultAccept.
func NewAccept(patterns []string) (Accept, error) {
	if len(patterns) == 0 {
		return Accept(DefaultAccept), nil
	}
	out := make(Accept, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		major, minor, ok := strings.Cut(p, "/")
		if !ok || major == "" || minor == "" || major == "*" {
			return nil, fmt.Errorf("invalid accept pattern %q", p)
		}
		out = append(out, p)
	}
	return out, nil
}

// TypeOf returns the MIME type implied by the file extension of name, without
// parameters, or "" if the extension is unknown.
func TypeOf(name string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if t == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mediaType
}

// Matches reports whether the file name's MIME type is accepted.
func (a Accept) Matches(name string) bool {
	t := TypeOf(name)
	if t == "" {
		return false
	}
	major, _, _ := strings.Cut(t, "/")
	for _, p := range a {
		if p == t {
			return true
		}
		if pm, pmin, _ := strings.Cut(p, "/"); pmin == "*" && pm == major {
			return true
		}
	}
	return false
}
