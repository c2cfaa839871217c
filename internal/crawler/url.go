package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// LinkSet is a deduplicated set of extracted links that remembers insertion order.
type LinkSet struct {
	seen  map[string]struct{}
	links []string
}

// NewLinkSet builds a set from the given links, dropping duplicates and blanks.
func NewLinkSet(links ...string) LinkSet {
	var s LinkSet
	for _, l := range links {
		s.Add(l)
	}
	return s
}

// Add inserts link and reports whether it was new.
func (s *LinkSet) Add(link string) bool {
	if link == "" {
		return false
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[link]; ok {
		return false
	}
	s.seen[link] = struct{}{}
	s.links = append(s.links, link)
	return true
}

// Contains reports whether link is in the set.
func (s LinkSet) Contains(link string) bool {
	_, ok := s.seen[link]
	return ok
}

// Len returns the number of distinct links.
func (s LinkSet) Len() int {
	return len(s.links)
}

// Links returns a copy of the links in insertion order.
func (s LinkSet) Links() []string {
	out := make([]string, len(s.links))
	copy(out, s.links)
	return out
}

// ResolveURL resolves href against base and drops any fragment.
func ResolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String(), nil
}

// FileName derives a local file name from the final path segment of rawURL.
func FileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "index"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "index"
	}
	return name
}
