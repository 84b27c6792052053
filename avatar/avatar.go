// Package avatar tracks broken avatar URLs so the UI can fall back to
// initials. The fallback is sticky per URL: once a URL failed to load it is
// never retried, which keeps long message lists from hammering a dead CDN
// entry.
package avatar

import (
	"strings"
	"sync"
)

type Fallback struct {
	mu     sync.RWMutex
	broken map[string]struct{}
}

func NewFallback() *Fallback {
	return &Fallback{broken: make(map[string]struct{})}
}

// MarkBroken records that url failed to load.
func (f *Fallback) MarkBroken(url string) {
	if url == "" {
		return
	}
	f.mu.Lock()
	f.broken[url] = struct{}{}
	f.mu.Unlock()
}

// Broken reports whether url previously failed.
func (f *Fallback) Broken(url string) bool {
	f.mu.RLock()
	_, ok := f.broken[url]
	f.mu.RUnlock()
	return ok
}

// Render picks what to display for a user: the URL when it is set and not
// known-broken, otherwise initials derived from the display name. The bool
// reports whether the first return is a usable URL.
func (f *Fallback) Render(displayName, url string) (string, bool) {
	if url != "" && !f.Broken(url) {
		return url, true
	}
	return Initials(displayName), false
}

// Initials returns up to two uppercase initials from a display name.
// "Dat Nguyen" -> "DN", "dat" -> "D", "" -> "?".
func Initials(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return "?"
	}
	first := []rune(fields[0])
	out := strings.ToUpper(string(first[0]))
	if len(fields) > 1 {
		last := []rune(fields[len(fields)-1])
		out += strings.ToUpper(string(last[0]))
	}
	return out
}
