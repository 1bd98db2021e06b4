package scrape

import (
	"net/url"
	"strings"
)

// Resolve normalizes a raw attribute value into an absolute locator.
//
// Surrounding whitespace is ignored. An empty value, or one that is not a
// valid URI reference, yields ("", false). A value that already carries a
// scheme is returned unchanged. Anything else is resolved against base by
// standard reference resolution, so relative paths, protocol-relative
// "//host/path" values, queries and fragments all behave as in a browser.
//
// Example:
//
//	Resolve("/a.png", "http://x.test/p")                 // "http://x.test/a.png", true
//	Resolve("//cdn.test/b.jpg", "https://x.test/")       // "https://cdn.test/b.jpg", true
//	Resolve("https://cdn.test/b.jpg", "http://x.test/p") // unchanged, true
//	Resolve("   ", "http://x.test/p")                    // "", false
func Resolve(raw, base string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() {
		return raw, true
	}

	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return "", false
	}
	return baseURL.ResolveReference(ref).String(), true
}
