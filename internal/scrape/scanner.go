package scrape

import (
	"bytes"
	"context"
	"io"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/handiism/image-scraper/internal/event"
	"github.com/handiism/image-scraper/internal/http"
	"github.com/handiism/image-scraper/internal/model"
)

// Scanner fetches pages and extracts the images they reference.
//
// Example usage:
//
//	scanner := NewScanner(http.NewClient(), func(e event.Event) {
//	    fmt.Println(e.Message)
//	})
//
//	page, err := scanner.Scan(ctx, "https://example.com/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	refs := page.Collect()
type Scanner struct {
	client  *http.Client
	onEvent event.Func
}

// NewScanner creates a Scanner that fetches pages through client.
// onEvent may be nil.
func NewScanner(client *http.Client, onEvent event.Func) *Scanner {
	return &Scanner{client: client, onEvent: onEvent}
}

// NormalizePageURL trims raw and prefixes "https://" when it does not
// already start with http:// or https://.
//
// An empty value is rejected with a *model.ValidationError.
func NormalizePageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &model.ValidationError{Field: "url", Reason: "a page URL is required"}
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}
	return raw, nil
}

// Scan normalizes pageURL, fetches it and parses the markup.
//
// A transport failure, a non-2xx status or an unreadable document is
// returned as a *model.FetchError; in that case no references exist.
// A *model.ValidationError is returned for an empty pageURL.
func (s *Scanner) Scan(ctx context.Context, pageURL string) (*Page, error) {
	pageURL, err := NormalizePageURL(pageURL)
	if err != nil {
		return nil, err
	}

	s.onEvent.Emit(event.LevelVerbose, "Fetching page: %s", pageURL)

	fetched, err := s.client.GetPage(ctx, pageURL)
	if err != nil {
		return nil, &model.FetchError{URL: pageURL, Err: err}
	}

	page, err := ParsePage(fetched.URL, bytes.NewReader(fetched.Body))
	if err != nil {
		return nil, &model.FetchError{URL: pageURL, Err: err}
	}
	page.RequestedURL = pageURL

	s.onEvent.Emit(event.LevelInfo, "Fetched %s (%d bytes)", fetched.URL, len(fetched.Body))
	return page, nil
}

// Page is a parsed document whose image references can be walked.
type Page struct {
	// RequestedURL is the normalized URL that was asked for.
	RequestedURL string

	// URL is the address the document was served from.
	URL string

	// Base is the URL relative sources resolve against: URL, or the
	// document's <base href> when it has one.
	Base string

	doc *goquery.Document
}

// ParsePage parses markup served from pageURL.
//
// goquery's parser accepts any byte stream, so malformed markup still
// produces a (possibly empty) document.
func ParsePage(pageURL string, r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, ok := Resolve(href, pageURL); ok {
			base = resolved
		}
	}

	return &Page{RequestedURL: pageURL, URL: pageURL, Base: base, doc: doc}, nil
}

// References returns the page's image references in document order.
//
// Each img element's src is resolved when the sequence reaches it.
// Elements without a resolvable src are skipped and do not consume an
// ordinal, so the yielded OrdinalIndex values are always 0..N-1.
// The sequence may be iterated more than once and yields the same
// references each time.
func (p *Page) References() iter.Seq[model.ImageReference] {
	return func(yield func(model.ImageReference) bool) {
		ordinal := 0
		p.doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			raw, ok := sel.Attr("src")
			if !ok {
				return true
			}
			loc, ok := Resolve(raw, p.Base)
			if !ok {
				return true
			}
			ref := model.ImageReference{
				RawAttribute:    raw,
				ResolvedLocator: loc,
				OrdinalIndex:    ordinal,
			}
			ordinal++
			return yield(ref)
		})
	}
}

// Collect drains References into a slice.
func (p *Page) Collect() []model.ImageReference {
	var refs []model.ImageReference
	for ref := range p.References() {
		refs = append(refs, ref)
	}
	return refs
}
