// Package scrape discovers image references on a web page.
//
// # Resolver
//
// Resolve turns a raw src attribute into an absolute locator using the
// page's address as the base:
//
//	loc, ok := scrape.Resolve("/a.png", "http://x.test/p")
//	// loc == "http://x.test/a.png", ok == true
//
// # Scanner
//
// The Scanner fetches a page once and exposes its images as a lazy
// sequence. Each reference is resolved only when the consumer asks for the
// next one, so previews can start while the rest of the page is still
// being walked:
//
//	scanner := scrape.NewScanner(client, nil)
//	page, err := scanner.Scan(ctx, "example.com/gallery")
//	if err != nil {
//	    // *model.FetchError: the page could not be retrieved
//	}
//	for ref := range page.References() {
//	    fmt.Println(ref.OrdinalIndex, ref.ResolvedLocator)
//	}
package scrape
