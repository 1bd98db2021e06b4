// Package http provides the HTTP client used to fetch pages and images.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Timeout handling
//   - Non-2xx responses as *StatusError
//   - Byte fetches with a size cap and the response content type
//   - File downloads streamed to disk with progress tracking
//
// # Basic Usage
//
//	client := http.NewClient(http.WithTimeout(30 * time.Second))
//
//	// Fetch an HTML page, following redirects
//	page, err := client.GetPage(ctx, "https://example.com/gallery")
//	fmt.Println(page.URL) // final URL after redirects
//
//	// Download file with progress callback
//	n, err := client.DownloadFile(ctx, imgURL, "/out/image_1.png", func(written, total int64) {
//	    fmt.Printf("%d bytes\n", written)
//	})
//
// # Progress Tracking
//
// The ProgressWriter type can be used to wrap any io.Writer for progress tracking:
//
//	pw := &http.ProgressWriter{
//	    Writer:   file,
//	    Total:    contentLength,
//	    OnUpdate: func(written, total int64) { /* update UI */ },
//	}
package http
