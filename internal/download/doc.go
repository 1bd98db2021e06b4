// Package download persists a confirmed selection of images to disk.
//
// # Manager
//
// The Manager coordinates one download batch:
//
//  1. Validate the selection and destination
//  2. Create the destination directory (with parents)
//  3. Download every selected image concurrently
//  4. Report progress once per finished item, in order 1..K
//  5. Return one DownloadOutcome per item, ordered by position
//
// # Basic Usage
//
//	manager := download.NewManager(settings, client, func(e event.Event) {
//	    fmt.Println(e.Message)
//	})
//
//	outcomes, err := manager.DownloadAll(ctx, selection, "/out", func(p download.Progress) {
//	    fmt.Printf("%d/%d\n", p.Completed, p.Total)
//	})
//	if err != nil {
//	    // *model.ValidationError: nothing was attempted
//	}
//
// # File Naming
//
// Item n of the selection (1-based) is written to image_<n><ext>, where
// <ext> is the extension of the image URL's path, if it has one.
//
// # Concurrency
//
// At most settings.MaxConcurrentDownloads transfers run at once. Workers
// never call the progress callback; they hand outcomes back to the
// goroutine that called DownloadAll, which counts them and reports.
//
// # Retry Logic
//
// Transport failures and 5xx responses are retried with exponential backoff,
// configurable via settings.DownloadMaxRetries and settings.DownloadRetryCooldown.
// A failed item never stops its siblings.
package download
