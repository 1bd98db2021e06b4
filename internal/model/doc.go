// Package model defines the core data structures shared by the scanner,
// the preview fetcher, the download manager and the session controller.
//
// # ImageReference
//
// ImageReference is one image discovered on a page, already resolved to an
// absolute locator:
//
//	ref := model.ImageReference{
//	    RawAttribute:    "/a.png",
//	    ResolvedLocator: "http://x.test/a.png",
//	    OrdinalIndex:    0,
//	}
//
// # Results
//
// Every reference produces exactly one PreviewResult, and every selected
// reference produces exactly one DownloadOutcome. Failures are carried in
// the result values rather than returned as errors, so a batch never stops
// because one item failed:
//
//	if !result.OK() {
//	    fmt.Println("unselectable:", result.Err)
//	}
//
// # Errors
//
// The error taxonomy (FetchError, PreviewError, DownloadItemError,
// ValidationError) lives in errors.go. All of them wrap their cause and can
// be inspected with errors.As.
package model
