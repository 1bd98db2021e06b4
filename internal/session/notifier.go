package session

import (
	"github.com/handiism/image-scraper/internal/download"
	"github.com/handiism/image-scraper/internal/event"
	"github.com/handiism/image-scraper/internal/model"
)

// ScanSummary is delivered when a scan's reference sequence is exhausted
// or the page could not be fetched.
type ScanSummary struct {
	PageURL string

	// Emitted is the number of references found. The same number of
	// PreviewReady calls will follow, some possibly after ScanFinished.
	Emitted int

	// Err is a *model.FetchError when the page could not be retrieved.
	Err error
}

// BatchSummary is delivered once per download batch, after the last item.
type BatchSummary struct {
	Destination string
	Outcomes    []model.DownloadOutcome
	Succeeded   int
	Failed      int
	Bytes       int64

	// ManifestPath is set when a manifest was written.
	ManifestPath string

	// Err is set when the batch could not start at all.
	Err error
}

// Notifier is the presentation layer's view of a Controller.
//
// Every method is called from the controller's loop goroutine, one call at
// a time and in order. Implementations must not call back into the
// Controller synchronously: the loop is busy delivering the notification.
type Notifier interface {
	// PreviewReady delivers a preview of the current scan, in completion order.
	PreviewReady(model.PreviewResult)

	// ScanFinished signals the end of the scan's reference sequence.
	ScanFinished(ScanSummary)

	// DownloadProgress reports one resolved item of the running batch.
	DownloadProgress(download.Progress)

	// DownloadFinished signals that every item of the batch resolved.
	DownloadFinished(BatchSummary)

	// Rejected reports a refused request: ErrBusy, ErrNotReviewing or a
	// *model.ValidationError.
	Rejected(error)

	// Log forwards diagnostic events from the pipeline.
	Log(event.Event)
}

// NopNotifier ignores every notification. Embed it to implement only the
// methods you care about.
type NopNotifier struct{}

func (NopNotifier) PreviewReady(model.PreviewResult)   {}
func (NopNotifier) ScanFinished(ScanSummary)           {}
func (NopNotifier) DownloadProgress(download.Progress) {}
func (NopNotifier) DownloadFinished(BatchSummary)      {}
func (NopNotifier) Rejected(error)                     {}
func (NopNotifier) Log(event.Event)                    {}
