// Package preview fetches discovered images and turns them into thumbnails.
//
// A Fetcher never fails as a whole: every reference yields exactly one
// model.PreviewResult, successful or not.
//
//	f := preview.NewFetcher(client, 150, 10<<20, ioutils.DefaultMaxPixels, nil)
//	res := f.Fetch(ctx, ref)
//	if res.OK() {
//	    fmt.Println(res.Thumbnail.MimeType, res.Thumbnail.Width, res.Thumbnail.Height)
//	}
package preview

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/handiism/image-scraper/internal/event"
	"github.com/handiism/image-scraper/internal/http"
	ioutils "github.com/handiism/image-scraper/internal/io"
	"github.com/handiism/image-scraper/internal/model"
)

// Fetcher retrieves image resources and builds bounded previews.
type Fetcher struct {
	client   *http.Client
	images   *ioutils.ImageService
	size     int
	maxBytes int64
	onEvent  event.Func
}

// NewFetcher creates a Fetcher producing thumbnails whose longest side is
// at most size pixels. Payloads above maxBytes fail, and so do images
// declaring more than maxPixels pixels (0 disables either cap).
// onEvent may be nil.
func NewFetcher(client *http.Client, size int, maxBytes, maxPixels int64, onEvent event.Func) *Fetcher {
	return &Fetcher{
		client:   client,
		images:   ioutils.NewImageService(maxPixels),
		size:     size,
		maxBytes: maxBytes,
		onEvent:  onEvent,
	}
}

// Fetch retrieves ref and decodes it into a preview.
//
// Transport failures, non-2xx responses, oversize bodies, images with too
// many pixels and payloads that are not decodable images all produce a failed result carrying a
// *model.PreviewError; Fetch itself never fails.
func (f *Fetcher) Fetch(ctx context.Context, ref model.ImageReference) model.PreviewResult {
	data, _, err := f.client.Fetch(ctx, ref.ResolvedLocator, f.maxBytes)
	if err != nil {
		f.onEvent.Emit(event.LevelWarning, "Error loading image %s: %v", ref.ResolvedLocator, err)
		return model.PreviewResult{
			Reference: ref,
			Err:       &model.PreviewError{Locator: ref.ResolvedLocator, Stage: model.StageFetch, Err: err},
		}
	}

	thumb, err := f.images.Thumbnail(ctx, data, f.size)
	if err != nil {
		f.onEvent.Emit(event.LevelWarning, "Error decoding image %s: %v", ref.ResolvedLocator, err)
		return model.PreviewResult{
			Reference: ref,
			Err:       &model.PreviewError{Locator: ref.ResolvedLocator, Stage: model.StageDecode, Err: err},
		}
	}

	f.onEvent.Emit(event.LevelVerbose, "Preview ready: %s (%s %dx%d)", ref.ResolvedLocator, thumb.MimeType, thumb.Width, thumb.Height)
	return model.PreviewResult{
		Reference: ref,
		Thumbnail: &model.Thumbnail{
			Data:     thumb.Data,
			MimeType: thumb.MimeType,
			Width:    thumb.Width,
			Height:   thumb.Height,
		},
	}
}

// Launch starts one preview fetch per reference as refs yields them, at
// most limit at a time (limit <= 0 means unbounded), and calls deliver with
// each result in completion order.
//
// Launch returns as soon as refs is exhausted, with the number of
// references consumed; fetches may still be running. wait blocks until
// every result has been delivered. deliver is called from worker
// goroutines and must be safe for concurrent use.
//
// Example:
//
//	n, wait := f.Launch(ctx, page.References(), 8, func(r model.PreviewResult) {
//	    results <- r
//	})
//	fmt.Println("scan exhausted after", n, "images")
//	wait()
func (f *Fetcher) Launch(ctx context.Context, refs iter.Seq[model.ImageReference], limit int, deliver func(model.PreviewResult)) (int, func()) {
	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}

	count := 0
	for ref := range refs {
		count++
		g.Go(func() error {
			deliver(f.Fetch(ctx, ref))
			return nil
		})
	}

	return count, func() { g.Wait() }
}
