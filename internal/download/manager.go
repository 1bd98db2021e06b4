package download

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/handiism/image-scraper/internal/config"
	"github.com/handiism/image-scraper/internal/event"
	"github.com/handiism/image-scraper/internal/http"
	ioutils "github.com/handiism/image-scraper/internal/io"
	"github.com/handiism/image-scraper/internal/model"
)

// Progress is reported after each item of a batch resolves.
type Progress struct {
	// Completed counts resolved items so far, successful or not.
	Completed int

	// Total is the size of the selection.
	Total int

	// Outcome is the item that just resolved.
	Outcome model.DownloadOutcome
}

// Done reports whether this is the last item of the batch.
func (p Progress) Done() bool {
	return p.Completed == p.Total
}

// Stats summarises the running or last batch.
type Stats struct {
	ReceivedBytes int64
	Downloaded    int32
	Failed        int32
	Total         int32
}

// Manager coordinates image downloads.
type Manager struct {
	settings   *config.Settings
	httpClient *http.Client

	receivedBytes int64
	downloaded    int32
	failed        int32
	total         int32

	onEvent event.Func
}

// NewManager creates a new download Manager. onEvent may be nil.
func NewManager(settings *config.Settings, client *http.Client, onEvent event.Func) *Manager {
	return &Manager{
		settings:   settings,
		httpClient: client,
		onEvent:    onEvent,
	}
}

// PrepareDestination creates dir and its parents. Failure is reported as
// a *model.ValidationError because nothing can be downloaded without it.
func PrepareDestination(dir string) error {
	if dir == "" {
		return &model.ValidationError{Field: "destination", Reason: "a destination directory is required"}
	}
	if err := ioutils.EnsureDir(dir); err != nil {
		return &model.ValidationError{Field: "destination", Reason: "cannot create directory " + dir, Err: err}
	}
	return nil
}

// DownloadAll downloads every reference in sel into destDir.
//
// The only errors are validation errors raised before any transfer starts:
// an empty selection, or a destination that is empty or cannot be created.
// Per-item failures are recorded in the returned outcomes, which are
// ordered by position in sel.
//
// onProgress (optional) is called once per item, from the calling
// goroutine, with Completed strictly increasing from 1 to len(sel).
func (m *Manager) DownloadAll(ctx context.Context, sel model.Selection, destDir string, onProgress func(Progress)) ([]model.DownloadOutcome, error) {
	if len(sel) == 0 {
		return nil, &model.ValidationError{Field: "selection", Reason: "no images selected"}
	}
	if err := PrepareDestination(destDir); err != nil {
		m.onEvent.Emit(event.LevelError, "Error creating directory: %v", err)
		return nil, err
	}

	atomic.StoreInt64(&m.receivedBytes, 0)
	atomic.StoreInt32(&m.downloaded, 0)
	atomic.StoreInt32(&m.failed, 0)
	atomic.StoreInt32(&m.total, int32(len(sel)))

	m.onEvent.Emit(event.LevelInfo, "Downloading %d image(s) to %s", len(sel), destDir)

	results := make(chan model.DownloadOutcome)
	go func() {
		g := new(errgroup.Group)
		g.SetLimit(m.settings.MaxConcurrentDownloads)
		for i, ref := range sel {
			position := i + 1
			g.Go(func() error {
				results <- m.downloadItem(ctx, ref, position, destDir)
				return nil // Continue with other images
			})
		}
		g.Wait()
		close(results)
	}()

	outcomes := make([]model.DownloadOutcome, len(sel))
	completed := 0
	for outcome := range results {
		outcomes[outcome.Position-1] = outcome
		completed++
		if onProgress != nil {
			onProgress(Progress{Completed: completed, Total: len(sel), Outcome: outcome})
		}
	}

	stats := m.Stats()
	if int(stats.Downloaded) == len(sel) {
		m.onEvent.Emit(event.LevelSuccess, "Downloaded %d image(s) to %s", stats.Downloaded, destDir)
	} else {
		m.onEvent.Emit(event.LevelWarning, "Finished with %d of %d image(s) failed", stats.Failed, len(sel))
	}

	return outcomes, nil
}

// Stats returns counters for the running or last batch.
func (m *Manager) Stats() Stats {
	return Stats{
		ReceivedBytes: atomic.LoadInt64(&m.receivedBytes),
		Downloaded:    atomic.LoadInt32(&m.downloaded),
		Failed:        atomic.LoadInt32(&m.failed),
		Total:         atomic.LoadInt32(&m.total),
	}
}

func (m *Manager) downloadItem(ctx context.Context, ref model.ImageReference, position int, destDir string) model.DownloadOutcome {
	dest := filepath.Join(destDir, ioutils.ImageFileName(position, ref.ResolvedLocator))
	outcome := model.DownloadOutcome{Reference: ref, Position: position}

	var (
		n   int64
		err error
	)
	for tries := 0; ; tries++ {
		var last int64
		n, err = m.httpClient.DownloadFile(ctx, ref.ResolvedLocator, dest, func(written, total int64) {
			atomic.AddInt64(&m.receivedBytes, written-last)
			last = written
		})
		if err == nil {
			break
		}
		atomic.AddInt64(&m.receivedBytes, -last)

		if tries >= m.settings.DownloadMaxRetries || !retryable(ctx, err) {
			break
		}
		m.onEvent.Emit(event.LevelWarning, "Retry %d/%d for %s: %v", tries+1, m.settings.DownloadMaxRetries, ref.ResolvedLocator, err)
		m.waitForRetry(ctx, tries)
	}

	if err != nil {
		stage := model.StageFetch
		var we *http.WriteError
		if errors.As(err, &we) {
			stage = model.StageWrite
		}
		atomic.AddInt32(&m.failed, 1)
		m.onEvent.Emit(event.LevelError, "Error downloading %s: %v", ref.ResolvedLocator, err)
		outcome.Err = &model.DownloadItemError{Locator: ref.ResolvedLocator, Stage: stage, Err: err}
		return outcome
	}

	atomic.AddInt32(&m.downloaded, 1)
	m.onEvent.Emit(event.LevelVerbose, "Downloaded: %s", filepath.Base(dest))
	outcome.DestinationPath = dest
	outcome.Bytes = n
	return outcome
}

// retryable reports whether another attempt could succeed: local write
// failures and 4xx responses are final, as is a cancelled context.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var we *http.WriteError
	if errors.As(err, &we) {
		return false
	}
	var se *http.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

func (m *Manager) waitForRetry(ctx context.Context, tries int) {
	select {
	case <-ctx.Done():
	case <-time.After(m.settings.RetryDelay(tries)):
	}
}
