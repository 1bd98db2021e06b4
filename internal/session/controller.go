package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/handiism/image-scraper/internal/config"
	"github.com/handiism/image-scraper/internal/download"
	"github.com/handiism/image-scraper/internal/event"
	"github.com/handiism/image-scraper/internal/http"
	"github.com/handiism/image-scraper/internal/manifest"
	"github.com/handiism/image-scraper/internal/model"
	"github.com/handiism/image-scraper/internal/preview"
	"github.com/handiism/image-scraper/internal/scrape"
)

// State is the controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateReviewing
	StateDownloading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateReviewing:
		return "reviewing"
	case StateDownloading:
		return "downloading"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrBusy rejects a request while a scan or a download is running.
	ErrBusy = errors.New("session busy")

	// ErrNotReviewing rejects a download when no scan has completed.
	ErrNotReviewing = errors.New("no scan to download from")

	// ErrStopped is returned once Run has exited.
	ErrStopped = errors.New("session controller stopped")
)

// Snapshot is a copy of the controller's state at one point in time.
type Snapshot struct {
	State    State
	PageURL  string
	Emitted  int
	ScanDone bool

	// Results holds the current session's previews in arrival order.
	Results []model.PreviewResult
}

// scanSession is the state of one scan. It is replaced, never edited in
// place by anyone but the loop.
type scanSession struct {
	id       int
	pageURL  string
	emitted  int
	scanDone bool
	results  []model.PreviewResult
	byOrd    map[int]int // ordinal -> index into results
}

// Controller coordinates scans and downloads for one presentation layer.
type Controller struct {
	settings  *config.Settings
	scanner   *scrape.Scanner
	previews  *preview.Fetcher
	downloads *download.Manager
	notifier  Notifier

	inbox   chan func()
	stopped chan struct{}

	// Owned by the loop goroutine.
	runCtx  context.Context
	state   State
	session *scanSession
	nextID  int
}

// Option configures a Controller.
type Option func(*controllerOptions)

type controllerOptions struct {
	client *http.Client
}

// WithHTTPClient makes the controller use client instead of one built from
// the settings.
func WithHTTPClient(client *http.Client) Option {
	return func(o *controllerOptions) {
		o.client = client
	}
}

// New creates a Controller. notifier may be nil. Run must be started
// before any other method is called.
func New(settings *config.Settings, notifier Notifier, opts ...Option) *Controller {
	var o controllerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = settings.NewHTTPClient()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}

	c := &Controller{
		settings: settings,
		notifier: notifier,
		inbox:    make(chan func(), 64),
		stopped:  make(chan struct{}),
	}
	onEvent := func(e event.Event) {
		c.post(func() { c.notifier.Log(e) })
	}
	c.scanner = scrape.NewScanner(o.client, onEvent)
	c.previews = preview.NewFetcher(o.client, settings.PreviewSize, settings.MaxPreviewBytes, settings.MaxPreviewPixels, onEvent)
	c.downloads = download.NewManager(settings, o.client, onEvent)
	return c
}

// Run is the coordinating loop. It returns when ctx is done; work started
// by the controller is cancelled through the same context.
func (c *Controller) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.stopped)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-c.inbox:
			f()
		}
	}
}

// post hands f to the loop. Workers use it to report back; it gives up
// once the loop has stopped.
func (c *Controller) post(f func()) {
	select {
	case c.inbox <- f:
	case <-c.stopped:
	}
}

// call runs f on the loop and waits for its result.
func (c *Controller) call(ctx context.Context, f func() error) error {
	reply := make(chan error, 1)
	select {
	case c.inbox <- func() { reply <- f() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
}

// StartScan replaces the current session with a scan of rawURL.
//
// rawURL may omit its scheme; https is assumed. The request is rejected
// with ErrBusy while a scan or download is running and with a
// *model.ValidationError for an empty URL. Rejections are also reported
// through Notifier.Rejected.
func (c *Controller) StartScan(ctx context.Context, rawURL string) error {
	return c.call(ctx, func() error {
		if c.state == StateScanning || c.state == StateDownloading {
			return c.reject(fmt.Errorf("%w: %s in progress", ErrBusy, c.state))
		}

		pageURL, err := scrape.NormalizePageURL(rawURL)
		if err != nil {
			return c.reject(err)
		}

		c.nextID++
		c.session = &scanSession{id: c.nextID, pageURL: pageURL, byOrd: make(map[int]int)}
		c.state = StateScanning
		c.notifier.Log(event.Event{Message: "Scanning " + pageURL, Level: event.LevelInfo})

		go c.scan(c.runCtx, c.session.id, pageURL)
		return nil
	})
}

// StartDownload downloads sel into destDir.
//
// It requires a finished scan (StateReviewing). The selection must be
// non-empty and contain only references of the current scan whose preview
// succeeded; destDir must be given and creatable. Every violation is
// rejected with a *model.ValidationError before anything is downloaded and
// leaves the state unchanged.
func (c *Controller) StartDownload(ctx context.Context, sel model.Selection, destDir string) error {
	return c.call(ctx, func() error {
		switch c.state {
		case StateReviewing:
		case StateScanning, StateDownloading:
			return c.reject(fmt.Errorf("%w: %s in progress", ErrBusy, c.state))
		default:
			return c.reject(ErrNotReviewing)
		}

		sel = model.NewSelection(sel...)
		if len(sel) == 0 {
			return c.reject(&model.ValidationError{Field: "selection", Reason: "no images selected"})
		}
		destDir = strings.TrimSpace(destDir)
		if destDir == "" {
			return c.reject(&model.ValidationError{Field: "destination", Reason: "a destination directory is required"})
		}
		for _, ref := range sel {
			if !c.selectable(ref) {
				return c.reject(&model.ValidationError{
					Field:  "selection",
					Reason: fmt.Sprintf("image #%d (%s) has no preview and cannot be downloaded", ref.OrdinalIndex+1, ref.ResolvedLocator),
				})
			}
		}
		if err := download.PrepareDestination(destDir); err != nil {
			return c.reject(err)
		}

		c.state = StateDownloading
		go c.download(c.runCtx, c.session.pageURL, sel, destDir)
		return nil
	})
}

// Snapshot returns a copy of the current state and session.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.call(ctx, func() error {
		snap.State = c.state
		if s := c.session; s != nil {
			snap.PageURL = s.pageURL
			snap.Emitted = s.emitted
			snap.ScanDone = s.scanDone
			snap.Results = append([]model.PreviewResult(nil), s.results...)
		}
		return nil
	})
	return snap, err
}

// State returns the current lifecycle state.
func (c *Controller) State(ctx context.Context) (State, error) {
	snap, err := c.Snapshot(ctx)
	return snap.State, err
}

func (c *Controller) reject(err error) error {
	c.notifier.Rejected(err)
	return err
}

// selectable reports whether ref belongs to the current session and its
// preview succeeded.
func (c *Controller) selectable(ref model.ImageReference) bool {
	if c.session == nil {
		return false
	}
	i, ok := c.session.byOrd[ref.OrdinalIndex]
	if !ok {
		return false
	}
	res := c.session.results[i]
	return res.OK() && res.Reference.ResolvedLocator == ref.ResolvedLocator
}

// scan runs on a worker goroutine.
func (c *Controller) scan(ctx context.Context, id int, pageURL string) {
	page, err := c.scanner.Scan(ctx, pageURL)
	if err != nil {
		c.post(func() { c.scanFinished(id, 0, err) })
		return
	}

	n, wait := c.previews.Launch(ctx, page.References(), c.settings.MaxConcurrentPreviews, func(r model.PreviewResult) {
		c.post(func() { c.previewReady(id, r) })
	})
	c.post(func() { c.scanFinished(id, n, nil) })
	wait()
}

func (c *Controller) previewReady(id int, r model.PreviewResult) {
	if c.session == nil || c.session.id != id {
		c.notifier.Log(event.Event{
			Message: fmt.Sprintf("Discarded stale preview from an earlier scan: %s", r.Reference.ResolvedLocator),
			Level:   event.LevelVerbose,
		})
		return
	}
	s := c.session
	s.byOrd[r.Reference.OrdinalIndex] = len(s.results)
	s.results = append(s.results, r)
	c.notifier.PreviewReady(r)
}

func (c *Controller) scanFinished(id, emitted int, err error) {
	if c.session == nil || c.session.id != id {
		return
	}
	s := c.session
	s.scanDone = true
	s.emitted = emitted

	summary := ScanSummary{PageURL: s.pageURL, Emitted: emitted, Err: err}
	if err != nil {
		c.state = StateIdle
		c.notifier.Log(event.Event{Message: fmt.Sprintf("Failed to scan website: %v", err), Level: event.LevelError})
	} else {
		c.state = StateReviewing
		c.notifier.Log(event.Event{Message: fmt.Sprintf("Found %d image(s) on %s", emitted, s.pageURL), Level: event.LevelSuccess})
	}
	c.notifier.ScanFinished(summary)
}

// download runs on a worker goroutine. Progress is forwarded to the loop
// in the order DownloadAll reports it.
func (c *Controller) download(ctx context.Context, pageURL string, sel model.Selection, destDir string) {
	outcomes, err := c.downloads.DownloadAll(ctx, sel, destDir, func(p download.Progress) {
		c.post(func() { c.notifier.DownloadProgress(p) })
	})

	summary := BatchSummary{Destination: destDir, Outcomes: outcomes, Err: err}
	for _, o := range outcomes {
		if o.OK() {
			summary.Succeeded++
			summary.Bytes += o.Bytes
		} else {
			summary.Failed++
		}
	}

	if err == nil && c.settings.ManifestFormat != "" {
		if path, merr := c.writeManifest(ctx, destDir, pageURL, outcomes); merr != nil {
			c.post(func() {
				c.notifier.Log(event.Event{Message: fmt.Sprintf("Error writing manifest: %v", merr), Level: event.LevelWarning})
			})
		} else {
			summary.ManifestPath = path
		}
	}

	c.post(func() { c.downloadFinished(summary) })
}

func (c *Controller) writeManifest(ctx context.Context, destDir, pageURL string, outcomes []model.DownloadOutcome) (string, error) {
	format, err := manifest.ParseFormat(c.settings.ManifestFormat)
	if err != nil {
		return "", err
	}
	return manifest.NewWriter(format).Write(ctx, destDir, pageURL, outcomes)
}

func (c *Controller) downloadFinished(summary BatchSummary) {
	c.state = StateIdle
	if summary.Err != nil {
		c.notifier.Rejected(summary.Err)
	}
	c.notifier.DownloadFinished(summary)
}
