package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/handiism/image-scraper/internal/config"
	"github.com/handiism/image-scraper/internal/download"
	"github.com/handiism/image-scraper/internal/event"
	"github.com/handiism/image-scraper/internal/model"
)

type recorder struct {
	mu       sync.Mutex
	previews []model.PreviewResult
	scans    []ScanSummary
	progress []download.Progress
	batches  []BatchSummary
	rejected []error
	logs     []event.Event
}

func (r *recorder) PreviewReady(p model.PreviewResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.previews = append(r.previews, p)
}

func (r *recorder) ScanFinished(s ScanSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans = append(r.scans, s)
}

func (r *recorder) DownloadProgress(p download.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) DownloadFinished(b BatchSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

func (r *recorder) Rejected(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, err)
}

func (r *recorder) Log(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, e)
}

func (r *recorder) with(f func(r *recorder)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f(r)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 20))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 30, 30)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// site serves a few pages and images. Handlers registered with gate block
// until release is called. /held.png answers its first request at once
// and gates every later one, so a preview succeeds while the download of
// the same image waits.
type site struct {
	*httptest.Server
	mux  *http.ServeMux
	gate chan struct{}
	once sync.Once
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{mux: http.NewServeMux(), gate: make(chan struct{})}
	pngData := encodePNG(t)
	jpegData := encodeJPEG(t)

	s.mux.HandleFunc("/a.png", func(w http.ResponseWriter, r *http.Request) { w.Write(pngData) })
	s.mux.HandleFunc("/b.jpg", func(w http.ResponseWriter, r *http.Request) { w.Write(jpegData) })
	s.mux.HandleFunc("/broken.png", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("not an image")) })
	s.mux.HandleFunc("/gone.png", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	s.mux.HandleFunc("/slow.png", func(w http.ResponseWriter, r *http.Request) {
		<-s.gate
		w.Write(pngData)
	})
	var heldRequests atomic.Int32
	s.mux.HandleFunc("/held.png", func(w http.ResponseWriter, r *http.Request) {
		if heldRequests.Add(1) > 1 {
			<-s.gate
		}
		w.Write(pngData)
	})
	s.mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>nothing here</p></body></html>`)
	})
	s.mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	s.mux.HandleFunc("/stuck", func(w http.ResponseWriter, r *http.Request) {
		<-s.gate
		fmt.Fprint(w, `<html></html>`)
	})

	s.Server = httptest.NewServer(s.mux)
	t.Cleanup(s.Close)
	t.Cleanup(s.release)
	return s
}

func (s *site) page(path, body string) {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	})
}

func (s *site) release() {
	s.once.Do(func() { close(s.gate) })
}

func startController(t *testing.T, configure func(*config.Settings)) (*Controller, *recorder) {
	t.Helper()
	settings := config.DefaultSettings()
	settings.DownloadRetryCooldown = 0
	settings.DownloadMaxRetries = 0
	settings.ManifestFormat = ""
	settings.RequestTimeoutSeconds = 10
	if configure != nil {
		configure(settings)
	}

	rec := &recorder{}
	c := New(settings, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c, rec
}

func waitForState(t *testing.T, c *Controller, want State) Snapshot {
	t.Helper()
	var snap Snapshot
	waitFor(t, "state "+want.String(), func() bool {
		var err error
		snap, err = c.Snapshot(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return snap.State == want
	})
	return snap
}

// scanAndReview runs a scan and waits until every preview has arrived.
func scanAndReview(t *testing.T, c *Controller, url string) Snapshot {
	t.Helper()
	ctx := context.Background()
	if err := c.StartScan(ctx, url); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	waitForState(t, c, StateReviewing)

	var snap Snapshot
	waitFor(t, "all previews", func() bool {
		snap, _ = c.Snapshot(ctx)
		return len(snap.Results) == snap.Emitted
	})
	return snap
}

func okRefs(results []model.PreviewResult) []model.ImageReference {
	var refs []model.ImageReference
	for _, r := range results {
		if r.OK() {
			refs = append(refs, r.Reference)
		}
	}
	return refs
}

func byOrdinal(results []model.PreviewResult) map[int]model.PreviewResult {
	m := make(map[int]model.PreviewResult, len(results))
	for _, r := range results {
		m[r.Reference.OrdinalIndex] = r
	}
	return m
}

func TestController_ScanAndDownload(t *testing.T) {
	s := newSite(t)
	s.page("/p", fmt.Sprintf(`<html><body><img src="/a.png"><img alt="no source"><img src="%s/b.jpg"></body></html>`, s.URL))

	c, rec := startController(t, nil)
	snap := scanAndReview(t, c, s.URL+"/p")

	if snap.Emitted != 2 {
		t.Fatalf("Emitted = %d, want 2", snap.Emitted)
	}
	results := byOrdinal(snap.Results)
	if got := results[0].Reference.ResolvedLocator; got != s.URL+"/a.png" {
		t.Errorf("ordinal 0 = %q, want %q", got, s.URL+"/a.png")
	}
	if got := results[1].Reference.ResolvedLocator; got != s.URL+"/b.jpg" {
		t.Errorf("ordinal 1 = %q, want %q", got, s.URL+"/b.jpg")
	}
	for ord, r := range results {
		if !r.OK() {
			t.Errorf("preview %d failed: %v", ord, r.Err)
		}
	}

	dest := filepath.Join(t.TempDir(), "out")
	sel := model.NewSelection(results[0].Reference, results[1].Reference)
	if err := c.StartDownload(context.Background(), sel, dest); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}

	waitFor(t, "batch end", func() bool {
		var n int
		rec.with(func(r *recorder) { n = len(r.batches) })
		return n == 1
	})
	waitForState(t, c, StateIdle)

	for _, name := range []string{"image_1.png", "image_2.jpg"} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	rec.with(func(r *recorder) {
		if len(r.scans) != 1 || r.scans[0].Err != nil || r.scans[0].Emitted != 2 {
			t.Errorf("scans = %+v", r.scans)
		}
		if len(r.previews) != 2 {
			t.Errorf("PreviewReady called %d times, want 2", len(r.previews))
		}
		if len(r.progress) != 2 {
			t.Fatalf("progress = %d calls, want 2", len(r.progress))
		}
		for i, p := range r.progress {
			if p.Completed != i+1 || p.Total != 2 {
				t.Errorf("progress[%d] = %d/%d", i, p.Completed, p.Total)
			}
		}
		b := r.batches[0]
		if b.Succeeded != 2 || b.Failed != 0 || b.Err != nil {
			t.Errorf("batch = %+v", b)
		}
		if len(r.rejected) != 0 {
			t.Errorf("unexpected rejections: %v", r.rejected)
		}
	})
}

func TestController_PreviewFailures(t *testing.T) {
	s := newSite(t)
	s.page("/mixed", `<img src="/a.png"><img src="/gone.png"><img src="/broken.png"><img src="/b.jpg">`)

	c, rec := startController(t, nil)
	snap := scanAndReview(t, c, s.URL+"/mixed")

	if snap.Emitted != 4 || len(snap.Results) != 4 {
		t.Fatalf("emitted %d, results %d, want 4 and 4", snap.Emitted, len(snap.Results))
	}
	results := byOrdinal(snap.Results)

	var pe *model.PreviewError
	if r := results[1]; r.OK() || !errors.As(r.Err, &pe) || pe.Stage != model.StageFetch {
		t.Errorf("gone.png: %v", r.Err)
	}
	if r := results[2]; r.OK() || !errors.As(r.Err, &pe) || pe.Stage != model.StageDecode {
		t.Errorf("broken.png: %v", r.Err)
	}
	if !results[0].OK() || !results[3].OK() {
		t.Errorf("expected a.png and b.jpg to succeed")
	}

	// Failed previews cannot be selected.
	err := c.StartDownload(context.Background(), model.NewSelection(results[1].Reference), t.TempDir())
	if !model.IsValidation(err) {
		t.Errorf("selecting a failed preview: err = %v, want ValidationError", err)
	}
	rec.with(func(r *recorder) {
		if len(r.previews) != 4 {
			t.Errorf("PreviewReady called %d times, want 4", len(r.previews))
		}
	})
}

func TestController_NoImages(t *testing.T) {
	s := newSite(t)
	c, rec := startController(t, nil)

	snap := scanAndReview(t, c, s.URL+"/empty")
	if snap.Emitted != 0 || len(snap.Results) != 0 {
		t.Errorf("snapshot = %+v, want no results", snap)
	}
	rec.with(func(r *recorder) {
		if len(r.scans) != 1 || r.scans[0].Err != nil {
			t.Errorf("scans = %+v", r.scans)
		}
	})
}

func TestController_ScanFailure(t *testing.T) {
	s := newSite(t)
	s.page("/ok", `<img src="/a.png">`)
	c, rec := startController(t, nil)
	ctx := context.Background()

	if err := c.StartScan(ctx, s.URL+"/error"); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	waitFor(t, "scan end", func() bool {
		var n int
		rec.with(func(r *recorder) { n = len(r.scans) })
		return n == 1
	})
	waitForState(t, c, StateIdle)

	rec.with(func(r *recorder) {
		var fe *model.FetchError
		if !errors.As(r.scans[0].Err, &fe) {
			t.Errorf("scan error = %v, want FetchError", r.scans[0].Err)
		}
		if len(r.previews) != 0 {
			t.Errorf("unexpected previews: %d", len(r.previews))
		}
	})

	// A new scan is accepted after a failure.
	snap := scanAndReview(t, c, s.URL+"/ok")
	if snap.Emitted != 1 {
		t.Errorf("Emitted = %d, want 1", snap.Emitted)
	}
}

func TestController_BusyWhileScanning(t *testing.T) {
	s := newSite(t)
	c, rec := startController(t, nil)
	ctx := context.Background()

	if err := c.StartScan(ctx, s.URL+"/stuck"); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	if err := c.StartScan(ctx, s.URL+"/empty"); !errors.Is(err, ErrBusy) {
		t.Errorf("second StartScan err = %v, want ErrBusy", err)
	}
	if err := c.StartDownload(ctx, nil, t.TempDir()); !errors.Is(err, ErrBusy) {
		t.Errorf("StartDownload while scanning err = %v, want ErrBusy", err)
	}

	snap, err := c.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != StateScanning || snap.PageURL != s.URL+"/stuck" {
		t.Errorf("snapshot = %+v, want scanning %s", snap, s.URL+"/stuck")
	}

	s.release()
	waitForState(t, c, StateReviewing)

	rec.with(func(r *recorder) {
		if len(r.rejected) != 2 {
			t.Errorf("Rejected called %d times, want 2", len(r.rejected))
		}
	})
}

func TestController_BusyWhileDownloading(t *testing.T) {
	s := newSite(t)
	s.page("/p", `<img src="/held.png">`)

	c, rec := startController(t, nil)
	snap := scanAndReview(t, c, s.URL+"/p")
	refs := okRefs(snap.Results)
	if len(refs) != 1 {
		t.Fatalf("downloadable previews = %d, want 1", len(refs))
	}

	ctx := context.Background()
	dest := t.TempDir()
	if err := c.StartDownload(ctx, model.NewSelection(refs...), dest); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}

	err := c.StartScan(ctx, s.URL+"/p")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("StartScan while downloading err = %v, want ErrBusy", err)
	}
	if state, err := c.State(ctx); err != nil || state != StateDownloading {
		t.Errorf("state = %v (err %v), want downloading", state, err)
	}
	rec.with(func(r *recorder) {
		if len(r.rejected) != 1 {
			t.Errorf("Rejected called %d times, want 1", len(r.rejected))
		}
		if len(r.scans) != 1 {
			t.Errorf("a rejected scan reached ScanFinished: %+v", r.scans)
		}
	})

	s.release()
	waitForState(t, c, StateIdle)
	if _, err := os.Stat(filepath.Join(dest, "image_1.png")); err != nil {
		t.Errorf("download did not finish: %v", err)
	}
}

func TestController_StalePreviewsDiscarded(t *testing.T) {
	s := newSite(t)
	s.page("/first", `<img src="/slow.png">`)
	s.page("/second", `<img src="/a.png">`)
	c, rec := startController(t, nil)
	ctx := context.Background()

	if err := c.StartScan(ctx, s.URL+"/first"); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	// The first scan finishes while its only preview is still in flight.
	waitForState(t, c, StateReviewing)

	snap := scanAndReview(t, c, s.URL+"/second")
	if snap.PageURL != s.URL+"/second" {
		t.Fatalf("PageURL = %q", snap.PageURL)
	}

	s.release()
	waitFor(t, "stale discard", func() bool {
		found := false
		rec.with(func(r *recorder) {
			for _, e := range r.logs {
				if e.Level == event.LevelVerbose && strings.Contains(e.Message, "stale") {
					found = true
				}
			}
		})
		return found
	})

	snap, err := c.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Results) != 1 || snap.Results[0].Reference.ResolvedLocator != s.URL+"/a.png" {
		t.Errorf("results = %+v, want only a.png", snap.Results)
	}
	rec.with(func(r *recorder) {
		for _, p := range r.previews {
			if strings.HasSuffix(p.Reference.ResolvedLocator, "/slow.png") {
				t.Errorf("stale preview delivered: %s", p.Reference.ResolvedLocator)
			}
		}
	})
}

func TestController_DownloadValidation(t *testing.T) {
	s := newSite(t)
	s.page("/p", `<img src="/a.png">`)
	c, rec := startController(t, nil)
	ctx := context.Background()

	if err := c.StartDownload(ctx, nil, t.TempDir()); !errors.Is(err, ErrNotReviewing) {
		t.Errorf("StartDownload while idle err = %v, want ErrNotReviewing", err)
	}

	snap := scanAndReview(t, c, s.URL+"/p")
	good := okRefs(snap.Results)
	if len(good) != 1 {
		t.Fatalf("expected one good preview, got %d", len(good))
	}

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	foreign := model.ImageReference{RawAttribute: "/x.png", ResolvedLocator: s.URL + "/x.png", OrdinalIndex: 7}

	tests := []struct {
		name string
		sel  model.Selection
		dest string
	}{
		{name: "empty selection", sel: nil, dest: t.TempDir()},
		{name: "empty destination", sel: model.NewSelection(good...), dest: "  "},
		{name: "uncreatable destination", sel: model.NewSelection(good...), dest: filepath.Join(blocker, "sub")},
		{name: "reference from elsewhere", sel: model.NewSelection(foreign), dest: t.TempDir()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.StartDownload(ctx, tt.sel, tt.dest)
			if !model.IsValidation(err) {
				t.Errorf("err = %v, want ValidationError", err)
			}
			st, err := c.State(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if st != StateReviewing {
				t.Errorf("state = %s, want reviewing", st)
			}
		})
	}

	rec.with(func(r *recorder) {
		if len(r.rejected) != len(tests)+1 {
			t.Errorf("Rejected called %d times, want %d", len(r.rejected), len(tests)+1)
		}
		if len(r.batches) != 0 {
			t.Errorf("unexpected batch: %+v", r.batches)
		}
	})
}

func TestController_Manifest(t *testing.T) {
	s := newSite(t)
	s.page("/p", `<img src="/a.png"><img src="/b.jpg">`)
	c, rec := startController(t, func(s *config.Settings) { s.ManifestFormat = "json" })

	snap := scanAndReview(t, c, s.URL+"/p")
	dest := t.TempDir()
	if err := c.StartDownload(context.Background(), model.NewSelection(okRefs(snap.Results)...), dest); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	waitForState(t, c, StateIdle)

	var b BatchSummary
	rec.with(func(r *recorder) { b = r.batches[0] })
	if b.ManifestPath != filepath.Join(dest, "manifest.json") {
		t.Errorf("ManifestPath = %q", b.ManifestPath)
	}
	data, err := os.ReadFile(b.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), s.URL+"/p") {
		t.Errorf("manifest does not mention the page: %s", data)
	}
}

func TestController_InvalidURL(t *testing.T) {
	c, _ := startController(t, nil)
	err := c.StartScan(context.Background(), "   ")
	if !model.IsValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
	if st, _ := c.State(context.Background()); st != StateIdle {
		t.Errorf("state = %s, want idle", st)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:        "idle",
		StateScanning:    "scanning",
		StateReviewing:   "reviewing",
		StateDownloading: "downloading",
		State(9):         "state(9)",
	}
	for st, want := range tests {
		if got := st.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(st), got, want)
		}
	}
}
