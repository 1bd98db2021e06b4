package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusFound)
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(make([]byte, 64))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GetPageFollowsRedirect(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient()

	page, err := c.GetPage(context.Background(), srv.URL+"/moved")
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if page.URL != srv.URL+"/page" {
		t.Errorf("URL = %q, want %q", page.URL, srv.URL+"/page")
	}
	if string(page.Body) != "<html></html>" {
		t.Errorf("Body = %q", page.Body)
	}
}

func TestClient_GetPageSizeLimit(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{name: "default cap", wantErr: nil},
		{name: "at cap", opts: []Option{WithMaxPageBytes(13)}, wantErr: nil},
		{name: "over cap", opts: []Option{WithMaxPageBytes(12)}, wantErr: ErrTooLarge},
		{name: "cap disabled", opts: []Option{WithMaxPageBytes(0)}, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := NewClient(tt.opts...).GetPage(context.Background(), srv.URL+"/page")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetPage failed: %v", err)
			}
			if string(page.Body) != "<html></html>" {
				t.Errorf("Body = %q", page.Body)
			}
		})
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient()

	_, _, err := c.Fetch(context.Background(), srv.URL+"/missing", 0)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", se.StatusCode)
	}
	if se.Temporary() {
		t.Error("404 should not be temporary")
	}
}

func TestClient_UserAgent(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{name: "default", want: DefaultUserAgent},
		{name: "custom", opts: []Option{WithUserAgent("tester/2")}, want: "tester/2"},
		{name: "empty keeps default", opts: []Option{WithUserAgent("")}, want: DefaultUserAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _, err := NewClient(tt.opts...).Fetch(context.Background(), srv.URL+"/ua", 0)
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if string(body) != tt.want {
				t.Errorf("User-Agent = %q, want %q", body, tt.want)
			}
		})
	}
}

func TestClient_FetchSizeLimit(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient()

	data, ct, err := c.Fetch(context.Background(), srv.URL+"/big", 64)
	if err != nil {
		t.Fatalf("Fetch at limit failed: %v", err)
	}
	if len(data) != 64 || ct != "image/png" {
		t.Errorf("got %d bytes, content type %q", len(data), ct)
	}

	_, _, err = c.Fetch(context.Background(), srv.URL+"/big", 63)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestClient_DownloadFile(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient()
	dir := t.TempDir()

	dest := filepath.Join(dir, "image_1.png")
	var last int64
	n, err := c.DownloadFile(context.Background(), srv.URL+"/big", dest, func(written, total int64) {
		last = written
	})
	if err != nil {
		t.Fatalf("DownloadFile failed: %v", err)
	}
	if n != 64 || last != 64 {
		t.Errorf("written = %d, last progress = %d, want 64", n, last)
	}
	if info, err := os.Stat(dest); err != nil || info.Size() != 64 {
		t.Errorf("file not written correctly: %v", err)
	}

	missing := filepath.Join(dir, "image_2.png")
	if _, err := c.DownloadFile(context.Background(), srv.URL+"/missing", missing, nil); err == nil {
		t.Fatal("expected error for 404")
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Error("no file should be created for a failed response")
	}

	var we *WriteError
	_, err = c.DownloadFile(context.Background(), srv.URL+"/big", filepath.Join(dir, "nope", "x.png"), nil)
	if !errors.As(err, &we) {
		t.Errorf("expected *WriteError, got %v", err)
	}
}
