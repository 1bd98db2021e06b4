package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultUserAgent is sent when no other User-Agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) imgscrape/1.0"

// DefaultMaxPageBytes caps the HTML documents GetPage reads.
const DefaultMaxPageBytes = 16 << 20

// ErrTooLarge is returned by GetPage and Fetch when a body exceeds the size cap.
var ErrTooLarge = errors.New("response body exceeds size limit")

// StatusError reports a response whose status code is not 2xx.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// Temporary reports whether retrying the request may succeed.
// Client errors (4xx) are treated as permanent.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client wraps HTTP operations with the scraper's configuration.
//
// Client provides:
//   - Configured User-Agent header
//   - Timeout handling (the only timeout the pipeline knows about)
//   - Page fetch reporting the final URL after redirects
//   - File download with progress tracking
//
// Example usage:
//
//	client := NewClient()
//
//	// Fetch HTML content
//	page, err := client.GetPage(ctx, "https://example.com/")
//
//	// Download file with progress
//	_, err = client.DownloadFile(ctx, imgURL, "/path/to/image_1.jpg", nil)
type Client struct {
	httpClient   *http.Client
	userAgent    string
	maxPageBytes int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithMaxPageBytes caps the size of documents read by GetPage.
// n <= 0 disables the cap.
func WithMaxPageBytes(n int64) Option {
	return func(c *Client) {
		c.maxPageBytes = n
	}
}

// NewClient creates a new HTTP client.
//
// Without options the client is configured with:
//   - 60 second timeout
//   - DefaultUserAgent
//   - DefaultMaxPageBytes page cap
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		userAgent:    DefaultUserAgent,
		maxPageBytes: DefaultMaxPageBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Page is a fetched HTML document.
type Page struct {
	// URL is the final URL after redirects.
	URL string

	ContentType string
	Body        []byte
}

// ProgressWriter wraps a writer to track download progress.
//
// Use this to monitor large downloads by providing an OnUpdate callback
// that receives the current bytes written and total expected bytes.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: file,
//	    Total:  contentLength,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(pw, response.Body)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header, -1 if unknown).
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	// Parameters are (bytesWritten, totalExpected).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// do issues a GET and returns the response if its status is 2xx.
// The caller must close the body.
func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

// GetPage fetches an HTML document and reports the URL it was finally
// served from, which is the right base for resolving relative links.
// Documents larger than the client's page cap fail with ErrTooLarge.
func (c *Client) GetPage(ctx context.Context, url string) (*Page, error) {
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if c.maxPageBytes > 0 {
		r = io.LimitReader(resp.Body, c.maxPageBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if c.maxPageBytes > 0 && int64(len(body)) > c.maxPageBytes {
		return nil, ErrTooLarge
	}

	final := url
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return &Page{URL: final, ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}

// Fetch downloads a resource into memory and returns it with its
// Content-Type header. Bodies larger than maxBytes fail with ErrTooLarge;
// maxBytes <= 0 disables the cap.
//
// Use this for small files like preview images. For downloads that end up
// on disk, use DownloadFile to stream directly.
func (c *Client) Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, string, error) {
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if maxBytes > 0 {
		r = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, "", ErrTooLarge
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// DownloadFile downloads a file to the specified path with optional progress callback.
//
// The file is created (or truncated if it exists) and the content is streamed
// directly to disk. If the transfer fails after the file was created, the
// partial file is removed.
//
// The returned error wraps a *WriteError when the local file could not be
// created or written, so callers can tell write failures from transport
// failures.
//
// Example:
//
//	n, err := client.DownloadFile(ctx, imgURL, "/out/image_1.png", func(written, total int64) {
//	    if total > 0 {
//	        fmt.Printf("%.1f%%\r", float64(written)/float64(total)*100)
//	    }
//	})
func (c *Client) DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) (int64, error) {
	resp, err := c.do(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	file, err := os.Create(destPath)
	if err != nil {
		return 0, &WriteError{Path: destPath, Err: err}
	}

	pw := &ProgressWriter{
		Writer:   &fileWriter{file: file},
		Total:    resp.ContentLength,
		OnUpdate: onProgress,
	}

	_, err = io.Copy(pw, resp.Body)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = &WriteError{Path: destPath, Err: cerr}
	}
	if err != nil {
		os.Remove(destPath)
		return 0, err
	}
	return pw.Written, nil
}

// fileWriter tags write failures so they are not mistaken for a broken
// response body.
type fileWriter struct {
	file *os.File
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	if err != nil {
		return n, &WriteError{Path: w.file.Name(), Err: err}
	}
	return n, nil
}

// WriteError wraps a failure on the local side of a download.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
