package model

// Thumbnail is a bounded-size rendition of a fetched image.
type Thumbnail struct {
	// Data holds the encoded thumbnail (PNG).
	Data []byte

	// MimeType is the detected type of the source image, e.g. "image/jpeg".
	MimeType string

	// Width and Height are the thumbnail dimensions in pixels.
	Width  int
	Height int
}

// PreviewResult is the outcome of fetching one reference for preview.
//
// Exactly one of Thumbnail and Err is set. A failed result still counts
// towards the scan's total but cannot be selected for download.
type PreviewResult struct {
	Reference ImageReference
	Thumbnail *Thumbnail
	Err       error
}

// OK reports whether the preview was fetched and decoded.
func (r PreviewResult) OK() bool {
	return r.Err == nil && r.Thumbnail != nil
}

// Reason returns the failure message, or "" for a successful result.
func (r PreviewResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
