package model

// DownloadOutcome is the result of downloading one selected reference.
//
// DestinationPath is set on success and Err on failure, never both.
type DownloadOutcome struct {
	Reference ImageReference

	// Position is the 1-based index within the selection. It also names
	// the written file (image_<Position><ext>).
	Position int

	DestinationPath string

	// Bytes is the number of bytes written on success.
	Bytes int64

	Err error
}

// OK reports whether the item was written to disk.
func (o DownloadOutcome) OK() bool {
	return o.Err == nil && o.DestinationPath != ""
}
