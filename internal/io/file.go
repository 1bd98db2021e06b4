package ioutils

import (
	"context"
	"net/url"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// maxExtLen bounds the extension copied from a locator. Anything longer is
// not a file extension but a dotted path segment.
const maxExtLen = 10

var (
	invalidChars     = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots     = regexp.MustCompile(`\.+$`)
	repeatedSpaces   = regexp.MustCompile(`\s+`)
	extensionPattern = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)
)

// WriteFile writes data to a file, creating it if necessary.
//
// The file is created with mode 0644. If the file already exists,
// it is truncated before writing.
//
// Parameters:
//   - ctx: Context for cancellation (checked before writing)
//   - path: File path to write to
//   - data: Bytes to write
//
// Example:
//
//	err := WriteFile(ctx, "/out/manifest.json", data)
func WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// This function ensures filenames are valid across different operating systems,
// particularly Windows which has the most restrictive naming rules.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Trailing whitespace → removed
//
// Example:
//
//	SanitizeFileName("shot: 1/2")   // Returns "shot_ 1_2"
//	SanitizeFileName("image...")    // Returns "image"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	return strings.TrimRight(name, " ")
}

// Extension returns the file extension of the locator's path, including the
// leading dot, or "" when the path has none.
//
// Query and fragment are ignored, so "https://x.test/a.png?w=1" yields
// ".png". Extensions that are not plain alphanumerics or are implausibly
// long are treated as absent.
func Extension(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	if len(ext) < 2 || len(ext) > maxExtLen || !extensionPattern.MatchString(ext) {
		return ""
	}
	return SanitizeFileName(ext)
}

// ImageFileName returns the name a downloaded image is stored under:
// image_<position> followed by the locator's extension, if any.
//
// Example:
//
//	ImageFileName(1, "http://x.test/a.png")    // "image_1.png"
//	ImageFileName(2, "http://x.test/pic")      // "image_2"
func ImageFileName(position int, locator string) string {
	return "image_" + strconv.Itoa(position) + Extension(locator)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned. If path exists but
// is not a directory, an error is returned.
//
// Example:
//
//	err := EnsureDir("/pictures/example.com")
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
