// Package ioutils provides file system and image processing utilities.
//
// This package contains functions for:
//   - Directory creation
//   - File writing
//   - Output file naming and filename sanitization
//   - Thumbnail generation for previews
//
// # File Operations
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/path/to/new/directory")
//
//	// Name the third selected image
//	name := ioutils.ImageFileName(3, "https://cdn.test/b.jpg?w=200")
//	// name == "image_3.jpg"
//
// # Image Processing
//
// The ImageService produces bounded previews:
//
//	svc := ioutils.NewImageService(ioutils.DefaultMaxPixels)
//
//	// Longest side at most 150px, encoded as PNG
//	thumb, err := svc.Thumbnail(ctx, imageData, 150)
//	fmt.Println(thumb.MimeType, thumb.Width, thumb.Height)
package ioutils
