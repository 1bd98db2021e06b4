// Package manifest records what a download batch wrote and where each file
// came from.
//
// A manifest is written next to the downloaded images:
//
//	w := manifest.NewWriter(manifest.FormatJSON)
//	path, err := w.Write(ctx, "/out", pageURL, outcomes)
//	// path == "/out/manifest.json"
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	ioutils "github.com/handiism/image-scraper/internal/io"
	"github.com/handiism/image-scraper/internal/model"
)

// Format represents supported manifest file formats.
type Format int

const (
	// FormatText writes an extended-M3U style list: one file name per line,
	// preceded by a #SOURCE comment.
	FormatText Format = iota

	// FormatJSON writes an indented JSON document.
	FormatJSON

	// FormatYAML writes a YAML document.
	FormatYAML
)

// ParseFormat maps a settings value ("text", "json", "yaml") to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return 0, fmt.Errorf("unknown manifest format %q", s)
}

// Extension returns the file extension for the format, with the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	default:
		return ".txt"
	}
}

// Document is the structured form of a manifest.
type Document struct {
	Page      string  `json:"page" yaml:"page"`
	Total     int     `json:"total" yaml:"total"`
	Succeeded int     `json:"succeeded" yaml:"succeeded"`
	Failed    int     `json:"failed" yaml:"failed"`
	Entries   []Entry `json:"entries" yaml:"entries"`
}

// Entry describes one selected image.
type Entry struct {
	Position int    `json:"position" yaml:"position"`
	Ordinal  int    `json:"ordinal" yaml:"ordinal"`
	Source   string `json:"source" yaml:"source"`
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Bytes    int64  `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewDocument builds a Document from a batch's outcomes. File names are
// relative to the destination directory.
func NewDocument(page string, outcomes []model.DownloadOutcome) Document {
	doc := Document{Page: page, Total: len(outcomes), Entries: make([]Entry, 0, len(outcomes))}
	for _, o := range outcomes {
		e := Entry{
			Position: o.Position,
			Ordinal:  o.Reference.OrdinalIndex,
			Source:   o.Reference.ResolvedLocator,
		}
		if o.OK() {
			e.File = filepath.Base(o.DestinationPath)
			e.Bytes = o.Bytes
			doc.Succeeded++
		} else {
			if o.Err != nil {
				e.Error = o.Err.Error()
			}
			doc.Failed++
		}
		doc.Entries = append(doc.Entries, e)
	}
	return doc
}

// Writer generates manifest files in one format.
//
// Example:
//
//	w := NewWriter(FormatText)
//	content, _ := w.Create(doc)
//
//	// Result:
//	// #IMGSCRAPE page=https://x.test/p
//	// #SOURCE:http://x.test/a.png
//	// image_1.png
//	// #FAILED:https://cdn.test/b.jpg download ...: HTTP 404: 404 Not Found
type Writer struct {
	format Format
}

// NewWriter creates a new Writer.
func NewWriter(format Format) *Writer {
	return &Writer{format: format}
}

// FileName is the name the manifest is stored under.
func (w *Writer) FileName() string {
	return "manifest" + w.format.Extension()
}

// Create renders doc in the writer's format.
func (w *Writer) Create(doc Document) ([]byte, error) {
	switch w.format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return w.createText(doc), nil
	}
}

// createText generates the plain-text manifest.
//
// Successful entries are a #SOURCE line followed by the file name; failed
// entries are a single #FAILED line, so the non-comment lines are exactly
// the files present on disk.
func (w *Writer) createText(doc Document) []byte {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("#IMGSCRAPE page=%s\n", doc.Page))
	for _, e := range doc.Entries {
		if e.File == "" {
			sb.WriteString(fmt.Sprintf("#FAILED:%s %s\n", e.Source, oneLine(e.Error)))
			continue
		}
		sb.WriteString(fmt.Sprintf("#SOURCE:%s\n", e.Source))
		sb.WriteString(e.File + "\n")
	}

	return []byte(sb.String())
}

// Write renders the manifest for outcomes and stores it in dir.
func (w *Writer) Write(ctx context.Context, dir, page string, outcomes []model.DownloadOutcome) (string, error) {
	data, err := w.Create(NewDocument(page, outcomes))
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, w.FileName())
	if err := ioutils.WriteFile(ctx, path, data); err != nil {
		return "", err
	}
	return path, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
