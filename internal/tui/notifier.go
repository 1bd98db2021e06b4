package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/handiism/image-scraper/internal/download"
	"github.com/handiism/image-scraper/internal/event"
	"github.com/handiism/image-scraper/internal/model"
	"github.com/handiism/image-scraper/internal/session"
)

// Message types delivered by the session controller.
type (
	// PreviewMsg carries one preview of the current scan.
	PreviewMsg struct {
		Result model.PreviewResult
	}

	// ScanDoneMsg is sent when the scan's reference sequence is exhausted.
	ScanDoneMsg struct {
		Summary session.ScanSummary
	}

	// ProgressMsg is sent after each item of a download batch resolves.
	ProgressMsg struct {
		Progress download.Progress
	}

	// BatchDoneMsg is sent once the whole batch resolved.
	BatchDoneMsg struct {
		Summary session.BatchSummary
	}

	// RejectedMsg reports a refused scan or download request.
	RejectedMsg struct {
		Err error
	}

	// LogMsg carries a diagnostic event from the pipeline.
	LogMsg struct {
		Event event.Event
	}
)

// programNotifier forwards controller notifications into the Bubble Tea
// event loop. send is tea.Program.Send, which only blocks until the
// program's loop picks the message up.
type programNotifier struct {
	send func(tea.Msg)
}

func (n programNotifier) PreviewReady(r model.PreviewResult) { n.send(PreviewMsg{Result: r}) }
func (n programNotifier) ScanFinished(s session.ScanSummary) { n.send(ScanDoneMsg{Summary: s}) }
func (n programNotifier) DownloadProgress(p download.Progress) {
	n.send(ProgressMsg{Progress: p})
}
func (n programNotifier) DownloadFinished(b session.BatchSummary) { n.send(BatchDoneMsg{Summary: b}) }
func (n programNotifier) Rejected(err error)                      { n.send(RejectedMsg{Err: err}) }
func (n programNotifier) Log(e event.Event)                       { n.send(LogMsg{Event: e}) }
