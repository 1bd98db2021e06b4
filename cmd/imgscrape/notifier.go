package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/handiism/image-scraper/internal/download"
	"github.com/handiism/image-scraper/internal/event"
	"github.com/handiism/image-scraper/internal/model"
	"github.com/handiism/image-scraper/internal/session"
)

// cliNotifier prints progress as it happens and hands previews and
// summaries to the goroutine running the command.
type cliNotifier struct {
	log *logrus.Logger
	out io.Writer

	previews chan model.PreviewResult
	scans    chan session.ScanSummary
	batches  chan session.BatchSummary
	done     chan struct{}
}

func newCLINotifier(log *logrus.Logger, out io.Writer) *cliNotifier {
	return &cliNotifier{
		log:      log,
		out:      out,
		previews: make(chan model.PreviewResult, 64),
		scans:    make(chan session.ScanSummary, 1),
		batches:  make(chan session.BatchSummary, 1),
		done:     make(chan struct{}),
	}
}

// close releases a controller blocked on a notification nobody reads.
func (n *cliNotifier) close() {
	close(n.done)
}

func (n *cliNotifier) PreviewReady(r model.PreviewResult) {
	select {
	case n.previews <- r:
	case <-n.done:
	}
}

func (n *cliNotifier) ScanFinished(s session.ScanSummary) {
	select {
	case n.scans <- s:
	case <-n.done:
	}
}

func (n *cliNotifier) DownloadProgress(p download.Progress) {
	o := p.Outcome
	if o.OK() {
		okColor.Fprintf(n.out, "[%d/%d] ", p.Completed, p.Total)
		fmt.Fprintf(n.out, "%s <- %s\n", filepath.Base(o.DestinationPath), o.Reference.ResolvedLocator)
		return
	}
	failColor.Fprintf(n.out, "[%d/%d] failed %s: %v\n", p.Completed, p.Total, o.Reference.ResolvedLocator, o.Err)
}

func (n *cliNotifier) DownloadFinished(b session.BatchSummary) {
	select {
	case n.batches <- b:
	case <-n.done:
	}
}

func (n *cliNotifier) Rejected(err error) {
	n.log.WithError(err).Debug("Request rejected")
}

func (n *cliNotifier) Log(e event.Event) {
	entry := n.log.WithField("component", "pipeline")
	switch e.Level {
	case event.LevelVerbose:
		entry.Debug(e.Message)
	case event.LevelWarning:
		entry.Warn(e.Message)
	case event.LevelError:
		entry.Error(e.Message)
	case event.LevelSuccess:
		entry.WithField("status", "ok").Info(e.Message)
	default:
		entry.Info(e.Message)
	}
}

// waitScan blocks until the scan ended and every preview it announced has
// arrived.
func (n *cliNotifier) waitScan(ctx context.Context) (session.ScanSummary, []model.PreviewResult, error) {
	var (
		results []model.PreviewResult
		summary session.ScanSummary
		ended   bool
	)
	for !ended || len(results) < summary.Emitted {
		select {
		case r := <-n.previews:
			results = append(results, r)
		case summary = <-n.scans:
			ended = true
		case <-ctx.Done():
			return summary, results, ctx.Err()
		}
	}
	return summary, results, nil
}

func (n *cliNotifier) waitBatch(ctx context.Context) (session.BatchSummary, error) {
	select {
	case b := <-n.batches:
		return b, nil
	case <-ctx.Done():
		return session.BatchSummary{}, ctx.Err()
	}
}
