// Package session owns the lifecycle of a scan and the download that
// follows it.
//
// # Controller
//
// The Controller is a small state machine:
//
//	Idle --StartScan--> Scanning --scan finished--> Reviewing --StartDownload--> Downloading --batch finished--> Idle
//
// A failed page fetch sends Scanning back to Idle. StartScan is accepted in
// Idle and Reviewing and replaces the previous scan session; it is rejected
// with ErrBusy while a scan or a download is running.
//
// # Coordinating loop
//
// Run is the single goroutine that owns all session state. Page fetches,
// preview fetches and downloads run on worker goroutines and hand their
// results back to the loop; only the loop changes state and only the loop
// calls the Notifier. Preview results that belong to a replaced session are
// dropped when they reach the loop.
//
// # Basic Usage
//
//	ctrl := session.New(settings, notifier)
//	go ctrl.Run(ctx)
//
//	if err := ctrl.StartScan(ctx, "example.com/gallery"); err != nil {
//	    // ErrBusy or *model.ValidationError
//	}
//	// ... notifier receives PreviewReady and ScanFinished ...
//	err := ctrl.StartDownload(ctx, model.NewSelection(refs...), "/out")
package session
