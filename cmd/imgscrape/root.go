package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/handiism/image-scraper/internal/config"
	"github.com/handiism/image-scraper/internal/model"
	"github.com/handiism/image-scraper/internal/session"
)

type options struct {
	output     string
	selection  string
	configPath string
	manifest   string
	dryRun     bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "imgscrape <url>",
		Short: "Download the images of a web page",
		Long: `imgscrape fetches a web page, lists every image it references and
downloads the selected ones into a directory as image_1.png, image_2.jpg, ...

The scheme may be omitted from the URL; https is assumed. Images are
selected with --select using the numbers shown in the listing.`,
		Example: `  imgscrape example.com/gallery
  imgscrape https://example.com/gallery --select 1,3-5 --output ./pictures
  imgscrape example.com/gallery --dry-run`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "output directory (overrides config)")
	flags.StringVarP(&opts.selection, "select", "s", "all", `images to download: "all" or numbers and ranges such as 1,3-5`)
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to config file (.json, .toml or .yaml)")
	flags.StringVarP(&opts.manifest, "manifest", "m", "", "write a manifest next to the images: text, json or yaml")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "list the images without downloading")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "show verbose output")

	return cmd
}

// loadSettings layers config file, environment and flags, in that order.
func loadSettings(opts *options) (*config.Settings, error) {
	settings := config.DefaultSettings()
	if opts.configPath != "" {
		var err error
		settings, err = config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}
	if err := settings.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if opts.output != "" {
		settings.DownloadsPath = opts.output
	}
	if opts.manifest != "" {
		settings.ManifestFormat = opts.manifest
	}
	return settings, settings.Validate()
}

func newLogger(verbose bool, w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	okColor      = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed)
	dimColor     = color.New(color.Faint)
	summaryColor = color.New(color.FgGreen, color.Bold)
)

func run(ctx context.Context, opts *options, rawURL string, out, errOut io.Writer) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	log := newLogger(opts.verbose, errOut)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifier := newCLINotifier(log, out)
	defer notifier.close()

	ctrl := session.New(settings, notifier)
	go ctrl.Run(ctx)

	headerColor.Fprintln(out, "imgscrape")
	fmt.Fprintln(out)

	if err := ctrl.StartScan(ctx, rawURL); err != nil {
		return err
	}
	scan, results, err := notifier.waitScan(ctx)
	if err != nil {
		return err
	}
	if scan.Err != nil {
		return scan.Err
	}

	printPreviews(out, scan, results)
	if len(results) == 0 {
		return nil
	}

	sel, err := pickSelection(opts.selection, results)
	if err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Fprintf(out, "\n[Dry run - %d image(s) selected, not downloading]\n", len(sel))
		printSelection(out, sel)
		return nil
	}

	fmt.Fprintf(out, "\nDownloading %d image(s) to %s\n\n", len(sel), settings.DownloadsPath)
	for i, loc := range sel.Locators() {
		log.WithField("position", i+1).Debugf("Queued %s", loc)
	}
	if err := ctrl.StartDownload(ctx, sel, settings.DownloadsPath); err != nil {
		return err
	}
	batch, err := notifier.waitBatch(ctx)
	if err != nil {
		return err
	}

	printSummary(out, batch)
	if batch.Err != nil {
		return batch.Err
	}
	if batch.Failed > 0 {
		return fmt.Errorf("%d of %d image(s) failed", batch.Failed, len(batch.Outcomes))
	}
	return nil
}

// pickSelection turns a --select value into a Selection over results.
// "all" picks every image with a preview.
func pickSelection(spec string, results []model.PreviewResult) (model.Selection, error) {
	byNumber := make(map[int]model.PreviewResult, len(results))
	total := 0
	for _, r := range results {
		byNumber[r.Reference.OrdinalIndex+1] = r
		total = max(total, r.Reference.OrdinalIndex+1)
	}

	numbers, err := parseSelection(spec, total)
	if err != nil {
		return nil, err
	}

	var refs []model.ImageReference
	for _, n := range numbers {
		r, ok := byNumber[n]
		if !ok {
			continue
		}
		if !r.OK() {
			if isAll(spec) {
				continue
			}
			return nil, &model.ValidationError{Field: "selection", Reason: fmt.Sprintf("image %d has no preview: %s", n, r.Reason())}
		}
		refs = append(refs, r.Reference)
	}
	if len(refs) == 0 {
		return nil, errors.New("no downloadable images selected")
	}
	return model.NewSelection(refs...), nil
}

func printPreviews(out io.Writer, scan session.ScanSummary, results []model.PreviewResult) {
	if len(results) == 0 {
		fmt.Fprintf(out, "No images found on %s\n", scan.PageURL)
		return
	}

	fmt.Fprintf(out, "Found %d image(s) on %s\n\n", scan.Emitted, scan.PageURL)
	sorted := slices.Clone(results)
	slices.SortFunc(sorted, func(a, b model.PreviewResult) int {
		return a.Reference.OrdinalIndex - b.Reference.OrdinalIndex
	})
	for _, r := range sorted {
		n := r.Reference.OrdinalIndex + 1
		if r.OK() {
			fmt.Fprintf(out, "  %3d  %s ", n, r.Reference.ResolvedLocator)
			dimColor.Fprintf(out, "%s %dx%d\n", r.Thumbnail.MimeType, r.Thumbnail.Width, r.Thumbnail.Height)
			continue
		}
		failColor.Fprintf(out, "  %3d  %s (no preview: %s)\n", n, r.Reference.ResolvedLocator, r.Reason())
	}
}

// printSelection lists the selected images in download order.
func printSelection(out io.Writer, sel model.Selection) {
	for i, loc := range sel.Locators() {
		fmt.Fprintf(out, "  %3d. %s\n", i+1, loc)
	}
}

func printSummary(out io.Writer, batch session.BatchSummary) {
	fmt.Fprintln(out)
	summaryColor.Fprintf(out, "Complete! Downloaded %d/%d image(s) (%.2f MB)\n",
		batch.Succeeded, len(batch.Outcomes), float64(batch.Bytes)/1024/1024)
	if batch.ManifestPath != "" {
		fmt.Fprintf(out, "Manifest: %s\n", batch.ManifestPath)
	}
}
