package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davidmtr/dropfetch/internal/config"
	"github.com/davidmtr/dropfetch/internal/download"
	ioutils "github.com/davidmtr/dropfetch/internal/io"
	"github.com/davidmtr/dropfetch/internal/manifest"
	"github.com/davidmtr/dropfetch/internal/model"
	"github.com/davidmtr/dropfetch/internal/resolver"
)

var (
	threadsFlag      int
	retryFlag        int
	debugFlag        bool
	noCategoriesFlag bool
	configFlag       string
	resizeMaxFlag    int
	convertJPGFlag   bool
)

func main() {
	root := &cobra.Command{
		Use:   "dropfetch <manifest> <output-dir>",
		Short: "Batch-download catalog files listed in a CSV or Excel manifest",
		Long: `dropfetch reads a manifest with UPC and IMAGES LINK columns, resolves
each shared folder to its file and downloads one file per item into the
output directory. Items that already have a file on disk are skipped, so
an interrupted run can simply be started again.

Failures are written to a failed_<dir>.csv/.xlsx ledger in the output
directory; feed that ledger back in to retry only the failed items.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	flags := root.Flags()
	flags.IntVarP(&threadsFlag, "threads", "t", 1, "Number of parallel downloads")
	flags.IntVarP(&retryFlag, "retry", "r", 0, "Max attempts per item (bare flag = retry until success)")
	flags.Lookup("retry").NoOptDefVal = "-1"
	flags.BoolVarP(&debugFlag, "debug", "d", false, "Show verbose output")
	flags.BoolVar(&noCategoriesFlag, "no-categories", false, "Ignore the CATEGORY column, download into a flat directory")
	flags.StringVar(&configFlag, "config", "", "Path to config file")
	flags.IntVar(&resizeMaxFlag, "resize-max", 0, "Resize downloaded images to fit within N pixels (0 = keep original)")
	flags.BoolVar(&convertJPGFlag, "convert-jpg", false, "Convert downloaded images to JPEG")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	manifestPath, outputDir := args[0], args[1]

	settings, err := config.Load(configFlag)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("threads") {
		settings.Workers = threadsFlag
	}
	if cmd.Flags().Changed("retry") {
		settings.RetryAttempts = retryFlag
	}
	if cmd.Flags().Changed("resize-max") {
		settings.ResizeMaxSize = resizeMaxFlag
	}
	if cmd.Flags().Changed("convert-jpg") {
		settings.ConvertToJPG = convertJPGFlag
	}
	if debugFlag {
		settings.Verbose = true
	}
	if settings.Workers < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", settings.Workers)
	}
	if _, err := settings.RetryPolicy(); err != nil {
		return err
	}

	if _, err := os.Stat(manifestPath); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	tasks, err := manifest.Read(manifestPath)
	if err != nil {
		return err
	}

	if err := ioutils.EnsureDir(outputDir); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	probe, err := os.CreateTemp(outputDir, ".dropfetch-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", outputDir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	if manifest.IsRetryManifest(manifestPath) {
		fmt.Println("Retry manifest detected - re-attempting previously failed items.")
	}

	hasCategories, err := manifest.HasCategories(manifestPath)
	if err != nil {
		return err
	}
	switch {
	case noCategoriesFlag:
		settings.GroupByCategory = false
		if hasCategories {
			fmt.Println("CATEGORY column ignored (--no-categories); downloading into a flat directory.")
		}
	case hasCategories:
		fmt.Println("CATEGORY column found; files will be grouped into category folders.")
	default:
		settings.GroupByCategory = false
	}

	if len(tasks) == 0 {
		fmt.Println("Manifest has no usable rows; nothing to do.")
		return nil
	}
	fmt.Printf("Loaded %d item(s) from %s\n\n", len(tasks), filepath.Base(manifestPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, finishing in-flight downloads...")
		cancel()
	}()

	res := resolver.NewDropboxResolver(resolver.Options{
		Headless:    settings.BrowserHeadless,
		BrowserPath: settings.BrowserPath,
		Timeout:     settings.ResolveTimeout(),
	})
	defer res.Close()

	manager, err := download.NewManager(settings, settings.ToPathConfig(outputDir), res, nil, func(event download.ProgressEvent) {
		if event.Level == download.LevelVerbose && !settings.Verbose {
			return
		}

		prefix := ""
		switch event.Level {
		case download.LevelError:
			prefix = "✗ "
		case download.LevelWarning:
			prefix = "! "
		case download.LevelSuccess:
			prefix = "✓ "
		case download.LevelVerbose:
			prefix = "  "
		}

		fmt.Println(prefix + event.Message)
	})
	if err != nil {
		return err
	}

	summary, runErr := manager.Run(ctx, tasks)

	printSummary(summary, manager.Exhausted())

	if failed := manager.FailedTasks(); len(failed) > 0 {
		ledgerPath := manifest.LedgerPath(manifestPath, outputDir)
		if err := manifest.Write(ledgerPath, failed); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing failure ledger: %v\n", err)
		} else {
			fmt.Printf("\nFailed items written to %s\n", ledgerPath)
			fmt.Printf("Retry them with:\n  dropfetch %s %s --threads %d\n", ledgerPath, outputDir, settings.Workers)
		}
	}

	if summary.Cancelled {
		fmt.Println("\nRun cancelled.")
		os.Exit(130)
	}
	if runErr != nil {
		return runErr
	}
	return nil
}

func printSummary(s *download.Summary, exhausted []*model.Outcome) {
	fmt.Println()
	fmt.Println("========== DOWNLOAD SUMMARY ==========")
	fmt.Printf("  Total items:  %d\n", s.Total)
	fmt.Printf("  Downloaded:   %d\n", s.Succeeded)
	fmt.Printf("  Skipped:      %d\n", s.Skipped)
	fmt.Printf("  Failed:       %d\n", s.Failed)
	fmt.Println("======================================")

	if len(exhausted) > 0 {
		fmt.Println("\nFailures:")
		for _, o := range exhausted {
			fmt.Printf("  %s: %s after %d attempt(s): %s\n", o.Task.Identifier, o.Status, o.Attempt, o.Err)
		}
	}
}
