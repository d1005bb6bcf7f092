package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"audioscribe/internal/bootstrap"
	"audioscribe/internal/domain"
	"audioscribe/internal/pipeline"
)

func main() {
	os.Exit(run())
}

// run parses flags, wires the application, and executes one mode.
func run() int {
	var (
		configPath = flag.String("config", "settings.yaml", "path to the YAML settings file")
		dataDir    = flag.String("data", "", "override the base data directory")
		check      = flag.Bool("check", false, "run environment diagnostics and exit")
		reclean    = flag.Bool("reclean", false, "re-run the cleanup stage over all transcripts")
		mergeOnly  = flag.Bool("merge-only", false, "run only the merge pass over existing transcripts")
		retries    = flag.Int("retries", 0, "override remote-call retry count")
		logLevel   = flag.String("log-level", "", "override log level (debug|info|warn|error)")
	)
	flag.Parse()

	mode := bootstrap.ModeRun
	switch {
	case *check:
		mode = bootstrap.ModeCheck
	case *reclean:
		mode = bootstrap.ModeReclean
	case *mergeOnly:
		mode = bootstrap.ModeMergeOnly
	}

	app, err := bootstrap.New(mode, bootstrap.Options{
		ConfigPath: *configPath,
		DataDir:    *dataDir,
		Retries:    *retries,
		LogLevel:   *logLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "audioscribe: %v\n", err)
		return 1
	}
	defer app.Close()

	if mode == bootstrap.ModeCheck {
		return printReport(app.Check())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := app.Run(ctx, mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audioscribe: %v\n", err)
		return 1
	}
	printSummary(summary)
	return 0
}

// printReport renders diagnostics for the operator; failures exit 1.
func printReport(report domain.DiagnosticReport) int {
	for _, item := range report.Items {
		marker := "ok"
		if item.Status == domain.DiagnosticStatusFail {
			marker = "FAIL"
		}
		fmt.Printf("[%s] %-24s %s\n", marker, item.Name, item.Message)
		if item.Status == domain.DiagnosticStatusFail && item.Hint != "" {
			fmt.Printf("       hint: %s\n", item.Hint)
		}
	}
	if report.HasFailures {
		return 1
	}
	return 0
}

// printSummary renders the final run counters.
func printSummary(sum pipeline.Summary) {
	fmt.Printf("run %s finished\n", sum.RunID)
	fmt.Printf("  files attempted:  %d (failed: %d)\n", sum.FilesAttempted, sum.FilesFailed)
	fmt.Printf("  segments done:    %d (skipped: %d, failed: %d)\n",
		sum.SegmentsDone, sum.SegmentsSkipped, sum.SegmentsFailed)
	fmt.Printf("  series merged:    %d (missing: %d)\n", sum.SeriesMerged, sum.MergeMissing)
}
