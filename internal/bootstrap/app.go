package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"audioscribe/internal/audio"
	"audioscribe/internal/config"
	"audioscribe/internal/diagnostics"
	"audioscribe/internal/domain"
	"audioscribe/internal/logging"
	"audioscribe/internal/pipeline"
	"audioscribe/internal/transcribe"
	"audioscribe/internal/transcript"
)

// Mode selects what a process invocation does.
type Mode int

const (
	ModeRun Mode = iota
	ModeCheck
	ModeReclean
	ModeMergeOnly
)

// Options carries CLI-level overrides applied on top of file and
// environment configuration.
type Options struct {
	ConfigPath string
	DataDir    string
	Retries    int
	LogLevel   string
}

// App is the fully wired application.
type App struct {
	Settings    domain.Settings
	Log         *slog.Logger
	sentryOn    bool
	orch        *pipeline.Orchestrator
	checker     *diagnostics.Checker
	report      *pipeline.Reporter
	needsAPIKey bool
}

// New loads configuration, initializes logging and error reporting, and
// wires the pipeline for the requested mode.
func New(mode Mode, opts Options) (*App, error) {
	config.LoadDotenv()

	settings, err := config.NewYAMLStore(opts.ConfigPath).Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = config.ApplyEnv(settings)
	if opts.DataDir != "" {
		settings.DataDir = opts.DataDir
	}
	if opts.Retries > 0 {
		settings.Retries = opts.Retries
	}
	if opts.LogLevel != "" {
		settings.Log.Level = opts.LogLevel
	}

	// Diagnostics reports problems instead of refusing to start.
	if mode != ModeCheck {
		if err := config.Validate(settings); err != nil {
			return nil, err
		}
	}

	log := logging.Setup(settings.Log)

	app := &App{
		Settings:    settings,
		Log:         log,
		checker:     diagnostics.NewChecker(config.APIKey),
		needsAPIKey: mode == ModeRun || mode == ModeReclean,
	}

	if dsn := config.SentryDSN(); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			log.Warn("sentry disabled", "error", err)
		} else {
			app.sentryOn = true
		}
	}

	if mode == ModeCheck {
		return app, nil
	}

	if err := ensureDataDirs(settings); err != nil {
		return nil, err
	}

	if app.needsAPIKey && config.APIKey() == "" {
		return nil, errors.New("OPENAI_API_KEY is not set; export it or add it to .env")
	}

	store, err := transcript.NewStore(settings.TranscriptsDir())
	if err != nil {
		return nil, err
	}
	merger := transcript.NewMerger(settings.TranscriptsDir(), log)

	prober := audio.NewProber(settings.FFprobePath)
	splitter := audio.NewSplitter(audio.SplitterConfig{
		FFmpegPath:     settings.FFmpegPath,
		SplitDir:       settings.SplitsDir(),
		MaxSizeMB:      settings.MaxSplitSizeMB,
		MaxDurationSec: settings.MaxSplitDurationSec,
	}, prober)

	client := transcribe.NewClient(config.APIKey())
	service := transcribe.NewService(client, settings.WhisperModel, settings.Retries)
	cleaner := transcribe.NewCleaner(client, settings.CleanupModel, settings.Retries)

	app.report = pipeline.NewReporter(log)
	app.orch = pipeline.NewOrchestrator(
		settings.OriginalDir(),
		splitter, service, cleaner, store, merger,
		app.report, log,
	)
	return app, nil
}

// Run executes the selected mode and returns the run summary.
func (a *App) Run(ctx context.Context, mode Mode) (pipeline.Summary, error) {
	switch mode {
	case ModeReclean:
		return a.orch.RecleanAll(ctx)
	case ModeMergeOnly:
		return a.orch.MergeOnly()
	default:
		return a.orch.Run(ctx)
	}
}

// Check runs startup diagnostics and returns the report.
func (a *App) Check() domain.DiagnosticReport {
	return a.checker.Run(a.Settings)
}

// Close flushes buffered error reports.
func (a *App) Close() {
	if a.sentryOn {
		sentry.Flush(2 * time.Second)
	}
}

// ensureDataDirs creates the original/splits/transcripts layout.
func ensureDataDirs(settings domain.Settings) error {
	for _, dir := range []string{settings.OriginalDir(), settings.SplitsDir(), settings.TranscriptsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}
	return nil
}
