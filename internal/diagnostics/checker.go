package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"audioscribe/internal/domain"
)

// Checker verifies the environment before a batch run: external tools,
// API credentials, and writable data directories.
type Checker struct {
	stat       func(string) (os.FileInfo, error)
	apiKey     func() string
	createTemp func(dir, pattern string) (*os.File, error)
	remove     func(string) error
}

// NewChecker creates a checker using real OS lookups.
func NewChecker(apiKey func() string) *Checker {
	return &Checker{
		stat:       os.Stat,
		apiKey:     apiKey,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns the aggregate report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg", settings.FFmpegPath, "set ffmpegPath in the settings file or FFMPEG_PATH"),
		c.checkTool("ffprobe", settings.FFprobePath, "set ffprobePath in the settings file or FFPROBE_PATH"),
		c.checkAPIKey(),
	}
	for _, dir := range []string{settings.OriginalDir(), settings.SplitsDir(), settings.TranscriptsDir()} {
		items = append(items, c.checkWritableDir(dir))
	}

	report := domain.DiagnosticReport{
		GeneratedAt: time.Now(),
		Items:       items,
	}
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			report.HasFailures = true
			break
		}
	}
	return report
}

// checkTool verifies a tool path is configured and points at an
// executable file.
func (c *Checker) checkTool(name, path, hint string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "tool-" + name,
		Name: name + " binary",
		Hint: hint,
	}

	if path == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = name + " path is not configured"
		return item
	}

	info, err := c.stat(path)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s not found at %s", name, path)
		return item
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s at %s is not executable", name, path)
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = path
	return item
}

// checkAPIKey verifies the API credential is present in the environment.
func (c *Checker) checkAPIKey() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "api-key",
		Name: "OpenAI API key",
		Hint: "export OPENAI_API_KEY or add it to .env",
	}
	if c.apiKey() == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "OPENAI_API_KEY is not set"
		return item
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = "present"
	return item
}

// checkWritableDir verifies a data directory exists and accepts writes.
func (c *Checker) checkWritableDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "dir-" + filepath.Base(dir),
		Name: "data directory " + filepath.Base(dir),
		Hint: "check permissions on " + dir,
	}

	info, err := c.stat(dir)
	if err != nil || !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("directory missing: %s", dir)
		return item
	}

	probe, err := c.createTemp(dir, ".diag-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("directory not writable: %s", dir)
		return item
	}
	probe.Close()
	_ = c.remove(probe.Name())

	item.Status = domain.DiagnosticStatusPass
	item.Message = dir
	return item
}

// NewCheckerForTests creates a checker with injectable lookups.
func NewCheckerForTests(
	stat func(string) (os.FileInfo, error),
	apiKey func() string,
	createTemp func(dir, pattern string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{stat: stat, apiKey: apiKey, createTemp: createTemp, remove: remove}
}
