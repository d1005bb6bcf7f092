package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"audioscribe/internal/config"
)

// ErrFileTooLarge marks an audio file at or over the upload ceiling.
// The check runs before any network attempt and is never retried.
var ErrFileTooLarge = errors.New("audio file exceeds the upload size limit")

// speechClient is the transcription surface the service consumes.
type speechClient interface {
	Transcribe(ctx context.Context, path, model string) (string, map[string]any, error)
}

// Result is one completed transcription with its API metadata.
type Result struct {
	Text     string
	Metadata map[string]any
}

// Service transcribes audio segments with size guarding and retries.
type Service struct {
	client speechClient
	model  string
	retry  retryPolicy
	stat   func(string) (os.FileInfo, error)
	now    func() time.Time
}

// NewService builds the production transcription service.
func NewService(client speechClient, model string, retries int) *Service {
	return &Service{
		client: client,
		model:  model,
		retry:  newRetryPolicy(retries),
		stat:   os.Stat,
		now:    time.Now,
	}
}

// Transcribe sends one audio file to the speech endpoint. Oversized
// files fail immediately; transient API failures are retried with
// exponential backoff.
func (s *Service) Transcribe(ctx context.Context, path string) (Result, error) {
	info, err := s.stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("audio file not found: %s: %w", path, err)
	}
	if info.Size() >= config.MaxUploadBytes {
		return Result{}, fmt.Errorf("%w: %s is %d bytes, limit %d",
			ErrFileTooLarge, filepath.Base(path), info.Size(), int64(config.MaxUploadBytes))
	}

	var result Result
	err = s.retry.Do(ctx, func() error {
		text, payload, attemptErr := s.client.Transcribe(ctx, path, s.model)
		if attemptErr != nil {
			return attemptErr
		}
		result = Result{Text: text, Metadata: payload}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["file_info"] = map[string]any{
		"original_filename":       filepath.Base(path),
		"file_size":               info.Size(),
		"transcription_timestamp": s.now().Format(time.RFC3339),
	}

	return result, nil
}

// NewServiceForTests builds a service with injectable dependencies.
func NewServiceForTests(
	client speechClient,
	model string,
	retry retryPolicy,
	stat func(string) (os.FileInfo, error),
	now func() time.Time,
) *Service {
	return &Service{client: client, model: model, retry: retry, stat: stat, now: now}
}
