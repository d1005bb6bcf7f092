package transcribe

import (
	"context"
	"fmt"
	"strings"
)

// editorSystemPrompt fixes the cleanup model's role. The prompt asks for
// editing only, never summarization, so cleaned output stays a faithful
// transcript.
const editorSystemPrompt = "You are an expert transcription editor. " +
	"Fix punctuation, capitalization, and obvious transcription errors. " +
	"Remove filler words and false starts. Preserve the speaker's meaning " +
	"and all content. Do not summarize, do not add commentary."

const (
	cleanupTemperature = 0.3
	cleanupMaxTokens   = 4000
)

// completionClient is the chat surface the cleaner consumes.
type completionClient interface {
	Complete(ctx context.Context, model string, messages []chatMessage, temperature float64, maxTokens int) (string, error)
}

// Cleaner rewrites raw transcripts into readable prose via the chat
// completion endpoint.
type Cleaner struct {
	client completionClient
	model  string
	retry  retryPolicy
}

// NewCleaner builds the production transcript cleaner.
func NewCleaner(client completionClient, model string, retries int) *Cleaner {
	return &Cleaner{
		client: client,
		model:  model,
		retry:  newRetryPolicy(retries),
	}
}

// Clean sends one raw transcript for cleanup and returns the edited
// text. Empty input is rejected before any network attempt.
func (c *Cleaner) Clean(ctx context.Context, rawText string) (string, error) {
	if strings.TrimSpace(rawText) == "" {
		return "", fmt.Errorf("transcript is empty, nothing to clean")
	}

	messages := []chatMessage{
		{Role: "system", Content: editorSystemPrompt},
		{Role: "user", Content: "Clean up this transcript:\n\n" + rawText},
	}

	var cleaned string
	err := c.retry.Do(ctx, func() error {
		text, attemptErr := c.client.Complete(ctx, c.model, messages, cleanupTemperature, cleanupMaxTokens)
		if attemptErr != nil {
			return attemptErr
		}
		cleaned = text
		return nil
	})
	if err != nil {
		return "", err
	}

	return cleaned, nil
}

// NewCleanerForTests builds a cleaner with an injectable retry policy.
func NewCleanerForTests(client completionClient, model string, retry retryPolicy) *Cleaner {
	return &Cleaner{client: client, model: model, retry: retry}
}
