// Package lifecycle holds the legal episode status transitions and the
// transcription soft lock. Functions mutate the episode in place and never
// touch storage; callers persist the result.
package lifecycle

import (
	"time"

	"imagecaster/internal/models"
)

// Result describes a transition that was applied.
type Result struct {
	From      models.Status
	To        models.Status
	Published bool
}

func (r Result) Changed() bool {
	return r.From != r.To
}

// Decide is the scheduling decision shared by every path that leaves
// upload or transcription: no publish time means draft, a publish time at
// or before now means published, anything later means scheduled.
func Decide(publishAt *time.Time, now time.Time) models.Status {
	switch {
	case publishAt == nil:
		return models.StatusDraft
	case !publishAt.After(now):
		return models.StatusPublished
	default:
		return models.StatusScheduled
	}
}

func applyDecision(e *models.Episode, now time.Time) Result {
	res := Result{From: e.Status}
	e.Status = Decide(e.PublishAt, now)
	if e.Status == models.StatusPublished {
		publishedAt := now.UTC()
		e.PublishedAt = &publishedAt
		res.Published = true
	}
	res.To = e.Status
	return res
}

func oneOf(s models.Status, allowed ...models.Status) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// StartUpload moves a draft or failed episode to uploading once an upload
// URL has been issued.
func StartUpload(e *models.Episode) (Result, error) {
	if !oneOf(e.Status, models.StatusDraft, models.StatusFailed) {
		return Result{}, denied(ActionStartUpload, models.StatusUploading, e.Status)
	}
	res := Result{From: e.Status, To: models.StatusUploading}
	e.Status = models.StatusUploading
	return res, nil
}

// StartFetch moves a draft or failed episode to processing while its audio
// is downloaded from sourceURL.
func StartFetch(e *models.Episode, sourceURL string) (Result, error) {
	if !oneOf(e.Status, models.StatusDraft, models.StatusFailed) {
		return Result{}, denied(ActionStartFetch, models.StatusProcessing, e.Status)
	}
	res := Result{From: e.Status, To: models.StatusProcessing}
	e.Status = models.StatusProcessing
	e.SourceAudioURL = sourceURL
	return res, nil
}

// CanConfirmUpload checks the upload-confirmed guard without changing e.
func CanConfirmUpload(e *models.Episode) error {
	if !oneOf(e.Status, models.StatusUploading, models.StatusProcessing) {
		return denied(ActionConfirmUpload, models.StatusTranscribing, e.Status)
	}
	return nil
}

// CanCompleteTranscription checks the transcription-completed guard
// without changing e.
func CanCompleteTranscription(e *models.Episode, now time.Time) error {
	if e.Status != models.StatusTranscribing {
		return denied(ActionCompleteTranscription, Decide(e.PublishAt, now), e.Status)
	}
	return nil
}

// ConfirmUpload runs after the audio is in place and its duration recorded.
// Episodes that skip transcription go straight to the scheduling decision;
// the rest wait in transcribing with no lock held.
func ConfirmUpload(e *models.Episode, now time.Time) (Result, error) {
	if err := CanConfirmUpload(e); err != nil {
		return Result{}, err
	}
	if e.SkipTranscription {
		return applyDecision(e, now), nil
	}
	res := Result{From: e.Status, To: models.StatusTranscribing}
	e.Status = models.StatusTranscribing
	e.TranscriptionLockedAt = nil
	return res, nil
}

// CompleteTranscription records the converted transcript's address, clears
// the lock and applies the scheduling decision.
func CompleteTranscription(e *models.Episode, transcriptURL string, now time.Time) (Result, error) {
	if err := CanCompleteTranscription(e, now); err != nil {
		return Result{}, err
	}
	e.TranscriptURL = transcriptURL
	e.TranscriptionLockedAt = nil
	return applyDecision(e, now), nil
}

// FailTranscription marks the episode failed and clears the lock.
func FailTranscription(e *models.Episode) (Result, error) {
	if e.Status != models.StatusTranscribing {
		return Result{}, denied(ActionFailTranscription, models.StatusFailed, e.Status)
	}
	res := Result{From: e.Status, To: models.StatusFailed}
	e.Status = models.StatusFailed
	e.TranscriptionLockedAt = nil
	return res, nil
}

// Retry sends a failed episode back to transcription. It is rejected when
// there is no audio to transcribe.
func Retry(e *models.Episode) (Result, error) {
	if e.Status != models.StatusFailed {
		return Result{}, denied(ActionRetry, models.StatusTranscribing, e.Status)
	}
	if !e.HasAudioSource() {
		return Result{}, ErrNoAudioSource
	}
	res := Result{From: e.Status, To: models.StatusTranscribing}
	e.Status = models.StatusTranscribing
	e.TranscriptionLockedAt = nil
	return res, nil
}

// PublishIfDue publishes a scheduled episode whose publish time has come.
// It reports false, leaving the episode untouched, when nothing is due.
func PublishIfDue(e *models.Episode, now time.Time) (Result, bool) {
	if e.Status != models.StatusScheduled || e.PublishAt == nil || e.PublishAt.After(now) {
		return Result{From: e.Status, To: e.Status}, false
	}
	return applyDecision(e, now), true
}

// CheckRename reports whether the episode's slug may change.
func CheckRename(e *models.Episode) error {
	if e.Status != models.StatusDraft {
		return denied(ActionRename, e.Status, e.Status)
	}
	return nil
}
