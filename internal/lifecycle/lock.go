package lifecycle

import (
	"time"

	"imagecaster/internal/models"
)

// LockTimeout is how long a transcription lock stays valid. Older locks
// are treated as absent whatever their stored value.
const LockTimeout = time.Hour

// LockHeld reports whether the episode carries a valid transcription lock.
func LockHeld(e *models.Episode, now time.Time) bool {
	return e.TranscriptionLockedAt != nil && now.Sub(*e.TranscriptionLockedAt) < LockTimeout
}

// AcquireLock takes the transcription lock. A valid existing lock yields a
// *LockConflictError; an expired one is silently replaced.
func AcquireLock(e *models.Episode, now time.Time) (Result, error) {
	if e.Status != models.StatusTranscribing {
		return Result{}, denied(ActionAcquireLock, models.StatusTranscribing, e.Status)
	}
	if LockHeld(e, now) {
		lockedAt := *e.TranscriptionLockedAt
		return Result{}, &LockConflictError{LockedAt: lockedAt, ExpiresAt: lockedAt.Add(LockTimeout)}
	}
	lockedAt := now.UTC()
	e.TranscriptionLockedAt = &lockedAt
	return Result{From: e.Status, To: e.Status}, nil
}

// ReleaseLock clears the lock. It always succeeds.
func ReleaseLock(e *models.Episode) {
	e.TranscriptionLockedAt = nil
}
