package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"imagecaster/internal/models"
)

// Action names an attempted lifecycle operation.
type Action string

const (
	ActionStartUpload           Action = "start upload"
	ActionStartFetch            Action = "start fetch"
	ActionConfirmUpload         Action = "confirm upload"
	ActionCompleteTranscription Action = "complete transcription"
	ActionFailTranscription     Action = "fail transcription"
	ActionAcquireLock           Action = "acquire transcription lock"
	ActionRetry                 Action = "retry"
	ActionRename                Action = "rename slug"
)

// TransitionDeniedError reports a transition that is not legal from the
// episode's current status.
type TransitionDeniedError struct {
	Action    Action
	Attempted models.Status
	Current   models.Status
}

func (e *TransitionDeniedError) Error() string {
	return fmt.Sprintf("cannot %s: episode is %s, transition to %s not allowed", e.Action, e.Current, e.Attempted)
}

func denied(action Action, attempted, current models.Status) error {
	return &TransitionDeniedError{Action: action, Attempted: attempted, Current: current}
}

var (
	// ErrLockConflict matches any *LockConflictError.
	ErrLockConflict = errors.New("transcription lock is held")
	// ErrNoAudioSource is returned when a retry has nothing to transcribe.
	ErrNoAudioSource = errors.New("episode has no audio source")
)

// LockConflictError is returned when a valid transcription lock already exists.
type LockConflictError struct {
	LockedAt  time.Time
	ExpiresAt time.Time
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("transcription lock is held since %s until %s", e.LockedAt.Format(time.RFC3339), e.ExpiresAt.Format(time.RFC3339))
}

func (e *LockConflictError) Is(target error) bool {
	return target == ErrLockConflict
}
