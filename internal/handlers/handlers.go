package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"imagecaster/internal/lifecycle"
	"imagecaster/internal/models"
	"imagecaster/internal/pipeline"
	"imagecaster/internal/storage"
	"imagecaster/pkg/tasks"
)

type Handlers struct {
	pipeline       *pipeline.Pipeline
	asynqClient    tasks.TaskEnqueuer
	maxUploadBytes int64
	logger         zerolog.Logger
}

func New(p *pipeline.Pipeline, asynqClient tasks.TaskEnqueuer, maxUploadBytes int64, logger zerolog.Logger) *Handlers {
	return &Handlers{
		pipeline:       p,
		asynqClient:    asynqClient,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("component", "api").Logger(),
	}
}

// Register mounts the public routes on r and the admin API on api, which
// the caller wraps with authentication.
func (h *Handlers) Register(r, api *mux.Router) {
	r.HandleFunc("/feed.xml", h.GetRSSFeed).Methods(http.MethodGet, http.MethodHead)

	api.HandleFunc("/auth", h.PostAuth).Methods(http.MethodPost)
	api.HandleFunc("/settings", h.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.PutSettings).Methods(http.MethodPut)
	api.HandleFunc("/templates", h.GetTemplates).Methods(http.MethodGet)

	api.HandleFunc("/episodes", h.ListEpisodes).Methods(http.MethodGet)
	api.HandleFunc("/episodes", h.CreateEpisode).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}", h.GetEpisode).Methods(http.MethodGet)
	api.HandleFunc("/episodes/{id}/upload", h.StartUpload).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}/audio", h.PutAudio).Methods(http.MethodPut)
	api.HandleFunc("/episodes/{id}/upload/complete", h.CompleteUpload).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}/fetch", h.StartFetch).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}/transcription/lock", h.AcquireLock).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}/transcription/lock", h.ReleaseLock).Methods(http.MethodDelete)
	api.HandleFunc("/episodes/{id}/transcription/complete", h.CompleteTranscription).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}/transcription/fail", h.FailTranscription).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}/retry", h.Retry).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}/slug", h.RenameSlug).Methods(http.MethodPost)

	api.HandleFunc("/transcriptions/pending", h.PendingTranscriptions).Methods(http.MethodGet)
	api.HandleFunc("/publish-due", h.PublishDue).Methods(http.MethodPost)
	api.HandleFunc("/feed/regenerate", h.RegenerateFeed).Methods(http.MethodPost)
}

func (h *Handlers) PostAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error     string `json:"error"`
	Current   string `json:"current,omitempty"`
	Attempted string `json:"attempted,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// writeError maps pipeline outcomes to status codes. Anything unrecognised
// is logged and reported as a 500 without detail.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var denied *lifecycle.TransitionDeniedError
	var conflict *lifecycle.LockConflictError
	var invalid *models.ValidationError
	switch {
	case errors.As(err, &denied):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     err.Error(),
			Current:   string(denied.Current),
			Attempted: string(denied.Attempted),
		})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     err.Error(),
			ExpiresAt: conflict.ExpiresAt.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, pipeline.ErrEpisodeNotFound), errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, pipeline.ErrTranscriptMissing), errors.Is(err, pipeline.ErrSettingsMissing):
		writeJSON(w, http.StatusPreconditionFailed, errorResponse{Error: err.Error()})
	case errors.Is(err, pipeline.ErrSlugTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrNoAudioSource),
		errors.Is(err, pipeline.ErrInvalidTranscript),
		errors.Is(err, pipeline.ErrInvalidSlug),
		errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}
