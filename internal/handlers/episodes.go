package handlers

import (
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"imagecaster/internal/lifecycle"
	"imagecaster/internal/models"
	"imagecaster/internal/pipeline"
	"imagecaster/pkg/tasks"
)

func (h *Handlers) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		http.Error(w, "Unknown status", http.StatusBadRequest)
		return
	}
	entries, err := h.pipeline.Episodes(r.Context(), status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.IndexEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type createEpisodeRequest struct {
	Title             string                 `json:"title"`
	Slug              string                 `json:"slug"`
	Description       string                 `json:"description"`
	PublishAt         *time.Time             `json:"publishAt"`
	SkipTranscription bool                   `json:"skipTranscription"`
	SocialPostEnabled bool                   `json:"socialPostEnabled"`
	SocialPostText    string                 `json:"socialPostText"`
	ReferenceLinks    []models.ReferenceLink `json:"referenceLinks"`
	SourceGUID        string                 `json:"sourceGuid"`
}

func (h *Handlers) CreateEpisode(w http.ResponseWriter, r *http.Request) {
	var req createEpisodeRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	ep, err := h.pipeline.CreateEpisode(r.Context(), pipeline.NewEpisodeInput{
		Title:             req.Title,
		Slug:              req.Slug,
		Description:       req.Description,
		PublishAt:         req.PublishAt,
		SkipTranscription: req.SkipTranscription,
		SocialPostEnabled: req.SocialPostEnabled,
		SocialPostText:    req.SocialPostText,
		ReferenceLinks:    req.ReferenceLinks,
		SourceGUID:        req.SourceGUID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ep)
}

func (h *Handlers) GetEpisode(w http.ResponseWriter, r *http.Request) {
	ep, err := h.pipeline.Episode(r.Context(), mux.Vars(r)["id"])
	h.respond(w, ep, err)
}

// respond writes the episode or maps the error.
func (h *Handlers) respond(w http.ResponseWriter, ep *models.Episode, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (h *Handlers) StartUpload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ep, err := h.pipeline.StartUpload(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"episode":   ep,
		"uploadUrl": "/api/episodes/" + id + "/audio",
	})
}

var audioExtensions = map[string]string{
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/mp4":   ".m4a",
	"audio/x-m4a": ".m4a",
	"audio/aac":   ".aac",
	"audio/wav":   ".wav",
}

// audioFileName picks audio.{ext} from the ext query parameter or the
// request content type, defaulting to mp3.
func audioFileName(r *http.Request) string {
	ext := strings.ToLower(r.URL.Query().Get("ext"))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if ext == "" || path.Base(ext) != ext {
		ext = audioExtensions[strings.ToLower(strings.TrimSpace(strings.Split(r.Header.Get("Content-Type"), ";")[0]))]
	}
	if ext == "" {
		ext = ".mp3"
	}
	return "audio" + ext
}

// PutAudio receives the audio of an episode in uploading or processing,
// stores it and completes the upload.
func (h *Handlers) PutAudio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ep, err := h.pipeline.Episode(ctx, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := lifecycle.CanConfirmUpload(ep); err != nil {
		h.writeError(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		http.Error(w, "Upload too large or interrupted", http.StatusRequestEntityTooLarge)
		return
	}
	if len(body) == 0 {
		http.Error(w, "Empty upload", http.StatusBadRequest)
		return
	}

	file := audioFileName(r)
	if err := h.pipeline.StoreAudio(ctx, ep, file, body); err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info().Str("episode_id", ep.ID).Str("size", humanize.Bytes(uint64(len(body)))).Msg("Audio uploaded")

	ep, err = h.pipeline.CompleteUpload(ctx, ep.ID, pipeline.UploadResult{AudioFile: file})
	h.respond(w, ep, err)
}

type completeUploadRequest struct {
	AudioFile string `json:"audioFile"`
	Duration  *int   `json:"duration"`
	FileSize  *int64 `json:"fileSize"`
}

func (h *Handlers) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req completeUploadRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.AudioFile != "" && path.Base(req.AudioFile) != req.AudioFile {
		http.Error(w, "audioFile must be a bare file name", http.StatusBadRequest)
		return
	}
	if (req.Duration != nil && *req.Duration < 0) || (req.FileSize != nil && *req.FileSize < 0) {
		http.Error(w, "duration and fileSize must not be negative", http.StatusBadRequest)
		return
	}
	ep, err := h.pipeline.CompleteUpload(r.Context(), mux.Vars(r)["id"], pipeline.UploadResult{
		AudioFile: req.AudioFile,
		Duration:  req.Duration,
		FileSize:  req.FileSize,
	})
	h.respond(w, ep, err)
}

type fetchRequest struct {
	URL string `json:"url"`
}

// StartFetch moves the episode to processing and queues the download.
func (h *Handlers) StartFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := decodeBody(r, &req); err != nil || req.URL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		http.Error(w, "URL must be http or https", http.StatusBadRequest)
		return
	}

	ep, err := h.pipeline.StartFetch(r.Context(), mux.Vars(r)["id"], req.URL)
	if err != nil {
		h.writeError(w, err)
		return
	}

	task, err := tasks.NewFetchAudioTask(ep.ID, req.URL)
	if err != nil {
		h.logger.Error().Err(err).Str("episode_id", ep.ID).Msg("Error creating fetch task")
	} else if _, err := h.asynqClient.Enqueue(task); err != nil {
		h.logger.Error().Err(err).Str("episode_id", ep.ID).Msg("Error enqueuing fetch task")
	}
	writeJSON(w, http.StatusAccepted, ep)
}

func (h *Handlers) AcquireLock(w http.ResponseWriter, r *http.Request) {
	ep, err := h.pipeline.AcquireTranscriptionLock(r.Context(), mux.Vars(r)["id"])
	h.respond(w, ep, err)
}

func (h *Handlers) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	ep, err := h.pipeline.ReleaseTranscriptionLock(r.Context(), mux.Vars(r)["id"])
	h.respond(w, ep, err)
}

func (h *Handlers) CompleteTranscription(w http.ResponseWriter, r *http.Request) {
	ep, err := h.pipeline.CompleteTranscription(r.Context(), mux.Vars(r)["id"])
	h.respond(w, ep, err)
}

func (h *Handlers) FailTranscription(w http.ResponseWriter, r *http.Request) {
	ep, err := h.pipeline.FailTranscription(r.Context(), mux.Vars(r)["id"])
	h.respond(w, ep, err)
}

func (h *Handlers) Retry(w http.ResponseWriter, r *http.Request) {
	ep, err := h.pipeline.Retry(r.Context(), mux.Vars(r)["id"])
	h.respond(w, ep, err)
}

type renameRequest struct {
	Slug string `json:"slug"`
}

func (h *Handlers) RenameSlug(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	ep, err := h.pipeline.RenameSlug(r.Context(), mux.Vars(r)["id"], req.Slug)
	h.respond(w, ep, err)
}

func (h *Handlers) PendingTranscriptions(w http.ResponseWriter, r *http.Request) {
	pending, err := h.pipeline.PendingTranscriptions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pending == nil {
		pending = []models.Episode{}
	}
	writeJSON(w, http.StatusOK, pending)
}
