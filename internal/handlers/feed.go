package handlers

import (
	"errors"
	"net/http"

	"imagecaster/internal/models"
	"imagecaster/internal/storage"
)

// GetRSSFeed serves the last rendered feed.xml from the store.
func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	body, err := h.pipeline.Store().Get(r.Context(), storage.FeedKey)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Feed has not been generated yet", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Error reading feed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", storage.ContentType(storage.FeedKey))
	w.Write(body)
}

func (h *Handlers) RegenerateFeed(w http.ResponseWriter, r *http.Request) {
	if err := h.pipeline.RegenerateFeed(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) PublishDue(w http.ResponseWriter, r *http.Request) {
	report, err := h.pipeline.PublishDue(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	failed := make(map[string]string, len(report.Failed))
	for id, err := range report.Failed {
		failed[id] = err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checked":   report.Checked,
		"published": report.Published,
		"failed":    failed,
	})
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.pipeline.Settings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handlers) PutSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.PodcastSettings
	if err := decodeBody(r, &settings); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if err := h.pipeline.SaveSettings(r.Context(), &settings); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handlers) GetTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.pipeline.Templates(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if templates == nil {
		templates = []models.DescriptionTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}
