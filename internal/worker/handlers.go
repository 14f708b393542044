package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"imagecaster/internal/lifecycle"
	"imagecaster/internal/models"
	"imagecaster/internal/pipeline"
	"imagecaster/pkg/tasks"
)

// Pipeline is the part of *pipeline.Pipeline the task handlers drive.
type Pipeline interface {
	Episode(ctx context.Context, id string) (*models.Episode, error)
	StoreAudio(ctx context.Context, ep *models.Episode, file string, body []byte) error
	CompleteUpload(ctx context.Context, id string, in pipeline.UploadResult) (*models.Episode, error)
	PublishDue(ctx context.Context) (*pipeline.PublishReport, error)
}

// Hook is fired when the site should be rebuilt.
type Hook interface {
	Fire(ctx context.Context) error
}

type TaskHandler struct {
	pipeline     Pipeline
	hook         Hook
	httpClient   *http.Client
	maxFetchSize int64
	logger       zerolog.Logger
}

func NewTaskHandler(p Pipeline, hook Hook, maxFetchSize int64, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		pipeline:     p,
		hook:         hook,
		httpClient:   &http.Client{Timeout: 30 * time.Minute},
		maxFetchSize: maxFetchSize,
		logger:       logger.With().Str("component", "worker").Logger(),
	}
}

// HandleFetchAudioTask downloads an episode's audio from its source URL,
// stores it next to the episode and completes the upload.
func (h *TaskHandler) HandleFetchAudioTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.FetchAudioTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}
	logger := h.logger.With().Str("episode_id", p.EpisodeID).Str("source_url", p.SourceURL).Logger()

	ep, err := h.pipeline.Episode(ctx, p.EpisodeID)
	if err != nil {
		if errors.Is(err, pipeline.ErrEpisodeNotFound) {
			return fmt.Errorf("episode %s: %w: %w", p.EpisodeID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to load episode: %w", err)
	}
	if err := lifecycle.CanConfirmUpload(ep); err != nil {
		logger.Warn().Str("status", string(ep.Status)).Msg("Episode no longer waiting for audio, dropping fetch")
		return nil
	}

	body, err := h.download(ctx, p.SourceURL)
	if err != nil {
		logger.Error().Err(err).Msg("Audio download failed")
		return err
	}
	logger.Info().Str("size", humanize.Bytes(uint64(len(body)))).Msg("Downloaded audio")

	file := "audio" + audioExt(p.SourceURL)
	if err := h.pipeline.StoreAudio(ctx, ep, file, body); err != nil {
		return err
	}
	size := int64(len(body))
	if _, err := h.pipeline.CompleteUpload(ctx, ep.ID, pipeline.UploadResult{AudioFile: file, FileSize: &size}); err != nil {
		return fmt.Errorf("failed to complete upload: %w", err)
	}
	return nil
}

func (h *TaskHandler) download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("bad source url: %w: %w", err, asynq.SkipRetry)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("audio source returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return nil, err
	}
	if resp.ContentLength > h.maxFetchSize {
		return nil, fmt.Errorf("audio is %s, limit is %s: %w",
			humanize.Bytes(uint64(resp.ContentLength)), humanize.Bytes(uint64(h.maxFetchSize)), asynq.SkipRetry)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxFetchSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if int64(len(body)) > h.maxFetchSize {
		return nil, fmt.Errorf("audio exceeds %s: %w", humanize.Bytes(uint64(h.maxFetchSize)), asynq.SkipRetry)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("audio source returned an empty body: %w", asynq.SkipRetry)
	}
	return body, nil
}

// audioExt takes the extension from the URL path, defaulting to .mp3.
func audioExt(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ".mp3"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".mp3", ".m4a", ".mp4", ".aac", ".wav":
		return ext
	default:
		return ".mp3"
	}
}

// HandlePublishDueTask runs one publish sweep. Per-episode failures are in
// the report and logged by the pipeline; only a failure to read the index
// fails the task.
func (h *TaskHandler) HandlePublishDueTask(ctx context.Context, t *asynq.Task) error {
	report, err := h.pipeline.PublishDue(ctx)
	if err != nil {
		return fmt.Errorf("publish sweep failed: %w", err)
	}
	if len(report.Published) > 0 || len(report.Failed) > 0 {
		h.logger.Info().
			Strs("published", report.Published).
			Int("failed", len(report.Failed)).
			Msg("Publish sweep")
	}
	return nil
}

func (h *TaskHandler) HandleRebuildSiteTask(ctx context.Context, t *asynq.Task) error {
	if err := h.hook.Fire(ctx); err != nil {
		return fmt.Errorf("site rebuild failed: %w", err)
	}
	h.logger.Info().Msg("Site rebuild triggered")
	return nil
}
