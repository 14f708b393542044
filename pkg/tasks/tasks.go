package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypeFetchAudio  = "episode:fetch-audio"
	TypePublishDue  = "episodes:publish-due"
	TypeRebuildSite = "site:rebuild"
)

type FetchAudioTaskPayload struct {
	EpisodeID string
	SourceURL string
}

func NewFetchAudioTask(episodeID, sourceURL string) (*asynq.Task, error) {
	payload, err := json.Marshal(FetchAudioTaskPayload{
		EpisodeID: episodeID,
		SourceURL: sourceURL,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeFetchAudio, payload), nil
}

func NewPublishDueTask() (*asynq.Task, error) {
	return asynq.NewTask(TypePublishDue, nil), nil
}

func NewRebuildSiteTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeRebuildSite, nil), nil
}
