package storage

import (
	"path"
	"strings"
)

const (
	SettingsKey  = "podcast.json"
	IndexKey     = "index.json"
	TemplatesKey = "templates.json"
	FeedKey      = "feed.xml"
)

// EpisodePrefix is the directory holding everything stored for an episode.
func EpisodePrefix(slug string) string {
	return "episodes/" + slug + "/"
}

func EpisodeKey(slug string) string {
	return EpisodePrefix(slug) + "meta.json"
}

func AudioKey(slug, file string) string {
	return EpisodePrefix(slug) + file
}

// TranscriptSourceKey is where the transcriber leaves the raw transcript.
func TranscriptSourceKey(slug string) string {
	return EpisodePrefix(slug) + "transcript.json"
}

func TranscriptKey(slug string) string {
	return EpisodePrefix(slug) + "transcript.vtt"
}

// PublicURL joins the public media base URL and a key.
func PublicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + key
}

var contentTypes = map[string]string{
	".json": "application/json",
	".xml":  "application/rss+xml; charset=utf-8",
	".vtt":  "text/vtt; charset=utf-8",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ContentType guesses a key's content type from its extension.
func ContentType(key string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}
