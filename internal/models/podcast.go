package models

// PodcastSettings is the per-show record stored at podcast.json.
type PodcastSettings struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Email       string `json:"email"`
	Language    string `json:"language"`
	Category    string `json:"category"`
	ArtworkURL  string `json:"artworkUrl"`
	Explicit    bool   `json:"explicit"`
	WebsiteURL  string `json:"websiteUrl"`

	// Directory listings, filled in once the show exists elsewhere.
	ApplePodcastsURL string `json:"applePodcastsUrl,omitempty"`
	SpotifyURL       string `json:"spotifyUrl,omitempty"`
}

func (p *PodcastSettings) Validate() error {
	if p.Title == "" {
		return &ValidationError{Document: "podcast settings", Field: "title", Problem: "is empty"}
	}
	if p.WebsiteURL == "" {
		return &ValidationError{Document: "podcast settings", Field: "websiteUrl", Problem: "is empty"}
	}
	return nil
}

// DescriptionTemplate is one entry of templates.json.
type DescriptionTemplate struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	IsDefault bool   `json:"isDefault"`
}
