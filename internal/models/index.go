package models

// IndexEntry caches an episode's status so callers can filter episodes
// without loading every record. The episode record stays authoritative.
type IndexEntry struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	Status Status `json:"status"`
}

// Index is the document stored at index.json.
type Index struct {
	Episodes []IndexEntry `json:"episodes"`
}

// Find returns the entry for id, or nil.
func (ix *Index) Find(id string) *IndexEntry {
	for i := range ix.Episodes {
		if ix.Episodes[i].ID == id {
			return &ix.Episodes[i]
		}
	}
	return nil
}

// FindSlug returns the entry using slug, or nil.
func (ix *Index) FindSlug(slug string) *IndexEntry {
	for i := range ix.Episodes {
		if ix.Episodes[i].Slug == slug {
			return &ix.Episodes[i]
		}
	}
	return nil
}

// Sync copies the episode's slug and status into its entry, adding one if
// needed. It reports whether the index changed.
func (ix *Index) Sync(e *Episode) bool {
	entry := ix.Find(e.ID)
	if entry == nil {
		ix.Episodes = append(ix.Episodes, IndexEntry{ID: e.ID, Slug: e.Slug, Status: e.Status})
		return true
	}
	if entry.Slug == e.Slug && entry.Status == e.Status {
		return false
	}
	entry.Slug = e.Slug
	entry.Status = e.Status
	return true
}

// WithStatus returns the entries whose cached status is s.
func (ix *Index) WithStatus(s Status) []IndexEntry {
	var out []IndexEntry
	for _, entry := range ix.Episodes {
		if entry.Status == s {
			out = append(out, entry)
		}
	}
	return out
}

func (ix *Index) Validate() error {
	seen := make(map[string]struct{}, len(ix.Episodes))
	for _, entry := range ix.Episodes {
		if entry.ID == "" || entry.Slug == "" {
			return &ValidationError{Document: "index", Field: "episodes", Problem: "contains an entry without id or slug"}
		}
		if _, dup := seen[entry.ID]; dup {
			return &ValidationError{Document: "index", Field: "episodes", Problem: "contains duplicate id " + entry.ID}
		}
		seen[entry.ID] = struct{}{}
	}
	return nil
}
