package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// FeedSource represents a configured job feed source
type FeedSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// HandleGetFeeds returns the configured feed sources
func (h *Handler) HandleGetFeeds(w http.ResponseWriter, r *http.Request) {
	feeds := make([]FeedSource, 0, len(h.FeedURLs))
	for _, raw := range h.FeedURLs {
		name := raw
		if parsed, err := url.Parse(raw); err == nil && parsed.Host != "" {
			name = parsed.Host
		}
		feeds = append(feeds, FeedSource{Name: name, URL: raw})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(feeds)
}
