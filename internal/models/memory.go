package models

import (
	"strings"
	"time"
)

// MaxTags caps how many tags a memory may carry.
const MaxTags = 3

// DefaultCategory is used when a memory is created without one.
const DefaultCategory = "general"

// Memory is a short text fact owned by a single user. The embedding is
// enrichment: it is present only after a successful embedding call and may
// legitimately be nil.
type Memory struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	Embedding []float32 `json:"-"`
	Score     float64   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ClampTags trims whitespace, drops empty tags and keeps at most MaxTags.
func ClampTags(tags []string) []string {
	out := make([]string, 0, MaxTags)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}
