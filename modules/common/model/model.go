package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a single raw message fetched from the chat source.
type ChatMessage struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// GenerationRequest is one user-issued (or auto-generated) request for a new
// track. Immutable once enqueued; loops hand it around by value.
type GenerationRequest struct {
	ID          string            `json:"id"`
	Prompt      string            `json:"prompt"`
	Mood        string            `json:"mood"`
	Requester   string            `json:"requester"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewRequest builds a GenerationRequest with a fresh id and timestamp.
func NewRequest(prompt, mood, requester string) GenerationRequest {
	return GenerationRequest{
		ID:          uuid.New().String(),
		Prompt:      prompt,
		Mood:        NormalizeMood(mood),
		Requester:   requester,
		SubmittedAt: time.Now(),
	}
}

// GeneratedAsset is the usable output of a completed generation: a local
// file plus its originating prompt and presentation metadata. Handed off
// between loops by value only.
type GeneratedAsset struct {
	ID           string            `json:"id"`
	FilePath     string            `json:"file_path"`
	Title        string            `json:"title"`
	Prompt       string            `json:"prompt"`
	Mood         string            `json:"mood"`
	Requester    string            `json:"requester"`
	DurationSec  float64           `json:"duration_sec,omitempty"`
	Resolution   string            `json:"resolution,omitempty"`
	CoverPath    string            `json:"cover_path,omitempty"`
	BackdropPath string            `json:"backdrop_path,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Vote is one chat vote for a poll token.
type Vote struct {
	Voter  string    `json:"voter"`
	Token  string    `json:"token"`
	CastAt time.Time `json:"cast_at"`
}

// DefaultMood is the fallback tag for unknown mood input.
const DefaultMood = "general"

// knownMoods is the closed set of mood tags the prompt tables understand.
var knownMoods = map[string]struct{}{
	"chill":       {},
	"energetic":   {},
	"romantic":    {},
	"melancholic": {},
	"study":       {},
	"general":     {},
}

// NormalizeMood lower-cases the input and maps anything outside the known
// mood set to DefaultMood. Unknown moods are never an error.
func NormalizeMood(mood string) string {
	normalized := strings.ToLower(strings.TrimSpace(mood))
	if _, ok := knownMoods[normalized]; ok {
		return normalized
	}
	return DefaultMood
}

// IsKnownMood reports whether the tag is part of the closed mood set.
func IsKnownMood(mood string) bool {
	_, ok := knownMoods[strings.ToLower(strings.TrimSpace(mood))]
	return ok
}
