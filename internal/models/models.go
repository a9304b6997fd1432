package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/unibox-design/reelforge/internal/captions"
)

// Enums

// AspectFormat is the target orientation of the rendered video.
type AspectFormat string

const (
	FormatLandscape AspectFormat = "landscape"
	FormatPortrait  AspectFormat = "portrait"
	FormatSquare    AspectFormat = "square"
)

// Dimensions returns the output pixel size for the format.
// Unknown formats fall back to landscape.
func (f AspectFormat) Dimensions() (width, height int) {
	switch f {
	case FormatPortrait:
		return 1080, 1920
	case FormatSquare:
		return 1080, 1080
	default:
		return 1920, 1080
	}
}

// Valid reports whether f is one of the three supported formats.
func (f AspectFormat) Valid() bool {
	switch f {
	case FormatLandscape, FormatPortrait, FormatSquare:
		return true
	}
	return false
}

// JobState is the lifecycle state of a render job. Exactly these eight
// values cross the wire; consumers must handle all of them.
type JobState string

const (
	StateQueued     JobState = "queued"
	StateRendering  JobState = "rendering"
	StateCancelling JobState = "cancelling"
	StateCancelled  JobState = "cancelled"
	StatePausing    JobState = "pausing"
	StatePaused     JobState = "paused"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

// IsTerminal reports whether the state is final — no pipeline activity
// follows and control requests become no-ops.
func (s JobState) IsTerminal() bool {
	switch s {
	case StateCancelled, StatePaused, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Models

// MediaAttribution credits the creator of a stock clip.
type MediaAttribution struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// MediaRef is a resolved visual asset for a scene.
type MediaRef struct {
	URL             string            `json:"url"`
	ThumbnailURL    string            `json:"thumbnail,omitempty"`
	PreviewURL      string            `json:"previewUrl,omitempty"`
	Width           int               `json:"width,omitempty"`
	Height          int               `json:"height,omitempty"`
	DurationSeconds float64           `json:"duration,omitempty"`
	Source          string            `json:"source,omitempty"` // e.g. "pexels", "upload"
	Attribution     *MediaAttribution `json:"attribution,omitempty"`
}

// Scene is one narrated segment of a storyboard.
type Scene struct {
	ID              string         `json:"id"`
	Order           int            `json:"order"`
	Text            string         `json:"text"`
	DurationSeconds float64        `json:"duration,omitempty"` // 0 = derive from speech-rate estimate
	VoiceModel      string         `json:"ttsVoice,omitempty"` // overrides the storyboard voice
	Keywords        []string       `json:"keywords,omitempty"`
	ImagePrompt     string         `json:"imagePrompt,omitempty"`
	Media           *MediaRef      `json:"media,omitempty"`
	Captions        []captions.Cue `json:"captions,omitempty"`
}

// Storyboard is the immutable input to a render: ordered scenes plus
// global presentation settings. Jobs snapshot it at submission time.
type Storyboard struct {
	ID         string       `json:"id"`
	Title      string       `json:"title,omitempty"`
	Format     AspectFormat `json:"format"`
	VoiceModel string       `json:"voiceModel,omitempty"`
	Scenes     []Scene      `json:"scenes" validate:"required,min=1,dive"`
}

// Clone deep-copies the storyboard so a running job is immune to later
// edits of the live document.
func (s Storyboard) Clone() Storyboard {
	out := s
	out.Scenes = make([]Scene, len(s.Scenes))
	for i, scene := range s.Scenes {
		c := scene
		if scene.Media != nil {
			media := *scene.Media
			if scene.Media.Attribution != nil {
				attr := *scene.Media.Attribution
				media.Attribution = &attr
			}
			c.Media = &media
		}
		if scene.Keywords != nil {
			c.Keywords = append([]string(nil), scene.Keywords...)
		}
		if scene.Captions != nil {
			c.Captions = append([]captions.Cue(nil), scene.Captions...)
		}
		out.Scenes[i] = c
	}
	return out
}

// EstimatedSpeechSeconds estimates narration duration from word count at
// a natural speaking rate (~2.5 words/second), floored at two seconds.
func EstimatedSpeechSeconds(text string) float64 {
	words := 0
	inWord := false
	for _, r := range text {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				words++
				inWord = true
			}
		}
	}
	d := float64(words) / 2.5
	if d < 2.0 {
		d = 2.0
	}
	return d
}

// RenderJob is the externally observable record of one render attempt.
// It is mutated only by its own pipeline goroutine and by control-signal
// handlers; status reads always see a consistent snapshot.
type RenderJob struct {
	ID        uuid.UUID `json:"id"`
	ProjectID string    `json:"projectId,omitempty"`
	State     JobState  `json:"status"`
	Progress  int       `json:"progress"` // 0-100, non-decreasing within a run
	VideoURL  *string   `json:"videoUrl,omitempty"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DTOs for API requests/responses

type RenderRequest struct {
	Storyboard Storyboard `json:"storyboard" validate:"required"`
	ProjectID  string     `json:"projectId,omitempty"`
}

type RenderResponse struct {
	JobID  uuid.UUID `json:"jobId"`
	Status JobState  `json:"status"`
}

// JobStatusResponse is the polling payload. VideoURL is present only in
// state completed; Error only in state failed.
type JobStatusResponse struct {
	JobID    uuid.UUID `json:"jobId"`
	Status   JobState  `json:"status"`
	Progress int       `json:"progress"`
	VideoURL *string   `json:"videoUrl,omitempty"`
	Error    *string   `json:"error,omitempty"`
}

type GenerateRequest struct {
	Prompt        string       `json:"prompt" validate:"required"`
	Format        AspectFormat `json:"format,omitempty"`
	VoiceModel    string       `json:"voiceModel,omitempty"`
	TargetSeconds int          `json:"targetSeconds,omitempty"` // default 60
}

type GenerateResponse struct {
	Storyboard Storyboard `json:"storyboard"`
}

type MediaSearchResponse struct {
	Query   string     `json:"query"`
	Results []MediaRef `json:"results"`
}

type VoiceProfileResponse struct {
	Key       string `json:"key"`
	VoiceName string `json:"voiceName"`
	Language  string `json:"language"`
}
