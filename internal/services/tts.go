package services

import "context"

// SpeechResult is synthesized narration audio for one scene.
type SpeechResult struct {
	AudioData []byte
	// Format is the container of AudioData, e.g. "wav" or "mp3".
	Format string
	// DurationSeconds is the audio duration when the provider can report
	// it directly. Zero means the caller must probe the file.
	DurationSeconds float64
}

// Synthesizer converts narration text to speech.
type Synthesizer interface {
	// Synthesize renders text with the given voice. voice is a provider
	// voice name, already resolved from a profile key.
	Synthesize(ctx context.Context, text, voice string) (*SpeechResult, error)
}
