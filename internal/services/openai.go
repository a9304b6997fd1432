package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/unibox-design/reelforge/internal/captions"
	"github.com/unibox-design/reelforge/internal/models"
)

type OpenAIService struct {
	client *openai.Client
}

func NewOpenAIService(apiKey string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(apiKey),
	}
}

// storyboardPlan is the JSON shape the model is asked to produce.
type storyboardPlan struct {
	Title  string      `json:"title"`
	Scenes []scenePlan `json:"scenes"`
}

type scenePlan struct {
	Narration   string   `json:"narration"`
	Keywords    []string `json:"keywords"`
	ImagePrompt string   `json:"image_prompt"`
	DurationSec float64  `json:"duration_sec"`
}

const defaultTargetSeconds = 60

// GenerateStoryboard drafts a storyboard for a topic prompt using OpenAI
// JSON mode. Scene durations are rescaled so the total matches the
// requested target length.
func (s *OpenAIService) GenerateStoryboard(ctx context.Context, req models.GenerateRequest) (*models.Storyboard, error) {
	targetSeconds := req.TargetSeconds
	if targetSeconds <= 0 {
		targetSeconds = defaultTargetSeconds
	}
	format := req.Format
	if !format.Valid() {
		format = models.FormatLandscape
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4o,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildStoryboardSystemPrompt(targetSeconds),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Create a storyboard for: %q\n\nTarget duration: %d seconds", req.Prompt, targetSeconds),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	rawContent := resp.Choices[0].Message.Content
	var plan storyboardPlan
	if err := json.Unmarshal([]byte(rawContent), &plan); err != nil {
		log.Printf("[OpenAI storyboard] parse failed: %v", err)
		log.Printf("[OpenAI storyboard] raw response: %s", truncateString(rawContent, 2000))
		return nil, fmt.Errorf("failed to parse storyboard: %w", err)
	}
	if len(plan.Scenes) == 0 {
		return nil, fmt.Errorf("storyboard has no scenes")
	}

	scaleSceneDurations(plan.Scenes, float64(targetSeconds))

	board := &models.Storyboard{
		ID:         uuid.New().String(),
		Title:      plan.Title,
		Format:     format,
		VoiceModel: req.VoiceModel,
		Scenes:     make([]models.Scene, len(plan.Scenes)),
	}
	for i, sp := range plan.Scenes {
		board.Scenes[i] = models.Scene{
			ID:              uuid.New().String(),
			Order:           i,
			Text:            strings.TrimSpace(sp.Narration),
			DurationSeconds: sp.DurationSec,
			Keywords:        sp.Keywords,
			ImagePrompt:     sp.ImagePrompt,
		}
	}

	log.Printf("[OpenAI storyboard] generated %d scenes for %q (target=%ds)",
		len(board.Scenes), truncateString(req.Prompt, 60), targetSeconds)

	return board, nil
}

// scaleSceneDurations proportionally adjusts scene durations so their sum
// matches target, with each scene floored to its speech-rate minimum.
func scaleSceneDurations(scenes []scenePlan, target float64) {
	var total float64
	for i := range scenes {
		if scenes[i].DurationSec <= 0 {
			scenes[i].DurationSec = models.EstimatedSpeechSeconds(scenes[i].Narration)
		}
		total += scenes[i].DurationSec
	}
	if total <= 0 || target <= 0 {
		return
	}
	factor := target / total
	for i := range scenes {
		scaled := scenes[i].DurationSec * factor
		floor := models.EstimatedSpeechSeconds(scenes[i].Narration)
		if scaled < floor {
			scaled = floor
		}
		scenes[i].DurationSec = scaled
	}
}

// ---------------------------------------------------------------------------
// Whisper Transcription — word-level timestamps for caption alignment
// ---------------------------------------------------------------------------

// TranscribeAudio sends narration audio to Whisper and returns word-level
// timestamps for caption cue alignment.
func (s *OpenAIService) TranscribeAudio(ctx context.Context, audioData []byte, format string) ([]captions.WordStamp, error) {
	if format == "" {
		format = "mp3"
	}

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audioData),
		FilePath: "audio." + format, // Filename hint for the API (required by the library)
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: "en",
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	if len(resp.Words) == 0 {
		return nil, fmt.Errorf("whisper returned no word timestamps (text: %q)", resp.Text)
	}

	words := make([]captions.WordStamp, len(resp.Words))
	for i, w := range resp.Words {
		words[i] = captions.WordStamp{
			Word:  strings.TrimSpace(w.Word),
			Start: w.Start,
			End:   w.End,
		}
	}

	log.Printf("[Whisper] Transcribed %d words (duration: %.1fs, text: %q)",
		len(words), resp.Duration, truncateString(resp.Text, 80))

	return words, nil
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func buildStoryboardSystemPrompt(targetSeconds int) string {
	return fmt.Sprintf(`You are a short-form video writer. Produce a storyboard as JSON with this shape:
{"title": "...", "scenes": [{"narration": "...", "keywords": ["...", "..."], "image_prompt": "...", "duration_sec": 8}]}

Guidelines:
- The scenes together tell one continuous story totaling about %d seconds of narration.
- Each scene is 2-3 short conversational sentences, written to be spoken aloud.
- Open with a hook that creates genuine curiosity; end with a conclusion that feels earned.
- keywords: 2-3 concrete visual search terms for stock footage of the scene (objects, places, actions — not abstract concepts).
- image_prompt: a one-sentence visual description of the scene.
- duration_sec: estimated spoken duration of the narration at a natural pace.

Every field is required on every scene. Respond with JSON only.`, targetSeconds)
}
