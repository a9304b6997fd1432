package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log"
	"sync"

	"google.golang.org/genai"
)

// Gemini TTS returns raw 16-bit PCM at 24kHz mono.
const (
	pcmSampleRate    = 24000
	pcmBytesPerFrame = 2
)

// GeminiTTSService synthesizes speech with the Gemini speech models.
type GeminiTTSService struct {
	client   *genai.Client
	model    string
	maxChars int

	mu    sync.Mutex
	cache map[string]*SpeechResult
}

func NewGeminiTTSService(apiKey, model string, maxChars int) (*GeminiTTSService, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiTTSService{
		client:   client,
		model:    model,
		maxChars: maxChars,
		cache:    make(map[string]*SpeechResult),
	}, nil
}

func speechCacheKey(voice, text string) string {
	sum := sha256.Sum256([]byte(voice + "::" + text))
	return hex.EncodeToString(sum[:])
}

func (s *GeminiTTSService) Synthesize(ctx context.Context, text, voice string) (*SpeechResult, error) {
	if s.maxChars > 0 && len(text) > s.maxChars {
		log.Printf("[GeminiTTS] trimming narration from %d to %d chars", len(text), s.maxChars)
		text = text[:s.maxChars]
	}

	key := speechCacheKey(voice, text)
	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("speech generation failed: %w", err)
	}

	pcm := extractAudioData(resp)
	if len(pcm) == 0 {
		return nil, fmt.Errorf("speech generation returned no audio")
	}

	result := &SpeechResult{
		AudioData:       wrapPCMInWAV(pcm, pcmSampleRate, audioChannels),
		Format:          "wav",
		DurationSeconds: float64(len(pcm)) / float64(pcmBytesPerFrame*pcmSampleRate),
	}

	s.mu.Lock()
	s.cache[key] = result
	s.mu.Unlock()
	return result, nil
}

func extractAudioData(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// wrapPCMInWAV prefixes raw s16le PCM with a RIFF header so ffmpeg can
// read it without explicit format flags.
func wrapPCMInWAV(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	dataLen := uint32(len(pcm))
	byteRate := uint32(sampleRate * channels * pcmBytesPerFrame)
	blockAlign := uint16(channels * pcmBytesPerFrame)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)
	return buf.Bytes()
}
