package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/unibox-design/reelforge/internal/models"
)

// ---------------------------------------------------------------------------
// Pexels Stock Video Service
// Searches the Pexels video library for scene footage. Responses are
// cached briefly because storyboard edits tend to re-run the same
// queries within a session.
// ---------------------------------------------------------------------------

const (
	pexelsBaseURL  = "https://api.pexels.com"
	pexelsPerPage  = 8
	pexelsCacheTTL = 5 * time.Minute
)

type PexelsService struct {
	apiKey string
	client *http.Client

	mu    sync.Mutex
	cache map[string]pexelsCacheEntry
}

type pexelsCacheEntry struct {
	results []models.MediaRef
	expires time.Time
}

func NewPexelsService(apiKey string) *PexelsService {
	return &PexelsService{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
		cache:  make(map[string]pexelsCacheEntry),
	}
}

type pexelsSearchResponse struct {
	Videos []pexelsVideo `json:"videos"`
}

type pexelsVideo struct {
	ID       int    `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Duration int    `json:"duration"`
	Image    string `json:"image"`
	URL      string `json:"url"`
	User     struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"user"`
	VideoFiles []pexelsVideoFile `json:"video_files"`
}

type pexelsVideoFile struct {
	Quality  string `json:"quality"`
	FileType string `json:"file_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Link     string `json:"link"`
}

// formatOrientation maps an aspect format to the Pexels orientation
// query parameter.
func formatOrientation(format models.AspectFormat) string {
	switch format {
	case models.FormatPortrait:
		return "portrait"
	case models.FormatSquare:
		return "square"
	default:
		return "landscape"
	}
}

// SearchVideos queries Pexels for stock clips matching query in the given
// orientation. Zero results is not an error; callers treat an empty slice
// as "render without footage".
func (s *PexelsService) SearchVideos(ctx context.Context, query string, format models.AspectFormat) ([]models.MediaRef, error) {
	orientation := formatOrientation(format)
	cacheKey := orientation + "::" + query

	s.mu.Lock()
	if entry, ok := s.cache[cacheKey]; ok && time.Now().Before(entry.expires) {
		s.mu.Unlock()
		return entry.results, nil
	}
	s.mu.Unlock()

	endpoint := fmt.Sprintf("%s/videos/search?query=%s&orientation=%s&per_page=%d",
		pexelsBaseURL, url.QueryEscape(query), orientation, pexelsPerPage)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pexels request: %w", err)
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Pexels request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Pexels returned status %d: %s", resp.StatusCode, string(body))
	}

	var searchResp pexelsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode Pexels response: %w", err)
	}

	results := make([]models.MediaRef, 0, len(searchResp.Videos))
	for _, video := range searchResp.Videos {
		file := bestVideoFile(video.VideoFiles, format)
		if file == nil {
			continue
		}
		results = append(results, models.MediaRef{
			URL:             file.Link,
			ThumbnailURL:    video.Image,
			PreviewURL:      video.URL,
			Width:           file.Width,
			Height:          file.Height,
			DurationSeconds: float64(video.Duration),
			Source:          "pexels",
			Attribution: &models.MediaAttribution{
				Name: video.User.Name,
				URL:  video.User.URL,
			},
		})
	}

	log.Printf("[Pexels] query=%q orientation=%s results=%d", query, orientation, len(results))

	s.mu.Lock()
	s.cache[cacheKey] = pexelsCacheEntry{results: results, expires: time.Now().Add(pexelsCacheTTL)}
	s.mu.Unlock()

	return results, nil
}

// bestVideoFile picks the HD mp4 rendition whose orientation matches the
// target format, preferring the smallest file at or above 1080 on the
// short edge.
func bestVideoFile(files []pexelsVideoFile, format models.AspectFormat) *pexelsVideoFile {
	wantPortrait := format == models.FormatPortrait

	var best *pexelsVideoFile
	var bestArea int
	for i := range files {
		f := &files[i]
		if f.FileType != "video/mp4" || f.Width == 0 || f.Height == 0 {
			continue
		}
		isPortrait := f.Height > f.Width
		if wantPortrait != isPortrait && format != models.FormatSquare {
			continue
		}
		shortEdge := f.Width
		if f.Height < shortEdge {
			shortEdge = f.Height
		}
		area := f.Width * f.Height
		// Prefer renditions large enough for the output frame, but take
		// the smallest such file to keep downloads cheap.
		if shortEdge >= 1080 {
			if best == nil || bestShortEdge(best) < 1080 || area < bestArea {
				best, bestArea = f, area
			}
		} else if best == nil || (bestShortEdge(best) < 1080 && area > bestArea) {
			best, bestArea = f, area
		}
	}
	if best == nil && len(files) > 0 {
		// No orientation match; fall back to the largest mp4.
		for i := range files {
			f := &files[i]
			if f.FileType != "video/mp4" {
				continue
			}
			if best == nil || f.Width*f.Height > bestArea {
				best, bestArea = f, f.Width*f.Height
			}
		}
	}
	return best
}

func bestShortEdge(f *pexelsVideoFile) int {
	if f.Height < f.Width {
		return f.Height
	}
	return f.Width
}
