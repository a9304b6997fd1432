package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unibox-design/reelforge/internal/models"
	"github.com/unibox-design/reelforge/internal/render"
	"github.com/unibox-design/reelforge/internal/services"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type stubToolkit struct {
	dir string
	mu  sync.Mutex
}

func (f *stubToolkit) BuildSceneClip(ctx context.Context, mediaPath, audioPath, outputPath string, duration float64, width, height int) error {
	return os.WriteFile(outputPath, []byte("clip"), 0644)
}

func (f *stubToolkit) BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error {
	return os.WriteFile(outputPath, []byte("burned"), 0644)
}

func (f *stubToolkit) ConcatenateClips(ctx context.Context, clipPaths []string, outputPath string) error {
	return os.WriteFile(outputPath, []byte("final"), 0644)
}

func (f *stubToolkit) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return 2.0, nil
}

func (f *stubToolkit) CreateTempFile(filename string) string {
	return filepath.Join(f.dir, filename)
}

func (f *stubToolkit) Cleanup(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, path := range paths {
		if path != "" {
			os.Remove(path)
		}
	}
}

type stubSynth struct {
	block chan struct{} // non-nil blocks every call until closed
}

func (s *stubSynth) Synthesize(ctx context.Context, text, voice string) (*services.SpeechResult, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &services.SpeechResult{AudioData: []byte("audio"), Format: "wav", DurationSeconds: 2.0}, nil
}

type stubMedia struct {
	results []models.MediaRef
	err     error
}

func (s *stubMedia) SearchVideos(ctx context.Context, query string, format models.AspectFormat) ([]models.MediaRef, error) {
	return s.results, s.err
}

type stubGenerator struct {
	board *models.Storyboard
	err   error
}

func (s *stubGenerator) GenerateStoryboard(ctx context.Context, req models.GenerateRequest) (*models.Storyboard, error) {
	return s.board, s.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type testServer struct {
	router     http.Handler
	controller *render.Controller
}

func newTestServer(t *testing.T, synth services.Synthesizer, gen StoryboardGenerator, media render.MediaSearcher, cfg RouterConfig) *testServer {
	t.Helper()
	tk := &stubToolkit{dir: t.TempDir()}
	comp := render.NewCompositor(tk, synth, nil, media, t.TempDir(), 10*time.Second)
	ctrl := render.NewController(render.NewRegistry(), comp, tk, render.ControllerOptions{
		OutputDir:         t.TempDir(),
		MaxConcurrentJobs: 2,
		StageTimeout:      10 * time.Second,
	})
	h := NewHandler(ctrl, gen, media)
	return &testServer{router: NewRouter(h, cfg), controller: ctrl}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func renderRequest(scenes int, projectID string) models.RenderRequest {
	board := models.Storyboard{ID: "board", Format: models.FormatLandscape}
	for i := 0; i < scenes; i++ {
		board.Scenes = append(board.Scenes, models.Scene{
			ID:    fmt.Sprintf("scene-%d", i),
			Order: i,
			Text:  fmt.Sprintf("narration text for scene %d goes here", i),
		})
	}
	return models.RenderRequest{Storyboard: board, ProjectID: projectID}
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) models.JobStatusResponse {
	t.Helper()
	var resp models.JobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSubmitAndPollRender(t *testing.T) {
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, &stubMedia{}, RouterConfig{})

	rec := ts.do(t, "POST", "/v1/render", renderRequest(2, ""), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted models.RenderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	assert.Equal(t, models.StateQueued, submitted.Status)

	var final models.JobStatusResponse
	require.Eventually(t, func() bool {
		rec := ts.do(t, "GET", "/v1/render/"+submitted.JobID.String(), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		final = decodeStatus(t, rec)
		return final.Status.IsTerminal()
	}, 10*time.Second, 5*time.Millisecond)

	assert.Equal(t, models.StateCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	require.NotNil(t, final.VideoURL)
	assert.Nil(t, final.Error)
}

func TestSubmitRenderBadBody(t *testing.T) {
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, &stubMedia{}, RouterConfig{})

	req := httptest.NewRequest("POST", "/v1/render", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRenderEmptyStoryboard(t *testing.T) {
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, &stubMedia{}, RouterConfig{})

	rec := ts.do(t, "POST", "/v1/render", models.RenderRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRenderProjectConflict(t *testing.T) {
	synth := &stubSynth{block: make(chan struct{})}
	ts := newTestServer(t, synth, &stubGenerator{}, &stubMedia{}, RouterConfig{})
	defer close(synth.block)

	rec := ts.do(t, "POST", "/v1/render", renderRequest(1, "proj-1"), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = ts.do(t, "POST", "/v1/render", renderRequest(1, "proj-1"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetRenderStatusUnknown(t *testing.T) {
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, &stubMedia{}, RouterConfig{})

	rec := ts.do(t, "GET", "/v1/render/6f9619ff-8b86-d011-b42d-00c04fc964ff", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRenderStatusBadID(t *testing.T) {
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, &stubMedia{}, RouterConfig{})

	rec := ts.do(t, "GET", "/v1/render/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelRender(t *testing.T) {
	synth := &stubSynth{block: make(chan struct{})}
	ts := newTestServer(t, synth, &stubGenerator{}, &stubMedia{}, RouterConfig{})

	rec := ts.do(t, "POST", "/v1/render", renderRequest(2, ""), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var submitted models.RenderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))

	rec = ts.do(t, "POST", "/v1/render/"+submitted.JobID.String()+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StateCancelling, decodeStatus(t, rec).Status)

	close(synth.block)
	require.Eventually(t, func() bool {
		rec := ts.do(t, "GET", "/v1/render/"+submitted.JobID.String(), nil, nil)
		return decodeStatus(t, rec).Status == models.StateCancelled
	}, 10*time.Second, 5*time.Millisecond)
}

func TestPauseRender(t *testing.T) {
	synth := &stubSynth{block: make(chan struct{})}
	ts := newTestServer(t, synth, &stubGenerator{}, &stubMedia{}, RouterConfig{})

	rec := ts.do(t, "POST", "/v1/render", renderRequest(2, ""), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var submitted models.RenderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))

	rec = ts.do(t, "POST", "/v1/render/"+submitted.JobID.String()+"/pause", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatePausing, decodeStatus(t, rec).Status)

	close(synth.block)
	require.Eventually(t, func() bool {
		rec := ts.do(t, "GET", "/v1/render/"+submitted.JobID.String(), nil, nil)
		return decodeStatus(t, rec).Status == models.StatePaused
	}, 10*time.Second, 5*time.Millisecond)
}

func TestGenerateStoryboard(t *testing.T) {
	board := models.Storyboard{
		ID:     "generated",
		Format: models.FormatPortrait,
		Scenes: []models.Scene{{ID: "s0", Order: 0, Text: "generated narration"}},
	}
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{board: &board}, &stubMedia{}, RouterConfig{})

	rec := ts.do(t, "POST", "/v1/storyboard/generate", models.GenerateRequest{Prompt: "volcanoes"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "generated", resp.Storyboard.ID)
}

func TestGenerateStoryboardMissingPrompt(t *testing.T) {
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, &stubMedia{}, RouterConfig{})

	rec := ts.do(t, "POST", "/v1/storyboard/generate", models.GenerateRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateStoryboardUpstreamFailure(t *testing.T) {
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{err: errors.New("llm down")}, &stubMedia{}, RouterConfig{})

	rec := ts.do(t, "POST", "/v1/storyboard/generate", models.GenerateRequest{Prompt: "volcanoes"}, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSearchMedia(t *testing.T) {
	media := &stubMedia{results: []models.MediaRef{{URL: "https://cdn/clip.mp4", Source: "pexels"}}}
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, media, RouterConfig{})

	rec := ts.do(t, "GET", "/v1/media/search?query=ocean&format=portrait", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.MediaSearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ocean", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "pexels", resp.Results[0].Source)
}

func TestSearchMediaRequiresQuery(t *testing.T) {
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, &stubMedia{}, RouterConfig{})

	rec := ts.do(t, "GET", "/v1/media/search", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListVoices(t *testing.T) {
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, &stubMedia{}, RouterConfig{})

	rec := ts.do(t, "GET", "/v1/voices", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var voices []models.VoiceProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &voices))
	assert.Len(t, voices, 9)
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, &stubMedia{}, RouterConfig{BackendAPIKey: "sekrit"})

	rec := ts.do(t, "GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, &stubMedia{}, RouterConfig{BackendAPIKey: "sekrit"})

	rec := ts.do(t, "GET", "/v1/voices", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, "GET", "/v1/voices", nil, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, "GET", "/v1/voices", nil, map[string]string{"X-API-Key": "sekrit"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, "GET", "/v1/voices", nil, map[string]string{"Authorization": "Bearer sekrit"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaticVideoRoute(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "done.mp4"), []byte("video"), 0644))
	ts := newTestServer(t, &stubSynth{}, &stubGenerator{}, &stubMedia{}, RouterConfig{VideoDir: dir})

	rec := ts.do(t, "GET", "/videos/done.mp4", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video", rec.Body.String())
}
