package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unibox-design/reelforge/internal/captions"
	"github.com/unibox-design/reelforge/internal/models"
	"github.com/unibox-design/reelforge/internal/services"
)

// MediaSearcher finds stock footage for a search query.
type MediaSearcher interface {
	SearchVideos(ctx context.Context, query string, format models.AspectFormat) ([]models.MediaRef, error)
}

// Transcriber produces word-level timestamps from narration audio.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audioData []byte, format string) ([]captions.WordStamp, error)
}

// VideoToolkit is the ffmpeg surface the compositor needs.
type VideoToolkit interface {
	BuildSceneClip(ctx context.Context, mediaPath, audioPath, outputPath string, duration float64, width, height int) error
	BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error
	ConcatenateClips(ctx context.Context, clipPaths []string, outputPath string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
	CreateTempFile(filename string) string
	Cleanup(paths ...string)
}

// errHalted reports that a control flag stopped scene work early. The
// pipeline translates it into the matching terminal state.
var errHalted = errors.New("render halted by control request")

// Compositor turns one scene into a normalized clip: narration audio plus
// resolved footage plus burned captions.
type Compositor struct {
	ffmpeg       VideoToolkit
	synth        services.Synthesizer
	transcriber  Transcriber
	media        MediaSearcher
	httpClient   *http.Client
	cacheDir     string
	stageTimeout time.Duration
}

func NewCompositor(ffmpeg VideoToolkit, synth services.Synthesizer, transcriber Transcriber, media MediaSearcher, cacheDir string, stageTimeout time.Duration) *Compositor {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		panic(fmt.Sprintf("failed to create media cache dir: %v", err))
	}
	if stageTimeout <= 0 {
		stageTimeout = 3 * time.Minute
	}
	return &Compositor{
		ffmpeg:       ffmpeg,
		synth:        synth,
		transcriber:  transcriber,
		media:        media,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		cacheDir:     cacheDir,
		stageTimeout: stageTimeout,
	}
}

// stageCtx bounds a single stage so a stuck backend cannot hold a scene,
// and its cancellation latency, past the configured timeout.
func (c *Compositor) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.stageTimeout)
}

// sceneAssets is the intermediate state built up while rendering a scene.
type sceneAssets struct {
	audioPath     string
	audioData     []byte
	audioFormat   string
	audioDuration float64
	mediaPath     string
}

// RenderScene produces the finished clip for one scene and returns its
// path. All intermediate files are cleaned up before return; the clip
// itself is the caller's to clean. The control flags are polled between
// stages so a cancel or pause stops the scene at the next stage boundary
// (errHalted) instead of after the whole scene.
func (c *Compositor) RenderScene(ctx context.Context, jobID string, scene models.Scene, format models.AspectFormat, voiceKey string, signals *Signals) (string, error) {
	if scene.VoiceModel != "" {
		voiceKey = scene.VoiceModel
	}
	voice := services.ResolveVoice(voiceKey).VoiceName

	halted := func() bool {
		return signals != nil && (signals.CancelRequested() || signals.PauseRequested())
	}

	assets := &sceneAssets{}
	defer func() {
		c.ffmpeg.Cleanup(assets.audioPath)
	}()

	// Speech synthesis and media resolution are independent; run both,
	// each under its own stage timeout.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sctx, cancel := c.stageCtx(gctx)
		defer cancel()
		if err := c.synthesizeScene(sctx, jobID, scene, voice, assets); err != nil {
			return newSynthesisError(scene.ID, err)
		}
		return nil
	})
	g.Go(func() error {
		sctx, cancel := c.stageCtx(gctx)
		defer cancel()
		if err := c.resolveSceneMedia(sctx, jobID, scene, format, assets); err != nil {
			return newMediaResolutionError(scene.ID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	if halted() {
		return "", errHalted
	}

	alignCtx, cancelAlign := c.stageCtx(ctx)
	cues, err := c.alignCaptions(alignCtx, scene, assets)
	cancelAlign()
	if err != nil {
		// Alignment failure is recoverable: fall back to even slicing.
		log.Printf("[Compositor] job=%s scene=%s caption alignment failed, using text slicing: %v", jobID, scene.ID, err)
		cues = captions.FromText(scene.Text, assets.audioDuration)
	}
	if halted() {
		return "", errHalted
	}

	// The clip must cover the full caption track even when the audio
	// runs shorter.
	duration := assets.audioDuration
	if end := captions.TrackEnd(cues); end > duration {
		duration = end
	}

	width, height := format.Dimensions()
	clipPath := c.ffmpeg.CreateTempFile(fmt.Sprintf("%s_scene_%d.mp4", jobID, scene.Order))
	buildCtx, cancelBuild := c.stageCtx(ctx)
	err = c.ffmpeg.BuildSceneClip(buildCtx, assets.mediaPath, assets.audioPath, clipPath, duration, width, height)
	cancelBuild()
	if err != nil {
		return "", newCompositionError(scene.ID, err)
	}
	if halted() {
		c.ffmpeg.Cleanup(clipPath)
		return "", errHalted
	}

	if len(cues) == 0 {
		return clipPath, nil
	}

	burnCtx, cancelBurn := c.stageCtx(ctx)
	burned, err := c.burnCaptions(burnCtx, jobID, scene, clipPath, cues, width, height)
	cancelBurn()
	if err != nil {
		// A caption burn failure downgrades the scene to an uncaptioned
		// clip rather than failing the render.
		log.Printf("[Compositor] job=%s scene=%s caption burn failed, keeping uncaptioned clip: %v", jobID, scene.ID, err)
		return clipPath, nil
	}
	c.ffmpeg.Cleanup(clipPath)
	return burned, nil
}

func (c *Compositor) synthesizeScene(ctx context.Context, jobID string, scene models.Scene, voice string, assets *sceneAssets) error {
	result, err := c.synth.Synthesize(ctx, scene.Text, voice)
	if err != nil {
		return err
	}

	audioPath := c.ffmpeg.CreateTempFile(fmt.Sprintf("%s_scene_%d_audio.%s", jobID, scene.Order, result.Format))
	if err := os.WriteFile(audioPath, result.AudioData, 0644); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	duration := result.DurationSeconds
	if duration <= 0 {
		duration, err = c.ffmpeg.ProbeDuration(ctx, audioPath)
		if err != nil {
			log.Printf("[Compositor] job=%s scene=%s audio probe failed, using speech estimate: %v", jobID, scene.ID, err)
			duration = models.EstimatedSpeechSeconds(scene.Text)
		}
	}

	assets.audioPath = audioPath
	assets.audioData = result.AudioData
	assets.audioFormat = result.Format
	assets.audioDuration = duration
	return nil
}

// resolveSceneMedia fills assets.mediaPath, leaving it empty when no
// footage can be found. An empty result is not an error; the scene
// renders on a solid background instead.
func (c *Compositor) resolveSceneMedia(ctx context.Context, jobID string, scene models.Scene, format models.AspectFormat, assets *sceneAssets) error {
	media := scene.Media
	if media == nil {
		if c.media == nil {
			return nil
		}
		query := services.SearchQuery(scene.Keywords, scene.Text)
		if query == "" {
			return nil
		}
		results, err := c.media.SearchVideos(ctx, query, format)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			log.Printf("[Compositor] job=%s scene=%s no stock media for %q", jobID, scene.ID, query)
			return nil
		}
		media = &results[0]
	}
	if media.URL == "" {
		return nil
	}

	path, err := c.downloadMedia(ctx, media.URL)
	if err != nil {
		return err
	}
	assets.mediaPath = path
	return nil
}

// downloadMedia fetches a media URL into the shared cache. The cache is
// keyed by URL hash so repeated scenes and retried jobs reuse downloads.
func (c *Compositor) downloadMedia(ctx context.Context, mediaURL string) (string, error) {
	sum := sha256.Sum256([]byte(mediaURL))
	path := filepath.Join(c.cacheDir, hex.EncodeToString(sum[:8])+".mp4")
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create media request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("media download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media download returned status %d", resp.StatusCode)
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize media file: %w", err)
	}
	return path, nil
}

// alignCaptions returns normalized cues for the scene. Pre-authored cues
// win; otherwise Whisper word timestamps; otherwise even text slicing.
func (c *Compositor) alignCaptions(ctx context.Context, scene models.Scene, assets *sceneAssets) ([]captions.Cue, error) {
	if len(scene.Captions) > 0 {
		return captions.Normalize(scene.Captions), nil
	}
	if scene.Text == "" {
		return nil, nil
	}
	if c.transcriber != nil {
		words, err := c.transcriber.TranscribeAudio(ctx, assets.audioData, assets.audioFormat)
		if err != nil {
			return nil, err
		}
		return captions.FromWords(words), nil
	}
	return captions.FromText(scene.Text, assets.audioDuration), nil
}

func (c *Compositor) burnCaptions(ctx context.Context, jobID string, scene models.Scene, clipPath string, cues []captions.Cue, width, height int) (string, error) {
	assPath := c.ffmpeg.CreateTempFile(fmt.Sprintf("%s_scene_%d.ass", jobID, scene.Order))
	defer c.ffmpeg.Cleanup(assPath)

	if err := captions.ExportASS(cues, assPath, width, height); err != nil {
		return "", err
	}

	burnedPath := c.ffmpeg.CreateTempFile(fmt.Sprintf("%s_scene_%d_sub.mp4", jobID, scene.Order))
	if err := c.ffmpeg.BurnSubtitles(ctx, clipPath, assPath, burnedPath); err != nil {
		return "", err
	}
	return burnedPath, nil
}
