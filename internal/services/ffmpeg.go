package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// FFmpegService
//
// Every scene clip is normalized to one resolution, frame rate and codec
// pair so the final concatenation can run with stream copy (no re-encode).
// ---------------------------------------------------------------------------

const (
	videoFPS = 30

	// Audio encode settings shared by every scene clip.
	audioSampleRate = 24000
	audioChannels   = 1

	// Background fill when a scene has no media asset.
	fallbackColor = "0x141414"

	// Floor for scene duration so ffmpeg never gets a zero-length stream.
	minSceneSeconds = 0.1
)

type FFmpegService struct {
	tempDir string
}

func NewFFmpegService(tempDir string) *FFmpegService {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		panic(fmt.Sprintf("failed to create temp dir: %v", err))
	}
	return &FFmpegService{tempDir: tempDir}
}

func (s *FFmpegService) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 400 {
			detail = detail[len(detail)-400:]
		}
		if detail != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// encodeTail is the shared encoder configuration appended to every scene
// build. Uniform settings are what make the lossless concat possible.
func encodeTail(outputPath string) []string {
	return []string{
		"-r", strconv.Itoa(videoFPS),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "20",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-ar", strconv.Itoa(audioSampleRate),
		"-ac", strconv.Itoa(audioChannels),
		"-shortest",
		outputPath,
	}
}

// scaleCropFilter letterbox-crops arbitrary footage to the target frame.
func scaleCropFilter(width, height int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
		width, height, width, height,
	)
}

// buildSceneArgs assembles the ffmpeg invocation for one scene clip from
// a media file plus narration audio. When the source footage is shorter
// than the narration its last frame is frozen to fill the gap.
func buildSceneArgs(mediaPath, audioPath, outputPath string, duration, mediaDuration float64, width, height int) []string {
	filters := scaleCropFilter(width, height)
	if mediaDuration > 0 && mediaDuration < duration {
		pad := duration - mediaDuration
		filters += fmt.Sprintf(",tpad=stop_mode=clone:stop_duration=%.3f", pad)
	}

	args := []string{
		"-y",
		"-t", fmt.Sprintf("%.3f", duration),
		"-i", mediaPath,
		"-i", audioPath,
		"-vf", filters,
		"-map", "0:v:0",
		"-map", "1:a:0",
	}
	return append(args, encodeTail(outputPath)...)
}

// buildColorSceneArgs assembles the invocation for a scene with no media:
// a solid dark background under the narration audio.
func buildColorSceneArgs(audioPath, outputPath string, duration float64, width, height int) []string {
	args := []string{
		"-y",
		"-i", audioPath,
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=%dx%d:d=%.3f", fallbackColor, width, height, duration),
		"-map", "1:v:0",
		"-map", "0:a:0",
		"-vf", scaleCropFilter(width, height),
	}
	return append(args, encodeTail(outputPath)...)
}

// BuildSceneClip renders one normalized scene clip. duration is the
// narration audio duration; mediaPath may be empty for a color-fill scene.
func (s *FFmpegService) BuildSceneClip(ctx context.Context, mediaPath, audioPath, outputPath string, duration float64, width, height int) error {
	if duration < minSceneSeconds {
		duration = minSceneSeconds
	}

	var args []string
	if mediaPath != "" {
		mediaDuration, err := s.ProbeDuration(ctx, mediaPath)
		if err != nil {
			log.Printf("[FFmpeg] could not probe media duration for %s: %v", mediaPath, err)
			mediaDuration = 0
		}
		args = buildSceneArgs(mediaPath, audioPath, outputPath, duration, mediaDuration, width, height)
	} else {
		args = buildColorSceneArgs(audioPath, outputPath, duration, width, height)
	}

	if err := s.run(ctx, args); err != nil {
		// Never leave a partial clip behind.
		os.Remove(outputPath)
		return err
	}
	return nil
}

// escapeFilterPath escapes characters that ffmpeg filter syntax treats
// specially in file paths.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

// BurnSubtitles overlays an ASS subtitle file onto a rendered clip. The
// audio stream is copied untouched.
func (s *FFmpegService) BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error {
	filter := fmt.Sprintf("subtitles='%s'", escapeFilterPath(subtitlePath))
	args := []string{
		"-y",
		"-i", videoPath,
		"-vf", filter,
		"-c:a", "copy",
		outputPath,
	}
	if err := s.run(ctx, args); err != nil {
		os.Remove(outputPath)
		return err
	}
	return nil
}

// ConcatenateClips joins the ordered scene clips into the final video
// with stream copy. Inputs must share codec, resolution and frame rate.
func (s *FFmpegService) ConcatenateClips(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := filepath.Join(s.tempDir, fmt.Sprintf("concat_%s.txt", filepath.Base(outputPath)))
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	for _, path := range clipPaths {
		fmt.Fprintf(f, "file '%s'\n", filepath.ToSlash(path))
	}
	f.Close()
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-movflags", "+faststart",
		outputPath,
	}
	if err := s.run(ctx, args); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("concatenate failed: %w", err)
	}
	return nil
}

// ProbeDuration returns a media file's duration in seconds via ffprobe.
func (s *FFmpegService) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return duration, nil
}

// CreateTempFile returns a path inside the service's temp directory.
func (s *FFmpegService) CreateTempFile(filename string) string {
	return filepath.Join(s.tempDir, filename)
}

// Cleanup removes temporary files, ignoring missing ones.
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, path := range paths {
		os.Remove(path)
	}
}
