package render

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/unibox-design/reelforge/internal/models"
)

// Progress milestones. Scene completion advances linearly between
// renderStart and renderEnd; the remainder covers assembly and publish.
const (
	progressQueued      = 0
	progressRenderStart = 5
	progressRenderSpan  = 90
	progressDone        = 100
)

// run executes the full pipeline for one job. It is the only goroutine
// that moves the job forward; control handlers only flip signal flags.
func (c *Controller) run(jobID uuid.UUID) {
	defer c.wg.Done()

	signals, ok := c.registry.Signals(jobID)
	if !ok {
		return
	}
	board, _ := c.registry.Storyboard(jobID)

	// Wait for a worker slot. A cancel or pause that lands while queued
	// resolves at this first checkpoint without rendering anything.
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	if c.checkpoint(jobID, signals, nil) {
		return
	}

	job, _ := c.registry.Update(jobID, func(j *models.RenderJob) {
		j.State = models.StateRendering
		j.Progress = progressRenderStart
	})
	c.mirror.Put(context.Background(), job)
	log.Printf("[Pipeline] job=%s rendering %d scenes", jobID, len(board.Scenes))

	voiceKey := board.VoiceModel
	total := len(board.Scenes)
	var clips []string

	for i, scene := range board.Scenes {
		if c.checkpoint(jobID, signals, clips) {
			return
		}

		// Stage timeouts live inside the compositor; the scene itself
		// has no outer deadline.
		clipPath, err := c.compositor.RenderScene(context.Background(), jobID.String(), scene, board.Format, voiceKey, signals)
		if err != nil {
			if errors.Is(err, errHalted) {
				c.checkpoint(jobID, signals, clips)
				return
			}
			c.fail(jobID, err, clips)
			return
		}
		clips = append(clips, clipPath)

		progress := progressRenderStart + progressRenderSpan*(i+1)/total
		job, _ = c.registry.Update(jobID, func(j *models.RenderJob) {
			j.Progress = progress
		})
		c.mirror.Put(context.Background(), job)
		log.Printf("[Pipeline] job=%s scene %d/%d done (progress=%d)", jobID, i+1, total, progress)
	}

	if c.checkpoint(jobID, signals, clips) {
		return
	}

	outputPath := filepath.Join(c.outputDir, jobID.String()+".mp4")
	assembleCtx, cancel := context.WithTimeout(context.Background(), c.stageTimeout)
	err := c.ffmpeg.ConcatenateClips(assembleCtx, clips, outputPath)
	cancel()
	if err != nil {
		c.fail(jobID, newAssemblyError(err), clips)
		return
	}
	c.ffmpeg.Cleanup(clips...)

	// A cancel or pause that landed during assembly still wins; the
	// assembled output is discarded before publish.
	if c.checkpoint(jobID, signals, []string{outputPath}) {
		return
	}

	videoURL, err := c.publish(jobID, outputPath)
	if err != nil {
		c.ffmpeg.Cleanup(outputPath)
		c.fail(jobID, newPublishError(err), nil)
		return
	}

	// The terminal write re-checks the flags under the registry lock so
	// a control request racing the finish is honored rather than stranding
	// the job in cancelling/pausing.
	var final models.JobState
	job, _ = c.registry.Update(jobID, func(j *models.RenderJob) {
		switch {
		case signals.CancelRequested():
			j.State = models.StateCancelled
		case signals.PauseRequested():
			j.State = models.StatePaused
		default:
			j.State = models.StateCompleted
			j.Progress = progressDone
			j.VideoURL = &videoURL
		}
		final = j.State
	})
	c.mirror.Put(context.Background(), job)
	if final != models.StateCompleted {
		c.ffmpeg.Cleanup(outputPath)
		log.Printf("[Pipeline] job=%s stopped after publish (%s)", jobID, final)
		return
	}
	log.Printf("[Pipeline] job=%s completed (%s)", jobID, videoURL)
}

// checkpoint polls the control flags. When one is set it cleans up all
// intermediate clips, finalizes the job and returns true. Cancel wins
// over pause when both are set; the flags are re-read under the registry
// lock so the precedence holds against a concurrent cancel request.
func (c *Controller) checkpoint(jobID uuid.UUID, signals *Signals, clips []string) bool {
	if !signals.CancelRequested() && !signals.PauseRequested() {
		return false
	}

	c.ffmpeg.Cleanup(clips...)
	var state models.JobState
	job, _ := c.registry.Update(jobID, func(j *models.RenderJob) {
		if signals.CancelRequested() {
			j.State = models.StateCancelled
		} else {
			j.State = models.StatePaused
		}
		state = j.State
	})
	c.mirror.Put(context.Background(), job)
	log.Printf("[Pipeline] job=%s stopped at checkpoint (%s)", jobID, state)
	return true
}

// fail finalizes the job with its stage error and cleans up clips.
func (c *Controller) fail(jobID uuid.UUID, err error, clips []string) {
	c.ffmpeg.Cleanup(clips...)
	msg := err.Error()
	job, _ := c.registry.Update(jobID, func(j *models.RenderJob) {
		j.State = models.StateFailed
		j.Error = &msg
	})
	c.mirror.Put(context.Background(), job)
	log.Printf("[Pipeline] job=%s failed: %v", jobID, err)
}

// publish uploads the finished video when a publisher is configured,
// otherwise serves it from the local output directory. Local URLs carry a
// cache-busting suffix so clients refetch after a re-render.
func (c *Controller) publish(jobID uuid.UUID, outputPath string) (string, error) {
	if c.publisher == nil {
		return fmt.Sprintf("/videos/%s?v=%s", filepath.Base(outputPath), uuid.NewString()[:6]), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.stageTimeout)
	defer cancel()
	return c.publisher.UploadFile(ctx, outputPath, fmt.Sprintf("renders/%s.mp4", jobID))
}
