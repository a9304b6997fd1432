package render

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unibox-design/reelforge/internal/models"
)

// Publisher uploads a finished video and returns its public URL.
type Publisher interface {
	UploadFile(ctx context.Context, localPath, objectName string) (string, error)
}

// Controller owns the render job lifecycle: submission, status, control
// signals and the pipeline goroutines that do the work.
type Controller struct {
	registry   *Registry
	mirror     *Mirror
	compositor *Compositor
	ffmpeg     VideoToolkit
	publisher  Publisher

	outputDir    string
	stageTimeout time.Duration

	sem chan struct{}
	wg  sync.WaitGroup
}

type ControllerOptions struct {
	OutputDir         string
	MaxConcurrentJobs int
	StageTimeout      time.Duration
	// Mirror and Publisher are optional; nil disables them.
	Mirror    *Mirror
	Publisher Publisher
}

func NewController(registry *Registry, compositor *Compositor, ffmpeg VideoToolkit, opts ControllerOptions) *Controller {
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = 2
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 3 * time.Minute
	}
	return &Controller{
		registry:     registry,
		mirror:       opts.Mirror,
		compositor:   compositor,
		ffmpeg:       ffmpeg,
		publisher:    opts.Publisher,
		outputDir:    opts.OutputDir,
		stageTimeout: opts.StageTimeout,
		sem:          make(chan struct{}, opts.MaxConcurrentJobs),
	}
}

// validateStoryboard checks the structural rules a render depends on.
func validateStoryboard(board models.Storyboard) error {
	if len(board.Scenes) == 0 {
		return &ValidationError{Msg: "storyboard has no scenes"}
	}
	if board.Format != "" && !board.Format.Valid() {
		return &ValidationError{Msg: "unknown format: " + string(board.Format)}
	}
	for i, scene := range board.Scenes {
		if strings.TrimSpace(scene.Text) == "" {
			return &ValidationError{Msg: "scene " + scene.ID + " has no narration text"}
		}
		if scene.Order != i {
			return &ValidationError{Msg: "scene order must be contiguous from zero"}
		}
	}
	return nil
}

// Submit validates the storyboard, registers a queued job and schedules
// its pipeline. The storyboard is snapshotted; later edits to the caller's
// copy do not affect the run.
func (c *Controller) Submit(ctx context.Context, board models.Storyboard, projectID string) (models.RenderJob, error) {
	if err := validateStoryboard(board); err != nil {
		return models.RenderJob{}, err
	}
	if board.Format == "" {
		board.Format = models.FormatLandscape
	}

	now := time.Now().UTC()
	job := models.RenderJob{
		ID:        uuid.New(),
		ProjectID: projectID,
		State:     models.StateQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := c.registry.Add(job, board.Clone()); err != nil {
		return models.RenderJob{}, err
	}
	c.mirror.Put(ctx, job)

	log.Printf("[Controller] job=%s queued (%d scenes, format=%s, project=%q)",
		job.ID, len(board.Scenes), board.Format, projectID)

	c.wg.Add(1)
	go c.run(job.ID)

	return cloneJob(job), nil
}

// GetStatus returns a job snapshot. Jobs missing from the local registry
// are hydrated from the mirror when one is configured.
func (c *Controller) GetStatus(ctx context.Context, id uuid.UUID) (models.RenderJob, error) {
	if job, ok := c.registry.Get(id); ok {
		return job, nil
	}
	if job, ok := c.mirror.Get(ctx, id); ok {
		return job, nil
	}
	return models.RenderJob{}, &NotFoundError{Resource: "render job", ID: id.String()}
}

// RequestCancel asks the job to stop at its next checkpoint. Terminal
// jobs and jobs already cancelling are left untouched; the call is
// idempotent.
func (c *Controller) RequestCancel(ctx context.Context, id uuid.UUID) (models.RenderJob, error) {
	signals, ok := c.registry.Signals(id)
	if !ok {
		return models.RenderJob{}, &NotFoundError{Resource: "render job", ID: id.String()}
	}

	// Check-and-set runs inside the registry lock: a pipeline writing its
	// terminal state serializes either before (the request is a no-op) or
	// after (the flag is already visible to the final write).
	changed := false
	job, _ := c.registry.Update(id, func(j *models.RenderJob) {
		if j.State.IsTerminal() || j.State == models.StateCancelling {
			return
		}
		signals.RequestCancel()
		j.State = models.StateCancelling
		changed = true
	})
	if changed {
		c.mirror.Put(ctx, job)
		log.Printf("[Controller] job=%s cancel requested", id)
	}
	return job, nil
}

// RequestPause asks the job to stop at its next checkpoint, reporting
// paused instead of cancelled. A job that is already cancelling keeps
// cancelling; cancel takes precedence.
func (c *Controller) RequestPause(ctx context.Context, id uuid.UUID) (models.RenderJob, error) {
	signals, ok := c.registry.Signals(id)
	if !ok {
		return models.RenderJob{}, &NotFoundError{Resource: "render job", ID: id.String()}
	}

	changed := false
	job, _ := c.registry.Update(id, func(j *models.RenderJob) {
		if j.State.IsTerminal() || j.State == models.StateCancelling || j.State == models.StatePausing {
			return
		}
		signals.RequestPause()
		j.State = models.StatePausing
		changed = true
	})
	if changed {
		c.mirror.Put(ctx, job)
		log.Printf("[Controller] job=%s pause requested", id)
	}
	return job, nil
}

// StartSweeper periodically drops expired terminal jobs until ctx ends.
func (c *Controller) StartSweeper(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.registry.Sweep(retention)
			}
		}
	}()
}

// Shutdown waits for running pipelines to reach a checkpoint and finish,
// or for ctx to expire.
func (c *Controller) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
