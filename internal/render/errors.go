package render

import "fmt"

// Error taxonomy for the render pipeline. API handlers map these to HTTP
// status codes; the pipeline maps stage failures onto the job's terminal
// error message.

// ValidationError reports a malformed storyboard or request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports an unknown job ID.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConflictError reports a control request that the job's current state
// does not permit, or a duplicate concurrent submission.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// StageError is the common shape of a pipeline stage failure. Stage names
// show up in the job's error message, so keep them human readable.
type StageError struct {
	Stage   string
	SceneID string
	Err     error
}

func (e *StageError) Error() string {
	if e.SceneID != "" {
		return fmt.Sprintf("%s failed for scene %s: %v", e.Stage, e.SceneID, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// SynthesisError wraps a text-to-speech failure.
type SynthesisError struct{ StageError }

// MediaResolutionError wraps a stock media lookup or download failure.
type MediaResolutionError struct{ StageError }

// CompositionError wraps a per-scene clip build failure.
type CompositionError struct{ StageError }

// AssemblyError wraps a final concatenation or publish failure.
type AssemblyError struct{ StageError }

func newSynthesisError(sceneID string, err error) error {
	return &SynthesisError{StageError{Stage: "speech synthesis", SceneID: sceneID, Err: err}}
}

func newMediaResolutionError(sceneID string, err error) error {
	return &MediaResolutionError{StageError{Stage: "media resolution", SceneID: sceneID, Err: err}}
}

func newCompositionError(sceneID string, err error) error {
	return &CompositionError{StageError{Stage: "composition", SceneID: sceneID, Err: err}}
}

func newAssemblyError(err error) error {
	return &AssemblyError{StageError{Stage: "assembly", Err: err}}
}

// Publishing shares the assembly taxonomy but keeps its own stage name so
// an upload failure is not reported as a concatenation failure.
func newPublishError(err error) error {
	return &AssemblyError{StageError{Stage: "publish", Err: err}}
}
