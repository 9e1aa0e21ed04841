// Package job runs per-video frame extraction. It provides the Job record
// with its state machine, the immutable ExtractionJob handed to workers,
// scratch materialization of archive entries, and the bounded worker pool.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/vidframes/internal/job/id"
	"github.com/maauso/vidframes/internal/sampler"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the video is waiting for a worker slot.
	StatusPending Status = "PENDING"
	// StatusRunning indicates a worker is decoding the video.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the video was decoded to the end.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates extraction or decoding failed for this video.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the run was cancelled before the video finished.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the decode exceeded its deadline and was killed.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// PENDING may fail directly when the entry cannot be materialized.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ExtractionJob is the immutable unit of work handed to a worker.
// It is passed by value and never shared.
type ExtractionJob struct {
	// ID matches the Job record tracking this work.
	ID string
	// Seq is the dispatch position within the run, starting at 0.
	Seq int
	// EntryName is the member path inside the archive.
	EntryName string
	// LogicalName keys the output directory.
	LogicalName string
	// ScratchPath is the private materialized copy of the entry.
	ScratchPath string
	// OutputRoot is the directory holding one folder per video.
	OutputRoot string
	// TargetFPS is the sampling rate.
	TargetFPS float64
	// Overwrite disables resume.
	Overwrite bool
}

// SampleRequest converts the job into a sampler request.
func (e ExtractionJob) SampleRequest() sampler.Request {
	return sampler.Request{
		SourcePath:  e.ScratchPath,
		LogicalName: e.LogicalName,
		OutputRoot:  e.OutputRoot,
		TargetFPS:   e.TargetFPS,
		Overwrite:   e.Overwrite,
	}
}

// Job tracks the lifecycle and outcome of one video within a run.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// RunID groups the jobs of one invocation.
	RunID string
	// Seq is the dispatch position within the run.
	Seq int
	// EntryName is the member path inside the archive.
	EntryName string
	// LogicalName keys the output directory.
	LogicalName string
	// Status is the current job state.
	Status Status
	// ResumedFrom is the highest frame index present before decoding.
	ResumedFrom int
	// Emitted is the number of frames written by this run.
	Emitted int
	// Skipped is the number of due frames that already existed.
	Skipped int
	// TotalFrames is the highest frame index present after decoding.
	TotalFrames int
	// NativeFPS is the rate used for timing decoded frames.
	NativeFPS float64
	// SourceFrames is the frame count the decoder expected, 0 if unknown.
	SourceFrames int
	// Degraded is set when the native rate was unknown.
	Degraded bool
	// FramesDir is where the frames were written.
	FramesDir string
	// Published is the number of frames uploaded to S3.
	Published int
	// Error contains any error message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when decoding started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial PENDING status.
func New(runID string, seq int, entryName, logicalName string) *Job {
	return NewWithID(id.Generate(), runID, seq, entryName, logicalName)
}

// NewWithID creates a new PENDING Job with the specified ID.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID, runID string, seq int, entryName, logicalName string) *Job {
	now := time.Now()
	return &Job{
		ID:          jobID,
		RunID:       runID,
		Seq:         seq,
		EntryName:   entryName,
		LogicalName: logicalName,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from PENDING to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	return j.finishWithError(StatusFailed, errMsg)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel(errMsg string) error {
	return j.finishWithError(StatusCancelled, errMsg)
}

// Timeout transitions the job to TIMED_OUT state.
func (j *Job) Timeout(errMsg string) error {
	return j.finishWithError(StatusTimedOut, errMsg)
}

func (j *Job) finishWithError(status Status, errMsg string) error {
	if err := j.TransitionTo(status); err != nil {
		return err
	}
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetResult records what the sampler reported.
func (j *Job) SetResult(res sampler.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ResumedFrom = res.ResumedFrom
	j.Emitted = res.Emitted
	j.Skipped = res.Skipped
	j.TotalFrames = res.Total
	j.NativeFPS = res.NativeFPS
	j.SourceFrames = res.SourceFrames
	j.Degraded = res.Degraded
	j.FramesDir = res.FramesDir
	j.UpdatedAt = time.Now()
}

// SetPublished records how many frames were uploaded.
func (j *Job) SetPublished(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Published = n
	j.UpdatedAt = time.Now()
}

// SetPublishError records a publication failure without changing the
// decode status.
func (j *Job) SetPublishError(errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = errMsg
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled ||
		j.Status == StatusTimedOut
}

// Duration returns how long decoding took, or 0 if it has not finished.
func (j *Job) Duration() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.StartedAt.IsZero() || j.CompletedAt.IsZero() {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:           j.ID,
		RunID:        j.RunID,
		Seq:          j.Seq,
		EntryName:    j.EntryName,
		LogicalName:  j.LogicalName,
		Status:       j.Status,
		ResumedFrom:  j.ResumedFrom,
		Emitted:      j.Emitted,
		Skipped:      j.Skipped,
		TotalFrames:  j.TotalFrames,
		NativeFPS:    j.NativeFPS,
		SourceFrames: j.SourceFrames,
		Degraded:     j.Degraded,
		FramesDir:    j.FramesDir,
		Published:    j.Published,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
