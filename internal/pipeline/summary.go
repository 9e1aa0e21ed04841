package pipeline

import (
	"time"

	"github.com/maauso/vidframes/internal/archive"
	"github.com/maauso/vidframes/internal/job"
)

// VideoSummary is the final state of one video.
type VideoSummary struct {
	Name        string
	Entry       string
	Status      job.Status
	ResumedFrom int
	NewFrames   int
	TotalFrames int
	Degraded    bool
	Published   int
	Duration    time.Duration
	Error       string
}

// Summary describes a completed run.
type Summary struct {
	RunID     string
	OutputDir string
	Parts     []archive.Fragment
	// Merged is true when the parts were concatenated into a scratch archive.
	Merged   bool
	Videos   []VideoSummary
	Duration time.Duration
}

// NewFrames sums frames written during the run.
func (s *Summary) NewFrames() int {
	n := 0
	for _, v := range s.Videos {
		n += v.NewFrames
	}
	return n
}

// Failed counts videos that did not complete.
func (s *Summary) Failed() int {
	n := 0
	for _, v := range s.Videos {
		if v.Status != job.StatusCompleted {
			n++
		}
	}
	return n
}

func summarize(j *job.Job) VideoSummary {
	return VideoSummary{
		Name:        j.LogicalName,
		Entry:       j.EntryName,
		Status:      j.Status,
		ResumedFrom: j.ResumedFrom,
		NewFrames:   j.Emitted,
		TotalFrames: j.TotalFrames,
		Degraded:    j.Degraded,
		Published:   j.Published,
		Duration:    j.Duration(),
		Error:       j.Error,
	}
}
