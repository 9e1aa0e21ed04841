// Package id provides unique identifier generation for jobs and runs.
package id

import (
	"github.com/google/uuid"
)

const (
	jobPrefix = "job-"
	runPrefix = "run-"
)

// Generate creates a new unique job ID.
// Format: job-<uuid v4>
// Example: job-9b2f7c1e-4a55-4d0b-a3c9-0f3b7c2d1e88
func Generate() string {
	return jobPrefix + uuid.NewString()
}

// GenerateRun creates a new unique run ID in the same format with a "run-" prefix.
func GenerateRun() string {
	return runPrefix + uuid.NewString()
}
