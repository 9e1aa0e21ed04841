package main

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/vidframes/internal/config"
	"github.com/maauso/vidframes/internal/job"
	"github.com/maauso/vidframes/internal/pipeline"
	"github.com/maauso/vidframes/internal/progress"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TEMP_DIR", t.TempDir())
	t.Setenv("S3_BUCKET", "")
	t.Setenv("S3_REGION", "")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_LEVEL", "info")
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeArchive writes a two-part numeric archive holding the named members.
func writeArchive(t *testing.T, dir string, names ...string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	data := buf.Bytes()
	half := len(data) / 2
	require.NoError(t, os.WriteFile(filepath.Join(dir, "videos.zip.001"), data[:half], 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "videos.zip.002"), data[half:], 0o600))
	return filepath.Join(dir, "videos.zip.001")
}

func TestRootCommand_ValidatesOptions(t *testing.T) {
	setTestEnv(t)
	dir := t.TempDir()
	part := writeArchive(t, dir, "A.mp4")
	out := filepath.Join(dir, "out")

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"zero fps", []string{"--part", part, "--out", out, "--fps", "0"}, config.ErrInvalidFPS},
		{"negative fps", []string{"--part", part, "--out", out, "--fps", "-1"}, config.ErrInvalidFPS},
		{"missing part flag", []string{"--out", out, "--fps", "2"}, config.ErrPartNotFound},
		{"nonexistent part", []string{"--part", filepath.Join(dir, "nope.zip.001"), "--out", out, "--fps", "2"}, config.ErrPartNotFound},
		{"missing out", []string{"--part", part, "--fps", "2"}, config.ErrOutRequired},
		{"bad log level", []string{"--part", part, "--out", out, "--fps", "2", "--log-level", "TRACE"}, config.ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "nothing is created when validation fails")
}

func TestRootCommand_NamesFailingStage(t *testing.T) {
	setTestEnv(t)
	dir := t.TempDir()
	part := filepath.Join(dir, "videos.rar")
	require.NoError(t, os.WriteFile(part, []byte("x"), 0o600))

	_, _, err := execute(t, "--part", part, "--out", filepath.Join(dir, "out"), "--fps", "2")
	require.Error(t, err)

	var stageErr *pipeline.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, progress.StageResolve, stageErr.Stage)
	assert.Contains(t, err.Error(), "resolve")
}

func TestRootCommand_ArchiveWithoutVideos(t *testing.T) {
	setTestEnv(t)
	dir := t.TempDir()
	part := writeArchive(t, dir, "notes.txt", "cover.jpg")
	out := filepath.Join(dir, "out")

	stdout, stderr, err := execute(t, "--part", part, "--out", out, "--fps", "2", "--log-level", "debug")
	require.NoError(t, err)

	assert.Contains(t, stdout, "0 videos, 0 failed, 0 new frames from 2 part(s)")
	assert.Contains(t, stderr, "level=DEBUG")
	assert.DirExists(t, out)
}

func TestPartsCommand(t *testing.T) {
	setTestEnv(t)
	dir := t.TempDir()
	writeArchive(t, dir, "A.mp4")

	stdout, _, err := execute(t, "parts", "--part", filepath.Join(dir, "videos.zip.002"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "videos.zip.001")
	assert.Contains(t, stdout, "videos.zip.002")
	assert.Contains(t, stdout, "numeric")

	_, _, err = execute(t, "parts")
	assert.ErrorIs(t, err, config.ErrPartNotFound)
}

func TestEntriesCommand(t *testing.T) {
	setTestEnv(t)
	dir := t.TempDir()
	part := writeArchive(t, dir, "clips/A.mp4", "notes.txt", "B.MOV")

	stdout, _, err := execute(t, "entries", "--part", part)
	require.NoError(t, err)
	assert.Contains(t, stdout, "clips/A.mp4")
	assert.Contains(t, stdout, "B.MOV")
	assert.NotContains(t, stdout, "notes.txt")

	scratch, err := os.ReadDir(os.Getenv("TEMP_DIR"))
	require.NoError(t, err)
	assert.Empty(t, scratch, "merged archive must be removed")
}

func TestRenderSummary(t *testing.T) {
	s := &pipeline.Summary{
		RunID:    "run-1",
		Duration: 1500 * time.Millisecond,
		Videos: []pipeline.VideoSummary{
			{Name: "A", Status: job.StatusCompleted, ResumedFrom: 4, NewFrames: 16, TotalFrames: 20, Published: 20},
			{Name: "B", Status: job.StatusFailed, Error: "cannot open source"},
		},
	}

	out := renderSummary(s, false)
	assert.Contains(t, out, "Video")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "cannot open source")
	assert.NotContains(t, out, "Published")
	assert.NotContains(t, out, "PUBLISHED")
	assert.NotContains(t, out, "partial")
	assert.Contains(t, out, "run-1: 2 videos, 1 failed, 16 new frames from 0 part(s) in 1.5s")

	withPublished := renderSummary(s, true)
	assert.Contains(t, withPublished, "Published")
	assert.NotContains(t, withPublished, "PUBLISHED")
}

func TestRenderSummary_MarksPartialTotals(t *testing.T) {
	s := &pipeline.Summary{
		RunID: "run-2",
		Videos: []pipeline.VideoSummary{
			{Name: "A", Status: job.StatusCompleted, NewFrames: 20, TotalFrames: 20},
			{Name: "B", Status: job.StatusTimedOut, NewFrames: 7, TotalFrames: 7, Error: "context deadline exceeded"},
			{Name: "C", Status: job.StatusCancelled, NewFrames: 3, TotalFrames: 3},
		},
	}

	out := renderSummary(s, false)
	assert.Contains(t, out, "7*")
	assert.Contains(t, out, "3*")
	assert.NotContains(t, out, "20*")
	assert.Contains(t, out, "* partial: decoding stopped before the end of the video")
}

func TestNewReporter_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.IsType(t, &progress.LogReporter{}, newReporter(&buf, nil))
}
