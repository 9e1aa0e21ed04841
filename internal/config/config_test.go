package config

import (
	"bytes"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TEMP_DIR", "MAX_WORKERS", "DECODE_TIMEOUT", "SAMPLE_TOLERANCE",
		"FFMPEG_PATH", "FFPROBE_PATH",
		"S3_BUCKET", "S3_REGION", "S3_PREFIX", "S3_ENDPOINT",
		"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"LOG_FORMAT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.TempDir)
	assert.Equal(t, 0, cfg.MaxWorkers)
	assert.Equal(t, time.Duration(0), cfg.DecodeTimeout)
	assert.Equal(t, 1e-6, cfg.SampleTolerance)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("MAX_WORKERS", "6")
	t.Setenv("DECODE_TIMEOUT", "90s")
	t.Setenv("SAMPLE_TOLERANCE", "0.001")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("FFPROBE_PATH", "/opt/ffmpeg/bin/ffprobe")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_PREFIX", "datasets/frames")
	t.Setenv("S3_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, 6, cfg.MaxWorkers)
	assert.Equal(t, 6, cfg.Workers())
	assert.Equal(t, 90*time.Second, cfg.DecodeTimeout)
	assert.Equal(t, 0.001, cfg.SampleTolerance)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "/opt/ffmpeg/bin/ffprobe", cfg.FFprobePath)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "datasets/frames", cfg.S3Prefix)
	assert.Equal(t, "http://localhost:4566", cfg.S3Endpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.S3Enabled())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric workers", "MAX_WORKERS", "many"},
		{"negative workers", "MAX_WORKERS", "-2"},
		{"bad duration", "DECODE_TIMEOUT", "soon"},
		{"negative duration", "DECODE_TIMEOUT", "-5s"},
		{"negative tolerance", "SAMPLE_TOLERANCE", "-0.1"},
		{"unknown log format", "LOG_FORMAT", "xml"},
		{"unknown log level", "LOG_LEVEL", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestConfig_Workers(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, runtime.NumCPU(), cfg.Workers())

	cfg.MaxWorkers = 2
	assert.Equal(t, 2, cfg.Workers())
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		TempDir:            "/tmp/test",
		MaxWorkers:         4,
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSAccessKeyID:     "access-id",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "MaxWorkers: 4")
	assert.Contains(t, str, "bucket")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "access-id")
}

func TestConfig_NewLogger_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Debug("hidden")
	logger.Info("test message", slog.String("video", "A"))

	assert.Contains(t, buf.String(), `"msg":"test message"`)
	assert.Contains(t, buf.String(), `"video":"A"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestConfig_NewLogger_Text(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "WARNING",
	}

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("degraded rate")

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "msg=\"degraded rate\"")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestRunOptions_Validate(t *testing.T) {
	dir := t.TempDir()
	part := filepath.Join(dir, "videos.zip.001")
	require.NoError(t, os.WriteFile(part, []byte("PK"), 0o600))

	valid := func() RunOptions {
		return RunOptions{PartPath: part, OutputDir: filepath.Join(dir, "out"), FPS: 2}
	}

	t.Run("valid", func(t *testing.T) {
		opts := valid()
		opts.LogLevel = "warning"
		require.NoError(t, opts.Validate())
		assert.Equal(t, "WARNING", opts.LogLevel)
	})

	tests := []struct {
		name    string
		mutate  func(o *RunOptions)
		wantErr error
	}{
		{"zero fps", func(o *RunOptions) { o.FPS = 0 }, ErrInvalidFPS},
		{"negative fps", func(o *RunOptions) { o.FPS = -1.5 }, ErrInvalidFPS},
		{"NaN fps", func(o *RunOptions) { o.FPS = math.NaN() }, ErrInvalidFPS},
		{"missing part flag", func(o *RunOptions) { o.PartPath = "" }, ErrPartNotFound},
		{"nonexistent part", func(o *RunOptions) { o.PartPath = filepath.Join(dir, "nope.zip") }, ErrPartNotFound},
		{"part is a directory", func(o *RunOptions) { o.PartPath = dir }, ErrPartNotFound},
		{"missing out", func(o *RunOptions) { o.OutputDir = "" }, ErrOutRequired},
		{"bad log level", func(o *RunOptions) { o.LogLevel = "TRACE" }, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid()
			tt.mutate(&opts)
			assert.ErrorIs(t, opts.Validate(), tt.wantErr)
		})
	}
}
