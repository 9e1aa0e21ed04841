package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Static errors for run option validation.
var (
	// ErrInvalidFPS is returned when --fps is not a positive number.
	ErrInvalidFPS = errors.New("config: --fps must be greater than 0")
	// ErrPartNotFound is returned when --part is missing or does not exist.
	ErrPartNotFound = errors.New("config: --part does not exist")
	// ErrOutRequired is returned when --out is not set.
	ErrOutRequired = errors.New("config: --out is required")
	// ErrInvalidLogLevel is returned for an unknown --log-level.
	ErrInvalidLogLevel = errors.New("config: --log-level must be one of DEBUG, INFO, WARNING, ERROR")
)

// RunOptions are the per-invocation settings of a decode run.
type RunOptions struct {
	PartPath  string  `validate:"required"`
	OutputDir string  `validate:"required"`
	FPS       float64 `validate:"gt=0"`
	Overwrite bool
	LogLevel  string `validate:"omitempty,oneof=DEBUG INFO WARNING WARN ERROR"`
}

var optionErrors = map[string]error{
	"PartPath":  ErrPartNotFound,
	"OutputDir": ErrOutRequired,
	"FPS":       ErrInvalidFPS,
	"LogLevel":  ErrInvalidLogLevel,
}

// Validate checks the options before any work starts. The part path must
// exist on disk; the output directory is created later if missing.
func (o *RunOptions) Validate() error {
	o.LogLevel = strings.ToUpper(strings.TrimSpace(o.LogLevel))

	if err := validator.New().Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			if mapped, ok := optionErrors[verrs[0].Field()]; ok {
				return mapped
			}
		}
		return fmt.Errorf("config: %w", err)
	}

	info, err := os.Stat(o.PartPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPartNotFound, o.PartPath)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrPartNotFound, o.PartPath)
	}
	return nil
}
