package pipeline

import (
	"fmt"
	"os/exec"

	"github.com/avoss/meetscribe/internal/config"
)

// Engine is the process-wide handle to the transcription toolchain. It is
// created once at startup and passed explicitly into the pipeline, so tests
// can substitute a double instead of reaching for ambient global state.
type Engine struct {
	FFmpegBin        string
	WhisperBin       string
	ModelsDir        string
	DefaultModelSize string
	DefaultLanguage  string
}

// NewEngine resolves the external binaries eagerly so a misconfigured
// toolchain fails at startup rather than on the first job.
func NewEngine(cfg config.PipelineConfig) (*Engine, error) {
	ffmpeg, err := exec.LookPath(cfg.FFmpegBin)
	if err != nil {
		return nil, fmt.Errorf("resolve ffmpeg binary %q: %w", cfg.FFmpegBin, err)
	}
	whisper, err := exec.LookPath(cfg.WhisperBin)
	if err != nil {
		return nil, fmt.Errorf("resolve whisper binary %q: %w", cfg.WhisperBin, err)
	}

	return &Engine{
		FFmpegBin:        ffmpeg,
		WhisperBin:       whisper,
		ModelsDir:        cfg.ModelsDir,
		DefaultModelSize: cfg.DefaultModelSize,
		DefaultLanguage:  cfg.DefaultLanguage,
	}, nil
}
