package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/avoss/meetscribe/pkg/models"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		}
	}
	return result, err
}

// WhisperPipeline implements Pipeline by shelling out to ffmpeg for audio
// normalization and the whisper CLI for transcription.
type WhisperPipeline struct {
	engine *Engine
	runner commandRunner
}

// NewWhisperPipeline creates a pipeline bound to the given engine.
func NewWhisperPipeline(engine *Engine) *WhisperPipeline {
	return &WhisperPipeline{engine: engine, runner: execRunner{}}
}

// speakerGap is the pause length that starts a new speaker turn.
const speakerGap = 1.5

func (p *WhisperPipeline) Run(ctx context.Context, audioPath string, opts Options) ([]models.Segment, error) {
	modelSize := opts.ModelSize
	if modelSize == "" {
		modelSize = p.engine.DefaultModelSize
	}
	language := opts.Language
	if language == "" {
		language = p.engine.DefaultLanguage
	}

	tempDir, err := os.MkdirTemp("", "meetscribe-pipeline-")
	if err != nil {
		return nil, stageError("convert", "create temp dir", err)
	}
	defer os.RemoveAll(tempDir)

	wavPath, err := p.convertToWAV(ctx, audioPath, tempDir)
	if err != nil {
		return nil, err
	}

	raw, err := p.transcribe(ctx, wavPath, tempDir, modelSize, language)
	if err != nil {
		return nil, err
	}

	return buildProtocol(raw), nil
}

// convertToWAV normalizes the input to 16 kHz mono WAV, the format the
// transcription model expects. MP3 and WAV inputs go through the same path.
func (p *WhisperPipeline) convertToWAV(ctx context.Context, audioPath, tempDir string) (string, error) {
	wavPath := filepath.Join(tempDir, "input.wav")

	res, err := p.runner.Run(ctx, p.engine.FFmpegBin,
		"-y", "-i", audioPath, "-ar", "16000", "-ac", "1", wavPath)
	if err != nil {
		return "", stageError("convert",
			fmt.Sprintf("ffmpeg exited with code %d: %s", res.ExitCode, lastLine(res.Stderr)), err)
	}
	return wavPath, nil
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperOutput struct {
	Segments []whisperSegment `json:"segments"`
}

func (p *WhisperPipeline) transcribe(ctx context.Context, wavPath, tempDir, modelSize, language string) ([]whisperSegment, error) {
	res, err := p.runner.Run(ctx, p.engine.WhisperBin,
		wavPath,
		"--model", modelSize,
		"--model_dir", p.engine.ModelsDir,
		"--language", language,
		"--output_format", "json",
		"--output_dir", tempDir)
	if err != nil {
		return nil, stageError("transcribe",
			fmt.Sprintf("whisper exited with code %d: %s", res.ExitCode, lastLine(res.Stderr)), err)
	}

	outPath := filepath.Join(tempDir, strings.TrimSuffix(filepath.Base(wavPath), ".wav")+".json")
	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, stageError("transcribe", "read transcription output", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, stageError("transcribe", "parse transcription output", err)
	}
	return out.Segments, nil
}

// buildProtocol orders segments by start time and attributes speakers.
// Speaker turns are approximated from pauses between segments; a dedicated
// diarization stage can replace this without changing the pipeline contract.
func buildProtocol(raw []whisperSegment) []models.Segment {
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Start < raw[j].Start })

	protocol := make([]models.Segment, 0, len(raw))
	speaker := 0
	for i, seg := range raw {
		if i > 0 && seg.Start-raw[i-1].End >= speakerGap {
			speaker = 1 - speaker
		}
		protocol = append(protocol, models.Segment{
			Speaker:   fmt.Sprintf("SPEAKER_%02d", speaker),
			StartTime: seg.Start,
			EndTime:   seg.End,
			Text:      strings.TrimSpace(seg.Text),
		})
	}
	return protocol
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

var _ Pipeline = (*WhisperPipeline)(nil)
