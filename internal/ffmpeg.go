package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// CommandRunner executes external commands
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultCommandRunner runs commands with os/exec
type DefaultCommandRunner struct{}

func (r *DefaultCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// AudioSegment is a window of a source recording, in whole seconds
type AudioSegment struct {
	Index  int
	Start  int
	Length int
	Path   string
}

// Audio cuts recordings that are too large for one Whisper upload
type Audio struct {
	runner  CommandRunner
	workDir string
	verbose bool
}

// NewAudio creates an audio splitter writing its segments under workDir
func NewAudio(runner CommandRunner, workDir string, verbose bool) *Audio {
	return &Audio{runner: runner, workDir: workDir, verbose: verbose}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration asks ffprobe for the length of a recording in seconds
func (a *Audio) Duration(ctx context.Context, audioFile string) (float64, error) {
	out, err := a.runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		audioFile)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w\nOutput: %s", err, strings.TrimSpace(string(out)))
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", probe.Format.Duration, err)
	}
	return seconds, nil
}

// PartsFor returns how many pieces a file must be cut into to respect limit bytes each
func PartsFor(audioFile string, limit int64) (int, error) {
	info, err := os.Stat(audioFile)
	if err != nil {
		return 0, fmt.Errorf("getting audio file info: %w", err)
	}
	if limit <= 0 || info.Size() <= limit {
		return 1, nil
	}
	return int(math.Ceil(float64(info.Size()) / float64(limit))), nil
}

// planSegments divides duration seconds into at most parts windows; the last one ends at the recording's end
func planSegments(duration float64, parts int) []AudioSegment {
	total := int(math.Ceil(duration))
	if parts < 1 || total < 1 {
		return nil
	}
	length := int(math.Ceil(float64(total) / float64(parts)))

	segments := make([]AudioSegment, 0, parts)
	for start := 0; start < total && len(segments) < parts; start += length {
		segments = append(segments, AudioSegment{
			Index:  len(segments),
			Start:  start,
			Length: min(length, total-start),
		})
	}
	return segments
}

// Split cuts audioFile into parts segments of equal duration and returns their paths in order
func (a *Audio) Split(ctx context.Context, audioFile string, parts int) ([]string, error) {
	if err := EnsureDirs(a.workDir); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	duration, err := a.Duration(ctx, audioFile)
	if err != nil {
		return nil, fmt.Errorf("getting audio duration: %w", err)
	}

	segments := planSegments(duration, parts)
	if len(segments) == 0 {
		return nil, fmt.Errorf("audio file %s has no duration", filepath.Base(audioFile))
	}

	paths := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg.Path = filepath.Join(a.workDir, fmt.Sprintf("%s_chunk_%d.mp3", filepath.Base(audioFile), seg.Index))
		if err := a.Extract(ctx, audioFile, seg); err != nil {
			cleanupFiles(paths...)
			return nil, fmt.Errorf("creating chunk %d: %w", seg.Index, err)
		}
		paths = append(paths, seg.Path)
	}

	if a.verbose {
		fmt.Printf("Split %s into %d segments of up to %ds\n", filepath.Base(audioFile), len(paths), segments[0].Length)
	}
	return paths, nil
}

// Extract copies one segment of audioFile into seg.Path without re-encoding
func (a *Audio) Extract(ctx context.Context, audioFile string, seg AudioSegment) error {
	out, err := a.runner.Run(ctx, "ffmpeg",
		"-v", "error",
		"-ss", strconv.Itoa(seg.Start),
		"-t", strconv.Itoa(seg.Length),
		"-i", audioFile,
		"-c:a", "copy",
		"-y", seg.Path)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
