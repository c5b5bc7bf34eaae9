package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const ffmpegTimeout = 5 * time.Minute

// FFmpeg wraps the ffmpeg/ffprobe binaries for the rendering pass. All work
// happens in per-job scratch directories under TempDir.
type FFmpeg struct {
	TempDir string
}

func NewFFmpeg(tempDir string) (*FFmpeg, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &FFmpeg{TempDir: tempDir}, nil
}

// CreateWorkDir allocates a scratch directory for one render job.
func (f *FFmpeg) CreateWorkDir() (string, error) {
	dir := filepath.Join(f.TempDir, uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	return dir, nil
}

// Cleanup removes a scratch directory. Errors are logged, not returned; a
// leaked temp dir never fails a render.
func (f *FFmpeg) Cleanup(dir string) {
	if dir == "" || !strings.HasPrefix(dir, f.TempDir) {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("[FFmpeg] Failed to clean up %s: %v", dir, err)
	}
}

// WriteTempFile drops bytes into a work dir with a given name.
func (f *FFmpeg) WriteTempFile(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	return path, nil
}

// NormalizeClip rescales a clip to exactly width x height: scale to cover,
// center-crop the overflow, pin 30fps and yuv420p so the concat demuxer never
// sees mismatched streams.
func (f *FFmpeg) NormalizeClip(ctx context.Context, inputPath, outputPath string, width, height int) error {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,fps=30,format=yuv420p",
		width, height, width, height,
	)

	args := []string{
		"-y",
		"-i", inputPath,
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "20",
		"-an",
		outputPath,
	}

	return f.run(ctx, args)
}

// ApplyOverlay stamps a brand overlay (logo, frame) on top of a clip. The
// overlay is scaled to the clip's width and anchored top-left.
func (f *FFmpeg) ApplyOverlay(ctx context.Context, inputPath, overlayPath, outputPath string, width, height int) error {
	filter := fmt.Sprintf(
		"[1:v]scale=%d:%d:force_original_aspect_ratio=decrease[ovl];[0:v][ovl]overlay=(W-w)/2:(H-h)/2",
		width, height,
	)

	args := []string{
		"-y",
		"-i", inputPath,
		"-i", overlayPath,
		"-filter_complex", filter,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "20",
		"-an",
		outputPath,
	}

	return f.run(ctx, args)
}

// ConcatClips stitches normalized clips in order using the concat demuxer.
// All inputs must share codec, resolution and framerate (NormalizeClip
// guarantees this), so streams are copied without re-encoding.
func (f *FFmpeg) ConcatClips(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")
	var list strings.Builder
	for _, p := range clipPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve clip path: %w", err)
		}
		fmt.Fprintf(&list, "file '%s'\n", abs)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}

	return f.run(ctx, args)
}

// ProbeDuration returns a media file's duration in seconds via ffprobe.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe duration %q: %w", string(out), err)
	}

	return duration, nil
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "ffmpeg", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w (stderr: %s)", err, truncate(stderr.String(), 500))
	}

	return nil
}
