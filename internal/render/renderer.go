package render

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sellvid/backend/internal/models"
	"github.com/sellvid/backend/internal/services"
)

// ObjectStore is the slice of the asset gateway the renderer needs.
type ObjectStore interface {
	Download(ctx context.Context, ref string) ([]byte, error)
	Upload(ctx context.Context, ref string, data []byte, contentType string) error
}

// Job describes one item-format render: ordered scene clips in, one finished
// deliverable out.
type Job struct {
	SceneRefs  []string // Animation refs in scene order
	Format     string   // "WIDTHxHEIGHT"
	OverlayRef string   // Optional brand overlay, empty = none
	OutputRef  string   // Destination key for the deliverable
}

// Renderer assembles scene clips into a deliverable video for one format.
type Renderer struct {
	store  ObjectStore
	ffmpeg *services.FFmpeg
}

func New(store ObjectStore, ffmpeg *services.FFmpeg) *Renderer {
	return &Renderer{store: store, ffmpeg: ffmpeg}
}

// Render downloads every scene clip fresh, normalizes each to the target
// format, applies the brand overlay, concatenates, and uploads the result.
// Returns the artifact ref on success. One format's failure never touches
// another format's output; callers run formats independently.
func (r *Renderer) Render(ctx context.Context, job Job) (string, error) {
	if len(job.SceneRefs) == 0 {
		return "", fmt.Errorf("no scene clips to render")
	}

	width, height, err := models.ParseFormat(job.Format)
	if err != nil {
		return "", err
	}

	workDir, err := r.ffmpeg.CreateWorkDir()
	if err != nil {
		return "", err
	}
	defer r.ffmpeg.Cleanup(workDir)

	started := time.Now()
	log.Printf("[Render] Rendering %d scenes to %s", len(job.SceneRefs), job.Format)

	var overlayPath string
	if job.OverlayRef != "" {
		overlayData, err := r.store.Download(ctx, job.OverlayRef)
		if err != nil {
			return "", fmt.Errorf("failed to download brand overlay: %w", err)
		}
		overlayPath, err = r.ffmpeg.WriteTempFile(workDir, "overlay.png", overlayData)
		if err != nil {
			return "", err
		}
	}

	// Download and normalize each scene clip in order
	normalized := make([]string, 0, len(job.SceneRefs))
	for i, ref := range job.SceneRefs {
		clipData, err := r.store.Download(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("failed to download scene %d clip: %w", i, err)
		}

		rawPath, err := r.ffmpeg.WriteTempFile(workDir, fmt.Sprintf("scene_%d_raw.mp4", i), clipData)
		if err != nil {
			return "", err
		}

		normPath := fmt.Sprintf("%s/scene_%d_%s.mp4", workDir, i, job.Format)
		if err := r.ffmpeg.NormalizeClip(ctx, rawPath, normPath, width, height); err != nil {
			return "", fmt.Errorf("failed to normalize scene %d: %w", i, err)
		}

		if overlayPath != "" {
			brandedPath := fmt.Sprintf("%s/scene_%d_%s_branded.mp4", workDir, i, job.Format)
			if err := r.ffmpeg.ApplyOverlay(ctx, normPath, overlayPath, brandedPath, width, height); err != nil {
				return "", fmt.Errorf("failed to apply overlay to scene %d: %w", i, err)
			}
			normPath = brandedPath
		}

		normalized = append(normalized, normPath)
	}

	finalPath := fmt.Sprintf("%s/final_%s.mp4", workDir, job.Format)
	if err := r.ffmpeg.ConcatClips(ctx, normalized, finalPath); err != nil {
		return "", fmt.Errorf("failed to concatenate scenes: %w", err)
	}

	if duration, err := r.ffmpeg.ProbeDuration(ctx, finalPath); err == nil {
		log.Printf("[Render] Final video is %.1fs", duration)
	}

	finalData, err := readFile(finalPath)
	if err != nil {
		return "", err
	}

	if err := r.store.Upload(ctx, job.OutputRef, finalData, "video/mp4"); err != nil {
		return "", fmt.Errorf("failed to upload deliverable: %w", err)
	}

	log.Printf("[Render] Finished %s in %v", job.Format, time.Since(started).Round(time.Second))
	return job.OutputRef, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered file: %w", err)
	}
	return data, nil
}
