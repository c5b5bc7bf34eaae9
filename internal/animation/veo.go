package animation

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	veoInitialDelay = 15 * time.Second
	veoPollInterval = 10 * time.Second
	veoTimeout      = 10 * time.Minute
)

// Veo animates stills through Google's video generation models via the genai
// SDK long-running-operation flow.
type Veo struct {
	client     *genai.Client
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewVeo(ctx context.Context, apiKey, model string) (*Veo, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create veo client: %w", err)
	}

	return &Veo{
		client:     client,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (v *Veo) Name() string { return "veo" }

func (v *Veo) Capabilities() Capabilities {
	return Capabilities{
		Durations:   []int{4, 6, 8},
		Resolutions: []string{"720p", "1080p"},
		// Seeds steer generation but the API does not echo the effective
		// value back, so results report seed 0.
		SupportsSeed:        true,
		SupportsCameraFixed: false,
	}
}

func (v *Veo) Animate(ctx context.Context, req Request) (*Result, error) {
	if err := v.Capabilities().Validate(req); err != nil {
		return nil, err
	}

	imageBytes, err := v.fetchSourceImage(ctx, req.SourceImageURL)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateVideosConfig{
		NumberOfVideos:  1,
		DurationSeconds: genai.Ptr(int32(req.DurationSec)),
	}
	if req.Resolution != "" {
		config.Resolution = req.Resolution
	}
	if req.Seed != 0 {
		config.Seed = genai.Ptr(int32(req.Seed))
	}

	image := &genai.Image{
		ImageBytes: imageBytes,
		MIMEType:   "image/png",
	}

	op, err := v.client.Models.GenerateVideos(ctx, v.model, req.MotionPrompt, image, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start veo generation: %w", err)
	}

	log.Printf("[Veo] Operation %s started (duration=%ds resolution=%s)", op.Name, req.DurationSec, req.Resolution)

	pollCtx, cancel := context.WithTimeout(ctx, veoTimeout)
	defer cancel()

	select {
	case <-pollCtx.Done():
		return nil, fmt.Errorf("veo operation timed out: %w", pollCtx.Err())
	case <-time.After(veoInitialDelay):
	}

	for !op.Done {
		select {
		case <-pollCtx.Done():
			return nil, fmt.Errorf("veo operation timed out: %w", pollCtx.Err())
		case <-time.After(veoPollInterval):
		}

		op, err = v.client.Operations.GetVideosOperation(pollCtx, op, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to poll veo operation: %w", err)
		}
	}

	if op.Error != nil {
		return nil, fmt.Errorf("veo generation failed: %v", op.Error)
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return nil, fmt.Errorf("veo generation returned no videos")
	}

	video := op.Response.GeneratedVideos[0].Video
	if video == nil || video.URI == "" {
		return nil, fmt.Errorf("veo generation returned no video URI")
	}

	// Result files require the API key as a query parameter for download
	downloadURL := appendKey(video.URI, v.apiKey)

	log.Printf("[Veo] Operation %s finished", op.Name)
	return &Result{VideoURL: downloadURL, Seed: 0}, nil
}

func (v *Veo) fetchSourceImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image fetch: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read source image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty source image", ErrInvalidImage)
	}

	return data, nil
}

func appendKey(uri, key string) string {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + "key=" + key
}
