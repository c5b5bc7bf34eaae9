package animation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	seedanceModel = "seedance-1-0-lite-i2v-250428"

	seedanceInitialDelay = 10 * time.Second
	seedancePollInterval = 5 * time.Second
	seedanceMaxInterval  = 30 * time.Second
	seedanceTimeout      = 10 * time.Minute
)

// Seedance animates stills through the BytePlus Ark task API: submit a task,
// poll it, collect the hosted result URL.
type Seedance struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewSeedance(apiKey, baseURL string) *Seedance {
	return &Seedance{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *Seedance) Name() string { return "seedance" }

func (s *Seedance) Capabilities() Capabilities {
	return Capabilities{
		Durations:           []int{5, 10},
		Resolutions:         []string{"480p", "720p"},
		SupportsSeed:        true,
		SupportsCameraFixed: true,
	}
}

type seedanceContent struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	ImageURL *seedanceImageURL `json:"image_url,omitempty"`
}

type seedanceImageURL struct {
	URL string `json:"url"`
}

type seedanceSubmitRequest struct {
	Model   string            `json:"model"`
	Content []seedanceContent `json:"content"`
}

type seedanceTask struct {
	ID      string `json:"id"`
	Status  string `json:"status"` // queued | running | succeeded | failed | cancelled
	Content struct {
		VideoURL string `json:"video_url"`
	} `json:"content"`
	Seed  int64 `json:"seed"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Seedance) Animate(ctx context.Context, req Request) (*Result, error) {
	if err := s.Capabilities().Validate(req); err != nil {
		return nil, err
	}

	taskID, err := s.submit(ctx, req)
	if err != nil {
		return nil, err
	}

	log.Printf("[Seedance] Task %s submitted (duration=%ds resolution=%s)", taskID, req.DurationSec, req.Resolution)
	return s.poll(ctx, taskID)
}

// submit creates the generation task. Generation knobs ride in the text
// prompt as Ark's double-dash parameters.
func (s *Seedance) submit(ctx context.Context, req Request) (string, error) {
	prompt := fmt.Sprintf("%s --resolution %s --duration %d --camerafixed %t",
		req.MotionPrompt, req.Resolution, req.DurationSec, req.CameraFixed)
	if req.Seed != 0 {
		prompt += fmt.Sprintf(" --seed %d", req.Seed)
	}

	body := seedanceSubmitRequest{
		Model: seedanceModel,
		Content: []seedanceContent{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &seedanceImageURL{URL: req.SourceImageURL}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal seedance request: %w", err)
	}

	var task seedanceTask
	if err := s.doJSON(ctx, "POST", s.baseURL+"/contents/generations/tasks", payload, &task); err != nil {
		return "", err
	}
	if task.ID == "" {
		return "", fmt.Errorf("seedance returned no task id")
	}

	return task.ID, nil
}

// poll waits for the task with a growing interval and a hard deadline.
func (s *Seedance) poll(ctx context.Context, taskID string) (*Result, error) {
	pollCtx, cancel := context.WithTimeout(ctx, seedanceTimeout)
	defer cancel()

	select {
	case <-pollCtx.Done():
		return nil, fmt.Errorf("seedance task %s timed out: %w", taskID, pollCtx.Err())
	case <-time.After(seedanceInitialDelay):
	}

	interval := seedancePollInterval
	for {
		var task seedanceTask
		err := s.doJSON(pollCtx, "GET", fmt.Sprintf("%s/contents/generations/tasks/%s", s.baseURL, taskID), nil, &task)
		if err != nil {
			return nil, err
		}

		switch task.Status {
		case "succeeded":
			if task.Content.VideoURL == "" {
				return nil, fmt.Errorf("seedance task %s succeeded without a video URL", taskID)
			}
			log.Printf("[Seedance] Task %s succeeded (seed=%d)", taskID, task.Seed)
			return &Result{VideoURL: task.Content.VideoURL, Seed: task.Seed}, nil

		case "failed", "cancelled":
			msg := task.Status
			if task.Error != nil {
				msg = fmt.Sprintf("%s: %s", task.Error.Code, task.Error.Message)
				if isImageRejection(task.Error.Code, task.Error.Message) {
					return nil, fmt.Errorf("%w: %s", ErrInvalidImage, task.Error.Message)
				}
			}
			return nil, fmt.Errorf("seedance task %s failed: %s", taskID, msg)

		case "queued", "running", "":
			// keep polling
		default:
			log.Printf("[Seedance] Task %s in unexpected status %q, continuing to poll", taskID, task.Status)
		}

		select {
		case <-pollCtx.Done():
			return nil, fmt.Errorf("seedance task %s timed out: %w", taskID, pollCtx.Err())
		case <-time.After(interval):
		}

		// Back off polling as the task ages
		interval = time.Duration(float64(interval) * 1.5)
		if interval > seedanceMaxInterval {
			interval = seedanceMaxInterval
		}
	}
}

func (s *Seedance) doJSON(ctx context.Context, method, url string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create seedance request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("seedance request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read seedance response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, truncateBody(respBody))
	case http.StatusPaymentRequired, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, truncateBody(respBody))
	case http.StatusBadRequest:
		if isImageRejection("", string(respBody)) {
			return fmt.Errorf("%w: %s", ErrInvalidImage, truncateBody(respBody))
		}
		return fmt.Errorf("seedance returned status %d: %s", resp.StatusCode, truncateBody(respBody))
	default:
		return fmt.Errorf("seedance returned status %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse seedance response: %w", err)
	}
	return nil
}

func isImageRejection(code, message string) bool {
	combined := strings.ToLower(code + " " + message)
	return strings.Contains(combined, "image") &&
		(strings.Contains(combined, "invalid") ||
			strings.Contains(combined, "unsupported") ||
			strings.Contains(combined, "sensitive") ||
			strings.Contains(combined, "reject"))
}

func truncateBody(b []byte) string {
	const max = 300
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
