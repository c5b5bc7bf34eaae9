package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	// Download timeout per attempt — generous for multi-MB video artifacts
	downloadTimeout = 120 * time.Second

	// Retry configuration
	maxRetries     = 4
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second
)

// Storage wraps an S3-compatible object store. Durable records hold logical
// object keys ("refs"); time-limited signed URLs are derived on demand and
// never persisted.
type Storage struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	httpClient *http.Client
	Bucket     string
	presignTTL time.Duration
}

type Options struct {
	Endpoint   string // Empty = AWS default resolution
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	PresignTTL time.Duration
}

func New(ctx context.Context, opts Options) (*Storage, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := opts.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		httpClient: &http.Client{
			Timeout: downloadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Bucket:     opts.Bucket,
		presignTTL: ttl,
	}, nil
}

// PresignGet returns a short-lived read URL for a logical ref. forDownload
// adds a Content-Disposition so browsers save rather than play the file.
func (s *Storage) PresignGet(ctx context.Context, ref string, forDownload bool) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(ref),
	}
	if forDownload {
		disposition := fmt.Sprintf("attachment; filename=%q", path.Base(ref))
		input.ResponseContentDisposition = aws.String(disposition)
	}

	req, err := s.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign read for %s: %w", ref, err)
	}
	return req.URL, nil
}

// PresignPut returns a short-lived write URL for a logical ref.
func (s *Storage) PresignPut(ctx context.Context, ref, contentType string) (string, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(ref),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign write for %s: %w", ref, err)
	}
	return req.URL, nil
}

// Upload writes an artifact with retries and exponential backoff.
func (s *Storage) Upload(ctx context.Context, ref string, data []byte, contentType string) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			log.Printf("[Storage] Upload retry %d/%d for %s (waiting %v)...", attempt, maxRetries, ref, delay)

			select {
			case <-ctx.Done():
				return fmt.Errorf("upload cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.Bucket),
			Key:         aws.String(ref),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err == nil {
			if attempt > 0 {
				log.Printf("[Storage] Upload succeeded on attempt %d for %s", attempt+1, ref)
			}
			return nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return fmt.Errorf("upload failed: %w", err)
		}
		log.Printf("[Storage] Upload attempt %d failed (retryable): %v", attempt+1, err)
	}

	return fmt.Errorf("upload failed after %d attempts: %w", maxRetries+1, lastErr)
}

// Download fetches an artifact by logical ref. Each attempt gets a freshly
// presigned URL, so an expired signature from a previous attempt is never
// fatal — expiry is a retryable condition, not a permanent failure.
func (s *Storage) Download(ctx context.Context, ref string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			log.Printf("[Storage] Download retry %d/%d for %s (waiting %v)...", attempt, maxRetries, ref, delay)

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("download cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		signedURL, err := s.PresignGet(ctx, ref, false)
		if err != nil {
			return nil, err
		}

		data, status, err := s.fetchOnce(ctx, signedURL)
		if err == nil {
			return data, nil
		}

		lastErr = err
		if status != 0 && !isRetryableStatus(status) {
			return nil, lastErr
		}
		log.Printf("[Storage] Download attempt %d for %s failed: %v", attempt+1, ref, err)
	}

	return nil, fmt.Errorf("download failed after %d attempts: %w", maxRetries+1, lastErr)
}

// FetchURL downloads an external URL (e.g. a provider's result clip or a
// merchant's product image) with the same retry policy as Download.
func (s *Storage) FetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch cancelled: %w", ctx.Err())
			case <-time.After(retryDelay(attempt)):
			}
		}

		data, status, err := s.fetchOnce(ctx, rawURL)
		if err == nil {
			return data, nil
		}

		lastErr = err
		if status != 0 && !isRetryableStatus(status) {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (s *Storage) fetchOnce(ctx context.Context, rawURL string) ([]byte, int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, "GET", rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, fmt.Errorf("fetch returned status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read body: %w", err)
	}
	return data, 0, nil
}

// Delete removes an artifact.
func (s *Storage) Delete(ctx context.Context, ref string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", ref, err)
	}
	return nil
}

// ExtractRef reduces any stored or signed URL to the logical object key.
// Signing query parameters are always stripped — only the key is durable.
// Bare keys pass through unchanged.
func ExtractRef(bucket, stored string) string {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return ""
	}

	// Strip query parameters (signatures, expiries) unconditionally
	if i := strings.IndexByte(stored, '?'); i >= 0 {
		stored = stored[:i]
	}

	u, err := url.Parse(stored)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(stored, "/")
	}

	key := strings.TrimPrefix(u.Path, "/")

	// Path-style URLs carry the bucket as the first segment
	if bucket != "" && strings.HasPrefix(key, bucket+"/") {
		key = strings.TrimPrefix(key, bucket+"/")
	}

	return key
}

// ExtractRef is the method form bound to this gateway's bucket.
func (s *Storage) ExtractRef(stored string) string {
	return ExtractRef(s.Bucket, stored)
}

// ---------------------------------------------------------------------------
// Object key builders — the stable naming convention for all artifacts
// ---------------------------------------------------------------------------

func BrandOverlayKey(batchID uuid.UUID) string {
	return fmt.Sprintf("batches/%s/brand_overlay.png", batchID)
}

// SceneImageKey includes a fresh UUID so regenerated stills never overwrite
// the image a history entry's source ref points at.
func SceneImageKey(itemID uuid.UUID, sceneIndex int) string {
	return fmt.Sprintf("items/%s/scene_%d_%s.png", itemID, sceneIndex, uuid.New())
}

// SceneAnimationKey includes a fresh UUID so regenerated animations never
// overwrite the artifact a history entry points at.
func SceneAnimationKey(sceneID uuid.UUID) string {
	return fmt.Sprintf("scenes/%s/animation_%s.mp4", sceneID, uuid.New())
}

func OutputKey(itemID uuid.UUID, format string) string {
	return fmt.Sprintf("items/%s/output_%s.mp4", itemID, format)
}

// retryDelay calculates exponential backoff with jitter: base * 2^attempt + random jitter
func retryDelay(attempt int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	// Add 0–25% jitter to avoid thundering herd
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryableError checks if a network-level error is worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "SlowDown") ||
		strings.Contains(errStr, "InternalError")
}

// isRetryableStatus checks if an HTTP status code is worth retrying.
// 403/404 from a signed URL usually mean the signature expired mid-flight,
// which a fresh presign resolves.
func isRetryableStatus(status int) bool {
	return status == http.StatusForbidden || // 403 — expired signature
		status == http.StatusNotFound || // 404 — some stores return this for expired signatures
		status == http.StatusTooManyRequests || // 429
		status == http.StatusRequestTimeout || // 408
		status == http.StatusBadGateway || // 502
		status == http.StatusServiceUnavailable || // 503
		status == http.StatusGatewayTimeout // 504
}
