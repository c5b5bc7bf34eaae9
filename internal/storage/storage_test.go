package storage

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestExtractRefStripsSignature(t *testing.T) {
	signed := "https://sellvid-artifacts.s3.us-east-1.amazonaws.com/items/abc/output_1080x1920.mp4?X-Amz-Algorithm=AWS4-HMAC-SHA256&X-Amz-Expires=900&X-Amz-Signature=deadbeef"
	assert.Equal(t, "items/abc/output_1080x1920.mp4", ExtractRef("sellvid-artifacts", signed))
}

func TestExtractRefPathStyle(t *testing.T) {
	// MinIO-style endpoints put the bucket in the path
	signed := "https://minio.internal:9000/sellvid-artifacts/scenes/xyz/animation_1.mp4?X-Amz-Signature=cafe"
	assert.Equal(t, "scenes/xyz/animation_1.mp4", ExtractRef("sellvid-artifacts", signed))
}

func TestExtractRefBareKey(t *testing.T) {
	assert.Equal(t, "items/abc/scene_0.png", ExtractRef("sellvid-artifacts", "items/abc/scene_0.png"))
	assert.Equal(t, "items/abc/scene_0.png", ExtractRef("sellvid-artifacts", "/items/abc/scene_0.png"))
}

func TestExtractRefBareKeyWithQuery(t *testing.T) {
	// Even a bare key loses any query noise
	assert.Equal(t, "items/abc/scene_0.png", ExtractRef("sellvid-artifacts", "items/abc/scene_0.png?v=2"))
}

func TestExtractRefEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractRef("sellvid-artifacts", ""))
	assert.Equal(t, "", ExtractRef("sellvid-artifacts", "   "))
}

func TestExtractRefStripsLeadingBucketSegment(t *testing.T) {
	// A leading path segment equal to the bucket name is treated as the
	// path-style bucket prefix and removed
	signed := "https://sellvid-artifacts.s3.amazonaws.com/sellvid-artifacts/nested.mp4"
	assert.Equal(t, "nested.mp4", ExtractRef("sellvid-artifacts", signed))
}

func TestIsRetryableStatus(t *testing.T) {
	retryable := []int{
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
	for _, status := range retryable {
		assert.True(t, isRetryableStatus(status), "status %d should be retryable", status)
	}

	assert.False(t, isRetryableStatus(http.StatusBadRequest))
	assert.False(t, isRetryableStatus(http.StatusUnauthorized))
	assert.False(t, isRetryableStatus(http.StatusUnprocessableEntity))
}

func TestSceneAnimationKeyUnique(t *testing.T) {
	id := uuid.New()
	a := SceneAnimationKey(id)
	b := SceneAnimationKey(id)
	assert.NotEqual(t, a, b, "regenerated animations must not overwrite prior artifacts")
}

func TestSceneImageKeyUnique(t *testing.T) {
	id := uuid.New()
	a := SceneImageKey(id, 0)
	b := SceneImageKey(id, 0)
	assert.NotEqual(t, a, b, "regenerated stills must not overwrite prior artifacts")
}
