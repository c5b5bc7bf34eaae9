package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusGenerating ItemStatus = "generating"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)

type AnimationStatus string

const (
	AnimationStatusPending   AnimationStatus = "pending"
	AnimationStatusAnimating AnimationStatus = "animating"
	AnimationStatusCompleted AnimationStatus = "completed"
	AnimationStatusFailed    AnimationStatus = "failed"
)

type RenderStatus string

const (
	RenderStatusPending   RenderStatus = "pending"
	RenderStatusRendering RenderStatus = "rendering"
	RenderStatusCompleted RenderStatus = "completed"
	RenderStatusFailed    RenderStatus = "failed"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// StringList is a JSONB-backed list column (e.g. requested output formats).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// ---------------------------------------------------------------------------
// Animation history
// ---------------------------------------------------------------------------

// MaxAnimationHistory caps the per-scene history at the most recent entries.
const MaxAnimationHistory = 50

// AnimationAttempt is one historical animation for a scene.
type AnimationAttempt struct {
	VideoRef       string    `json:"video_ref"`
	Prompt         string    `json:"prompt"`
	Provider       string    `json:"provider"`
	SourceImageRef string    `json:"source_image_ref"`
	Seed           int64     `json:"seed"`
	CreatedAt      time.Time `json:"created_at"`
}

// AnimationHistory is the append-only, oldest-first list of a scene's
// animation attempts. All mutation goes through Push — call sites never
// concatenate the slice themselves.
type AnimationHistory []AnimationAttempt

func (h AnimationHistory) Value() (driver.Value, error) {
	if h == nil {
		return json.Marshal(AnimationHistory{})
	}
	return json.Marshal(h)
}

func (h *AnimationHistory) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, h)
}

// Push appends next to the history and returns the new list.
//
// If the history is empty and the scene already has a current animation
// (current != nil), that animation is first captured as the original entry,
// so the pre-existing clip is never lost to an overwrite. The result is
// capped at MaxAnimationHistory by dropping the oldest entries.
func (h AnimationHistory) Push(current *AnimationAttempt, next AnimationAttempt) AnimationHistory {
	out := h
	if len(out) == 0 && current != nil {
		out = append(out, *current)
	}
	out = append(out, next)
	if len(out) > MaxAnimationHistory {
		out = out[len(out)-MaxAnimationHistory:]
	}
	return out
}

// ---------------------------------------------------------------------------
// Models
// ---------------------------------------------------------------------------

type User struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"external_id"` // Identity from the upstream auth service
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StylePreset is a visual style applied to scene image prompts. The Directive
// text may embed inline color tokens ("HEX/rrggbb" or "HEX#rrggbb").
type StylePreset struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Directive *string   `json:"directive,omitempty"`
	StyleJSON JSONB     `json:"style_json,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BatchJob is a named collection of VideoItems sharing defaults.
// Batches are never auto-deleted.
type BatchJob struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	Name            string     `json:"name"`
	Formats         StringList `json:"formats"`      // Target pixel formats, e.g. ["1080x1920","1080x1080"]
	DurationSec     int        `json:"duration_sec"` // Default animation duration per scene
	SceneCount      int        `json:"scene_count"`  // Default scenes per item
	Provider        string     `json:"provider"`     // Default animation provider
	StylePresetID   *uuid.UUID `json:"style_preset_id,omitempty"`
	BrandOverlayRef *string    `json:"brand_overlay_ref,omitempty"` // Logical storage ref of the brand overlay PNG
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// VideoItem is one output video corresponding to one input row.
type VideoItem struct {
	ID                 uuid.UUID  `json:"id"`
	BatchID            uuid.UUID  `json:"batch_id"`
	RowIndex           int        `json:"row_index"`
	TextContent        string     `json:"text_content"`
	ProductImageURL    *string    `json:"product_image_url,omitempty"`
	StyleOverride      *string    `json:"style_override,omitempty"`
	FormatsOverride    StringList `json:"formats_override,omitempty"`
	ProviderOverride   *string    `json:"provider_override,omitempty"`
	DurationOverride   *int       `json:"duration_override,omitempty"`
	SceneCountOverride *int       `json:"scene_count_override,omitempty"`
	Status             ItemStatus `json:"status"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Scene is an ordered visual beat within a VideoItem. SceneIndex is unique
// within the item; exactly one current animation exists at any time
// (AnimationRef), with prior attempts kept in History.
type Scene struct {
	ID              uuid.UUID        `json:"id"`
	ItemID          uuid.UUID        `json:"item_id"`
	SceneIndex      int              `json:"scene_index"`
	Prompt          string           `json:"prompt"`
	MotionPrompt    string           `json:"motion_prompt"`
	ImageRef        *string          `json:"image_ref,omitempty"`
	AnimationStatus AnimationStatus  `json:"animation_status"`
	AnimationRef    *string          `json:"animation_ref,omitempty"`
	AnimationPrompt *string          `json:"animation_prompt,omitempty"`
	Provider        *string          `json:"provider,omitempty"`
	Seed            *int64           `json:"seed,omitempty"`
	History         AnimationHistory `json:"animation_history"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// CurrentAttempt returns the scene's current animation as a history entry,
// or nil when the scene has not been animated yet.
func (s *Scene) CurrentAttempt() *AnimationAttempt {
	if s.AnimationRef == nil || *s.AnimationRef == "" {
		return nil
	}
	attempt := AnimationAttempt{
		VideoRef:  *s.AnimationRef,
		CreatedAt: s.UpdatedAt,
	}
	if s.AnimationPrompt != nil {
		attempt.Prompt = *s.AnimationPrompt
	}
	if s.Provider != nil {
		attempt.Provider = *s.Provider
	}
	if s.ImageRef != nil {
		attempt.SourceImageRef = *s.ImageRef
	}
	if s.Seed != nil {
		attempt.Seed = *s.Seed
	}
	return &attempt
}

// RenderedOutput is one finished video for a VideoItem in one target pixel
// format. Unique per (item, format); each format has an independent lifecycle.
type RenderedOutput struct {
	ID           uuid.UUID    `json:"id"`
	ItemID       uuid.UUID    `json:"item_id"`
	Format       string       `json:"format"` // "WxH", e.g. "1080x1920"
	Status       RenderStatus `json:"status"`
	ArtifactRef  *string      `json:"artifact_ref,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// ParseFormat splits a "WxH" format identifier into pixel dimensions.
func ParseFormat(format string) (width, height int, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(format)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid format %q: expected WxH", format)
	}
	width, err = strconv.Atoi(parts[0])
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid format %q: bad width", format)
	}
	height, err = strconv.Atoi(parts[1])
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid format %q: bad height", format)
	}
	return width, height, nil
}

// EffectiveFormats resolves an item's requested formats against batch defaults.
func (i *VideoItem) EffectiveFormats(batch *BatchJob) []string {
	if len(i.FormatsOverride) > 0 {
		return i.FormatsOverride
	}
	return batch.Formats
}

// EffectiveProvider resolves an item's animation provider against batch defaults.
func (i *VideoItem) EffectiveProvider(batch *BatchJob) string {
	if i.ProviderOverride != nil && *i.ProviderOverride != "" {
		return *i.ProviderOverride
	}
	return batch.Provider
}

// EffectiveDuration resolves an item's per-scene animation duration.
func (i *VideoItem) EffectiveDuration(batch *BatchJob) int {
	if i.DurationOverride != nil && *i.DurationOverride > 0 {
		return *i.DurationOverride
	}
	return batch.DurationSec
}

// EffectiveSceneCount resolves how many scenes the item should have.
func (i *VideoItem) EffectiveSceneCount(batch *BatchJob) int {
	if i.SceneCountOverride != nil && *i.SceneCountOverride > 0 {
		return *i.SceneCountOverride
	}
	return batch.SceneCount
}

// ---------------------------------------------------------------------------
// DTOs for API responses
// ---------------------------------------------------------------------------

type SceneResponse struct {
	Scene
	ImageURL     *string `json:"image_url,omitempty"`
	AnimationURL *string `json:"animation_url,omitempty"`
}

type OutputResponse struct {
	RenderedOutput
	VideoURL *string `json:"video_url,omitempty"`
}

type ItemResponse struct {
	VideoItem
	Scenes  []SceneResponse  `json:"scenes,omitempty"`
	Outputs []OutputResponse `json:"outputs,omitempty"`
}

// BatchSummary is a lightweight DTO for the batch list endpoint.
type BatchSummary struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	ItemCount      int       `json:"item_count"`
	CompletedCount int       `json:"completed_count"`
	FailedCount    int       `json:"failed_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type BatchResponse struct {
	BatchJob
	Items []ItemResponse `json:"items,omitempty"`
}

type ListBatchesResponse struct {
	Batches []BatchSummary `json:"batches"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// CreateBatchRequest imports a parsed table as a new batch. Rows carries the
// raw 2-D cell grid (header row first); CSV is the alternative raw-file entry
// point. Mapping names the columns either way.
type CreateBatchRequest struct {
	Name            string            `json:"name"`
	Rows            [][]string        `json:"rows,omitempty"`
	CSV             *string           `json:"csv,omitempty"`
	Mapping         map[string]string `json:"mapping"`
	Formats         []string          `json:"formats,omitempty"`      // Default: ["1080x1920"]
	DurationSec     *int              `json:"duration_sec,omitempty"` // Default: 5
	SceneCount      *int              `json:"scene_count,omitempty"`  // Default: 3
	Provider        *string           `json:"provider,omitempty"`     // Defaults to the registry default
	StylePresetSlug *string           `json:"style_preset_slug,omitempty"`
	BrandOverlayURL *string           `json:"brand_overlay_url,omitempty"`
}

type CreateBatchResponse struct {
	BatchID   uuid.UUID `json:"batch_id"`
	ItemCount int       `json:"item_count"`
}

type RegenerateSceneRequest struct {
	Provider *string `json:"provider,omitempty"`
	Prompt   *string `json:"prompt,omitempty"`
}
