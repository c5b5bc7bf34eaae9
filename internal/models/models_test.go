package models

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"color_palette": []string{"red", "blue"},
		"mood":          "clean",
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	// Verify it's valid JSON
	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["mood"] != "clean" {
		t.Errorf("expected mood=clean, got %v", result["mood"])
	}
}

func TestStringListRoundTrip(t *testing.T) {
	l := StringList{"1080x1920", "1080x1080"}

	data, err := l.Value()
	if err != nil {
		t.Fatalf("failed to marshal StringList: %v", err)
	}

	var out StringList
	if err := out.Scan(data); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if len(out) != 2 || out[0] != "1080x1920" || out[1] != "1080x1080" {
		t.Errorf("unexpected round trip result: %v", out)
	}
}

func TestHistoryPushAppendsInOrder(t *testing.T) {
	var h AnimationHistory

	for i := 0; i < 5; i++ {
		h = h.Push(nil, AnimationAttempt{
			VideoRef:  fmt.Sprintf("scenes/abc/animation_%d.mp4", i),
			Provider:  "seedance",
			CreatedAt: time.Now(),
		})
	}

	if len(h) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(h))
	}

	// Oldest-first insertion order
	for i, attempt := range h {
		want := fmt.Sprintf("scenes/abc/animation_%d.mp4", i)
		if attempt.VideoRef != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, attempt.VideoRef)
		}
	}
}

func TestHistoryPushBackfillsCurrent(t *testing.T) {
	var h AnimationHistory

	current := &AnimationAttempt{VideoRef: "scenes/abc/original.mp4", Provider: "seedance"}
	h = h.Push(current, AnimationAttempt{VideoRef: "scenes/abc/regen_1.mp4", Provider: "veo"})

	if len(h) != 2 {
		t.Fatalf("expected original + new = 2 entries, got %d", len(h))
	}
	if h[0].VideoRef != "scenes/abc/original.mp4" {
		t.Errorf("expected original entry first, got %s", h[0].VideoRef)
	}
	if h[1].VideoRef != "scenes/abc/regen_1.mp4" {
		t.Errorf("expected new entry last, got %s", h[1].VideoRef)
	}

	// Backfill only fires on the first push — current must not be re-inserted
	h = h.Push(current, AnimationAttempt{VideoRef: "scenes/abc/regen_2.mp4"})
	if len(h) != 3 {
		t.Fatalf("expected 3 entries after second push, got %d", len(h))
	}
}

func TestHistoryPushCap(t *testing.T) {
	var h AnimationHistory

	total := MaxAnimationHistory + 10
	for i := 0; i < total; i++ {
		h = h.Push(nil, AnimationAttempt{VideoRef: fmt.Sprintf("ref_%d", i)})
	}

	if len(h) != MaxAnimationHistory {
		t.Fatalf("expected cap at %d, got %d", MaxAnimationHistory, len(h))
	}

	// The most recent entries survive, oldest dropped
	if h[0].VideoRef != fmt.Sprintf("ref_%d", total-MaxAnimationHistory) {
		t.Errorf("unexpected oldest surviving entry: %s", h[0].VideoRef)
	}
	if h[len(h)-1].VideoRef != fmt.Sprintf("ref_%d", total-1) {
		t.Errorf("unexpected newest entry: %s", h[len(h)-1].VideoRef)
	}
}

func TestSceneCurrentAttempt(t *testing.T) {
	s := &Scene{}
	if s.CurrentAttempt() != nil {
		t.Error("expected nil attempt for scene without animation")
	}

	ref := "scenes/abc/animation.mp4"
	prompt := "slow dolly in"
	provider := "seedance"
	seed := int64(42)
	s.AnimationRef = &ref
	s.AnimationPrompt = &prompt
	s.Provider = &provider
	s.Seed = &seed

	attempt := s.CurrentAttempt()
	if attempt == nil {
		t.Fatal("expected current attempt")
	}
	if attempt.VideoRef != ref || attempt.Prompt != prompt || attempt.Provider != provider || attempt.Seed != seed {
		t.Errorf("attempt fields not carried over: %+v", attempt)
	}
}

func TestParseFormat(t *testing.T) {
	w, h, err := ParseFormat("1080x1920")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 1080 || h != 1920 {
		t.Errorf("expected 1080x1920, got %dx%d", w, h)
	}

	// Uppercase X and surrounding whitespace are tolerated
	if _, _, err := ParseFormat(" 720X1280 "); err != nil {
		t.Errorf("expected uppercase X to parse, got %v", err)
	}

	for _, bad := range []string{"", "1080", "0x1920", "-1x5", "ax b", "1080x1920x3"} {
		if _, _, err := ParseFormat(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestItemStatus(t *testing.T) {
	statuses := []ItemStatus{
		ItemStatusPending,
		ItemStatusGenerating,
		ItemStatusCompleted,
		ItemStatusFailed,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}

func TestEffectiveOverrides(t *testing.T) {
	batch := &BatchJob{
		Formats:     StringList{"1080x1920"},
		DurationSec: 5,
		SceneCount:  3,
		Provider:    "seedance",
	}

	item := &VideoItem{}
	if got := item.EffectiveProvider(batch); got != "seedance" {
		t.Errorf("expected batch default provider, got %s", got)
	}
	if got := item.EffectiveSceneCount(batch); got != 3 {
		t.Errorf("expected batch default scene count, got %d", got)
	}

	provider := "veo"
	duration := 8
	item.ProviderOverride = &provider
	item.DurationOverride = &duration
	item.FormatsOverride = StringList{"1080x1080"}

	if got := item.EffectiveProvider(batch); got != "veo" {
		t.Errorf("expected override provider, got %s", got)
	}
	if got := item.EffectiveDuration(batch); got != 8 {
		t.Errorf("expected override duration, got %d", got)
	}
	if got := item.EffectiveFormats(batch); len(got) != 1 || got[0] != "1080x1080" {
		t.Errorf("expected override formats, got %v", got)
	}
}
