package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellvid/backend/internal/animation"
	"github.com/sellvid/backend/internal/models"
	"github.com/sellvid/backend/internal/render"
	"github.com/sellvid/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeStore struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*models.BatchJob
	items   map[uuid.UUID]*models.VideoItem
	scenes  map[uuid.UUID]*models.Scene
	outputs map[string]*models.RenderedOutput
	presets map[uuid.UUID]*models.StylePreset
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		batches: make(map[uuid.UUID]*models.BatchJob),
		items:   make(map[uuid.UUID]*models.VideoItem),
		scenes:  make(map[uuid.UUID]*models.Scene),
		outputs: make(map[string]*models.RenderedOutput),
		presets: make(map[uuid.UUID]*models.StylePreset),
	}
}

func outputKey(itemID uuid.UUID, format string) string {
	return itemID.String() + "|" + format
}

func (f *fakeStore) GetBatch(_ context.Context, id uuid.UUID) (*models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch not found")
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) GetItem(_ context.Context, id uuid.UUID) (*models.VideoItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("item not found")
	}
	cp := *i
	return &cp, nil
}

func (f *fakeStore) GetPendingItems(_ context.Context, batchID uuid.UUID) ([]models.VideoItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []models.VideoItem
	for _, i := range f.items {
		if i.BatchID == batchID && i.Status == models.ItemStatusPending {
			items = append(items, *i)
		}
	}
	sort.Slice(items, func(a, b int) bool { return items[a].RowIndex < items[b].RowIndex })
	return items, nil
}

func (f *fakeStore) UpdateItemStatus(_ context.Context, id uuid.UUID, status models.ItemStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.items[id]; ok {
		i.Status = status
		i.ErrorMessage = nil
	}
	return nil
}

func (f *fakeStore) UpdateItemError(_ context.Context, id uuid.UUID, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.items[id]; ok {
		i.Status = models.ItemStatusFailed
		i.ErrorMessage = &msg
	}
	return nil
}

func (f *fakeStore) ResetItem(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sid, s := range f.scenes {
		if s.ItemID == id {
			delete(f.scenes, sid)
		}
	}
	for key, o := range f.outputs {
		if o.ItemID == id {
			delete(f.outputs, key)
		}
	}
	if i, ok := f.items[id]; ok {
		i.Status = models.ItemStatusPending
		i.ErrorMessage = nil
	}
	return nil
}

func (f *fakeStore) CreateScene(_ context.Context, scene *models.Scene) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *scene
	f.scenes[scene.ID] = &cp
	return nil
}

func (f *fakeStore) GetScene(_ context.Context, id uuid.UUID) (*models.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scenes[id]
	if !ok {
		return nil, fmt.Errorf("scene not found")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) GetItemScenes(_ context.Context, itemID uuid.UUID) ([]models.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var scenes []models.Scene
	for _, s := range f.scenes {
		if s.ItemID == itemID {
			scenes = append(scenes, *s)
		}
	}
	sort.Slice(scenes, func(a, b int) bool { return scenes[a].SceneIndex < scenes[b].SceneIndex })
	return scenes, nil
}

func (f *fakeStore) UpdateSceneContent(_ context.Context, id uuid.UUID, prompt, motionPrompt, imageRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.scenes[id]; ok {
		s.Prompt = prompt
		s.MotionPrompt = motionPrompt
		s.ImageRef = &imageRef
	}
	return nil
}

func (f *fakeStore) UpdateSceneAnimationStatus(_ context.Context, id uuid.UUID, status models.AnimationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.scenes[id]; ok {
		s.AnimationStatus = status
	}
	return nil
}

func (f *fakeStore) SetSceneAnimation(_ context.Context, id uuid.UUID, ref, prompt, provider string, seed int64, history models.AnimationHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.scenes[id]; ok {
		s.AnimationStatus = models.AnimationStatusCompleted
		s.AnimationRef = &ref
		s.AnimationPrompt = &prompt
		s.Provider = &provider
		s.Seed = &seed
		s.History = history
	}
	return nil
}

func (f *fakeStore) UpdateSceneAnimationError(_ context.Context, id uuid.UUID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.scenes[id]; ok {
		s.AnimationStatus = models.AnimationStatusFailed
	}
	return nil
}

func (f *fakeStore) AreAllScenesAnimated(_ context.Context, itemID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for _, s := range f.scenes {
		if s.ItemID == itemID {
			found = true
			if s.AnimationStatus != models.AnimationStatusCompleted {
				return false, nil
			}
		}
	}
	return found, nil
}

func (f *fakeStore) UpsertRenderedOutput(_ context.Context, out *models.RenderedOutput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *out
	f.outputs[outputKey(out.ItemID, out.Format)] = &cp
	return nil
}

func (f *fakeStore) GetStylePreset(_ context.Context, id uuid.UUID) (*models.StylePreset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.presets[id]
	if !ok {
		return nil, fmt.Errorf("style preset not found")
	}
	cp := *p
	return &cp, nil
}

type fakeObjects struct {
	mu       sync.Mutex
	uploaded map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{uploaded: make(map[string][]byte)}
}

func (f *fakeObjects) Upload(_ context.Context, ref string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[ref] = data
	return nil
}

func (f *fakeObjects) FetchURL(_ context.Context, url string) ([]byte, error) {
	return []byte("bytes-of-" + url), nil
}

func (f *fakeObjects) PresignGet(_ context.Context, ref string, _ bool) (string, error) {
	return "https://signed.example.com/" + ref, nil
}

type fakePlanner struct{}

func (fakePlanner) PlanScenes(_ context.Context, text string, sceneCount, _ int) ([]services.SceneBeat, error) {
	beats := make([]services.SceneBeat, sceneCount)
	for i := range beats {
		beats[i] = services.SceneBeat{
			Text:         fmt.Sprintf("%s (beat %d)", text, i),
			ImagePrompt:  fmt.Sprintf("frame %d of %s", i, text),
			MotionPrompt: "Slow push-in.",
		}
	}
	return beats, nil
}

// fakeImager fails for prompts containing "POISON" and tracks how many
// generations run at once.
type fakeImager struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (f *fakeImager) GenerateImage(_ context.Context, prompt string, _ []byte, _ string) ([]byte, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if strings.Contains(prompt, "POISON") {
		return nil, fmt.Errorf("content policy rejection")
	}
	return []byte("png-bytes"), nil
}

type fakeAnimator struct {
	name string
	caps animation.Capabilities
	err  error
	// errTimes bounds how many calls return err; 0 means every call
	errTimes int

	mu    sync.Mutex
	calls int
}

func (f *fakeAnimator) Name() string { return f.name }

func (f *fakeAnimator) Capabilities() animation.Capabilities { return f.caps }
func (f *fakeAnimator) Animate(_ context.Context, req animation.Request) (*animation.Result, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.err != nil && (f.errTimes == 0 || n <= f.errTimes) {
		return nil, f.err
	}
	return &animation.Result{VideoURL: "https://provider.example.com/clip.mp4", Seed: 42}, nil
}

func (f *fakeAnimator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRenderer struct {
	mu         sync.Mutex
	failFormat string
	rendered   []render.Job
}

func (f *fakeRenderer) Render(_ context.Context, job render.Job) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.Format == f.failFormat {
		return "", fmt.Errorf("encoder crashed")
	}
	f.rendered = append(f.rendered, job)
	return job.OutputRef, nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func defaultCaps() animation.Capabilities {
	return animation.Capabilities{
		Durations:    []int{5, 10},
		Resolutions:  []string{"480p", "720p"},
		SupportsSeed: true,
	}
}

type fixture struct {
	worker   *Worker
	store    *fakeStore
	objects  *fakeObjects
	imager   *fakeImager
	renderer *fakeRenderer
	batch    *models.BatchJob
}

func newFixture(t *testing.T, concurrency int, animator animation.Provider) *fixture {
	t.Helper()

	store := newFakeStore()
	objects := newFakeObjects()
	imager := &fakeImager{}
	renderer := &fakeRenderer{}

	if animator == nil {
		animator = &fakeAnimator{name: "seedance", caps: defaultCaps()}
	}
	registry, err := animation.NewRegistry("seedance", animator)
	require.NoError(t, err)

	w := New(Config{
		Store:       store,
		Objects:     objects,
		Planner:     fakePlanner{},
		Imager:      imager,
		Providers:   registry,
		Renderer:    renderer,
		Concurrency: concurrency,
	})

	batch := &models.BatchJob{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Name:        "spring-launch",
		Formats:     models.StringList{"1080x1920"},
		DurationSec: 5,
		SceneCount:  2,
		Provider:    "seedance",
	}
	store.batches[batch.ID] = batch

	return &fixture{worker: w, store: store, objects: objects, imager: imager, renderer: renderer, batch: batch}
}

func (fx *fixture) addItem(rowIndex int, text string) *models.VideoItem {
	item := &models.VideoItem{
		ID:          uuid.New(),
		BatchID:     fx.batch.ID,
		RowIndex:    rowIndex,
		TextContent: text,
		Status:      models.ItemStatusPending,
	}
	fx.store.mu.Lock()
	fx.store.items[item.ID] = item
	fx.store.mu.Unlock()
	return item
}

func (fx *fixture) itemStatus(id uuid.UUID) models.ItemStatus {
	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	return fx.store.items[id].Status
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestProcessBatchFailureIsolation(t *testing.T) {
	fx := newFixture(t, 3, nil)

	var bad *models.VideoItem
	for i := 1; i <= 5; i++ {
		text := fmt.Sprintf("Product copy number %d.", i)
		if i == 3 {
			text = "POISON copy that always fails."
		}
		item := fx.addItem(i, text)
		if i == 3 {
			bad = item
		}
	}

	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))

	completed, failed := 0, 0
	fx.store.mu.Lock()
	for _, item := range fx.store.items {
		switch item.Status {
		case models.ItemStatusCompleted:
			completed++
		case models.ItemStatusFailed:
			failed++
		default:
			t.Errorf("item row %d left in status %s", item.RowIndex, item.Status)
		}
	}
	fx.store.mu.Unlock()

	assert.Equal(t, 4, completed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, models.ItemStatusFailed, fx.itemStatus(bad.ID))

	fx.store.mu.Lock()
	require.NotNil(t, fx.store.items[bad.ID].ErrorMessage)
	fx.store.mu.Unlock()

	// Bounded parallelism held
	assert.LessOrEqual(t, fx.imager.maxSeen, 3)
}

func TestProcessBatchCompletesScenesAndOutputs(t *testing.T) {
	fx := newFixture(t, 2, nil)
	item := fx.addItem(1, "A lovely product.")

	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))
	assert.Equal(t, models.ItemStatusCompleted, fx.itemStatus(item.ID))

	scenes, err := fx.store.GetItemScenes(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	for _, s := range scenes {
		assert.Equal(t, models.AnimationStatusCompleted, s.AnimationStatus)
		require.NotNil(t, s.AnimationRef)
		require.NotNil(t, s.Seed)
		assert.EqualValues(t, 42, *s.Seed)
		require.Len(t, s.History, 1)
		assert.Equal(t, *s.AnimationRef, s.History[0].VideoRef)
	}

	fx.store.mu.Lock()
	out := fx.store.outputs[outputKey(item.ID, "1080x1920")]
	fx.store.mu.Unlock()
	require.NotNil(t, out)
	assert.Equal(t, models.RenderStatusCompleted, out.Status)
	require.NotNil(t, out.ArtifactRef)
}

func TestInvalidImageSubstitutesFallbackClip(t *testing.T) {
	animator := &fakeAnimator{name: "seedance", caps: defaultCaps(), err: fmt.Errorf("%w: sensitive content", animation.ErrInvalidImage)}
	fx := newFixture(t, 1, animator)
	item := fx.addItem(1, "Copy that trips the image filter.")

	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))
	assert.Equal(t, models.ItemStatusCompleted, fx.itemStatus(item.ID))

	scenes, err := fx.store.GetItemScenes(context.Background(), item.ID)
	require.NoError(t, err)
	for _, s := range scenes {
		assert.Equal(t, models.AnimationStatusCompleted, s.AnimationStatus)
		require.NotNil(t, s.Provider)
		assert.Equal(t, animation.FallbackProviderName, *s.Provider)
		require.NotNil(t, s.AnimationRef)
		assert.Contains(t, *s.AnimationRef, "stock/fallback/")
	}
}

func TestTransientAnimationErrorFailsItem(t *testing.T) {
	animator := &fakeAnimator{name: "seedance", caps: defaultCaps(), err: fmt.Errorf("upstream exploded")}
	fx := newFixture(t, 1, animator)
	item := fx.addItem(1, "Copy.")

	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))
	assert.Equal(t, models.ItemStatusFailed, fx.itemStatus(item.ID))
}

func TestRateLimitedAnimationRetriesUntilSuccess(t *testing.T) {
	animator := &fakeAnimator{
		name:     "seedance",
		caps:     defaultCaps(),
		err:      fmt.Errorf("%w: try again later", animation.ErrRateLimited),
		errTimes: 1,
	}
	fx := newFixture(t, 1, animator)
	fx.worker.rateLimitDelay = time.Millisecond
	item := fx.addItem(1, "Copy.")

	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))
	assert.Equal(t, models.ItemStatusCompleted, fx.itemStatus(item.ID))
	// one 429 plus the retry that succeeded, for each of the two scenes
	assert.Equal(t, 3, animator.callCount())
}

func TestRateLimitedAnimationGivesUpAfterBoundedRetries(t *testing.T) {
	animator := &fakeAnimator{
		name: "seedance",
		caps: defaultCaps(),
		err:  fmt.Errorf("%w: try again later", animation.ErrRateLimited),
	}
	fx := newFixture(t, 1, animator)
	fx.worker.rateLimitDelay = time.Millisecond
	item := fx.addItem(1, "Copy.")

	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))
	assert.Equal(t, models.ItemStatusFailed, fx.itemStatus(item.ID))
	// the first scene exhausts its attempts and the item stops there
	assert.Equal(t, 1+animateRateLimitRetries, animator.callCount())
}

func TestRegenerateAnimationPushesHistory(t *testing.T) {
	fx := newFixture(t, 1, nil)
	item := fx.addItem(1, "Copy.")

	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))

	scenes, err := fx.store.GetItemScenes(context.Background(), item.ID)
	require.NoError(t, err)
	scene := scenes[0]
	firstRef := *scene.AnimationRef

	require.NoError(t, fx.worker.RegenerateSceneAnimation(context.Background(), scene.ID, "", "dramatic slow zoom"))

	updated, err := fx.store.GetScene(context.Background(), scene.ID)
	require.NoError(t, err)
	assert.NotEqual(t, firstRef, *updated.AnimationRef)
	require.Len(t, updated.History, 2)
	assert.Equal(t, firstRef, updated.History[0].VideoRef)
	assert.Equal(t, *updated.AnimationRef, updated.History[1].VideoRef)
	assert.Equal(t, "dramatic slow zoom", *updated.AnimationPrompt)
}

func TestRegenerateAnimationBackfillsLegacyScene(t *testing.T) {
	fx := newFixture(t, 1, nil)
	item := fx.addItem(1, "Copy.")

	// A scene animated before history tracking existed: current animation
	// set, history empty
	legacyRef := "scenes/legacy/animation_old.mp4"
	legacyProvider := "seedance"
	imageRef := "items/x/scene_0.png"
	scene := &models.Scene{
		ID:              uuid.New(),
		ItemID:          item.ID,
		SceneIndex:      0,
		Prompt:          "prompt",
		MotionPrompt:    "motion",
		ImageRef:        &imageRef,
		AnimationStatus: models.AnimationStatusCompleted,
		AnimationRef:    &legacyRef,
		Provider:        &legacyProvider,
		History:         nil,
	}
	require.NoError(t, fx.store.CreateScene(context.Background(), scene))

	require.NoError(t, fx.worker.RegenerateSceneAnimation(context.Background(), scene.ID, "", ""))

	updated, err := fx.store.GetScene(context.Background(), scene.ID)
	require.NoError(t, err)
	require.Len(t, updated.History, 2, "legacy animation must be backfilled before the new entry")
	assert.Equal(t, legacyRef, updated.History[0].VideoRef)
	assert.Equal(t, *updated.AnimationRef, updated.History[1].VideoRef)
}

func TestRegenerateAnimationRejectsUnknownProvider(t *testing.T) {
	fx := newFixture(t, 1, nil)
	item := fx.addItem(1, "Copy.")
	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))

	scenes, err := fx.store.GetItemScenes(context.Background(), item.ID)
	require.NoError(t, err)
	scene := scenes[0]
	before, err := fx.store.GetScene(context.Background(), scene.ID)
	require.NoError(t, err)

	err = fx.worker.RegenerateSceneAnimation(context.Background(), scene.ID, "runway", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runway")

	// The rejection happened before any state was touched
	after, err := fx.store.GetScene(context.Background(), scene.ID)
	require.NoError(t, err)
	assert.Equal(t, *before.AnimationRef, *after.AnimationRef)
	assert.Equal(t, len(before.History), len(after.History))
}

func TestRegenerateContentKeepsPriorImageObject(t *testing.T) {
	fx := newFixture(t, 1, nil)
	item := fx.addItem(1, "Copy.")
	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))

	scenes, err := fx.store.GetItemScenes(context.Background(), item.ID)
	require.NoError(t, err)
	scene := scenes[0]
	require.NotNil(t, scene.ImageRef)
	firstRef := *scene.ImageRef

	require.NoError(t, fx.worker.RegenerateSceneContent(context.Background(), scene.ID, ""))

	updated, err := fx.store.GetScene(context.Background(), scene.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.ImageRef)
	// History source refs still resolve: the old object stays in place and the
	// new image lands under its own key
	assert.NotEqual(t, firstRef, *updated.ImageRef)
	fx.objects.mu.Lock()
	_, oldKept := fx.objects.uploaded[firstRef]
	_, newStored := fx.objects.uploaded[*updated.ImageRef]
	fx.objects.mu.Unlock()
	assert.True(t, oldKept)
	assert.True(t, newStored)
}

func TestRenderFormatIsolation(t *testing.T) {
	fx := newFixture(t, 1, nil)
	fx.batch.Formats = models.StringList{"1080x1920", "1920x1080"}
	fx.renderer.failFormat = "1920x1080"
	item := fx.addItem(1, "Copy.")

	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))

	// One format failed but the item still completed on the surviving one
	assert.Equal(t, models.ItemStatusCompleted, fx.itemStatus(item.ID))

	fx.store.mu.Lock()
	good := fx.store.outputs[outputKey(item.ID, "1080x1920")]
	bad := fx.store.outputs[outputKey(item.ID, "1920x1080")]
	fx.store.mu.Unlock()

	require.NotNil(t, good)
	assert.Equal(t, models.RenderStatusCompleted, good.Status)
	require.NotNil(t, good.ArtifactRef)

	require.NotNil(t, bad)
	assert.Equal(t, models.RenderStatusFailed, bad.Status)
	assert.Nil(t, bad.ArtifactRef)
	require.NotNil(t, bad.ErrorMessage)
}

func TestRenderItemSingleFormatOnly(t *testing.T) {
	fx := newFixture(t, 1, nil)
	fx.batch.Formats = models.StringList{"1080x1920", "1080x1080"}
	item := fx.addItem(1, "Copy.")
	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))

	fx.renderer.mu.Lock()
	fx.renderer.rendered = nil
	fx.renderer.mu.Unlock()

	require.NoError(t, fx.worker.RenderItem(context.Background(), item.ID, "1080x1080"))

	fx.renderer.mu.Lock()
	defer fx.renderer.mu.Unlock()
	require.Len(t, fx.renderer.rendered, 1)
	assert.Equal(t, "1080x1080", fx.renderer.rendered[0].Format)
}

func TestReprocessItemResetsAndReruns(t *testing.T) {
	fx := newFixture(t, 1, nil)
	item := fx.addItem(1, "Copy.")
	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))

	firstScenes, err := fx.store.GetItemScenes(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, firstScenes, 2)

	require.NoError(t, fx.worker.ReprocessItem(context.Background(), item.ID))
	assert.Equal(t, models.ItemStatusCompleted, fx.itemStatus(item.ID))

	secondScenes, err := fx.store.GetItemScenes(context.Background(), item.ID)
	require.NoError(t, err)
	require.Len(t, secondScenes, 2, "reprocess must not accumulate scenes")
	assert.NotEqual(t, firstScenes[0].ID, secondScenes[0].ID)
}

func TestProcessBatchReportsProgress(t *testing.T) {
	fx := newFixture(t, 1, nil)
	item := fx.addItem(1, "Copy.")

	var mu sync.Mutex
	var events []ProgressEvent
	fx.worker.progress = func(e ProgressEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)

	stages := make(map[string]bool)
	for _, e := range events {
		assert.Equal(t, fx.batch.ID, e.BatchID)
		assert.Equal(t, item.ID, e.ItemID)
		assert.Equal(t, 1, e.Total)
		stages[e.Stage] = true
	}
	for _, want := range []string{"planning", "scene_images", "animating", "rendering", "completed"} {
		assert.True(t, stages[want], "missing stage %q", want)
	}

	last := events[len(events)-1]
	assert.Equal(t, "completed", last.Stage)
	assert.Equal(t, 1, last.Done)
}

func TestProcessBatchRespectsItemOverrides(t *testing.T) {
	fx := newFixture(t, 1, nil)
	item := fx.addItem(1, "Copy.")
	sceneCount := 4
	fx.store.mu.Lock()
	fx.store.items[item.ID].SceneCountOverride = &sceneCount
	fx.store.mu.Unlock()

	require.NoError(t, fx.worker.ProcessBatch(context.Background(), fx.batch.ID))

	scenes, err := fx.store.GetItemScenes(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Len(t, scenes, 4)
}
