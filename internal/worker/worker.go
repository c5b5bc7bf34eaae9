package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/sellvid/backend/internal/animation"
	"github.com/sellvid/backend/internal/models"
	"github.com/sellvid/backend/internal/queue"
	"github.com/sellvid/backend/internal/render"
	"github.com/sellvid/backend/internal/services"
	"github.com/sellvid/backend/internal/storage"
)

// Store is the persistence surface the worker drives. *db.DB satisfies it.
type Store interface {
	GetBatch(ctx context.Context, id uuid.UUID) (*models.BatchJob, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.VideoItem, error)
	GetPendingItems(ctx context.Context, batchID uuid.UUID) ([]models.VideoItem, error)
	UpdateItemStatus(ctx context.Context, id uuid.UUID, status models.ItemStatus) error
	UpdateItemError(ctx context.Context, id uuid.UUID, errorMessage string) error
	ResetItem(ctx context.Context, id uuid.UUID) error

	CreateScene(ctx context.Context, scene *models.Scene) error
	GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error)
	GetItemScenes(ctx context.Context, itemID uuid.UUID) ([]models.Scene, error)
	UpdateSceneContent(ctx context.Context, id uuid.UUID, prompt, motionPrompt, imageRef string) error
	UpdateSceneAnimationStatus(ctx context.Context, id uuid.UUID, status models.AnimationStatus) error
	SetSceneAnimation(ctx context.Context, id uuid.UUID, ref, prompt, provider string, seed int64, history models.AnimationHistory) error
	UpdateSceneAnimationError(ctx context.Context, id uuid.UUID, errorMessage string) error
	AreAllScenesAnimated(ctx context.Context, itemID uuid.UUID) (bool, error)

	UpsertRenderedOutput(ctx context.Context, out *models.RenderedOutput) error
	GetStylePreset(ctx context.Context, id uuid.UUID) (*models.StylePreset, error)
}

// ObjectStore is the slice of the asset gateway the worker needs.
type ObjectStore interface {
	Upload(ctx context.Context, ref string, data []byte, contentType string) error
	FetchURL(ctx context.Context, url string) ([]byte, error)
	PresignGet(ctx context.Context, ref string, forDownload bool) (string, error)
}

// Planner turns marketing copy into scene beats.
type Planner interface {
	PlanScenes(ctx context.Context, textContent string, sceneCount, durationSec int) ([]services.SceneBeat, error)
}

// Imager produces scene still images.
type Imager interface {
	GenerateImage(ctx context.Context, prompt string, referenceImage []byte, referenceMime string) ([]byte, error)
}

// ItemRenderer assembles one item-format deliverable.
type ItemRenderer interface {
	Render(ctx context.Context, job render.Job) (string, error)
}

// ProgressEvent is one stage notification for one item. Done counts items of
// the run that have finished (either way); Total is the run size.
type ProgressEvent struct {
	BatchID uuid.UUID
	ItemID  uuid.UUID
	Stage   string // "planning", "scene_images", "animating", "rendering", "completed", "failed"
	Status  models.ItemStatus
	Done    int
	Total   int
}

// ProgressFunc receives stage notifications. No process-wide state: each
// batch run carries its own counters.
type ProgressFunc func(event ProgressEvent)

type batchProgress struct {
	batchID uuid.UUID
	total   int
	done    atomic.Int32
}

// Worker consumes jobs from the queue and drives items through the
// plan -> image -> animate -> render pipeline.
type Worker struct {
	store     Store
	queue     *queue.Queue
	objects   ObjectStore
	planner   Planner
	imager    Imager
	providers *animation.Registry
	renderer  ItemRenderer

	concurrency    int64
	pollLoops      int
	progress       ProgressFunc
	rateLimitDelay time.Duration
}

const animateRateLimitRetries = 3

type Config struct {
	Store       Store
	Queue       *queue.Queue
	Objects     ObjectStore
	Planner     Planner
	Imager      Imager
	Providers   *animation.Registry
	Renderer    ItemRenderer
	Concurrency int
	PollLoops   int
	Progress    ProgressFunc
}

func New(cfg Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 3
	}
	pollLoops := cfg.PollLoops
	if pollLoops < 1 {
		pollLoops = 1
	}
	return &Worker{
		store:          cfg.Store,
		queue:          cfg.Queue,
		objects:        cfg.Objects,
		planner:        cfg.Planner,
		imager:         cfg.Imager,
		providers:      cfg.Providers,
		renderer:       cfg.Renderer,
		concurrency:    int64(concurrency),
		pollLoops:      pollLoops,
		progress:       cfg.Progress,
		rateLimitDelay: 5 * time.Second,
	}
}

func (w *Worker) report(p *batchProgress, itemID uuid.UUID, stage string, status models.ItemStatus) {
	if w.progress == nil {
		return
	}
	w.progress(ProgressEvent{
		BatchID: p.batchID,
		ItemID:  itemID,
		Stage:   stage,
		Status:  status,
		Done:    int(p.done.Load()),
		Total:   p.total,
	})
}

// Start runs blocking dequeue loops until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	queues := []string{
		queue.QueueProcessBatch,
		queue.QueueProcessItem,
		queue.QueueRegenerateScene,
		queue.QueueRenderItem,
	}

	for _, name := range queues {
		for i := 0; i < w.pollLoops; i++ {
			go w.pollLoop(ctx, name)
		}
	}

	log.Printf("[Worker] Started (%d loops per queue, concurrency %d)", w.pollLoops, w.concurrency)
	<-ctx.Done()
	log.Printf("[Worker] Shutting down")
}

func (w *Worker) pollLoop(ctx context.Context, queueName string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Worker] Dequeue from %s failed: %v", queueName, err)
			time.Sleep(2 * time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.handleJob(ctx, job)
	}
}

func (w *Worker) handleJob(ctx context.Context, job *queue.Job) {
	log.Printf("[Worker] Handling %s job %s (batch %s)", job.Type, job.ID, job.BatchID)

	var err error
	switch job.Type {
	case "process_batch":
		err = w.ProcessBatch(ctx, job.BatchID)
	case "process_item":
		if job.ItemID == nil {
			err = fmt.Errorf("process_item job without item id")
		} else {
			err = w.ReprocessItem(ctx, *job.ItemID)
		}
	case "regenerate_scene":
		if job.SceneID == nil {
			err = fmt.Errorf("regenerate_scene job without scene id")
		} else if job.Overrides["target"] == "content" {
			err = w.RegenerateSceneContent(ctx, *job.SceneID, job.Overrides["prompt"])
		} else {
			err = w.RegenerateSceneAnimation(ctx, *job.SceneID, job.Overrides["provider"], job.Overrides["prompt"])
		}
	case "render_item":
		if job.ItemID == nil {
			err = fmt.Errorf("render_item job without item id")
		} else {
			err = w.RenderItem(ctx, *job.ItemID, job.Overrides["format"])
		}
	default:
		err = fmt.Errorf("unknown job type %q", job.Type)
	}

	if err != nil {
		log.Printf("[Worker] Job %s (%s) failed: %v", job.ID, job.Type, err)
	}
}

// ProcessBatch runs every pending item of a batch through the pipeline with
// bounded parallelism. One item's failure is recorded on that item and never
// stops its siblings.
func (w *Worker) ProcessBatch(ctx context.Context, batchID uuid.UUID) error {
	batch, err := w.store.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}

	items, err := w.store.GetPendingItems(ctx, batchID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		log.Printf("[Worker] Batch %s has no pending items", batchID)
		return nil
	}

	log.Printf("[Worker] Processing batch %s: %d items, concurrency %d", batchID, len(items), w.concurrency)

	prog := &batchProgress{batchID: batchID, total: len(items)}
	sem := semaphore.NewWeighted(w.concurrency)
	done := make(chan struct{})
	for i := range items {
		item := items[i]
		if err := sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("batch %s interrupted: %w", batchID, err)
		}
		go func() {
			defer sem.Release(1)
			w.runItem(ctx, batch, &item, prog)
		}()
	}

	// Drain: acquiring the full weight waits for every in-flight item
	go func() {
		_ = sem.Acquire(context.Background(), w.concurrency)
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	log.Printf("[Worker] Batch %s finished", batchID)
	return nil
}

// runItem executes the pipeline for one item, converting any error into a
// failed status on that item.
func (w *Worker) runItem(ctx context.Context, batch *models.BatchJob, item *models.VideoItem, prog *batchProgress) {
	err := w.processItem(ctx, batch, item, prog)
	prog.done.Add(1)
	if err != nil {
		log.Printf("[Worker] Item %s (row %d) failed: %v", item.ID, item.RowIndex, err)
		if dbErr := w.store.UpdateItemError(ctx, item.ID, err.Error()); dbErr != nil {
			log.Printf("[Worker] Failed to record item %s failure: %v", item.ID, dbErr)
		}
		w.report(prog, item.ID, "failed", models.ItemStatusFailed)
		return
	}
	w.report(prog, item.ID, "completed", models.ItemStatusCompleted)
}

func (w *Worker) processItem(ctx context.Context, batch *models.BatchJob, item *models.VideoItem, prog *batchProgress) error {
	if err := w.store.UpdateItemStatus(ctx, item.ID, models.ItemStatusGenerating); err != nil {
		return err
	}

	sceneCount := item.EffectiveSceneCount(batch)
	durationSec := item.EffectiveDuration(batch)

	// Plan
	w.report(prog, item.ID, "planning", models.ItemStatusGenerating)
	beats, err := w.planner.PlanScenes(ctx, item.TextContent, sceneCount, durationSec)
	if err != nil {
		return fmt.Errorf("scene planning failed: %w", err)
	}

	// Still images
	w.report(prog, item.ID, "scene_images", models.ItemStatusGenerating)
	scenes, err := w.generateSceneImages(ctx, batch, item, beats)
	if err != nil {
		return err
	}

	// Animations, sequential within the item
	w.report(prog, item.ID, "animating", models.ItemStatusGenerating)
	providerName := item.EffectiveProvider(batch)
	for i := range scenes {
		if err := w.animateScene(ctx, &scenes[i], providerName, durationSec, ""); err != nil {
			return fmt.Errorf("scene %d animation failed: %w", scenes[i].SceneIndex, err)
		}
	}

	// Renders, one per format, independent failures
	w.report(prog, item.ID, "rendering", models.ItemStatusGenerating)
	formats := item.EffectiveFormats(batch)
	if err := w.renderFormats(ctx, batch, item, formats); err != nil {
		return err
	}

	return w.store.UpdateItemStatus(ctx, item.ID, models.ItemStatusCompleted)
}

// generateSceneImages renders each beat's still frame and persists the scenes.
func (w *Worker) generateSceneImages(ctx context.Context, batch *models.BatchJob, item *models.VideoItem, beats []services.SceneBeat) ([]models.Scene, error) {
	styleDirective := w.styleDirective(ctx, batch)
	imageStyle := ""
	if item.StyleOverride != nil {
		imageStyle = *item.StyleOverride
	}

	productURL := ""
	if item.ProductImageURL != nil {
		productURL = *item.ProductImageURL
	}

	var referenceImage []byte
	if strings.TrimSpace(productURL) != "" {
		data, err := w.objects.FetchURL(ctx, productURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch product image: %w", err)
		}
		referenceImage = data
	}

	scenes := make([]models.Scene, 0, len(beats))
	for i, beat := range beats {
		prompt := services.BuildScenePrompt(services.ScenePromptInput{
			ScenePrompt:     beat.ImagePrompt,
			ProductImageURL: productURL,
			ImageStyle:      imageStyle,
			StyleDirective:  styleDirective,
		})

		imageData, err := w.imager.GenerateImage(ctx, prompt, referenceImage, "image/png")
		if err != nil {
			return nil, fmt.Errorf("scene %d image generation failed: %w", i, err)
		}

		imageRef := storage.SceneImageKey(item.ID, i)
		if err := w.objects.Upload(ctx, imageRef, imageData, "image/png"); err != nil {
			return nil, fmt.Errorf("scene %d image upload failed: %w", i, err)
		}

		scene := models.Scene{
			ID:              uuid.New(),
			ItemID:          item.ID,
			SceneIndex:      i,
			Prompt:          prompt,
			MotionPrompt:    beat.MotionPrompt,
			ImageRef:        &imageRef,
			AnimationStatus: models.AnimationStatusPending,
			History:         models.AnimationHistory{},
		}
		if err := w.store.CreateScene(ctx, &scene); err != nil {
			return nil, fmt.Errorf("failed to persist scene %d: %w", i, err)
		}
		scenes = append(scenes, scene)
	}

	return scenes, nil
}

func (w *Worker) styleDirective(ctx context.Context, batch *models.BatchJob) string {
	if batch.StylePresetID == nil {
		return ""
	}
	preset, err := w.store.GetStylePreset(ctx, *batch.StylePresetID)
	if err != nil {
		log.Printf("[Worker] Style preset %s lookup failed: %v", *batch.StylePresetID, err)
		return ""
	}
	if preset.Directive == nil {
		return ""
	}
	return *preset.Directive
}

// animateScene runs one scene through its provider and installs the result as
// the current animation. Permanent provider rejections substitute a stock
// fallback clip rather than failing the scene.
func (w *Worker) animateScene(ctx context.Context, scene *models.Scene, providerName string, durationSec int, promptOverride string) error {
	// Unknown providers fail before any credential or network is touched
	provider, err := w.providers.Lookup(providerName)
	if err != nil {
		return err
	}

	if scene.ImageRef == nil || *scene.ImageRef == "" {
		return fmt.Errorf("scene %d has no still image", scene.SceneIndex)
	}

	if err := w.store.UpdateSceneAnimationStatus(ctx, scene.ID, models.AnimationStatusAnimating); err != nil {
		return err
	}

	motionPrompt := scene.MotionPrompt
	if promptOverride != "" {
		motionPrompt = promptOverride
	}

	caps := provider.Capabilities()
	req := animation.Request{
		MotionPrompt: motionPrompt,
		DurationSec:  caps.ClosestDuration(durationSec),
		CameraFixed:  caps.SupportsCameraFixed,
	}
	if len(caps.Resolutions) > 0 {
		req.Resolution = caps.Resolutions[len(caps.Resolutions)-1]
	}

	req.SourceImageURL, err = w.objects.PresignGet(ctx, *scene.ImageRef, false)
	if err != nil {
		return err
	}

	result, err := w.animateWithRetry(ctx, provider, req, scene.ID)
	if err != nil {
		if errors.Is(err, animation.ErrInvalidImage) || errors.Is(err, animation.ErrQuotaExceeded) {
			return w.installFallbackClip(ctx, scene, motionPrompt, err)
		}
		if stErr := w.store.UpdateSceneAnimationError(ctx, scene.ID, err.Error()); stErr != nil {
			log.Printf("[Worker] Failed to mark scene %s failed: %v", scene.ID, stErr)
		}
		return err
	}

	// Provider result URLs are short-lived; re-store immediately
	clipData, err := w.objects.FetchURL(ctx, result.VideoURL)
	if err != nil {
		if stErr := w.store.UpdateSceneAnimationError(ctx, scene.ID, err.Error()); stErr != nil {
			log.Printf("[Worker] Failed to mark scene %s failed: %v", scene.ID, stErr)
		}
		return fmt.Errorf("failed to fetch animation result: %w", err)
	}

	animationRef := storage.SceneAnimationKey(scene.ID)
	if err := w.objects.Upload(ctx, animationRef, clipData, "video/mp4"); err != nil {
		return fmt.Errorf("failed to store animation: %w", err)
	}

	return w.installAnimation(ctx, scene, animationRef, motionPrompt, provider.Name(), result.Seed)
}

// animateWithRetry retries rate-limited submissions with exponential backoff;
// every other error surfaces immediately.
func (w *Worker) animateWithRetry(ctx context.Context, provider animation.Provider, req animation.Request, sceneID uuid.UUID) (*animation.Result, error) {
	var lastErr error
	for attempt := 0; attempt <= animateRateLimitRetries; attempt++ {
		if attempt > 0 {
			delay := w.rateLimitDelay * time.Duration(1<<(attempt-1))
			log.Printf("[Worker] Provider %s rate-limited for scene %s, retrying in %v (attempt %d/%d)",
				provider.Name(), sceneID, delay, attempt, animateRateLimitRetries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := provider.Animate(ctx, req)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, animation.ErrRateLimited) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// installAnimation sets the new current animation, pushing the previous one
// into history.
func (w *Worker) installAnimation(ctx context.Context, scene *models.Scene, ref, prompt, providerName string, seed int64) error {
	next := models.AnimationAttempt{
		VideoRef:  ref,
		Prompt:    prompt,
		Provider:  providerName,
		Seed:      seed,
		CreatedAt: time.Now(),
	}
	if scene.ImageRef != nil {
		next.SourceImageRef = *scene.ImageRef
	}

	history := scene.History.Push(scene.CurrentAttempt(), next)
	if err := w.store.SetSceneAnimation(ctx, scene.ID, ref, prompt, providerName, seed, history); err != nil {
		return fmt.Errorf("failed to install animation: %w", err)
	}

	scene.AnimationStatus = models.AnimationStatusCompleted
	scene.AnimationRef = &ref
	scene.AnimationPrompt = &prompt
	scene.Provider = &providerName
	scene.Seed = &seed
	scene.History = history
	return nil
}

func (w *Worker) installFallbackClip(ctx context.Context, scene *models.Scene, prompt string, cause error) error {
	ref := animation.FallbackClip()
	log.Printf("[Worker] Scene %s: substituting fallback clip %s (%v)", scene.ID, ref, cause)
	return w.installAnimation(ctx, scene, ref, prompt, animation.FallbackProviderName, 0)
}

// renderFormats renders each target format independently. A format's failure
// is recorded on its own output row; the item fails only when every format
// fails.
func (w *Worker) renderFormats(ctx context.Context, batch *models.BatchJob, item *models.VideoItem, formats []string) error {
	if len(formats) == 0 {
		return fmt.Errorf("no target formats")
	}

	scenes, err := w.store.GetItemScenes(ctx, item.ID)
	if err != nil {
		return err
	}

	sceneRefs := make([]string, 0, len(scenes))
	for _, s := range scenes {
		if s.AnimationStatus != models.AnimationStatusCompleted || s.AnimationRef == nil {
			return fmt.Errorf("scene %d is not animated", s.SceneIndex)
		}
		sceneRefs = append(sceneRefs, *s.AnimationRef)
	}

	overlayRef := ""
	if batch.BrandOverlayRef != nil {
		overlayRef = *batch.BrandOverlayRef
	}

	succeeded := 0
	var lastErr error
	for _, format := range formats {
		if err := w.renderOneFormat(ctx, item.ID, format, sceneRefs, overlayRef); err != nil {
			log.Printf("[Worker] Item %s format %s render failed: %v", item.ID, format, err)
			lastErr = err
			continue
		}
		succeeded++
	}

	if succeeded == 0 {
		return fmt.Errorf("all %d formats failed to render: %w", len(formats), lastErr)
	}
	return nil
}

func (w *Worker) renderOneFormat(ctx context.Context, itemID uuid.UUID, format string, sceneRefs []string, overlayRef string) error {
	out := &models.RenderedOutput{
		ID:     uuid.New(),
		ItemID: itemID,
		Format: format,
		Status: models.RenderStatusRendering,
	}
	if err := w.store.UpsertRenderedOutput(ctx, out); err != nil {
		return err
	}

	artifactRef, err := w.renderer.Render(ctx, render.Job{
		SceneRefs:  sceneRefs,
		Format:     format,
		OverlayRef: overlayRef,
		OutputRef:  storage.OutputKey(itemID, format),
	})
	if err != nil {
		msg := err.Error()
		out.Status = models.RenderStatusFailed
		out.ErrorMessage = &msg
		out.ArtifactRef = nil
		if upErr := w.store.UpsertRenderedOutput(ctx, out); upErr != nil {
			log.Printf("[Worker] Failed to record render failure for %s/%s: %v", itemID, format, upErr)
		}
		return err
	}

	out.Status = models.RenderStatusCompleted
	out.ArtifactRef = &artifactRef
	out.ErrorMessage = nil
	return w.store.UpsertRenderedOutput(ctx, out)
}

// ReprocessItem wipes an item and runs it through the whole pipeline again.
// Runs alone, not under batch concurrency.
func (w *Worker) ReprocessItem(ctx context.Context, itemID uuid.UUID) error {
	item, err := w.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	batch, err := w.store.GetBatch(ctx, item.BatchID)
	if err != nil {
		return err
	}

	if err := w.store.ResetItem(ctx, itemID); err != nil {
		return err
	}
	item.Status = models.ItemStatusPending

	w.runItem(ctx, batch, item, &batchProgress{batchID: batch.ID, total: 1})
	return nil
}

// RegenerateSceneContent rebuilds one scene's still image (optionally with a
// replacement prompt). The current animation stays in place until the caller
// regenerates it too.
func (w *Worker) RegenerateSceneContent(ctx context.Context, sceneID uuid.UUID, promptOverride string) error {
	scene, err := w.store.GetScene(ctx, sceneID)
	if err != nil {
		return err
	}
	item, err := w.store.GetItem(ctx, scene.ItemID)
	if err != nil {
		return err
	}

	prompt := scene.Prompt
	if promptOverride != "" {
		productURL := ""
		if item.ProductImageURL != nil {
			productURL = *item.ProductImageURL
		}
		imageStyle := ""
		if item.StyleOverride != nil {
			imageStyle = *item.StyleOverride
		}
		batch, err := w.store.GetBatch(ctx, item.BatchID)
		if err != nil {
			return err
		}
		prompt = services.BuildScenePrompt(services.ScenePromptInput{
			ScenePrompt:     promptOverride,
			ProductImageURL: productURL,
			ImageStyle:      imageStyle,
			StyleDirective:  w.styleDirective(ctx, batch),
		})
	}

	var referenceImage []byte
	if item.ProductImageURL != nil && strings.TrimSpace(*item.ProductImageURL) != "" {
		referenceImage, err = w.objects.FetchURL(ctx, *item.ProductImageURL)
		if err != nil {
			return fmt.Errorf("failed to fetch product image: %w", err)
		}
	}

	imageData, err := w.imager.GenerateImage(ctx, prompt, referenceImage, "image/png")
	if err != nil {
		return fmt.Errorf("image regeneration failed: %w", err)
	}

	imageRef := storage.SceneImageKey(scene.ItemID, scene.SceneIndex)
	if err := w.objects.Upload(ctx, imageRef, imageData, "image/png"); err != nil {
		return err
	}

	return w.store.UpdateSceneContent(ctx, sceneID, prompt, scene.MotionPrompt, imageRef)
}

// RegenerateSceneAnimation re-animates one scene, optionally switching
// provider or motion prompt. The displaced animation is preserved in history.
func (w *Worker) RegenerateSceneAnimation(ctx context.Context, sceneID uuid.UUID, providerName, promptOverride string) error {
	scene, err := w.store.GetScene(ctx, sceneID)
	if err != nil {
		return err
	}
	item, err := w.store.GetItem(ctx, scene.ItemID)
	if err != nil {
		return err
	}
	batch, err := w.store.GetBatch(ctx, item.BatchID)
	if err != nil {
		return err
	}

	if providerName == "" {
		providerName = item.EffectiveProvider(batch)
	}

	return w.animateScene(ctx, scene, providerName, item.EffectiveDuration(batch), promptOverride)
}

// RenderItem re-renders an item's deliverables. An empty format means all of
// the item's effective formats; a named format touches only that output.
func (w *Worker) RenderItem(ctx context.Context, itemID uuid.UUID, format string) error {
	item, err := w.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	batch, err := w.store.GetBatch(ctx, item.BatchID)
	if err != nil {
		return err
	}

	ready, err := w.store.AreAllScenesAnimated(ctx, itemID)
	if err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("item %s has unanimated scenes", itemID)
	}

	formats := item.EffectiveFormats(batch)
	if format != "" {
		formats = []string{format}
	}

	return w.renderFormats(ctx, batch, item, formats)
}
