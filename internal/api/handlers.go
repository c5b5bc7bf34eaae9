package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sellvid/backend/internal/animation"
	"github.com/sellvid/backend/internal/db"
	"github.com/sellvid/backend/internal/models"
	"github.com/sellvid/backend/internal/packager"
	"github.com/sellvid/backend/internal/parser"
	"github.com/sellvid/backend/internal/queue"
	"github.com/sellvid/backend/internal/storage"
)

type Handlers struct {
	db        *db.DB
	queue     *queue.Queue
	storage   *storage.Storage
	providers *animation.Registry
	packager  *packager.Packager
}

func NewHandlers(database *db.DB, q *queue.Queue, store *storage.Storage, providers *animation.Registry) *Handlers {
	return &Handlers{
		db:        database,
		queue:     q,
		storage:   store,
		providers: providers,
		packager:  packager.New(store),
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateBatch imports a parsed table as a new batch of video items and
// schedules processing.
func (h *Handlers) CreateBatch(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req models.CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	rows := req.Rows
	if req.CSV != nil && *req.CSV != "" {
		parsed, err := parser.ReadCSV(strings.NewReader(*req.CSV))
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		rows = parsed
	}

	specs, err := parser.ParseTable(rows, req.Mapping)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Batch defaults
	formats := req.Formats
	if len(formats) == 0 {
		formats = []string{"1080x1920"}
	}
	for _, f := range formats {
		if _, _, err := models.ParseFormat(f); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	durationSec := 5
	if req.DurationSec != nil && *req.DurationSec > 0 {
		durationSec = *req.DurationSec
	}
	sceneCount := 3
	if req.SceneCount != nil && *req.SceneCount > 0 {
		sceneCount = *req.SceneCount
	}

	providerName := h.providers.Default()
	if req.Provider != nil && *req.Provider != "" {
		providerName = strings.ToLower(*req.Provider)
	}
	if _, err := h.providers.Lookup(providerName); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Row-level provider overrides are validated up front too
	for _, spec := range specs {
		if spec.Provider != "" {
			if _, err := h.providers.Lookup(spec.Provider); err != nil {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("row %d: %v", spec.RowIndex, err))
				return
			}
		}
	}

	batch := &models.BatchJob{
		ID:          uuid.New(),
		UserID:      user.ID,
		Name:        req.Name,
		Formats:     models.StringList(formats),
		DurationSec: durationSec,
		SceneCount:  sceneCount,
		Provider:    providerName,
	}

	if req.StylePresetSlug != nil && *req.StylePresetSlug != "" {
		preset, err := h.db.GetStylePresetBySlug(r.Context(), *req.StylePresetSlug)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		batch.StylePresetID = &preset.ID
	}

	if req.BrandOverlayURL != nil && strings.TrimSpace(*req.BrandOverlayURL) != "" {
		overlayData, err := h.storage.FetchURL(r.Context(), *req.BrandOverlayURL)
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to fetch brand overlay")
			return
		}
		overlayRef := storage.BrandOverlayKey(batch.ID)
		if err := h.storage.Upload(r.Context(), overlayRef, overlayData, "image/png"); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to store brand overlay")
			return
		}
		batch.BrandOverlayRef = &overlayRef
	}

	if err := h.db.CreateBatch(r.Context(), batch); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create batch")
		return
	}

	for _, spec := range specs {
		item := &models.VideoItem{
			ID:          uuid.New(),
			BatchID:     batch.ID,
			RowIndex:    spec.RowIndex,
			TextContent: spec.TextContent,
			Status:      models.ItemStatusPending,
		}
		if spec.ProductImageURL != "" {
			item.ProductImageURL = &spec.ProductImageURL
		}
		if spec.ImageStyle != "" {
			item.StyleOverride = &spec.ImageStyle
		}
		if len(spec.VideoFormats) > 0 {
			item.FormatsOverride = models.StringList(spec.VideoFormats)
		}
		if spec.Provider != "" {
			item.ProviderOverride = &spec.Provider
		}
		if spec.DurationSec > 0 {
			d := spec.DurationSec
			item.DurationOverride = &d
		}
		if spec.SceneCount > 0 {
			s := spec.SceneCount
			item.SceneCountOverride = &s
		}

		if err := h.db.CreateItem(r.Context(), item); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to create batch items")
			return
		}
	}

	if err := h.queue.EnqueueProcessBatch(r.Context(), batch.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to schedule batch")
		return
	}

	log.Printf("[API] Batch %s created: %d items", batch.ID, len(specs))
	respondJSON(w, http.StatusCreated, models.CreateBatchResponse{
		BatchID:   batch.ID,
		ItemCount: len(specs),
	})
}

// ListBatches returns the caller's batches with progress counts.
func (h *Handlers) ListBatches(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	limit := parseIntQuery(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := parseIntQuery(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	batches, err := h.db.ListBatches(r.Context(), user.ID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}
	total, err := h.db.CountBatches(r.Context(), user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count batches")
		return
	}

	summaries := make([]models.BatchSummary, 0, len(batches))
	for _, b := range batches {
		itemCount, completed, failed, err := h.db.BatchItemCounts(r.Context(), b.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to count batch items")
			return
		}
		summaries = append(summaries, models.BatchSummary{
			ID:             b.ID,
			Name:           b.Name,
			ItemCount:      itemCount,
			CompletedCount: completed,
			FailedCount:    failed,
			CreatedAt:      b.CreatedAt,
			UpdatedAt:      b.UpdatedAt,
		})
	}

	respondJSON(w, http.StatusOK, models.ListBatchesResponse{
		Batches: summaries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// GetBatch returns a batch with its items, scenes and outputs, all refs
// exchanged for fresh signed URLs.
func (h *Handlers) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.ownedBatch(w, r)
	if !ok {
		return
	}

	items, err := h.db.GetBatchItems(r.Context(), batch.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load items")
		return
	}

	resp := models.BatchResponse{BatchJob: *batch}
	for i := range items {
		itemResp := models.ItemResponse{VideoItem: items[i]}

		scenes, err := h.db.GetItemScenes(r.Context(), items[i].ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load scenes")
			return
		}
		for j := range scenes {
			itemResp.Scenes = append(itemResp.Scenes, h.sceneResponse(r, scenes[j]))
		}

		outputs, err := h.db.GetItemOutputs(r.Context(), items[i].ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load outputs")
			return
		}
		for j := range outputs {
			outResp := models.OutputResponse{RenderedOutput: outputs[j]}
			if outputs[j].ArtifactRef != nil && outputs[j].Status == models.RenderStatusCompleted {
				if url, err := h.storage.PresignGet(r.Context(), *outputs[j].ArtifactRef, false); err == nil {
					outResp.VideoURL = &url
				}
			}
			itemResp.Outputs = append(itemResp.Outputs, outResp)
		}

		resp.Items = append(resp.Items, itemResp)
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) sceneResponse(r *http.Request, scene models.Scene) models.SceneResponse {
	resp := models.SceneResponse{Scene: scene}
	if scene.ImageRef != nil && *scene.ImageRef != "" {
		if url, err := h.storage.PresignGet(r.Context(), *scene.ImageRef, false); err == nil {
			resp.ImageURL = &url
		}
	}
	if scene.AnimationRef != nil && *scene.AnimationRef != "" {
		if url, err := h.storage.PresignGet(r.Context(), *scene.AnimationRef, false); err == nil {
			resp.AnimationURL = &url
		}
	}
	return resp
}

// DownloadBatch streams a ZIP of every completed deliverable in the batch.
func (h *Handlers) DownloadBatch(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.ownedBatch(w, r)
	if !ok {
		return
	}

	outputs, rowIndexes, err := h.db.GetBatchCompletedOutputs(r.Context(), batch.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load deliverables")
		return
	}
	if len(outputs) == 0 {
		respondError(w, http.StatusNotFound, "batch has no completed deliverables yet")
		return
	}

	entries := make([]packager.Entry, 0, len(outputs))
	for _, out := range outputs {
		if out.ArtifactRef == nil {
			continue
		}
		entries = append(entries, packager.Entry{
			Ref:      *out.ArtifactRef,
			RowIndex: rowIndexes[out.ItemID],
			Format:   out.Format,
		})
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", batch.Name+".zip"))

	// Headers are already on the wire; fetch failures inside the stream skip
	// entries rather than abort
	if _, err := h.packager.Stream(r.Context(), w, batch.Name, entries); err != nil {
		log.Printf("[API] Batch %s download aborted: %v", batch.ID, err)
	}
}

// ProcessBatch (re)schedules processing of a batch's pending items. Useful
// after a worker restart or when items were reset.
func (h *Handlers) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.ownedBatch(w, r)
	if !ok {
		return
	}

	if err := h.queue.EnqueueProcessBatch(r.Context(), batch.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to schedule batch")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// GetItemOutputs returns an item's rendered outputs with fresh signed URLs.
func (h *Handlers) GetItemOutputs(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	outputs, err := h.db.GetItemOutputs(r.Context(), item.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load outputs")
		return
	}

	resp := make([]models.OutputResponse, 0, len(outputs))
	for i := range outputs {
		outResp := models.OutputResponse{RenderedOutput: outputs[i]}
		if outputs[i].ArtifactRef != nil && outputs[i].Status == models.RenderStatusCompleted {
			if url, err := h.storage.PresignGet(r.Context(), *outputs[i].ArtifactRef, true); err == nil {
				outResp.VideoURL = &url
			}
		}
		resp = append(resp, outResp)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"outputs": resp})
}

// RegenerateItem wipes and re-runs one item.
func (h *Handlers) RegenerateItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	if err := h.queue.EnqueueProcessItem(r.Context(), item.BatchID, item.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to schedule regeneration")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// RenderItem schedules a re-render of one item, optionally a single format.
func (h *Handlers) RenderItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format != "" {
		if _, _, err := models.ParseFormat(format); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ready, err := h.db.AreAllScenesAnimated(r.Context(), item.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to check scenes")
		return
	}
	if !ready {
		respondError(w, http.StatusConflict, "item has scenes without completed animations")
		return
	}

	if err := h.queue.EnqueueRenderItem(r.Context(), item.BatchID, item.ID, format); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to schedule render")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// RegenerateSceneContent schedules a rebuild of one scene's still image.
func (h *Handlers) RegenerateSceneContent(w http.ResponseWriter, r *http.Request) {
	scene, batchID, ok := h.ownedScene(w, r)
	if !ok {
		return
	}

	var req models.RegenerateSceneRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	overrides := map[string]string{"target": "content"}
	if req.Prompt != nil {
		overrides["prompt"] = *req.Prompt
	}

	if err := h.queue.EnqueueRegenerateScene(r.Context(), batchID, scene.ID, overrides); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to schedule regeneration")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// RegenerateSceneAnimation schedules a re-animation of one scene. An unknown
// provider is rejected here, before the job is queued.
func (h *Handlers) RegenerateSceneAnimation(w http.ResponseWriter, r *http.Request) {
	scene, batchID, ok := h.ownedScene(w, r)
	if !ok {
		return
	}

	var req models.RegenerateSceneRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	overrides := map[string]string{"target": "animation"}
	if req.Provider != nil && *req.Provider != "" {
		if _, err := h.providers.Lookup(*req.Provider); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		overrides["provider"] = strings.ToLower(*req.Provider)
	}
	if req.Prompt != nil {
		overrides["prompt"] = *req.Prompt
	}

	if scene.ImageRef == nil || *scene.ImageRef == "" {
		respondError(w, http.StatusConflict, "scene has no still image to animate")
		return
	}

	if err := h.queue.EnqueueRegenerateScene(r.Context(), batchID, scene.ID, overrides); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to schedule regeneration")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// GetSceneHistory returns a scene's animation attempts, oldest first, with
// signed URLs.
func (h *Handlers) GetSceneHistory(w http.ResponseWriter, r *http.Request) {
	scene, _, ok := h.ownedScene(w, r)
	if !ok {
		return
	}

	type historyEntry struct {
		models.AnimationAttempt
		VideoURL *string `json:"video_url,omitempty"`
	}

	entries := make([]historyEntry, 0, len(scene.History))
	for _, attempt := range scene.History {
		entry := historyEntry{AnimationAttempt: attempt}
		if url, err := h.storage.PresignGet(r.Context(), attempt.VideoRef, false); err == nil {
			entry.VideoURL = &url
		}
		entries = append(entries, entry)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

// ListStylePresets returns the available visual style presets.
func (h *Handlers) ListStylePresets(w http.ResponseWriter, r *http.Request) {
	presets, err := h.db.ListStylePresets(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list style presets")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"presets": presets})
}

// ListProviders returns the configured animation providers and their limits.
func (h *Handlers) ListProviders(w http.ResponseWriter, r *http.Request) {
	type providerInfo struct {
		Name         string   `json:"name"`
		Durations    []int    `json:"durations"`
		Resolutions  []string `json:"resolutions"`
		SupportsSeed bool     `json:"supports_seed"`
	}

	var infos []providerInfo
	for _, name := range h.providers.Names() {
		p, err := h.providers.Lookup(name)
		if err != nil {
			continue
		}
		caps := p.Capabilities()
		infos = append(infos, providerInfo{
			Name:         p.Name(),
			Durations:    caps.Durations,
			Resolutions:  caps.Resolutions,
			SupportsSeed: caps.SupportsSeed,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"providers": infos})
}

// ---------------------------------------------------------------------------
// Ownership helpers
// ---------------------------------------------------------------------------

func (h *Handlers) ownedBatch(w http.ResponseWriter, r *http.Request) (*models.BatchJob, bool) {
	user := userFromContext(r.Context())

	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch id")
		return nil, false
	}

	owns, err := h.db.UserOwnsBatch(r.Context(), user.ID, batchID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to check ownership")
		return nil, false
	}
	if !owns {
		respondError(w, http.StatusNotFound, "batch not found")
		return nil, false
	}

	batch, err := h.db.GetBatch(r.Context(), batchID)
	if err != nil {
		respondError(w, http.StatusNotFound, "batch not found")
		return nil, false
	}
	return batch, true
}

func (h *Handlers) ownedItem(w http.ResponseWriter, r *http.Request) (*models.VideoItem, bool) {
	user := userFromContext(r.Context())

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return nil, false
	}

	owns, err := h.db.UserOwnsItem(r.Context(), user.ID, itemID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to check ownership")
		return nil, false
	}
	if !owns {
		respondError(w, http.StatusNotFound, "item not found")
		return nil, false
	}

	item, err := h.db.GetItem(r.Context(), itemID)
	if err != nil {
		respondError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	return item, true
}

func (h *Handlers) ownedScene(w http.ResponseWriter, r *http.Request) (*models.Scene, uuid.UUID, bool) {
	user := userFromContext(r.Context())

	sceneID, err := uuid.Parse(chi.URLParam(r, "sceneID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid scene id")
		return nil, uuid.Nil, false
	}

	owns, err := h.db.UserOwnsScene(r.Context(), user.ID, sceneID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to check ownership")
		return nil, uuid.Nil, false
	}
	if !owns {
		respondError(w, http.StatusNotFound, "scene not found")
		return nil, uuid.Nil, false
	}

	scene, err := h.db.GetScene(r.Context(), sceneID)
	if err != nil {
		respondError(w, http.StatusNotFound, "scene not found")
		return nil, uuid.Nil, false
	}

	item, err := h.db.GetItem(r.Context(), scene.ItemID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load item")
		return nil, uuid.Nil, false
	}

	return scene, item.BatchID, true
}

func parseIntQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
