package animation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// Provider-independent failure classes. Workers branch on these to decide
// between retry, fallback clip, and hard failure.
var (
	ErrRateLimited   = errors.New("animation provider rate limited")
	ErrInvalidImage  = errors.New("animation provider rejected source image")
	ErrQuotaExceeded = errors.New("animation provider quota exceeded")
)

// FallbackProviderName marks clips that were substituted from the stock pool
// rather than generated. It is never a valid Registry entry.
const FallbackProviderName = "fallback"

// Request is an image-to-video animation order.
type Request struct {
	SourceImageURL string // Signed read URL for the still frame
	MotionPrompt   string
	DurationSec    int
	Resolution     string // Provider-specific label, e.g. "720p"
	CameraFixed    bool
	Seed           int64 // 0 = let the provider choose
}

// Result is a finished animation. VideoURL is provider-hosted and short-lived;
// callers must download and re-store it immediately. Seed is the value that
// actually produced the clip when the provider reports one, 0 otherwise.
type Result struct {
	VideoURL string
	Seed     int64
}

// Capabilities declares what a provider accepts. Validation happens before
// any network call so an impossible order fails fast.
type Capabilities struct {
	Durations           []int
	Resolutions         []string
	SupportsSeed        bool
	SupportsCameraFixed bool
}

// Validate checks a request against the declared capabilities.
func (c Capabilities) Validate(req Request) error {
	if strings.TrimSpace(req.SourceImageURL) == "" {
		return fmt.Errorf("source image URL is required")
	}
	if !containsInt(c.Durations, req.DurationSec) {
		return fmt.Errorf("unsupported duration %ds (supported: %v)", req.DurationSec, c.Durations)
	}
	if req.Resolution != "" && !containsString(c.Resolutions, req.Resolution) {
		return fmt.Errorf("unsupported resolution %q (supported: %v)", req.Resolution, c.Resolutions)
	}
	return nil
}

// ClosestDuration maps an arbitrary requested duration onto the nearest
// supported one. Ties resolve to the shorter duration.
func (c Capabilities) ClosestDuration(want int) int {
	if len(c.Durations) == 0 {
		return want
	}
	sorted := append([]int(nil), c.Durations...)
	sort.Ints(sorted)

	best := sorted[0]
	for _, d := range sorted {
		if abs(d-want) < abs(best-want) {
			best = d
		}
	}
	return best
}

// Provider animates a still frame into a short clip.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Animate(ctx context.Context, req Request) (*Result, error)
}

// Registry is the closed set of configured providers. Unknown names are
// rejected here, before any credentials are touched.
type Registry struct {
	providers map[string]Provider
	def       string
}

func NewRegistry(defaultName string, providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		name := strings.ToLower(p.Name())
		if name == FallbackProviderName {
			return nil, fmt.Errorf("%q is a reserved provider name", FallbackProviderName)
		}
		if _, dup := r.providers[name]; dup {
			return nil, fmt.Errorf("duplicate provider %q", name)
		}
		r.providers[name] = p
	}

	r.def = strings.ToLower(defaultName)
	if _, ok := r.providers[r.def]; !ok {
		return nil, fmt.Errorf("default provider %q is not registered", defaultName)
	}

	return r, nil
}

// Lookup resolves a provider name. Empty resolves to the default; anything
// not registered is an error, never a silent fallback.
func (r *Registry) Lookup(name string) (Provider, error) {
	if strings.TrimSpace(name) == "" {
		name = r.def
	}
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown animation provider %q", name)
	}
	return p, nil
}

// Default reports the provider name used when a request names none.
func (r *Registry) Default() string {
	return r.def
}

// Names lists registered providers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stock clips substituted when a provider permanently rejects a scene.
// Better a generic motion clip than a hole in the video.
var fallbackClipRefs = []string{
	"stock/fallback/ambient_gradient_01.mp4",
	"stock/fallback/ambient_gradient_02.mp4",
	"stock/fallback/soft_bokeh_01.mp4",
	"stock/fallback/soft_bokeh_02.mp4",
	"stock/fallback/studio_sweep_01.mp4",
}

// FallbackClip picks a stock clip ref. The pick is deliberately unseeded so
// repeated failures across a batch vary the filler.
func FallbackClip() string {
	return fallbackClipRefs[rand.Intn(len(fallbackClipRefs))]
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if strings.EqualFold(v, x) {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
