package animation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
	caps Capabilities
}

func (s *stubProvider) Name() string               { return s.name }
func (s *stubProvider) Capabilities() Capabilities { return s.caps }
func (s *stubProvider) Animate(ctx context.Context, req Request) (*Result, error) {
	return &Result{VideoURL: "https://results.example.com/clip.mp4"}, nil
}

func newStub(name string) *stubProvider {
	return &stubProvider{
		name: name,
		caps: Capabilities{Durations: []int{5, 10}, Resolutions: []string{"720p"}},
	}
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry("seedance", newStub("seedance"), newStub("veo"))
	require.NoError(t, err)

	p, err := reg.Lookup("veo")
	require.NoError(t, err)
	assert.Equal(t, "veo", p.Name())

	// Case-insensitive
	p, err = reg.Lookup("SeeDance")
	require.NoError(t, err)
	assert.Equal(t, "seedance", p.Name())
}

func TestRegistryLookupDefault(t *testing.T) {
	reg, err := NewRegistry("seedance", newStub("seedance"), newStub("veo"))
	require.NoError(t, err)

	p, err := reg.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "seedance", p.Name())

	p, err = reg.Lookup("   ")
	require.NoError(t, err)
	assert.Equal(t, "seedance", p.Name())
}

func TestRegistryRejectsUnknown(t *testing.T) {
	reg, err := NewRegistry("seedance", newStub("seedance"))
	require.NoError(t, err)

	_, err = reg.Lookup("runway")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runway")
}

func TestRegistryRejectsUnknownDefault(t *testing.T) {
	_, err := NewRegistry("runway", newStub("seedance"))
	require.Error(t, err)
}

func TestRegistryRejectsReservedName(t *testing.T) {
	_, err := NewRegistry("fallback", newStub("fallback"))
	require.Error(t, err)
}

func TestRegistryDefaultFollowsRegistration(t *testing.T) {
	// A Veo-only deployment must report veo, not some hard-coded name
	reg, err := NewRegistry("veo", newStub("veo"))
	require.NoError(t, err)
	assert.Equal(t, "veo", reg.Default())

	p, err := reg.Lookup(reg.Default())
	require.NoError(t, err)
	assert.Equal(t, "veo", p.Name())
}

func TestRegistryNames(t *testing.T) {
	reg, err := NewRegistry("veo", newStub("veo"), newStub("seedance"))
	require.NoError(t, err)
	assert.Equal(t, []string{"seedance", "veo"}, reg.Names())
}

func TestCapabilitiesValidate(t *testing.T) {
	caps := Capabilities{Durations: []int{5, 10}, Resolutions: []string{"480p", "720p"}}

	ok := Request{SourceImageURL: "https://x/img.png", DurationSec: 5, Resolution: "720p"}
	assert.NoError(t, caps.Validate(ok))

	// Empty resolution falls through to the provider default
	noRes := ok
	noRes.Resolution = ""
	assert.NoError(t, caps.Validate(noRes))

	badDur := ok
	badDur.DurationSec = 7
	assert.Error(t, caps.Validate(badDur))

	badRes := ok
	badRes.Resolution = "4k"
	assert.Error(t, caps.Validate(badRes))

	noImage := ok
	noImage.SourceImageURL = "  "
	assert.Error(t, caps.Validate(noImage))
}

func TestClosestDuration(t *testing.T) {
	caps := Capabilities{Durations: []int{4, 6, 8}}

	assert.Equal(t, 4, caps.ClosestDuration(3))
	assert.Equal(t, 4, caps.ClosestDuration(5)) // tie resolves shorter
	assert.Equal(t, 6, caps.ClosestDuration(6))
	assert.Equal(t, 8, caps.ClosestDuration(30))
}

func TestSeedanceCapabilities(t *testing.T) {
	s := NewSeedance("key", "https://ark.example.com/api/v3")
	caps := s.Capabilities()

	assert.Equal(t, []int{5, 10}, caps.Durations)
	assert.True(t, caps.SupportsCameraFixed)
	assert.True(t, caps.SupportsSeed)
}

func TestFallbackClipFromPool(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := FallbackClip()
		seen[ref] = true

		found := false
		for _, known := range fallbackClipRefs {
			if known == ref {
				found = true
			}
		}
		assert.True(t, found, "unknown fallback ref %q", ref)
	}
	// With 100 draws from 5 refs we expect more than one distinct pick
	assert.Greater(t, len(seen), 1)
}

func TestIsImageRejection(t *testing.T) {
	assert.True(t, isImageRejection("InvalidParameter.Image", "image format unsupported"))
	assert.True(t, isImageRejection("", "the input image was rejected"))
	assert.False(t, isImageRejection("InternalError", "upstream hiccup"))
	assert.False(t, isImageRejection("", "invalid duration"))
}
