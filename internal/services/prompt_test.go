package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildScenePromptWithProduct(t *testing.T) {
	prompt := BuildScenePrompt(ScenePromptInput{
		ScenePrompt:     "A steaming mug on a rustic wooden table.",
		ProductImageURL: "https://cdn.example.com/mug.png",
	})

	assert.Contains(t, prompt, "exact product shown in the reference image")
	assert.Contains(t, prompt, "A steaming mug on a rustic wooden table.")
	assert.NotContains(t, prompt, "product category")
}

func TestBuildScenePromptCategoryFraming(t *testing.T) {
	for _, url := range []string{"", "   ", "\t"} {
		prompt := BuildScenePrompt(ScenePromptInput{
			ScenePrompt:     "Cozy morning coffee ritual.",
			ProductImageURL: url,
		})
		assert.Contains(t, prompt, "product category")
		assert.Contains(t, prompt, "Do not invent logos")
		assert.NotContains(t, prompt, "reference image")
	}
}

func TestBuildScenePromptDefaultBackground(t *testing.T) {
	prompt := BuildScenePrompt(ScenePromptInput{ScenePrompt: "Product on display."})
	assert.Contains(t, prompt, "clean white background")
}

func TestComposeStyleHexTokens(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"HEX FF0000", "red background"},
		{"HEX #FF0000", "red background"},
		{"HEX#0000FF", "blue background"},
		{"hex ffa500", "orange background"},
		{"HEX 123456", "a solid color background"},
		{"minimalist HEX 808080 studio", "minimalist gray background studio"},
	}

	for _, tt := range tests {
		assert.Contains(t, composeStyle(tt.raw), tt.want, "input %q", tt.raw)
	}
}

func TestComposeStylePlainText(t *testing.T) {
	assert.Equal(t, "warm natural lighting, film grain.", composeStyle("warm natural lighting, film grain"))
}

func TestBuildScenePromptAppendsDirective(t *testing.T) {
	prompt := BuildScenePrompt(ScenePromptInput{
		ScenePrompt:    "Hero shot of the bottle.",
		StyleDirective: "Soft pastel palette, shallow depth of field.",
	})
	assert.Contains(t, prompt, "Soft pastel palette, shallow depth of field.")
}
