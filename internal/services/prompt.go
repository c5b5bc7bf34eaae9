package services

import (
	"bytes"
	"fmt"
	"strings"
)

// hexColorNames translates the hex tokens merchants paste into style cells
// into words image models actually respond to.
var hexColorNames = map[string]string{
	"000000": "black",
	"FFFFFF": "white",
	"FF0000": "red",
	"00FF00": "green",
	"0000FF": "blue",
	"FFFF00": "yellow",
	"FFA500": "orange",
	"800080": "purple",
	"FFC0CB": "pink",
	"808080": "gray",
	"A52A2A": "brown",
}

// ScenePromptInput carries everything needed to compose one still-image prompt.
type ScenePromptInput struct {
	ScenePrompt     string // Scene beat from the planner
	ProductImageURL string // Blank = no real product shot, render the category
	ImageStyle      string // Free-text style cell, may contain HEX tokens
	StyleDirective  string // Preset directive, appended verbatim
}

// HasProductImage reports whether a usable product reference exists. A cell of
// pure whitespace counts as absent.
func (in ScenePromptInput) HasProductImage() bool {
	return strings.TrimSpace(in.ProductImageURL) != ""
}

// BuildScenePrompt composes the full prompt for a scene's still image. With a
// product reference the prompt anchors on the exact product; without one it
// frames the product category instead, so the model never invents a fake
// version of a specific item.
func BuildScenePrompt(in ScenePromptInput) string {
	var buf bytes.Buffer

	if in.HasProductImage() {
		buf.WriteString("Create a polished product marketing image featuring the exact product shown in the reference image. ")
		buf.WriteString("Preserve the product's shape, colors, branding and proportions faithfully. ")
	} else {
		buf.WriteString("Create a polished lifestyle marketing image representing the product category described below. ")
		buf.WriteString("Do not invent logos or brand marks. ")
	}

	buf.WriteString("Scene: ")
	buf.WriteString(strings.TrimSpace(in.ScenePrompt))

	if style := composeStyle(in.ImageStyle); style != "" {
		buf.WriteString(" Style: ")
		buf.WriteString(style)
	}

	if directive := strings.TrimSpace(in.StyleDirective); directive != "" {
		buf.WriteString(" ")
		buf.WriteString(directive)
	}

	buf.WriteString(" High resolution, professional commercial photography quality.")

	return buf.String()
}

// composeStyle renders the style cell, translating HEX color tokens
// ("HEX FF0000", "HEX #FF0000") into background directions. An empty cell
// defaults to a clean white background.
func composeStyle(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "clean white background."
	}

	fields := strings.Fields(raw)
	var out []string
	for i := 0; i < len(fields); i++ {
		word := fields[i]
		if strings.EqualFold(word, "HEX") && i+1 < len(fields) {
			i++
			out = append(out, fmt.Sprintf("%s background", colorName(fields[i])))
			continue
		}
		if code, ok := strings.CutPrefix(strings.ToUpper(word), "HEX#"); ok {
			out = append(out, fmt.Sprintf("%s background", colorName(code)))
			continue
		}
		out = append(out, word)
	}

	style := strings.Join(out, " ")
	if !strings.HasSuffix(style, ".") {
		style += "."
	}
	return style
}

func colorName(token string) string {
	code := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(token), "#"))
	if name, ok := hexColorNames[code]; ok {
		return name
	}
	return "a solid color"
}
