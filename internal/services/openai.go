package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// SceneBeat is one planned scene: the fragment of marketing copy it covers,
// a still-image prompt, and a motion prompt for the animation pass.
type SceneBeat struct {
	Text         string `json:"text"`
	ImagePrompt  string `json:"image_prompt"`
	MotionPrompt string `json:"motion_prompt"`
}

type scenePlan struct {
	Scenes []SceneBeat `json:"scenes"`
}

// Planner turns a row's marketing copy into a fixed number of scene beats.
type Planner struct {
	client *openai.Client
}

func NewPlanner(apiKey string) *Planner {
	return &Planner{client: openai.NewClient(apiKey)}
}

const plannerSystemPrompt = `You are a short-form video ad planner. Split the given marketing copy into exactly %d scenes for a %d second vertical product video.

Return JSON: {"scenes": [{"text": "...", "image_prompt": "...", "motion_prompt": "..."}]}

Rules:
- "text" is the fragment of the original copy this scene covers. Every scene must use actual copy; do not invent claims.
- "image_prompt" describes one striking still frame for the scene. Concrete and visual, no camera jargon.
- "motion_prompt" describes subtle motion for animating that frame: slow push-in, drifting steam, fabric swaying. One sentence.
- Scenes must follow the copy's order.`

// PlanScenes asks the model for a scene breakdown. On any model failure it
// falls back to a deterministic sentence split so a planning outage never
// blocks a batch.
func (p *Planner) PlanScenes(ctx context.Context, textContent string, sceneCount, durationSec int) ([]SceneBeat, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(plannerSystemPrompt, sceneCount, durationSec),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: textContent,
			},
		},
		Temperature: 0.7,
	})
	if err != nil {
		log.Printf("[Planner] Scene planning failed, using sentence split: %v", err)
		return splitFallback(textContent, sceneCount), nil
	}

	if len(resp.Choices) == 0 {
		log.Printf("[Planner] Empty completion, using sentence split")
		return splitFallback(textContent, sceneCount), nil
	}

	var plan scenePlan
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &plan); err != nil {
		log.Printf("[Planner] Failed to parse plan JSON, using sentence split: %v", err)
		return splitFallback(textContent, sceneCount), nil
	}

	beats, err := normalizePlan(plan.Scenes, sceneCount)
	if err != nil {
		log.Printf("[Planner] Invalid plan (%v), using sentence split", err)
		return splitFallback(textContent, sceneCount), nil
	}

	return beats, nil
}

// normalizePlan enforces the requested scene count and fills gaps the model
// left in individual beats.
func normalizePlan(beats []SceneBeat, sceneCount int) ([]SceneBeat, error) {
	if len(beats) == 0 {
		return nil, fmt.Errorf("plan has no scenes")
	}

	// Too many: keep the first N. Too few: reject and let the fallback run.
	if len(beats) > sceneCount {
		beats = beats[:sceneCount]
	}
	if len(beats) < sceneCount {
		return nil, fmt.Errorf("plan has %d scenes, wanted %d", len(beats), sceneCount)
	}

	for i := range beats {
		beats[i].Text = strings.TrimSpace(beats[i].Text)
		beats[i].ImagePrompt = strings.TrimSpace(beats[i].ImagePrompt)
		beats[i].MotionPrompt = strings.TrimSpace(beats[i].MotionPrompt)

		if beats[i].Text == "" {
			return nil, fmt.Errorf("scene %d has empty text", i)
		}
		if beats[i].ImagePrompt == "" {
			beats[i].ImagePrompt = beats[i].Text
		}
		if beats[i].MotionPrompt == "" {
			beats[i].MotionPrompt = "Slow, subtle camera push-in."
		}
	}

	return beats, nil
}

// splitFallback produces sceneCount beats by splitting the copy on sentence
// boundaries and distributing sentences round-robin-free: contiguous chunks,
// original order preserved.
func splitFallback(textContent string, sceneCount int) []SceneBeat {
	sentences := splitSentences(textContent)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(textContent)}
	}

	beats := make([]SceneBeat, sceneCount)
	per := len(sentences) / sceneCount
	extra := len(sentences) % sceneCount

	pos := 0
	for i := 0; i < sceneCount; i++ {
		n := per
		if i < extra {
			n++
		}
		var chunk []string
		if pos < len(sentences) {
			end := pos + n
			if end > len(sentences) || i == sceneCount-1 {
				end = len(sentences)
			}
			chunk = sentences[pos:end]
			pos = end
		}

		text := strings.TrimSpace(strings.Join(chunk, " "))
		if text == "" {
			// Fewer sentences than scenes: reuse the full copy
			text = strings.TrimSpace(textContent)
		}

		beats[i] = SceneBeat{
			Text:         text,
			ImagePrompt:  text,
			MotionPrompt: "Slow, subtle camera push-in.",
		}
	}

	return beats
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
