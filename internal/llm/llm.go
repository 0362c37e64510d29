package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/invopop/jsonschema"

	"github.com/joescharf/lift/internal/models"
)

// Recap is a short post-workout write-up.
type Recap struct {
	Headline   string   `json:"headline" jsonschema:"description=One sentence summarising the session"`
	Highlights []string `json:"highlights" jsonschema:"description=Short notes on notable sets such as targets beaten or failures or drop sets or the heaviest weight,minItems=1,maxItems=4"`
	Suggestion string   `json:"suggestion" jsonschema:"description=One concrete suggestion for the next session of this routine"`
}

// recapSchema is the JSON schema a recap reply must satisfy.
var recapSchema = func() string {
	r := jsonschema.Reflector{AllowAdditionalProperties: false, DoNotReference: true}
	b, err := json.MarshalIndent(r.Reflect(&Recap{}), "", "  ")
	if err != nil {
		panic(fmt.Sprintf("recap schema: %v", err))
	}
	return string(b)
}()

// Client wraps the Anthropic API for workout recaps.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildRecapPrompt constructs the system and user prompts for a workout recap.
func buildRecapPrompt(w *models.WorkoutSession, sum models.Summary) (system string, user string) {
	system = `You write brief recaps of strength training workouts. Return ONLY a JSON object matching this schema:
` + recapSchema + `

Rules:
- Only use numbers that appear in the input
- Skipped sets count against completion, mention them if there are several
- Sets marked "failure" reached muscular failure; sets marked "drop" were drop sets
- Keep the tone factual and encouraging
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	name := w.RoutineName
	if name == "" {
		name = "ad-hoc workout"
	}
	fmt.Fprintf(&sb, "Workout: %s (%s)\n", name, w.Status)
	fmt.Fprintf(&sb, "Duration: %d min, rest taken: %d s\n", int(sum.Elapsed.Minutes()), sum.RestSeconds)
	fmt.Fprintf(&sb, "Sets: %d completed, %d skipped, %d pending of %d (%d%%)\n",
		sum.CompletedSets, sum.SkippedSets, sum.PendingSets, sum.TotalPlannedSets, sum.CompletionPercent)
	fmt.Fprintf(&sb, "Total reps: %d, total volume: %s\n", sum.TotalReps, formatFloat(sum.TotalVolume))

	for _, ex := range w.Exercises {
		sb.WriteString("\n## ")
		sb.WriteString(ex.Name)
		if ex.MuscleGroup != "" {
			sb.WriteString(" [" + ex.MuscleGroup + "]")
		}
		sb.WriteString("\n")
		for _, set := range ex.Sets {
			sb.WriteString(describeSet(set))
			sb.WriteString("\n")
		}
	}
	user = sb.String()
	return
}

func describeSet(s models.SetRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- set %d: target %d", s.Index+1, s.TargetReps)
	if s.TargetWeight != nil {
		sb.WriteString(" x " + formatFloat(*s.TargetWeight))
	}
	sb.WriteString(", " + string(s.Status))
	if s.Status == models.SetStatusCompleted && s.ActualReps != nil {
		fmt.Fprintf(&sb, " %d", *s.ActualReps)
		if s.ActualWeight != nil {
			sb.WriteString(" x " + formatFloat(*s.ActualWeight))
		}
	}
	var flags []string
	if s.Failure {
		flags = append(flags, "failure")
	}
	if s.DropSet {
		flags = append(flags, "drop")
	}
	if len(flags) > 0 {
		sb.WriteString(" (" + strings.Join(flags, ", ") + ")")
	}
	if s.Note != "" {
		sb.WriteString(" note: " + s.Note)
	}
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Recap sends a finished workout to the LLM and returns the parsed recap.
func (c *Client) Recap(ctx context.Context, w *models.WorkoutSession, sum models.Summary) (*Recap, error) {
	systemPrompt, userPrompt := buildRecapPrompt(w, sum)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	return parseRecap(text)
}

func parseRecap(text string) (*Recap, error) {
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	// Strip markdown fencing if present
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var recap Recap
	if err := json.Unmarshal([]byte(text), &recap); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if recap.Headline == "" {
		return nil, fmt.Errorf("LLM response has no headline: %s", text)
	}
	return &recap, nil
}
