package graders

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

// DefaultJudgeModel is used when a rubric grader doesn't name one.
const DefaultJudgeModel = "gpt-4o-mini"

const judgeSystemPrompt = `You are an evaluation judge. You will be given:
1. A rubric describing evaluation criteria
2. An input/question
3. A submission to evaluate

Evaluate the submission according to the rubric and return a JSON response with:
{
    "score": (REQUIRED: a decimal number between 0.0 and 1.0 inclusive),
    "rationale": "explanation of your grading decision"
}

IMPORTANT:
- The score MUST be a number between 0.0 and 1.0 (inclusive)
- 0.0 means complete failure, 1.0 means perfect
- Use decimal values for partial credit (e.g., 0.25, 0.5, 0.75)
- Be objective and follow the rubric strictly`

// chatCompleter is the slice of the OpenAI client the judges need;
// narrowed so tests can substitute a scripted judge.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// newJudgeClient builds a provider client from the environment, matching
// the chat target's conventions.
func newJudgeClient() (chatCompleter, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("graders: OPENAI_API_KEY is not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg), nil
}

// rubricGrader asks a judge model to score the submission against a
// rubric prompt.
type rubricGrader struct {
	key         string
	prompt      string
	model       string
	temperature float32
	client      chatCompleter
}

// NewRubricGrader builds the judge from the validated spec, with the
// provider client taken from the environment.
func NewRubricGrader(key string, spec *suite.RubricGraderSpec) (*rubricGrader, error) {
	client, err := newJudgeClient()
	if err != nil {
		return nil, err
	}
	return NewRubricGraderWithClient(key, spec, client), nil
}

// NewRubricGraderWithClient is the injection point for tests.
func NewRubricGraderWithClient(key string, spec *suite.RubricGraderSpec, client chatCompleter) *rubricGrader {
	model := spec.Model
	if model == "" {
		model = DefaultJudgeModel
	}
	return &rubricGrader{
		key:         key,
		prompt:      spec.Prompt,
		model:       model,
		temperature: spec.Temperature,
		client:      client,
	}
}

func (g *rubricGrader) Key() string            { return g.key }
func (g *rubricGrader) Kind() suite.GraderKind { return suite.GraderRubric }

func (g *rubricGrader) Grade(ctx context.Context, sample *models.Sample, submission string) (models.GradeResult, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildJudgePrompt(g.prompt, sample, submission)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return models.GradeResult{}, fmt.Errorf("judge request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.GradeResult{}, fmt.Errorf("judge returned no choices")
	}

	var verdict struct {
		Score     *float64 `json:"score"`
		Rationale string   `json:"rationale"`
	}
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return models.GradeResult{}, fmt.Errorf("judge returned unparseable verdict: %w", err)
	}
	if verdict.Score == nil {
		return models.GradeResult{}, fmt.Errorf("judge verdict is missing a score")
	}

	// Judges sometimes wander out of range; clamping here is the grader
	// honoring its own [0,1] contract.
	score := *verdict.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return models.GradeResult{
		Score:     score,
		Rationale: verdict.Rationale,
		Metadata: map[string]any{
			"judge_model":  g.model,
			"total_tokens": resp.Usage.TotalTokens,
		},
	}, nil
}

// buildJudgePrompt fills rubric template slots and frames the evaluation.
// Recognized slots: {input}, {submission}, {ground_truth}, and any key of
// the sample's rubric_vars as {name}.
func buildJudgePrompt(rubric string, sample *models.Sample, submission string) string {
	input := strings.Join(sample.Input, "\n")

	rubric = strings.ReplaceAll(rubric, "{input}", input)
	rubric = strings.ReplaceAll(rubric, "{submission}", submission)
	rubric = strings.ReplaceAll(rubric, "{ground_truth}", sample.ScalarGroundTruth())
	for name, val := range sample.RubricVars {
		rubric = strings.ReplaceAll(rubric, "{"+name+"}", val)
	}

	parts := []string{
		"## Rubric",
		rubric,
		"",
		"## Input",
		input,
	}
	if truth := sample.ScalarGroundTruth(); truth != "" {
		parts = append(parts, "", "## Ground Truth Answer", truth)
	}
	parts = append(parts,
		"",
		"## Submission to Evaluate",
		submission,
		"",
		"Please evaluate the submission according to the rubric and return your judgment in JSON format.",
	)
	return strings.Join(parts, "\n")
}
