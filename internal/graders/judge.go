package graders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

const passToolName = "record_pass"
const failToolName = "record_fail"

const agentJudgeSystem = `You are an evaluation judge with grading tools.
Evaluate the submission against each criterion in the instructions. For
every criterion that is satisfied, call record_pass with a short reason;
for every criterion that is not, call record_fail with a short reason. You
MUST call one of the tools at least once. Do not answer in prose.`

// agentJudgeGrader runs a tool-using judge: instead of parsing a numeric
// score out of prose, the judge reports per-criterion verdicts through
// record_pass/record_fail tool calls and the score is the pass fraction.
type agentJudgeGrader struct {
	key    string
	prompt string
	model  string
	client chatCompleter
}

// NewAgentJudgeGrader builds the judge from the validated spec, with the
// provider client taken from the environment.
func NewAgentJudgeGrader(key string, spec *suite.AgentJudgeSpec) (*agentJudgeGrader, error) {
	client, err := newJudgeClient()
	if err != nil {
		return nil, err
	}
	return NewAgentJudgeGraderWithClient(key, spec, client), nil
}

// NewAgentJudgeGraderWithClient is the injection point for tests.
func NewAgentJudgeGraderWithClient(key string, spec *suite.AgentJudgeSpec, client chatCompleter) *agentJudgeGrader {
	model := spec.Model
	if model == "" {
		model = DefaultJudgeModel
	}
	return &agentJudgeGrader{
		key:    key,
		prompt: spec.Prompt,
		model:  model,
		client: client,
	}
}

func (g *agentJudgeGrader) Key() string            { return g.key }
func (g *agentJudgeGrader) Kind() suite.GraderKind { return suite.GraderAgentJudge }

func gradingTools() []openai.Tool {
	reason := json.RawMessage(`{
		"type": "object",
		"properties": {
			"reason": {"type": "string", "description": "Why this criterion passed or failed"}
		},
		"required": ["reason"]
	}`)
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        passToolName,
				Description: "Record that one criterion is satisfied",
				Parameters:  reason,
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        failToolName,
				Description: "Record that one criterion is not satisfied",
				Parameters:  reason,
			},
		},
	}
}

func (g *agentJudgeGrader) Grade(ctx context.Context, sample *models.Sample, submission string) (models.GradeResult, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: agentJudgeSystem},
			{Role: openai.ChatMessageRoleUser, Content: buildJudgePrompt(g.prompt, sample, submission)},
		},
		Tools: gradingTools(),
	})
	if err != nil {
		return models.GradeResult{}, fmt.Errorf("judge request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.GradeResult{}, fmt.Errorf("judge returned no choices")
	}

	var passes, failures []string
	for _, tc := range resp.Choices[0].Message.ToolCalls {
		var args struct {
			Reason string `json:"reason"`
		}
		// A judge that garbles its own tool arguments still cast a verdict;
		// only the reason text is lost.
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)

		switch tc.Function.Name {
		case passToolName:
			passes = append(passes, args.Reason)
		case failToolName:
			failures = append(failures, args.Reason)
		}
	}

	total := len(passes) + len(failures)
	if total == 0 {
		// The judge never used its grading tools, so there is no verdict to
		// trust. Fail closed.
		return models.GradeResult{
			Score:     0.0,
			Rationale: "judge recorded no pass/fail verdicts",
		}, nil
	}

	rationale := "all criteria passed"
	if len(failures) > 0 {
		rationale = strings.Join(failures, "; ")
	}

	return models.GradeResult{
		Score:     float64(len(passes)) / float64(total),
		Rationale: rationale,
		Metadata: map[string]any{
			"judge_model": g.model,
			"passes":      len(passes),
			"failures":    len(failures),
		},
	}, nil
}
