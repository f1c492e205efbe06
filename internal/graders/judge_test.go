package graders

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

func toolCallResponse(calls ...openai.ToolCall) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, ToolCalls: calls}},
		},
	}
}

func verdictCall(tool, reason string) openai.ToolCall {
	return openai.ToolCall{
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      tool,
			Arguments: `{"reason": "` + reason + `"}`,
		},
	}
}

func TestAgentJudgeGrader(t *testing.T) {
	spec := &suite.AgentJudgeSpec{Prompt: "Check correctness and tone."}
	sample := &models.Sample{Input: []string{"question"}}

	t.Run("score is the pass fraction", func(t *testing.T) {
		client := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
			toolCallResponse(
				verdictCall(passToolName, "correct"),
				verdictCall(passToolName, "polite"),
				verdictCall(failToolName, "too long"),
			),
		}}
		g := NewAgentJudgeGraderWithClient("criteria", spec, client)

		result, err := g.Grade(context.Background(), sample, "some answer")
		require.NoError(t, err)
		require.InDelta(t, 2.0/3.0, result.Score, 1e-9)
		require.Equal(t, "too long", result.Rationale)
		require.Equal(t, 2, result.Metadata["passes"])
		require.Equal(t, 1, result.Metadata["failures"])
	})

	t.Run("all passes", func(t *testing.T) {
		client := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
			toolCallResponse(verdictCall(passToolName, "good")),
		}}
		g := NewAgentJudgeGraderWithClient("criteria", spec, client)

		result, err := g.Grade(context.Background(), sample, "answer")
		require.NoError(t, err)
		require.Equal(t, 1.0, result.Score)
		require.Equal(t, "all criteria passed", result.Rationale)
	})

	t.Run("no verdicts fails closed", func(t *testing.T) {
		client := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
			textResponse("Looks fine to me!"),
		}}
		g := NewAgentJudgeGraderWithClient("criteria", spec, client)

		result, err := g.Grade(context.Background(), sample, "answer")
		require.NoError(t, err)
		require.Equal(t, 0.0, result.Score)
		require.Contains(t, result.Rationale, "no pass/fail verdicts")
	})

	t.Run("grading tools are offered to the judge", func(t *testing.T) {
		client := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
			toolCallResponse(verdictCall(passToolName, "ok")),
		}}
		g := NewAgentJudgeGraderWithClient("criteria", spec, client)

		_, err := g.Grade(context.Background(), sample, "answer")
		require.NoError(t, err)

		require.Len(t, client.requests, 1)
		var names []string
		for _, tool := range client.requests[0].Tools {
			names = append(names, tool.Function.Name)
		}
		require.ElementsMatch(t, []string{passToolName, failToolName}, names)
	})
}
