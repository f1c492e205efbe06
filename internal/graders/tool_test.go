package graders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

func TestNewToolGrader(t *testing.T) {
	g, err := NewToolGrader("check", &suite.ToolGraderSpec{Function: "exact_match"})
	require.NoError(t, err)
	require.Equal(t, "check", g.Key())
	require.Equal(t, suite.GraderTool, g.Kind())

	_, err = NewToolGrader("check", &suite.ToolGraderSpec{Function: "nope"})
	require.ErrorContains(t, err, `unknown tool function "nope"`)
}

func TestExactMatch(t *testing.T) {
	sample := &models.Sample{GroundTruth: []string{"Paris"}}

	t.Run("match ignores surrounding whitespace", func(t *testing.T) {
		result := exactMatch(sample, "  Paris\n")
		require.Equal(t, 1.0, result.Score)
	})

	t.Run("mismatch", func(t *testing.T) {
		result := exactMatch(sample, "paris")
		require.Equal(t, 0.0, result.Score)
		require.Contains(t, result.Rationale, "false")
	})

	t.Run("no ground truth scores zero", func(t *testing.T) {
		result := exactMatch(&models.Sample{}, "anything")
		require.Equal(t, 0.0, result.Score)
		require.Contains(t, result.Rationale, "no ground_truth")
	})
}

func TestContains(t *testing.T) {
	sample := &models.Sample{GroundTruth: []string{"Paris"}}

	t.Run("case-insensitive substring", func(t *testing.T) {
		result := containsGroundTruth(sample, "The capital is PARIS, of course.")
		require.Equal(t, 1.0, result.Score)
	})

	t.Run("absent", func(t *testing.T) {
		result := containsGroundTruth(sample, "London")
		require.Equal(t, 0.0, result.Score)
	})
}

func TestRegexMatch(t *testing.T) {
	t.Run("pattern comes from ground truth", func(t *testing.T) {
		sample := &models.Sample{GroundTruth: []string{`^\d+$`}}
		require.Equal(t, 1.0, regexMatch(sample, "42").Score)
		require.Equal(t, 0.0, regexMatch(sample, "forty-two").Score)
	})

	t.Run("invalid pattern scores zero with reason", func(t *testing.T) {
		sample := &models.Sample{GroundTruth: []string{`([`}}
		result := regexMatch(sample, "42")
		require.Equal(t, 0.0, result.Score)
		require.Contains(t, result.Rationale, "invalid regex")
	})
}

func TestAsciiOnly(t *testing.T) {
	t.Run("plain text passes", func(t *testing.T) {
		require.Equal(t, 1.0, asciiOnly(&models.Sample{}, "hello world\n").Score)
	})

	t.Run("non-ASCII fails with position", func(t *testing.T) {
		result := asciiOnly(&models.Sample{}, "café")
		require.Equal(t, 0.0, result.Score)
		require.Contains(t, result.Rationale, "non-ASCII")
	})
}

func TestToolGraderGrade(t *testing.T) {
	g, err := NewToolGrader("check", &suite.ToolGraderSpec{Function: "contains"})
	require.NoError(t, err)

	result, err := g.Grade(context.Background(), &models.Sample{GroundTruth: []string{"42"}}, "the answer is 42")
	require.NoError(t, err)
	require.Equal(t, 1.0, result.Score)
}
