package target

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

func TestNew(t *testing.T) {
	t.Run("mock kind", func(t *testing.T) {
		tgt, err := New(suite.TargetSpec{Kind: "mock"})
		require.NoError(t, err)
		require.IsType(t, &EchoTarget{}, tgt)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := New(suite.TargetSpec{Kind: "carrier-pigeon"})
		require.ErrorContains(t, err, `unknown target kind "carrier-pigeon"`)
	})

	t.Run("chat requires an api key", func(t *testing.T) {
		t.Setenv("GAUNTLET_TEST_KEY", "")
		_, err := New(suite.TargetSpec{Kind: "chat", APIKeyEnv: "GAUNTLET_TEST_KEY"})
		require.ErrorContains(t, err, "GAUNTLET_TEST_KEY is not set")
	})
}

func TestTransientClassification(t *testing.T) {
	t.Run("wrapped errors are transient", func(t *testing.T) {
		err := Transient(errors.New("overloaded"))
		require.True(t, IsTransient(err))
		require.ErrorContains(t, err, "transient: overloaded")
	})

	t.Run("wrapping preserves the cause", func(t *testing.T) {
		cause := errors.New("overloaded")
		require.ErrorIs(t, Transient(cause), cause)
	})

	t.Run("plain errors are terminal", func(t *testing.T) {
		require.False(t, IsTransient(errors.New("bad request")))
	})

	t.Run("deadline expiry is transient", func(t *testing.T) {
		require.True(t, IsTransient(context.DeadlineExceeded))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, Transient(nil))
	})
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limit", 429, true},
		{"timeout", 408, true},
		{"server error", 503, true},
		{"bad request", 400, false},
		{"not found", 404, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify(&openai.APIError{HTTPStatusCode: tc.status})
			require.Equal(t, tc.transient, IsTransient(err))
		})
	}

	t.Run("cancellation passes through untouched", func(t *testing.T) {
		err := classify(context.Canceled)
		require.ErrorIs(t, err, context.Canceled)
		require.False(t, IsTransient(err))
	})

	t.Run("connection-level failures are transient", func(t *testing.T) {
		require.True(t, IsTransient(classify(errors.New("connection reset"))))
	})
}

func TestEchoTarget(t *testing.T) {
	tgt := NewEchoTarget()
	sample := models.Sample{Input: []string{"hello", "again"}}

	resp, err := tgt.Run(context.Background(), suite.ModelHandle{Name: "m", Model: "m"}, sample)
	require.NoError(t, err)
	require.Len(t, resp.Trajectory, 2)
	require.Equal(t, "echo: hello", resp.Trajectory[0][1].Content)
}

func TestScriptedTarget(t *testing.T) {
	t.Run("scripted replies", func(t *testing.T) {
		tgt := NewScriptedTarget()
		tgt.Replies["q"] = []string{"first", "second"}

		resp, err := tgt.Run(context.Background(), suite.ModelHandle{}, models.Sample{Input: []string{"q", "more"}})
		require.NoError(t, err)
		require.Equal(t, "first", resp.Trajectory[0][1].Content)
		require.Equal(t, "second", resp.Trajectory[1][1].Content)
	})

	t.Run("failure injection counts attempts", func(t *testing.T) {
		tgt := NewScriptedTarget()
		tgt.FailFirst["q"] = 1

		_, err := tgt.Run(context.Background(), suite.ModelHandle{}, models.Sample{Input: []string{"q"}})
		require.Error(t, err)
		require.True(t, IsTransient(err))

		_, err = tgt.Run(context.Background(), suite.ModelHandle{}, models.Sample{Input: []string{"q"}})
		require.NoError(t, err)
		require.Equal(t, 2, tgt.Attempts("q"))
	})
}
