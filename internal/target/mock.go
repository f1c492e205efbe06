package target

import (
	"context"
	"fmt"
	"sync"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

// EchoTarget answers every turn with a canned echo of the input. Useful
// for dry-running a suite's plumbing without a provider.
type EchoTarget struct{}

func NewEchoTarget() *EchoTarget { return &EchoTarget{} }

// Run implements [Target].
func (t *EchoTarget) Run(ctx context.Context, handle suite.ModelHandle, sample models.Sample) (*Response, error) {
	trajectory := make(models.Trajectory, 0, len(sample.Input))
	for _, input := range sample.Input {
		trajectory = append(trajectory, []models.Message{
			{Role: models.RoleUser, Content: input},
			{Role: models.RoleAssistant, Content: fmt.Sprintf("echo: %s", input)},
		})
	}
	return &Response{Trajectory: trajectory}, nil
}

// ScriptedTarget is a test double with programmable replies and failure
// injection. Replies are keyed by the sample's first input turn; samples
// without a scripted reply fall back to an echo.
type ScriptedTarget struct {
	mu sync.Mutex

	// Replies maps a sample's first input turn to the per-turn assistant
	// replies to produce.
	Replies map[string][]string

	// FailFirst injects a failure into the first N attempts for a given
	// first-input key.
	FailFirst map[string]int

	// Terminal marks injected failures as terminal instead of transient.
	Terminal bool

	attempts map[string]int
}

func NewScriptedTarget() *ScriptedTarget {
	return &ScriptedTarget{
		Replies:   map[string][]string{},
		FailFirst: map[string]int{},
		attempts:  map[string]int{},
	}
}

// Attempts reports how many times Run was invoked for the given key.
func (t *ScriptedTarget) Attempts(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts[key]
}

// Run implements [Target].
func (t *ScriptedTarget) Run(ctx context.Context, handle suite.ModelHandle, sample models.Sample) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := sample.Input[0]

	t.mu.Lock()
	t.attempts[key]++
	attempt := t.attempts[key]
	remaining := t.FailFirst[key]
	replies := t.Replies[key]
	terminal := t.Terminal
	t.mu.Unlock()

	if attempt <= remaining {
		err := fmt.Errorf("scripted failure for %q (attempt %d)", key, attempt)
		if terminal {
			return nil, err
		}
		return nil, Transient(err)
	}

	trajectory := make(models.Trajectory, 0, len(sample.Input))
	for i, input := range sample.Input {
		reply := fmt.Sprintf("echo: %s", input)
		if i < len(replies) {
			reply = replies[i]
		}
		trajectory = append(trajectory, []models.Message{
			{Role: models.RoleUser, Content: input},
			{Role: models.RoleAssistant, Content: reply},
		})
	}
	return &Response{Trajectory: trajectory}, nil
}
