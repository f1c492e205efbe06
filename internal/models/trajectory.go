package models

// Role identifies the author of a trajectory message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall records a tool invocation made by the target during a turn.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolReturn records the output produced for a prior tool call.
type ToolReturn struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// Message is a single interaction event inside a turn.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolReturn *ToolReturn `json:"tool_return,omitempty"`
}

// Trajectory is the full recorded interaction for one (sample, model)
// execution: an ordered sequence of turns, each an ordered sequence of
// messages. It is produced once by the target and never mutated; graders
// and extractors only read it.
type Trajectory [][]Message

// UpToTurn returns the trajectory restricted to turns [0, turn]. Extractors
// use this in per-turn mode so a turn's submission cannot depend on later
// turns. The returned value shares backing storage with the receiver.
func (t Trajectory) UpToTurn(turn int) Trajectory {
	if turn < 0 {
		return nil
	}
	if turn >= len(t)-1 {
		return t
	}
	return t[:turn+1]
}

// AssistantMessages returns every assistant message in turn order.
func (t Trajectory) AssistantMessages() []Message {
	var out []Message
	for _, turn := range t {
		for _, msg := range turn {
			if msg.Role == RoleAssistant && msg.ToolCall == nil {
				out = append(out, msg)
			}
		}
	}
	return out
}

// LastTurn returns the messages of the final turn, or nil for an empty
// trajectory.
func (t Trajectory) LastTurn() []Message {
	if len(t) == 0 {
		return nil
	}
	return t[len(t)-1]
}
