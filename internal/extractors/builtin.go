package extractors

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/gauntlet-eval/gauntlet/internal/models"
)

func init() {
	Register("last_assistant", newLastAssistant)
	Register("first_assistant", newFirstAssistant)
	Register("all_assistant", newAllAssistant)
	Register("last_turn", newLastTurn)
	Register("pattern", newPattern)
	Register("tool_arguments", newToolArguments)
	Register("tool_output", newToolOutput)
	Register("after_marker", newAfterMarker)
}

func newLastAssistant(cfg Config) (Extractor, error) {
	return func(traj models.Trajectory) string {
		msgs := traj.AssistantMessages()
		if len(msgs) == 0 {
			return ""
		}
		return msgs[len(msgs)-1].Content
	}, nil
}

func newFirstAssistant(cfg Config) (Extractor, error) {
	return func(traj models.Trajectory) string {
		msgs := traj.AssistantMessages()
		if len(msgs) == 0 {
			return ""
		}
		return msgs[0].Content
	}, nil
}

type separatorConfig struct {
	Separator string `mapstructure:"separator"`
}

func newAllAssistant(cfg Config) (Extractor, error) {
	var c separatorConfig
	if err := mapstructure.Decode(map[string]any(cfg), &c); err != nil {
		return nil, err
	}
	if c.Separator == "" {
		c.Separator = "\n"
	}

	return func(traj models.Trajectory) string {
		var parts []string
		for _, msg := range traj.AssistantMessages() {
			parts = append(parts, msg.Content)
		}
		return strings.Join(parts, c.Separator)
	}, nil
}

func newLastTurn(cfg Config) (Extractor, error) {
	var c separatorConfig
	if err := mapstructure.Decode(map[string]any(cfg), &c); err != nil {
		return nil, err
	}
	if c.Separator == "" {
		c.Separator = "\n"
	}

	return func(traj models.Trajectory) string {
		var parts []string
		for _, msg := range traj.LastTurn() {
			if msg.Role == models.RoleAssistant && msg.ToolCall == nil {
				parts = append(parts, msg.Content)
			}
		}
		return strings.Join(parts, c.Separator)
	}, nil
}

func newPattern(cfg Config) (Extractor, error) {
	var c struct {
		Pattern   string `mapstructure:"pattern"`
		Group     int    `mapstructure:"group"`
		SearchAll bool   `mapstructure:"search_all"`
	}
	if err := mapstructure.Decode(map[string]any(cfg), &c); err != nil {
		return nil, err
	}
	if c.Pattern == "" {
		return nil, errors.New("required field 'pattern' is missing")
	}
	re, err := regexp.Compile(c.Pattern)
	if err != nil {
		return nil, err
	}
	if c.Group < 0 || c.Group > re.NumSubexp() {
		return nil, errors.New("'group' is out of range for the pattern")
	}

	return func(traj models.Trajectory) string {
		msgs := traj.AssistantMessages()
		// Search newest message first, matching how a human reads an answer
		// off the end of the transcript.
		for i := len(msgs) - 1; i >= 0; i-- {
			content := msgs[i].Content
			if c.SearchAll {
				matches := re.FindAllStringSubmatch(content, -1)
				if len(matches) == 0 {
					continue
				}
				parts := make([]string, 0, len(matches))
				for _, m := range matches {
					parts = append(parts, m[c.Group])
				}
				return strings.Join(parts, " ")
			}
			if m := re.FindStringSubmatch(content); m != nil {
				return m[c.Group]
			}
		}
		return ""
	}, nil
}

type toolNameConfig struct {
	ToolName string `mapstructure:"tool_name"`
}

func newToolArguments(cfg Config) (Extractor, error) {
	var c toolNameConfig
	if err := mapstructure.Decode(map[string]any(cfg), &c); err != nil {
		return nil, err
	}
	if c.ToolName == "" {
		return nil, errors.New("required field 'tool_name' is missing")
	}

	return func(traj models.Trajectory) string {
		for _, turn := range traj {
			for _, msg := range turn {
				if msg.ToolCall != nil && msg.ToolCall.Name == c.ToolName {
					return msg.ToolCall.Arguments
				}
			}
		}
		// "{}" keeps JSON-expecting graders parseable on a miss.
		return "{}"
	}, nil
}

func newToolOutput(cfg Config) (Extractor, error) {
	var c toolNameConfig
	if err := mapstructure.Decode(map[string]any(cfg), &c); err != nil {
		return nil, err
	}
	if c.ToolName == "" {
		return nil, errors.New("required field 'tool_name' is missing")
	}

	return func(traj models.Trajectory) string {
		callID := ""
		for _, turn := range traj {
			for _, msg := range turn {
				if msg.ToolCall != nil && msg.ToolCall.Name == c.ToolName {
					callID = msg.ToolCall.ID
					break
				}
			}
			if callID != "" {
				break
			}
		}
		if callID == "" {
			return ""
		}

		for _, turn := range traj {
			for _, msg := range turn {
				if msg.ToolReturn != nil && msg.ToolReturn.ToolCallID == callID {
					return msg.ToolReturn.Content
				}
			}
		}
		return ""
	}, nil
}

func newAfterMarker(cfg Config) (Extractor, error) {
	var c struct {
		Marker        string `mapstructure:"marker"`
		IncludeMarker bool   `mapstructure:"include_marker"`
	}
	if err := mapstructure.Decode(map[string]any(cfg), &c); err != nil {
		return nil, err
	}
	if c.Marker == "" {
		return nil, errors.New("required field 'marker' is missing")
	}

	return func(traj models.Trajectory) string {
		msgs := traj.AssistantMessages()
		for i := len(msgs) - 1; i >= 0; i-- {
			content := msgs[i].Content
			idx := strings.Index(content, c.Marker)
			if idx < 0 {
				continue
			}
			if c.IncludeMarker {
				return strings.TrimSpace(content[idx:])
			}
			return strings.TrimSpace(content[idx+len(c.Marker):])
		}
		return ""
	}, nil
}
