package suite

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gauntlet-eval/gauntlet/internal/stats"
)

// GraderKind identifies the grader variant.
type GraderKind string

const (
	GraderTool        GraderKind = "tool"
	GraderRubric      GraderKind = "rubric"
	GraderAgentJudge  GraderKind = "agent_judge"
	GraderAggregation GraderKind = "aggregation"
)

// GateKind identifies the gate variant.
type GateKind string

const (
	GateSimple          GateKind = "simple"
	GateLogical         GateKind = "logical"
	GateWeightedAverage GateKind = "weighted_average"
)

// Op is a comparison operator used by gates.
type Op string

const (
	OpGT  Op = "gt"
	OpGTE Op = "gte"
	OpLT  Op = "lt"
	OpLTE Op = "lte"
	OpEQ  Op = "eq"
)

// Compare applies the operator to (value, threshold).
func (op Op) Compare(value, threshold float64) (bool, error) {
	switch op {
	case OpGT:
		return value > threshold, nil
	case OpGTE:
		return value >= threshold, nil
	case OpLT:
		return value < threshold, nil
	case OpLTE:
		return value <= threshold, nil
	case OpEQ:
		return value == threshold, nil
	default:
		return false, fmt.Errorf("suite: unknown comparison operator %q", op)
	}
}

// LogicalOp combines child gate conditions.
type LogicalOp string

const (
	LogicalAnd LogicalOp = "and"
	LogicalOr  LogicalOp = "or"
)

// ModelHandle identifies one target configuration. A suite declares 1..N
// handles and every sample is evaluated once per handle.
type ModelHandle struct {
	// Name is the identifier used in results; defaults to Model.
	Name string `yaml:"name"`
	// Model is the provider model identifier.
	Model string `yaml:"model"`
	// Temperature overrides the target default when set.
	Temperature *float32 `yaml:"temperature,omitempty"`
	// Settings carries target-kind-specific options.
	Settings map[string]any `yaml:"settings,omitempty"`
}

// UnmarshalYAML accepts either a bare model string or a full mapping.
func (m *ModelHandle) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		m.Name = s
		m.Model = s
		return nil
	}

	type handle ModelHandle
	var h handle
	if err := node.Decode(&h); err != nil {
		return err
	}
	*m = ModelHandle(h)
	if m.Name == "" {
		m.Name = m.Model
	}
	return nil
}

// TargetSpec configures how samples are executed.
type TargetSpec struct {
	// Kind selects the target adapter: "chat" or "mock".
	Kind       string        `yaml:"kind"`
	Models     []ModelHandle `yaml:"models"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	APIKeyEnv  string        `yaml:"api_key_env,omitempty"`
	WorkingDir string        `yaml:"working_directory,omitempty"`

	// SystemPrompt, when set, is prepended to every conversation.
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

// RunnerSpec configures scheduling behavior.
type RunnerSpec struct {
	Concurrency int `yaml:"concurrency,omitempty"`
	// Runs repeats the whole unit set to quantify evaluation noise.
	Runs        int     `yaml:"runs,omitempty"`
	MaxAttempts int     `yaml:"max_attempts,omitempty"`
	TimeoutSec  int     `yaml:"timeout_seconds,omitempty"`
	BackoffSec  float64 `yaml:"backoff_seconds,omitempty"`
}

// ToolGraderSpec runs a registered grading function against the extracted
// submission.
type ToolGraderSpec struct {
	Function string `yaml:"function"`
	// Config carries function-specific options for config-driven functions
	// such as keyword and json_schema.
	Config          map[string]any `yaml:"config,omitempty"`
	Extractor       string         `yaml:"extractor,omitempty"`
	ExtractorConfig map[string]any `yaml:"extractor_config,omitempty"`
}

// RubricGraderSpec grades with a model-as-judge against a rubric prompt.
type RubricGraderSpec struct {
	Prompt          string         `yaml:"prompt,omitempty"`
	PromptPath      string         `yaml:"prompt_path,omitempty"`
	Model           string         `yaml:"model,omitempty"`
	Temperature     float32        `yaml:"temperature,omitempty"`
	Extractor       string         `yaml:"extractor,omitempty"`
	ExtractorConfig map[string]any `yaml:"extractor_config,omitempty"`
}

// AgentJudgeSpec grades with a tool-using judge agent that reports its
// verdict through pass/fail grading tools rather than a parsed score.
type AgentJudgeSpec struct {
	Prompt          string         `yaml:"prompt,omitempty"`
	PromptPath      string         `yaml:"prompt_path,omitempty"`
	Model           string         `yaml:"model,omitempty"`
	Extractor       string         `yaml:"extractor,omitempty"`
	ExtractorConfig map[string]any `yaml:"extractor_config,omitempty"`
}

// AggregationGraderSpec derives a score from other graders' scores instead
// of processing the trajectory. DependsOn names the grader keys whose
// scores are passed to the aggregation function; the relation across the
// whole suite must be acyclic.
type AggregationGraderSpec struct {
	Function  string             `yaml:"function"`
	DependsOn []string           `yaml:"depends_on"`
	Weights   map[string]float64 `yaml:"weights,omitempty"`
}

// GraderSpec is a tagged variant: exactly one of the kind-specific fields
// is set, matching Kind.
type GraderSpec struct {
	Kind        GraderKind
	Tool        *ToolGraderSpec
	Rubric      *RubricGraderSpec
	AgentJudge  *AgentJudgeSpec
	Aggregation *AggregationGraderSpec
}

// IsAggregation reports whether this grader depends on other graders'
// outputs instead of the trajectory.
func (g *GraderSpec) IsAggregation() bool { return g.Kind == GraderAggregation }

// ExtractorRef returns the configured extractor name and config for
// non-aggregation kinds. The empty name means the default extractor.
func (g *GraderSpec) ExtractorRef() (string, map[string]any) {
	switch g.Kind {
	case GraderTool:
		return g.Tool.Extractor, g.Tool.ExtractorConfig
	case GraderRubric:
		return g.Rubric.Extractor, g.Rubric.ExtractorConfig
	case GraderAgentJudge:
		return g.AgentJudge.Extractor, g.AgentJudge.ExtractorConfig
	}
	return "", nil
}

func (g *GraderSpec) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Kind GraderKind `yaml:"kind"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}

	g.Kind = head.Kind
	switch head.Kind {
	case GraderTool:
		g.Tool = &ToolGraderSpec{}
		return node.Decode(g.Tool)
	case GraderRubric:
		g.Rubric = &RubricGraderSpec{}
		return node.Decode(g.Rubric)
	case GraderAgentJudge:
		g.AgentJudge = &AgentJudgeSpec{}
		return node.Decode(g.AgentJudge)
	case GraderAggregation:
		g.Aggregation = &AggregationGraderSpec{}
		return node.Decode(g.Aggregation)
	case "":
		return fmt.Errorf("suite: grader is missing 'kind'")
	default:
		return fmt.Errorf("suite: unknown grader kind %q", head.Kind)
	}
}

// GraderEntry pairs a grader key with its spec.
type GraderEntry struct {
	Key  string
	Spec GraderSpec
}

// GraderList preserves the document order of the graders mapping.
type GraderList []GraderEntry

func (l *GraderList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("suite: graders must be a mapping of key to grader spec")
	}

	// Mapping node content alternates key, value.
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		var spec GraderSpec
		if err := node.Content[i+1].Decode(&spec); err != nil {
			return fmt.Errorf("suite: grader %q: %w", key, err)
		}
		*l = append(*l, GraderEntry{Key: key, Spec: spec})
	}
	return nil
}

// Get returns the spec for a grader key.
func (l GraderList) Get(key string) (*GraderSpec, bool) {
	for i := range l {
		if l[i].Key == key {
			return &l[i].Spec, true
		}
	}
	return nil, false
}

// Keys returns grader keys in document order.
func (l GraderList) Keys() []string {
	keys := make([]string, 0, len(l))
	for _, e := range l {
		keys = append(keys, e.Key)
	}
	return keys
}

// SimpleGateSpec compares one aggregated metric against a threshold.
type SimpleGateSpec struct {
	Metric      string  `yaml:"metric"`
	Aggregation string  `yaml:"aggregation"`
	Op          Op      `yaml:"op"`
	Value       float64 `yaml:"value"`
}

// LogicalGateSpec combines nested conditions with AND/OR.
type LogicalGateSpec struct {
	Op         LogicalOp  `yaml:"op"`
	Conditions []GateSpec `yaml:"conditions"`
}

// WeightedGateSpec compares a weight-normalized sum of aggregated metrics
// against a threshold. One aggregation function is applied uniformly to
// every metric.
type WeightedGateSpec struct {
	Weights     map[string]float64 `yaml:"weights"`
	Aggregation string             `yaml:"aggregation"`
	Op          Op                 `yaml:"op"`
	Value       float64            `yaml:"value"`
}

// GateSpec is a tagged variant; logical nodes nest arbitrarily deep.
type GateSpec struct {
	Kind     GateKind
	Simple   *SimpleGateSpec
	Logical  *LogicalGateSpec
	Weighted *WeightedGateSpec
}

func (g *GateSpec) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Kind GateKind `yaml:"kind"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}

	g.Kind = head.Kind
	switch head.Kind {
	case GateSimple:
		g.Simple = &SimpleGateSpec{}
		return node.Decode(g.Simple)
	case GateLogical:
		g.Logical = &LogicalGateSpec{}
		return node.Decode(g.Logical)
	case GateWeightedAverage:
		g.Weighted = &WeightedGateSpec{}
		return node.Decode(g.Weighted)
	case "":
		return fmt.Errorf("suite: gate is missing 'kind'")
	default:
		return fmt.Errorf("suite: unknown gate kind %q", head.Kind)
	}
}

// GateScope selects whether the gate is evaluated per model or over the
// pooled results of every model.
type GateScope string

const (
	GateScopePerModel GateScope = "per_model"
	GateScopeCombined GateScope = "combined"
)

// Spec is a complete, parsed suite configuration document.
type Spec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	Dataset    string   `yaml:"dataset"`
	MaxSamples int      `yaml:"max_samples,omitempty"`
	SampleTags []string `yaml:"sample_tags,omitempty"`

	Target TargetSpec `yaml:"target"`
	Runner RunnerSpec `yaml:"runner,omitempty"`

	Graders GraderList `yaml:"graders"`

	Gate      GateSpec  `yaml:"gate"`
	GateScope GateScope `yaml:"gate_scope,omitempty"`

	// PassThreshold is the score a sample must reach to count toward the
	// accuracy aggregation. A pointer so an explicit 0 is distinguishable
	// from unset.
	PassThreshold *float64 `yaml:"pass_threshold,omitempty"`

	// BaseDir is the directory the suite file was loaded from; relative
	// dataset and prompt paths resolve against it. Not part of the document.
	BaseDir string `yaml:"-"`
}

// EffectivePassThreshold returns the configured pass threshold or the
// default.
func (s *Spec) EffectivePassThreshold() float64 {
	if s.PassThreshold != nil {
		return *s.PassThreshold
	}
	return stats.DefaultPassThreshold
}

// EffectiveGateScope returns the configured gate scope or the default.
func (s *Spec) EffectiveGateScope() GateScope {
	if s.GateScope == "" {
		return GateScopePerModel
	}
	return s.GateScope
}
