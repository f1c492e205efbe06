package suite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const validSuite = `
name: arithmetic
description: Basic arithmetic checks
dataset: dataset.jsonl

target:
  kind: mock
  models:
    - gpt-4o-mini
    - name: fast
      model: gpt-4o-mini
      temperature: 0.2

runner:
  concurrency: 4
  runs: 2
  max_attempts: 2
  timeout_seconds: 30

graders:
  correctness:
    kind: tool
    function: exact_match
  format:
    kind: tool
    function: ascii_only
    extractor: last_turn
  overall:
    kind: aggregation
    function: weighted_sum
    depends_on: [correctness, format]
    weights:
      correctness: 0.7
      format: 0.3

gate:
  kind: simple
  metric: overall
  aggregation: avg_score
  op: gte
  value: 0.75
`

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	spec, err := Load(writeSuite(t, validSuite))
	require.NoError(t, err)

	require.Equal(t, "arithmetic", spec.Name)
	require.Equal(t, "dataset.jsonl", spec.Dataset)
	require.Equal(t, 4, spec.Runner.Concurrency)
	require.Equal(t, 2, spec.Runner.Runs)

	t.Run("model handles accept scalar and mapping forms", func(t *testing.T) {
		require.Len(t, spec.Target.Models, 2)
		require.Equal(t, "gpt-4o-mini", spec.Target.Models[0].Name)
		require.Equal(t, "gpt-4o-mini", spec.Target.Models[0].Model)
		require.Equal(t, "fast", spec.Target.Models[1].Name)
		require.NotNil(t, spec.Target.Models[1].Temperature)
	})

	t.Run("grader order follows the document", func(t *testing.T) {
		require.Equal(t, []string{"correctness", "format", "overall"}, spec.Graders.Keys())
	})

	t.Run("grader variants decode their kind-specific fields", func(t *testing.T) {
		gs, ok := spec.Graders.Get("overall")
		require.True(t, ok)
		require.True(t, gs.IsAggregation())
		require.Equal(t, []string{"correctness", "format"}, gs.Aggregation.DependsOn)
		require.Equal(t, 0.7, gs.Aggregation.Weights["correctness"])
	})

	t.Run("gate decodes as a simple gate", func(t *testing.T) {
		require.Equal(t, GateSimple, spec.Gate.Kind)
		require.Equal(t, "overall", spec.Gate.Simple.Metric)
		require.Equal(t, OpGTE, spec.Gate.Simple.Op)
	})

	t.Run("dataset path resolves against the suite directory", func(t *testing.T) {
		require.Equal(t, filepath.Join(spec.BaseDir, "dataset.jsonl"), spec.DatasetPath())
	})
}

func TestLoad_PromptPathInlined(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rubric.md"), []byte("Score helpfulness."), 0o644))

	doc := `
name: rubric-suite
dataset: data.jsonl
target:
  kind: mock
  models: [gpt-4o-mini]
graders:
  quality:
    kind: rubric
    prompt_path: rubric.md
gate:
  kind: simple
  metric: quality
  aggregation: avg_score
  op: gte
  value: 0.5
`
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	spec, err := Load(path)
	require.NoError(t, err)

	gs, ok := spec.Graders.Get("quality")
	require.True(t, ok)
	require.Equal(t, "Score helpfulness.", gs.Rubric.Prompt)
	require.Empty(t, gs.Rubric.PromptPath)
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Run("missing required fields", func(t *testing.T) {
		_, err := Load(writeSuite(t, "name: x\n"))
		require.ErrorContains(t, err, "does not conform to schema")
	})

	t.Run("unknown top-level key", func(t *testing.T) {
		_, err := Load(writeSuite(t, validSuite+"\nextra_key: true\n"))
		require.ErrorContains(t, err, "does not conform to schema")
	})
}

func TestValidate(t *testing.T) {
	base := func() *Spec {
		spec, err := Load(writeSuite(t, validSuite))
		require.NoError(t, err)
		return spec
	}

	t.Run("valid suite passes", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("duplicate model handle names", func(t *testing.T) {
		spec := base()
		spec.Target.Models = append(spec.Target.Models, ModelHandle{Name: "fast", Model: "other"})
		require.ErrorContains(t, spec.Validate(), `duplicate model handle name "fast"`)
	})

	t.Run("pass threshold out of range", func(t *testing.T) {
		spec := base()
		threshold := 1.5
		spec.PassThreshold = &threshold
		require.ErrorContains(t, spec.Validate(), "pass_threshold")
	})

	t.Run("aggregation depending on itself", func(t *testing.T) {
		spec := base()
		gs, _ := spec.Graders.Get("overall")
		gs.Aggregation.DependsOn = []string{"overall"}
		require.ErrorContains(t, spec.Validate(), "depends on itself")
	})

	t.Run("aggregation depending on unknown grader", func(t *testing.T) {
		spec := base()
		gs, _ := spec.Graders.Get("overall")
		gs.Aggregation.DependsOn = []string{"missing"}
		require.ErrorContains(t, spec.Validate(), `unknown grader "missing"`)
	})

	t.Run("negative aggregation weight", func(t *testing.T) {
		spec := base()
		gs, _ := spec.Graders.Get("overall")
		gs.Aggregation.Weights = map[string]float64{"correctness": -1}
		require.ErrorContains(t, spec.Validate(), "negative weight")
	})

	t.Run("gate referencing undeclared metric", func(t *testing.T) {
		spec := base()
		spec.Gate.Simple.Metric = "nonexistent"
		require.ErrorContains(t, spec.Validate(), "nonexistent")
	})
}

func TestEffectivePassThreshold(t *testing.T) {
	t.Run("unset falls back to the default", func(t *testing.T) {
		spec, err := Load(writeSuite(t, validSuite))
		require.NoError(t, err)
		require.Nil(t, spec.PassThreshold)
		require.Equal(t, 1.0, spec.EffectivePassThreshold())
	})

	t.Run("an explicit zero is honored, not defaulted", func(t *testing.T) {
		spec, err := Load(writeSuite(t, validSuite+"\npass_threshold: 0\n"))
		require.NoError(t, err)
		require.NoError(t, spec.Validate())
		require.Equal(t, 0.0, spec.EffectivePassThreshold())
	})

	t.Run("explicit non-default value", func(t *testing.T) {
		spec, err := Load(writeSuite(t, validSuite+"\npass_threshold: 0.5\n"))
		require.NoError(t, err)
		require.Equal(t, 0.5, spec.EffectivePassThreshold())
	})
}

func TestCheckDependencyCycles(t *testing.T) {
	aggSpec := func(deps ...string) GraderSpec {
		return GraderSpec{
			Kind:        GraderAggregation,
			Aggregation: &AggregationGraderSpec{Function: "mean", DependsOn: deps},
		}
	}
	toolSpec := GraderSpec{Kind: GraderTool, Tool: &ToolGraderSpec{Function: "exact_match"}}

	t.Run("two-node cycle is rejected with members named", func(t *testing.T) {
		graders := GraderList{
			{Key: "a", Spec: aggSpec("b")},
			{Key: "b", Spec: aggSpec("a")},
		}
		err := checkDependencyCycles(graders)
		require.ErrorContains(t, err, "cyclic grader dependencies among: a, b")
	})

	t.Run("diamond dependency is fine", func(t *testing.T) {
		graders := GraderList{
			{Key: "base", Spec: toolSpec},
			{Key: "left", Spec: aggSpec("base")},
			{Key: "right", Spec: aggSpec("base")},
			{Key: "top", Spec: aggSpec("left", "right")},
		}
		require.NoError(t, checkDependencyCycles(graders))
	})
}

func TestTopoOrderAggregations(t *testing.T) {
	aggSpec := func(deps ...string) GraderSpec {
		return GraderSpec{
			Kind:        GraderAggregation,
			Aggregation: &AggregationGraderSpec{Function: "mean", DependsOn: deps},
		}
	}
	toolSpec := GraderSpec{Kind: GraderTool, Tool: &ToolGraderSpec{Function: "exact_match"}}

	// "top" is declared before its dependency "mid"; topo order must put
	// "mid" first anyway.
	graders := GraderList{
		{Key: "base", Spec: toolSpec},
		{Key: "top", Spec: aggSpec("mid")},
		{Key: "mid", Spec: aggSpec("base")},
	}

	order := TopoOrderAggregations(graders)
	require.Equal(t, []string{"mid", "top"}, order)
}

func TestGateSpecUnmarshal(t *testing.T) {
	t.Run("logical gates nest", func(t *testing.T) {
		doc := `
kind: logical
op: and
conditions:
  - kind: simple
    metric: a
    aggregation: avg_score
    op: gte
    value: 0.5
  - kind: weighted_average
    weights: {a: 0.7, b: 0.3}
    aggregation: avg_score
    op: gte
    value: 0.75
`
		var g GateSpec
		require.NoError(t, yaml.Unmarshal([]byte(doc), &g))
		require.Equal(t, GateLogical, g.Kind)
		require.Equal(t, LogicalAnd, g.Logical.Op)
		require.Len(t, g.Logical.Conditions, 2)
		require.Equal(t, GateSimple, g.Logical.Conditions[0].Kind)
		require.Equal(t, GateWeightedAverage, g.Logical.Conditions[1].Kind)
	})

	t.Run("missing kind", func(t *testing.T) {
		var g GateSpec
		require.ErrorContains(t, yaml.Unmarshal([]byte("op: and"), &g), "missing 'kind'")
	})

	t.Run("unknown kind", func(t *testing.T) {
		var g GateSpec
		require.ErrorContains(t, yaml.Unmarshal([]byte("kind: fuzzy"), &g), "unknown gate kind")
	})
}
