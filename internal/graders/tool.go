package graders

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

// ToolFunc is a registered grading function: pure, I/O-free logic over the
// sample and the extracted submission.
type ToolFunc func(sample *models.Sample, submission string) models.GradeResult

// ToolFactory binds grader config into a ToolFunc. Config errors surface
// here, at engine-construction time, never during a run.
type ToolFactory func(config map[string]any) (ToolFunc, error)

var (
	toolMu        sync.RWMutex
	toolRegistry  = map[string]ToolFunc{}
	toolFactories = map[string]ToolFactory{}
)

// RegisterTool adds a named grading function. Duplicate names panic; the
// registry is a fixed vocabulary established at init time.
func RegisterTool(name string, fn ToolFunc) {
	toolMu.Lock()
	defer toolMu.Unlock()
	if _, exists := toolRegistry[name]; exists {
		panic(fmt.Sprintf("graders: tool function %q registered twice", name))
	}
	toolRegistry[name] = fn
}

// RegisterToolFactory adds a named config-driven grading function.
func RegisterToolFactory(name string, factory ToolFactory) {
	toolMu.Lock()
	defer toolMu.Unlock()
	if _, exists := toolFactories[name]; exists {
		panic(fmt.Sprintf("graders: tool function %q registered twice", name))
	}
	toolFactories[name] = factory
}

// ToolNames returns the registered tool function names, sorted.
func ToolNames() []string {
	toolMu.RLock()
	defer toolMu.RUnlock()
	names := make([]string, 0, len(toolRegistry)+len(toolFactories))
	for name := range toolRegistry {
		names = append(names, name)
	}
	for name := range toolFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type toolGrader struct {
	key string
	fn  ToolFunc
}

// NewToolGrader resolves the spec's function reference against the
// registry. An unknown name is a configuration error, caught before any
// sample executes.
func NewToolGrader(key string, spec *suite.ToolGraderSpec) (*toolGrader, error) {
	toolMu.RLock()
	fn, ok := toolRegistry[spec.Function]
	factory, isFactory := toolFactories[spec.Function]
	toolMu.RUnlock()

	if isFactory {
		built, err := factory(spec.Config)
		if err != nil {
			return nil, fmt.Errorf("graders: %q: %w", key, err)
		}
		return &toolGrader{key: key, fn: built}, nil
	}
	if !ok {
		return nil, fmt.Errorf("graders: %q references unknown tool function %q (known: %v)", key, spec.Function, ToolNames())
	}
	return &toolGrader{key: key, fn: fn}, nil
}

func (g *toolGrader) Key() string            { return g.key }
func (g *toolGrader) Kind() suite.GraderKind { return suite.GraderTool }

func (g *toolGrader) Grade(ctx context.Context, sample *models.Sample, submission string) (models.GradeResult, error) {
	return g.fn(sample, submission), nil
}

func init() {
	RegisterTool("exact_match", exactMatch)
	RegisterTool("contains", containsGroundTruth)
	RegisterTool("regex_match", regexMatch)
	RegisterTool("ascii_only", asciiOnly)
	RegisterToolFactory("keyword", newKeywordFunc)
	RegisterToolFactory("json_schema", newJSONSchemaFunc)
}

// groundTruthFor picks the expected answer the engine staged for this
// grading pass. In per-turn mode the engine narrows GroundTruth to the
// active turn before calling the grader.
func groundTruthFor(sample *models.Sample) (string, bool) {
	if len(sample.GroundTruth) == 0 {
		return "", false
	}
	return sample.GroundTruth[0], true
}

func exactMatch(sample *models.Sample, submission string) models.GradeResult {
	truth, ok := groundTruthFor(sample)
	if !ok {
		return models.GradeResult{Score: 0.0, Rationale: "no ground_truth answer provided"}
	}
	matches := strings.TrimSpace(submission) == strings.TrimSpace(truth)
	score := 0.0
	if matches {
		score = 1.0
	}
	return models.GradeResult{Score: score, Rationale: fmt.Sprintf("exact match: %t", matches)}
}

func containsGroundTruth(sample *models.Sample, submission string) models.GradeResult {
	truth, ok := groundTruthFor(sample)
	if !ok {
		return models.GradeResult{Score: 0.0, Rationale: "no ground_truth answer provided"}
	}
	found := strings.Contains(strings.ToLower(submission), strings.ToLower(truth))
	score := 0.0
	if found {
		score = 1.0
	}
	return models.GradeResult{Score: score, Rationale: fmt.Sprintf("contains ground_truth: %t", found)}
}

func regexMatch(sample *models.Sample, submission string) models.GradeResult {
	truth, ok := groundTruthFor(sample)
	if !ok {
		return models.GradeResult{Score: 0.0, Rationale: "no ground_truth pattern provided"}
	}
	re, err := regexp.Compile(truth)
	if err != nil {
		return models.GradeResult{Score: 0.0, Rationale: fmt.Sprintf("invalid regex pattern: %v", err)}
	}
	matches := re.MatchString(submission)
	score := 0.0
	if matches {
		score = 1.0
	}
	return models.GradeResult{Score: score, Rationale: fmt.Sprintf("regex match: %t", matches)}
}

// asciiOnly passes when the submission contains no characters outside
// printable ASCII (plus whitespace). It needs no ground truth.
func asciiOnly(sample *models.Sample, submission string) models.GradeResult {
	for i, r := range submission {
		if r > unicode.MaxASCII || (!unicode.IsPrint(r) && !unicode.IsSpace(r)) {
			return models.GradeResult{
				Score:     0.0,
				Rationale: fmt.Sprintf("non-ASCII character %q at byte %d", r, i),
			}
		}
	}
	return models.GradeResult{Score: 1.0, Rationale: "all characters are printable ASCII"}
}
