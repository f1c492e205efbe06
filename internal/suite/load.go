package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load parses a suite document from disk, checks it against the embedded
// schema, resolves prompt paths, and runs semantic validation. A suite that
// comes back error-free is safe to hand to the scheduler.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("suite: reading %s: %w", path, err)
	}

	if errs := ValidateBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("suite: %s does not conform to schema:\n  %s", path, strings.Join(errs, "\n  "))
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("suite: parsing %s: %w", path, err)
	}
	spec.BaseDir = filepath.Dir(path)

	if err := spec.resolvePromptPaths(); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// DatasetPath resolves the dataset location against the suite directory.
func (s *Spec) DatasetPath() string {
	if filepath.IsAbs(s.Dataset) || s.BaseDir == "" {
		return s.Dataset
	}
	return filepath.Join(s.BaseDir, s.Dataset)
}

// resolvePromptPaths inlines prompt_path contents so downstream components
// only ever see a resolved prompt string.
func (s *Spec) resolvePromptPaths() error {
	for i := range s.Graders {
		e := &s.Graders[i]
		switch e.Spec.Kind {
		case GraderRubric:
			if e.Spec.Rubric.PromptPath != "" {
				prompt, err := s.readPrompt(e.Key, e.Spec.Rubric.PromptPath)
				if err != nil {
					return err
				}
				e.Spec.Rubric.Prompt = prompt
				e.Spec.Rubric.PromptPath = ""
			}
		case GraderAgentJudge:
			if e.Spec.AgentJudge.PromptPath != "" {
				prompt, err := s.readPrompt(e.Key, e.Spec.AgentJudge.PromptPath)
				if err != nil {
					return err
				}
				e.Spec.AgentJudge.Prompt = prompt
				e.Spec.AgentJudge.PromptPath = ""
			}
		}
	}
	return nil
}

func (s *Spec) readPrompt(graderKey, promptPath string) (string, error) {
	path := promptPath
	if !filepath.IsAbs(path) && s.BaseDir != "" {
		path = filepath.Join(s.BaseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("suite: grader %q: reading prompt %s: %w", graderKey, promptPath, err)
	}
	return string(data), nil
}
