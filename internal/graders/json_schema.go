package graders

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/gauntlet-eval/gauntlet/internal/models"
)

// jsonSchemaConfig configures the json_schema tool function.
type jsonSchemaConfig struct {
	// Schema is an inline JSON Schema object.
	Schema map[string]any `mapstructure:"schema"`
	// SchemaPath is a path to a JSON Schema file, used when Schema is not
	// provided.
	SchemaPath string `mapstructure:"schema_path"`
}

// newJSONSchemaFunc validates that the submission is JSON conforming to a
// schema from the grader config. The schema is compiled once, when the
// engine is built, so a broken schema never reaches a sample.
func newJSONSchemaFunc(config map[string]any) (ToolFunc, error) {
	var c jsonSchemaConfig
	if err := mapstructure.Decode(config, &c); err != nil {
		return nil, fmt.Errorf("invalid json_schema config: %w", err)
	}
	if c.Schema == nil && c.SchemaPath == "" {
		return nil, fmt.Errorf("json_schema requires 'schema' or 'schema_path' in config")
	}

	schema, err := compileSchema(c)
	if err != nil {
		return nil, err
	}

	return func(sample *models.Sample, submission string) models.GradeResult {
		var value any
		if err := json.Unmarshal([]byte(submission), &value); err != nil {
			return models.GradeResult{
				Score:     0.0,
				Rationale: fmt.Sprintf("submission is not valid JSON: %v", err),
			}
		}
		if err := schema.Validate(value); err != nil {
			return models.GradeResult{
				Score:     0.0,
				Rationale: fmt.Sprintf("schema validation failed: %v", err),
			}
		}
		return models.GradeResult{Score: 1.0, Rationale: "submission matches JSON schema"}
	}, nil
}

func compileSchema(c jsonSchemaConfig) (*jsonschema.Schema, error) {
	var raw []byte
	var err error
	if c.Schema != nil {
		raw, err = json.Marshal(c.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize schema: %w", err)
		}
	} else {
		raw, err = os.ReadFile(c.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %q: %w", c.SchemaPath, err)
		}
	}

	// Round-trip through encoding/json so YAML-decoded values validate the
	// same as a schema loaded from disk.
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("grader.schema.json", doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("grader.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile JSON schema: %w", err)
	}
	return schema, nil
}
