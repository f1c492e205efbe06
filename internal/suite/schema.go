package suite

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed suite.schema.json
var suiteSchemaJSON string

// schemaPrinter formats schema validation error messages.
var schemaPrinter = message.NewPrinter(language.English)

// suiteSchema is the compiled JSON Schema for suite documents.
var suiteSchema *jsonschema.Schema

func init() {
	var doc any
	if err := json.Unmarshal([]byte(suiteSchemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded suite.schema.json: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("suite.schema.json", doc); err != nil {
		panic(fmt.Sprintf("failed to add suite schema resource: %v", err))
	}

	sch, err := compiler.Compile("suite.schema.json")
	if err != nil {
		panic(fmt.Sprintf("failed to compile suite schema: %v", err))
	}
	suiteSchema = sch
}

// ValidateBytes validates raw suite YAML against the embedded JSON Schema.
// Returns one message per violation, or nil when the document conforms.
func ValidateBytes(data []byte) []string {
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}

	err := suiteSchema.Validate(jsonCompatible(yamlDoc))
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(schemaPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// jsonCompatible normalizes YAML-decoded values for schema validation.
func jsonCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = jsonCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = jsonCompatible(v2)
		}
		return result
	default:
		return val
	}
}
