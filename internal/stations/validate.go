package stations

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/conveyor/internal/station"
	"github.com/rendis/conveyor/pkg/schema"
)

// ManifestName is the project manifest validated by the validate station.
const ManifestName = "conveyor.json"

const manifestSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "stack": {"type": "string", "minLength": 1},
    "version": {"type": "string"},
    "description": {"type": "string"},
    "env": {"type": "object", "additionalProperties": {"type": "string"}}
  },
  "required": ["name", "stack"]
}`

// requiredFiles lists the files a scaffolded project must contain per stack.
var requiredFiles = map[schema.StackType][]string{
	schema.StackPythonFastapi:   {"requirements.txt", "main.py"},
	schema.StackJavaSpringboot:  {"pom.xml"},
	schema.StackJavaQuarkus:     {"pom.xml"},
	schema.StackDotnetWebapi:    {"Program.cs"},
	schema.StackRustAPI:         {"Cargo.toml", "src/main.rs"},
	schema.StackFrontendReact:   {"package.json"},
	schema.StackFrontendAngular: {"package.json", "angular.json"},
	schema.StackFrontendVue:     {"package.json"},
	schema.StackElectronApp:     {"package.json"},
}

// Validate checks a scaffolded project: the manifest parses and conforms to
// its schema, and the stack's required files exist.
type Validate struct {
	station.Base
	compiled *jsonschema.Schema
}

// NewValidate creates the validate station. The manifest schema is compiled
// once at construction.
func NewValidate() (*Validate, error) {
	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(manifestSchema))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse manifest schema: %s", err.Error()).WithCause(err)
	}
	if err := compiler.AddResource("manifest.schema.json", doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "register manifest schema: %s", err.Error()).WithCause(err)
	}
	compiled, err := compiler.Compile("manifest.schema.json")
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "compile manifest schema: %s", err.Error()).WithCause(err)
	}
	return &Validate{compiled: compiled}, nil
}

func (v *Validate) Name() string { return "validate" }

func (v *Validate) Description() string {
	return "Validates the project manifest and the stack's required file layout."
}

func (v *Validate) Input() station.Input {
	return station.Input{}.OptionalKey("app_path")
}

func (v *Validate) Dependencies() []string { return []string{"scaffold"} }

func (v *Validate) Execute(_ context.Context, wctx *schema.WorkflowContext) (schema.StationResult, error) {
	appPath := wctx.OutputPath
	_ = wctx.Get("app_path", &appPath)

	var problems []string

	manifestPath := filepath.Join(appPath, ManifestName)
	data, err := os.ReadFile(manifestPath)
	switch {
	case err != nil:
		problems = append(problems, fmt.Sprintf("missing required file %s", ManifestName))
	default:
		inst, perr := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if perr != nil {
			problems = append(problems, fmt.Sprintf("%s is not valid JSON: %s", ManifestName, perr.Error()))
		} else if verr := v.compiled.Validate(inst); verr != nil {
			problems = append(problems, fmt.Sprintf("%s does not conform to the manifest schema: %s", ManifestName, verr.Error()))
		}
	}

	for _, name := range requiredFiles[wctx.Stack] {
		if _, err := os.Stat(filepath.Join(appPath, name)); err != nil {
			problems = append(problems, fmt.Sprintf("missing required file %s", name))
		}
	}

	if len(problems) > 0 {
		return schema.Failure(strings.Join(problems, "; ")), nil
	}
	return schema.Success(fmt.Sprintf("project at %s is valid for stack %s", appPath, wctx.Stack)), nil
}
