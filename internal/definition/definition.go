// Package definition loads pipeline definitions from YAML or JSON documents
// and applies them to a pipeline engine
package definition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/kode4food/relay/internal/pipeline"
	"github.com/kode4food/relay/pkg/api"
)

type (
	// Definition describes a linear pipeline. Steps are connected in the
	// order they are listed
	Definition struct {
		Name  string    `yaml:"name" json:"name"`
		Steps []StepDef `yaml:"steps" json:"steps"`
	}

	// StepDef describes one step
	StepDef struct {
		Command     string `yaml:"cmd" json:"cmd"`
		Description string `yaml:"desc" json:"desc"`
	}

	// Format identifies a definition document encoding
	Format string
)

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	ErrUnknownFormat = errors.New("unknown definition format")
	ErrInvalidJSON   = errors.New("invalid JSON definition")
	ErrInvalidYAML   = errors.New("invalid YAML definition")
	ErrNameRequired  = errors.New("definition name is required")
	ErrNoSteps       = errors.New("definition has no steps")
	ErrInvalidStep   = errors.New("invalid step definition")
)

// FormatFor returns the format implied by a file extension
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads and validates the definition file at path
func Load(path string) (*Definition, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, format)
}

// Parse decodes and validates a definition document
func Parse(data []byte, format Format) (*Definition, error) {
	var def *Definition
	var err error
	switch format {
	case FormatYAML:
		def, err = parseYAML(data)
	case FormatJSON:
		def, err = parseJSON(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// Validate checks that the definition names a pipeline and that every step
// has a command
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrNameRequired
	}
	if len(d.Steps) == 0 {
		return ErrNoSteps
	}
	for i, s := range d.Steps {
		st := api.Step{Command: s.Command, Description: s.Description}
		if err := st.Validate(); err != nil {
			return fmt.Errorf("%w: step %d: %w", ErrInvalidStep, i+1, err)
		}
	}
	return nil
}

// Apply writes the definition to its pipeline, replacing any steps the
// pipeline already holds, and returns the created steps in order
func Apply(
	ctx context.Context, eng *pipeline.Engine, def *Definition,
) (*pipeline.Pipeline, []*api.Step, error) {
	if err := def.Validate(); err != nil {
		return nil, nil, err
	}
	p, err := eng.Open(ctx, def.Name)
	if err != nil {
		return nil, nil, err
	}

	existing, err := p.Steps(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(existing) > 0 {
		if err := eng.Delete(ctx, def.Name); err != nil {
			return nil, nil, err
		}
		if p, err = eng.Open(ctx, def.Name); err != nil {
			return nil, nil, err
		}
	}

	steps := make([]*api.Step, 0, len(def.Steps))
	for _, sd := range def.Steps {
		st, err := p.CreateStep(ctx, sd.Command, sd.Description)
		if err != nil {
			return nil, nil, err
		}
		if n := len(steps); n > 0 {
			if err := p.ConnectSteps(ctx, steps[n-1].ID, st.ID); err != nil {
				return nil, nil, err
			}
		}
		steps = append(steps, st)
	}
	return p, steps, nil
}

func parseYAML(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return &def, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
	}
	return &def, nil
}

func parseJSON(data []byte) (*Definition, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: document must be an object", ErrInvalidJSON)
	}

	name := doc.Get("name")
	if name.Exists() && name.Type != gjson.String {
		return nil, fmt.Errorf("%w: name must be a string", ErrInvalidJSON)
	}
	def := &Definition{Name: name.String()}

	steps := doc.Get("steps")
	if !steps.Exists() {
		return def, nil
	}
	if !steps.IsArray() {
		return nil, fmt.Errorf("%w: steps must be an array", ErrInvalidJSON)
	}
	for i, item := range steps.Array() {
		sd, err := parseJSONStep(item)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %w", ErrInvalidJSON, i+1, err)
		}
		def.Steps = append(def.Steps, sd)
	}
	return def, nil
}

func parseJSONStep(item gjson.Result) (StepDef, error) {
	if !item.IsObject() {
		return StepDef{}, errors.New("must be an object")
	}
	cmd := item.Get("cmd")
	if cmd.Type != gjson.String {
		return StepDef{}, errors.New("cmd must be a string")
	}
	desc := item.Get("desc")
	if desc.Exists() && desc.Type != gjson.String {
		return StepDef{}, errors.New("desc must be a string")
	}
	return StepDef{Command: cmd.String(), Description: desc.String()}, nil
}
