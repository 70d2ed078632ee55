package steptree

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/maestro-org/maestro/internal/domain"
)

// paramDoc is the wire shape of one parameter definition.
type paramDoc struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Default     any    `yaml:"default"`
	Description string `yaml:"description"`
}

// documentDoc is the wire shape of a workflow revision's declarative YAML
// document. The document's own grammar is assumed, per spec §1 ("The
// declarative-document parser... is out of scope"); this type is Maestro's
// concrete rendering of that assumption, modelled on tako's
// config.Workflow{Inputs, Steps} shape.
type documentDoc struct {
	Namespace   string      `yaml:"namespace"`
	WorkflowID  string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Parameters  []paramDoc  `yaml:"parameters"`
	Steps       []yaml.Node `yaml:"steps"`
}

// Document is the fully-decoded result of parsing a declarative workflow
// document: the revision identity fragment the document itself declares
// (namespace/id), plus the metadata and step tree Decode builds from it.
type Document struct {
	Namespace   string
	WorkflowID  string
	Name        string
	Description string
	Parameters  []domain.ParameterDefinition
	RootStep    domain.Step
}

// Decode parses source (the declarative document submitted at revision
// create/update time) using reg as the step-kind registry. The root step is
// always a Sequence over the document's top-level "steps" list.
func Decode(reg *Registry, source string) (Document, error) {
	var doc documentDoc
	if err := yaml.Unmarshal([]byte(source), &doc); err != nil {
		return Document{}, fmt.Errorf("steptree: parse document: %w", err)
	}
	if doc.Namespace == "" {
		return Document{}, fmt.Errorf("steptree: document missing required \"namespace\" field")
	}
	if doc.WorkflowID == "" {
		return Document{}, fmt.Errorf("steptree: document missing required \"id\" field")
	}
	if doc.Name == "" {
		return Document{}, fmt.Errorf("steptree: document missing required \"name\" field")
	}

	seen := make(map[string]bool, len(doc.Parameters))
	params := make([]domain.ParameterDefinition, 0, len(doc.Parameters))
	for _, p := range doc.Parameters {
		if p.Name == "" {
			return Document{}, fmt.Errorf("steptree: parameter missing required \"name\" field")
		}
		if seen[p.Name] {
			return Document{}, fmt.Errorf("steptree: duplicate parameter name %q", p.Name)
		}
		seen[p.Name] = true
		params = append(params, domain.ParameterDefinition{
			Name:        p.Name,
			Type:        domain.ParameterType(p.Type),
			Required:    p.Required,
			Default:     p.Default,
			Description: p.Description,
		})
	}

	c := &counter{}
	children := make([]domain.Step, 0, len(doc.Steps))
	for i := range doc.Steps {
		s, err := decodeStep(reg, &doc.Steps[i], c, 1)
		if err != nil {
			return Document{}, err
		}
		children = append(children, s)
	}
	root := domain.Step{Kind: domain.KindSequence, StepID: "root", Children: children}

	return Document{
		Namespace:   doc.Namespace,
		WorkflowID:  doc.WorkflowID,
		Name:        doc.Name,
		Description: doc.Description,
		Parameters:  params,
		RootStep:    root,
	}, nil
}
