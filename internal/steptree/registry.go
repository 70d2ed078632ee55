// Package steptree decodes a workflow revision's declarative YAML document
// into the domain.Step tree the interpreter walks, and exposes the registry
// that lets new step kinds be added without rebuilding the decoder (spec §9,
// "plugin-registered step types").
package steptree

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/maestro-org/maestro/internal/domain"
)

// Decoder turns one YAML step mapping node into a domain.Step. The node still
// carries its "type" and "id" keys; decodeStep sets Kind and StepID on the
// returned step itself. next is used by composite kinds (sequence, if) to
// recursively decode their children.
type Decoder func(node *yaml.Node, next func(*yaml.Node) (domain.Step, error)) (domain.Step, error)

// Registry is a tag -> Decoder lookup consulted by Decode. The four built-in
// kinds are registered at package init; callers may Register more before the
// first Decode call. Registry is safe for concurrent registration and decode.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry returns a Registry pre-populated with the four built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[string]Decoder)}
	r.Register(string(domain.KindSequence), decodeSequence)
	r.Register(string(domain.KindIf), decodeIf)
	r.Register(string(domain.KindLog), decodeLog)
	r.Register(string(domain.KindWork), decodeWork)
	return r
}

// Register adds or replaces the decoder for tag.
func (r *Registry) Register(tag string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[tag] = d
}

// Unregister removes the decoder for tag, if any.
func (r *Registry) Unregister(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.decoders, tag)
}

func (r *Registry) lookup(tag string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[tag]
	return d, ok
}

// Default is the package-level registry used by Decode when no explicit
// registry is supplied, mirroring the built-in-kinds-always-available
// contract of spec §3.
var Default = NewRegistry()

// counter assigns step-<index> ids to nodes whose document omits one. It is
// shared across one call to Decode so ids are unique within a tree and are
// assigned in document order (a node before its children),
// per spec §3 ("auto-generates step-<index> if absent").
type counter struct{ n int }

func (c *counter) next() string {
	id := fmt.Sprintf("step-%d", c.n)
	c.n++
	return id
}

// decodeStep decodes a single YAML mapping node into a domain.Step using reg,
// assigning an auto-generated id via c if the document omitted one, and
// rejecting nesting past domain.MaxNestingDepth by returning an error (the
// interpreter also guards depth at run time for trees built other ways, per
// spec §4.1's "descending past depth 10" rule).
func decodeStep(reg *Registry, node *yaml.Node, c *counter, depth int) (domain.Step, error) {
	if depth > domain.MaxNestingDepth {
		return domain.Step{}, fmt.Errorf("steptree: nesting depth exceeds %d", domain.MaxNestingDepth)
	}
	if node.Kind != yaml.MappingNode {
		return domain.Step{}, fmt.Errorf("steptree: step node must be a mapping")
	}

	var head struct {
		ID   string `yaml:"id"`
		Type string `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return domain.Step{}, fmt.Errorf("steptree: decode step header: %w", err)
	}
	if head.Type == "" {
		return domain.Step{}, fmt.Errorf("steptree: step missing required \"type\" field")
	}

	dec, ok := reg.lookup(head.Type)
	if !ok {
		return domain.Step{}, fmt.Errorf("steptree: unknown step type %q", head.Type)
	}

	stepID := head.ID
	if stepID == "" {
		stepID = c.next()
	}

	next := func(n *yaml.Node) (domain.Step, error) {
		return decodeStep(reg, n, c, depth+1)
	}
	step, err := dec(node, next)
	if err != nil {
		return domain.Step{}, err
	}
	step.Kind = domain.StepKind(head.Type)
	step.StepID = stepID
	return step, nil
}

func decodeSequence(node *yaml.Node, next func(*yaml.Node) (domain.Step, error)) (domain.Step, error) {
	var body struct {
		Children []yaml.Node `yaml:"steps"`
	}
	if err := node.Decode(&body); err != nil {
		return domain.Step{}, fmt.Errorf("steptree: decode sequence: %w", err)
	}
	children := make([]domain.Step, 0, len(body.Children))
	for _, c := range body.Children {
		s, err := next(&c)
		if err != nil {
			return domain.Step{}, err
		}
		children = append(children, s)
	}
	return domain.Step{Children: children}, nil
}

func decodeIf(node *yaml.Node, next func(*yaml.Node) (domain.Step, error)) (domain.Step, error) {
	var body struct {
		Condition string      `yaml:"condition"`
		Then      []yaml.Node `yaml:"then"`
		Else      []yaml.Node `yaml:"else"`
	}
	if err := node.Decode(&body); err != nil {
		return domain.Step{}, fmt.Errorf("steptree: decode if: %w", err)
	}
	thenSteps, err := decodeList(body.Then, next)
	if err != nil {
		return domain.Step{}, err
	}
	elseSteps, err := decodeList(body.Else, next)
	if err != nil {
		return domain.Step{}, err
	}
	return domain.Step{Condition: body.Condition, Then: thenSteps, Else: elseSteps}, nil
}

func decodeList(nodes []yaml.Node, next func(*yaml.Node) (domain.Step, error)) ([]domain.Step, error) {
	out := make([]domain.Step, 0, len(nodes))
	for i := range nodes {
		s, err := next(&nodes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeLog(node *yaml.Node, _ func(*yaml.Node) (domain.Step, error)) (domain.Step, error) {
	var body struct {
		Message string `yaml:"message"`
	}
	if err := node.Decode(&body); err != nil {
		return domain.Step{}, fmt.Errorf("steptree: decode log: %w", err)
	}
	return domain.Step{Message: body.Message}, nil
}

func decodeWork(node *yaml.Node, _ func(*yaml.Node) (domain.Step, error)) (domain.Step, error) {
	var body struct {
		WorkKind string         `yaml:"kind"`
		Config   map[string]any `yaml:"config"`
	}
	if err := node.Decode(&body); err != nil {
		return domain.Step{}, fmt.Errorf("steptree: decode work: %w", err)
	}
	return domain.Step{WorkKind: body.WorkKind, Config: body.Config}, nil
}
