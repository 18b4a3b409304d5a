package dsl

import (
	"fmt"

	"github.com/aretw0/arbiter/pkg/domain"
)

// Builder collects step definitions in insertion order.
type Builder struct {
	order []string
	steps map[string]*StepBuilder
}

// New creates a new workflow builder.
func New() *Builder {
	return &Builder{
		steps: make(map[string]*StepBuilder),
	}
}

// Add appends a step named name.
// If the step already exists, it returns the existing builder.
func (b *Builder) Add(name string) *StepBuilder {
	if sb, ok := b.steps[name]; ok {
		return sb
	}
	sb := &StepBuilder{
		def:     domain.StepDefinition{Name: name},
		builder: b,
	}
	b.steps[name] = sb
	b.order = append(b.order, name)
	return sb
}

// Build returns the step definitions ready for Engine.DefineSteps.
func (b *Builder) Build() ([]domain.StepDefinition, error) {
	defs := make([]domain.StepDefinition, 0, len(b.order))
	for _, name := range b.order {
		sb := b.steps[name]
		if name == "" {
			return nil, fmt.Errorf("%w: step %d has no name", domain.ErrInvalidStep, len(defs))
		}
		if sb.def.Action == "" {
			return nil, fmt.Errorf("%w: step %q has no action", domain.ErrInvalidStep, name)
		}
		def := sb.def
		def.Config = domain.CloneMap(sb.def.Config)
		defs = append(defs, def)
	}
	return defs, nil
}

// MustBuild is Build that panics on error. Intended for tests and static flows.
func (b *Builder) MustBuild() []domain.StepDefinition {
	defs, err := b.Build()
	if err != nil {
		panic(err)
	}
	return defs
}

// StepBuilder configures a single step.
type StepBuilder struct {
	def     domain.StepDefinition
	builder *Builder
}

// Do sets the action handler name.
func (s *StepBuilder) Do(action string) *StepBuilder {
	s.def.Action = action
	return s
}

// With sets one config entry.
func (s *StepBuilder) With(key string, value any) *StepBuilder {
	if s.def.Config == nil {
		s.def.Config = make(map[string]any)
	}
	s.def.Config[key] = value
	return s
}

// Ref sets a config entry resolved from the workflow context at run time,
// e.g. Ref("content", "fetch.body") reads context["fetch"]["body"].
func (s *StepBuilder) Ref(key, path string) *StepBuilder {
	return s.With(key, "$."+path)
}

// ContinueOnError keeps the workflow going when this step fails.
func (s *StepBuilder) ContinueOnError() *StepBuilder {
	return s.With(domain.KeyContinueOnError, true)
}

// Then starts the next step, for fluent chains.
func (s *StepBuilder) Then(name string) *StepBuilder {
	return s.builder.Add(name)
}

// Rules builds a rule set for Framework.MakeDecision.
type Rules struct {
	rules []domain.Rule
}

// NewRules creates an empty rule set.
func NewRules() *Rules {
	return &Rules{}
}

// When appends a rule that yields action when condition holds.
func (r *Rules) When(name, condition, action string, priority int) *Rules {
	r.rules = append(r.rules, domain.Rule{Name: name, Condition: condition, Action: action, Priority: priority})
	return r
}

// Otherwise appends the fallback rule named "default".
func (r *Rules) Otherwise(action string) *Rules {
	return r.When(domain.DefaultRuleName, "true", action, 0)
}

// Build returns a copy of the rules.
func (r *Rules) Build() []domain.Rule {
	return append([]domain.Rule(nil), r.rules...)
}
