package domain

// DecisionNoMatch is the decision value returned when no rule condition holds.
const DecisionNoMatch = "no_match"

// DefaultRecommendedAction is recommended when no rule matches and no default rule exists.
const DefaultRecommendedAction = "continue"

// DefaultRuleName names the rule whose action is recommended on a no-match.
const DefaultRuleName = "default"

// Rule is a condition/action/priority triple supplied per decision call.
type Rule struct {
	Name      string `json:"name" yaml:"name" mapstructure:"name"`
	Condition string `json:"condition" yaml:"condition" mapstructure:"condition"`
	Action    string `json:"action" yaml:"action" mapstructure:"action"`
	Priority  int    `json:"priority" yaml:"priority" mapstructure:"priority"`
}

// Decision is the outcome of evaluating a rule set against a context.
type Decision struct {
	// Decision is the selected rule's action, or DecisionNoMatch.
	Decision          string  `json:"decision"`
	RecommendedAction string  `json:"recommended_action"`
	SelectedRule      *Rule   `json:"selected_rule,omitempty"`
	MatchedRules      []Rule  `json:"matched_rules"`
	Confidence        float64 `json:"confidence"`

	// Context is the enriched context the rules were evaluated against.
	Context map[string]any `json:"context,omitempty"`
}

// Matched reports whether at least one rule condition held.
func (d *Decision) Matched() bool {
	return d.SelectedRule != nil
}

// Action is a planner operator: a name plus the state overrides it is predicted to apply.
type Action struct {
	Name    string         `json:"name" yaml:"name" mapstructure:"name"`
	Effects map[string]any `json:"effects" yaml:"effects" mapstructure:"effects"`
}

// Plan is the ordered action sequence produced by the planner.
type Plan struct {
	Success              bool           `json:"success"`
	Actions              []Action       `json:"plan"`
	Steps                int            `json:"steps"`
	EstimatedSuccessRate float64        `json:"estimated_success_rate,omitempty"`
	Reason               string         `json:"reason,omitempty"`
	FinalState           map[string]any `json:"final_state,omitempty"`
}

// ActionNames returns the plan's action names in order.
func (p *Plan) ActionNames() []string {
	names := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		names[i] = a.Name
	}
	return names
}

// Experience is an action outcome fed back into the learner.
type Experience struct {
	Action  string         `json:"action" yaml:"action" mapstructure:"action"`
	Context map[string]any `json:"context" yaml:"context" mapstructure:"context"`
	Outcome any            `json:"outcome" yaml:"outcome" mapstructure:"outcome"`
	Reward  float64        `json:"reward" yaml:"reward" mapstructure:"reward"`
}

// LearnResult reports what the learner persisted.
type LearnResult struct {
	ExperienceID string `json:"experience_id"`
	KnowledgeID  string `json:"knowledge_id,omitempty"`
	Reinforced   bool   `json:"reinforced"`
}

// Inference is one conclusion drawn by the reasoner.
type Inference struct {
	Conclusion string  `json:"conclusion"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Reasoning is the result of a reasoning pass over a situation.
type Reasoning struct {
	Situation     map[string]any `json:"situation"`
	Inferences    []Inference    `json:"inferences"`
	Confidence    float64        `json:"confidence"`
	FactsAnalyzed int            `json:"facts_analyzed"`
}

// Verification is the outcome of a content-authenticity check.
type Verification struct {
	Authentic  bool           `json:"authentic"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details"`
}
