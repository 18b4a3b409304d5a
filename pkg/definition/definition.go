// Package definition reads workflow, rule-set and planning files.
package definition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/arbiter/pkg/domain"
	"gopkg.in/yaml.v3"
)

// DefaultAgentID is used when a workflow file names no agent.
const DefaultAgentID = "cli"

// File is the on-disk document. Every section is optional; commands read
// the sections they need.
type File struct {
	Workflow *Workflow      `yaml:"workflow,omitempty" json:"workflow,omitempty"`
	Rules    []domain.Rule  `yaml:"rules,omitempty" json:"rules,omitempty"`
	Context  map[string]any `yaml:"context,omitempty" json:"context,omitempty"`
	Plan     *Plan          `yaml:"plan,omitempty" json:"plan,omitempty"`
}

// Workflow describes one workflow to create and run.
type Workflow struct {
	Type           string                  `yaml:"type" json:"type"`
	AgentID        string                  `yaml:"agent_id,omitempty" json:"agent_id,omitempty"`
	SessionID      string                  `yaml:"session_id,omitempty" json:"session_id,omitempty"`
	InitialContext map[string]any          `yaml:"initial_context,omitempty" json:"initial_context,omitempty"`
	Metadata       map[string]any          `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Steps          []domain.StepDefinition `yaml:"steps" json:"steps"`
}

// Config returns the engine creation parameters.
func (w *Workflow) Config() domain.WorkflowConfig {
	return domain.WorkflowConfig{
		InitialContext: w.InitialContext,
		SessionID:      w.SessionID,
		Metadata:       w.Metadata,
	}
}

// Agent returns the agent id, falling back to DefaultAgentID.
func (w *Workflow) Agent() string {
	if w.AgentID == "" {
		return DefaultAgentID
	}
	return w.AgentID
}

// Plan is the input of the planner.
type Plan struct {
	AgentID string          `yaml:"agent_id,omitempty" json:"agent_id,omitempty"`
	Current map[string]any  `yaml:"current" json:"current"`
	Goal    map[string]any  `yaml:"goal" json:"goal"`
	Actions []domain.Action `yaml:"actions" json:"actions"`
}

// Load reads a definition file. JSON is chosen by the .json extension;
// anything else is parsed as YAML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	return Parse(data, strings.ToLower(filepath.Ext(path)) == ".json")
}

// Parse decodes a definition document.
func Parse(data []byte, isJSON bool) (*File, error) {
	var f File
	if isJSON {
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse definition json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse definition yaml: %w", err)
		}
	}
	if f.Workflow == nil && len(f.Rules) == 0 && f.Plan == nil {
		return nil, fmt.Errorf("definition has no workflow, rules or plan section")
	}
	return &f, nil
}
