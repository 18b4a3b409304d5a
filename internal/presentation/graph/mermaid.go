package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbiter/pkg/domain"
)

// Overlay contains run state to visualize on the graph.
type Overlay struct {
	Statuses    map[string]domain.StepStatus
	CurrentStep string
}

// GenerateMermaid produces a Mermaid flowchart for a step sequence.
// It applies semantic styling:
// - Start/End: ((Circle))
// - make_decision: {Rhombus}
// - call_api / verify_content: [[Subroutine]]
// - wait: ([Stadium])
// - Default: [Rectangle]
// Steps with continueOnError get a dotted skip edge to the next step.
func GenerateMermaid(steps []domain.StepDefinition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    __start((\"start\"))\n")

	prev := "__start"
	for i, step := range steps {
		safeID := sanitizeMermaidID(step.Name)

		opener, closer := "[", "]"
		switch step.Action {
		case "make_decision":
			opener, closer = "{", "}"
		case "call_api", "verify_content":
			opener, closer = "[[", "]]"
		case "wait":
			opener, closer = "([", "])"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s <br/> %s\"%s\n", safeID, opener, escape(step.Name), escape(step.Action), closer))
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", prev, safeID))

		if continues(step) {
			next := "__end"
			if i+1 < len(steps) {
				next = sanitizeMermaidID(steps[i+1].Name)
			}
			sb.WriteString(fmt.Sprintf("    %s -. \"on error\" .-> %s\n", safeID, next))
		}
		prev = safeID
	}
	sb.WriteString("    __end((\"end\"))\n")
	sb.WriteString(fmt.Sprintf("    %s --> __end\n", prev))

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef completed fill:#e8f5e9,stroke:#1b5e20,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		for _, step := range steps {
			switch overlay.Statuses[step.Name] {
			case domain.StepCompleted:
				sb.WriteString(fmt.Sprintf("    class %s completed;\n", sanitizeMermaidID(step.Name)))
			case domain.StepFailed:
				sb.WriteString(fmt.Sprintf("    class %s failed;\n", sanitizeMermaidID(step.Name)))
			}
		}
		if overlay.CurrentStep != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep)))
		}
	}

	return sb.String()
}

// ForWorkflow renders a workflow with its step statuses overlaid.
// The current step is highlighted only while the workflow is running or paused.
func ForWorkflow(wf *domain.Workflow) string {
	defs := make([]domain.StepDefinition, len(wf.Steps))
	overlay := &Overlay{Statuses: make(map[string]domain.StepStatus, len(wf.Steps))}
	for i, s := range wf.Steps {
		defs[i] = domain.StepDefinition{Name: s.Name, Action: s.Action, Config: s.Config}
		overlay.Statuses[s.Name] = s.Status
	}
	if (wf.Status == domain.StatusRunning || wf.Status == domain.StatusPaused) && wf.CurrentStep < len(wf.Steps) {
		overlay.CurrentStep = wf.Steps[wf.CurrentStep].Name
	}
	return GenerateMermaid(defs, overlay)
}

func continues(def domain.StepDefinition) bool {
	s := domain.Step{Config: def.Config}
	return s.ContinueOnError()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
