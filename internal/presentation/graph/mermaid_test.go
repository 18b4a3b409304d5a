package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/arbiter/internal/presentation/graph"
	"github.com/aretw0/arbiter/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		steps    []domain.StepDefinition
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name:  "Empty Workflow",
			steps: nil,
			contains: []string{
				"__start((\"start\"))",
				"__start --> __end",
			},
		},
		{
			name: "Action Shapes",
			steps: []domain.StepDefinition{
				{Name: "check", Action: "verify_content"},
				{Name: "decide", Action: "make_decision"},
				{Name: "pause", Action: "wait"},
				{Name: "save", Action: "store_data"},
			},
			contains: []string{
				"check[[\"check <br/> verify_content\"]]",
				"decide{\"decide <br/> make_decision\"}",
				"pause([\"pause <br/> wait\"])",
				"save[\"save <br/> store_data\"]",
				"__start --> check",
				"check --> decide",
				"save --> __end",
			},
		},
		{
			name: "Continue On Error",
			steps: []domain.StepDefinition{
				{Name: "fetch-data", Action: "call_api", Config: map[string]any{"continueOnError": true}},
				{Name: "next", Action: "wait"},
			},
			contains: []string{
				"fetch_data -. \"on error\" .-> next",
			},
		},
		{
			name: "Overlay",
			steps: []domain.StepDefinition{
				{Name: "a", Action: "wait"},
				{Name: "b", Action: "wait"},
				{Name: "c", Action: "wait"},
			},
			overlay: &graph.Overlay{
				Statuses:    map[string]domain.StepStatus{"a": domain.StepCompleted, "b": domain.StepFailed},
				CurrentStep: "c",
			},
			contains: []string{
				"class a completed;",
				"class b failed;",
				"class c current;",
			},
		},
		{
			name:     "No Overlay Styles By Default",
			steps:    []domain.StepDefinition{{Name: "a", Action: "wait"}},
			excludes: []string{"classDef"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.steps, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected output to contain %q\n%s", want, got)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("expected output not to contain %q\n%s", bad, got)
				}
			}
		})
	}
}

func TestForWorkflow(t *testing.T) {
	wf := &domain.Workflow{
		Status:      domain.StatusPaused,
		CurrentStep: 1,
		Steps: []domain.Step{
			{Name: "a", Action: "wait", Status: domain.StepCompleted},
			{Name: "b", Action: "wait", Status: domain.StepPending},
		},
	}
	got := graph.ForWorkflow(wf)
	if !strings.Contains(got, "class a completed;") || !strings.Contains(got, "class b current;") {
		t.Errorf("unexpected overlay:\n%s", got)
	}

	wf.Status = domain.StatusCompleted
	wf.CurrentStep = 2
	if strings.Contains(graph.ForWorkflow(wf), "current;") {
		t.Errorf("finished workflows have no current step")
	}
}
