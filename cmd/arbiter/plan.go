package main

import (
	"fmt"

	"github.com/aretw0/arbiter/pkg/definition"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Search for an action sequence reaching a goal",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		def, err := definition.Load(path)
		if err != nil {
			return err
		}
		if def.Plan == nil {
			return fmt.Errorf("%s has no plan section", path)
		}
		agentID := def.Plan.AgentID
		if agentID == "" {
			agentID = definition.DefaultAgentID
		}

		arb, cleanup, err := app.newArbiter()
		if err != nil {
			return err
		}
		defer cleanup()

		plan, err := arb.PlanActions(cmd.Context(), agentID, def.Plan.Current, def.Plan.Goal, def.Plan.Actions)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), plan)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringP("file", "f", "plan.yaml", "Plan definition (YAML or JSON)")
}
