package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/arbiter/pkg/definition"
	"github.com/spf13/cobra"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Evaluate a rule set against a context",
	Long: `Loads the rules section of the file and prints the decision as JSON.
The context comes from the file's context section, overlaid by --context.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		raw, _ := cmd.Flags().GetString("context")
		agentID, _ := cmd.Flags().GetString("agent")

		def, err := definition.Load(path)
		if err != nil {
			return err
		}
		if len(def.Rules) == 0 {
			return fmt.Errorf("%s has no rules section", path)
		}

		wctx := make(map[string]any, len(def.Context))
		for k, v := range def.Context {
			wctx[k] = v
		}
		if raw != "" {
			var overlay map[string]any
			if err := json.Unmarshal([]byte(raw), &overlay); err != nil {
				return fmt.Errorf("invalid --context: %w", err)
			}
			for k, v := range overlay {
				wctx[k] = v
			}
		}

		arb, cleanup, err := app.newArbiter()
		if err != nil {
			return err
		}
		defer cleanup()

		d, err := arb.MakeDecision(cmd.Context(), agentID, wctx, def.Rules)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), d)
	},
}

func init() {
	rootCmd.AddCommand(decideCmd)
	decideCmd.Flags().StringP("file", "f", "rules.yaml", "Rule set definition (YAML or JSON)")
	decideCmd.Flags().String("context", "", "JSON object merged over the file's context")
	decideCmd.Flags().String("agent", definition.DefaultAgentID, "Agent whose memories are read and written")
}
