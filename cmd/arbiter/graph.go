package main

import (
	"fmt"

	"github.com/aretw0/arbiter/internal/presentation/graph"
	"github.com/aretw0/arbiter/pkg/definition"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long:  `Reads a workflow definition and outputs a Mermaid diagram (graph TD) of its steps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		if !cmd.Flags().Changed("file") && len(args) > 0 {
			path = args[0]
		}
		def, err := definition.Load(path)
		if err != nil {
			return err
		}
		if def.Workflow == nil {
			return fmt.Errorf("%s has no workflow section", path)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def.Workflow.Steps, nil))
		return err
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("file", "f", "workflow.yaml", "Workflow definition (YAML or JSON)")
}
