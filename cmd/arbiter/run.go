package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/arbiter/pkg/definition"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a workflow definition",
	Long:  `Creates the workflow described in the file, defines its steps, executes it and prints the execution result as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		def, err := definition.Load(path)
		if err != nil {
			return err
		}
		if def.Workflow == nil {
			return fmt.Errorf("%s has no workflow section", path)
		}

		arb, cleanup, err := app.newArbiter()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		wf := def.Workflow
		res, err := arb.Run(ctx, wf.Agent(), wf.Type, wf.Config(), wf.Steps)
		if res != nil {
			if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
		}
		if err != nil {
			return err
		}
		if !res.Success {
			app.logger.Warn("workflow did not complete", zap.String("workflow_id", res.WorkflowID), zap.String("status", string(res.Status)))
			return fmt.Errorf("workflow %s: %s", res.Status, res.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("file", "f", "workflow.yaml", "Workflow definition (YAML or JSON)")
}
