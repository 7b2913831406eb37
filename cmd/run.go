package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var (
	runRollback bool
	runPlanOnly bool
)

var runCmd = &cobra.Command{
	Use:   "run <request...>",
	Short: "Ask the model for a plan and execute it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		prof, err := profile()
		if err != nil {
			return err
		}
		pl, err := plannerFactory(prof)
		if err != nil {
			return err
		}
		p, err := pl.Generate(cmd.Context(), query)
		if err != nil {
			return err
		}

		if runPlanOnly {
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), p)
			}
			c, err := interpret(p, prof)
			if err != nil {
				return err
			}
			return writePreview(cmd, c, prof)
		}
		return executePlan(cmd, p, prof, execOptions{query: query, rollback: runRollback})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runRollback, "rollback-on-failure", false, "Roll back completed steps when a step fails")
	runCmd.Flags().BoolVar(&runPlanOnly, "plan-only", false, "Print the generated plan without running it")
	rootCmd.AddCommand(runCmd)
}
