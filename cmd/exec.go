package cmd

import (
	"github.com/spf13/cobra"
)

var execRollback bool

var execCmd = &cobra.Command{
	Use:   "exec <plan-file|->",
	Short: "Execute a saved plan (JSON, YAML or a model reply)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prof, err := profile()
		if err != nil {
			return err
		}
		p, err := readPlan(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		return executePlan(cmd, p, prof, execOptions{rollback: execRollback})
	},
}

func init() {
	execCmd.Flags().BoolVar(&execRollback, "rollback-on-failure", false, "Roll back completed steps when a step fails")
	rootCmd.AddCommand(execCmd)
}
