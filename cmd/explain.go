package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/spren/internal/chain"
	"github.com/stevehiehn/spren/internal/engine"
	"github.com/stevehiehn/spren/internal/shell"
)

var explainCmd = &cobra.Command{
	Use:   "explain <plan-file|->",
	Short: "Show a plan's steps, tags and estimated impact without executing",
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
		c, err := interpret(p, prof)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), c)
		}
		return writePreview(cmd, c, prof)
	},
}

func writePreview(cmd *cobra.Command, c *chain.CommandChain, prof shell.Profile) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), engine.Preview(c, prof))
	return err
}

func init() {
	rootCmd.AddCommand(explainCmd)
}
