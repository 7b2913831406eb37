package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/spren/internal/engine"
)

var dryRunCmd = &cobra.Command{
	Use:   "dry-run <plan-file|->",
	Short: "Show the exact process each step would launch",
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

		invs := engine.Invocations(c, prof)
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, invs)
		}
		fmt.Fprintf(out, "Dry-run (%s)\n\n", prof.Name())
		for i, inv := range invs {
			fmt.Fprintf(out, "Step %d: %s\n", inv.Step, c.Steps[i].Description)
			quoted := make([]string, len(inv.Argv))
			for j, a := range inv.Argv {
				if strings.ContainsAny(a, " \t\"'") {
					a = strconv.Quote(a)
				}
				quoted[j] = a
			}
			fmt.Fprintf(out, "  Would run: %s\n\n", strings.Join(quoted, " "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dryRunCmd)
}
