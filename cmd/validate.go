package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	sprenerrors "github.com/stevehiehn/spren/internal/errors"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan-file|->",
	Short: "Validate a plan file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		p, err := readPlan(args[0], cmd.InOrStdin())
		if err != nil {
			if jsonOutput {
				res := map[string]any{"valid": false, "error": err.Error()}
				if re, ok := sprenerrors.As(err); ok {
					res["error"] = re
				}
				if perr := printJSON(out, res); perr != nil {
					return perr
				}
				return errRunFailed
			}
			return fmt.Errorf("validation failed: %w", err)
		}
		if jsonOutput {
			return printJSON(out, map[string]any{"valid": true, "steps": len(p.Steps)})
		}
		fmt.Fprintf(out, "Plan is valid (%d steps).\n", len(p.Steps))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
