package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stevehiehn/spren/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the config file",
}

var configInitCmd = &cobra.Command{
	Use:         "init [path]",
	Short:       "Write the default config file",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultPath()
		if len(args) == 1 {
			path = args[0]
		} else if cfgFile != "" {
			path = cfgFile
		}
		if path == "" {
			return fmt.Errorf("no config directory available; pass a path")
		}
		if err := config.WriteDefault(path, configForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with API keys masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		shown.AI.AnthropicAPIKey = mask(shown.AI.AnthropicAPIKey)
		shown.AI.OpenAIAPIKey = mask(shown.AI.OpenAIAPIKey)

		out := cmd.OutOrStdout()
		if cfg.File != "" {
			fmt.Fprintf(out, "# from %s\n", cfg.File)
		}
		data, err := yaml.Marshal(shown)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	},
}

func mask(key string) string {
	if len(key) <= 8 {
		if key == "" {
			return ""
		}
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
