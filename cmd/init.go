package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docvault/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize docvault configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the AI provider, vector store and folders, and writes a .docvault.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("wizard produced an invalid config: %w", err)
		}
		fmt.Printf("\nNext: export %s and run `docvault server`.\n", config.APIKeyEnvVar(cfg.AIProvider))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
