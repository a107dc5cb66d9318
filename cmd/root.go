package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docvault/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docvault",
	Short: "AI-assisted personal document archive",
	Long: `docvault ingests scanned documents, extracts their text with OCR,
lets an AI model fill in title, correspondent, dates and tags, and keeps a
semantic index so the archive can be searched and questioned in plain
language. It serves a REST API and integrates with AI agents via MCP.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
