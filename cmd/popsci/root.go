package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/popsci/internal/api"
	"github.com/jackzampolin/popsci/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "popsci",
	Short: "Turn research papers into illustrated popular-science articles",
	Long: `Popsci turns a scientific paper into an illustrated popular-science
article for a general audience.

Given a DOI, arXiv ID, or URL, the pipeline:
  - Fetches the paper PDF from open-access sources
  - Extracts text, sections, and references
  - Plans and writes an article in chunks with an LLM
  - Generates illustrations and related-paper recommendations
  - Renders HTML and exports PDF and EPUB`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.popsci/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "popsci home directory (default: ~/.popsci)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
