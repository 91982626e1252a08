// The pipeline command runs one marketing campaign in the foreground: blog
// generation, persona newsletters, CRM distribution and performance analysis.
// Without a topic argument it prompts interactively.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	variations bool
	noMock     bool
	showSetup  bool

	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pipeline [topic]",
	Short: "Run the marketing content pipeline",
	Long: `Generate a blog post for a topic, derive persona-targeted newsletters,
distribute them through the CRM (mock mode by default) and analyze the
simulated campaign performance.

Without a topic argument the command prompts for one interactively.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pipeline version %s\n", version)
		if commit != "unknown" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.Flags().BoolVar(&variations, "variations", false, "generate content variations and improvement suggestions")
	rootCmd.Flags().BoolVar(&noMock, "no-mock", false, "use the stored audience instead of generating mock contacts")
	rootCmd.Flags().BoolVar(&showSetup, "setup", false, "print HubSpot setup instructions and exit")

	rootCmd.AddCommand(versionCmd)
}
