package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/analytics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/config"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/llm"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/storage"
)

var insightsLast int

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Analyze stored campaign performance",
	Long: `Compare the stored performance of recent campaigns, surface persona
engagement trends and suggest blog topics informed by the best performers.`,
	RunE: runInsights,
}

func init() {
	insightsCmd.Flags().IntVar(&insightsLast, "last", 10, "number of recent campaigns to analyze")
	rootCmd.AddCommand(insightsCmd)
}

func runInsights(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Logging)
	paths := storage.NewPaths(cfg.Data.Dir)

	ids, err := paths.PerformanceIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No stored campaign performance found.")
		fmt.Println(`Run a campaign first: pipeline "your blog topic"`)
		return nil
	}
	// Ids sort ascending by run timestamp, so the tail is the most recent.
	if insightsLast > 0 && len(ids) > insightsLast {
		ids = ids[len(ids)-insightsLast:]
	}

	prompter := llm.NewAnthropic(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	analyzer := analytics.NewAnalyzer(prompter, cfg, paths, logger.With("component", "analytics"))

	rows := analyzer.CompareCampaigns(ids)
	if len(rows) == 0 {
		fmt.Println("No stored campaign performance found.")
		return nil
	}

	fmt.Println()
	fmt.Println("Campaign Comparison")
	fmt.Println("===================")
	fmt.Println()
	fmt.Println(analytics.FormatComparison(rows))
	fmt.Println()

	report := analyzer.PersonaTrends(ids)
	fmt.Println("Persona Trends")
	fmt.Println("==============")
	fmt.Println()
	fmt.Println(report.Trends)
	for _, persona := range cfg.PersonaKeys() {
		if insight, ok := report.PersonaInsights[persona]; ok {
			fmt.Printf("   %s: %s\n", persona, insight)
		}
	}
	if len(report.Recommendations) > 0 {
		fmt.Println()
		fmt.Println("Recommendations:")
		for i, rec := range report.Recommendations {
			fmt.Printf("   %d. %s\n", i+1, rec)
		}
	}
	fmt.Println()

	topics := analyzer.TopicSuggestions(rows)
	fmt.Println("Suggested Topics")
	fmt.Println("================")
	fmt.Println()
	for i, topic := range topics {
		fmt.Printf("   %d. %s\n", i+1, topic)
	}

	return nil
}
