package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/analytics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/config"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/content"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/crm"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/llm"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/pipeline"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/storage"
)

func runPipeline(cmd *cobra.Command, args []string) error {
	if showSetup {
		fmt.Println(crm.SetupInstructions())
		return nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := pipeline.Options{
		GenerateVariations: variations,
		UseMockContacts:    !noMock,
	}
	if len(args) > 0 {
		opts.Topic = strings.TrimSpace(args[0])
	}

	fmt.Println()
	fmt.Println("NovaMind Marketing Content Pipeline")
	fmt.Println("===================================")
	fmt.Println()

	// No topic on the command line starts the interactive mode, which always
	// runs against a fresh mock audience.
	if opts.Topic == "" {
		reader := bufio.NewReader(os.Stdin)

		opts.Topic = prompt(reader, "Enter a blog topic", "")
		if opts.Topic == "" {
			return fmt.Errorf("a topic is required")
		}

		answer := strings.ToLower(prompt(reader, "Generate variations? [y/N]", "n"))
		opts.GenerateVariations = answer == "y" || answer == "yes"
		opts.UseMockContacts = true
		fmt.Println()
	}

	return runCampaign(cfg, opts)
}

func runCampaign(cfg *config.Config, opts pipeline.Options) error {
	logger := newLogger(cfg.Logging)

	paths := storage.NewPaths(cfg.Data.Dir)
	if err := paths.EnsureDirs(); err != nil {
		return err
	}

	prompter := llm.NewAnthropic(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	crmClient := crm.NewClient(cfg, logger.With("component", "crm"))

	store, err := crm.OpenStore(filepath.Join(cfg.Data.Dir, "contacts.db"))
	if err != nil {
		return fmt.Errorf("failed to open contact store: %w", err)
	}
	defer store.Close()

	runner := pipeline.NewRunner(
		cfg,
		content.NewGenerator(prompter, cfg, logger.With("component", "content")),
		crmClient,
		analytics.NewAnalyzer(prompter, cfg, paths, logger.With("component", "analytics")),
		store,
		paths,
		pipeline.NewStatusStore(),
		logger,
	)

	if crmClient.MockMode() {
		fmt.Println("Running in MOCK MODE (no real HubSpot API calls)")
		fmt.Println("To enable HubSpot integration, add HUBSPOT_API_KEY to .env")
		fmt.Println()
	} else if !opts.UseMockContacts {
		fmt.Println("Using the stored contact audience with the live HubSpot API")
		fmt.Println()
	}

	campaignID := storage.NewCampaignID()
	fmt.Printf("Campaign ID: %s\n\n", campaignID)

	printer := &reportPrinter{cfg: cfg, out: os.Stdout}
	opts.OnStage = printer.stageDone

	result, err := runner.Execute(context.Background(), campaignID, opts)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	printer.finish(result, paths)
	return nil
}

// reportPrinter renders each stage's results as the runner completes it, then
// a closing recap. Personas print in registry order throughout.
type reportPrinter struct {
	cfg *config.Config
	out io.Writer
}

func (p *reportPrinter) stageDone(stage string, result *pipeline.Result) {
	switch stage {
	case "generate_blog":
		fmt.Fprintln(p.out, "Step 1: Generating blog content")
		fmt.Fprintf(p.out, "   Blog Title: %s\n", result.Blog.Title)
		fmt.Fprintf(p.out, "   Word Count: %d words\n\n", len(strings.Fields(result.Blog.Content)))

	case "generate_variations":
		fmt.Fprintln(p.out, "Generating content variations")
		fmt.Fprintf(p.out, "   Generated %d variations\n\n", len(result.Variations))

	case "generate_newsletters":
		fmt.Fprintln(p.out, "Step 2: Generating personalized newsletters")
		for _, persona := range p.cfg.PersonaKeys() {
			if n, ok := result.Newsletters[persona]; ok {
				fmt.Fprintf(p.out, "   %s: %s\n", persona, n.SubjectLine)
			}
		}
		fmt.Fprintln(p.out)

	case "manage_contacts":
		fmt.Fprintf(p.out, "Content saved: %s\n\n", result.ContentFile)
		fmt.Fprintln(p.out, "Step 3: Managing CRM contacts")
		total := 0
		for _, persona := range p.cfg.PersonaKeys() {
			group := result.Segments[persona]
			total += len(group)
			fmt.Fprintf(p.out, "   %s: %d contacts\n", persona, len(group))
		}
		fmt.Fprintf(p.out, "   Total: %d contacts\n\n", total)

	case "send_campaign":
		fmt.Fprintln(p.out, "Step 4: Distributing campaign")
		simulated, recipients := 0, 0
		for _, dist := range result.Distribution {
			if dist.Status == crm.StatusSimulated {
				simulated++
			}
			recipients += dist.Recipients
		}
		if simulated == len(result.Distribution) {
			fmt.Fprintln(p.out, "   Campaign distribution simulated")
			fmt.Fprintf(p.out, "   Total simulated recipients: %d\n\n", recipients)
		} else {
			fmt.Fprintln(p.out, "   Campaign sent via HubSpot Marketing Hub")
			fmt.Fprintf(p.out, "   Distributed to %d segments\n\n", len(result.Distribution))
		}

	case "simulate_performance":
		fmt.Fprintln(p.out, "Step 5: Analyzing performance")
		w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "   persona\tsent\tdelivered\topen rate\tclick rate\tunsubscribe")
		for _, persona := range p.cfg.PersonaKeys() {
			m, ok := result.Performance[persona]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "   %s\t%d\t%d\t%.1f%%\t%.1f%%\t%.2f%%\n",
				persona, m.Sent, m.Delivered, m.Opened*100, m.Clicked*100, m.Unsubscribed*100)
		}
		w.Flush()
		fmt.Fprintln(p.out)

	case "generate_summary":
		s := result.Summary
		fmt.Fprintln(p.out, "Performance summary")
		fmt.Fprintf(p.out, "   Highlights: %s\n", s.Highlights)
		fmt.Fprintf(p.out, "   Comparison: %s\n", s.PersonaComparison)
		if len(s.Recommendations) > 0 {
			fmt.Fprintln(p.out, "   Recommendations:")
			for i, rec := range s.Recommendations {
				fmt.Fprintf(p.out, "      %d. %s\n", i+1, rec)
			}
		}
		if len(s.NextTopics) > 0 {
			fmt.Fprintln(p.out, "   Suggested next topics:")
			for i, topic := range s.NextTopics {
				fmt.Fprintf(p.out, "      %d. %s\n", i+1, topic)
			}
		}
		fmt.Fprintln(p.out)

	case "generate_improvements":
		if result.Improvements == nil {
			return
		}
		fmt.Fprintln(p.out, "Generating content improvement suggestions")
		fmt.Fprintf(p.out, "   Headline alternatives: %d\n", len(result.Improvements.HeadlineSuggestions))
		fmt.Fprintf(p.out, "   Engagement tactics: %d\n\n", len(result.Improvements.EngagementTactics))
	}
}

func (p *reportPrinter) finish(result *pipeline.Result, paths storage.Paths) {
	fmt.Fprintf(p.out, "Analysis saved: %s\n", paths.SummaryPath(result.CampaignID))
	if result.Improvements != nil {
		fmt.Fprintf(p.out, "Improvements saved: %s\n", paths.ImprovementsPath(result.CampaignID))
	}
	fmt.Fprintln(p.out)

	fmt.Fprintln(p.out, "Pipeline Summary")
	fmt.Fprintln(p.out, "================")
	fmt.Fprintf(p.out, "   Campaign ID:     %s\n", result.CampaignID)
	fmt.Fprintf(p.out, "   Blog Title:      %s\n", result.Blog.Title)
	fmt.Fprintf(p.out, "   Newsletters:     %d\n", len(result.Newsletters))
	fmt.Fprintf(p.out, "   Best Performing: %s\n", p.bestSegment(result.Performance))
	fmt.Fprintf(p.out, "   Mode:            %s\n", result.Mode)

	if result.Mode == crm.ModeMock {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, `To connect a live HubSpot account, run "pipeline --setup"`)
	}
}

func (p *reportPrinter) bestSegment(performance map[string]analytics.Metrics) string {
	best := ""
	bestClicked := -1.0
	for _, persona := range p.cfg.PersonaKeys() {
		m, ok := performance[persona]
		if !ok {
			continue
		}
		if m.Clicked > bestClicked {
			best, bestClicked = persona, m.Clicked
		}
	}
	if best == "" {
		return "n/a"
	}
	return fmt.Sprintf("%s (%.1f%% click rate)", best, bestClicked*100)
}

func prompt(reader *bufio.Reader, question, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", question, defaultValue)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultValue
	}
	return input
}

// newLogger builds the CLI logger. Logs go to stderr so the report on stdout
// stays clean.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
