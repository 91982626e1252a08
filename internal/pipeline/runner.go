// Package pipeline sequences one campaign run: content generation, CRM
// distribution and performance analysis, with every stage output persisted
// before the next stage begins. Runs started in the background report their
// progress through an in-memory status store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/analytics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/config"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/content"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/crm"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/metrics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/storage"
)

// Options selects the optional stages of one run.
type Options struct {
	Topic              string
	GenerateVariations bool
	UseMockContacts    bool

	// OnStage, when set, receives each completed stage name together with
	// the result accumulated so far. The CLI prints progress through it;
	// background runs leave it nil.
	OnStage func(stage string, result *Result)
}

// ContentArtifact is the persisted output of the generation stages. The
// variations key is present only when variations were requested.
type ContentArtifact struct {
	CampaignID  string                        `json:"campaign_id"`
	Topic       string                        `json:"topic"`
	Blog        content.BlogPost              `json:"blog"`
	Newsletters map[string]content.Newsletter `json:"newsletters"`
	Variations  []string                      `json:"variations,omitempty"`
	CreatedAt   string                        `json:"created_at"`
}

// Result collects every stage output of a completed run. Nothing is
// discarded: what the artifacts hold, the caller gets back too.
type Result struct {
	CampaignID   string
	Topic        string
	Blog         content.BlogPost
	Newsletters  map[string]content.Newsletter
	Variations   []string
	Segments     map[string][]crm.Contact
	Distribution map[string]crm.Distribution
	Log          crm.CampaignLog
	Performance  map[string]analytics.Metrics
	Summary      analytics.Summary
	Improvements *content.Improvements
	Mode         string
	ContentFile  string
}

// Runner executes campaign pipelines. One Runner serves all runs; each run
// owns its own goroutine and its own artifact files, so runs never contend
// with each other.
type Runner struct {
	cfg       *config.Config
	generator *content.Generator
	crm       *crm.Client
	analyzer  *analytics.Analyzer
	contacts  *crm.Store
	paths     storage.Paths
	statuses  *StatusStore
	logger    *slog.Logger
}

// NewRunner creates a pipeline runner. The contact store may be nil, in
// which case mock contact batches are not persisted across runs.
func NewRunner(
	cfg *config.Config,
	generator *content.Generator,
	crmClient *crm.Client,
	analyzer *analytics.Analyzer,
	contacts *crm.Store,
	paths storage.Paths,
	statuses *StatusStore,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		cfg:       cfg,
		generator: generator,
		crm:       crmClient,
		analyzer:  analyzer,
		contacts:  contacts,
		paths:     paths,
		statuses:  statuses,
		logger:    logger,
	}
}

// Start mints a campaign id and launches the run on its own goroutine,
// returning the id immediately. Progress is visible through the status
// store; the run is attempted exactly once and a failure is terminal.
func (r *Runner) Start(opts Options) string {
	campaignID := storage.NewCampaignID()

	r.statuses.Set(campaignID, Status{
		Status:     StatusStarting,
		Topic:      opts.Topic,
		CampaignID: campaignID,
		StartedAt:  storage.FormatTimestamp(),
	})

	go r.run(campaignID, opts)

	r.logger.Info("pipeline started", "campaign_id", campaignID, "topic", opts.Topic)
	return campaignID
}

// run drives one background run through the status state machine:
// starting -> running -> completed or failed.
func (r *Runner) run(campaignID string, opts Options) {
	metrics.RunStarted()

	status, _ := r.statuses.Get(campaignID)

	defer func() {
		if rec := recover(); rec != nil {
			r.fail(campaignID, status, fmt.Sprintf("panic: %v", rec), string(debug.Stack()))
		}
	}()

	status.Status = StatusRunning
	r.statuses.Set(campaignID, status)

	if _, err := r.Execute(context.Background(), campaignID, opts); err != nil {
		r.fail(campaignID, status, err.Error(), string(debug.Stack()))
		return
	}

	status.Status = StatusCompleted
	status.CompletedAt = storage.FormatTimestamp()
	r.statuses.Set(campaignID, status)
	metrics.RunFinished(StatusCompleted)

	r.logger.Info("pipeline completed", "campaign_id", campaignID)
}

// fail records a terminal failure. The message and trace stay in the status
// store for the dashboard; there is no retry.
func (r *Runner) fail(campaignID string, status Status, message, trace string) {
	r.logger.Error("pipeline failed", "campaign_id", campaignID, "error", message)

	status.Status = StatusFailed
	status.FailedAt = storage.FormatTimestamp()
	status.Error = message
	status.Trace = trace
	r.statuses.Set(campaignID, status)
	metrics.RunFinished(StatusFailed)
}

// Execute runs every pipeline stage in order for an already-minted campaign
// id. Generation and CRM failures degrade inside their clients; an error
// here means something unanticipated (typically an artifact write) and
// terminates the run.
func (r *Runner) Execute(ctx context.Context, campaignID string, opts Options) (*Result, error) {
	logger := r.logger.With("campaign_id", campaignID)
	logger.Info("running pipeline", "topic", opts.Topic)

	result := &Result{CampaignID: campaignID, Topic: opts.Topic}

	// stage runs fn, records its duration under the stage name and reports
	// the completion to the observer.
	stage := func(name string, fn func()) {
		start := time.Now()
		fn()
		metrics.ObserveStage(name, time.Since(start).Seconds())
		if opts.OnStage != nil {
			opts.OnStage(name, result)
		}
	}

	// Content generation. Each sub-task falls back to a template on
	// failure, so these stages always produce usable values.
	stage("generate_blog", func() {
		result.Blog = r.generator.GenerateBlogPost(opts.Topic)
	})

	if opts.GenerateVariations {
		stage("generate_variations", func() {
			result.Variations = r.generator.GenerateVariations(result.Blog.Content, r.cfg.Content.VariationCount)
		})
	}

	stage("generate_newsletters", func() {
		result.Newsletters = r.generator.GenerateNewsletters(result.Blog)
	})

	result.ContentFile = r.paths.ContentPath(result.Blog.Title, campaignID)
	if err := storage.SaveJSON(result.ContentFile, ContentArtifact{
		CampaignID:  campaignID,
		Topic:       opts.Topic,
		Blog:        result.Blog,
		Newsletters: result.Newsletters,
		Variations:  result.Variations,
		CreatedAt:   storage.FormatTimestamp(),
	}); err != nil {
		return nil, fmt.Errorf("persisting content artifact: %w", err)
	}
	logger.Info("content artifact saved", "path", result.ContentFile)

	// Contact management. Mock batches are kept in the contact store so
	// repeated runs address the same audience; with mock contacts disabled
	// the stored audience is used instead.
	stage("manage_contacts", func() {
		contacts := r.gatherContacts(ctx, opts, logger)
		result.Segments = r.crm.SegmentContacts(contacts)
	})

	campaign := crm.Campaign{
		ID:          campaignID,
		BlogTitle:   result.Blog.Title,
		Newsletters: result.Newsletters,
	}

	stage("send_campaign", func() {
		result.Distribution = r.crm.SendCampaign(ctx, campaign)
	})

	result.Log = r.crm.LogCampaign(campaign, result.Distribution)
	result.Mode = result.Log.Mode
	if err := storage.SaveJSON(r.paths.CampaignLogPath(campaignID), result.Log); err != nil {
		return nil, fmt.Errorf("persisting campaign log: %w", err)
	}
	logger.Info("campaign log saved", "mode", result.Mode)

	// Performance analysis.
	stage("simulate_performance", func() {
		result.Performance = r.analyzer.SimulatePerformance(campaignID, r.cfg.PersonaKeys())
	})
	if _, err := r.analyzer.StorePerformance(campaignID, result.Performance); err != nil {
		return nil, fmt.Errorf("persisting performance artifact: %w", err)
	}

	stage("generate_summary", func() {
		result.Summary = r.analyzer.Summary(result.Performance, result.Blog.Title)
	})
	if err := storage.SaveJSON(r.paths.SummaryPath(campaignID), result.Summary); err != nil {
		return nil, fmt.Errorf("persisting summary artifact: %w", err)
	}

	// Improvement suggestions ride on the variations flag, as a second
	// optional generation pass informed by the simulated metrics. Without
	// the flag no improvements artifact exists at all.
	if opts.GenerateVariations {
		stage("generate_improvements", func() {
			improvements := r.generator.SuggestImprovements(result.Blog.Content, result.Performance)
			result.Improvements = &improvements
		})
		if err := storage.SaveJSON(r.paths.ImprovementsPath(campaignID), result.Improvements); err != nil {
			return nil, fmt.Errorf("persisting improvements artifact: %w", err)
		}
	}

	logger.Info("pipeline finished", "mode", result.Mode)
	return result, nil
}

// gatherContacts assembles the audience for this run and pushes it to the
// CRM when the client is live. Store failures only cost persistence of the
// mock audience, never the run.
func (r *Runner) gatherContacts(ctx context.Context, opts Options, logger *slog.Logger) []crm.Contact {
	var contacts []crm.Contact

	if opts.UseMockContacts {
		contacts = r.crm.CreateMockContacts(r.cfg.Content.MockContactsPerPersona)
		if r.contacts != nil {
			if err := r.contacts.SaveContacts(contacts); err != nil {
				logger.Warn("failed to persist mock contacts", "error", err)
			}
		}
	} else if r.contacts != nil {
		stored, err := r.contacts.Contacts()
		if err != nil {
			logger.Warn("failed to load stored contacts", "error", err)
		} else {
			contacts = stored
			logger.Info("using stored contacts", "count", len(contacts))
		}
	}

	if !r.crm.MockMode() {
		for _, contact := range contacts {
			r.crm.UpsertContact(ctx, contact)
		}
	}

	return contacts
}
