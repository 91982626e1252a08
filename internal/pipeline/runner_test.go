package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/analytics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/config"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/content"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/crm"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/storage"
)

// fakePrompter fails every model call so each generation sub-task takes its
// deterministic fallback path and runs complete without any network.
type fakePrompter struct {
	response string
	err      error
}

func (f *fakePrompter) Prompt(system, user, schema string) (string, error) {
	return f.response, f.err
}

func testRunner(t *testing.T, paths storage.Paths) (*Runner, *StatusStore) {
	t.Helper()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg.CRM.APIKey = "" // force mock mode regardless of environment
	cfg.Data.Dir = paths.DataDir

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	prompter := &fakePrompter{err: errors.New("model unavailable")}

	store, err := crm.OpenStore(filepath.Join(paths.DataDir, "contacts.db"))
	if err != nil {
		t.Fatalf("Failed to open contact store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	statuses := NewStatusStore()
	runner := NewRunner(
		cfg,
		content.NewGenerator(prompter, cfg, logger),
		crm.NewClient(cfg, logger),
		analytics.NewAnalyzer(prompter, cfg, paths, logger),
		store,
		paths,
		statuses,
		logger,
	)
	return runner, statuses
}

func TestExecuteMockScenario(t *testing.T) {
	paths := storage.NewPaths(t.TempDir())
	runner, _ := testRunner(t, paths)

	campaignID := storage.NewCampaignID()
	result, err := runner.Execute(context.Background(), campaignID, Options{
		Topic:           "Automating Client Onboarding",
		UseMockContacts: true,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Mode != "mock" {
		t.Errorf("Expected mock mode, got %q", result.Mode)
	}

	// Content artifact: one blog, one newsletter per persona.
	var artifact ContentArtifact
	if err := storage.LoadJSON(result.ContentFile, &artifact); err != nil {
		t.Fatalf("Failed to load content artifact: %v", err)
	}
	if artifact.CampaignID != campaignID {
		t.Errorf("Content artifact keyed by %q, want %q", artifact.CampaignID, campaignID)
	}
	if artifact.Topic != "Automating Client Onboarding" {
		t.Errorf("Unexpected topic: %q", artifact.Topic)
	}
	if artifact.Blog.Title == "" || artifact.Blog.Content == "" {
		t.Error("Blog artifact is missing title or content")
	}
	if len(artifact.Newsletters) != 3 {
		t.Fatalf("Expected 3 newsletters, got %d", len(artifact.Newsletters))
	}
	for persona, n := range artifact.Newsletters {
		if n.SubjectLine == "" || n.Content == "" {
			t.Errorf("%s: newsletter has empty subject or content", persona)
		}
	}
	if artifact.CreatedAt == "" {
		t.Error("Content artifact is missing created_at")
	}

	// Campaign log: mock mode, three simulated distributions.
	var log crm.CampaignLog
	if err := storage.LoadJSON(paths.CampaignLogPath(campaignID), &log); err != nil {
		t.Fatalf("Failed to load campaign log: %v", err)
	}
	if log.Mode != "mock" || log.Status != "simulated" {
		t.Errorf("Expected mock/simulated log, got %s/%s", log.Mode, log.Status)
	}
	if len(log.DistributionResults) != 3 {
		t.Fatalf("Expected 3 distribution results, got %d", len(log.DistributionResults))
	}
	for persona, dist := range log.DistributionResults {
		if dist.Recipients < 80 || dist.Recipients > 100 {
			t.Errorf("%s: recipients %d outside [80,100]", persona, dist.Recipients)
		}
		if !dist.Mock {
			t.Errorf("%s: expected a mock distribution", persona)
		}
	}

	// Performance artifact: metric invariants per persona.
	var record analytics.PerformanceRecord
	if err := storage.LoadJSON(paths.PerformancePath(campaignID), &record); err != nil {
		t.Fatalf("Failed to load performance artifact: %v", err)
	}
	if len(record.Performance) != 3 {
		t.Fatalf("Expected 3 persona entries, got %d", len(record.Performance))
	}
	for persona, m := range record.Performance {
		if m.Clicked < 0 || m.Clicked > m.Opened || m.Opened > 0.95 {
			t.Errorf("%s: rate invariant violated: clicked=%v opened=%v", persona, m.Clicked, m.Opened)
		}
		if m.Delivered > m.Sent || m.Delivered < int(float64(m.Sent)*0.85) {
			t.Errorf("%s: delivered %d outside [0.85*sent, sent] for sent %d", persona, m.Delivered, m.Sent)
		}
	}

	// Summary artifact: non-empty recommendations and next topics.
	var summary analytics.Summary
	if err := storage.LoadJSON(paths.SummaryPath(campaignID), &summary); err != nil {
		t.Fatalf("Failed to load summary artifact: %v", err)
	}
	if len(summary.Recommendations) == 0 {
		t.Error("Summary has no recommendations")
	}
	if len(summary.NextTopics) == 0 {
		t.Error("Summary has no next topics")
	}

	// No variations requested: no improvements artifact, no variations key.
	if _, err := os.Stat(paths.ImprovementsPath(campaignID)); !errors.Is(err, os.ErrNotExist) {
		t.Error("Improvements artifact must not exist without the variations flag")
	}
	raw, err := os.ReadFile(result.ContentFile)
	if err != nil {
		t.Fatalf("Failed to read content artifact: %v", err)
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Content artifact is not valid JSON: %v", err)
	}
	if _, ok := generic["variations"]; ok {
		t.Error("Content artifact must omit variations when none were requested")
	}
}

func TestExecuteWithVariations(t *testing.T) {
	paths := storage.NewPaths(t.TempDir())
	runner, _ := testRunner(t, paths)

	campaignID := storage.NewCampaignID()
	result, err := runner.Execute(context.Background(), campaignID, Options{
		Topic:              "Creative Briefs That Write Themselves",
		GenerateVariations: true,
		UseMockContacts:    true,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// Fallback variations echo the original content.
	if len(result.Variations) != 1 {
		t.Fatalf("Expected the fallback variation, got %d", len(result.Variations))
	}

	var artifact ContentArtifact
	if err := storage.LoadJSON(result.ContentFile, &artifact); err != nil {
		t.Fatalf("Failed to load content artifact: %v", err)
	}
	if len(artifact.Variations) != 1 {
		t.Errorf("Expected variations in the content artifact, got %v", artifact.Variations)
	}

	if result.Improvements == nil {
		t.Fatal("Expected improvement suggestions")
	}
	var improvements content.Improvements
	if err := storage.LoadJSON(paths.ImprovementsPath(campaignID), &improvements); err != nil {
		t.Fatalf("Failed to load improvements artifact: %v", err)
	}
	if len(improvements.HeadlineSuggestions) == 0 || len(improvements.EngagementTactics) == 0 {
		t.Errorf("Improvements artifact is incomplete: %+v", improvements)
	}
}

func TestExecutePersistsContacts(t *testing.T) {
	paths := storage.NewPaths(t.TempDir())
	runner, _ := testRunner(t, paths)

	_, err := runner.Execute(context.Background(), storage.NewCampaignID(), Options{
		Topic:           "Workflow Automation",
		UseMockContacts: true,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	count, err := runner.contacts.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 30 {
		t.Errorf("Expected 30 stored contacts (10 per persona), got %d", count)
	}

	stored, err := runner.contacts.Contacts()
	if err != nil {
		t.Fatalf("Contacts failed: %v", err)
	}
	for _, contact := range stored {
		if contact.Email == "" || contact.Persona == "" {
			t.Errorf("Stored contact is incomplete: %+v", contact)
		}
	}
}

func TestExecuteStoredAudience(t *testing.T) {
	paths := storage.NewPaths(t.TempDir())
	runner, _ := testRunner(t, paths)

	seed := []crm.Contact{
		{Email: "casey@visionworks.com", FirstName: "Casey", Persona: "creatives"},
		{Email: "drew@techcanvas.com", FirstName: "Drew", Persona: "operations"},
	}
	if err := runner.contacts.SaveContacts(seed); err != nil {
		t.Fatalf("SaveContacts failed: %v", err)
	}

	result, err := runner.Execute(context.Background(), storage.NewCampaignID(), Options{
		Topic:           "Workflow Automation",
		UseMockContacts: false,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(result.Segments["creatives"]) != 1 || len(result.Segments["operations"]) != 1 {
		t.Errorf("Expected the stored audience to be segmented, got %v", segmentCounts(result.Segments))
	}
}

func TestExecuteReportsStages(t *testing.T) {
	paths := storage.NewPaths(t.TempDir())
	runner, _ := testRunner(t, paths)

	var stages []string
	_, err := runner.Execute(context.Background(), storage.NewCampaignID(), Options{
		Topic:              "Creative Automation",
		GenerateVariations: true,
		UseMockContacts:    true,
		OnStage: func(stage string, result *Result) {
			stages = append(stages, stage)
			switch stage {
			case "generate_blog":
				if result.Blog.Title == "" {
					t.Error("Blog not populated when its stage was reported")
				}
			case "generate_improvements":
				if result.Improvements == nil {
					t.Error("Improvements not populated when their stage was reported")
				}
			}
		},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []string{
		"generate_blog",
		"generate_variations",
		"generate_newsletters",
		"manage_contacts",
		"send_campaign",
		"simulate_performance",
		"generate_summary",
		"generate_improvements",
	}
	if len(stages) != len(want) {
		t.Fatalf("Reported stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("Stage %d = %q, want %q", i, stages[i], want[i])
		}
	}
}

func segmentCounts(segments map[string][]crm.Contact) map[string]int {
	counts := make(map[string]int, len(segments))
	for persona, group := range segments {
		counts[persona] = len(group)
	}
	return counts
}

func TestStartCompletes(t *testing.T) {
	paths := storage.NewPaths(t.TempDir())
	runner, statuses := testRunner(t, paths)

	campaignID := runner.Start(Options{Topic: "Automating Client Onboarding", UseMockContacts: true})
	if campaignID == "" {
		t.Fatal("Start returned an empty campaign id")
	}

	status := waitForTerminal(t, statuses, campaignID)
	if status.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %q (error: %s)", status.Status, status.Error)
	}
	if status.Topic != "Automating Client Onboarding" {
		t.Errorf("Unexpected topic in status: %q", status.Topic)
	}
	if status.StartedAt == "" || status.CompletedAt == "" {
		t.Error("Expected start and completion timestamps")
	}
	if status.Error != "" {
		t.Errorf("Completed run carries an error: %q", status.Error)
	}

	if _, err := os.Stat(paths.CampaignLogPath(campaignID)); err != nil {
		t.Errorf("Campaign log missing after completed run: %v", err)
	}
}

func TestStartFailureIsTerminal(t *testing.T) {
	// A regular file where the content directory should be makes the first
	// artifact write fail, exercising the unanticipated-error path.
	paths := storage.NewPaths(t.TempDir())
	if err := os.WriteFile(paths.ContentDir(), []byte("not a directory"), 0644); err != nil {
		t.Fatalf("Failed to create blocking file: %v", err)
	}

	runner, statuses := testRunner(t, paths)

	campaignID := runner.Start(Options{Topic: "Doomed Topic", UseMockContacts: true})

	status := waitForTerminal(t, statuses, campaignID)
	if status.Status != StatusFailed {
		t.Fatalf("Expected failed, got %q", status.Status)
	}
	if status.Error == "" {
		t.Error("Failed run is missing its error message")
	}
	if status.Trace == "" {
		t.Error("Failed run is missing its trace")
	}
	if status.FailedAt == "" {
		t.Error("Failed run is missing its failure timestamp")
	}
}

func waitForTerminal(t *testing.T, statuses *StatusStore, campaignID string) Status {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for {
		status, ok := statuses.Get(campaignID)
		if ok && (status.Status == StatusCompleted || status.Status == StatusFailed) {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("Run %s did not reach a terminal state (last: %+v)", campaignID, status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
