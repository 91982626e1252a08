package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/analytics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/config"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/content"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/crm"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/metrics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/pipeline"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/storage"
)

type fakePrompter struct {
	err error
}

func (f *fakePrompter) Prompt(system, user, schema string) (string, error) {
	return "", f.err
}

func setupTestServer(t *testing.T) (*Server, storage.Paths, *pipeline.StatusStore) {
	t.Helper()

	paths := storage.NewPaths(t.TempDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatalf("Failed to create data directories: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg.CRM.APIKey = ""
	cfg.Data.Dir = paths.DataDir
	cfg.Metrics.Enabled = true

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	prompter := &fakePrompter{err: errors.New("model unavailable")}

	store, err := crm.OpenStore(filepath.Join(paths.DataDir, "contacts.db"))
	if err != nil {
		t.Fatalf("Failed to open contact store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	statuses := pipeline.NewStatusStore()
	runner := pipeline.NewRunner(
		cfg,
		content.NewGenerator(prompter, cfg, logger),
		crm.NewClient(cfg, logger),
		analytics.NewAnalyzer(prompter, cfg, paths, logger),
		store,
		paths,
		statuses,
		logger,
	)

	server, err := NewServer(cfg, paths, runner, statuses, metrics.New(), logger)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return server, paths, statuses
}

func seedCampaignLog(t *testing.T, paths storage.Paths, id, title, sendDate string) {
	t.Helper()

	entry := crm.CampaignLog{
		CampaignID: id,
		BlogTitle:  title,
		SendDate:   sendDate,
		Personas:   []string{"creatives", "founders", "operations"},
		Status:     "simulated",
		Mode:       "mock",
		DistributionResults: map[string]crm.Distribution{
			"founders": {
				ID:         "campaign_founders_1234",
				Status:     crm.StatusSimulated,
				Persona:    "founders",
				Recipients: 88,
				Subject:    "New: " + title,
				Mock:       true,
			},
		},
	}
	if err := storage.SaveJSON(paths.CampaignLogPath(id), entry); err != nil {
		t.Fatalf("Failed to seed campaign log: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestIndexPage(t *testing.T) {
	server, paths, _ := setupTestServer(t)

	// Twelve campaigns: only the ten newest may appear, newest first.
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("campaign_202503%02d_100000_ab12cd%02d", i+1, i)
		seedCampaignLog(t, paths, id,
			fmt.Sprintf("Topic %02d", i),
			fmt.Sprintf("2025-03-%02dT10:00:00Z", i+1))
	}

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, title := range []string{"Topic 11", "Topic 02"} {
		if !strings.Contains(body, title) {
			t.Errorf("Index page is missing %q", title)
		}
	}
	for _, title := range []string{"Topic 00", "Topic 01"} {
		if strings.Contains(body, title) {
			t.Errorf("Index page lists %q, which is outside the newest ten", title)
		}
	}
	if strings.Index(body, "Topic 11") > strings.Index(body, "Topic 10") {
		t.Error("Index page is not sorted newest first")
	}
}

func TestIndexPageEmpty(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "No campaigns yet") {
		t.Error("Empty index page is missing its placeholder")
	}
}

func TestCreateFormPage(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/create", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, `name="topic"`) || !strings.Contains(body, `name="variations"`) {
		t.Error("Create page is missing its form fields")
	}
	if strings.Contains(body, "Please enter a topic") {
		t.Error("Create page shows a validation error before any submission")
	}
}

func TestCreateRejectsEmptyTopic(t *testing.T) {
	server, _, statuses := setupTestServer(t)

	tests := []struct {
		name string
		form string
	}{
		{"missing topic", "variations=on"},
		{"empty topic", "topic="},
		{"whitespace topic", "topic=+++"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/create", strings.NewReader(tt.form))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()

			server.router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
			}
			if !strings.Contains(w.Body.String(), "Please enter a topic") {
				t.Error("Expected the validation error on the re-rendered form")
			}
		})
	}

	if statuses.Len() != 0 {
		t.Errorf("Rejected submissions started %d runs", statuses.Len())
	}
}

func TestCreateStartsRun(t *testing.T) {
	server, paths, statuses := setupTestServer(t)

	form := "topic=Automating+Client+Onboarding&variations=on"
	req := httptest.NewRequest("POST", "/create", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, "/status/campaign_") {
		t.Fatalf("Unexpected redirect target: %q", location)
	}

	campaignID := strings.TrimPrefix(location, "/status/")
	status := waitForTerminal(t, statuses, campaignID)
	if status.Status != pipeline.StatusCompleted {
		t.Fatalf("Expected completed, got %q (error: %s)", status.Status, status.Error)
	}
	if _, err := paths.CampaignLogFiles(); err != nil {
		t.Errorf("Failed to list campaign logs after run: %v", err)
	}
}

func TestCampaignDetailPage(t *testing.T) {
	server, paths, _ := setupTestServer(t)

	id := "campaign_20250314_150926_ab12cd34"
	seedCampaignLog(t, paths, id, "Scaling Creative Agencies", "2025-03-14T15:09:26Z")

	record := analytics.PerformanceRecord{
		CampaignID: id,
		Timestamp:  "2025-03-14T15:09:30Z",
		Performance: map[string]analytics.Metrics{
			"founders": {Sent: 90, Delivered: 85, Opened: 0.425, Clicked: 0.12, Unsubscribed: 0.01, Bounced: 0.02},
		},
	}
	if err := storage.SaveJSON(paths.PerformancePath(id), record); err != nil {
		t.Fatalf("Failed to seed performance artifact: %v", err)
	}
	summary := analytics.Summary{
		Highlights:      "founders delivered the strongest click-through",
		Recommendations: []string{"Double down on ROI-focused subject lines"},
		NextTopics:      []string{"Client Reporting Automation"},
	}
	if err := storage.SaveJSON(paths.SummaryPath(id), summary); err != nil {
		t.Fatalf("Failed to seed summary artifact: %v", err)
	}

	req := httptest.NewRequest("GET", "/campaigns/"+id, nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Scaling Creative Agencies",
		"42.5%",
		"strongest click-through",
		"Client Reporting Automation",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Detail page is missing %q", want)
		}
	}
}

func TestCampaignDetailWithoutAnalytics(t *testing.T) {
	server, paths, _ := setupTestServer(t)

	id := "campaign_20250314_150926_ab12cd34"
	seedCampaignLog(t, paths, id, "Scaling Creative Agencies", "2025-03-14T15:09:26Z")

	req := httptest.NewRequest("GET", "/campaigns/"+id, nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Scaling Creative Agencies") {
		t.Error("Detail page is missing the campaign title")
	}
	if strings.Contains(body, "Opened") {
		t.Error("Detail page shows a performance table without an artifact")
	}
}

func TestCampaignDetailNotFound(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/campaigns/campaign_20990101_000000_deadbeef", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if !strings.Contains(w.Body.String(), "Campaign Not Found") {
		t.Error("Expected the not-found page")
	}
}

func TestStatusPageRunning(t *testing.T) {
	server, _, statuses := setupTestServer(t)

	id := "campaign_20250314_150926_ab12cd34"
	statuses.Set(id, pipeline.Status{
		Status:    pipeline.StatusRunning,
		Topic:     "Automating Client Onboarding",
		StartedAt: "2025-03-14T15:09:26Z",
	})

	req := httptest.NewRequest("GET", "/status/"+id, nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, "running") {
		t.Error("Status page is missing the run state")
	}
	if !strings.Contains(body, `http-equiv="refresh"`) {
		t.Error("Running status page should auto-refresh")
	}
}

func TestStatusPageFailed(t *testing.T) {
	server, _, statuses := setupTestServer(t)

	id := "campaign_20250314_150926_ab12cd34"
	statuses.Set(id, pipeline.Status{
		Status:   pipeline.StatusFailed,
		Topic:    "Doomed Topic",
		Error:    "write campaign log: disk full",
		FailedAt: "2025-03-14T15:09:50Z",
	})

	req := httptest.NewRequest("GET", "/status/"+id, nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, "disk full") {
		t.Error("Failed status page is missing the error message")
	}
	if strings.Contains(body, `http-equiv="refresh"`) {
		t.Error("Terminal status page must not auto-refresh")
	}
}

func TestStatusPageRedirectsWhenCompleted(t *testing.T) {
	server, paths, statuses := setupTestServer(t)

	id := "campaign_20250314_150926_ab12cd34"
	statuses.Set(id, pipeline.Status{Status: pipeline.StatusCompleted, CampaignID: id})
	seedCampaignLog(t, paths, id, "Scaling Creative Agencies", "2025-03-14T15:09:26Z")

	req := httptest.NewRequest("GET", "/status/"+id, nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusFound)
	}
	if got := w.Header().Get("Location"); got != "/campaigns/"+id {
		t.Errorf("Location = %q, want %q", got, "/campaigns/"+id)
	}
}

func TestStatusPageRedirectsFromArtifact(t *testing.T) {
	// No in-memory entry, only the stored artifact: the run finished before
	// a server restart.
	server, paths, _ := setupTestServer(t)

	id := "campaign_20250314_150926_ab12cd34"
	seedCampaignLog(t, paths, id, "Scaling Creative Agencies", "2025-03-14T15:09:26Z")

	req := httptest.NewRequest("GET", "/status/"+id, nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusFound)
	}
}

func TestStatusPageUnknownCampaign(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/status/campaign_20990101_000000_deadbeef", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "not_found") {
		t.Error("Expected the not_found state on the status page")
	}
}

func TestAPICampaigns(t *testing.T) {
	server, paths, _ := setupTestServer(t)

	seedCampaignLog(t, paths, "campaign_20250314_150926_ab12cd34", "First", "2025-03-14T15:09:26Z")
	seedCampaignLog(t, paths, "campaign_20250315_150926_ef56ab78", "Second", "2025-03-15T15:09:26Z")

	req := httptest.NewRequest("GET", "/api/campaigns", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var campaigns []crm.CampaignLog
	if err := json.NewDecoder(w.Body).Decode(&campaigns); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(campaigns) != 2 {
		t.Errorf("Expected 2 campaigns, got %d", len(campaigns))
	}
}

func TestAPICampaignsEmpty(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/campaigns", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("Expected an empty JSON array, got %q", got)
	}
}

func TestAPIStatus(t *testing.T) {
	server, paths, statuses := setupTestServer(t)

	running := "campaign_20250314_150926_ab12cd34"
	statuses.Set(running, pipeline.Status{Status: pipeline.StatusRunning, Topic: "Onboarding"})

	completed := "campaign_20250315_150926_ef56ab78"
	seedCampaignLog(t, paths, completed, "Archived", "2025-03-15T15:09:26Z")

	t.Run("running from table", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/status/"+running, nil)
		w := httptest.NewRecorder()
		server.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		var status pipeline.Status
		if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if status.Status != pipeline.StatusRunning || status.Topic != "Onboarding" {
			t.Errorf("Unexpected status payload: %+v", status)
		}
	})

	t.Run("completed from artifact", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/status/"+completed, nil)
		w := httptest.NewRecorder()
		server.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		var resp StatusResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Status != pipeline.StatusCompleted || resp.CampaignID != completed {
			t.Errorf("Unexpected status payload: %+v", resp)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/status/campaign_20990101_000000_deadbeef", nil)
		w := httptest.NewRecorder()
		server.router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
		var resp StatusResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Status != pipeline.StatusNotFound {
			t.Errorf("status = %q, want %q", resp.Status, pipeline.StatusNotFound)
		}
	})
}

func TestAPIPerformance(t *testing.T) {
	server, paths, _ := setupTestServer(t)

	id := "campaign_20250314_150926_ab12cd34"
	record := analytics.PerformanceRecord{
		CampaignID: id,
		Timestamp:  "2025-03-14T15:09:30Z",
		Performance: map[string]analytics.Metrics{
			"creatives": {Sent: 95, Delivered: 91, Opened: 0.51, Clicked: 0.2},
		},
	}
	if err := storage.SaveJSON(paths.PerformancePath(id), record); err != nil {
		t.Fatalf("Failed to seed performance artifact: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/performance/"+id, nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	var got analytics.PerformanceRecord
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.CampaignID != id || got.Performance["creatives"].Sent != 95 {
		t.Errorf("Unexpected performance payload: %+v", got)
	}
}

func TestAPIPerformanceNotFound(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/performance/campaign_20990101_000000_deadbeef", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != "Performance data not found" {
		t.Errorf("error = %q, want %q", resp.Error, "Performance data not found")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "pipeline_runs_active") {
		t.Error("Metrics output is missing the pipeline gauges")
	}
}

func waitForTerminal(t *testing.T, statuses *pipeline.StatusStore, campaignID string) pipeline.Status {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for {
		status, ok := statuses.Get(campaignID)
		if ok && (status.Status == pipeline.StatusCompleted || status.Status == pipeline.StatusFailed) {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("Run %s did not reach a terminal state (last: %+v)", campaignID, status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
