package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/analytics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/crm"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/pipeline"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/storage"
)

// maxIndexCampaigns caps how many campaigns the index page lists
const maxIndexCampaigns = 10

type indexData struct {
	Campaigns []crm.CampaignLog
}

type createData struct {
	Topic string
	Error string
}

type statusData struct {
	CampaignID string
	Status     pipeline.Status
	Refresh    bool
}

type campaignData struct {
	Campaign    crm.CampaignLog
	Performance *analytics.PerformanceRecord
	Summary     *analytics.Summary
}

type notFoundData struct {
	CampaignID string
}

// StatusResponse is the response for GET /api/status/{campaignID} when the
// run is no longer tracked in memory
type StatusResponse struct {
	Status     string `json:"status"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	campaigns := s.loadCampaignLogs()

	sort.Slice(campaigns, func(i, j int) bool {
		return campaigns[i].SendDate > campaigns[j].SendDate
	})
	if len(campaigns) > maxIndexCampaigns {
		campaigns = campaigns[:maxIndexCampaigns]
	}

	s.renderPage(w, http.StatusOK, "index", indexData{Campaigns: campaigns})
}

// handleCreateForm handles GET /create
func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, "create", createData{})
}

// handleCreate handles POST /create. A valid topic starts a background run
// and redirects to its status page.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	topic := r.FormValue("topic")
	variations := r.FormValue("variations") == "on"

	if strings.TrimSpace(topic) == "" {
		s.renderPage(w, http.StatusOK, "create", createData{Error: "Please enter a topic"})
		return
	}

	campaignID := s.runner.Start(pipeline.Options{
		Topic:              topic,
		GenerateVariations: variations,
		UseMockContacts:    true,
	})

	s.logger.Info("started pipeline run", "campaign_id", campaignID, "topic", topic)
	http.Redirect(w, r, "/status/"+campaignID, http.StatusSeeOther)
}

// handleCampaignDetail handles GET /campaigns/{campaignID}. Performance and
// summary artifacts are optional; the page renders without them.
func (s *Server) handleCampaignDetail(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	var campaign crm.CampaignLog
	if err := storage.LoadJSON(s.paths.CampaignLogPath(campaignID), &campaign); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.renderPage(w, http.StatusNotFound, "not_found", notFoundData{CampaignID: campaignID})
			return
		}
		s.logger.Error("failed to load campaign log", "campaign_id", campaignID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := campaignData{Campaign: campaign}

	var performance analytics.PerformanceRecord
	if err := storage.LoadJSON(s.paths.PerformancePath(campaignID), &performance); err == nil {
		data.Performance = &performance
	} else if !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("failed to load performance artifact", "campaign_id", campaignID, "error", err)
	}

	var summary analytics.Summary
	if err := storage.LoadJSON(s.paths.SummaryPath(campaignID), &summary); err == nil {
		data.Summary = &summary
	} else if !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("failed to load summary artifact", "campaign_id", campaignID, "error", err)
	}

	s.renderPage(w, http.StatusOK, "campaign", data)
}

// handleStatusPage handles GET /status/{campaignID}. Completed runs redirect
// to the campaign detail page once the log artifact exists; ids known only
// through an artifact (run finished before a restart) redirect directly.
func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	if status, ok := s.statuses.Get(campaignID); ok {
		if status.Status == pipeline.StatusCompleted && s.campaignLogExists(campaignID) {
			http.Redirect(w, r, "/campaigns/"+campaignID, http.StatusFound)
			return
		}
		s.renderPage(w, http.StatusOK, "status", statusData{
			CampaignID: campaignID,
			Status:     status,
			Refresh:    status.Status == pipeline.StatusStarting || status.Status == pipeline.StatusRunning,
		})
		return
	}

	if s.campaignLogExists(campaignID) {
		http.Redirect(w, r, "/campaigns/"+campaignID, http.StatusFound)
		return
	}

	s.renderPage(w, http.StatusOK, "status", statusData{
		CampaignID: campaignID,
		Status:     pipeline.Status{Status: pipeline.StatusNotFound, Topic: "Unknown"},
	})
}

// handleAPICampaigns handles GET /api/campaigns
func (s *Server) handleAPICampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns := s.loadCampaignLogs()
	if campaigns == nil {
		campaigns = []crm.CampaignLog{}
	}
	s.sendJSON(w, http.StatusOK, campaigns)
}

// handleAPIStatus handles GET /api/status/{campaignID}
func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	if status, ok := s.statuses.Get(campaignID); ok {
		s.sendJSON(w, http.StatusOK, status)
		return
	}

	if s.campaignLogExists(campaignID) {
		s.sendJSON(w, http.StatusOK, StatusResponse{
			Status:     pipeline.StatusCompleted,
			CampaignID: campaignID,
		})
		return
	}

	s.sendJSON(w, http.StatusNotFound, StatusResponse{Status: pipeline.StatusNotFound})
}

// handleAPIPerformance handles GET /api/performance/{campaignID}
func (s *Server) handleAPIPerformance(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	var record analytics.PerformanceRecord
	if err := storage.LoadJSON(s.paths.PerformancePath(campaignID), &record); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.sendError(w, http.StatusNotFound, "Performance data not found")
			return
		}
		s.logger.Error("failed to load performance artifact", "campaign_id", campaignID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to load performance data")
		return
	}

	s.sendJSON(w, http.StatusOK, record)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadCampaignLogs reads every campaign log artifact. A corrupt file is
// logged and skipped so it cannot take down the listing.
func (s *Server) loadCampaignLogs() []crm.CampaignLog {
	files, err := s.paths.CampaignLogFiles()
	if err != nil {
		s.logger.Error("failed to list campaign logs", "error", err)
		return nil
	}

	logs := make([]crm.CampaignLog, 0, len(files))
	for _, file := range files {
		var entry crm.CampaignLog
		if err := storage.LoadJSON(file, &entry); err != nil {
			s.logger.Error("failed to load campaign log", "file", file, "error", err)
			continue
		}
		logs = append(logs, entry)
	}
	return logs
}

func (s *Server) campaignLogExists(campaignID string) bool {
	_, err := os.Stat(s.paths.CampaignLogPath(campaignID))
	return err == nil
}

// renderPage writes an HTML response. The status line goes out before the
// template runs, so a render failure can only be logged.
func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.views.Render(w, name, data); err != nil {
		s.logger.Error("failed to render page", "page", name, "error", err)
	}
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
