package crm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/content"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/metrics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/storage"
)

const marketingProbeTimeout = 5 * time.Second

// CheckMarketingAccess probes whether the account can send marketing
// emails. Mock mode never has marketing access.
func (c *Client) CheckMarketingAccess(ctx context.Context) bool {
	if c.isMock() {
		return false
	}

	metrics.IncCRMRequest("access_check", ModeProduction)

	ctx, cancel := context.WithTimeout(ctx, marketingProbeTimeout)
	defer cancel()

	status, err := c.request(ctx, http.MethodGet, "/marketing/v3/emails?limit=1", nil, nil)
	return err == nil && status == http.StatusOK
}

// SendCampaign distributes one newsletter per persona segment. Without
// marketing access (or in mock mode) the whole distribution is simulated.
// An auth failure on a live send falls back to a simulated distribution;
// other per-persona failures degrade only that persona's result.
func (c *Client) SendCampaign(ctx context.Context, campaign Campaign) map[string]Distribution {
	canUseMarketing := c.CheckMarketingAccess(ctx)

	if c.isMock() || !canUseMarketing {
		if !canUseMarketing && !c.isMock() {
			c.logger.Info("marketing API not available, simulating campaign distribution")
			c.logger.Info("contact management still uses the live CRM API")
		} else {
			c.logger.Info("simulating campaign distribution (mock mode)")
		}
		metrics.IncCRMRequest("send_campaign", ModeMock)
		return c.mockDistribution(campaign)
	}

	metrics.IncCRMRequest("send_campaign", ModeProduction)

	results := make(map[string]Distribution, len(campaign.Newsletters))

	for _, persona := range personaOrder(campaign.Newsletters) {
		newsletter := campaign.Newsletters[persona]
		payload := emailPayload{
			Name:         fmt.Sprintf("%s - %s", campaign.BlogTitle, persona),
			Subject:      newsletter.SubjectLine,
			EmailBody:    newsletter.Content,
			PreviewText:  newsletter.PreviewText,
			CampaignName: campaign.ID,
		}

		var dist Distribution
		status, err := c.request(ctx, http.MethodPost, "/marketing/v3/emails", payload, &dist)

		switch {
		case err == nil && status < 400:
			results[persona] = dist
			c.logger.Info("campaign sent", "persona", persona)

		case err == nil && (status == http.StatusUnauthorized || status == http.StatusForbidden):
			c.logger.Warn("marketing API not accessible", "status", status)
			c.logger.Info("switching to simulated distribution for this campaign")
			return c.mockDistribution(campaign)

		default:
			c.logger.Error("campaign send failed", "persona", persona, "status", status, "error", err)
			results[persona] = c.mockPersonaDistribution(persona)
		}
	}

	return results
}

// LogCampaign builds the campaign log artifact. The mode reflects the
// client's mode after the send, so an auth downgrade during contact
// management is visible in the log.
func (c *Client) LogCampaign(campaign Campaign, results map[string]Distribution) CampaignLog {
	mode := c.Mode()
	status := "sent"
	if mode == ModeMock {
		status = "simulated"
	}

	entry := CampaignLog{
		CampaignID:          campaign.ID,
		BlogTitle:           campaign.BlogTitle,
		SendDate:            storage.FormatTimestamp(),
		Personas:            personaOrder(campaign.Newsletters),
		Status:              status,
		Mode:                mode,
		DistributionResults: results,
	}

	c.logger.Info("campaign logged", "campaign_id", entry.CampaignID, "mode", entry.Mode)
	return entry
}

// personaOrder returns the newsletter persona keys in stable order
func personaOrder(newsletters map[string]content.Newsletter) []string {
	keys := make([]string, 0, len(newsletters))
	for k := range newsletters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
