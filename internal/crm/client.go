// Package crm manages contact records and campaign distribution through the
// HubSpot API. Without a usable API key the client runs in mock mode, where
// every operation returns plausible synthetic data instead of calling out.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/config"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/metrics"
)

const placeholderAPIKey = "your_hubspot_key_here"

// Client talks to the CRM. Safe for concurrent use; a mid-flight downgrade
// to mock mode (on auth failure) applies to all subsequent calls.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	personas   []config.Persona
	logger     *slog.Logger

	mu       sync.Mutex
	mockMode bool
}

// NewClient creates a CRM client. Mock mode is entered when the API key is
// absent, the well-known placeholder, or too short to be real.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.CRM.BaseURL,
		apiKey:     cfg.CRM.APIKey,
		personas:   cfg.Personas,
		logger:     logger,
	}

	c.mockMode = ResolveMode(cfg.CRM.APIKey) == ModeMock

	if c.mockMode {
		logger.Warn("running in mock mode, no live CRM calls will be made")
		logger.Info("add a valid HUBSPOT_API_KEY to .env to use the live CRM API")
	}

	return c
}

// ResolveMode reports which mode a client with this API key would run in
func ResolveMode(apiKey string) string {
	if apiKey == "" || apiKey == placeholderAPIKey || len(apiKey) < 20 {
		return ModeMock
	}
	return ModeProduction
}

// Mode reports the current client mode
func (c *Client) Mode() string {
	if c.isMock() {
		return ModeMock
	}
	return ModeProduction
}

// MockMode reports whether the client is simulating CRM calls
func (c *Client) MockMode() bool {
	return c.isMock()
}

// ForceMockMode puts the client in mock mode regardless of credentials
func (c *Client) ForceMockMode() {
	c.enterMockMode("forced")
}

func (c *Client) isMock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mockMode
}

func (c *Client) enterMockMode(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mockMode {
		c.mockMode = true
		c.logger.Warn("switching to mock mode", "reason", reason)
	}
}

// CreateOrUpdateContact upserts a contact. A conflict means the contact
// exists and is patched instead. Errors never propagate: auth failures
// downgrade the client to mock mode and every failure path answers with a
// mock record so a single bad contact cannot abort a run.
func (c *Client) CreateOrUpdateContact(ctx context.Context, email string, properties map[string]string) ContactRecord {
	if c.isMock() {
		metrics.IncCRMRequest("create_contact", ModeMock)
		return c.mockContactRecord(email, properties)
	}

	metrics.IncCRMRequest("create_contact", ModeProduction)

	props := map[string]string{"email": email}
	for k, v := range properties {
		props[k] = v
	}

	var record ContactRecord
	status, err := c.request(ctx, http.MethodPost, "/crm/v3/objects/contacts", contactPayload{Properties: props}, &record)

	switch {
	case err != nil:
		c.logger.Error("contact upsert failed", "email", email, "error", err)
		return c.mockContactRecord(email, properties)

	case status == http.StatusConflict:
		contactID := c.contactByEmail(ctx, email)
		if contactID == "" {
			return c.mockContactRecord(email, properties)
		}
		return c.updateContact(ctx, contactID, properties)

	case status == http.StatusUnauthorized:
		c.enterMockMode("authentication failed")
		return c.mockContactRecord(email, properties)

	case status >= 400:
		c.logger.Error("contact upsert failed", "email", email, "status", status)
		return c.mockContactRecord(email, properties)
	}

	c.logger.Info("contact created", "email", email)
	return record
}

// UpsertContact is CreateOrUpdateContact for a full contact value
func (c *Client) UpsertContact(ctx context.Context, contact Contact) ContactRecord {
	return c.CreateOrUpdateContact(ctx, contact.Email, contact.Properties())
}

// contactByEmail resolves a contact id through the search API. Returns ""
// when the contact cannot be found.
func (c *Client) contactByEmail(ctx context.Context, email string) string {
	if c.isMock() {
		return mockContactID(email)
	}

	metrics.IncCRMRequest("search_contact", ModeProduction)

	payload := searchRequest{
		FilterGroups: []searchFilterGroup{{
			Filters: []searchFilter{{
				PropertyName: "email",
				Operator:     "EQ",
				Value:        email,
			}},
		}},
	}

	var result searchResponse
	status, err := c.request(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", payload, &result)
	if err != nil || status >= 400 || len(result.Results) == 0 {
		return ""
	}
	return result.Results[0].ID
}

// updateContact patches an existing contact
func (c *Client) updateContact(ctx context.Context, contactID string, properties map[string]string) ContactRecord {
	if c.isMock() {
		return c.mockContactRecord("contact_"+contactID, properties)
	}

	metrics.IncCRMRequest("update_contact", ModeProduction)

	var record ContactRecord
	status, err := c.request(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+contactID, contactPayload{Properties: properties}, &record)
	if err != nil || status >= 400 {
		return c.mockContactRecord("contact_"+contactID, properties)
	}

	c.logger.Info("contact updated", "id", contactID)
	return record
}

// SegmentContacts groups contacts by persona tag. Contacts with a missing
// or unknown tag land in the default persona so every contact is reachable
// by exactly one segment, and every registry persona has an entry.
func (c *Client) SegmentContacts(contacts []Contact) map[string][]Contact {
	segments := make(map[string][]Contact, len(c.personas))
	valid := make(map[string]bool, len(c.personas))
	for _, p := range c.personas {
		segments[p.Key] = []Contact{}
		valid[p.Key] = true
	}

	defaultKey := config.DefaultPersonaKey
	if !valid[defaultKey] && len(c.personas) > 0 {
		defaultKey = c.personas[0].Key
	}

	for _, contact := range contacts {
		persona := contact.Persona
		if !valid[persona] {
			persona = defaultKey
		}
		segments[persona] = append(segments[persona], contact)
	}

	counts := make([]string, 0, len(c.personas))
	for _, p := range c.personas {
		counts = append(counts, fmt.Sprintf("%s: %d", p.Key, len(segments[p.Key])))
	}
	c.logger.Info("contacts segmented", "counts", strings.Join(counts, ", "))

	return segments
}

// request performs an HTTP request against the CRM API. The status code is
// returned for 4xx/5xx responses instead of an error so callers can branch
// on conflict and auth statuses; err is reserved for transport failures.
func (c *Client) request(ctx context.Context, method, path string, body, result any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 && resp.StatusCode != http.StatusNoContent && result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}
