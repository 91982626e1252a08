package crm

import (
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/content"
)

// Client mode values as they appear in campaign logs
const (
	ModeMock       = "mock"
	ModeProduction = "production"
)

// Distribution status values
const (
	StatusSimulated = "SIMULATED"
	StatusScheduled = "SCHEDULED"
)

// Contact is a contact record using CRM property names
type Contact struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Company   string `json:"company"`
	Persona   string `json:"persona"`
	JobTitle  string `json:"jobtitle"`
}

// Properties returns the contact's CRM properties keyed the way the
// contacts API expects them, without the email identifier.
func (c Contact) Properties() map[string]string {
	return map[string]string{
		"firstname": c.FirstName,
		"lastname":  c.LastName,
		"company":   c.Company,
		"persona":   c.Persona,
		"jobtitle":  c.JobTitle,
	}
}

// ContactRecord is the CRM's view of a contact after an upsert. Mock
// records are marked and carry a synthetic id.
type ContactRecord struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  string            `json:"createdAt,omitempty"`
	UpdatedAt  string            `json:"updatedAt,omitempty"`
	Mock       bool              `json:"mock,omitempty"`
}

// Campaign is the content handed to the CRM for distribution
type Campaign struct {
	ID          string
	BlogTitle   string
	Newsletters map[string]content.Newsletter
}

// Distribution is the outcome of sending one newsletter to one persona
// segment. Live sends carry the provider's id; simulated sends carry a
// synthetic id and recipient count.
type Distribution struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Created    string `json:"created,omitempty"`
	Persona    string `json:"persona,omitempty"`
	Recipients int    `json:"recipients,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Mock       bool   `json:"mock,omitempty"`
}

// CampaignLog is the per-campaign artifact written after distribution
type CampaignLog struct {
	CampaignID          string                  `json:"campaign_id"`
	BlogTitle           string                  `json:"blog_title"`
	SendDate            string                  `json:"send_date"`
	Personas            []string                `json:"personas"`
	Status              string                  `json:"status"`
	Mode                string                  `json:"mode"`
	DistributionResults map[string]Distribution `json:"distribution_results"`
}

// Contacts API wire types

type contactPayload struct {
	Properties map[string]string `json:"properties"`
}

type searchFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type searchFilterGroup struct {
	Filters []searchFilter `json:"filters"`
}

type searchRequest struct {
	FilterGroups []searchFilterGroup `json:"filterGroups"`
}

type searchResponse struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

// Marketing email wire type

type emailPayload struct {
	Name         string `json:"name"`
	Subject      string `json:"subject"`
	EmailBody    string `json:"emailBody"`
	PreviewText  string `json:"previewText"`
	CampaignName string `json:"campaignName"`
}
