package crm

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/metrics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/storage"
)

var mockCompanies = []string{
	"PixelForge Studio", "CreativeFlow Agency", "DesignLab Co",
	"InnovateTech", "BrightIdeas Inc", "StudioX Creative",
	"Workflow Masters", "AgileDesign", "TechCanvas",
	"CreativeMind Agency", "DigitalCraft", "VisionWorks",
}

var mockFirstNames = []string{
	"Alex", "Jordan", "Taylor", "Morgan", "Casey",
	"Riley", "Jamie", "Sam", "Drew", "Quinn",
}

// CreateMockContacts generates a synthetic contact batch, countPerPersona
// contacts for every registry persona.
func (c *Client) CreateMockContacts(countPerPersona int) []Contact {
	contacts := make([]Contact, 0, countPerPersona*len(c.personas))

	for _, persona := range c.personas {
		jobTitle := strings.TrimSpace(strings.SplitN(persona.Name, "/", 2)[0])

		for i := 0; i < countPerPersona; i++ {
			company := mockCompanies[rand.Intn(len(mockCompanies))]
			firstName := mockFirstNames[rand.Intn(len(mockFirstNames))]

			contacts = append(contacts, Contact{
				Email: fmt.Sprintf("%s.%s%d@%s.com",
					strings.ToLower(firstName),
					persona.Key,
					i,
					strings.ToLower(strings.ReplaceAll(company, " ", "")),
				),
				FirstName: firstName,
				LastName:  capitalize(persona.Key),
				Company:   company,
				Persona:   persona.Key,
				JobTitle:  jobTitle,
			})
		}
	}

	c.logger.Info("created mock contacts", "count", len(contacts))
	return contacts
}

// mockContactRecord answers an upsert without touching the CRM
func (c *Client) mockContactRecord(email string, properties map[string]string) ContactRecord {
	props := map[string]string{"email": email}
	for k, v := range properties {
		props[k] = v
	}

	now := storage.FormatTimestamp()
	return ContactRecord{
		ID:         mockContactID(email),
		Properties: props,
		CreatedAt:  now,
		UpdatedAt:  now,
		Mock:       true,
	}
}

// mockDistribution simulates sending the whole campaign, one synthetic
// result per persona with a recipient count in [80,100].
func (c *Client) mockDistribution(campaign Campaign) map[string]Distribution {
	results := make(map[string]Distribution, len(campaign.Newsletters))

	for _, persona := range personaOrder(campaign.Newsletters) {
		recipients := rand.Intn(21) + 80
		results[persona] = Distribution{
			ID:         mockDistributionID(persona),
			Status:     StatusSimulated,
			Created:    storage.FormatTimestamp(),
			Persona:    persona,
			Recipients: recipients,
			Subject:    campaign.Newsletters[persona].SubjectLine,
			Mock:       true,
		}
		metrics.AddCampaignRecipients(recipients)
		c.logger.Info("simulated send", "persona", persona, "recipients", recipients)
	}

	return results
}

// mockPersonaDistribution stands in for a single failed live send
func (c *Client) mockPersonaDistribution(persona string) Distribution {
	return Distribution{
		ID:      mockDistributionID(persona),
		Status:  StatusScheduled,
		Created: storage.FormatTimestamp(),
		Persona: persona,
		Mock:    true,
	}
}

func mockDistributionID(persona string) string {
	return fmt.Sprintf("campaign_%s_%d", persona, rand.Intn(9000)+1000)
}

func mockContactID(email string) string {
	h := fnv.New32a()
	h.Write([]byte(email))
	return fmt.Sprintf("mock_%d", h.Sum32()%10000)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return strings.ToUpper(string(runes[0])) + strings.ToLower(string(runes[1:]))
}

// SetupInstructions returns a short guide for connecting a live HubSpot
// account instead of running in mock mode.
func SetupInstructions() string {
	return `HubSpot setup
=============

1. Create a private app
   - In HubSpot: Settings -> Integrations -> Private Apps -> Create a private app
   - Grant scopes: crm.objects.contacts.read, crm.objects.contacts.write
   - For live campaign sending also grant: content, marketing-email
2. Copy the access token into your .env file:
   HUBSPOT_API_KEY=pat-na1-xxxxxxxx
   HUBSPOT_ACCOUNT_ID=12345678
3. Re-run with --no-mock to use the live API.

Without a valid key the pipeline stays in mock mode: contact management and
campaign distribution are simulated and nothing leaves your machine.`
}
