// Package content generates campaign content through the model, with
// deterministic fallbacks so a failed prompt never aborts a run.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/config"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/llm"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/metrics"
)

const systemPrompt = "You are a content writer for NovaMind, an AI startup that helps small creative agencies automate their daily workflows (think Notion + Zapier + ChatGPT combined)."

// BlogPost is a generated blog draft
type BlogPost struct {
	Title   string   `json:"title"`
	Outline []string `json:"outline"`
	Content string   `json:"content"`
}

// Newsletter is a persona-targeted newsletter draft
type Newsletter struct {
	SubjectLine string `json:"subject_line"`
	PreviewText string `json:"preview_text"`
	Content     string `json:"content"`
}

// Improvements holds improvement suggestions for a piece of content
type Improvements struct {
	HeadlineSuggestions []string `json:"headline_suggestions"`
	HookImprovements    string   `json:"hook_improvements"`
	CTAOptimization     string   `json:"cta_optimization"`
	EngagementTactics   []string `json:"engagement_tactics"`
}

// Generator produces blog posts, newsletters and content suggestions
type Generator struct {
	prompter llm.Prompter
	cfg      *config.Config
	logger   *slog.Logger
}

// NewGenerator creates a content generator
func NewGenerator(prompter llm.Prompter, cfg *config.Config, logger *slog.Logger) *Generator {
	return &Generator{
		prompter: prompter,
		cfg:      cfg,
		logger:   logger,
	}
}

// GenerateBlogPost generates a blog post outline and draft for the topic.
// A prompt or decode failure falls back to a template post.
func (g *Generator) GenerateBlogPost(topic string) BlogPost {
	g.logger.Info("generating blog post", "topic", topic)

	prompt := fmt.Sprintf(`%s

Write a blog post about: %s

Requirements:
- Length: %d-%d words
- Target audience: Small creative agencies and automation enthusiasts
- Tone: Professional yet approachable, innovative
- Include: Introduction, 2-3 main sections, conclusion with CTA
- Focus on practical value and real-world applications

Please provide ONLY a valid JSON response with no additional text, using this exact format:
{
"title": "Your compelling title here",
"outline": ["Point 1", "Point 2", "Point 3", "Point 4"],
"content": "Full blog post content in markdown format here"
}`, systemPrompt, topic, g.cfg.Content.BlogWordMin, g.cfg.Content.BlogWordMax)

	raw, err := g.prompter.Prompt(systemPrompt, prompt, blogSchema)
	if err == nil {
		var post BlogPost
		if err = llm.DecodeJSON(raw, &post); err == nil {
			g.logger.Info("blog post generated", "title", post.Title)
			return post
		}
	}

	g.logger.Error("blog post generation failed", "error", err)
	metrics.IncGenerationFallback("blog")
	return fallbackBlogPost(topic)
}

// GenerateNewsletters generates a personalized newsletter for every persona.
// A failed persona falls back to a template newsletter; the returned map
// always has one entry per configured persona.
func (g *Generator) GenerateNewsletters(post BlogPost) map[string]Newsletter {
	g.logger.Info("generating persona newsletters")

	newsletters := make(map[string]Newsletter, len(g.cfg.Personas))

	for _, persona := range g.cfg.Personas {
		prompt := fmt.Sprintf(`You are writing a newsletter for NovaMind targeting %s.

Original Blog Post Title: %s
Blog Content Summary: %s...

Target Persona: %s
Focus Areas: %s
Tone: %s

Create a personalized newsletter version (%d-%d words) that:
- Highlights aspects most relevant to this persona
- Uses language and examples that resonate with them
- Includes a clear CTA to read the full blog post
- Has an engaging subject line

Respond with ONLY valid JSON using this exact format:
{
"subject_line": "Your subject line here",
"preview_text": "Preview text (50-80 chars)",
"content": "Full newsletter content here"
}`,
			persona.Name,
			post.Title,
			truncate(post.Content, 800),
			persona.Name,
			strings.Join(persona.Focus, ", "),
			persona.Tone,
			g.cfg.Content.NewsletterWordMin,
			g.cfg.Content.NewsletterWordMax,
		)

		var newsletter Newsletter
		raw, err := g.prompter.Prompt(systemPrompt, prompt, newsletterSchema)
		if err == nil {
			err = llm.DecodeJSON(raw, &newsletter)
		}
		if err != nil {
			g.logger.Error("newsletter generation failed", "persona", persona.Key, "error", err)
			metrics.IncGenerationFallback("newsletter")
			newsletter = fallbackNewsletter(post.Title, persona.Name)
		}

		newsletters[persona.Key] = newsletter
		g.logger.Info("newsletter generated", "persona", persona.Key)
	}

	return newsletters
}

// GenerateVariations generates alternative versions of the content.
// On failure the original content is returned as the only variation.
func (g *Generator) GenerateVariations(text string, count int) []string {
	g.logger.Info("generating content variations", "count", count)

	prompt := fmt.Sprintf(`Create %d alternative versions of the following content.
Make each version distinct in style and approach while maintaining the core message.

Original Content:
%s

Return the variations as a JSON array of strings.`, count, truncate(text, 500))

	raw, err := g.prompter.Prompt(systemPrompt, prompt, variationsSchema)
	if err == nil {
		var variations []string
		if variations, err = decodeVariations(raw); err == nil {
			return variations
		}
	}

	g.logger.Error("variation generation failed", "error", err)
	metrics.IncGenerationFallback("variations")
	return []string{text}
}

// SuggestImprovements analyzes content and suggests improvements, optionally
// informed by performance data.
func (g *Generator) SuggestImprovements(text string, performance any) Improvements {
	g.logger.Info("generating improvement suggestions")

	performanceContext := ""
	if performance != nil {
		if data, err := json.MarshalIndent(performance, "", "  "); err == nil {
			performanceContext = fmt.Sprintf("\n\nPerformance Context:\n%s", data)
		}
	}

	prompt := fmt.Sprintf(`Analyze the following content and suggest improvements.%s

Content:
%s

Provide specific suggestions for:
1. Headlines (2-3 alternatives)
2. Opening hook improvements
3. CTA optimization
4. Engagement tactics

Respond with ONLY valid JSON using this format:
{
"headline_suggestions": ["headline 1", "headline 2"],
"hook_improvements": "suggestion text",
"cta_optimization": "suggestion text",
"engagement_tactics": ["tactic 1", "tactic 2", "tactic 3"]
}`, performanceContext, truncate(text, 600))

	raw, err := g.prompter.Prompt(systemPrompt, prompt, improvementsSchema)
	if err == nil {
		var improvements Improvements
		if err = llm.DecodeJSON(raw, &improvements); err == nil {
			return improvements
		}
	}

	g.logger.Error("improvement suggestions failed", "error", err)
	metrics.IncGenerationFallback("improvements")
	return fallbackImprovements()
}

// decodeVariations tolerates the payload shapes models produce for a list of
// variations: a bare array, a {"variations": [...]} wrapper, or an object
// whose values are the variations.
func decodeVariations(raw string) ([]string, error) {
	cleaned := llm.StripFence(raw)

	var list []string
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Variations []string `json:"variations"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil && wrapped.Variations != nil {
		return wrapped.Variations, nil
	}

	var object map[string]string
	if err := json.Unmarshal([]byte(cleaned), &object); err == nil && len(object) > 0 {
		keys := make([]string, 0, len(object))
		for k := range object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		variations := make([]string, 0, len(object))
		for _, k := range keys {
			variations = append(variations, object[k])
		}
		return variations, nil
	}

	return nil, errors.New("unexpected variations payload")
}

func fallbackBlogPost(topic string) BlogPost {
	title := fmt.Sprintf("How %s is Transforming Creative Workflows", topic)
	return BlogPost{
		Title:   title,
		Outline: []string{"Introduction to automation", "Key benefits", "Implementation strategies", "Conclusion"},
		Content: fmt.Sprintf("# %s\n\nAutomation is revolutionizing how creative agencies work...", title),
	}
}

func fallbackNewsletter(blogTitle, personaName string) Newsletter {
	return Newsletter{
		SubjectLine: fmt.Sprintf("New: %s for %s", blogTitle, personaName),
		PreviewText: "Discover how this impacts your work",
		Content:     fmt.Sprintf("Hi there,\n\nWe've just published a new article that's perfect for %s...", personaName),
	}
}

func fallbackImprovements() Improvements {
	return Improvements{
		HeadlineSuggestions: []string{"Consider more specific headlines", "Add numbers or data"},
		HookImprovements:    "Start with a compelling question or stat",
		CTAOptimization:     "Make CTAs more action-oriented",
		EngagementTactics:   []string{"Add case studies", "Include visuals", "Use storytelling"},
	}
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
