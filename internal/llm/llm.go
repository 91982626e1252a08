package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// Prompter sends one prompt to the generative text service and returns the
// raw response text. Calls block until the service answers; there is no
// cancellation once a prompt has been issued.
type Prompter interface {
	Prompt(systemPrompt, userPrompt, schema string) (string, error)
}

// Anthropic is a Prompter backed by the Anthropic API.
type Anthropic struct {
	apiKey   string
	settings types.RequestSettings
}

// NewAnthropic creates an Anthropic prompter with fixed request settings.
func NewAnthropic(apiKey, model string, maxTokens int, temperature float64) *Anthropic {
	return &Anthropic{
		apiKey: apiKey,
		settings: types.RequestSettings{
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
	}
}

// Prompt sends a single prompt. When schema is non-empty the service is asked
// for structured output matching it.
func (a *Anthropic) Prompt(systemPrompt, userPrompt, schema string) (string, error) {
	response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, schema, a.apiKey, a.settings)
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	if len(response.Content) == 0 {
		return "", errors.New("no content in response")
	}
	return response.Content[0].Text, nil
}

// StripFence removes one wrapping markdown code fence from model output.
// Exactly one leading marker (```json or bare ```) and one trailing ``` are
// stripped; unfenced text passes through unchanged apart from trimming.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}

// DecodeJSON extracts the structured payload from model text: fence markers
// are stripped once, then the remainder is parsed as JSON into v. Everything
// downstream of this function deals in validated values, never raw text.
func DecodeJSON(raw string, v any) error {
	if err := json.Unmarshal([]byte(StripFence(raw)), v); err != nil {
		return fmt.Errorf("model response is not valid JSON: %w", err)
	}
	return nil
}
