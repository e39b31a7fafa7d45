package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	openrouterx "github.com/tanpawarit/voice-appointment-agent/pkg/openrouter"
)

// Config is read with the OPENROUTER_ prefix. The summary model falls back
// to the conversation model when unset.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"512"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	SummaryModel       string  `envconfig:"SUMMARY_MODEL" split_words:"true"`
	SummaryTemperature float32 `envconfig:"SUMMARY_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// Conversation returns the chat-model config for the voice assistant.
func (c Config) Conversation() openrouterx.Config {
	return c.build(strings.TrimSpace(c.Model), c.Temperature)
}

// Summary returns the config for the end-of-call summarizer.
func (c Config) Summary() openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	if v := strings.TrimSpace(c.SummaryModel); v != "" {
		modelName = v
	}
	temp := c.Temperature
	if c.SummaryTemperature >= 0 {
		temp = c.SummaryTemperature
	}
	return c.build(modelName, temp)
}

func (c Config) build(modelName string, temp float32) openrouterx.Config {
	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
