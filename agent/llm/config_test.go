package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{Model: "m"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
	if err := (Config{APIKey: "k", Model: "m"}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestSummaryFallsBackToConversationModel(t *testing.T) {
	t.Parallel()

	cfg := Config{APIKey: " k ", Model: "openai/gpt-4o-mini", Temperature: 0.3, SummaryTemperature: -1, MaxCompletionToken: 256}

	conv := cfg.Conversation()
	sum := cfg.Summary()
	if sum.Model != conv.Model || sum.Temperature != conv.Temperature {
		t.Fatalf("summary config = %+v, want fallback to %+v", sum, conv)
	}
	if conv.APIKey != "k" || *conv.MaxCompletionToken != 256 {
		t.Fatalf("unexpected conversation config: %+v", conv)
	}

	cfg.SummaryModel = "meta-llama/llama-3.1-8b-instruct"
	cfg.SummaryTemperature = 0
	sum = cfg.Summary()
	if sum.Model != "meta-llama/llama-3.1-8b-instruct" || sum.Temperature != 0 {
		t.Fatalf("unexpected summary override: %+v", sum)
	}
}
