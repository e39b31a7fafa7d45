package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go"

	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
)

// Config is read with the SUMMARY_ prefix.
type Config struct {
	Enabled   bool `default:"false"`
	MaxTurns  int  `split_words:"true" default:"20"`
	MaxTokens int  `split_words:"true" default:"300"`
}

var ErrEmptySummary = errors.New("summary is empty")

/* ------------------------------ summarizer ------------------------------ */

// OpenAISummarizer asks an OpenAI-compatible chat endpoint for a short
// staff-facing summary of a finished call.
type OpenAISummarizer struct {
	client       *openai.Client
	model        string
	systemPrompt string
	maxTurns     int
	maxTokens    int
}

var _ contractx.Summarizer = (*OpenAISummarizer)(nil)

func NewOpenAISummarizer(client *openai.Client, model, systemPrompt string, cfg Config) (*OpenAISummarizer, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("summary model is required")
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 20
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &OpenAISummarizer{
		client:       client,
		model:        model,
		systemPrompt: strings.TrimSpace(systemPrompt),
		maxTurns:     maxTurns,
		maxTokens:    maxTokens,
	}, nil
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, req contractx.SummaryRequest) (string, error) {
	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(s.systemPrompt),
			openai.UserMessage(RenderRequest(req, s.maxTurns)),
		},
		MaxCompletionTokens: openai.Int(int64(s.maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: summary completion: %v", contractx.ErrModelInvoke, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrEmptySummary)
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptySummary
	}
	return text, nil
}

// RenderRequest formats the last maxTurns transcript turns and the tool
// activity as the user message for the summary model.
func RenderRequest(req contractx.SummaryRequest, maxTurns int) string {
	turns := req.Transcript
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	var b strings.Builder
	if req.ContactNumber != "" {
		fmt.Fprintf(&b, "Caller contact number: %s\n\n", req.ContactNumber)
	}

	b.WriteString("Transcript:\n")
	if len(turns) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, strings.TrimSpace(t.Content))
	}

	b.WriteString("\nTool activity:\n")
	if len(req.ToolActivity) == 0 {
		b.WriteString("(none)\n")
	}
	for _, line := range req.ToolActivity {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}

/* --------------------------------- store -------------------------------- */

// Record is one stored call summary.
type Record struct {
	ConversationID string
	ContactNumber  string
	Summary        string
}

// MemoryStore keeps summaries in process.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

var _ contractx.SummaryStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveSummary(_ context.Context, conversationID, contactNumber, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, Record{
		ConversationID: conversationID,
		ContactNumber:  contactNumber,
		Summary:        summary,
	})
	return nil
}

func (m *MemoryStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}
