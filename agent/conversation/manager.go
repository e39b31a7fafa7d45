package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	appointmentx "github.com/tanpawarit/voice-appointment-agent/agent/appointment"
	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	statex "github.com/tanpawarit/voice-appointment-agent/agent/state"
	toolx "github.com/tanpawarit/voice-appointment-agent/agent/tool"
)

var ErrConversationNotFound = errors.New("conversation not found")

const defaultMaxToolRounds = 6

type ManagerOption func(*Manager)

// WithChatModel sets the tool-bound chat model used by Conversation.Reply.
func WithChatModel(m einomodel.BaseChatModel, systemPrompt string) ManagerOption {
	return func(mgr *Manager) {
		mgr.chatModel = m
		mgr.systemPrompt = systemPrompt
	}
}

// WithSummary enables an end-of-call summary on Close.
func WithSummary(s contractx.Summarizer, store contractx.SummaryStore) ManagerOption {
	return func(mgr *Manager) {
		mgr.summarizer = s
		mgr.summaries = store
	}
}

// WithJournal gives Close access to the tool events recorded for a room.
func WithJournal(j statex.Journal) ManagerOption {
	return func(mgr *Manager) {
		mgr.journal = j
	}
}

func WithMaxToolRounds(n int) ManagerOption {
	return func(mgr *Manager) {
		if n > 0 {
			mgr.maxRounds = n
		}
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(mgr *Manager) {
		if now != nil {
			mgr.now = now
		}
	}
}

// Manager holds one Conversation per room id.
type Manager struct {
	mu    sync.RWMutex
	convs map[string]*Conversation

	catalog    []appointmentx.Slot
	dispatcher *toolx.Dispatcher

	chatModel    einomodel.BaseChatModel
	systemPrompt string
	runner       compose.Runnable[map[string]any, *schema.Message]
	maxRounds    int

	journal    statex.Journal
	summarizer contractx.Summarizer
	summaries  contractx.SummaryStore

	now func() time.Time
}

func NewManager(
	ctx context.Context,
	catalog []appointmentx.Slot,
	dispatcher *toolx.Dispatcher,
	opts ...ManagerOption,
) (*Manager, error) {
	if len(catalog) == 0 {
		return nil, errors.New("slot catalog is required")
	}
	if dispatcher == nil {
		return nil, errors.New("tool dispatcher is required")
	}

	m := &Manager{
		convs:      make(map[string]*Conversation),
		catalog:    append([]appointmentx.Slot(nil), catalog...),
		dispatcher: dispatcher,
		maxRounds:  defaultMaxToolRounds,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.chatModel != nil {
		runner, err := compileTurnGraph(ctx, m.chatModel, m.systemPrompt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
		}
		m.runner = runner
	}
	return m, nil
}

// Open returns the conversation for roomID, creating it on first use.
func (m *Manager) Open(roomID string) (*Conversation, error) {
	id := strings.TrimSpace(roomID)

	m.mu.RLock()
	conv, ok := m.convs[id]
	m.mu.RUnlock()
	if ok {
		return conv, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[id]; ok {
		return conv, nil
	}

	sess, err := statex.NewSession(id, m.catalog, m.now())
	if err != nil {
		return nil, err
	}
	conv = &Conversation{
		sess:       sess,
		dispatcher: m.dispatcher,
		runner:     m.runner,
		maxRounds:  m.maxRounds,
	}
	m.convs[id] = conv

	log.Info().Str("conversation_id", id).Msg("conversation opened")
	return conv, nil
}

func (m *Manager) Get(roomID string) (*Conversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.convs[strings.TrimSpace(roomID)]
	return conv, ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.convs)
}

// Close forgets the room and, when configured, stores a call summary.
// Summary failures are logged only.
func (m *Manager) Close(ctx context.Context, roomID string) error {
	id := strings.TrimSpace(roomID)

	m.mu.Lock()
	conv, ok := m.convs[id]
	delete(m.convs, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: room=%s", ErrConversationNotFound, id)
	}

	log.Info().Str("conversation_id", id).Msg("conversation closed")
	m.summarize(ctx, conv)

	// A reopened room starts with an empty journal.
	if m.journal != nil {
		if err := m.journal.Delete(ctx, id); err != nil {
			log.Warn().Err(err).Str("conversation_id", id).Msg("tool journal delete failed")
		}
	}
	return nil
}

func (m *Manager) summarize(ctx context.Context, conv *Conversation) {
	if m.summarizer == nil || m.summaries == nil {
		return
	}

	snap := conv.Snapshot()
	transcript := conv.Transcript()
	if len(transcript) == 0 {
		return
	}

	req := contractx.SummaryRequest{
		ConversationID: snap.ConversationID,
		ContactNumber:  snap.ContactNumber,
		Transcript:     transcript,
		ToolActivity:   m.toolActivity(ctx, snap.ConversationID),
	}

	text, err := m.summarizer.Summarize(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", snap.ConversationID).Msg("call summary failed")
		return
	}
	if err := m.summaries.SaveSummary(ctx, snap.ConversationID, snap.ContactNumber, text); err != nil {
		log.Warn().Err(err).Str("conversation_id", snap.ConversationID).Msg("save call summary failed")
		return
	}
	log.Info().Str("conversation_id", snap.ConversationID).Msg("call summary saved")
}

// toolActivity renders the success and error events of a room, one line each.
func (m *Manager) toolActivity(ctx context.Context, conversationID string) []string {
	if m.journal == nil {
		return nil
	}
	events, err := m.journal.Load(ctx, conversationID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("load tool events failed")
		return nil
	}

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.Phase != statex.PhaseSuccess && ev.Phase != statex.PhaseError {
			continue
		}
		input, _ := json.Marshal(ev.Input)
		output, _ := json.Marshal(ev.Output)
		lines = append(lines, fmt.Sprintf("%s %s input=%s output=%s", ev.Tool, ev.Phase, input, output))
	}
	return lines
}
