package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tanpawarit/voice-appointment-agent/pkg/upstash"
)

var ErrNilEvent = errors.New("tool event is nil")

const (
	defaultJournalKeyPrefix = "conv:"
	defaultJournalKeySuffix = ":tool_events"
	defaultJournalTTL       = 24 * time.Hour
)

type EventPhase string

const (
	PhaseBlocked EventPhase = "blocked"
	PhaseSuccess EventPhase = "success"
	PhaseError   EventPhase = "error"
	PhaseFault   EventPhase = "fault"
)

// ToolEvent records one dispatched tool call.
type ToolEvent struct {
	ConversationID string         `json:"conversation_id"`
	Tool           string         `json:"tool"`
	Phase          EventPhase     `json:"phase"`
	Input          map[string]any `json:"input,omitempty"`
	Output         any            `json:"output,omitempty"`
	At             time.Time      `json:"at"`
}

// Journal keeps the tool-call history of each conversation.
type Journal interface {
	Append(ctx context.Context, ev *ToolEvent) error
	Load(ctx context.Context, conversationID string) ([]ToolEvent, error)
	Delete(ctx context.Context, conversationID string) error
}

/* ----------------------------- MemoryJournal ---------------------------- */

type MemoryJournal struct {
	mu     sync.Mutex
	events map[string][]ToolEvent
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{events: make(map[string][]ToolEvent, 4)}
}

func (j *MemoryJournal) Append(_ context.Context, ev *ToolEvent) error {
	if ev == nil {
		return ErrNilEvent
	}
	if strings.TrimSpace(ev.ConversationID) == "" {
		return ErrInvalidSession
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events[ev.ConversationID] = append(j.events[ev.ConversationID], *ev)
	return nil
}

func (j *MemoryJournal) Load(_ context.Context, conversationID string) ([]ToolEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]ToolEvent(nil), j.events[conversationID]...), nil
}

func (j *MemoryJournal) Delete(_ context.Context, conversationID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.events, conversationID)
	return nil
}

/* ----------------------------- UpstashJournal --------------------------- */

// JournalOption customizes UpstashJournal.
type JournalOption func(*journalOptions)

type journalOptions struct {
	keyPrefix string
	ttl       time.Duration
	redisOpts []upstash.RedisOption
}

func WithKeyPrefix(prefix string) JournalOption {
	return func(o *journalOptions) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			o.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) JournalOption {
	return func(o *journalOptions) {
		o.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) JournalOption {
	return func(o *journalOptions) {
		o.redisOpts = append(o.redisOpts, upstash.WithHTTPClient(client))
	}
}

// UpstashJournal stores tool events as a Redis list in Upstash. Every append
// refreshes the list TTL so an abandoned room expires on its own.
type UpstashJournal struct {
	redis     *upstash.Redis
	keyPrefix string
	ttl       time.Duration
}

type UpstashRedisConfig struct {
	Enabled bool          `split_words:"true" default:"false"`
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	TTL     time.Duration `envconfig:"TTL" split_words:"true" default:"24h"`
}

func NewUpstashJournal(cfg UpstashRedisConfig, opts ...JournalOption) (*UpstashJournal, error) {
	o := journalOptions{keyPrefix: defaultJournalKeyPrefix, ttl: cfg.TTL}
	if o.ttl == 0 {
		o.ttl = defaultJournalTTL
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	redis, err := upstash.NewRedis(upstash.RedisConfig{
		URL:     cfg.URL,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
	}, o.redisOpts...)
	if err != nil {
		return nil, err
	}

	return &UpstashJournal{redis: redis, keyPrefix: o.keyPrefix, ttl: o.ttl}, nil
}

func (j *UpstashJournal) Append(ctx context.Context, ev *ToolEvent) error {
	if ev == nil {
		return ErrNilEvent
	}
	key, err := j.redisKey(ev.ConversationID)
	if err != nil {
		return err
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal tool event: %w", err)
	}

	push := []any{"RPUSH", key, string(payload)}
	if j.ttl <= 0 {
		_, err = j.redis.Do(ctx, push...)
		return err
	}
	_, err = j.redis.Pipeline(ctx, push, []any{"EXPIRE", key, upstash.Seconds(j.ttl)})
	return err
}

func (j *UpstashJournal) Load(ctx context.Context, conversationID string) ([]ToolEvent, error) {
	key, err := j.redisKey(conversationID)
	if err != nil {
		return nil, err
	}

	result, err := j.redis.Do(ctx, "LRANGE", key, 0, -1)
	if err != nil || result == nil {
		return nil, err
	}

	var encoded []string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode journal payload: %w", err)
	}

	events := make([]ToolEvent, 0, len(encoded))
	for _, item := range encoded {
		var ev ToolEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal tool event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (j *UpstashJournal) Delete(ctx context.Context, conversationID string) error {
	key, err := j.redisKey(conversationID)
	if err != nil {
		return err
	}
	_, err = j.redis.Do(ctx, "DEL", key)
	return err
}

func (j *UpstashJournal) redisKey(conversationID string) (string, error) {
	if strings.TrimSpace(conversationID) == "" {
		return "", ErrInvalidSession
	}
	prefix := strings.TrimSpace(j.keyPrefix)
	if prefix == "" {
		prefix = defaultJournalKeyPrefix
	}
	return prefix + conversationID + defaultJournalKeySuffix, nil
}
