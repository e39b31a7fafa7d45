package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestUpstashJournalRedisKey(t *testing.T) {
	t.Parallel()

	j := &UpstashJournal{}
	got, err := j.redisKey("abc")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "conv:abc:tool_events" {
		t.Fatalf("redisKey() = %q, want %q", got, "conv:abc:tool_events")
	}
}

func TestUpstashJournalRedisKeyEmptyConversation(t *testing.T) {
	t.Parallel()

	j := &UpstashJournal{}
	_, err := j.redisKey("   ")
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidSession", err)
	}
}

func TestUpstashJournalAppendPushesAndExpires(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		path     string
		commands [][]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q", got)
		}
		var cmds [][]any
		if err := json.NewDecoder(r.Body).Decode(&cmds); err != nil {
			t.Errorf("decode pipeline: %v", err)
		}
		mu.Lock()
		path = r.URL.Path
		commands = cmds
		mu.Unlock()
		fmt.Fprint(w, `[{"result":1},{"result":1}]`)
	}))
	t.Cleanup(server.Close)

	j, err := NewUpstashJournal(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
		WithTTL(90*time.Second),
	)
	if err != nil {
		t.Fatalf("NewUpstashJournal() error = %v", err)
	}

	ev := &ToolEvent{ConversationID: "room-1", Tool: "fetch_slots", Phase: PhaseSuccess}
	if err := j.Append(context.Background(), ev); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/pipeline" {
		t.Fatalf("path = %q, want /pipeline", path)
	}
	if len(commands) != 2 {
		t.Fatalf("expected 2 commands, got %#v", commands)
	}
	if commands[0][0] != "RPUSH" || commands[0][1] != "conv:room-1:tool_events" {
		t.Fatalf("unexpected push command: %#v", commands[0])
	}
	if commands[1][0] != "EXPIRE" || commands[1][2] != float64(90) {
		t.Fatalf("unexpected expire command: %#v", commands[1])
	}
}

func TestUpstashJournalAppendWithoutTTLSkipsExpire(t *testing.T) {
	t.Parallel()

	var cmd []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if r.URL.Path == "/pipeline" {
			t.Errorf("unexpected pipeline request")
		}
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":1}`)
	}))
	t.Cleanup(server.Close)

	j, err := NewUpstashJournal(
		UpstashRedisConfig{URL: server.URL, Token: "token", TTL: -1},
		WithHTTPClient(server.Client()),
		WithTTL(0),
	)
	if err != nil {
		t.Fatalf("NewUpstashJournal() error = %v", err)
	}
	if err := j.Append(context.Background(), &ToolEvent{ConversationID: "room-4", Tool: "fetch_slots"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if len(cmd) != 3 || cmd[0] != "RPUSH" {
		t.Fatalf("unexpected command: %#v", cmd)
	}
}

func TestNewUpstashJournalRejectsNegativeTTL(t *testing.T) {
	t.Parallel()

	_, err := NewUpstashJournal(UpstashRedisConfig{URL: "https://example.upstash.io", Token: "token", TTL: -time.Second})
	if err == nil {
		t.Fatal("NewUpstashJournal() error = nil, want ttl error")
	}
}

func TestUpstashJournalLoadDecodesEvents(t *testing.T) {
	t.Parallel()

	first, _ := json.Marshal(ToolEvent{ConversationID: "room-2", Tool: "identify_user", Phase: PhaseSuccess})
	second, _ := json.Marshal(ToolEvent{ConversationID: "room-2", Tool: "book_appointment", Phase: PhaseError})
	result, _ := json.Marshal([]string{string(first), string(second)})

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprintf(w, `{"result":%s}`, result)
	}))
	t.Cleanup(server.Close)

	j, err := NewUpstashJournal(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashJournal() error = %v", err)
	}

	events, err := j.Load(context.Background(), "room-2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(events) != 2 || events[1].Tool != "book_appointment" || events[1].Phase != PhaseError {
		t.Fatalf("unexpected events: %+v", events)
	}
	if gotCommand[0] != "LRANGE" || gotCommand[1] != "conv:room-2:tool_events" {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
}

func TestUpstashJournalSurfacesRedisError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"WRONGTYPE"}`)
	}))
	t.Cleanup(server.Close)

	j, err := NewUpstashJournal(
		UpstashRedisConfig{URL: server.URL, Token: "token"},
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashJournal() error = %v", err)
	}

	if err := j.Delete(context.Background(), "room-3"); err == nil || err.Error() != "WRONGTYPE" {
		t.Fatalf("Delete() error = %v, want WRONGTYPE", err)
	}
}

func TestMemoryJournalRoundTrip(t *testing.T) {
	t.Parallel()

	j := NewMemoryJournal()
	ctx := context.Background()
	if err := j.Append(ctx, &ToolEvent{ConversationID: "a", Tool: "fetch_slots"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := j.Append(ctx, &ToolEvent{Tool: "fetch_slots"}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Append() error = %v, want ErrInvalidSession", err)
	}

	events, _ := j.Load(ctx, "a")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	_ = j.Delete(ctx, "a")
	events, _ = j.Load(ctx, "a")
	if len(events) != 0 {
		t.Fatalf("expected no events after delete, got %d", len(events))
	}
}
