package upstash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestRedis(t *testing.T, h http.HandlerFunc) *Redis {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	r, err := NewRedis(RedisConfig{URL: server.URL + "/", Token: "token"}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	return r
}

func TestNewRedisValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  RedisConfig
	}{
		{name: "missing url", cfg: RedisConfig{Token: "token"}},
		{name: "relative url", cfg: RedisConfig{URL: "not a url", Token: "token"}},
		{name: "missing token", cfg: RedisConfig{URL: "https://example.upstash.io"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewRedis(tt.cfg); err == nil {
				t.Fatal("NewRedis() error = nil")
			}
		})
	}
}

func TestDoPostsCommandToBaseURL(t *testing.T) {
	t.Parallel()

	r := newTestRedis(t, func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		if req.URL.Path != "/" && req.URL.Path != "" {
			t.Errorf("path = %q", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q", got)
		}
		var cmd []any
		if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
		}
		if len(cmd) != 2 || cmd[0] != "GET" || cmd[1] != "k" {
			t.Errorf("command = %#v", cmd)
		}
		fmt.Fprint(w, `{"result":"v"}`)
	})

	res, err := r.Do(context.Background(), "GET", "k")
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if string(res) != `"v"` {
		t.Fatalf("Do() = %s", res)
	}
}

func TestDoNullResult(t *testing.T) {
	t.Parallel()

	r := newTestRedis(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	})

	res, err := r.Do(context.Background(), "GET", "missing")
	if err != nil || res != nil {
		t.Fatalf("Do() = %s, %v; want nil, nil", res, err)
	}
}

func TestDoReturnsCommandError(t *testing.T) {
	t.Parallel()

	r := newTestRedis(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"WRONGTYPE Operation against a key holding the wrong kind of value"}`)
	})

	_, err := r.Do(context.Background(), "lrange", "k", 0, -1)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Do() error = %v, want *CommandError", err)
	}
	if cmdErr.Command != "LRANGE" {
		t.Fatalf("Command = %q, want LRANGE", cmdErr.Command)
	}
}

func TestDoHTTPFailure(t *testing.T) {
	t.Parallel()

	r := newTestRedis(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := r.Do(context.Background(), "PING")
	var cmdErr *CommandError
	if err == nil || errors.As(err, &cmdErr) {
		t.Fatalf("Do() error = %v, want transport error", err)
	}
}

func TestPipelineRunsCommandsInOrder(t *testing.T) {
	t.Parallel()

	r := newTestRedis(t, func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		if req.URL.Path != "/pipeline" {
			t.Errorf("path = %q, want /pipeline", req.URL.Path)
		}
		var cmds [][]any
		if err := json.NewDecoder(req.Body).Decode(&cmds); err != nil {
			t.Errorf("decode pipeline: %v", err)
		}
		if len(cmds) != 2 || cmds[0][0] != "RPUSH" || cmds[1][0] != "EXPIRE" {
			t.Errorf("pipeline = %#v", cmds)
		}
		fmt.Fprint(w, `[{"result":3},{"result":1}]`)
	})

	res, err := r.Pipeline(context.Background(),
		[]any{"RPUSH", "k", "v"},
		[]any{"EXPIRE", "k", 60},
	)
	if err != nil {
		t.Fatalf("Pipeline() error = %v", err)
	}
	if len(res) != 2 || string(res[0]) != "3" || string(res[1]) != "1" {
		t.Fatalf("Pipeline() = %q", res)
	}
}

func TestPipelineSurfacesFirstCommandError(t *testing.T) {
	t.Parallel()

	r := newTestRedis(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"result":3},{"error":"ERR value is not an integer"}]`)
	})

	_, err := r.Pipeline(context.Background(),
		[]any{"RPUSH", "k", "v"},
		[]any{"EXPIRE", "k", "soon"},
	)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Command != "EXPIRE" {
		t.Fatalf("Pipeline() error = %v, want EXPIRE command error", err)
	}
}

func TestPipelineReplyCountMismatch(t *testing.T) {
	t.Parallel()

	r := newTestRedis(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"result":1}]`)
	})

	if _, err := r.Pipeline(context.Background(), []any{"PING"}, []any{"PING"}); err == nil {
		t.Fatal("Pipeline() error = nil, want mismatch error")
	}
}

func TestSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ttl  time.Duration
		want int64
	}{
		{ttl: 0, want: 1},
		{ttl: 300 * time.Millisecond, want: 1},
		{ttl: 90 * time.Second, want: 90},
		{ttl: 90*time.Second + time.Millisecond, want: 91},
		{ttl: 24 * time.Hour, want: 86400},
	}
	for _, tt := range tests {
		if got := Seconds(tt.ttl); got != tt.want {
			t.Errorf("Seconds(%v) = %d, want %d", tt.ttl, got, tt.want)
		}
	}
}
