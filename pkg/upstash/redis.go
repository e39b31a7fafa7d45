package upstash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxReplyBytes = 2 << 20

// RedisConfig points at an Upstash Redis REST endpoint.
type RedisConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// CommandError is an error reply from Redis for a single command.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}

type RedisOption func(*Redis)

func WithHTTPClient(client *http.Client) RedisOption {
	return func(r *Redis) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// Redis issues commands against the Upstash REST API. Commands are JSON
// arrays posted to the base URL, or an array of them posted to /pipeline.
type Redis struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

type reply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewRedis(cfg RedisConfig, opts ...RedisOption) (*Redis, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if endpoint == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	r := &Redis{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Do runs one command and returns its raw result. A null reply comes back
// as a nil slice.
func (r *Redis) Do(ctx context.Context, args ...any) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, errors.New("empty redis command")
	}
	var rep reply
	if err := r.post(ctx, r.endpoint, args, &rep); err != nil {
		return nil, err
	}
	return rep.unwrap(args)
}

// Pipeline sends the commands in one request and runs them in order. It
// fails with the first command error Redis reports.
func (r *Redis) Pipeline(ctx context.Context, commands ...[]any) ([]json.RawMessage, error) {
	if len(commands) == 0 {
		return nil, nil
	}
	for _, c := range commands {
		if len(c) == 0 {
			return nil, errors.New("empty redis command in pipeline")
		}
	}

	var replies []reply
	if err := r.post(ctx, r.endpoint+"/pipeline", commands, &replies); err != nil {
		return nil, err
	}
	if len(replies) != len(commands) {
		return nil, fmt.Errorf("pipeline returned %d replies for %d commands", len(replies), len(commands))
	}

	results := make([]json.RawMessage, len(replies))
	for i, rep := range replies {
		res, err := rep.unwrap(commands[i])
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

func (r *Redis) post(ctx context.Context, target string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		// Upstash reports command errors on single requests with a 400 and a JSON body.
		var rep reply
		if json.Unmarshal(raw, &rep) == nil && rep.Error != "" {
			return &CommandError{Command: commandName(payload), Message: rep.Error}
		}
		return fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode redis response: %w", err)
	}
	return nil
}

func (rep reply) unwrap(args []any) (json.RawMessage, error) {
	if rep.Error != "" {
		return nil, &CommandError{Command: commandName(args), Message: rep.Error}
	}
	res := bytes.TrimSpace(rep.Result)
	if len(res) == 0 || bytes.Equal(res, []byte("null")) {
		return nil, nil
	}
	return res, nil
}

func commandName(payload any) string {
	args, ok := payload.([]any)
	if !ok || len(args) == 0 {
		return ""
	}
	return strings.ToUpper(fmt.Sprint(args[0]))
}

// Seconds converts a TTL to the whole seconds EXPIRE takes, rounding up and
// never below one.
func Seconds(ttl time.Duration) int64 {
	if ttl <= time.Second {
		return 1
	}
	return int64((ttl + time.Second - 1) / time.Second)
}
