package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	statex "github.com/tanpawarit/voice-appointment-agent/agent/state"
	toolx "github.com/tanpawarit/voice-appointment-agent/agent/tool"
)

var (
	ErrConversationEnded = errors.New("conversation has ended")
	ErrNoChatModel       = errors.New("chat model is not configured")
	ErrToolRoundLimit    = errors.New("tool round limit reached")
)

const internalErrorMessage = "Something went wrong, please try again."

// Conversation owns the session of one room. All tool calls and model turns
// for the room are serialized through it.
type Conversation struct {
	mu sync.Mutex

	sess       *statex.Session
	dispatcher *toolx.Dispatcher
	runner     compose.Runnable[map[string]any, *schema.Message]
	maxRounds  int

	history    []*schema.Message
	transcript []contractx.Turn
}

func (c *Conversation) ID() string {
	return c.sess.ConversationID
}

// CallTool dispatches one tool call. Store faults are logged and returned to
// the caller as INTERNAL_ERROR so the session survives.
func (c *Conversation) CallTool(ctx context.Context, name string, args map[string]any) contractx.ToolResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callTool(ctx, name, args)
}

func (c *Conversation) callTool(ctx context.Context, name string, args map[string]any) contractx.ToolResult {
	result, err := c.dispatcher.Dispatch(ctx, c.sess, contractx.ToolRequest{Tool: name, Args: args})
	if err != nil {
		log.Error().Err(err).
			Str("conversation_id", c.sess.ConversationID).
			Str("tool", name).
			Msg("tool call failed")
		return contractx.Failure(name, contractx.ErrInternal, internalErrorMessage)
	}
	return result
}

// Reply runs one user turn through the model, executing tool calls until
// the model answers with plain content.
func (c *Conversation) Reply(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runner == nil {
		return "", ErrNoChatModel
	}
	if c.sess.IsTerminated() {
		return "", ErrConversationEnded
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: user message is empty", contractx.ErrValidation)
	}
	c.history = append(c.history, schema.UserMessage(text))
	c.transcript = append(c.transcript, contractx.Turn{Role: string(schema.User), Content: text})

	for round := 0; round < c.maxRounds; round++ {
		msg, err := c.runner.Invoke(ctx, map[string]any{historyKey: c.history})
		if err != nil {
			return "", fmt.Errorf("%w: turn invoke: %v", contractx.ErrModelInvoke, err)
		}
		if msg == nil {
			return "", fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
		}
		c.history = append(c.history, msg)

		if len(msg.ToolCalls) == 0 {
			reply := strings.TrimSpace(msg.Content)
			c.transcript = append(c.transcript, contractx.Turn{Role: string(schema.Assistant), Content: reply})
			return reply, nil
		}

		for _, call := range msg.ToolCalls {
			result := c.runToolCall(ctx, call)
			payload, err := json.Marshal(result.Payload())
			if err != nil {
				return "", fmt.Errorf("marshal tool=%s payload: %w", call.Function.Name, err)
			}
			c.history = append(c.history, schema.ToolMessage(string(payload), call.ID))
		}
	}

	return "", fmt.Errorf("%w: conversation=%s rounds=%d", ErrToolRoundLimit, c.sess.ConversationID, c.maxRounds)
}

func (c *Conversation) runToolCall(ctx context.Context, call schema.ToolCall) contractx.ToolResult {
	name := strings.TrimSpace(call.Function.Name)
	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			log.Warn().Err(err).
				Str("conversation_id", c.sess.ConversationID).
				Str("tool", name).
				Msg("tool arguments are not a JSON object")
			return contractx.Failure(name, contractx.ErrInvalidArgument, "Tool arguments must be a JSON object.")
		}
	}
	return c.callTool(ctx, name, args)
}

func (c *Conversation) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.IsTerminated()
}

func (c *Conversation) Snapshot() statex.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Snapshot()
}

func (c *Conversation) Transcript() []contractx.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]contractx.Turn(nil), c.transcript...)
}
