package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	statex "github.com/tanpawarit/voice-appointment-agent/agent/state"
)

// Handler is a tool body. Tool-local failures are returned inside the
// ToolResult; a non-nil error means the store or transport misbehaved.
type Handler func(ctx context.Context, sess *statex.Session, args map[string]any) (contractx.ToolResult, error)

type DispatcherOption func(*Dispatcher)

func WithJournal(j statex.Journal) DispatcherOption {
	return func(d *Dispatcher) {
		if j != nil {
			d.journal = j
		}
	}
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// Dispatcher gates every tool call on the requirement table before running
// the tool body, then logs and journals the outcome.
type Dispatcher struct {
	handlers map[string]Handler
	journal  statex.Journal
	now      func() time.Time
}

func NewDispatcher(handlers map[string]Handler, opts ...DispatcherOption) (*Dispatcher, error) {
	if len(handlers) == 0 {
		return nil, errors.New("tool handlers are required")
	}
	for name := range handlers {
		if _, ok := ToolRequirements[name]; !ok {
			return nil, fmt.Errorf("%w: tool=%s has no requirement entry", contractx.ErrValidation, name)
		}
	}

	d := &Dispatcher{
		handlers: handlers,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, sess *statex.Session, req contractx.ToolRequest) (contractx.ToolResult, error) {
	if sess == nil {
		return contractx.ToolResult{}, fmt.Errorf("%w: session is nil", contractx.ErrValidation)
	}

	tool := strings.TrimSpace(req.Tool)
	result, phase, err := d.run(ctx, sess, tool, req.Args)
	if err != nil {
		err = fmt.Errorf("tool=%s: %w", tool, err)
	}

	sess.Touch(d.now())
	d.observe(ctx, sess.ConversationID, tool, req.Args, phase, result, err)
	return result, err
}

func (d *Dispatcher) run(
	ctx context.Context,
	sess *statex.Session,
	tool string,
	args map[string]any,
) (contractx.ToolResult, statex.EventPhase, error) {
	if sess.IsTerminated() {
		return contractx.Failure(tool, contractx.ErrConversationEnded, "The conversation has already ended."), statex.PhaseBlocked, nil
	}

	handler, ok := d.handlers[tool]
	if _, declared := ToolRequirements[tool]; !ok || !declared {
		return contractx.Failure(tool, contractx.ErrUnknownTool, fmt.Sprintf("Tool %q is not available.", tool)), statex.PhaseBlocked, nil
	}

	if failure, ok := checkRequirements(tool, sess); !ok {
		return failure, statex.PhaseBlocked, nil
	}

	result, err := handler(ctx, sess, args)
	if err != nil {
		return contractx.ToolResult{}, statex.PhaseFault, err
	}
	if result.Tool == "" {
		result.Tool = tool
	}
	if result.Failed() {
		return result, statex.PhaseError, nil
	}
	return result, statex.PhaseSuccess, nil
}

// observe never alters the dispatch result.
func (d *Dispatcher) observe(
	ctx context.Context,
	conversationID string,
	tool string,
	args map[string]any,
	phase statex.EventPhase,
	result contractx.ToolResult,
	runErr error,
) {
	var ev *zerolog.Event
	var msg string
	switch phase {
	case statex.PhaseBlocked:
		ev, msg = log.Warn(), "[TOOL BLOCKED]"
	case statex.PhaseFault:
		ev, msg = log.Error().Err(runErr), "[TOOL FAULT]"
	default:
		ev, msg = log.Info(), "[TOOL RESULT]"
	}

	var output any
	if runErr == nil {
		output = result.Payload()
		if raw, err := json.Marshal(output); err == nil {
			ev = ev.RawJSON("output", raw)
		} else {
			ev = ev.Interface("output", output)
		}
	}
	ev.Str("tool", tool).Str("conversation_id", conversationID).Str("phase", string(phase)).Msg(msg)

	if d.journal == nil {
		return
	}
	event := &statex.ToolEvent{
		ConversationID: conversationID,
		Tool:           tool,
		Phase:          phase,
		Input:          args,
		Output:         output,
		At:             d.now().UTC(),
	}
	if err := d.journal.Append(ctx, event); err != nil {
		log.Warn().Err(err).Str("tool", tool).Str("conversation_id", conversationID).Msg("journal append failed")
	}
}
