package tool

import (
	"context"

	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	statex "github.com/tanpawarit/voice-appointment-agent/agent/state"
)

type EndConversationOutput struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// EndConversation terminates the session; the owning conversation stops
// accepting tool calls afterwards.
func (t *Toolbox) EndConversation(_ context.Context, sess *statex.Session, _ map[string]any) (contractx.ToolResult, error) {
	sess.Terminate()
	return contractx.Success(ToolEndConversation, EndConversationOutput{
		Status: "conversation_ended",
		Reason: "user_requested",
	}), nil
}
