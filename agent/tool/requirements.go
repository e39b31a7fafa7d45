package tool

import (
	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	statex "github.com/tanpawarit/voice-appointment-agent/agent/state"
)

const (
	ToolIdentifyUser         = "identify_user"
	ToolFetchSlots           = "fetch_slots"
	ToolBookAppointment      = "book_appointment"
	ToolRetrieveAppointments = "retrieve_appointments"
	ToolCancelAppointment    = "cancel_appointment"
	ToolModifyAppointment    = "modify_appointment"
	ToolEndConversation      = "end_conversation"
)

// Requirement names a precondition a tool declares over session state.
type Requirement string

const RequireUserIdentified Requirement = "user_identified"

// ToolRequirements is the static precondition table. A tool missing from
// this table cannot be dispatched.
var ToolRequirements = map[string][]Requirement{
	ToolIdentifyUser:         {},
	ToolFetchSlots:           {RequireUserIdentified},
	ToolBookAppointment:      {RequireUserIdentified},
	ToolRetrieveAppointments: {RequireUserIdentified},
	ToolCancelAppointment:    {RequireUserIdentified},
	ToolModifyAppointment:    {RequireUserIdentified},
	ToolEndConversation:      {},
}

type guard struct {
	holds   func(*statex.Session) bool
	kind    contractx.ErrorKind
	message string
}

var guards = map[Requirement]guard{
	RequireUserIdentified: {
		holds:   (*statex.Session).IsIdentified,
		kind:    contractx.ErrUserNotIdentified,
		message: "User must be identified before this action.",
	},
}

// checkRequirements returns the failure for the first unmet requirement.
func checkRequirements(tool string, sess *statex.Session) (contractx.ToolResult, bool) {
	for _, req := range ToolRequirements[tool] {
		g, ok := guards[req]
		if !ok {
			return contractx.Failure(tool, contractx.ErrInternal, "unknown requirement "+string(req)), false
		}
		if !g.holds(sess) {
			return contractx.Failure(tool, g.kind, g.message), false
		}
	}
	return contractx.ToolResult{}, true
}
