package tool

import (
	"github.com/cloudwego/eino/schema"
)

const (
	dateDesc = "Appointment date in ISO format (YYYY-MM-DD). Example: 2026-01-22"
	timeDesc = "Appointment time in 24-hour format (HH:MM:SS). Example: 14:00:00"
)

// Infos returns the tool definitions bound to the chat model, in the order
// the assistant is expected to use them.
func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolIdentifyUser,
			Desc: "Identifies the user for the current session using their phone number.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"contact_number": {
					Type:     schema.String,
					Desc:     "User phone number as digits only. Spoken digits such as 'nine eight zero' must be converted to '980'.",
					Required: true,
				},
			}),
		},
		{
			Name: ToolFetchSlots,
			Desc: "Fetches available appointment slots that the user can choose from.",
		},
		{
			Name: ToolBookAppointment,
			Desc: "Books an appointment for the identified user in one of the fetched available slots.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"date": {Type: schema.String, Desc: dateDesc, Required: true},
				"time": {Type: schema.String, Desc: timeDesc, Required: true},
			}),
		},
		{
			Name: ToolRetrieveAppointments,
			Desc: "Retrieves all booked appointments for the currently identified user.",
		},
		{
			Name: ToolCancelAppointment,
			Desc: "Cancels an existing appointment of the identified user.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"date": {Type: schema.String, Desc: dateDesc, Required: true},
				"time": {Type: schema.String, Desc: timeDesc, Required: true},
			}),
		},
		{
			Name: ToolModifyAppointment,
			Desc: "Moves an existing appointment of the identified user to a new available slot.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"current_date": {Type: schema.String, Desc: "Current appointment date in ISO format (YYYY-MM-DD).", Required: true},
				"current_time": {Type: schema.String, Desc: "Current appointment time in 24-hour format (HH:MM:SS).", Required: true},
				"new_date":     {Type: schema.String, Desc: "New appointment date in ISO format (YYYY-MM-DD).", Required: true},
				"new_time":     {Type: schema.String, Desc: "New appointment time in 24-hour format (HH:MM:SS).", Required: true},
			}),
		},
		{
			Name: ToolEndConversation,
			Desc: "Ends the current conversation after all actions are completed.",
		},
	}
}
