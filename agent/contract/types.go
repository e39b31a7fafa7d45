package contract

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult carries either a success payload in Result or an Error kind
// with a human readable Message.
type ToolResult struct {
	Tool    string    `json:"tool"`
	Result  any       `json:"result,omitempty"`
	Error   ErrorKind `json:"error,omitempty"`
	Message string    `json:"message,omitempty"`
}

func (r ToolResult) Failed() bool {
	return r.Error != ""
}

// Payload is the JSON-serializable mapping handed back to the model.
func (r ToolResult) Payload() any {
	if r.Failed() {
		return ErrorPayload{Error: r.Error, Message: r.Message}
	}
	return r.Result
}

type ErrorPayload struct {
	Error   ErrorKind `json:"error"`
	Message string    `json:"message"`
}

func Success(tool string, result any) ToolResult {
	return ToolResult{Tool: tool, Result: result}
}

func Failure(tool string, kind ErrorKind, message string) ToolResult {
	return ToolResult{Tool: tool, Error: kind, Message: message}
}

// Appointment lifecycle events published after a successful state change.
const (
	EventAppointmentBooked    = "appointment.booked"
	EventAppointmentCancelled = "appointment.cancelled"
	EventAppointmentModified  = "appointment.modified"
)

type AppointmentEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	AppointmentID  string `json:"appointment_id"`
	ContactNumber  string `json:"contact_number"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	PreviousDate   string `json:"previous_date,omitempty"`
	PreviousTime   string `json:"previous_time,omitempty"`
}

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SummaryRequest struct {
	ConversationID string   `json:"conversation_id"`
	ContactNumber  string   `json:"contact_number"`
	Transcript     []Turn   `json:"transcript"`
	ToolActivity   []string `json:"tool_activity"`
}
