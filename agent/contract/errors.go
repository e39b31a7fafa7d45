package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")
	ErrStoreFault      = errors.New("appointment store fault")
)

// ErrorKind is the machine-readable error code returned to the model inside
// a tool result. Tool-local failures never surface as Go errors.
type ErrorKind string

const (
	ErrUserNotIdentified    ErrorKind = "USER_NOT_IDENTIFIED"
	ErrInvalidDateTime      ErrorKind = "INVALID_DATE_TIME"
	ErrSlotNotAvailable     ErrorKind = "SLOT_NOT_AVAILABLE"
	ErrSlotAlreadyBooked    ErrorKind = "SLOT_ALREADY_BOOKED"
	ErrBookingNotAvailable  ErrorKind = "BOOKING_NOT_AVAILABLE"
	ErrConversationEnded    ErrorKind = "CONVERSATION_ENDED"
	ErrUnknownTool          ErrorKind = "UNKNOWN_TOOL"
	ErrInvalidArgument      ErrorKind = "INVALID_ARGUMENT"
	ErrInvalidContactNumber ErrorKind = "INVALID_CONTACT_NUMBER"
	ErrInternal             ErrorKind = "INTERNAL_ERROR"
)
