package tool

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	appointmentx "github.com/tanpawarit/voice-appointment-agent/agent/appointment"
	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	statex "github.com/tanpawarit/voice-appointment-agent/agent/state"
)

type BookAppointmentOutput struct {
	Status        string `json:"status"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	ContactNumber string `json:"contact_number"`
}

type RetrieveAppointmentsOutput struct {
	Appointments []appointmentx.Appointment `json:"appointments"`
}

type CancelAppointmentOutput struct {
	Status string `json:"status"`
}

type ModifyAppointmentOutput struct {
	Status  string `json:"status"`
	NewDate string `json:"new_date"`
	NewTime string `json:"new_time"`
}

/* --------------------------------- book --------------------------------- */

func (t *Toolbox) BookAppointment(ctx context.Context, sess *statex.Session, args map[string]any) (contractx.ToolResult, error) {
	key, failure, ok := slotKeyArgs(ToolBookAppointment, args, "date", "time")
	if !ok {
		return failure, nil
	}

	if !sess.IsAvailable(key) {
		return contractx.Failure(ToolBookAppointment, contractx.ErrSlotNotAvailable,
			"The requested slot is not in the list of available slots."), nil
	}

	contact := sess.ContactNumber()
	appt, err := t.store.Insert(ctx, contact, key)
	if errors.Is(err, appointmentx.ErrConflict) {
		sess.TakeSlot(key)
		return contractx.Failure(ToolBookAppointment, contractx.ErrSlotAlreadyBooked,
			"That slot was just booked by someone else. Please choose another slot."), nil
	}
	if err != nil {
		return contractx.ToolResult{}, storeFault("insert appointment", err)
	}

	if _, loaded := sess.UserAppointments(); loaded {
		sess.AddUserAppointment(appt)
	} else if err := t.refreshUserAppointments(ctx, sess); err != nil {
		log.Warn().Err(err).Str("conversation_id", sess.ConversationID).Msg("load appointments after booking failed")
	}
	sess.TakeSlot(key)

	t.publish(ctx, contractx.AppointmentEvent{
		Type:           contractx.EventAppointmentBooked,
		ConversationID: sess.ConversationID,
		AppointmentID:  appt.ID,
		ContactNumber:  contact,
		Date:           key.Date,
		Time:           key.Time,
	})

	return contractx.Success(ToolBookAppointment, BookAppointmentOutput{
		Status:        "CONFIRMED",
		Date:          key.Date,
		Time:          key.Time,
		ContactNumber: contact,
	}), nil
}

/* ------------------------------- retrieve ------------------------------- */

func (t *Toolbox) RetrieveAppointments(ctx context.Context, sess *statex.Session, _ map[string]any) (contractx.ToolResult, error) {
	if err := t.refreshUserAppointments(ctx, sess); err != nil {
		return contractx.ToolResult{}, err
	}
	appts, _ := sess.UserAppointments()
	return contractx.Success(ToolRetrieveAppointments, RetrieveAppointmentsOutput{Appointments: appts}), nil
}

func (t *Toolbox) refreshUserAppointments(ctx context.Context, sess *statex.Session) error {
	appts, err := t.store.ListByContact(ctx, sess.ContactNumber(), appointmentx.StatusBooked)
	if err != nil {
		return storeFault("list appointments for contact", err)
	}
	sess.SetUserAppointments(appts)
	return nil
}

func (t *Toolbox) ensureUserAppointments(ctx context.Context, sess *statex.Session) error {
	if _, loaded := sess.UserAppointments(); loaded {
		return nil
	}
	return t.refreshUserAppointments(ctx, sess)
}

/* -------------------------------- cancel -------------------------------- */

func (t *Toolbox) CancelAppointment(ctx context.Context, sess *statex.Session, args map[string]any) (contractx.ToolResult, error) {
	key, failure, ok := slotKeyArgs(ToolCancelAppointment, args, "date", "time")
	if !ok {
		return failure, nil
	}

	if err := t.ensureUserAppointments(ctx, sess); err != nil {
		return contractx.ToolResult{}, err
	}

	appt, found := sess.FindBooked(key)
	if !found {
		return contractx.Failure(ToolCancelAppointment, contractx.ErrBookingNotAvailable,
			"The requested booking does not exist."), nil
	}

	if _, err := t.store.UpdateStatus(ctx, appt.ID, appointmentx.StatusCancelled); err != nil {
		if errors.Is(err, appointmentx.ErrNotFound) {
			return t.resyncAfterStale(ctx, sess, ToolCancelAppointment)
		}
		return contractx.ToolResult{}, storeFault("cancel appointment", err)
	}

	sess.RemoveUserAppointment(appt.ID)
	t.releaseSlot(ctx, sess, key)

	t.publish(ctx, contractx.AppointmentEvent{
		Type:           contractx.EventAppointmentCancelled,
		ConversationID: sess.ConversationID,
		AppointmentID:  appt.ID,
		ContactNumber:  sess.ContactNumber(),
		Date:           key.Date,
		Time:           key.Time,
	})

	return contractx.Success(ToolCancelAppointment, CancelAppointmentOutput{Status: "CANCELLED"}), nil
}

// resyncAfterStale reloads the appointment cache after the store reported
// that a cached appointment no longer exists.
func (t *Toolbox) resyncAfterStale(ctx context.Context, sess *statex.Session, tool string) (contractx.ToolResult, error) {
	log.Warn().Str("conversation_id", sess.ConversationID).Str("tool", tool).Msg("appointment cache stale, resynchronizing")
	if err := t.refreshUserAppointments(ctx, sess); err != nil {
		return contractx.ToolResult{}, err
	}
	return contractx.Failure(tool, contractx.ErrBookingNotAvailable,
		"That booking no longer exists. The appointment list has been refreshed."), nil
}

// releaseSlot returns key to the cached availability, or recomputes the
// availability when it was never fetched.
func (t *Toolbox) releaseSlot(ctx context.Context, sess *statex.Session, key appointmentx.SlotKey) {
	if _, loaded := sess.AvailableSlots(); loaded {
		sess.FreeSlot(key)
		return
	}
	if err := t.refreshAvailability(ctx, sess); err != nil {
		log.Warn().Err(err).Str("conversation_id", sess.ConversationID).Msg("refresh availability after release failed")
	}
}

/* -------------------------------- modify -------------------------------- */

// ModifyAppointment books the new slot before cancelling the current one so
// a conflict on the new slot leaves the existing appointment untouched.
func (t *Toolbox) ModifyAppointment(ctx context.Context, sess *statex.Session, args map[string]any) (contractx.ToolResult, error) {
	newKey, failure, ok := slotKeyArgs(ToolModifyAppointment, args, "new_date", "new_time")
	if !ok {
		return failure, nil
	}
	currentKey, failure, ok := slotKeyArgs(ToolModifyAppointment, args, "current_date", "current_time")
	if !ok {
		return failure, nil
	}

	if err := t.ensureUserAppointments(ctx, sess); err != nil {
		return contractx.ToolResult{}, err
	}

	current, found := sess.FindBooked(currentKey)
	if !found {
		return contractx.Failure(ToolModifyAppointment, contractx.ErrBookingNotAvailable,
			"The appointment to modify does not exist."), nil
	}

	if !sess.IsAvailable(newKey) {
		return contractx.Failure(ToolModifyAppointment, contractx.ErrSlotNotAvailable,
			"The new slot is not in the list of available slots."), nil
	}

	contact := sess.ContactNumber()
	replacement, err := t.store.Insert(ctx, contact, newKey)
	if errors.Is(err, appointmentx.ErrConflict) {
		sess.TakeSlot(newKey)
		return contractx.Failure(ToolModifyAppointment, contractx.ErrSlotAlreadyBooked,
			"That slot was just booked by someone else. Please choose another slot."), nil
	}
	if err != nil {
		return contractx.ToolResult{}, storeFault("insert replacement appointment", err)
	}

	stale := false
	if _, err := t.store.UpdateStatus(ctx, current.ID, appointmentx.StatusCancelled); err != nil {
		if !errors.Is(err, appointmentx.ErrNotFound) {
			t.compensate(ctx, sess, replacement)
			return contractx.ToolResult{}, storeFault("cancel replaced appointment", err)
		}
		stale = true
	}

	sess.RemoveUserAppointment(current.ID)
	sess.AddUserAppointment(replacement)
	sess.TakeSlot(newKey)
	sess.FreeSlot(currentKey)

	if stale {
		if err := t.refreshUserAppointments(ctx, sess); err != nil {
			log.Warn().Err(err).Str("conversation_id", sess.ConversationID).Msg("resync after modify failed")
		}
	}

	t.publish(ctx, contractx.AppointmentEvent{
		Type:           contractx.EventAppointmentModified,
		ConversationID: sess.ConversationID,
		AppointmentID:  replacement.ID,
		ContactNumber:  contact,
		Date:           newKey.Date,
		Time:           newKey.Time,
		PreviousDate:   currentKey.Date,
		PreviousTime:   currentKey.Time,
	})

	return contractx.Success(ToolModifyAppointment, ModifyAppointmentOutput{
		Status:  "MODIFIED",
		NewDate: newKey.Date,
		NewTime: newKey.Time,
	}), nil
}

func (t *Toolbox) compensate(ctx context.Context, sess *statex.Session, appt appointmentx.Appointment) {
	if _, err := t.store.UpdateStatus(ctx, appt.ID, appointmentx.StatusCancelled); err != nil {
		log.Error().Err(err).
			Str("conversation_id", sess.ConversationID).
			Str("appointment_id", appt.ID).
			Msg("rollback of replacement appointment failed")
	}
}

func slotKeyArgs(tool string, args map[string]any, dateArg, timeArg string) (appointmentx.SlotKey, contractx.ToolResult, bool) {
	date, err := stringArg(args, dateArg)
	if err != nil {
		return appointmentx.SlotKey{}, contractx.Failure(tool, contractx.ErrInvalidArgument, err.Error()), false
	}
	clock, err := stringArg(args, timeArg)
	if err != nil {
		return appointmentx.SlotKey{}, contractx.Failure(tool, contractx.ErrInvalidArgument, err.Error()), false
	}

	key, err := appointmentx.ParseKey(date, clock)
	if err != nil {
		return appointmentx.SlotKey{}, contractx.Failure(tool, contractx.ErrInvalidDateTime, "Date or time format is invalid."), false
	}
	return key, contractx.ToolResult{}, true
}
