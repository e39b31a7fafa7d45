package state

import (
	"errors"
	"testing"
	"time"

	appointmentx "github.com/tanpawarit/voice-appointment-agent/agent/appointment"
)

var testCatalog = []appointmentx.Slot{
	{SlotID: "slot_1", Date: "2026-01-22", Time: "10:00:00"},
	{SlotID: "slot_2", Date: "2026-01-22", Time: "14:00:00"},
	{SlotID: "slot_3", Date: "2026-01-23", Time: "11:00:00"},
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession("room-1", testCatalog, time.Now())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

func TestNewSessionDefaults(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	if s.IsIdentified() || s.ContactNumber() != "" {
		t.Fatal("fresh session must be unidentified")
	}
	if _, ok := s.AvailableSlots(); ok {
		t.Fatal("available slots must start uninitialized")
	}
	if _, ok := s.UserAppointments(); ok {
		t.Fatal("user appointments must start uninitialized")
	}
	if len(s.SlotCatalog()) != 3 {
		t.Fatalf("unexpected catalog size: %d", len(s.SlotCatalog()))
	}
}

func TestNewSessionRejectsBlankID(t *testing.T) {
	t.Parallel()

	if _, err := NewSession("  ", testCatalog, time.Now()); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("NewSession() error = %v, want ErrInvalidSession", err)
	}
}

func TestIdentifySetsBothFields(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	if err := s.Identify(""); !errors.Is(err, ErrEmptyContact) {
		t.Fatalf("Identify(\"\") error = %v, want ErrEmptyContact", err)
	}
	if s.IsIdentified() {
		t.Fatal("failed identify must not flip the flag")
	}

	if err := s.Identify("9998887776"); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if !s.IsIdentified() || s.ContactNumber() != "9998887776" {
		t.Fatalf("unexpected identity: %v %q", s.IsIdentified(), s.ContactNumber())
	}

	if err := s.Identify("1112223334"); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if s.ContactNumber() != "1112223334" {
		t.Fatalf("identify must overwrite, got %q", s.ContactNumber())
	}
}

func TestTakeAndFreeSlotKeepCatalogOrder(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.SetAvailableSlots(testCatalog)

	first := testCatalog[0].Key()
	s.TakeSlot(first)
	if s.IsAvailable(first) {
		t.Fatal("taken slot must not be available")
	}

	if !s.FreeSlot(first) {
		t.Fatal("FreeSlot() = false for catalog slot")
	}
	got, _ := s.AvailableSlots()
	if len(got) != 3 || got[0].Key() != first {
		t.Fatalf("unexpected order after free: %+v", got)
	}

	if s.FreeSlot(appointmentx.SlotKey{Date: "2030-01-01", Time: "09:00:00"}) {
		t.Fatal("FreeSlot() must ignore keys outside the catalog")
	}
}

func TestTakeAllSlotsLeavesInitializedEmpty(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.SetAvailableSlots(testCatalog[:1])
	s.TakeSlot(testCatalog[0].Key())

	got, ok := s.AvailableSlots()
	if !ok || len(got) != 0 {
		t.Fatalf("expected initialized empty availability, got %v %v", got, ok)
	}
}

func TestSetUserAppointmentsFiltersForeignAndCancelled(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	_ = s.Identify("9998887776")
	s.SetUserAppointments([]appointmentx.Appointment{
		{ID: "b", ContactNumber: "9998887776", Date: "2026-01-23", Time: "11:00:00", Status: appointmentx.StatusBooked},
		{ID: "a", ContactNumber: "9998887776", Date: "2026-01-22", Time: "10:00:00", Status: appointmentx.StatusBooked},
		{ID: "c", ContactNumber: "9998887776", Date: "2026-01-22", Time: "14:00:00", Status: appointmentx.StatusCancelled},
		{ID: "d", ContactNumber: "0000000000", Date: "2026-01-22", Time: "14:00:00", Status: appointmentx.StatusBooked},
	})

	got, ok := s.UserAppointments()
	if !ok || len(got) != 2 {
		t.Fatalf("unexpected appointments: %+v", got)
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("appointments not ordered by date/time: %+v", got)
	}

	if _, found := s.FindBooked(appointmentx.SlotKey{Date: "2026-01-22", Time: "14:00:00"}); found {
		t.Fatal("cancelled appointment must not be found")
	}

	s.RemoveUserAppointment("a")
	got, _ = s.UserAppointments()
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected appointments after remove: %+v", got)
	}
}

func TestIdentifyAsOtherContactDropsAppointmentCache(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	_ = s.Identify("9998887776")
	s.SetUserAppointments([]appointmentx.Appointment{
		{ID: "a1", ContactNumber: "9998887776", Date: "2026-01-22", Time: "10:00:00", Status: appointmentx.StatusBooked},
	})
	key := appointmentx.SlotKey{Date: "2026-01-22", Time: "10:00:00"}

	_ = s.Identify("9998887776")
	if _, ok := s.FindBooked(key); !ok {
		t.Fatal("same number must keep the cache")
	}

	_ = s.Identify("1112223334")
	if _, loaded := s.UserAppointments(); loaded {
		t.Fatal("cache must be uninitialized after identifying as another contact")
	}
	if _, ok := s.FindBooked(key); ok {
		t.Fatal("previous caller's appointment must not be found")
	}
}
