package state

import (
	"errors"
	"strings"
	"time"

	appointmentx "github.com/tanpawarit/voice-appointment-agent/agent/appointment"
)

var (
	ErrInvalidSession = errors.New("conversation id is empty")
	ErrEmptyContact   = errors.New("contact number is empty")
)

// Session is the mutable state of one live conversation.
// - Identity: identified + contactNumber are always set together.
// - Caches: availableSlots / userAppointments are nil until first loaded.
type Session struct {
	ConversationID string
	CreatedAt      time.Time

	identified    bool
	contactNumber string

	slotCatalog      []appointmentx.Slot
	availableSlots   []appointmentx.Slot
	userAppointments []appointmentx.Appointment

	terminated bool
	updatedAt  time.Time
}

// Snapshot is a read-only copy of a Session, safe to log or serialize.
type Snapshot struct {
	ConversationID   string                     `json:"conversation_id"`
	Identified       bool                       `json:"identified"`
	ContactNumber    string                     `json:"contact_number,omitempty"`
	SlotCatalog      []appointmentx.Slot        `json:"slot_catalog"`
	AvailableSlots   []appointmentx.Slot        `json:"available_slots"`
	UserAppointments []appointmentx.Appointment `json:"user_appointments"`
	Terminated       bool                       `json:"terminated"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

func NewSession(conversationID string, catalog []appointmentx.Slot, now time.Time) (*Session, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return nil, ErrInvalidSession
	}
	return &Session{
		ConversationID: id,
		CreatedAt:      now.UTC(),
		slotCatalog:    append([]appointmentx.Slot(nil), catalog...),
		updatedAt:      now.UTC(),
	}, nil
}

func (s *Session) Touch(now time.Time) {
	s.updatedAt = now.UTC()
}

/* ------------------------------- Identity ------------------------------- */

// Identify marks the session identified, replacing any prior contact number.
// A different number drops the appointment cache of the previous caller.
func (s *Session) Identify(contactNumber string) error {
	contactNumber = strings.TrimSpace(contactNumber)
	if contactNumber == "" {
		return ErrEmptyContact
	}
	if contactNumber != s.contactNumber {
		s.userAppointments = nil
	}
	s.identified = true
	s.contactNumber = contactNumber
	return nil
}

func (s *Session) IsIdentified() bool {
	return s != nil && s.identified && s.contactNumber != ""
}

func (s *Session) ContactNumber() string {
	if s == nil {
		return ""
	}
	return s.contactNumber
}

/* ------------------------------- Lifecycle ------------------------------ */

func (s *Session) Terminate() {
	s.terminated = true
}

func (s *Session) IsTerminated() bool {
	return s != nil && s.terminated
}

/* --------------------------------- Slots -------------------------------- */

func (s *Session) SlotCatalog() []appointmentx.Slot {
	return append([]appointmentx.Slot(nil), s.slotCatalog...)
}

// CatalogSlot looks up a slot of the fixed catalog by key.
func (s *Session) CatalogSlot(key appointmentx.SlotKey) (appointmentx.Slot, bool) {
	for _, slot := range s.slotCatalog {
		if slot.Key() == key {
			return slot, true
		}
	}
	return appointmentx.Slot{}, false
}

// AvailableSlots returns a copy of the cached availability and whether it
// has been fetched at all.
func (s *Session) AvailableSlots() ([]appointmentx.Slot, bool) {
	if s.availableSlots == nil {
		return nil, false
	}
	return append([]appointmentx.Slot{}, s.availableSlots...), true
}

func (s *Session) SetAvailableSlots(slots []appointmentx.Slot) {
	s.availableSlots = append(make([]appointmentx.Slot, 0, len(slots)), slots...)
}

func (s *Session) IsAvailable(key appointmentx.SlotKey) bool {
	for _, slot := range s.availableSlots {
		if slot.Key() == key {
			return true
		}
	}
	return false
}

// TakeSlot drops key from the cached availability.
func (s *Session) TakeSlot(key appointmentx.SlotKey) {
	if s.availableSlots == nil {
		return
	}
	out := s.availableSlots[:0]
	for _, slot := range s.availableSlots {
		if slot.Key() != key {
			out = append(out, slot)
		}
	}
	s.availableSlots = out
}

// FreeSlot puts a catalog slot back into the cached availability, keeping
// catalog order. Keys outside the catalog are ignored.
func (s *Session) FreeSlot(key appointmentx.SlotKey) bool {
	if s.availableSlots == nil {
		return false
	}
	if _, ok := s.CatalogSlot(key); !ok {
		return false
	}

	free := make(map[appointmentx.SlotKey]struct{}, len(s.availableSlots)+1)
	for _, slot := range s.availableSlots {
		free[slot.Key()] = struct{}{}
	}
	free[key] = struct{}{}

	out := make([]appointmentx.Slot, 0, len(free))
	for _, slot := range s.slotCatalog {
		if _, ok := free[slot.Key()]; ok {
			out = append(out, slot)
		}
	}
	s.availableSlots = out
	return true
}

/* ------------------------------ Appointments ---------------------------- */

// UserAppointments returns a copy of the cached appointments and whether the
// cache has been loaded.
func (s *Session) UserAppointments() ([]appointmentx.Appointment, bool) {
	if s.userAppointments == nil {
		return nil, false
	}
	return append([]appointmentx.Appointment{}, s.userAppointments...), true
}

// SetUserAppointments replaces the cache, keeping only BOOKED rows for the
// session's contact number.
func (s *Session) SetUserAppointments(appts []appointmentx.Appointment) {
	out := make([]appointmentx.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.IsBooked() && a.ContactNumber == s.contactNumber {
			out = append(out, a)
		}
	}
	appointmentx.SortAppointments(out)
	s.userAppointments = out
}

func (s *Session) AddUserAppointment(a appointmentx.Appointment) {
	if !a.IsBooked() || a.ContactNumber != s.contactNumber {
		return
	}
	for _, existing := range s.userAppointments {
		if existing.ID == a.ID {
			return
		}
	}
	s.userAppointments = append(s.userAppointments, a)
	appointmentx.SortAppointments(s.userAppointments)
}

func (s *Session) RemoveUserAppointment(id string) {
	if s.userAppointments == nil {
		return
	}
	out := s.userAppointments[:0]
	for _, a := range s.userAppointments {
		if a.ID != id {
			out = append(out, a)
		}
	}
	s.userAppointments = out
}

// FindBooked returns the cached BOOKED appointment of the current contact at key.
func (s *Session) FindBooked(key appointmentx.SlotKey) (appointmentx.Appointment, bool) {
	for _, a := range s.userAppointments {
		if a.IsBooked() && a.ContactNumber == s.contactNumber && a.Key() == key {
			return a, true
		}
	}
	return appointmentx.Appointment{}, false
}

func (s *Session) Snapshot() Snapshot {
	available, _ := s.AvailableSlots()
	appts, _ := s.UserAppointments()
	return Snapshot{
		ConversationID:   s.ConversationID,
		Identified:       s.identified,
		ContactNumber:    s.contactNumber,
		SlotCatalog:      s.SlotCatalog(),
		AvailableSlots:   available,
		UserAppointments: appts,
		Terminated:       s.terminated,
		UpdatedAt:        s.updatedAt,
	}
}
