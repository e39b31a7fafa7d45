package appointment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store that enforces the same
// one-booked-appointment-per-slot constraint as the database.
type MemoryStore struct {
	mu    sync.Mutex
	byID  map[string]*Appointment
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*Appointment, 16),
	}
}

func (m *MemoryStore) Insert(ctx context.Context, contactNumber string, key SlotKey) (Appointment, error) {
	if err := ctx.Err(); err != nil {
		return Appointment{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		a := m.byID[id]
		if a.IsBooked() && a.Key() == key {
			return Appointment{}, fmt.Errorf("%w: %s", ErrConflict, key)
		}
	}

	appt := &Appointment{
		ID:            uuid.NewString(),
		ContactNumber: strings.TrimSpace(contactNumber),
		Date:          key.Date,
		Time:          key.Time,
		Status:        StatusBooked,
	}
	m.byID[appt.ID] = appt
	m.order = append(m.order, appt.ID)
	return *appt, nil
}

func (m *MemoryStore) ListAll(ctx context.Context, status Status) ([]Appointment, error) {
	return m.list(ctx, func(a *Appointment) bool {
		return a.Status == status
	})
}

func (m *MemoryStore) ListByContact(ctx context.Context, contactNumber string, status Status) ([]Appointment, error) {
	return m.list(ctx, func(a *Appointment) bool {
		return a.Status == status && a.ContactNumber == contactNumber
	})
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status) (Appointment, error) {
	if err := ctx.Err(); err != nil {
		return Appointment{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return Appointment{}, fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}
	if status == StatusBooked && a.Status != StatusBooked {
		for _, other := range m.byID {
			if other.ID != id && other.IsBooked() && other.Key() == a.Key() {
				return Appointment{}, fmt.Errorf("%w: %s", ErrConflict, a.Key())
			}
		}
	}
	a.Status = status
	return *a, nil
}

// Delete removes an appointment outright. It exists so callers can simulate
// rows disappearing underneath a session cache.
func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return
	}
	delete(m.byID, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *MemoryStore) list(ctx context.Context, keep func(*Appointment) bool) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Appointment, 0, len(m.order))
	for _, id := range m.order {
		if a := m.byID[id]; keep(a) {
			out = append(out, *a)
		}
	}
	SortAppointments(out)
	return out, nil
}
