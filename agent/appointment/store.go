package appointment

import (
	"context"
	"errors"
	"sort"
)

var (
	ErrConflict = errors.New("slot already booked")
	ErrNotFound = errors.New("appointment not found")
)

// Store is the persistence gateway for appointments. List results are
// ordered by (date, time) ascending.
type Store interface {
	Insert(ctx context.Context, contactNumber string, key SlotKey) (Appointment, error)
	ListAll(ctx context.Context, status Status) ([]Appointment, error)
	ListByContact(ctx context.Context, contactNumber string, status Status) ([]Appointment, error)
	UpdateStatus(ctx context.Context, id string, status Status) (Appointment, error)
}

// SortAppointments orders appointments by date then time ascending.
func SortAppointments(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		return appts[i].Time < appts[j].Time
	})
}
