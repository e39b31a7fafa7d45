package appointment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"

	shortTimeLayout = "15:04"
)

var ErrInvalidDateTime = errors.New("invalid date or time")

type Status string

const (
	StatusBooked    Status = "BOOKED"
	StatusCancelled Status = "CANCELLED"
)

// SlotKey is the composite identity of a slot. Two slots or appointments
// refer to the same time when their keys are equal.
type SlotKey struct {
	Date string
	Time string
}

func (k SlotKey) String() string {
	return k.Date + " " + k.Time
}

type Slot struct {
	SlotID string `json:"slot_id" yaml:"slot_id"`
	Date   string `json:"date" yaml:"date"`
	Time   string `json:"time" yaml:"time"`
}

func (s Slot) Key() SlotKey {
	return SlotKey{Date: s.Date, Time: s.Time}
}

type Appointment struct {
	ID            string `json:"id"`
	ContactNumber string `json:"contact_number"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        Status `json:"status"`
}

func (a Appointment) Key() SlotKey {
	return SlotKey{Date: a.Date, Time: a.Time}
}

func (a Appointment) IsBooked() bool {
	return a.Status == StatusBooked
}

// ParseKey validates a date/time pair and returns it in canonical form.
// Times may be given as HH:MM or HH:MM:SS.
func ParseKey(date, clock string) (SlotKey, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return SlotKey{}, fmt.Errorf("%w: date=%q", ErrInvalidDateTime, date)
	}

	t, err := time.Parse(TimeLayout, clock)
	if err != nil {
		t, err = time.Parse(shortTimeLayout, clock)
		if err != nil {
			return SlotKey{}, fmt.Errorf("%w: time=%q", ErrInvalidDateTime, clock)
		}
	}

	return SlotKey{
		Date: d.Format(DateLayout),
		Time: t.Format(TimeLayout),
	}, nil
}

// Available returns the catalog slots whose key is not taken by any booked
// appointment, preserving catalog order.
func Available(catalog []Slot, booked []Appointment) []Slot {
	taken := make(map[SlotKey]struct{}, len(booked))
	for _, a := range booked {
		if a.IsBooked() {
			taken[a.Key()] = struct{}{}
		}
	}

	out := make([]Slot, 0, len(catalog))
	for _, s := range catalog {
		if _, ok := taken[s.Key()]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}
