package tool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appointmentx "github.com/tanpawarit/voice-appointment-agent/agent/appointment"
	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	statex "github.com/tanpawarit/voice-appointment-agent/agent/state"
)

var testCatalog = []appointmentx.Slot{
	{SlotID: "slot_1", Date: "2026-01-22", Time: "10:00:00"},
	{SlotID: "slot_2", Date: "2026-01-22", Time: "14:00:00"},
	{SlotID: "slot_3", Date: "2026-01-23", Time: "11:00:00"},
}

var errStoreDown = errors.New("store down")

// spyStore counts gateway calls and can inject faults.
type spyStore struct {
	*appointmentx.MemoryStore

	mu        sync.Mutex
	calls     int
	listErr   error
	updateErr error
}

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: appointmentx.NewMemoryStore()}
}

func (s *spyStore) hit() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *spyStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *spyStore) Insert(ctx context.Context, contact string, key appointmentx.SlotKey) (appointmentx.Appointment, error) {
	s.hit()
	return s.MemoryStore.Insert(ctx, contact, key)
}

func (s *spyStore) ListAll(ctx context.Context, status appointmentx.Status) ([]appointmentx.Appointment, error) {
	s.hit()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListAll(ctx, status)
}

func (s *spyStore) ListByContact(ctx context.Context, contact string, status appointmentx.Status) ([]appointmentx.Appointment, error) {
	s.hit()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListByContact(ctx, contact, status)
}

func (s *spyStore) UpdateStatus(ctx context.Context, id string, status appointmentx.Status) (appointmentx.Appointment, error) {
	s.hit()
	if s.updateErr != nil {
		return appointmentx.Appointment{}, s.updateErr
	}
	return s.MemoryStore.UpdateStatus(ctx, id, status)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []contractx.AppointmentEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev contractx.AppointmentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type failingJournal struct{}

func (failingJournal) Append(context.Context, *statex.ToolEvent) error {
	return errors.New("journal unavailable")
}

func (failingJournal) Load(context.Context, string) ([]statex.ToolEvent, error) {
	return nil, nil
}

func (failingJournal) Delete(context.Context, string) error {
	return nil
}

func newTestToolbox(t *testing.T, store appointmentx.Store, opts ...ToolboxOption) *Toolbox {
	t.Helper()
	if store == nil {
		store = newSpyStore()
	}
	tb, err := NewToolbox(store, opts...)
	if err != nil {
		t.Fatalf("NewToolbox() error = %v", err)
	}
	return tb
}

func newTestDispatcher(t *testing.T, store appointmentx.Store, opts ...DispatcherOption) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(newTestToolbox(t, store).Handlers(), opts...)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return d
}

func newTestSession(t *testing.T, id string) *statex.Session {
	t.Helper()
	s, err := statex.NewSession(id, testCatalog, time.Now())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

func dispatch(t *testing.T, d *Dispatcher, sess *statex.Session, tool string, args map[string]any) contractx.ToolResult {
	t.Helper()
	out, err := d.Dispatch(context.Background(), sess, contractx.ToolRequest{Tool: tool, Args: args})
	if err != nil {
		t.Fatalf("Dispatch(%s) error = %v", tool, err)
	}
	return out
}

func slotArgs(date, clock string) map[string]any {
	return map[string]any{"date": date, "time": clock}
}

func identifyAndFetch(t *testing.T, d *Dispatcher, sess *statex.Session, contact string) {
	t.Helper()
	if out := dispatch(t, d, sess, ToolIdentifyUser, map[string]any{"contact_number": contact}); out.Failed() {
		t.Fatalf("identify failed: %+v", out)
	}
	if out := dispatch(t, d, sess, ToolFetchSlots, nil); out.Failed() {
		t.Fatalf("fetch failed: %+v", out)
	}
}

func availableKeys(sess *statex.Session) map[appointmentx.SlotKey]bool {
	slots, _ := sess.AvailableSlots()
	out := make(map[appointmentx.SlotKey]bool, len(slots))
	for _, s := range slots {
		out[s.Key()] = true
	}
	return out
}

func hasUserAppointment(sess *statex.Session, key appointmentx.SlotKey) bool {
	_, ok := sess.FindBooked(key)
	return ok
}
