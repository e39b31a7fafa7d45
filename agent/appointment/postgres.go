package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	postgresx "github.com/tanpawarit/voice-appointment-agent/pkg/postgres"
)

// UniqueActiveSlotIndex allows at most one BOOKED row per (date, time).
const UniqueActiveSlotIndex = "unique_active_slot"

type appointmentRow struct {
	bun.BaseModel `bun:"table:appointments,alias:a"`

	ID            string    `bun:"id,pk,type:uuid"`
	ContactNumber string    `bun:"contact_number,notnull"`
	Date          string    `bun:"date,type:date,notnull"`
	Time          string    `bun:"time,type:time,notnull"`
	Status        string    `bun:"status,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r appointmentRow) toAppointment() Appointment {
	return Appointment{
		ID:            r.ID,
		ContactNumber: r.ContactNumber,
		Date:          normalizeDate(r.Date),
		Time:          normalizeTime(r.Time),
		Status:        Status(r.Status),
	}
}

// PostgresStore keeps appointments in Postgres. Double booking is rejected by
// the unique_active_slot partial index, not by application checks.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(db *bun.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates the appointments table and its partial unique index.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*appointmentRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create appointments table: %w", err)
	}

	if _, err := s.db.NewCreateIndex().
		Model((*appointmentRow)(nil)).
		Index(UniqueActiveSlotIndex).
		Unique().
		IfNotExists().
		Column("date", "time").
		Where("status = ?", string(StatusBooked)).
		Exec(ctx); err != nil {
		return fmt.Errorf("create %s index: %w", UniqueActiveSlotIndex, err)
	}

	if _, err := s.db.NewCreateIndex().
		Model((*appointmentRow)(nil)).
		Index("appointments_contact_status_idx").
		IfNotExists().
		Column("contact_number", "status").
		Exec(ctx); err != nil {
		return fmt.Errorf("create contact index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, contactNumber string, key SlotKey) (Appointment, error) {
	row := &appointmentRow{
		ID:            uuid.NewString(),
		ContactNumber: strings.TrimSpace(contactNumber),
		Date:          key.Date,
		Time:          key.Time,
		Status:        string(StatusBooked),
	}

	if _, err := s.db.NewInsert().Model(row).Returning("*").Exec(ctx); err != nil {
		if postgresx.IsUniqueViolation(err, UniqueActiveSlotIndex) {
			return Appointment{}, fmt.Errorf("%w: %s", ErrConflict, key)
		}
		return Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	return row.toAppointment(), nil
}

func (s *PostgresStore) ListAll(ctx context.Context, status Status) ([]Appointment, error) {
	var rows []appointmentRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("status = ?", string(status)).
		Order("date ASC", "time ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return toAppointments(rows), nil
}

func (s *PostgresStore) ListByContact(ctx context.Context, contactNumber string, status Status) ([]Appointment, error) {
	var rows []appointmentRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("contact_number = ?", contactNumber).
		Where("status = ?", string(status)).
		Order("date ASC", "time ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list appointments for contact: %w", err)
	}
	return toAppointments(rows), nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) (Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Appointment{}, fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}

	row := new(appointmentRow)
	res, err := s.db.NewUpdate().
		Model(row).
		Set("status = ?", string(status)).
		Where("id = ?", id).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Appointment{}, fmt.Errorf("%w: id=%s", ErrNotFound, id)
		}
		if postgresx.IsUniqueViolation(err, UniqueActiveSlotIndex) {
			return Appointment{}, fmt.Errorf("%w: id=%s", ErrConflict, id)
		}
		return Appointment{}, fmt.Errorf("update appointment status: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Appointment{}, fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}
	return row.toAppointment(), nil
}

func toAppointments(rows []appointmentRow) []Appointment {
	out := make([]Appointment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toAppointment())
	}
	SortAppointments(out)
	return out
}

// Postgres renders date/time columns in ISO form already; these only guard
// against driver variants that append a zone or a time component.
func normalizeDate(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > len(DateLayout) {
		return v[:len(DateLayout)]
	}
	return v
}

func normalizeTime(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.LastIndex(v, "T"); i >= 0 {
		v = v[i+1:]
	}
	if len(v) > len(TimeLayout) {
		return v[:len(TimeLayout)]
	}
	return v
}
