package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
)

type callSummaryRow struct {
	bun.BaseModel `bun:"table:call_summaries,alias:cs"`

	ID            int64     `bun:"id,pk,autoincrement"`
	SessionID     string    `bun:"session_id,notnull"`
	ContactNumber string    `bun:"contact_number"`
	Summary       string    `bun:"summary,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// PostgresStore persists call summaries in the call_summaries table.
type PostgresStore struct {
	db *bun.DB
}

var _ contractx.SummaryStore = (*PostgresStore)(nil)

func NewPostgresStore(db *bun.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*callSummaryRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create call_summaries table: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*callSummaryRow)(nil)).
		Index("call_summaries_session_idx").
		IfNotExists().
		Column("session_id").
		Exec(ctx); err != nil {
		return fmt.Errorf("create call_summaries session index: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveSummary(ctx context.Context, conversationID, contactNumber, summary string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return fmt.Errorf("%w: session id is required", contractx.ErrValidation)
	}

	row := &callSummaryRow{
		SessionID:     conversationID,
		ContactNumber: strings.TrimSpace(contactNumber),
		Summary:       summary,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert call summary: %w", err)
	}
	return nil
}
