package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appoutbox "stayhub/internal/app/outbox"
	infraoutbox "stayhub/internal/infra/outbox"
)

const (
	outboxNew     = "NEW"
	outboxClaimed = "CLAIMED"
	outboxSent    = "SENT"
	outboxFailed  = "FAILED"
)

type outboxRow struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	Payload       []byte
	OccurredAt    time.Time
	Aggregate     string
	Headers       []byte `gorm:"type:jsonb"`
	State         string
	Attempts      int
	NextAttemptAt time.Time
	ClaimedBy     string
	ClaimedAt     *time.Time
	SentAt        *time.Time
	LastError     string
	CreatedAt     time.Time
}

func (outboxRow) TableName() string { return "outbox_events" }

// OutboxStore writes events in the caller's transaction and lets several
// workers claim rows with SKIP LOCKED.
type OutboxStore struct {
	db *gorm.DB
}

func NewOutboxStore(db *gorm.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	row := outboxRow{
		ID:            record.ID,
		Name:          record.Name,
		Payload:       record.Payload,
		OccurredAt:    record.OccurredAt,
		Aggregate:     record.Aggregate,
		Headers:       headers,
		State:         outboxNew,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	return conn(ctx, s.db).Create(&row).Error
}

func (s *OutboxStore) Flush(context.Context) error {
	return nil
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Entry, error) {
	var claimed *infraoutbox.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row outboxRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("state IN ? AND next_attempt_at <= ?", []string{outboxNew, outboxFailed}, time.Now().UTC()).
			Order("next_attempt_at").
			First(&row).Error
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.Model(&outboxRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"state":      outboxClaimed,
			"claimed_by": workerID,
			"claimed_at": now,
		}).Error; err != nil {
			return err
		}
		headers := map[string]string{}
		if len(row.Headers) > 0 {
			if err := json.Unmarshal(row.Headers, &headers); err != nil {
				return err
			}
		}
		claimed = &infraoutbox.Entry{
			ID:          row.ID,
			Name:        row.Name,
			Payload:     row.Payload,
			OccurredAt:  row.OccurredAt,
			Aggregate:   row.Aggregate,
			Headers:     headers,
			State:       outboxClaimed,
			Attempts:    row.Attempts,
			NextAttempt: row.NextAttemptAt,
			ClaimedBy:   workerID,
			ClaimedAt:   now,
			LastError:   row.LastError,
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return claimed, err
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":   outboxSent,
		"sent_at": time.Now().UTC(),
	}).Error
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":           outboxFailed,
		"next_attempt_at": next,
		"last_error":      errMsg,
		"attempts":        gorm.Expr("attempts + 1"),
	}).Error
}

var (
	_ appoutbox.Outbox  = (*OutboxStore)(nil)
	_ infraoutbox.Queue = (*OutboxStore)(nil)
)
