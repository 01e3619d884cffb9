package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
)

const maxStoredErrorLen = 1024

var errTxRequired = errors.New("transaction required")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Create(&event).Error
}

// ExistsTx reports whether an event of this type was already queued for the aggregate.
func (r *Repository) ExistsTx(tx *gorm.DB, eventType enums.OutboxEventType, aggregateID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}
	var count int64
	err := tx.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, aggregateID).
		Count(&count).Error
	return count > 0, err
}

// FetchUnpublishedForPublish locks the oldest rows still owed to the topic. On
// Postgres, rows another publisher holds are skipped rather than waited on.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	query := tx.Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at, id").
		Limit(limit)
	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	return rows, query.Find(&rows).Error
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).
		Update("published_at", time.Now().UTC()).Error
}

// MarkFailedTx counts one failed attempt and keeps the row in the queue.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    storedError(cause),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// ParkTx copies the row to outbox_dead_letters and pins its attempt count at
// terminalAttempts so FetchUnpublishedForPublish never returns it again.
func (r *Repository) ParkTx(tx *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, cause error, terminalAttempts int) error {
	if tx == nil {
		return errTxRequired
	}
	if !reason.IsValid() {
		return errors.New("invalid dead letter reason " + string(reason))
	}
	letter := models.OutboxDeadLetter{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		Reason:        reason,
		LastError:     storedError(cause),
		Attempts:      event.AttemptCount,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&letter).Error; err != nil {
		return err
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", event.ID).
		Updates(map[string]any{
			"attempt_count": terminalAttempts,
			"last_error":    storedError(cause),
		}).Error
}

// DeadLettersFor lists parked events for one order or invoice, newest first.
func (r *Repository) DeadLettersFor(ctx context.Context, aggregateID uuid.UUID) ([]models.OutboxDeadLetter, error) {
	var rows []models.OutboxDeadLetter
	err := r.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("parked_at DESC").
		Find(&rows).Error
	return rows, err
}

// PrunePublished deletes at most batch published rows older than cutoff, oldest
// first, and returns how many went.
func (r *Repository) PrunePublished(ctx context.Context, cutoff time.Time, batch int) (int64, error) {
	ids := r.db.Model(&models.OutboxEvent{}).
		Select("id").
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Order("published_at").
		Limit(batch)
	res := r.db.WithContext(ctx).Where("id IN (?)", ids).Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// PruneDeadLetters deletes at most batch dead letters parked before cutoff.
func (r *Repository) PruneDeadLetters(ctx context.Context, cutoff time.Time, batch int) (int64, error) {
	ids := r.db.Model(&models.OutboxDeadLetter{}).
		Select("id").
		Where("parked_at < ?", cutoff).
		Order("parked_at").
		Limit(batch)
	res := r.db.WithContext(ctx).Where("id IN (?)", ids).Delete(&models.OutboxDeadLetter{})
	return res.RowsAffected, res.Error
}

func storedError(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > maxStoredErrorLen {
		msg = msg[:maxStoredErrorLen]
	}
	return &msg
}
