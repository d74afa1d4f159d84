package repository

import (
	"context"

	"uk-requests/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRepository is the append-only request history ledger. It has no
// update or delete: rows disappear only with their request.
type HistoryRepository interface {
	Append(ctx context.Context, entry *model.RequestHistory) (uuid.UUID, error)
	ListFor(ctx context.Context, requestID uuid.UUID) ([]model.RequestHistory, error)
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, entry *model.RequestHistory) (uuid.UUID, error) {
	if err := GetDB(ctx, r.db).Omit("Changer").Create(entry).Error; err != nil {
		return uuid.Nil, err
	}
	return entry.ID, nil
}

// ListFor returns the ledger oldest first; equal timestamps keep insertion order.
func (r *historyRepository) ListFor(ctx context.Context, requestID uuid.UUID) ([]model.RequestHistory, error) {
	var entries []model.RequestHistory
	err := GetDB(ctx, r.db).
		Preload("Changer").
		Where("request_id = ?", requestID).
		Order("created_at ASC, seq ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
