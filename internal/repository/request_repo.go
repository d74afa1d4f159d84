package repository

import (
	"context"
	"fmt"
	"time"

	"uk-requests/internal/model"
	"uk-requests/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestFilter narrows List. Nil scopes mean unrestricted.
type RequestFilter struct {
	UserID    *uuid.UUID
	CompanyID *uuid.UUID
	Status    model.RequestStatus
	Category  model.RequestCategory
	Limit     int
}

type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Request, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Request, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, at time.Time) (bool, error)
	UpdateDetails(ctx context.Context, req *model.Request, expected model.RequestStatus) error
	List(ctx context.Context, filter RequestFilter) ([]model.Request, error)
	Delete(ctx context.Context, id uuid.UUID, expected model.RequestStatus) error
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(req).Error
}

// FindByID loads the request with its owner and the owner's house, which
// carries the serving company.
func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	if err := GetDB(ctx, r.db).Preload("User.House").First(&req, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

func orderedHistory(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, seq ASC")
}

func (r *requestRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	err := GetDB(ctx, r.db).
		Preload("User.House").
		Preload("History", orderedHistory).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// FindForUpdate takes a row lock held until the surrounding transaction ends.
func (r *requestRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// UpdateStatus is a compare-and-set on the status column.
func (r *requestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, at time.Time) (bool, error) {
	res := GetDB(ctx, r.db).
		Model(&model.Request{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateDetails writes the editable descriptive fields only, and only while
// the stored status is still expected. Status itself is never touched here.
func (r *requestRepository) UpdateDetails(ctx context.Context, req *model.Request, expected model.RequestStatus) error {
	res := GetDB(ctx, r.db).
		Model(&model.Request{}).
		Where("id = ? AND status = ?", req.ID, expected).
		Updates(map[string]interface{}{
			"title":       req.Title,
			"description": req.Description,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: request is no longer %s", workflow.ErrPersistenceConflict, expected)
	}
	return nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]model.Request, error) {
	var requests []model.Request

	db := GetDB(ctx, r.db)
	query := db.Preload("User.House")
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.CompanyID != nil {
		residents := db.Model(&model.User{}).
			Select("users.id").
			Joins("JOIN houses ON houses.id = users.house_id").
			Where("houses.company_id = ?", *filter.CompanyID)
		query = query.Where("user_id IN (?)", residents)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// Delete removes the request if its stored status is still expected; its
// history goes with it through the FK cascade.
func (r *requestRepository) Delete(ctx context.Context, id uuid.UUID, expected model.RequestStatus) error {
	res := GetDB(ctx, r.db).Delete(&model.Request{}, "id = ? AND status = ?", id, expected)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: request is no longer %s", workflow.ErrPersistenceConflict, expected)
	}
	return nil
}
