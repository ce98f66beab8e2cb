package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/clinic-scheduling/internal/model"
)

type ProviderRepository interface {
	Create(ctx context.Context, p *model.Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error)
	// FindActiveByID: провайдер активен и его пользователь тоже.
	FindActiveByID(ctx context.Context, id uuid.UUID) (*model.Provider, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Provider, error)
}

type GormProviderRepository struct {
	db *gorm.DB
}

func NewGormProviderRepository(db *gorm.DB) *GormProviderRepository {
	return &GormProviderRepository{db: db}
}

func (r *GormProviderRepository) Create(ctx context.Context, p *model.Provider) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *GormProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	var p model.Provider
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProviderRepository) FindActiveByID(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	var p model.Provider
	err := r.db.WithContext(ctx).
		Joins("JOIN users ON users.id = providers.user_id").
		Where("providers.id = ?", id).
		Where("providers.is_active = ? AND users.is_active = ?", true, true).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProviderRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Provider, error) {
	var p model.Provider
	if err := r.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
