package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/clinic-scheduling/internal/model"
)

type AvailabilityRuleRepository interface {
	// ListByProvider: все правила провайдера, по дню недели и времени начала.
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]model.AvailabilityRule, error)
	// ListForWeekday: только доступные (is_available) правила на день недели.
	ListForWeekday(ctx context.Context, providerID uuid.UUID, day time.Weekday) ([]model.AvailabilityRule, error)
	Create(ctx context.Context, rule *model.AvailabilityRule) error
	Delete(ctx context.Context, providerID, ruleID uuid.UUID) error
	DeleteAllByProvider(ctx context.Context, providerID uuid.UUID) error
}

type GormAvailabilityRuleRepository struct {
	db *gorm.DB
}

func NewGormAvailabilityRuleRepository(db *gorm.DB) *GormAvailabilityRuleRepository {
	return &GormAvailabilityRuleRepository{db: db}
}

func (r *GormAvailabilityRuleRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]model.AvailabilityRule, error) {
	var rules []model.AvailabilityRule
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("day_of_week ASC, start_time ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *GormAvailabilityRuleRepository) ListForWeekday(ctx context.Context, providerID uuid.UUID, day time.Weekday) ([]model.AvailabilityRule, error) {
	var rules []model.AvailabilityRule
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND day_of_week = ? AND is_available = ?", providerID, int(day), true).
		Order("start_time ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *GormAvailabilityRuleRepository) Create(ctx context.Context, rule *model.AvailabilityRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *GormAvailabilityRuleRepository) Delete(ctx context.Context, providerID, ruleID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND provider_id = ?", ruleID, providerID).
		Delete(&model.AvailabilityRule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormAvailabilityRuleRepository) DeleteAllByProvider(ctx context.Context, providerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Delete(&model.AvailabilityRule{}).Error
}
