package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
	"github.com/Leganyst/clinic-scheduling/internal/model"
)

type BlockedSlotRepository interface {
	// ListByDate: блокировки на одну календарную дату.
	ListByDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]model.BlockedSlot, error)
	// ListByRange: блокировки по датам from..to включительно.
	ListByRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]model.BlockedSlot, error)
	// ListPage: то же по страницам, вместе с общим числом блокировок в диапазоне.
	ListPage(ctx context.Context, providerID uuid.UUID, from, to time.Time, page calendar.PageRequest) ([]model.BlockedSlot, int64, error)
	Create(ctx context.Context, b *model.BlockedSlot) error
	Delete(ctx context.Context, providerID, id uuid.UUID) error
}

type GormBlockedSlotRepository struct {
	db *gorm.DB
}

func NewGormBlockedSlotRepository(db *gorm.DB) *GormBlockedSlotRepository {
	return &GormBlockedSlotRepository{db: db}
}

func (r *GormBlockedSlotRepository) ListByDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]model.BlockedSlot, error) {
	var blocks []model.BlockedSlot
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND date = ?", providerID, model.DateKey(date)).
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func (r *GormBlockedSlotRepository) ListByRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]model.BlockedSlot, error) {
	var blocks []model.BlockedSlot
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Where("date >= ? AND date <= ?", model.DateKey(from), model.DateKey(to)).
		Order("date ASC").
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func (r *GormBlockedSlotRepository) ListPage(ctx context.Context, providerID uuid.UUID, from, to time.Time, page calendar.PageRequest) ([]model.BlockedSlot, int64, error) {
	page = page.Normalize()
	q := r.db.WithContext(ctx).Model(&model.BlockedSlot{}).
		Where("provider_id = ?", providerID).
		Where("date >= ? AND date <= ?", model.DateKey(from), model.DateKey(to))

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var blocks []model.BlockedSlot
	err := q.Order("date ASC").Order("start_time ASC").Order("id ASC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&blocks).Error
	if err != nil {
		return nil, 0, err
	}
	return blocks, total, nil
}

func (r *GormBlockedSlotRepository) Create(ctx context.Context, b *model.BlockedSlot) error {
	b.Date = model.DateKey(time.Time(b.Date))
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *GormBlockedSlotRepository) Delete(ctx context.Context, providerID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND provider_id = ?", id, providerID).
		Delete(&model.BlockedSlot{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
