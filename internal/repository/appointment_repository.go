package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/clinic-scheduling/internal/model"
)

// AppointmentFilter: параметры выборки записей. Пустые поля не фильтруют.
type AppointmentFilter struct {
	PatientID  *uuid.UUID
	ProviderID *uuid.UUID
	SeriesID   *uuid.UUID
	Status     *model.AppointmentStatus
	From       *time.Time // start_time >= From
	To         *time.Time // start_time < To
	Limit      int
	Offset     int
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *model.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// Save перезаписывает все поля записи.
	Save(ctx context.Context, a *model.Appointment) error
	// List возвращает страницу и общее количество по фильтру, по времени начала.
	List(ctx context.Context, f AppointmentFilter) ([]model.Appointment, int64, error)
	// ListBusy: неотменённые записи провайдера, пересекающие [from, to).
	// Записи из exclude не учитываются (перенос самой себя, сдвиг серии).
	ListBusy(ctx context.Context, providerID uuid.UUID, from, to time.Time, exclude ...uuid.UUID) ([]model.Appointment, error)
	// ListBySeries: участники серии по recurrence_position.
	ListBySeries(ctx context.Context, seriesID uuid.UUID) ([]model.Appointment, error)
	// ListActiveSessionsEndedBefore: записи в active_session, чьё плановое окончание раньше cutoff.
	ListActiveSessionsEndedBefore(ctx context.Context, cutoff time.Time) ([]model.Appointment, error)
}

type GormAppointmentRepository struct {
	db *gorm.DB
}

func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

func (r *GormAppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	a.StartTime = a.StartTime.UTC()
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *GormAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var a model.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAppointmentRepository) Save(ctx context.Context, a *model.Appointment) error {
	a.StartTime = a.StartTime.UTC()
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *GormAppointmentRepository) List(ctx context.Context, f AppointmentFilter) ([]model.Appointment, int64, error) {
	var (
		items []model.Appointment
		total int64
	)

	q := r.db.WithContext(ctx).Model(&model.Appointment{})
	if f.PatientID != nil {
		q = q.Where("patient_id = ?", *f.PatientID)
	}
	if f.ProviderID != nil {
		q = q.Where("provider_id = ?", *f.ProviderID)
	}
	if f.SeriesID != nil {
		q = q.Where("recurring_series_id = ?", *f.SeriesID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.From != nil {
		q = q.Where("start_time >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("start_time < ?", f.To.UTC())
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	if err := q.Order("start_time ASC").Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *GormAppointmentRepository) ListBusy(
	ctx context.Context,
	providerID uuid.UUID,
	from, to time.Time,
	exclude ...uuid.UUID,
) ([]model.Appointment, error) {
	var items []model.Appointment
	q := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Where("status <> ?", model.AppointmentStatusCancelled).
		// полуоткрытые интервалы: касание концами не конфликт
		Where("start_time < ? AND end_time > ?", to.UTC(), from.UTC())
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	if err := q.Order("start_time ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormAppointmentRepository) ListBySeries(ctx context.Context, seriesID uuid.UUID) ([]model.Appointment, error) {
	var items []model.Appointment
	err := r.db.WithContext(ctx).
		Where("recurring_series_id = ?", seriesID).
		Order("recurrence_position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormAppointmentRepository) ListActiveSessionsEndedBefore(ctx context.Context, cutoff time.Time) ([]model.Appointment, error) {
	var items []model.Appointment
	err := r.db.WithContext(ctx).
		Where("meeting_phase = ?", model.MeetingPhaseActiveSession).
		Where("end_time < ?", cutoff.UTC()).
		Order("end_time ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
