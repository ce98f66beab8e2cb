package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/repository"
)

// AvailabilityRuleInput: правило недели; время суток задаётся смещением от полуночи в поясе провайдера.
type AvailabilityRuleInput struct {
	DayOfWeek              int
	StartTime              time.Duration
	EndTime                time.Duration
	IsAvailable            bool
	DefaultDurationMinutes int
}

func (in AvailabilityRuleInput) validate() error {
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return validation("day_of_week must be in 0..6, got %d", in.DayOfWeek)
	}
	if in.StartTime < 0 || in.EndTime > 24*time.Hour || in.StartTime >= in.EndTime {
		return validation("invalid rule hours %s-%s", calendar.FormatClock(in.StartTime), calendar.FormatClock(in.EndTime))
	}
	return validateDuration(in.DefaultDurationMinutes)
}

func (in AvailabilityRuleInput) toModel(providerID uuid.UUID) model.AvailabilityRule {
	return model.AvailabilityRule{
		ProviderID:             providerID,
		DayOfWeek:              in.DayOfWeek,
		StartTime:              datatypes.Time(in.StartTime),
		EndTime:                datatypes.Time(in.EndTime),
		IsAvailable:            in.IsAvailable,
		DefaultDurationMinutes: in.DefaultDurationMinutes,
	}
}

// BlockedSlotInput: блокировка на дату; без Start/End блокируются целые сутки.
type BlockedSlotInput struct {
	Date      time.Time
	StartTime *time.Duration
	EndTime   *time.Duration
	Reason    string
}

func (in BlockedSlotInput) validate() error {
	if in.Date.IsZero() {
		return validation("date is required")
	}
	if (in.StartTime == nil) != (in.EndTime == nil) {
		return validation("start_time and end_time must be set together")
	}
	if in.StartTime != nil && (*in.StartTime < 0 || *in.EndTime > 24*time.Hour || *in.StartTime >= *in.EndTime) {
		return validation("invalid blocked hours %s-%s", calendar.FormatClock(*in.StartTime), calendar.FormatClock(*in.EndTime))
	}
	return nil
}

func (s *Scheduler) provider(ctx context.Context, store repository.Store, providerID uuid.UUID) (*model.Provider, error) {
	p, err := store.Providers().GetByID(ctx, providerID)
	if err != nil {
		return nil, storageErr(err, "provider "+providerID.String())
	}
	return p, nil
}

func (s *Scheduler) ListAvailabilityRules(ctx context.Context, providerID uuid.UUID) ([]model.AvailabilityRule, error) {
	if _, err := s.provider(ctx, s.store, providerID); err != nil {
		return nil, err
	}
	rules, err := s.store.AvailabilityRules().ListByProvider(ctx, providerID)
	if err != nil {
		return nil, storageErr(err, "list availability rules")
	}
	return rules, nil
}

// ReplaceAvailabilityRules заменяет недельный шаблон целиком в одной транзакции.
func (s *Scheduler) ReplaceAvailabilityRules(ctx context.Context, providerID uuid.UUID, in []AvailabilityRuleInput) ([]model.AvailabilityRule, error) {
	for i, r := range in {
		if err := r.validate(); err != nil {
			return nil, validation("rule %d: %s", i, MessageOf(err))
		}
	}

	var rules []model.AvailabilityRule
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := s.provider(ctx, tx, providerID); err != nil {
			return err
		}
		if err := tx.AvailabilityRules().DeleteAllByProvider(ctx, providerID); err != nil {
			return err
		}
		rules = make([]model.AvailabilityRule, 0, len(in))
		for _, r := range in {
			rule := r.toModel(providerID)
			if err := tx.AvailabilityRules().Create(ctx, &rule); err != nil {
				return err
			}
			rules = append(rules, rule)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err, "replace availability rules")
	}

	s.invalidateSlots(ctx, providerID)
	return rules, nil
}

func (s *Scheduler) AddAvailabilityRule(ctx context.Context, providerID uuid.UUID, in AvailabilityRuleInput) (*model.AvailabilityRule, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.provider(ctx, s.store, providerID); err != nil {
		return nil, err
	}

	rule := in.toModel(providerID)
	if err := s.store.AvailabilityRules().Create(ctx, &rule); err != nil {
		return nil, storageErr(err, "create availability rule")
	}
	s.invalidateSlots(ctx, providerID)
	return &rule, nil
}

func (s *Scheduler) DeleteAvailabilityRule(ctx context.Context, providerID, ruleID uuid.UUID) error {
	if err := s.store.AvailabilityRules().Delete(ctx, providerID, ruleID); err != nil {
		return storageErr(err, "availability rule "+ruleID.String())
	}
	s.invalidateSlots(ctx, providerID)
	return nil
}

func (s *Scheduler) AddBlockedSlot(ctx context.Context, providerID uuid.UUID, in BlockedSlotInput) (*model.BlockedSlot, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.provider(ctx, s.store, providerID); err != nil {
		return nil, err
	}

	b := model.BlockedSlot{
		ProviderID: providerID,
		Date:       model.DateKey(in.Date),
		Reason:     in.Reason,
	}
	if in.StartTime != nil {
		start, end := datatypes.Time(*in.StartTime), datatypes.Time(*in.EndTime)
		b.StartTime, b.EndTime = &start, &end
	}
	if err := s.store.BlockedSlots().Create(ctx, &b); err != nil {
		return nil, storageErr(err, "create blocked slot")
	}
	s.invalidateSlots(ctx, providerID)
	return &b, nil
}

func (s *Scheduler) DeleteBlockedSlot(ctx context.Context, providerID, id uuid.UUID) error {
	if err := s.store.BlockedSlots().Delete(ctx, providerID, id); err != nil {
		return storageErr(err, "blocked slot "+id.String())
	}
	s.invalidateSlots(ctx, providerID)
	return nil
}

// ListBlockedSlots: блокировки по датам from..to включительно, постранично.
func (s *Scheduler) ListBlockedSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time, page calendar.PageRequest) (calendar.Page[model.BlockedSlot], error) {
	if to.Before(from) {
		return calendar.Page[model.BlockedSlot]{}, validation("to must not be before from")
	}
	if _, err := s.provider(ctx, s.store, providerID); err != nil {
		return calendar.Page[model.BlockedSlot]{}, err
	}
	blocks, total, err := s.store.BlockedSlots().ListPage(ctx, providerID, from, to, page)
	if err != nil {
		return calendar.Page[model.BlockedSlot]{}, storageErr(err, "list blocked slots")
	}
	return calendar.NewPage(blocks, page, int(total)), nil
}
