package service

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/repository"
)

// GormAuditSink пишет аудит в таблицу events.
type GormAuditSink struct {
	events repository.EventRepository
}

func NewGormAuditSink(events repository.EventRepository) *GormAuditSink {
	return &GormAuditSink{events: events}
}

func (a *GormAuditSink) LogEvent(ctx context.Context, entry AuditEntry) error {
	oldValues, err := toJSON(entry.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	newValues, err := toJSON(entry.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}

	return a.events.Create(ctx, &model.Event{
		EventType:     entry.Action,
		UserID:        entry.ActorID,
		AppointmentID: entry.AppointmentID,
		Description:   entry.Description,
		OldValues:     oldValues,
		NewValues:     newValues,
	})
}

func toJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

type noopAudit struct{}

func (noopAudit) LogEvent(context.Context, AuditEntry) error { return nil }
