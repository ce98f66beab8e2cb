package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestErrorKinds(t *testing.T) {
	err := slotUnavailable("provider already has an appointment at %s", "10:00")
	assert.True(t, errors.Is(err, ErrSlotUnavailable))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "slot_unavailable: provider already has an appointment at 10:00", err.Error())
	assert.Equal(t, "provider already has an appointment at 10:00", MessageOf(err))

	wrapped := fmt.Errorf("booking: %w", err)
	assert.Equal(t, KindSlotUnavailable, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
}

func TestStorageErr(t *testing.T) {
	assert.Nil(t, storageErr(nil, "x"))

	nf := storageErr(gorm.ErrRecordNotFound, "appointment 42")
	assert.Equal(t, KindNotFound, KindOf(nf))
	assert.Equal(t, "appointment 42 not found", MessageOf(nf))
	assert.True(t, errors.Is(nf, gorm.ErrRecordNotFound))

	assert.Equal(t, KindSlotUnavailable, KindOf(storageErr(gorm.ErrDuplicatedKey, "create")))
	assert.Equal(t, KindSlotUnavailable, KindOf(storageErr(errors.New("UNIQUE constraint failed: appointments.provider_id"), "create")))

	domain := invalidTransition("cannot end session")
	assert.Same(t, domain, storageErr(domain, "end"))

	internal := storageErr(errors.New("connection reset"), "list appointments")
	assert.Equal(t, KindInternal, KindOf(internal))
}
