// Package sweeper по расписанию закрывает встречи, которые забыли завершить.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Expirer: операция ядра, которую выполняет задача. Реализуется *service.Scheduler.
type Expirer interface {
	ExpireStaleSessions(ctx context.Context, now time.Time, grace time.Duration) (int, error)
}

type Sweeper struct {
	cron    *cron.Cron
	expirer Expirer
	grace   time.Duration
	now     func() time.Time
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
}

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New регистрирует задачу по стандартному cron-выражению ("*/5 * * * *", "@every 1m").
// Пустое выражение отключает свипер, возвращается nil.
func New(schedule string, expirer Expirer, grace time.Duration, log zerolog.Logger, opts ...Option) (*Sweeper, error) {
	if schedule == "" {
		return nil, nil
	}
	s := &Sweeper{
		cron:    cron.New(),
		expirer: expirer,
		grace:   grace,
		now:     time.Now,
		log:     log.With().Str("component", "session_sweeper").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("parse sweeper schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce выполняет один проход. Пересекающиеся запуски пропускаются.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Debug().Msg("previous sweep still running, skip")
		return 0
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ended, err := s.expirer.ExpireStaleSessions(ctx, s.now(), s.grace)
	if err != nil {
		s.log.Error().Err(err).Msg("expire stale sessions")
		return ended
	}
	if ended > 0 {
		s.log.Info().Int("ended", ended).Msg("stale sessions ended")
	}
	return ended
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop останавливает планировщик и ждёт завершения текущего прохода.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
