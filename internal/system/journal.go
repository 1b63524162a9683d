package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yardsim/yard/internal/core/event"
	coresys "github.com/yardsim/yard/internal/core/system"
	"github.com/yardsim/yard/internal/persist"
)

// JournalWriter stores task status transitions.
type JournalWriter interface {
	WriteTaskEvents(ctx context.Context, events []persist.TaskEvent) error
}

// JournalSystem buffers task status changes and writes them out every
// interval ticks. A failed write keeps the buffer for the next attempt.
// Phase 5 (Persist).
type JournalSystem struct {
	repo      JournalWriter
	log       *zap.Logger
	buf       []persist.TaskEvent
	tickCount int
	interval  int
	maxBuffer int
}

func NewJournalSystem(bus *event.Bus, repo JournalWriter, log *zap.Logger, intervalTicks int) *JournalSystem {
	if intervalTicks <= 0 {
		intervalTicks = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &JournalSystem{
		repo:      repo,
		log:       log,
		interval:  intervalTicks,
		maxBuffer: 100_000,
	}
	event.Subscribe(bus, func(ev event.TaskStatusChanged) {
		s.buf = append(s.buf, persist.TaskEvent{
			TaskID:     ev.TaskID,
			ActorID:    ev.ActorID,
			Kind:       string(ev.Kind),
			FromStatus: string(ev.From),
			ToStatus:   string(ev.To),
			SimTime:    ev.At,
			Tick:       int64(ev.Tick),
		})
	})
	return s
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(ctx)
}

// Flush writes everything buffered. Called on shutdown as well.
func (s *JournalSystem) Flush(ctx context.Context) {
	if len(s.buf) == 0 {
		return
	}
	if err := s.repo.WriteTaskEvents(ctx, s.buf); err != nil {
		s.log.Error("task journal write failed", zap.Int("pending", len(s.buf)), zap.Error(err))
		if len(s.buf) > s.maxBuffer {
			dropped := len(s.buf) - s.maxBuffer
			s.buf = append(s.buf[:0], s.buf[dropped:]...)
			s.log.Warn("task journal buffer full, dropped oldest", zap.Int("dropped", dropped))
		}
		return
	}
	s.log.Debug("task journal flushed", zap.Int("events", len(s.buf)))
	s.buf = s.buf[:0]
}

// Pending returns the number of buffered events.
func (s *JournalSystem) Pending() int {
	return len(s.buf)
}
