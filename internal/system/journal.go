package system

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/s2go/demos/internal/core/event"
	coresys "github.com/s2go/demos/internal/core/system"
	"github.com/s2go/demos/internal/persist"
)

// EventWriter stores a batch of journal rows for a run.
type EventWriter interface {
	WriteEvents(ctx context.Context, runID int64, events []persist.BodyEvent) error
}

// JournalSystem buffers body events from the bus and writes them every
// interval frames. Phase 5 (Persist).
type JournalSystem struct {
	writer   EventWriter
	runID    int64
	interval int
	timeout  time.Duration
	log      *zap.Logger

	buf       []persist.BodyEvent
	tickCount int
	written   int
	failures  int
}

func NewJournalSystem(bus *event.Bus, writer EventWriter, runID int64, intervalFrames int, log *zap.Logger) *JournalSystem {
	s := &JournalSystem{
		writer:   writer,
		runID:    runID,
		interval: max(intervalFrames, 1),
		timeout:  10 * time.Second,
		log:      log,
	}
	event.Subscribe(bus, func(e event.BodyCreated) {
		s.buf = append(s.buf, persist.BodyEvent{
			Frame: e.Frame, Kind: persist.KindCreated, Handle: uint64(e.Handle), Tag: e.Tag, Particles: e.Particles,
		})
	})
	event.Subscribe(bus, func(e event.BodyDestroyed) {
		s.buf = append(s.buf, persist.BodyEvent{
			Frame: e.Frame, Kind: persist.KindDestroyed, Handle: uint64(e.Handle), Tag: e.Tag,
		})
	})
	event.Subscribe(bus, func(e event.BodyEmptied) {
		s.buf = append(s.buf, persist.BodyEvent{
			Frame: e.Frame, Kind: persist.KindEmptied, Handle: uint64(e.Handle), Cause: string(e.Cause),
		})
	})
	return s
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(_ int) error {
	s.tickCount++
	if s.tickCount < s.interval {
		return nil
	}
	s.tickCount = 0
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	// A failed write is logged by Flush and retried next interval; it does
	// not fail the frame.
	_ = s.Flush(ctx)
	return nil
}

// Flush writes every buffered event. On failure the events stay buffered and
// are retried by the next flush.
func (s *JournalSystem) Flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}
	if err := s.writer.WriteEvents(ctx, s.runID, s.buf); err != nil {
		s.failures++
		s.log.Error("journal write failed", zap.Int("buffered", len(s.buf)), zap.Error(err))
		return fmt.Errorf("journal: %w", err)
	}
	s.written += len(s.buf)
	s.buf = s.buf[:0]
	return nil
}

// Buffered is the number of events waiting to be written.
func (s *JournalSystem) Buffered() int { return len(s.buf) }

// Written is the number of events stored so far.
func (s *JournalSystem) Written() int { return s.written }

// Failures is the number of writes that failed.
func (s *JournalSystem) Failures() int { return s.failures }
