// internal/service/scheduler.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
)

// WakeHandler reacts to one fired wake.
type WakeHandler func(ctx context.Context, wake model.ScheduledWake)

// Scheduler is the durable timer: wakes live in Postgres and a poller fires
// whatever is due, so a wake registered before a restart still fires after
// it — immediately, if its time passed while the process was down.
type Scheduler struct {
	Wakes    repository.WakeRepositoryInterface
	Interval time.Duration
	Log      *zap.SugaredLogger

	handlers map[string]WakeHandler
}

// Handle registers the handler for a wake kind. Must be called before Run.
func (s *Scheduler) Handle(kind string, h WakeHandler) {
	if s.handlers == nil {
		s.handlers = make(map[string]WakeHandler)
	}
	s.handlers[kind] = h
}

// Register schedules (or reschedules) a wake for an absolute future time.
func (s *Scheduler) Register(key model.WakeKey, fireAt time.Time, payload string) error {
	wake := &model.ScheduledWake{Key: key, FireAt: fireAt, Payload: payload}
	if err := s.Wakes.Register(wake); err != nil {
		return err
	}
	s.Log.Debugw("wake registered", "kind", key.Kind, "fire_at", fireAt)
	return nil
}

// Cancel removes a pending wake. Canceling a missing key is a no-op.
func (s *Scheduler) Cancel(key model.WakeKey) error {
	return s.Wakes.Cancel(key)
}

// Run polls for due wakes until the context ends. Each due wake is deleted
// before its handler runs, so a handler crash cannot make a wake fire twice;
// handlers that need another round re-register explicitly.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fireDue(ctx)
		}
	}
}

func (s *Scheduler) fireDue(ctx context.Context) {
	due, err := s.Wakes.Due(time.Now())
	if err != nil {
		s.Log.Warnw("could not query due wakes", "error", err)
		return
	}
	for _, wake := range due {
		handler, ok := s.handlers[wake.Key.Kind]
		if !ok {
			s.Log.Warnw("no handler for wake kind, dropping", "kind", wake.Key.Kind)
			_ = s.Wakes.Delete(wake.ID)
			continue
		}
		if err := s.Wakes.Delete(wake.ID); err != nil {
			s.Log.Warnw("could not consume wake", "id", wake.ID, "error", err)
			continue
		}
		s.Log.Infow("wake fired", "kind", wake.Key.Kind, "phone", wake.Key.Phone, "step", wake.Key.Step)
		handler(ctx, wake)
	}
}
