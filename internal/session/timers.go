package session

import (
	"context"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/domain"
)

// Таймеры комнат не трогают состояние напрямую: каждая секунда приходит в
// общую очередь команд как tick, поэтому extend/endAll и истечение времени
// упорядочены одной точкой сериализации.

func (s *Session) startTimer(id domain.RoomID) {
	if s.cfg.TickInterval <= 0 {
		return
	}
	if _, ok := s.timers[id]; ok {
		return
	}
	stop := make(chan struct{})
	s.timers[id] = stop

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.cfg.TickInterval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-s.done:
				return
			case <-t.C:
			}
			c := command{ctx: context.Background(), op: "tick", done: make(chan error, 1), fn: func(tx *txn) error {
				s.tickLocked(tx, id)
				return nil
			}}
			select {
			case s.cmds <- c:
			case <-stop:
				return
			case <-s.done:
				return
			}
		}
	}()
}

func (s *Session) stopTimer(id domain.RoomID) {
	if stop, ok := s.timers[id]; ok {
		close(stop)
		delete(s.timers, id)
	}
}

func (s *Session) scheduleFinalize(id domain.RoomID) {
	if _, ok := s.graces[id]; ok {
		return
	}
	s.graces[id] = time.AfterFunc(s.cfg.EndingGrace, func() {
		s.submit("finalize", func(tx *txn) error {
			s.finalizeLocked(tx, id)
			return nil
		})
	})
}
