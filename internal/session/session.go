// Package session is the single entry point for one live event. Every mutation
// is a command executed by one goroutine in arrival order; removals jump the
// line. Queries read a consistent snapshot under a read lock and never wait for
// the command stream.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/presenter"
	"github.com/cwrk-planet/breakout-service/internal/registry"
	"github.com/cwrk-planet/breakout-service/internal/rooms"
	"github.com/cwrk-planet/breakout-service/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cwrk-planet/breakout-service/internal/session"

type Config struct {
	// TickInterval is the period of a room countdown second; 0 leaves ticking to Tick.
	TickInterval time.Duration
	// EndingGrace delays Ending -> Merged; 0 merges in the same command.
	EndingGrace   time.Duration
	Rooms         rooms.Config
	MaxPresenters int
	AllowSelfMove bool
	CommandBuffer int
}

func DefaultConfig() Config {
	return Config{
		TickInterval:  time.Second,
		Rooms:         rooms.DefaultConfig(),
		CommandBuffer: 256,
	}
}

// Publisher receives committed events. Publish must not block.
type Publisher interface {
	Publish(ev domain.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(domain.Event) {}

type Session struct {
	id     string
	cfg    Config
	pub    Publisher
	log    *slog.Logger
	tracer trace.Tracer

	mu    sync.RWMutex
	reg   *registry.Registry
	rooms *rooms.Manager
	queue *presenter.Queue
	seq   uint64

	cmds    chan command
	urgent  chan command
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	// owned by the run goroutine
	timers map[domain.RoomID]chan struct{}
	graces map[domain.RoomID]*time.Timer
}

type command struct {
	ctx  context.Context
	op   string
	fn   func(tx *txn) error
	done chan error
}

// txn collects the events of one command; they are numbered and published
// only if the command succeeds.
type txn struct {
	events []domain.Event
}

func (t *txn) emit(ev domain.Event) {
	t.events = append(t.events, ev)
}

func New(id string, cfg Config, pub Publisher, log *slog.Logger) *Session {
	if pub == nil {
		pub = nopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = 256
	}
	reg := registry.New()
	s := &Session{
		id:      id,
		cfg:     cfg,
		pub:     pub,
		log:     log.With(logger.EventID(id)),
		tracer:  otel.Tracer(tracerName),
		reg:     reg,
		rooms:   rooms.NewManager(cfg.Rooms, reg),
		queue:   presenter.NewQueue(cfg.MaxPresenters),
		cmds:    make(chan command, cfg.CommandBuffer),
		urgent:  make(chan command, cfg.CommandBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		timers:  make(map[domain.RoomID]chan struct{}),
		graces:  make(map[domain.RoomID]*time.Timer),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }

// Close stops the command loop and every room timer. Pending commands fail
// with ErrSessionClosed.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		<-s.stopped
		for id, t := range s.graces {
			t.Stop()
			delete(s.graces, id)
		}
		s.wg.Wait()
	})
}

func (s *Session) run() {
	defer s.wg.Done()
	defer close(s.stopped)
	for {
		select {
		case c := <-s.urgent:
			s.exec(c)
			continue
		default:
		}
		select {
		case c := <-s.urgent:
			s.exec(c)
		case c := <-s.cmds:
			s.exec(c)
		case <-s.done:
			return
		}
	}
}

// do submits fn and waits for its result.
func (s *Session) do(ctx context.Context, op string, urgent bool, fn func(tx *txn) error) error {
	ctx, span := s.tracer.Start(ctx, "session."+op,
		trace.WithAttributes(attribute.String("event_id", s.id)))
	defer span.End()

	c := command{ctx: ctx, op: op, fn: fn, done: make(chan error, 1)}
	q := s.cmds
	if urgent {
		q = s.urgent
	}
	select {
	case <-s.done:
		return fmt.Errorf("event %s: %w", s.id, domain.ErrSessionClosed)
	case <-ctx.Done():
		return ctx.Err()
	case q <- c:
	}

	var err error
	select {
	case err = <-c.done:
	case <-s.stopped:
		select {
		case err = <-c.done:
		default:
			err = fmt.Errorf("event %s: %w", s.id, domain.ErrSessionClosed)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
	}
	return err
}

// submit enqueues an internal command without waiting; used by timers.
func (s *Session) submit(op string, fn func(tx *txn) error) bool {
	c := command{ctx: context.Background(), op: op, fn: fn, done: make(chan error, 1)}
	select {
	case s.cmds <- c:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) exec(c command) {
	start := time.Now()
	tx := &txn{}
	err := s.apply(c, tx)

	if err == nil {
		for _, ev := range tx.events {
			s.pub.Publish(ev)
		}
	}
	c.done <- err

	attrs := append(logger.AttrsFromCtx(c.ctx), slog.String("op", c.op), slog.Duration("took", time.Since(start)))
	switch {
	case err == nil:
		s.log.LogAttrs(c.ctx, slog.LevelDebug, "command applied", attrs...)
	case domain.KindOf(err) == domain.KindInternal:
		s.log.LogAttrs(c.ctx, slog.LevelError, "command failed", append(attrs, slog.Any("err", err))...)
	default:
		s.log.LogAttrs(c.ctx, slog.LevelWarn, "command rejected", append(attrs, slog.Any("err", err))...)
	}
}

func (s *Session) apply(c command, tx *txn) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// паника посреди команды не должна оставить полусделанное состояние
	reg := s.reg.Clone()
	rm, q := s.rooms.CloneWith(reg), s.queue.Clone()
	defer func() {
		if r := recover(); r != nil {
			s.reg, s.rooms, s.queue = reg, rm, q
			tx.events = nil
			err = fmt.Errorf("%s: panic: %v", c.op, r)
		}
	}()
	if err := c.fn(tx); err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range tx.events {
		s.seq++
		ev := &tx.events[i]
		ev.ID = uuid.NewString()
		ev.SessionID = s.id
		ev.Seq = s.seq
		ev.At = now
	}
	return nil
}
