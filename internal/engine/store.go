package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
	"crypto_dash/internal/infra"

	jsoniter "github.com/json-iterator/go"
)

// ErrStoreStopped is returned by Dispatch once Run has returned.
var ErrStoreStopped = errors.New("store stopped")

// Processed describes one reduced action.
type Processed struct {
	Seq    uint64       `json:"seq"`
	At     time.Time    `json:"at"`
	Action event.Action `json:"-"`
}

// Listener observes every reduced action. It runs inside the store loop
// and MUST NOT block or dispatch synchronously.
type Listener interface {
	OnAction(p Processed, s domain.State)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(p Processed, s domain.State)

func (f ListenerFunc) OnAction(p Processed, s domain.State) { f(p, s) }

// Journal records reduced actions in order.
type Journal interface {
	Append(ctx context.Context, seq uint64, a event.Action) error
}

type result struct {
	seq   uint64 // 0 when the action was dropped
	state domain.State
}

type request struct {
	action event.Action
	valid  func() bool  // evaluated in the loop; false drops the action
	done   chan result // optional; receives the outcome
}

// Store owns the dashboard state. A single goroutine (Run) applies actions
// strictly in the order they entered the inbox.
type Store struct {
	inbox   chan request
	stopped chan struct{}
	once    sync.Once

	mu      sync.RWMutex // guards state and nextSeq for external reads
	state   domain.State
	nextSeq uint64

	lmu       sync.RWMutex
	listeners map[uint64]Listener
	order     []uint64 // subscription order
	nextSub   uint64

	journal Journal
	metrics *infra.Metrics
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithJournal records every reduced action to j.
func WithJournal(j Journal) Option { return func(s *Store) { s.journal = j } }

// WithMetrics reports processing counters to m.
func WithMetrics(m *infra.Metrics) Option { return func(s *Store) { s.metrics = m } }

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithInitialState starts the store from st instead of domain.InitialState.
func WithInitialState(st domain.State) Option { return func(s *Store) { s.state = st } }

// WithLastSeq continues numbering after seq, e.g. when resuming a journal.
func WithLastSeq(seq uint64) Option { return func(s *Store) { s.nextSeq = seq + 1 } }

// NewStore creates a store with the given inbox capacity.
func NewStore(inboxSize int, opts ...Option) *Store {
	s := &Store{
		inbox:     make(chan request, inboxSize),
		stopped:   make(chan struct{}),
		state:     domain.InitialState(),
		nextSeq:   1,
		listeners: make(map[uint64]Listener),
		logger:    slog.Default().With("module", "store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers l for all subsequently reduced actions and returns a
// function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.lmu.Lock()
	s.nextSub++
	id := s.nextSub
	s.listeners[id] = l
	s.order = append(s.order, id)
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
		for i, cur := range s.order {
			if cur == id {
				s.order = append(s.order[:i:i], s.order[i+1:]...)
				return
			}
		}
	}
}

// Dispatch enqueues a for reduction.
func (s *Store) Dispatch(ctx context.Context, a event.Action) error {
	return s.enqueue(ctx, request{action: a})
}

// DispatchGuarded enqueues a and lets valid veto it right before reduction.
// Reactions use it so a superseded result never reaches the reducer.
func (s *Store) DispatchGuarded(ctx context.Context, a event.Action, valid func() bool) error {
	return s.enqueue(ctx, request{action: a, valid: valid})
}

// DispatchWait enqueues a and blocks until it has been reduced, returning
// the resulting state and the sequence number assigned to a.
func (s *Store) DispatchWait(ctx context.Context, a event.Action) (domain.State, uint64, error) {
	done := make(chan result, 1)
	if err := s.enqueue(ctx, request{action: a, done: done}); err != nil {
		return domain.State{}, 0, err
	}
	select {
	case r := <-done:
		return r.state, r.seq, nil
	case <-ctx.Done():
		return domain.State{}, 0, ctx.Err()
	case <-s.stopped:
		return domain.State{}, 0, ErrStoreStopped
	}
}

func (s *Store) enqueue(ctx context.Context, r request) error {
	if r.action == nil {
		return fmt.Errorf("dispatch: nil action")
	}
	select {
	case <-s.stopped:
		return ErrStoreStopped
	default:
	}
	select {
	case s.inbox <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStoreStopped
	}
}

// Run starts the main loop. This MUST be run in a single goroutine.
func (s *Store) Run(ctx context.Context) {
	s.logger.Info("Store started")
	defer s.once.Do(func() { close(s.stopped) })

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState("panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Store stopping...")
			return
		case r := <-s.inbox:
			s.process(ctx, r)
		}
	}
}

func (s *Store) process(ctx context.Context, r request) {
	actionType := string(r.action.ActionType())

	// 1. Stale check
	if r.valid != nil && !r.valid() {
		s.metrics.RecordDropped(actionType)
		s.logger.Debug("Dropped superseded action", slog.String("type", actionType))
		if r.done != nil {
			r.done <- result{state: s.State()}
		}
		return
	}

	start := time.Now()

	// 2. Reduce
	s.mu.Lock()
	seq := s.nextSeq
	next := Reduce(s.state, r.action)
	s.state = next
	s.nextSeq++
	s.mu.Unlock()

	// 3. Journal
	if s.journal != nil {
		if err := s.journal.Append(ctx, seq, r.action); err != nil {
			s.metrics.RecordJournalError()
			s.logger.Error("Journal append failed", slog.Uint64("seq", seq), slog.Any("error", err))
		}
	}

	// 4. Notify
	p := Processed{Seq: seq, At: start, Action: r.action}
	s.lmu.RLock()
	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.lmu.RUnlock()
	for _, l := range listeners {
		l.OnAction(p, next)
	}

	s.metrics.RecordAction(actionType, time.Since(start))
	if r.done != nil {
		r.done <- result{seq: seq, state: next}
	}
}

// State returns the current state (external read). Slices in the returned
// value are shared but never written again.
func (s *Store) State() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastSeq returns the sequence number of the most recently reduced action.
func (s *Store) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextSeq - 1
}

// Snapshot returns the current state together with the sequence number of
// the action that produced it.
func (s *Store) Snapshot() (domain.State, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.nextSeq - 1
}

// Replay folds actions through Reduce from the initial state.
func Replay(actions []event.Action) domain.State {
	st := domain.InitialState()
	for _, a := range actions {
		st = Reduce(st, a)
	}
	return st
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (s *Store) DumpState(filename string) {
	s.logger.Info("Dumping internal state...", slog.String("file", filename))

	s.mu.RLock()
	data := struct {
		NextSeq uint64       `json:"next_seq"`
		State   domain.State `json:"state"`
	}{
		NextSeq: s.nextSeq,
		State:   s.state,
	}
	s.mu.RUnlock()

	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(data, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		s.logger.Error("Failed to write state dump", slog.Any("error", err))
	}
}
