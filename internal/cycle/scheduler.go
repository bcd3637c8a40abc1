// Package cycle repeats the random selection on a fixed period until it is
// toggled off.
package cycle

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// DefaultPeriod is the delay between scheduled runs.
const DefaultPeriod = 5 * time.Second

// State of a Scheduler.
type State string

// Scheduler states.
const (
	Idle    State = "idle"
	Running State = "running"
)

// RunFunc is one selection run. Runs may overlap when one outlasts the period.
type RunFunc func(ctx context.Context)

// Scheduler is a two-state machine driven by Toggle. Running dispatches a run
// immediately and then one per period; Idle dispatches nothing.
type Scheduler struct {
	run      RunFunc
	period   time.Duration
	logger   *slog.Logger
	onChange []func(State)

	base   context.Context
	cancel context.CancelFunc

	// notifyMu is taken before mu and held until callbacks return, so
	// onChange sees transitions in the order they happened.
	notifyMu sync.Mutex

	mu     sync.Mutex
	state  State
	stop   chan struct{}
	done   chan struct{}
	runs   sync.WaitGroup
	closed bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPeriod sets the delay between runs. Non-positive values are ignored.
func WithPeriod(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.period = d
		}
	}
}

// WithLogger sets the logger used for run panics and state changes.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// OnChange registers fn to be called with the new state after every toggle.
// Calls are serialized and ordered; fn must not call Toggle or Close.
func OnChange(fn func(State)) Option {
	return func(s *Scheduler) { s.onChange = append(s.onChange, fn) }
}

// New returns an idle scheduler. Runs receive a context derived from ctx that
// is cancelled by Close, not by Toggle.
func New(ctx context.Context, run RunFunc, opts ...Option) *Scheduler {
	base, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		run:    run,
		period: DefaultPeriod,
		logger: slog.Default(),
		base:   base,
		cancel: cancel,
		state:  Idle,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Period returns the delay between runs.
func (s *Scheduler) Period() time.Duration { return s.period }

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Toggle flips the state once and returns the new state. Switching to Idle
// stops the timer before returning; runs already dispatched finish on their own.
// A closed scheduler stays Idle.
func (s *Scheduler) Toggle() State {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	var next State
	switch {
	case s.closed:
		next = Idle
	case s.state == Idle:
		s.start()
		next = Running
	default:
		s.halt()
		next = Idle
	}
	changed := next != s.state
	s.state = next
	s.mu.Unlock()

	if changed {
		s.logger.Info("cycle: state changed", slog.String("state", string(next)), slog.Duration("period", s.period))
		for _, fn := range s.onChange {
			fn(next)
		}
	}
	return next
}

// Close stops the timer, cancels the run context and waits for in-flight runs.
func (s *Scheduler) Close() {
	s.notifyMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.notifyMu.Unlock()
		return
	}
	s.closed = true
	wasRunning := s.state == Running
	if wasRunning {
		s.halt()
		s.state = Idle
	}
	s.mu.Unlock()

	if wasRunning {
		for _, fn := range s.onChange {
			fn(Idle)
		}
	}
	s.notifyMu.Unlock()
	s.cancel()
	s.runs.Wait()
}

// Wait blocks until every dispatched run has returned.
func (s *Scheduler) Wait() { s.runs.Wait() }

// start must be called with mu held.
func (s *Scheduler) start() {
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	s.dispatch()
	go s.loop(stop, done)
}

// halt must be called with mu held. It returns after the ticker goroutine has
// exited, so no run is dispatched once it returns.
func (s *Scheduler) halt() {
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil
}

func (s *Scheduler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-s.base.Done():
			return
		case <-ticker.C:
			// A tick racing with stop must not dispatch.
			select {
			case <-stop:
				return
			default:
			}
			s.dispatch()
		}
	}
}

func (s *Scheduler) dispatch() {
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("cycle: run panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
		}()
		s.run(s.base)
	}()
}
