// Turn loop — drives the turn manager at a fixed interval and hands each
// turn's events to the host.
package engine

import (
	"log/slog"
	"sync"
	"time"
)

// Engine steps the simulation forward. Turns are strictly sequential: every
// caller of StepTurn serializes on the same mutex, whether it is the
// interval loop or an HTTP handler.
type Engine struct {
	TM       *TurnManager
	Interval time.Duration // Base turn interval (default 1 second)

	// OnTurn runs after every completed turn — populated by the host to
	// persist or publish the event log. Failures there must not feed back
	// into the simulation.
	OnTurn func(turn int, events []Event)

	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

// NewEngine creates a turn loop around a turn manager.
func NewEngine(tm *TurnManager, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = time.Second
	}
	return &Engine{
		TM:       tm,
		Interval: interval,
		stop:     make(chan struct{}),
	}
}

// StepTurn performs exactly one turn and returns its number and event log.
// Safe for concurrent callers: turns never interleave.
func (e *Engine) StepTurn() (int, []Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	events := e.TM.PerformTurn()
	turn := e.TM.Turn()
	if e.OnTurn != nil {
		e.OnTurn(turn, events)
	}
	return turn, events
}

// Run blocks, stepping a turn every Interval until Stop is called.
func (e *Engine) Run() {
	slog.Info("simulation engine started", "turn", e.TM.Turn(), "interval", e.Interval)

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			slog.Info("simulation engine stopped", "turn", e.TM.Turn())
			return
		case <-ticker.C:
			e.StepTurn()
		}
	}
}

// Stop halts the turn loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}
