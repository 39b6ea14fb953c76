// Package monitor runs the per-machine observation loops. Each running
// machine owns one goroutine that generates (or receives) parameter sets,
// evaluates them, persists the assessed reading, and hands it to the publish
// queue. A CRITICAL reading trips the machine: its loop cancels itself and
// the machine stays down until reset.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"plantwatch/internal/logger"
	"plantwatch/internal/machines"
	"plantwatch/internal/metrics"
	"plantwatch/internal/models"
	"plantwatch/internal/risk"
	"plantwatch/internal/simulate"
	"plantwatch/internal/storage"
)

// Manager errors
var (
	ErrUnknownMachine = errors.New("unknown machine")
	ErrAlreadyRunning = errors.New("machine already running")
	ErrNotRunning     = errors.New("machine not running")
	// ErrTripped means the machine was halted by a critical reading and
	// must be reset before it can start again.
	ErrTripped = errors.New("machine tripped by critical reading")
)

// Source produces the next observation for a machine. The simulator is the
// default source; tests substitute scripted ones.
type Source interface {
	Next() risk.ParameterSet
}

// Config holds manager construction parameters.
type Config struct {
	Profiles map[string]machines.Profile
	Store    storage.Store
	// Out receives every assessed reading; nil disables publishing.
	Out      chan<- *models.Reading
	Interval time.Duration
	// Seed for the per-machine simulators; 0 means time-seeded.
	Seed int64
	// NewSource overrides the simulator, for tests.
	NewSource func(profile machines.Profile) Source
}

// MachineState is one machine's view in Status().
type MachineState struct {
	Running bool `json:"running"`
	Tripped bool `json:"tripped"`
}

// Manager owns the monitoring loops for all configured machines.
type Manager struct {
	profiles  map[string]machines.Profile
	store     storage.Store
	out       chan<- *models.Reading
	interval  time.Duration
	seed      int64
	newSource func(profile machines.Profile) Source

	mu      sync.Mutex
	runners map[string]*runner
	tripped map[string]bool
}

// New creates a manager for the given profiles.
func New(cfg Config) *Manager {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	newSource := cfg.NewSource
	if newSource == nil {
		seed := cfg.Seed
		newSource = func(profile machines.Profile) Source {
			return simulate.New(profile, seed)
		}
	}
	return &Manager{
		profiles:  cfg.Profiles,
		store:     cfg.Store,
		out:       cfg.Out,
		interval:  interval,
		seed:      cfg.Seed,
		newSource: newSource,
		runners:   make(map[string]*runner),
		tripped:   make(map[string]bool),
	}
}

// Machines returns the configured machine names in sorted order.
func (m *Manager) Machines() []string {
	names := make([]string, 0, len(m.profiles))
	for name := range m.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile returns the spec table for one machine.
func (m *Manager) Profile(machine string) (machines.Profile, error) {
	p, ok := m.profiles[machine]
	if !ok {
		return machines.Profile{}, fmt.Errorf("%w: %s", ErrUnknownMachine, machine)
	}
	return p, nil
}

// Start launches the monitoring loop for a machine.
func (m *Manager) Start(machine string) error {
	profile, ok := m.profiles[machine]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMachine, machine)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tripped[machine] {
		return fmt.Errorf("%w: %s", ErrTripped, machine)
	}
	if _, running := m.runners[machine]; running {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, machine)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{
		manager: m,
		machine: machine,
		profile: profile,
		source:  m.newSource(profile),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.runners[machine] = r
	go r.run(ctx)

	log := logger.WithMachine(machine)
	log.Info().Msg("monitoring started")
	return nil
}

// Stop cancels a machine's loop without clearing its data.
func (m *Manager) Stop(machine string) error {
	m.mu.Lock()
	r, running := m.runners[machine]
	m.mu.Unlock()

	if !running {
		if _, ok := m.profiles[machine]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMachine, machine)
		}
		return fmt.Errorf("%w: %s", ErrNotRunning, machine)
	}

	r.cancel()
	<-r.done
	log := logger.WithMachine(machine)
	log.Info().Msg("monitoring stopped")
	return nil
}

// Reset stops the machine if running, clears its stored rows, and re-arms a
// tripped machine.
func (m *Manager) Reset(ctx context.Context, machine string) error {
	if _, ok := m.profiles[machine]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMachine, machine)
	}

	m.mu.Lock()
	r, running := m.runners[machine]
	m.mu.Unlock()
	if running {
		r.cancel()
		<-r.done
	}

	if err := m.store.Clear(ctx, machine); err != nil {
		return err
	}

	m.mu.Lock()
	m.tripped[machine] = false
	m.mu.Unlock()

	log := logger.WithMachine(machine)
	log.Info().Msg("monitoring reset, data cleared")
	return nil
}

// Status reports every configured machine's running/tripped state.
func (m *Manager) Status() map[string]MachineState {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[string]MachineState, len(m.profiles))
	for name := range m.profiles {
		_, running := m.runners[name]
		states[name] = MachineState{Running: running, Tripped: m.tripped[name]}
	}
	return states
}

// Observe evaluates and records one externally supplied observation for a
// machine, outside any running loop. A critical observation trips the
// machine just as a simulated one would.
func (m *Manager) Observe(ctx context.Context, machine string, params risk.ParameterSet) (*models.Reading, error) {
	profile, ok := m.profiles[machine]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMachine, machine)
	}

	reading, err := m.evaluate(ctx, machine, profile, params)
	if err != nil {
		return nil, err
	}
	if reading.Status == risk.StatusCritical {
		m.trip(machine)
	}
	return reading, nil
}

// StopAll cancels every running loop. Used at shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	runners := make([]*runner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	m.mu.Unlock()

	for _, r := range runners {
		r.cancel()
		<-r.done
	}
}

// evaluate runs the evaluator over one observation, persists the result, and
// queues it for publishing.
func (m *Manager) evaluate(ctx context.Context, machine string, profile machines.Profile, params risk.ParameterSet) (*models.Reading, error) {
	start := time.Now()
	report, err := risk.CalculateFailureLikelihood(profile.Specs, params)
	if err != nil {
		return nil, err
	}
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())

	reading := models.NewReading(machine, params, report)
	metrics.ReadingsGenerated.WithLabelValues(machine, string(reading.Status)).Inc()

	if err := m.store.Insert(ctx, reading); err != nil {
		metrics.StoreErrors.WithLabelValues(machine).Inc()
		return nil, err
	}

	if m.out != nil {
		select {
		case m.out <- reading:
		default:
			// Queue full: keep monitoring, drop the publish.
			log := logger.WithMachine(machine)
			log.Warn().Msg("publish queue full, reading dropped")
		}
	}
	return reading, nil
}

func (m *Manager) trip(machine string) {
	m.mu.Lock()
	m.tripped[machine] = true
	r, running := m.runners[machine]
	m.mu.Unlock()

	metrics.CriticalTrips.WithLabelValues(machine).Inc()
	if running {
		r.cancel()
	}
}

func (m *Manager) finished(machine string, r *runner) {
	m.mu.Lock()
	if m.runners[machine] == r {
		delete(m.runners, machine)
	}
	m.mu.Unlock()
}

// runner is one machine's monitoring loop.
type runner struct {
	manager *Manager
	machine string
	profile machines.Profile
	source  Source
	cancel  context.CancelFunc
	done    chan struct{}
}

func (r *runner) run(ctx context.Context) {
	defer close(r.done)
	defer r.manager.finished(r.machine, r)

	log := logger.WithMachine(r.machine)
	ticker := time.NewTicker(r.manager.interval)
	defer ticker.Stop()

	for {
		params := r.source.Next()
		reading, err := r.manager.evaluate(ctx, r.machine, r.profile, params)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("failed to record reading")
		} else {
			log.Debug().
				Str("status", string(reading.Status)).
				Float64("score", reading.Score).
				Msg("reading recorded")

			if reading.Status == risk.StatusCritical {
				log.Warn().Float64("score", reading.Score).Msg("critical reading, halting monitor")
				r.manager.trip(r.machine)
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
