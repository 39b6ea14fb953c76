package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"plantwatch/internal/machines"
	"plantwatch/internal/models"
	"plantwatch/internal/risk"
	"plantwatch/internal/storage"
)

// scriptedSource replays a fixed sequence of observations, then repeats the
// last one.
type scriptedSource struct {
	sets []risk.ParameterSet
	idx  int
}

func (s *scriptedSource) Next() risk.ParameterSet {
	ps := s.sets[s.idx]
	if s.idx < len(s.sets)-1 {
		s.idx++
	}
	return ps
}

func cncParams(temp float64) risk.ParameterSet {
	return risk.ParameterSet{
		Values:    map[string]float64{"temp": temp, "vibration": 30, "rpm": 1000},
		Timestamp: time.Now(),
	}
}

func newTestManager(t *testing.T, source Source, out chan *models.Reading) (*Manager, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemory()
	m := New(Config{
		Profiles: machines.Builtin(),
		Store:    store,
		Out:      out,
		Interval: 5 * time.Millisecond,
		NewSource: func(machines.Profile) Source {
			return source
		},
	})
	t.Cleanup(m.StopAll)
	return m, store
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not reached before timeout")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestRunnerTripsOnCritical(t *testing.T) {
	source := &scriptedSource{sets: []risk.ParameterSet{
		cncParams(60),  // normal
		cncParams(90),  // warning
		cncParams(120), // critical: above cnc temp bound of 110
	}}
	m, store := newTestManager(t, source, nil)

	if err := m.Start("cnc"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return m.Status()["cnc"].Tripped && !m.Status()["cnc"].Running
	})

	rows, err := store.Readings(context.Background(), "cnc")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want 3 (loop halts at first critical)", len(rows))
	}
	last := rows[len(rows)-1]
	if last.Status != risk.StatusCritical {
		t.Errorf("last row status: got %v", last.Status)
	}
	if last.FailureType != models.FailureCritical {
		t.Errorf("failure type: got %q", last.FailureType)
	}

	// A tripped machine refuses to start until reset.
	if err := m.Start("cnc"); !errors.Is(err, ErrTripped) {
		t.Fatalf("start tripped machine: got %v, want ErrTripped", err)
	}
}

func TestResetReArmsAndClears(t *testing.T) {
	source := &scriptedSource{sets: []risk.ParameterSet{cncParams(120)}}
	m, store := newTestManager(t, source, nil)

	if err := m.Start("cnc"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return m.Status()["cnc"].Tripped })

	if err := m.Reset(context.Background(), "cnc"); err != nil {
		t.Fatal(err)
	}
	rows, _ := store.Readings(context.Background(), "cnc")
	if len(rows) != 0 {
		t.Errorf("rows after reset: got %d", len(rows))
	}
	if m.Status()["cnc"].Tripped {
		t.Error("machine still tripped after reset")
	}
	if err := m.Start("cnc"); err != nil {
		t.Errorf("start after reset: %v", err)
	}
}

func TestStartStopErrors(t *testing.T) {
	source := &scriptedSource{sets: []risk.ParameterSet{cncParams(60)}}
	m, _ := newTestManager(t, source, nil)

	if err := m.Start("toaster"); !errors.Is(err, ErrUnknownMachine) {
		t.Errorf("start unknown: got %v", err)
	}
	if err := m.Stop("cnc"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("stop idle: got %v", err)
	}

	if err := m.Start("cnc"); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("cnc"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("double start: got %v", err)
	}
	if err := m.Stop("cnc"); err != nil {
		t.Errorf("stop running: %v", err)
	}
	if m.Status()["cnc"].Running {
		t.Error("machine still running after stop")
	}
}

func TestReadingsReachPublishQueue(t *testing.T) {
	out := make(chan *models.Reading, 16)
	source := &scriptedSource{sets: []risk.ParameterSet{cncParams(60), cncParams(120)}}
	m, _ := newTestManager(t, source, out)

	if err := m.Start("cnc"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return m.Status()["cnc"].Tripped })

	if len(out) != 2 {
		t.Errorf("published readings: got %d, want 2", len(out))
	}
}

func TestObserve(t *testing.T) {
	m, store := newTestManager(t, &scriptedSource{sets: []risk.ParameterSet{cncParams(60)}}, nil)
	ctx := context.Background()

	reading, err := m.Observe(ctx, "cnc", cncParams(90))
	if err != nil {
		t.Fatal(err)
	}
	if reading.Status != risk.StatusWarning {
		t.Errorf("status: got %v, want WARNING", reading.Status)
	}
	rows, _ := store.Readings(ctx, "cnc")
	if len(rows) != 1 {
		t.Fatalf("observed reading not persisted")
	}

	// Unknown sensor names propagate, they are not skipped.
	_, err = m.Observe(ctx, "cnc", risk.ParameterSet{
		Values:    map[string]float64{"voltage": 5},
		Timestamp: time.Now(),
	})
	if !errors.Is(err, risk.ErrUnknownSensor) {
		t.Fatalf("got %v, want ErrUnknownSensor", err)
	}

	// Critical external observation trips the machine.
	if _, err := m.Observe(ctx, "cnc", cncParams(120)); err != nil {
		t.Fatal(err)
	}
	if !m.Status()["cnc"].Tripped {
		t.Error("critical observation did not trip the machine")
	}
}
