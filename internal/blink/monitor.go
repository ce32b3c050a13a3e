package blink

import (
	"sync/atomic"
	"time"
)

// Config for a Monitor.
type Config struct {
	Thresholds  Thresholds
	QuietPeriod time.Duration
	Active      bool
}

// Monitor is the per-subject pipeline: Adapter followed by Machine.
// ProcessFrame and ProcessMissing must be called from one goroutine in frame
// order; the setters are safe from any goroutine.
type Monitor struct {
	adapter *Adapter
	machine *Machine

	frames  atomic.Uint64
	missing atomic.Uint64
}

// NewMonitor validates cfg and builds the pipeline.
func NewMonitor(cfg Config, sched Scheduler, overlay Overlay) (*Monitor, error) {
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	m, err := NewMachine(cfg.QuietPeriod, sched, overlay)
	if err != nil {
		return nil, err
	}
	if err := m.SetActive(cfg.Active); err != nil {
		return nil, err
	}
	return &Monitor{adapter: NewAdapter(cfg.Thresholds), machine: m}, nil
}

// ProcessFrame classifies a sample and applies the resulting edge.
func (mon *Monitor) ProcessFrame(s Sample) (Edge, Command, error) {
	mon.frames.Add(1)
	edge := mon.adapter.Classify(s)
	cmd, err := mon.machine.Handle(edge)
	return edge, cmd, err
}

// ProcessMissing records a frame without a face. It is never an edge.
func (mon *Monitor) ProcessMissing() {
	mon.missing.Add(1)
}

// SetThresholds validates and swaps the hysteresis bounds for the next frame.
func (mon *Monitor) SetThresholds(t Thresholds) error {
	return mon.adapter.SetThresholds(t)
}

func (mon *Monitor) Thresholds() Thresholds               { return mon.adapter.Thresholds() }
func (mon *Monitor) SetActive(active bool) error          { return mon.machine.SetActive(active) }
func (mon *Monitor) Active() bool                         { return mon.machine.Active() }
func (mon *Monitor) SetQuietPeriod(d time.Duration) error { return mon.machine.SetQuietPeriod(d) }
func (mon *Monitor) QuietPeriod() time.Duration           { return mon.machine.QuietPeriod() }
func (mon *Monitor) BlinkCount() uint64                   { return mon.machine.BlinkCount() }
func (mon *Monitor) OnBlink(fn func(count uint64))        { mon.machine.OnBlink(fn) }
func (mon *Monitor) State() State                         { return mon.machine.State() }
func (mon *Monitor) OverlayVisible() bool                 { return mon.machine.OverlayVisible() }
func (mon *Monitor) TimerPending() bool                   { return mon.machine.Pending() }

// Frames returns the number of frames with a face processed so far.
func (mon *Monitor) Frames() uint64 { return mon.frames.Load() }

// Missing returns the number of frames without a face.
func (mon *Monitor) Missing() uint64 { return mon.missing.Load() }
