package blink

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
)

// State is the classified eye state.
type State int

const (
	StateOpen State = iota
	StateClosed
)

func (s State) String() string {
	return [...]string{"open", "closed"}[s]
}

// Command is an overlay side effect produced by a transition.
type Command int

const (
	CommandNone Command = iota
	CommandShowOverlay
	CommandHideOverlay
)

func (c Command) String() string {
	return [...]string{"none", "show", "hide"}[c]
}

// Overlay receives overlay commands. Calls are made while the Machine holds
// its lock, so implementations must not block and must not call back into
// the Machine.
type Overlay interface {
	ShowOverlay()
	HideOverlay()
}

// OverlayFuncs adapts two functions to Overlay. Nil funcs are skipped.
type OverlayFuncs struct {
	Show func()
	Hide func()
}

func (o OverlayFuncs) ShowOverlay() {
	if o.Show != nil {
		o.Show()
	}
}

func (o OverlayFuncs) HideOverlay() {
	if o.Hide != nil {
		o.Hide()
	}
}

// Machine tracks open/closed state, counts blinks and owns the single debounce
// timer that shows the overlay once eyes have stayed open for the quiet period.
type Machine struct {
	sched   Scheduler
	overlay Overlay

	mu      sync.Mutex
	state   State
	active  bool
	quiet   time.Duration
	timer   Timer
	gen     uint64 // bumped on every cancel; a firing timer with a stale gen is ignored
	visible bool

	count atomic.Uint64

	blinkMu sync.RWMutex
	onBlink []func(count uint64)
}

// NewMachine creates an inactive machine in the open state.
func NewMachine(quiet time.Duration, sched Scheduler, overlay Overlay) (*Machine, error) {
	if err := validateQuiet(quiet); err != nil {
		return nil, err
	}
	if sched == nil {
		sched = RealScheduler{}
	}
	if overlay == nil {
		overlay = OverlayFuncs{}
	}
	return &Machine{sched: sched, overlay: overlay, quiet: quiet}, nil
}

func validateQuiet(d time.Duration) error {
	if d <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidConfig, "quiet period %v must be positive", d).
			WithMetadata("field", "quiet_period")
	}
	return nil
}

// Handle applies one edge. It returns the overlay command emitted
// synchronously, if any; a later showOverlay comes from the timer.
func (m *Machine) Handle(e Edge) (Command, error) {
	switch e {
	case ClosingEdge:
		return m.close(), nil
	case OpeningEdge:
		return CommandNone, m.open()
	default:
		return CommandNone, nil
	}
}

func (m *Machine) close() Command {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return CommandNone
	}
	m.state = StateClosed
	count := m.count.Add(1)

	cmd := CommandNone
	if m.active {
		m.cancelLocked()
		m.hideLocked()
		cmd = CommandHideOverlay
	}
	m.mu.Unlock()

	m.notifyBlink(count)
	return cmd
}

func (m *Machine) open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateOpen {
		return nil
	}
	m.state = StateOpen
	if !m.active {
		return nil
	}
	return m.armLocked()
}

// Arm (re)starts the debounce timer regardless of state. Any pending timer is
// cancelled first, so at most one timer is ever live.
func (m *Machine) Arm() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armLocked()
}

func (m *Machine) armLocked() error {
	m.cancelLocked()
	gen := m.gen
	quiet := m.quiet

	t, err := m.sched.AfterFunc(quiet, func() { m.fire(gen) })
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeTimerFailure, "arm overlay timer").
			WithMetadata("quiet_period", quiet.String())
	}
	m.timer = t
	slog.Debug("overlay timer armed", "quiet_period", quiet)
	return nil
}

func (m *Machine) cancelLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) fire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.timer == nil {
		return
	}
	m.timer = nil
	if !m.active {
		return
	}
	m.visible = true
	m.overlay.ShowOverlay()
}

func (m *Machine) hideLocked() {
	m.visible = false
	m.overlay.HideOverlay()
}

// SetActive engages or pauses the reminder. Engaging while eyes are open
// arms a fresh timer; if that fails the machine stays inactive. Pausing
// cancels any timer and hides a visible overlay.
func (m *Machine) SetActive(active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == active {
		return nil
	}
	m.active = active

	if !active {
		m.cancelLocked()
		if m.visible {
			m.hideLocked()
		}
		return nil
	}
	if m.state == StateOpen {
		if err := m.armLocked(); err != nil {
			// without a timer the overlay could never show, so stay paused
			m.active = false
			return err
		}
	}
	return nil
}

// SetQuietPeriod changes the debounce for future arms only.
func (m *Machine) SetQuietPeriod(d time.Duration) error {
	if err := validateQuiet(d); err != nil {
		return err
	}
	m.mu.Lock()
	m.quiet = d
	m.mu.Unlock()
	return nil
}

// QuietPeriod returns the debounce used by the next arm.
func (m *Machine) QuietPeriod() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quiet
}

// OnBlink registers fn to be called once per counted blink. Callbacks run on
// the frame goroutine after the transition completes.
func (m *Machine) OnBlink(fn func(count uint64)) {
	m.blinkMu.Lock()
	m.onBlink = append(m.onBlink, fn)
	m.blinkMu.Unlock()
}

func (m *Machine) notifyBlink(count uint64) {
	m.blinkMu.RLock()
	defer m.blinkMu.RUnlock()
	for _, fn := range m.onBlink {
		fn(count)
	}
}

// BlinkCount returns the number of blinks counted this session.
func (m *Machine) BlinkCount() uint64 {
	return m.count.Load()
}

// State returns the current eye state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active reports whether the reminder is engaged.
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Pending reports whether a debounce timer is live.
func (m *Machine) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

// OverlayVisible reports whether the last emitted command was show.
func (m *Machine) OverlayVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}
