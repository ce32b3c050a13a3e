package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/blinkguard/internal/blink"
	"github.com/GriffinCanCode/blinkguard/internal/capture"
	"github.com/GriffinCanCode/blinkguard/internal/config"
	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
	"github.com/GriffinCanCode/blinkguard/internal/metrics"
	"github.com/GriffinCanCode/blinkguard/internal/orchestrator/feed"
	"github.com/GriffinCanCode/blinkguard/internal/orchestrator/history"
	"github.com/GriffinCanCode/blinkguard/internal/syncx"
	"github.com/GriffinCanCode/blinkguard/internal/trace"
)

// OverlayAction is the command forwarded to the overlay window.
type OverlayAction string

const (
	OverlayShow OverlayAction = "show"
	OverlayHide OverlayAction = "hide"
)

// OverlayEvent is one overlay command.
type OverlayEvent struct {
	Action OverlayAction
	At     time.Time
}

// BlinkEvent re-exported for the server
type BlinkEvent = history.Event

// FeedEvent reports a feed status transition.
type FeedEvent struct {
	Status feed.Status
	At     time.Time
}

// BreakEvent asks the overlay to run a break of the given length.
type BreakEvent struct {
	Duration time.Duration
	At       time.Time
}

// VisionSource streams frames from the landmark sidecar.
type VisionSource interface {
	// Run delivers frames to sink until ctx is done.
	Run(ctx context.Context, sink capture.Sink) error
	// Check reports sidecar health.
	Check(ctx context.Context) error
}

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	SessionID      string    `json:"session_id"`
	StartedAt      time.Time `json:"started_at"`
	Active         bool      `json:"active"`
	QuietPeriod    float64   `json:"quiet_period_seconds"`
	CloseThreshold float64   `json:"close_threshold"`
	OpenThreshold  float64   `json:"open_threshold"`
	EyeState       string    `json:"eye_state"`
	BlinkCount     uint64    `json:"blink_count"`
	RatePerMin     float64   `json:"rate_per_min"`
	OverlayVisible bool      `json:"overlay_visible"`
	TimerPending   bool      `json:"timer_pending"`
	Feed           string    `json:"feed"`
	Vision         string    `json:"vision"`
	Frames         uint64    `json:"frames"`
	Missing        uint64    `json:"missing"`
	Dropped        uint64    `json:"dropped"`
}

// Manager owns the blink monitor and everything that feeds or observes it.
type Manager struct {
	cfg       *config.Config
	monitor   *blink.Monitor
	history   history.Store
	watchdog  *feed.Watchdog
	vision    VisionSource
	sessionID string
	startedAt time.Time

	frames    chan capture.Frame
	overlayCh chan OverlayEvent
	feedCh    chan FeedEvent
	breakCh   chan BreakEvent
	errCh     chan error

	visionState *syncx.RWGuard[string]
	dropped     atomic.Uint64

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a manager. vision may be nil when no sidecar is configured;
// sched may be nil to use runtime timers.
func New(cfg *config.Config, vision VisionSource, sched blink.Scheduler) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:       cfg,
		history:   history.NewStore(cfg.HistorySize, BlinkEventBuffer),
		vision:    vision,
		sessionID: uuid.NewString(),
		startedAt: time.Now(),
		frames:    make(chan capture.Frame, cfg.FrameBuffer),
		overlayCh: make(chan OverlayEvent, OverlayEventBuffer),
		feedCh:    make(chan FeedEvent, FeedEventBuffer),
		breakCh:   make(chan BreakEvent, BreakEventBuffer),
		errCh:     make(chan error, ErrorEventBuffer),
	}

	state := VisionDisabled
	if vision != nil {
		state = VisionUnknown
	}
	m.visionState = syncx.NewGuard(state)

	m.watchdog = feed.NewWatchdog(feed.Config{
		StallTimeout: cfg.FeedStallTimeout,
		FrozenFrames: cfg.FeedFrozenFrames,
	}, m.handleFeedChange)
	metrics.SetFeedStatus(string(feed.StatusWaiting), feedStatuses)

	// the overlay window starts hidden regardless of what it last showed
	m.emitOverlay(OverlayHide)

	monitor, err := blink.NewMonitor(cfg.Monitor(), sched, blink.OverlayFuncs{
		Show: func() { m.emitOverlay(OverlayShow) },
		Hide: func() { m.emitOverlay(OverlayHide) },
	})
	if err != nil {
		return nil, err
	}
	monitor.OnBlink(m.recordBlink)
	m.monitor = monitor
	metrics.SetActive(cfg.StartActive)

	return m, nil
}

var feedStatuses = []string{
	string(feed.StatusWaiting), string(feed.StatusLive), string(feed.StatusNoFace),
	string(feed.StatusStalled), string(feed.StatusFrozen),
}

// Start launches the frame loop, the feed watchdog and the vision stream.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return apperrors.New(apperrors.CodeInternal, "orchestrator already started")
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	log := trace.Logger(ctx)
	log.Info("blink monitor starting", "session_id", m.sessionID, "config", m.cfg.String())

	m.goLoop(func() { m.frameLoop(ctx) })
	m.goLoop(func() { m.watchdog.Run(ctx, feed.CheckInterval) })
	if m.vision != nil {
		m.goLoop(func() { m.visionLoop(ctx) })
		m.goLoop(func() { m.healthLoop(ctx) })
	}
	return nil
}

func (m *Manager) goLoop(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

// Stop cancels every loop, disengages the reminder and waits for the loops
// to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	if err := m.monitor.SetActive(false); err != nil {
		trace.Logger(context.Background()).Error("deactivate on stop", "error", err)
	}
}

// Submit queues a frame for the frame loop. It never blocks: when the buffer
// is full the frame is dropped and false is returned.
func (m *Manager) Submit(f capture.Frame) bool {
	select {
	case m.frames <- f:
		return true
	default:
		m.dropped.Add(1)
		metrics.FramesDropped.WithLabelValues(f.Source).Inc()
		return false
	}
}

func (m *Manager) frameLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-m.frames:
			m.process(ctx, f)
		}
	}
}

func (m *Manager) process(ctx context.Context, f capture.Frame) {
	m.watchdog.Observe(f)

	if f.Missing() {
		m.monitor.ProcessMissing()
		metrics.FramesTotal.WithLabelValues(f.Source, "false").Inc()
		return
	}
	metrics.FramesTotal.WithLabelValues(f.Source, "true").Inc()

	start := time.Now()
	edge, cmd, err := m.monitor.ProcessFrame(f.Sample)
	metrics.FrameProcessingDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		m.reportError(ctx, err)
		return
	}
	if edge != blink.NoSignal {
		trace.Logger(ctx).Debug("eye edge", "edge", edge, "command", cmd,
			"left", f.Sample.Left, "right", f.Sample.Right)
	}
}

func (m *Manager) visionLoop(ctx context.Context) {
	log := trace.Logger(ctx)
	if err := m.vision.Run(ctx, m); err != nil && ctx.Err() == nil {
		log.Error("vision stream ended", "error", err)
		m.visionState.Set(VisionUnavailable)
		m.reportError(ctx, err)
	}
}

func (m *Manager) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(VisionHealthInterval)
	defer ticker.Stop()

	m.checkVision(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkVision(ctx)
		}
	}
}

func (m *Manager) checkVision(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, VisionHealthTimeout)
	defer cancel()

	next := VisionServing
	if err := m.vision.Check(ctx); err != nil {
		next = VisionUnavailable
	}
	if prev := m.visionState.Swap(next); prev != next {
		trace.Logger(ctx).Info("vision sidecar state changed", "from", prev, "to", next)
	}
}

func (m *Manager) reportError(ctx context.Context, err error) {
	if apperrors.IsCode(err, apperrors.CodeTimerFailure) {
		metrics.TimerFailures.Inc()
	}
	trace.Logger(ctx).Error("blink pipeline error", "code", apperrors.CodeOf(err), "error", err)
	select {
	case m.errCh <- err:
	default:
	}
}

// emitOverlay runs under the Machine lock and must not block.
func (m *Manager) emitOverlay(action OverlayAction) {
	metrics.OverlayCommands.WithLabelValues(string(action)).Inc()
	select {
	case m.overlayCh <- OverlayEvent{Action: action, At: time.Now()}:
	default:
		metrics.OverlayDropped.Inc()
		trace.Logger(context.Background()).Warn("overlay event dropped", "action", action)
	}
}

func (m *Manager) recordBlink(count uint64) {
	now := time.Now()
	m.history.Add(count, now)
	rate := m.history.Rate(history.DefaultRateWindow, now)

	metrics.BlinksTotal.Inc()
	metrics.BlinkRate.Set(rate)
	m.history.Emit(BlinkEvent{Count: count, At: now, RatePerMin: rate})
}

func (m *Manager) handleFeedChange(s feed.Status) {
	metrics.SetFeedStatus(string(s), feedStatuses)
	trace.Logger(context.Background()).Info("frame feed status", "status", s)
	select {
	case m.feedCh <- FeedEvent{Status: s, At: time.Now()}:
	default:
	}
}

// SetActive engages or pauses the overlay reminder.
func (m *Manager) SetActive(active bool) error {
	if err := m.monitor.SetActive(active); err != nil {
		m.reportError(context.Background(), err)
		return err
	}
	metrics.SetActive(active)
	trace.Logger(context.Background()).Info("reminder state changed", "active", active)
	return nil
}

// SetQuietPeriod changes the debounce used by the next arm.
func (m *Manager) SetQuietPeriod(d time.Duration) error {
	if err := m.monitor.SetQuietPeriod(d); err != nil {
		return err
	}
	trace.Logger(context.Background()).Info("quiet period changed", "quiet_period", d)
	return nil
}

// SetThresholds swaps the hysteresis bounds for the next frame.
func (m *Manager) SetThresholds(t blink.Thresholds) error {
	if err := m.monitor.SetThresholds(t); err != nil {
		return err
	}
	trace.Logger(context.Background()).Info("thresholds changed", "thresholds", t.String())
	return nil
}

// ApplyConfig applies the hot-reloadable part of a reloaded config.
func (m *Manager) ApplyConfig(cfg *config.Config) error {
	if err := m.SetThresholds(cfg.Thresholds()); err != nil {
		return err
	}
	return m.SetQuietPeriod(cfg.QuietPeriod)
}

// StartBreak broadcasts a break of length d to the overlay.
func (m *Manager) StartBreak(d time.Duration) error {
	if d <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "break duration %v must be positive", d).
			WithMetadata("field", "seconds")
	}
	select {
	case m.breakCh <- BreakEvent{Duration: d, At: time.Now()}:
		return nil
	default:
		return apperrors.New(apperrors.CodeUnavailable, "break queue full")
	}
}

// Status returns a snapshot of the pipeline.
func (m *Manager) Status() Status {
	th := m.monitor.Thresholds()
	return Status{
		SessionID:      m.sessionID,
		StartedAt:      m.startedAt,
		Active:         m.monitor.Active(),
		QuietPeriod:    m.monitor.QuietPeriod().Seconds(),
		CloseThreshold: th.Close,
		OpenThreshold:  th.Open,
		EyeState:       m.monitor.State().String(),
		BlinkCount:     m.monitor.BlinkCount(),
		RatePerMin:     m.history.Rate(history.DefaultRateWindow, time.Now()),
		OverlayVisible: m.monitor.OverlayVisible(),
		TimerPending:   m.monitor.TimerPending(),
		Feed:           string(m.watchdog.Status()),
		Vision:         m.visionState.Get(),
		Frames:         m.monitor.Frames(),
		Missing:        m.monitor.Missing(),
		Dropped:        m.dropped.Load(),
	}
}

// History returns up to limit recent blinks, oldest first.
func (m *Manager) History(limit int) []history.Entry {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return m.history.Recent(limit)
}

// BlinkCount returns the session blink count.
func (m *Manager) BlinkCount() uint64 {
	return m.monitor.BlinkCount()
}

// SessionID identifies this monitoring session.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// OverlayEvents returns channel for overlay commands
func (m *Manager) OverlayEvents() <-chan OverlayEvent {
	return m.overlayCh
}

// BlinkEvents returns channel for blink events
func (m *Manager) BlinkEvents() <-chan BlinkEvent {
	return m.history.Events()
}

// FeedEvents returns channel for feed status changes
func (m *Manager) FeedEvents() <-chan FeedEvent {
	return m.feedCh
}

// BreakEvents returns channel for break requests
func (m *Manager) BreakEvents() <-chan BreakEvent {
	return m.breakCh
}

// Errors returns channel for pipeline errors surfaced to clients
func (m *Manager) Errors() <-chan error {
	return m.errCh
}
