package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/blinkguard/internal/blink"
	"github.com/GriffinCanCode/blinkguard/internal/capture"
	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
	"github.com/GriffinCanCode/blinkguard/internal/metrics"
	"github.com/GriffinCanCode/blinkguard/internal/orchestrator"
	"github.com/GriffinCanCode/blinkguard/internal/orchestrator/history"
	"github.com/GriffinCanCode/blinkguard/internal/trace"
)

// Controller is the part of the orchestrator the server drives.
type Controller interface {
	Submit(f capture.Frame) bool
	SetActive(active bool) error
	SetQuietPeriod(d time.Duration) error
	SetThresholds(t blink.Thresholds) error
	StartBreak(d time.Duration) error
	Status() orchestrator.Status
	History(limit int) []history.Entry

	OverlayEvents() <-chan orchestrator.OverlayEvent
	BlinkEvents() <-chan orchestrator.BlinkEvent
	FeedEvents() <-chan orchestrator.FeedEvent
	BreakEvents() <-chan orchestrator.BreakEvent
	Errors() <-chan error
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// client is one WebSocket connection. All writes go through send so that
// overlay show/hide order is kept per connection.
type client struct {
	conn    *websocket.Conn
	send    chan any
	limiter rateLimiter
	remote  string
}

// enqueue never blocks; a client that cannot keep up loses messages.
func (c *client) enqueue(msg any) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, WriteTimeout)
			err := wsjson.Write(wctx, c.conn, msg)
			cancel()
			if err != nil {
				slog.Debug("websocket write error", "remote", c.remote, "error", err)
				return
			}
		}
	}
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	ctrl    Controller
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// New creates a new server. Call Start to begin broadcasting events.
func New(ctrl Controller) *Server {
	return &Server{
		ctrl:    ctrl,
		clients: make(map[*client]struct{}),
	}
}

// Start forwards orchestrator events to every connected client until ctx is
// cancelled. One goroutine reads every event channel so clients see events
// in the order they were produced.
func (s *Server) Start(ctx context.Context) {
	go s.broadcastEvents(ctx)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/active/start", s.handleActive(true))
	mux.HandleFunc("POST /api/active/stop", s.handleActive(false))
	mux.HandleFunc("PUT /api/quiet-period", s.handleQuietPeriod)
	mux.HandleFunc("PUT /api/thresholds", s.handleThresholds)
	mux.HandleFunc("GET /api/blinks", s.handleBlinks)
	mux.HandleFunc("POST /api/break", s.handleBreak)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	c := &client{conn: conn, send: make(chan any, ClientSendBuffer), remote: r.RemoteAddr}
	go func() {
		c.writeLoop(ctx)
		cancel()
	}()

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	metrics.WebSocketConnections.Inc()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		metrics.WebSocketConnections.Dec()
		log.Info("websocket disconnected", "remote", r.RemoteAddr)
	}()

	c.enqueue(StatusMessage{Type: TypeStatus, Status: s.ctrl.Status()})

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !c.limiter.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			c.enqueue(ErrorMessage{Type: TypeError, Code: string(apperrors.CodeUnavailable), Message: "rate limit exceeded"})
			continue
		}

		s.handleMessage(ctx, c, msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, c *client, raw json.RawMessage) {
	var base Message
	if err := json.Unmarshal(raw, &base); err != nil {
		c.enqueue(errorMessage(apperrors.Wrap(err, apperrors.CodeInvalidArgument, "malformed message")))
		return
	}

	// Scores arrive at frame rate and are not worth a span each.
	if base.Type == TypeScores {
		var m ScoresMessage
		err := decode(raw, &m)
		var f capture.Frame
		if err == nil {
			f, err = m.frame()
		}
		if err != nil {
			c.enqueue(errorMessage(err))
			return
		}
		s.ctrl.Submit(f)
		return
	}

	if tc, ok := trace.ExtractFromJSON(raw); ok {
		ctx = trace.WithContext(ctx, tc)
	} else {
		ctx = trace.Ensure(ctx)
	}
	ctx, span := trace.StartSpan(ctx, "ws."+base.Type)
	if err := span.End(s.control(ctx, span, base.Type, raw)); err != nil {
		c.enqueue(errorMessage(err))
		return
	}
	c.enqueue(StatusMessage{Type: TypeStatus, Status: s.ctrl.Status()})
}

// control applies one control message. get_status changes nothing; the
// caller replies with the status either way.
func (s *Server) control(ctx context.Context, span *trace.Span, typ string, raw json.RawMessage) error {
	switch typ {
	case TypeSetActive:
		var m SetActiveMessage
		if err := decode(raw, &m); err != nil {
			return err
		}
		span.SetAttr("active", m.Active)
		if err := s.ctrl.SetActive(m.Active); err != nil {
			return err
		}
		trace.Logger(ctx).Info("active changed", "active", m.Active)
		return nil

	case TypeSetQuietPeriod:
		var m SetQuietPeriodMessage
		if err := decode(raw, &m); err != nil {
			return err
		}
		span.SetAttr("seconds", m.Seconds)
		return s.ctrl.SetQuietPeriod(seconds(m.Seconds))

	case TypeSetThresholds:
		var m SetThresholdsMessage
		if err := decode(raw, &m); err != nil {
			return err
		}
		t := blink.Thresholds{Close: m.Close, Open: m.Open}
		span.SetAttr("thresholds", t.String())
		return s.ctrl.SetThresholds(t)

	case TypeGetStatus:
		return nil

	default:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown message type %q", typ)
	}
}

func (s *Server) broadcast(msg any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if !c.enqueue(msg) {
			slog.Warn("websocket client queue full, dropping message", "remote", c.remote)
		}
	}
}

func (s *Server) broadcastEvents(ctx context.Context) {
	for {
		var msg any
		select {
		case <-ctx.Done():
			return
		case evt := <-s.ctrl.OverlayEvents():
			msg = OverlayMessage{Type: TypeOverlay, Action: string(evt.Action)}
		case evt := <-s.ctrl.BlinkEvents():
			msg = BlinkMessage{Type: TypeBlink, Count: evt.Count, RatePerMin: evt.RatePerMin, At: evt.At}
		case evt := <-s.ctrl.FeedEvents():
			msg = FeedMessage{Type: TypeFeed, Status: string(evt.Status)}
		case evt := <-s.ctrl.BreakEvents():
			msg = BreakMessage{Type: TypeBreak, DurationMs: evt.Duration.Milliseconds()}
		case err := <-s.ctrl.Errors():
			msg = errorMessage(err)
		}
		s.broadcast(msg)
	}
}

func decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "malformed message")
	}
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
