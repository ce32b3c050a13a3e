package server

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/blinkguard/internal/capture"
	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
	"github.com/GriffinCanCode/blinkguard/internal/orchestrator"
	"github.com/GriffinCanCode/blinkguard/internal/orchestrator/history"
)

// Inbound message types.
const (
	TypeScores         = "scores"
	TypeSetActive      = "set_active"
	TypeSetQuietPeriod = "set_quiet_period"
	TypeSetThresholds  = "set_thresholds"
	TypeGetStatus      = "get_status"
)

// Outbound message types.
const (
	TypeOverlay = "overlay"
	TypeBlink   = "blink"
	TypeFeed    = "feed"
	TypeStatus  = "status"
	TypeBreak   = "break"
	TypeError   = "error"
)

// Message is the envelope every WebSocket message carries.
type Message struct {
	Type    string `json:"type"`
	TraceID string `json:"trace_id,omitempty"`
}

// ScoresMessage carries one frame of blendshape scores from the renderer.
// A missing face field means a face was detected.
type ScoresMessage struct {
	Type  string   `json:"type"`
	Left  *float64 `json:"left,omitempty"`
	Right *float64 `json:"right,omitempty"`
	Face  *bool    `json:"face,omitempty"`
	TsMs  int64    `json:"ts_ms,omitempty"`
}

// frame converts the message. With a face in view both scores are required:
// an absent score would read as 0, a wide-open eye.
func (m ScoresMessage) frame() (capture.Frame, error) {
	if m.Face != nil && !*m.Face {
		return capture.FromScores(0, 0, false, m.TsMs, capture.SourceRenderer), nil
	}
	if m.Left == nil || m.Right == nil {
		return capture.Frame{}, apperrors.New(apperrors.CodeInvalidArgument, "scores message needs left and right").
			WithMetadata("type", TypeScores)
	}
	return capture.FromScores(*m.Left, *m.Right, true, m.TsMs, capture.SourceRenderer), nil
}

type SetActiveMessage struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

type SetQuietPeriodMessage struct {
	Type    string  `json:"type"`
	Seconds float64 `json:"seconds"`
}

type SetThresholdsMessage struct {
	Type  string  `json:"type"`
	Close float64 `json:"close"`
	Open  float64 `json:"open"`
}

type OverlayMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

type BlinkMessage struct {
	Type       string    `json:"type"`
	Count      uint64    `json:"count"`
	RatePerMin float64   `json:"rate_per_min"`
	At         time.Time `json:"at"`
}

type FeedMessage struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type StatusMessage struct {
	Type   string              `json:"type"`
	Status orchestrator.Status `json:"status"`
}

type BreakMessage struct {
	Type       string `json:"type"`
	DurationMs int64  `json:"duration_ms"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) ErrorMessage {
	msg := err.Error()
	var ae *apperrors.AppError
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	return ErrorMessage{Type: TypeError, Code: string(apperrors.CodeOf(err)), Message: msg}
}

// BlinkEntry is one history entry on the REST surface.
type BlinkEntry struct {
	Count uint64    `json:"count"`
	At    time.Time `json:"at"`
}

func blinkEntries(entries []history.Entry) []BlinkEntry {
	out := make([]BlinkEntry, len(entries))
	for i, e := range entries {
		out[i] = BlinkEntry{Count: e.Count, At: e.At}
	}
	return out
}
