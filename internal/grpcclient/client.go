// Package grpcclient connects to the landmark sidecar and turns its frame
// stream into capture frames.
package grpcclient

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/GriffinCanCode/blinkguard/internal/capture"
	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
	"github.com/GriffinCanCode/blinkguard/internal/metrics"
	"github.com/GriffinCanCode/blinkguard/internal/resilience"
	"github.com/GriffinCanCode/blinkguard/internal/trace"
	"github.com/GriffinCanCode/blinkguard/pkg/visionrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// Config holds the sidecar connection settings.
type Config struct {
	Addr             string
	CameraID         string
	MaxFPS           int
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	Retry            resilience.RetryConfig
	Breaker          resilience.Config
}

// DefaultConfig returns settings for a sidecar at addr.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:             addr,
		CameraID:         "0",
		MaxFPS:           DefaultMaxFPS,
		KeepaliveTime:    DefaultKeepaliveTime,
		KeepaliveTimeout: DefaultKeepaliveTimeout,
		Retry:            resilience.VisionRetryConfig(),
		Breaker:          resilience.VisionConfig(),
	}
}

// Client wraps the landmark and health clients for one sidecar.
type Client struct {
	cfg       Config
	conn      *grpc.ClientConn
	landmarks visionrpc.LandmarkClient
	health    healthpb.HealthClient
	breaker   *resilience.Breaker
}

// New creates a client. The connection is lazy: nothing is dialled until
// the first stream or health check. Extra dial options are appended last.
func New(cfg Config, opts ...grpc.DialOption) (*Client, error) {
	if cfg.Addr == "" {
		return nil, apperrors.New(apperrors.CodeInvalidConfig, "vision sidecar address is empty").WithMetadata("field", "vision_addr")
	}
	if cfg.MaxFPS <= 0 {
		cfg.MaxFPS = DefaultMaxFPS
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithChainStreamInterceptor(trace.StreamClientInterceptor()),
	}
	conn, err := grpc.NewClient(cfg.Addr, append(dialOpts, opts...)...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidConfig, "create vision client").WithMetadata("addr", cfg.Addr)
	}

	return &Client{
		cfg:       cfg,
		conn:      conn,
		landmarks: visionrpc.NewLandmarkClient(conn),
		health:    healthpb.NewHealthClient(conn),
		breaker:   resilience.New(cfg.Breaker).WithHook(breakerMetric),
	}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Breaker exposes the stream breaker state.
func (c *Client) Breaker() resilience.State {
	return c.breaker.State()
}

// Check asks the sidecar's health service whether the landmark service is
// serving.
func (c *Client) Check(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: visionrpc.ServiceName})
	if err != nil {
		return apperrors.FromGRPCError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return apperrors.Newf(apperrors.CodeUnavailable, "vision sidecar is %s", resp.GetStatus())
	}
	return nil
}

// Stream runs one stream session, submitting every received frame to sink.
// It returns when the stream ends; a clean end from the sidecar is reported
// as VISION_STREAM_FAILED so callers reconnect. Returns nil only when ctx is
// cancelled.
func (c *Client) Stream(ctx context.Context, sink capture.Sink) error {
	_, err := c.session(ctx, sink)
	return err
}

// session is Stream that also reports whether any frame arrived.
func (c *Client) session(ctx context.Context, sink capture.Sink) (bool, error) {
	sess, err := c.breaker.Begin()
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeVisionStreamFailed, "vision stream suspended").
			WithMetadata("breaker", c.breaker.State().String())
	}

	err = c.stream(ctx, sink, sess)
	if ctx.Err() != nil {
		sess.End(nil)
		return sess.HasDelivered(), nil
	}
	sess.End(err)
	return sess.HasDelivered(), err
}

func (c *Client) stream(ctx context.Context, sink capture.Sink, sess *resilience.Session) error {
	log := trace.Logger(ctx).With("addr", c.cfg.Addr, "camera", c.cfg.CameraID)

	stream, err := c.landmarks.StreamBlendshapes(ctx, &visionrpc.StreamRequest{
		CameraId: c.cfg.CameraID,
		MaxFps:   int32(c.cfg.MaxFPS),
	})
	if err != nil {
		return streamError(err, "open vision stream")
	}

	received := 0
	for {
		frame, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			log.Warn("vision stream closed by sidecar", "frames", received)
			return apperrors.New(apperrors.CodeVisionStreamFailed, "vision stream closed by sidecar")
		}
		if err != nil {
			return streamError(err, "receive vision frame")
		}

		if received == 0 {
			log.Info("vision stream established")
		}
		received++
		sess.Delivered()

		sink.Submit(capture.FromNanos(
			frame.GetEyeBlinkLeft(), frame.GetEyeBlinkRight(), frame.GetFaceDetected(),
			frame.GetTimestampNs(), frame.GetThumbnail(), capture.SourceVision,
		))
	}
}

// streamError keeps non-transient sidecar errors (bad camera id and the
// like) so Run can give up on them.
func streamError(err error, msg string) error {
	ae := apperrors.FromGRPCError(err)
	switch ae.GRPCCode() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Unknown, codes.Internal, codes.ResourceExhausted, codes.Aborted:
		return apperrors.Wrap(err, apperrors.CodeVisionStreamFailed, msg)
	default:
		return ae
	}
}

// Run keeps a stream open until ctx is cancelled, reconnecting with backoff
// that resets whenever a session delivered frames. It returns nil on
// cancellation and the error when the sidecar rejects the stream outright.
func (c *Client) Run(ctx context.Context, sink capture.Sink) error {
	sessions := 0
	err := resilience.Reconnect(ctx, c.cfg.Retry, func(ctx context.Context) (bool, error) {
		if sessions > 0 {
			metrics.VisionReconnects.Inc()
		}
		sessions++
		return c.session(ctx, sink)
	})
	if err != nil {
		trace.Logger(ctx).Error("vision stream rejected", "addr", c.cfg.Addr, "error", err)
	}
	return err
}

func breakerMetric(_, to resilience.State) {
	metrics.VisionBreakerOpen.Set(boolGauge(to == resilience.Open))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
