package trace

import (
	"context"
	"log/slog"
	"time"
)

// Span times one control operation, such as a set_active message.
type Span struct {
	name    string
	ctx     context.Context
	start   time.Time
	elapsed time.Duration
	attrs   []slog.Attr
}

// StartSpan opens a child span of ctx's trace, or a new trace, and returns a
// context carrying it.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent, _ := FromContext(ctx)
	ctx = WithContext(ctx, parent.Child())
	return ctx, &Span{name: name, ctx: ctx, start: time.Now()}
}

// SetAttr adds a key/value logged with the span.
func (s *Span) SetAttr(key string, val any) {
	s.attrs = append(s.attrs, slog.Any(key, val))
}

// End stamps the duration and logs the span: at warn with err when the
// operation failed, at debug otherwise. It returns err.
func (s *Span) End(err error) error {
	s.elapsed = time.Since(s.start)
	log := Logger(s.ctx)
	if err != nil {
		log.Warn("span failed", "span", s, "error", err)
		return err
	}
	log.Debug("span done", "span", s)
	return nil
}

// Duration is zero until End.
func (s *Span) Duration() time.Duration {
	return s.elapsed
}

// LogValue implements slog.LogValuer.
func (s *Span) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(s.attrs)+2)
	attrs = append(attrs, slog.String("name", s.name), slog.Duration("duration", s.elapsed))
	return slog.GroupValue(append(attrs, s.attrs...)...)
}
