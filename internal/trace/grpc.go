package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryClientInterceptor sends ctx's ids with health checks.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(outgoing(ctx), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor sends ctx's ids when a frame stream opens.
func StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(outgoing(ctx), desc, cc, method, opts...)
	}
}

// StreamServerInterceptor continues the client's trace on a stream, so a Go
// landmark server logs under the caller's trace id.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &tracedStream{ServerStream: ss, ctx: incoming(ss.Context())})
	}
}

type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context { return s.ctx }

// outgoing writes ctx's trace, starting one if needed, to outgoing metadata.
// The receiver treats our span as its parent.
func outgoing(ctx context.Context) context.Context {
	tc, ok := FromContext(ctx)
	if !ok {
		tc = New()
		ctx = WithContext(ctx, tc)
	}
	return metadata.AppendToOutgoingContext(ctx, TraceIDKey, tc.TraceID, SpanIDKey, tc.SpanID)
}

func incoming(ctx context.Context) context.Context {
	md, _ := metadata.FromIncomingContext(ctx)
	return WithContext(ctx, Continue(first(md, TraceIDKey), first(md, SpanIDKey)))
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
