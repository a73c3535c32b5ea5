package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"Chronicle/modules/kit/logx"
	"Chronicle/modules/kit/tracex"
)

const (
	traceIDHeader   = "x-trace-id"
	spanIDHeader    = "x-span-id"
	sessionIDHeader = "x-session-id"
)

// StreamClientInterceptor copies trace, span and session ids into outgoing metadata.
func StreamClientInterceptor() gogrpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *gogrpc.StreamDesc,
		cc *gogrpc.ClientConn,
		method string,
		streamer gogrpc.Streamer,
		opts ...gogrpc.CallOption,
	) (gogrpc.ClientStream, error) {
		return streamer(outgoing(ctx), desc, cc, method, opts...)
	}
}

// StreamServerInterceptor restores the ids and writes one access line per
// stream once the handler returns. The line carries the session id through
// the logger's context.
func StreamServerInterceptor(l logx.Logger) gogrpc.StreamServerInterceptor {
	if l == nil {
		l = logx.Nop()
	}
	return func(
		srv any,
		ss gogrpc.ServerStream,
		info *gogrpc.StreamServerInfo,
		handler gogrpc.StreamHandler,
	) error {
		ctx := incoming(ss.Context())
		start := time.Now()
		err := handler(srv, &serverStream{ServerStream: ss, ctx: ctx})

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("grpc_code", code.String()),
			zap.Duration("cost", time.Since(start)),
		}
		logx.ReportAccess(ctx, l, info.FullMethod, int(code), fields...)
		return err
	}
}

type serverStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (s *serverStream) Context() context.Context { return s.ctx }

func outgoing(ctx context.Context) context.Context {
	ctx = tracex.Ensure(ctx)
	kv := make([]string, 0, 6)
	if id, ok := tracex.TraceIDFrom(ctx); ok {
		kv = append(kv, traceIDHeader, id)
	}
	if id, ok := tracex.SpanIDFrom(ctx); ok {
		kv = append(kv, spanIDHeader, id)
	}
	if id, ok := tracex.SessionIDFrom(ctx); ok {
		kv = append(kv, sessionIDHeader, id)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func incoming(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	first := func(key string) string {
		if v := md.Get(key); len(v) > 0 {
			return v[0]
		}
		return ""
	}
	if id := first(traceIDHeader); id != "" {
		ctx = tracex.WithTraceID(ctx, id)
	}
	if id := first(spanIDHeader); id != "" {
		ctx = tracex.WithSpanID(ctx, id)
	}
	if id := first(sessionIDHeader); id != "" {
		ctx = tracex.WithSessionID(ctx, id)
	}
	return ctx
}
