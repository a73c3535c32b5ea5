// Package tracex 在 context 中携带关联 id（trace/span/session/peer）。
// logx 输出日志时会带上这些 id，各传输层负责把它们跨进程传递。
package tracex

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type key uint8

const (
	traceKey key = iota
	spanKey
	sessionKey
	peerKey
	numKeys
)

var fieldNames = [numKeys]string{"trace_id", "span_id", "session_id", "peer_id"}

func with(ctx context.Context, k key, v string) context.Context {
	return context.WithValue(ctx, k, v)
}

func from(ctx context.Context, k key) (string, bool) {
	s, ok := ctx.Value(k).(string)
	return s, ok && s != ""
}

func WithTraceID(ctx context.Context, id string) context.Context   { return with(ctx, traceKey, id) }
func WithSpanID(ctx context.Context, id string) context.Context    { return with(ctx, spanKey, id) }
func WithSessionID(ctx context.Context, id string) context.Context { return with(ctx, sessionKey, id) }
func WithPeerID(ctx context.Context, id string) context.Context    { return with(ctx, peerKey, id) }

func TraceIDFrom(ctx context.Context) (string, bool)   { return from(ctx, traceKey) }
func SpanIDFrom(ctx context.Context) (string, bool)    { return from(ctx, spanKey) }
func SessionIDFrom(ctx context.Context) (string, bool) { return from(ctx, sessionKey) }
func PeerIDFrom(ctx context.Context) (string, bool)    { return from(ctx, peerKey) }

// Each 对 ctx 上每个已设置的 id 调用 fn（日志字段名, 值）。
func Each(ctx context.Context, fn func(field, value string)) {
	if ctx == nil {
		return
	}
	for k := key(0); k < numKeys; k++ {
		if v, ok := from(ctx, k); ok {
			fn(fieldNames[k], v)
		}
	}
}

// NewTraceID 返回 16 字节随机数的十六进制串。
func NewTraceID() string { return randomHex(16) }

// NewSpanID 返回 8 字节随机数的十六进制串。
func NewSpanID() string { return randomHex(8) }

// Ensure 保证 ctx 上有 trace id（没有则生成），并换一个新的 span id。
func Ensure(ctx context.Context) context.Context {
	if _, ok := TraceIDFrom(ctx); !ok {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithSpanID(ctx, NewSpanID())
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}
