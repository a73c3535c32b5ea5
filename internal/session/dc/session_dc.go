package dc

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/merge"
	"Chronicle/internal/session/port"
	"Chronicle/internal/shared/logs"
)

const (
	defaultFlushEvery = 3000 * time.Millisecond
	retryBackoff      = 200 * time.Millisecond
)

// SessionDC 在内存中持有会话数据，异步回写存储。
//
// 约束：
// - 持有者每次修改后调用 MarkDirty
// - Flush 生成带版本号的快照交给写协程，写协程只保存最新的待写快照
// - 绕过 DC 直接写存储的数据会被下一次 flush 覆盖
type SessionDC struct {
	repo       port.BundleRepository
	sessionID  string
	bundle     *entity.Bundle
	dirty      bool
	flushEvery time.Duration

	mu      sync.Mutex
	pending *port.Snapshot
	version uint64
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewSessionDC(repo port.BundleRepository, flushEvery time.Duration) *SessionDC {
	if flushEvery <= 0 {
		flushEvery = defaultFlushEvery
	}
	d := &SessionDC{
		repo:       repo,
		flushEvery: flushEvery,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go d.writerLoop()
	return d
}

// Load reads the bundle for sessionID. When the repository has none and
// seed is set, the seeded bundle is adopted and marked dirty.
func (d *SessionDC) Load(ctx context.Context, sessionID string, seed func() *entity.Bundle) (*entity.Bundle, error) {
	d.sessionID = sessionID
	b, err := d.repo.Load(ctx, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, port.ErrSessionNotFound) && seed != nil:
		b = seed()
		d.dirty = true
	default:
		return nil, err
	}
	d.bundle = b
	return b, nil
}

// Set installs b as the current bundle and marks it dirty.
func (d *SessionDC) Set(b *entity.Bundle) {
	d.bundle = b
	d.dirty = true
}

func (d *SessionDC) Bundle() *entity.Bundle {
	return d.bundle
}

func (d *SessionDC) MarkDirty() {
	d.dirty = true
}

func (d *SessionDC) IsDirty() bool {
	return d.bundle != nil && d.dirty
}

func (d *SessionDC) FlushEvery() time.Duration {
	return d.flushEvery
}

// Flush queues a snapshot of a dirty bundle for the writer.
func (d *SessionDC) Flush(ctx context.Context) {
	_ = ctx
	if !d.IsDirty() {
		return
	}
	d.enqueueLatest(d.buildNextSnapshot())
}

// FlushSync saves the current bundle before returning.
func (d *SessionDC) FlushSync(ctx context.Context) error {
	if d.bundle == nil {
		return nil
	}
	s := d.buildNextSnapshot()
	if err := d.repo.Save(ctx, s); err != nil {
		d.dirty = true
		return err
	}
	return nil
}

func (d *SessionDC) Close(ctx context.Context) error {
	d.Flush(ctx)

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.stop)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *SessionDC) buildNextSnapshot() *port.Snapshot {
	d.mu.Lock()
	d.version++
	version := d.version
	d.mu.Unlock()

	b := merge.Clone(*d.bundle)
	d.dirty = false
	return &port.Snapshot{SessionID: d.sessionID, Version: version, Bundle: &b}
}

func (d *SessionDC) enqueueLatest(s *port.Snapshot) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.pending == nil || d.pending.Version < s.Version {
		d.pending = s
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *SessionDC) popPending() *port.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.pending
	d.pending = nil
	return s
}

func (d *SessionDC) requeueOnError(s *port.Snapshot) {
	d.mu.Lock()
	if d.pending == nil || d.pending.Version < s.Version {
		d.pending = s
	}
	d.mu.Unlock()
}

func (d *SessionDC) writerLoop() {
	defer close(d.done)

	for {
		select {
		case <-d.wake:
			d.consumePending(false)
		case <-d.stop:
			d.consumePending(true)
			return
		}
	}
}

// consumePending saves until nothing is queued. While closing, a failed
// save is given up after a few tries instead of blocking shutdown.
func (d *SessionDC) consumePending(closing bool) {
	failures := 0
	for {
		s := d.popPending()
		if s == nil {
			return
		}
		err := d.repo.Save(context.Background(), s)
		if err == nil {
			failures = 0
			continue
		}
		failures++
		logs.Warn("session flush failed",
			zap.String("session_id", s.SessionID),
			zap.Uint64("version", s.Version),
			zap.Int("attempt", failures),
			zap.Error(err),
		)
		if closing && failures >= 3 {
			return
		}
		// a newer snapshot queued meanwhile wins over the requeued one
		d.requeueOnError(s)
		time.Sleep(retryBackoff)
	}
}
