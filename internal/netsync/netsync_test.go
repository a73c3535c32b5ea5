package netsync

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/generator"
	"Chronicle/internal/session/statestore"
	"Chronicle/internal/shared/security"
	"Chronicle/internal/shared/transport/ws"
	"Chronicle/internal/turn"
	"Chronicle/modules/kit/errx"
	"Chronicle/modules/kit/logx"
)

type fakeConn struct {
	addr string
	fail error

	mu   sync.Mutex
	sent []Envelope
	done chan struct{}
	once sync.Once
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr, done: make(chan struct{})}
}

func (c *fakeConn) Send(_ context.Context, env Envelope) error {
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	c.sent = append(c.sent, env)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close()                { c.once.Do(func() { close(c.done) }) }
func (c *fakeConn) Done() <-chan struct{} { return c.done }
func (c *fakeConn) Addr() string          { return c.addr }

func (c *fakeConn) of(kind Kind) []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Envelope
	for _, env := range c.sent {
		if env.Kind == kind {
			out = append(out, env)
		}
	}
	return out
}

func lastSync(t *testing.T, c *fakeConn) FullSync {
	t.Helper()
	syncs := c.of(KindFullSync)
	require.NotEmpty(t, syncs, "no full-sync sent to %s", c.addr)
	fs := FullSync{}
	require.NoError(t, syncs[len(syncs)-1].Decode(&fs))
	return fs
}

func sessionStore(turnNo int) *statestore.Locked {
	return statestore.NewLocked(entity.NewBundle(entity.SessionContext{SessionID: "s1"}, entity.GameState{
		Turn: turnNo,
		Players: []entity.Character{{
			ID:   entity.Str("p1"),
			Name: entity.Str("Aria"),
			Inventory: []entity.Item{
				{ID: entity.Str("i1"), Name: entity.Str("Torch"), Count: entity.Int(1)},
			},
		}},
	}))
}

func snapshot(t *testing.T, s statestore.Store) *entity.Bundle {
	t.Helper()
	b, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	return b
}

func torchCount(t *testing.T, b *entity.Bundle) int {
	t.Helper()
	require.NotEmpty(t, b.State.Players)
	require.NotEmpty(t, b.State.Players[0].Inventory)
	return *b.State.Players[0].Inventory[0].Count
}

// the token is the peer id
func plainTokens(token, sessionID string) (string, error) {
	if token == "" || sessionID != "s1" {
		return "", errors.New("bad token")
	}
	return token, nil
}

func newHost(store statestore.Store) *Host {
	return NewHost("s1", "host", store, WithJoinVerifier(plainTokens))
}

func envelope(t *testing.T, kind Kind, from string, payload any) Envelope {
	t.Helper()
	env, err := NewEnvelope(kind, from, payload)
	require.NoError(t, err)
	return env
}

func join(t *testing.T, h *Host, peerID string) *fakeConn {
	t.Helper()
	c := newFakeConn(peerID)
	require.NoError(t, h.Handle(context.Background(), c, envelope(t, KindJoin, peerID, &Join{Token: peerID})))
	return c
}

type recordingGen struct {
	mu     sync.Mutex
	inputs []entity.TurnInput
	patch  *entity.Patch
}

func (g *recordingGen) Generate(_ context.Context, req generator.Request, _ generator.ProgressFunc) (*entity.Patch, error) {
	g.mu.Lock()
	g.inputs = append(g.inputs, req.Input)
	g.mu.Unlock()
	return g.patch, nil
}

func (g *recordingGen) seen() []entity.TurnInput {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]entity.TurnInput(nil), g.inputs...)
}

func hostWithCoordinator(store statestore.Store) (*Host, *recordingGen) {
	h := newHost(store)
	gen := &recordingGen{patch: &entity.Patch{Narrative: []string{"The gate falls."}}}
	h.Attach(turn.New(turn.Config{Role: turn.RoleHost, SessionID: "s1"}, store, gen, turn.WithBroadcaster(h)))
	return h, gen
}

func TestJoinSendsCompleteSnapshot(t *testing.T) {
	h := newHost(sessionStore(3))

	c1 := join(t, h, "p1")
	fs := lastSync(t, c1)
	assert.Equal(t, "join", fs.Reason)
	assert.Equal(t, 3, fs.Bundle.State.Turn)
	assert.Equal(t, 1, torchCount(t, fs.Bundle))
	assert.Equal(t, []string{"p1"}, fs.Members)

	join(t, h, "p2")
	assert.Equal(t, []string{"p1", "p2"}, lastSync(t, c1).Members)
	assert.Equal(t, []string{"p1", "p2"}, h.Members())
}

func TestJoinVerifiesSignedToken(t *testing.T) {
	t.Setenv(security.JoinSecretEnv, "test-secret-123")
	h := NewHost("s1", "host", sessionStore(1))

	good, err := security.AwardJoin("bren", "s1", time.Hour)
	require.NoError(t, err)
	other, err := security.AwardJoin("bren", "s2", time.Hour)
	require.NoError(t, err)

	err = h.Handle(context.Background(), newFakeConn("x"), envelope(t, KindJoin, "bren", &Join{Token: other}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJoinRejected))
	assert.Empty(t, h.Members())

	require.NoError(t, h.Handle(context.Background(), newFakeConn("y"), envelope(t, KindJoin, "bren", &Join{Token: good})))
	assert.Equal(t, []string{"bren"}, h.Members())
}

func TestHostIDCannotJoin(t *testing.T) {
	h := newHost(sessionStore(1))
	err := h.Handle(context.Background(), newFakeConn("x"), envelope(t, KindJoin, "host", &Join{Token: "host"}))
	assert.True(t, errors.Is(err, ErrJoinRejected))
}

func TestRejoinReplacesOldConnection(t *testing.T) {
	h := newHost(sessionStore(1))
	old := join(t, h, "p1")
	join(t, h, "p1")

	select {
	case <-old.Done():
	case <-time.After(time.Second):
		t.Fatal("old connection still open")
	}
	leaves := old.of(KindLeave)
	require.Len(t, leaves, 1)
	l := Leave{}
	require.NoError(t, leaves[0].Decode(&l))
	assert.Equal(t, "replaced", l.Reason)
	assert.Equal(t, []string{"p1"}, h.Members())
}

func TestNonMemberIsRejected(t *testing.T) {
	h := newHost(sessionStore(1))
	err := h.Handle(context.Background(), newFakeConn("x"), envelope(t, KindSyncRequest, "x", nil))
	assert.True(t, errors.Is(err, ErrNotMember))
}

func TestSyncRequestAnswersRequester(t *testing.T) {
	h := newHost(sessionStore(2))
	c1 := join(t, h, "p1")
	c2 := join(t, h, "p2")
	before := len(c2.of(KindFullSync))

	require.NoError(t, h.Handle(context.Background(), c1, envelope(t, KindSyncRequest, "p1", nil)))
	assert.Equal(t, "request", lastSync(t, c1).Reason)
	assert.Len(t, c2.of(KindFullSync), before)
}

func TestPeerTurnIsCommittedAndRebroadcast(t *testing.T) {
	store := sessionStore(3)
	h := newHost(store)
	c1 := join(t, h, "p1")
	c2 := join(t, h, "p2")

	optimistic := snapshot(t, store)
	optimistic.State.Players[0].Inventory[0].Count = entity.Int(2)
	optimistic.AppendInput(entity.TurnInput{ActorID: "p1", Text: "search"}, time.Now())
	optimistic.Logs.Narrative = append(optimistic.Logs.Narrative, "You find another torch.")
	sub := turn.Submission{SessionID: "s1", Input: entity.TurnInput{ActorID: "p1", Text: "search"}, Bundle: optimistic}

	require.NoError(t, h.Handle(context.Background(), c1, envelope(t, KindTurnSubmit, "p1", &sub)))

	b := snapshot(t, store)
	assert.Equal(t, 4, b.State.Turn)
	assert.Equal(t, 2, torchCount(t, b))
	assert.Equal(t, []string{"You find another torch."}, b.Logs.Narrative)
	require.Len(t, b.History, 1)
	assert.Equal(t, 4, b.History[0].Turn)

	fs := lastSync(t, c2)
	assert.Equal(t, "turn", fs.Reason)
	assert.Equal(t, 4, fs.Bundle.State.Turn)
}

func TestStaleTurnLosesAndResyncsSubmitter(t *testing.T) {
	store := sessionStore(3)
	h := newHost(store)
	c1 := join(t, h, "p1")

	stale := snapshot(t, store)
	stale.State.Turn = 2
	stale.State.Players[0].Inventory[0].Count = entity.Int(9)
	sub := turn.Submission{SessionID: "s1", Bundle: stale}

	err := h.Handle(context.Background(), c1, envelope(t, KindTurnSubmit, "p1", &sub))
	assert.True(t, errors.Is(err, ErrStaleTurn))
	assert.Equal(t, 1, torchCount(t, snapshot(t, store)))
	fs := lastSync(t, c1)
	assert.Equal(t, "stale", fs.Reason)
	assert.Equal(t, 3, fs.Bundle.State.Turn)
}

// A host edit made after the peer's last full-sync outranks the peer's turn.
func TestHostEditSinceLastSyncRejectsPeerTurn(t *testing.T) {
	ctx := context.Background()
	store := sessionStore(3)
	h := newHost(store)
	coord := turn.New(turn.Config{Role: turn.RoleHost, SessionID: "s1"}, store, &recordingGen{patch: &entity.Patch{}}, turn.WithBroadcaster(h))
	h.Attach(coord)
	c1 := join(t, h, "p1")
	base := lastSync(t, c1).Bundle

	require.NoError(t, coord.SetFlag(ctx, "gate_open", true))

	base.State.Players[0].Inventory[0].Count = entity.Int(2)
	sub := turn.Submission{SessionID: "s1", Bundle: base, BaseRevision: base.Revision}
	err := h.Handle(ctx, c1, envelope(t, KindTurnSubmit, "p1", &sub))
	require.True(t, errors.Is(err, ErrStaleTurn), "err = %v", err)

	b := snapshot(t, store)
	assert.Equal(t, true, b.State.WorldFlags["gate_open"])
	assert.Equal(t, 1, torchCount(t, b))
	assert.Equal(t, 3, b.State.Turn)
	fs := lastSync(t, c1)
	assert.Equal(t, "stale", fs.Reason)
	assert.Equal(t, b.Revision, fs.Bundle.Revision)

	// rebuilt on the resync it is accepted and keeps the edit
	rebuilt := fs.Bundle
	rebuilt.State.Players[0].Inventory[0].Count = entity.Int(2)
	sub = turn.Submission{SessionID: "s1", Bundle: rebuilt, BaseRevision: rebuilt.Revision}
	require.NoError(t, h.Handle(ctx, c1, envelope(t, KindTurnSubmit, "p1", &sub)))
	b = snapshot(t, store)
	assert.Equal(t, true, b.State.WorldFlags["gate_open"])
	assert.Equal(t, 2, torchCount(t, b))
	assert.Equal(t, 4, b.State.Turn)
}

func TestPeerStampsRevisionOfLastSync(t *testing.T) {
	ctx := context.Background()
	store := sessionStore(3)
	toHost := newFakeConn("host")
	p := NewPeer("p1", "s1", store)
	p.Connect(toHost)

	synced := snapshot(t, store)
	synced.Revision = 7
	require.NoError(t, p.Handle(ctx, toHost, envelope(t, KindFullSync, "host", &FullSync{Reason: "join", Bundle: synced})))
	require.NoError(t, p.SubmitTurn(ctx, turn.Submission{SessionID: "s1", Bundle: snapshot(t, store)}))

	submits := toHost.of(KindTurnSubmit)
	require.Len(t, submits, 1)
	sub := turn.Submission{}
	require.NoError(t, submits[0].Decode(&sub))
	assert.EqualValues(t, 7, sub.BaseRevision)
}

func TestSubmissionForOtherSessionIsBadRequest(t *testing.T) {
	store := sessionStore(3)
	h := newHost(store)
	c1 := join(t, h, "p1")

	sub := turn.Submission{SessionID: "s9", Bundle: snapshot(t, store)}
	err := h.Handle(context.Background(), c1, envelope(t, KindTurnSubmit, "p1", &sub))
	assert.True(t, errors.Is(err, errx.ErrBadRequest))
}

// A full-sync from the host discards whatever the peer applied optimistically.
func TestFullSyncWipesOptimisticOverlay(t *testing.T) {
	store := sessionStore(3)
	toHost := newFakeConn("host")
	p := NewPeer("p1", "s1", store)
	p.Connect(toHost)

	gen := generator.Func(func(context.Context, generator.Request, generator.ProgressFunc) (*entity.Patch, error) {
		return &entity.Patch{
			Narrative: []string{"You find another torch."},
			Players: []entity.Character{{
				ID:        entity.Str("p1"),
				Inventory: []entity.Item{{ID: entity.Str("i1"), CountDelta: entity.Int(1)}},
			}},
		}, nil
	})
	c := turn.New(turn.Config{Role: turn.RolePeer, SessionID: "s1"}, store, gen, turn.WithSubmitter(p))
	p.SetSyncer(c)

	out, err := c.RunTurn(context.Background(), entity.TurnInput{ActorID: "p1", Text: "search"})
	require.NoError(t, err)
	assert.Equal(t, turn.Submitted, out.Status)
	assert.Equal(t, 2, torchCount(t, snapshot(t, store)))
	assert.True(t, c.AwaitingAuthority())

	submits := toHost.of(KindTurnSubmit)
	require.Len(t, submits, 1)
	sub := turn.Submission{}
	require.NoError(t, submits[0].Decode(&sub))
	assert.Equal(t, 2, torchCount(t, sub.Bundle))

	authoritative := entity.NewBundle(entity.SessionContext{SessionID: "s1"}, entity.GameState{
		Turn: 4,
		Players: []entity.Character{{
			ID:   entity.Str("p1"),
			Name: entity.Str("Aria"),
			Inventory: []entity.Item{
				{ID: entity.Str("i1"), Name: entity.Str("Torch"), Count: entity.Int(1)},
			},
		}},
	})
	authoritative.Logs.Narrative = []string{"The torch sputters out."}

	env := envelope(t, KindFullSync, "host", &FullSync{Reason: "turn", Bundle: authoritative})
	require.NoError(t, p.Handle(context.Background(), toHost, env))

	b := snapshot(t, store)
	assert.Equal(t, 4, b.State.Turn)
	assert.Equal(t, 1, torchCount(t, b))
	assert.Equal(t, []string{"The torch sputters out."}, b.Logs.Narrative)
	assert.Empty(t, b.History)
	assert.False(t, c.AwaitingAuthority())
	assert.EqualValues(t, 1, p.Syncs())
}

func TestFullSyncForOtherSessionIsIgnored(t *testing.T) {
	store := sessionStore(3)
	p := NewPeer("p1", "s1", store)
	foreign := entity.NewBundle(entity.SessionContext{SessionID: "s2"}, entity.GameState{Turn: 9})

	err := p.Handle(context.Background(), nil, envelope(t, KindFullSync, "host", &FullSync{Bundle: foreign}))
	assert.True(t, errors.Is(err, errx.ErrBadRequest))
	assert.Equal(t, 3, snapshot(t, store).State.Turn)
}

func TestPeerSendFailureIsConnectionLost(t *testing.T) {
	p := NewPeer("p1", "s1", sessionStore(1))
	err := p.SubmitTurn(context.Background(), turn.Submission{SessionID: "s1"})
	assert.True(t, errors.Is(err, turn.ErrConnectionLost))

	broken := newFakeConn("host")
	broken.fail = errors.New("broken pipe")
	p.Connect(broken)
	err = p.RequestSync(context.Background())
	assert.True(t, errors.Is(err, turn.ErrConnectionLost))
}

func TestPeerForwardsActionEnvelopes(t *testing.T) {
	var got []Kind
	p := NewPeer("p1", "s1", sessionStore(1), WithActionObserver(func(env Envelope) { got = append(got, env.Kind) }))
	require.NoError(t, p.Handle(context.Background(), nil, envelope(t, KindActionRequest, "host", &ActionRequest{ActionID: "a1"})))
	require.NoError(t, p.Handle(context.Background(), nil, envelope(t, KindActionCancel, "host", &ActionCancel{ActionID: "a1"})))
	assert.Equal(t, []Kind{KindActionRequest, KindActionCancel}, got)
}

func TestCoordinatedActionFoldsContributions(t *testing.T) {
	store := sessionStore(3)
	h, gen := hostWithCoordinator(store)
	c1 := join(t, h, "p1")
	c2 := join(t, h, "p2")

	id, err := h.RequestAction(context.Background(), "p1", ActionRequest{Participants: []string{"p2"}, Prompt: "Storm the gate"})
	require.NoError(t, err)
	require.Len(t, c2.of(KindActionRequest), 1)

	out, err := h.SubmitAction(context.Background(), "p1", ActionSubmit{ActionID: id, Text: "I climb the wall"})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Empty(t, gen.seen())
	assert.Equal(t, []ActionView{{ID: id, Initiator: "p1", Prompt: "Storm the gate", Waiting: []string{"p2"}}}, h.PendingActions())

	_, err = h.SubmitAction(context.Background(), "p1", ActionSubmit{ActionID: id, Text: "again"})
	assert.True(t, errors.Is(err, errx.ErrBadRequest))

	require.NoError(t, h.Handle(context.Background(), c2, envelope(t, KindActionSubmit, "p2", &ActionSubmit{ActionID: id, Text: "I cover him"})))

	inputs := gen.seen()
	require.Len(t, inputs, 1)
	assert.Equal(t, entity.TurnInput{
		ActorID:   "p1",
		Text:      "Storm the gate\np1: I climb the wall\np2: I cover him",
		Composite: true,
	}, inputs[0])
	assert.Empty(t, h.PendingActions())

	b := snapshot(t, store)
	assert.Equal(t, 4, b.State.Turn)
	assert.Equal(t, []string{"The gate falls."}, b.Logs.Narrative)
	assert.Equal(t, 4, lastSync(t, c1).Bundle.State.Turn)
}

func TestLeavingParticipantIsDroppedFromRequirement(t *testing.T) {
	store := sessionStore(3)
	h, gen := hostWithCoordinator(store)
	join(t, h, "p1")
	c2 := join(t, h, "p2")

	id, err := h.RequestAction(context.Background(), "p1", ActionRequest{Participants: []string{"p2"}})
	require.NoError(t, err)
	_, err = h.SubmitAction(context.Background(), "p1", ActionSubmit{ActionID: id, Text: "I charge"})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), c2, envelope(t, KindLeave, "p2", &Leave{PeerID: "p2"})))

	inputs := gen.seen()
	require.Len(t, inputs, 1)
	assert.Equal(t, "p1: I charge", inputs[0].Text)
	assert.Equal(t, []string{"p1"}, h.Members())
	require.Len(t, c2.of(KindLeave), 1)
}

func TestOnlyInitiatorCancels(t *testing.T) {
	h, gen := hostWithCoordinator(sessionStore(3))
	join(t, h, "p1")
	c2 := join(t, h, "p2")

	id, err := h.RequestAction(context.Background(), "p1", ActionRequest{Participants: []string{"p2"}})
	require.NoError(t, err)

	err = h.Handle(context.Background(), c2, envelope(t, KindActionCancel, "p2", &ActionCancel{ActionID: id}))
	assert.True(t, errors.Is(err, errx.ErrBadRequest))

	require.NoError(t, h.CancelAction(context.Background(), "p1", id))
	require.Len(t, c2.of(KindActionCancel), 1)

	_, err = h.SubmitAction(context.Background(), "p2", ActionSubmit{ActionID: id, Text: "late"})
	assert.True(t, errors.Is(err, ErrUnknownAction))
	assert.Empty(t, gen.seen())
}

func TestActionNeedsPresentParticipants(t *testing.T) {
	h, _ := hostWithCoordinator(sessionStore(3))
	join(t, h, "p1")

	_, err := h.RequestAction(context.Background(), "p1", ActionRequest{Participants: []string{"ghost"}})
	assert.True(t, errors.Is(err, errx.ErrBadRequest))

	// the host's own player may take part
	_, err = h.RequestAction(context.Background(), "p1", ActionRequest{Participants: []string{"host"}})
	assert.NoError(t, err)
}

func TestDisconnectRemovesMember(t *testing.T) {
	h := newHost(sessionStore(1))
	c1 := join(t, h, "p1")
	c2 := join(t, h, "p2")

	c1.Close()
	require.Eventually(t, func() bool { return len(h.Members()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		syncs := c2.of(KindFullSync)
		fs := FullSync{}
		return len(syncs) > 0 && syncs[len(syncs)-1].Decode(&fs) == nil && fs.Reason == "leave"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJoinOverWebsocket(t *testing.T) {
	h := newHost(sessionStore(5))
	hostRouter := ws.NewRouter(logx.Nop())
	Route(hostRouter, h, HostKinds...)
	srv := httptest.NewServer(ws.NewServer(hostRouter, logx.Nop(), true))
	defer srv.Close()

	peerStore := statestore.NewLocked(entity.NewBundle(entity.SessionContext{SessionID: "s1"}, entity.GameState{}))
	p := NewPeer("p1", "s1", peerStore)
	peerRouter := ws.NewRouter(logx.Nop())
	Route(peerRouter, p, PeerKinds...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), peerRouter, logx.Nop())
	require.NoError(t, err)
	defer conn.Close()
	p.Connect(OverWS(conn))

	require.NoError(t, p.Join(ctx, "p1", "Bren"))
	require.Eventually(t, func() bool { return p.Syncs() > 0 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 5, snapshot(t, peerStore).State.Turn)
	assert.Equal(t, []string{"p1"}, h.Members())
}
