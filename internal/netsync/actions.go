package netsync

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/turn"
	"Chronicle/modules/kit/errx"
)

// pendingAction lives only on the host until every required participant has
// submitted, the initiator cancels, or everyone required has left.
type pendingAction struct {
	id        string
	initiator string
	prompt    string
	order     []string
	required  map[string]bool
	texts     map[string]string
}

func (a *pendingAction) ready() bool {
	for id := range a.required {
		if _, ok := a.texts[id]; !ok {
			return false
		}
	}
	return true
}

// fold turns the contributions into one composite input, in the order the
// participants were named.
func (a *pendingAction) fold() entity.TurnInput {
	var b strings.Builder
	if a.prompt != "" {
		b.WriteString(a.prompt)
		b.WriteByte('\n')
	}
	for _, id := range a.order {
		text, ok := a.texts[id]
		if !ok {
			continue
		}
		b.WriteString(id)
		b.WriteString(": ")
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return entity.TurnInput{ActorID: a.initiator, Text: strings.TrimRight(b.String(), "\n"), Composite: true}
}

// ActionView is a pending action as reported to callers.
type ActionView struct {
	ID        string   `json:"id"`
	Initiator string   `json:"initiator"`
	Prompt    string   `json:"prompt,omitempty"`
	Waiting   []string `json:"waiting"`
}

func (h *Host) present(peerID string) bool {
	return peerID == h.selfID || h.members.Has(peerID)
}

// RequestAction opens a coordinated action. The initiator is always a
// participant; every named participant must currently be present.
func (h *Host) RequestAction(ctx context.Context, initiator string, req ActionRequest) (string, error) {
	if req.ActionID == "" {
		req.ActionID = uuid.NewString()
	}
	order := []string{initiator}
	for _, p := range req.Participants {
		if p == "" || slices.Contains(order, p) {
			continue
		}
		if !h.present(p) {
			return "", errx.ErrBadRequest.WithData("reason", "unknown_participant").WithData("peer_id", p)
		}
		order = append(order, p)
	}
	a := &pendingAction{
		id:        req.ActionID,
		initiator: initiator,
		prompt:    req.Prompt,
		order:     order,
		required:  make(map[string]bool, len(order)),
		texts:     make(map[string]string, len(order)),
	}
	for _, p := range order {
		a.required[p] = true
	}

	h.mu.Lock()
	if _, dup := h.actions[a.id]; dup {
		h.mu.Unlock()
		return "", errx.ErrBadRequest.WithData("reason", "duplicate_action").WithData("action_id", a.id)
	}
	h.actions[a.id] = a
	h.mu.Unlock()

	h.log.Info("action requested", zap.String("action_id", a.id), zap.String("initiator", initiator), zap.Strings("participants", order))
	env, err := h.envelope(KindActionRequest, &ActionRequest{ActionID: a.id, Initiator: initiator, Participants: order, Prompt: a.prompt})
	if err != nil {
		return a.id, err
	}
	if err := h.fanout(ctx, env); err != nil {
		h.log.Warn("action request fanout incomplete", zap.Error(err))
	}
	return a.id, nil
}

// SubmitAction records peerID's contribution. The submission that completes
// the action runs the composite turn and returns its outcome.
func (h *Host) SubmitAction(ctx context.Context, peerID string, sub ActionSubmit) (*turn.Outcome, error) {
	h.mu.Lock()
	a := h.actions[sub.ActionID]
	if a == nil {
		h.mu.Unlock()
		return nil, ErrUnknownAction.WithData("action_id", sub.ActionID)
	}
	if !a.required[peerID] {
		h.mu.Unlock()
		return nil, errx.ErrBadRequest.WithData("reason", "not_participant").WithData("peer_id", peerID)
	}
	if _, done := a.texts[peerID]; done {
		h.mu.Unlock()
		return nil, errx.ErrBadRequest.WithData("reason", "already_submitted").WithData("peer_id", peerID)
	}
	a.texts[peerID] = sub.Text
	ready := a.ready()
	if ready {
		delete(h.actions, a.id)
	}
	h.mu.Unlock()

	if !ready {
		return nil, nil
	}
	return h.resolve(ctx, a)
}

func (h *Host) resolve(ctx context.Context, a *pendingAction) (*turn.Outcome, error) {
	h.log.Info("action resolved", zap.String("action_id", a.id), zap.Int("contributions", len(a.texts)))
	// a host coordinator broadcasts once the composite turn commits
	return h.runComposite(ctx, a.fold())
}

// CancelAction drops a pending action; only its initiator may.
func (h *Host) CancelAction(ctx context.Context, peerID, actionID string) error {
	h.mu.Lock()
	a := h.actions[actionID]
	if a == nil {
		h.mu.Unlock()
		return ErrUnknownAction.WithData("action_id", actionID)
	}
	if a.initiator != peerID {
		h.mu.Unlock()
		return errx.ErrBadRequest.WithData("reason", "not_initiator").WithData("peer_id", peerID)
	}
	delete(h.actions, actionID)
	h.mu.Unlock()

	h.announceCancel(ctx, actionID, "cancelled")
	return nil
}

func (h *Host) announceCancel(ctx context.Context, actionID, reason string) {
	h.log.Info("action cancelled", zap.String("action_id", actionID), zap.String("reason", reason))
	env, err := h.envelope(KindActionCancel, &ActionCancel{ActionID: actionID, Reason: reason})
	if err != nil {
		return
	}
	if err := h.fanout(ctx, env); err != nil {
		h.log.Warn("action cancel fanout incomplete", zap.Error(err))
	}
}

// dropParticipant removes a departed peer from every requirement. Actions
// left with nobody required are abandoned; those now complete resolve.
func (h *Host) dropParticipant(ctx context.Context, peerID string) {
	var ready []*pendingAction
	var abandoned []string
	h.mu.Lock()
	for id, a := range h.actions {
		if !a.required[peerID] {
			continue
		}
		delete(a.required, peerID)
		switch {
		case len(a.required) == 0:
			delete(h.actions, id)
			abandoned = append(abandoned, id)
		case a.ready():
			delete(h.actions, id)
			ready = append(ready, a)
		}
	}
	h.mu.Unlock()

	for _, id := range abandoned {
		h.announceCancel(ctx, id, "abandoned")
	}
	for _, a := range ready {
		if _, err := h.resolve(ctx, a); err != nil {
			h.log.Warn("composite turn failed", zap.String("action_id", a.id), zap.Error(err))
		}
	}
}

// PendingActions lists open actions and who they still wait for.
func (h *Host) PendingActions() []ActionView {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ActionView, 0, len(h.actions))
	for _, a := range h.actions {
		v := ActionView{ID: a.id, Initiator: a.initiator, Prompt: a.prompt}
		for _, p := range a.order {
			if _, done := a.texts[p]; a.required[p] && !done {
				v.Waiting = append(v.Waiting, p)
			}
		}
		out = append(out, v)
	}
	slices.SortFunc(out, func(x, y ActionView) int { return strings.Compare(x.ID, y.ID) })
	return out
}
