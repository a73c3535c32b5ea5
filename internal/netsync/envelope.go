// Package netsync keeps peers' bundles in line with the host's: envelopes,
// the host's member and action bookkeeping, and the peer side that submits
// turns and applies full-syncs.
package netsync

import (
	"encoding/json"

	"Chronicle/internal/game/entity"
	"Chronicle/modules/kit/errx"
)

// Kind names an envelope as "group.handler" so it routes over ws unchanged.
type Kind string

const (
	KindTurnSubmit    Kind = "turn.submit"
	KindFullSync      Kind = "sync.full"
	KindSyncRequest   Kind = "sync.request"
	KindJoin          Kind = "session.join"
	KindLeave         Kind = "session.leave"
	KindActionRequest Kind = "action.request"
	KindActionSubmit  Kind = "action.submit"
	KindActionCancel  Kind = "action.cancel"
)

// HostKinds are the kinds a host accepts from peers.
var HostKinds = []Kind{KindJoin, KindLeave, KindSyncRequest, KindTurnSubmit, KindActionRequest, KindActionSubmit, KindActionCancel}

// PeerKinds are the kinds a peer accepts from the host.
var PeerKinds = []Kind{KindFullSync, KindLeave, KindActionRequest, KindActionCancel}

type Envelope struct {
	Kind    Kind            `json:"kind"`
	From    string          `json:"from,omitempty"`
	Seq     int64           `json:"seq"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(kind Kind, from string, payload any) (Envelope, error) {
	env := Envelope{Kind: kind, From: from}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return env, errx.ErrInternal.WithData("kind", string(kind)).WithCause(err)
	}
	env.Payload = raw
	return env, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return errx.ErrBadRequest.WithData("reason", "empty_payload").WithData("kind", string(e.Kind))
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errx.ErrBadRequest.WithData("kind", string(e.Kind)).WithCause(err)
	}
	return nil
}

type Join struct {
	Token string `json:"token"`
	Name  string `json:"name,omitempty"`
}

type Leave struct {
	PeerID string `json:"peerId"`
	Reason string `json:"reason,omitempty"`
}

// FullSync carries the complete canonical bundle; receivers replace theirs.
type FullSync struct {
	Reason  string         `json:"reason"`
	Bundle  *entity.Bundle `json:"bundle"`
	Members []string       `json:"members,omitempty"`
}

type ActionRequest struct {
	ActionID     string   `json:"actionId"`
	Initiator    string   `json:"initiator,omitempty"`
	Participants []string `json:"participants"`
	Prompt       string   `json:"prompt,omitempty"`
}

type ActionSubmit struct {
	ActionID string `json:"actionId"`
	Text     string `json:"text"`
}

type ActionCancel struct {
	ActionID string `json:"actionId"`
	Reason   string `json:"reason,omitempty"`
}
