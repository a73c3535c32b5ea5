package generator

import (
	"Chronicle/internal/game/entity"
	"Chronicle/internal/merge"
)

// DefaultContextEvents bounds the recent events and narrative lines a
// projection carries.
const DefaultContextEvents = 8

// Projection is the read-only view of the session handed to the generator.
type Projection struct {
	Setting          string              `json:"setting,omitempty"`
	Premise          string              `json:"premise,omitempty"`
	Turn             int                 `json:"turn"`
	Location         *entity.Location    `json:"location,omitempty"`
	Party            []entity.Character  `json:"party,omitempty"`
	NPCs             []entity.Character  `json:"npcs,omitempty"`
	Factions         []entity.Faction    `json:"factions,omitempty"`
	ActiveQuests     []entity.Quest      `json:"activeQuests,omitempty"`
	WorldFlags       map[string]any      `json:"worldFlags,omitempty"`
	Combat           *entity.Combat      `json:"combat,omitempty"`
	PartyEffects     []entity.Effect     `json:"partyEffects,omitempty"`
	RecentEvents     []entity.WorldEvent `json:"recentEvents,omitempty"`
	RecentNarrative  []string            `json:"recentNarrative,omitempty"`
	SuggestedActions []string            `json:"suggestedActions,omitempty"`
}

// Project derives a projection from b. The result shares no memory with b.
// NPCs are limited to those at the current location, or all of them when
// the party has no known location.
func Project(b *entity.Bundle, events int) Projection {
	if events <= 0 {
		events = DefaultContextEvents
	}
	s := &b.State
	here := entity.Deref(s.CurrentLocationID)

	p := Projection{
		Setting:          b.Context.Setting,
		Premise:          b.Context.Premise,
		Turn:             s.Turn,
		Party:            s.Players,
		Factions:         s.Factions,
		ActiveQuests:     s.ActiveQuests,
		WorldFlags:       s.WorldFlags,
		Combat:           s.Combat,
		PartyEffects:     s.PartyEffects,
		RecentEvents:     tail(s.WorldEvents, events),
		RecentNarrative:  tail(b.Logs.Narrative, events),
		SuggestedActions: s.SuggestedActions,
	}
	for i := range s.Locations {
		if here != "" && entity.Deref(s.Locations[i].ID) == here {
			p.Location = &s.Locations[i]
			break
		}
	}
	for _, n := range s.NPCs {
		if here == "" || n.LocationID == nil || *n.LocationID == here {
			p.NPCs = append(p.NPCs, n)
		}
	}
	return merge.Clone(p)
}

func tail[T any](in []T, n int) []T {
	if len(in) <= n {
		return in
	}
	return in[len(in)-n:]
}
