// Package reducer folds a resolved turn patch into the canonical state.
package reducer

import (
	"fmt"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/merge"
	"Chronicle/modules/kit/errx"
)

const CodeApplyFailed errx.Code = "TURN_APPLY_FAILED"

var ErrApplyFailed = errx.NewSys(CodeApplyFailed, "patch could not be applied")

type Config struct {
	BonusPointsPerLevel int
	// SpentFraction scales the value of a spent residual relative to its source.
	SpentFraction float64
}

func DefaultConfig() Config {
	return Config{BonusPointsPerLevel: 3, SpentFraction: 0.25}
}

// Drops counts sub-updates discarded because their owner could not be found.
type Drops struct {
	Wounds     int `json:"wounds"`
	Flags      int `json:"flags"`
	Activities int `json:"activities"`
	Equipment  int `json:"equipment"`
}

func (d Drops) Total() int { return d.Wounds + d.Flags + d.Activities + d.Equipment }

type Result struct {
	State     entity.GameState
	Narrative []string
	Combat    []string
	Dropped   Drops
}

type Reducer struct {
	engine *merge.Engine
	cfg    Config
}

func New(engine *merge.Engine, cfg Config) *Reducer {
	if engine == nil {
		engine = merge.Default()
	}
	if cfg.BonusPointsPerLevel <= 0 {
		cfg.BonusPointsPerLevel = DefaultConfig().BonusPointsPerLevel
	}
	if cfg.SpentFraction <= 0 || cfg.SpentFraction > 1 {
		cfg.SpentFraction = DefaultConfig().SpentFraction
	}
	return &Reducer{engine: engine, cfg: cfg}
}

// Reduce applies patch to state and returns the next state with the log
// lines the turn produced. prior holds effect durations as they were at the
// start of the turn; effects only tick when advancing is set. Neither state
// nor patch is modified, and on error nothing is returned.
func (r *Reducer) Reduce(state entity.GameState, patch entity.Patch, prior EffectSnapshot, advancing bool) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{}
			err = ErrApplyFailed.WithCause(fmt.Errorf("%v", p))
		}
	}()

	t := &turn{
		r:     r,
		s:     merge.Clone(state),
		p:     merge.Clone(patch),
		prior: prior,
	}
	t.narrative = append(t.narrative, t.p.Narrative...)
	t.combat = append(t.combat, t.p.CombatLog...)
	touched := touchedEffects(&t.p)

	t.s.Players = t.applyCharacters(t.s.Players, t.p.Players)
	t.s.NPCs = t.applyCharacters(t.s.NPCs, t.p.NPCs)
	t.applyFactions()
	t.applyQuests()
	t.applyWorld()
	t.applyWounds()
	t.applyFlags()
	t.applyActivities()
	t.applyRemovals()
	if advancing {
		tickEffects(&t.s, touched, prior)
	}

	return Result{
		State:     t.s,
		Narrative: t.narrative,
		Combat:    t.combat,
		Dropped:   t.drops,
	}, nil
}

// turn is the scratch space of one Reduce call.
type turn struct {
	r         *Reducer
	s         entity.GameState
	p         entity.Patch
	prior     EffectSnapshot
	narrative []string
	combat    []string
	drops     Drops
}

func (t *turn) logf(format string, args ...any) {
	t.narrative = append(t.narrative, fmt.Sprintf(format, args...))
}

func (t *turn) applyWorld() {
	e := t.r.engine
	s, p := &t.s, &t.p

	s.Locations = merge.MergeField(e, "locations", s.Locations, p.Locations)
	if p.CurrentLocationID != nil {
		s.CurrentLocationID = entity.Str(*p.CurrentLocationID)
	}
	s.WorldFlags = merge.MergeField(e, "worldFlags", s.WorldFlags, p.WorldFlags)

	events := make([]entity.WorldEvent, 0, len(p.WorldEvents))
	for _, ev := range p.WorldEvents {
		if ev.Turn == nil {
			ev.Turn = entity.Int(s.Turn + 1)
		}
		events = append(events, ev)
	}
	s.WorldEvents = merge.MergeField(e, "worldEvents", s.WorldEvents, events)

	if p.Combat != nil {
		if s.Combat == nil {
			s.Combat = &entity.Combat{}
		}
		merged := merge.Merge(e, *s.Combat, *p.Combat)
		s.Combat = &merged
	}
	s.PartyEffects = merge.MergeField(e, "partyEffects", s.PartyEffects, p.PartyEffects)
	s.SuggestedActions = merge.MergeField(e, "suggestedActions", s.SuggestedActions, p.SuggestedActions)
}

func (t *turn) applyFactions() {
	known := make(map[string]bool, len(t.s.Factions))
	for _, f := range t.s.Factions {
		known[entity.Deref(f.ID)] = true
	}
	t.s.Factions = merge.MergeField(t.r.engine, "factions", t.s.Factions, t.p.Factions)
	for i := range t.s.Factions {
		f := &t.s.Factions[i]
		if f.Color == nil && !known[entity.Deref(f.ID)] {
			f.Color = entity.Str(ColorFor(identity(f.ID, f.Name)))
		}
	}
}

func (t *turn) applyRemovals() {
	if len(t.p.RemovedIDs) == 0 {
		return
	}
	gone := make(map[string]bool, len(t.p.RemovedIDs))
	for _, id := range t.p.RemovedIDs {
		if id != "" {
			gone[id] = true
		}
	}
	keep := func(id *string) bool { return !gone[entity.Deref(id)] }

	s := &t.s
	s.NPCs = filter(s.NPCs, func(c entity.Character) bool { return keep(c.ID) })
	s.Factions = filter(s.Factions, func(f entity.Faction) bool { return keep(f.ID) })
	s.Locations = filter(s.Locations, func(l entity.Location) bool { return keep(l.ID) })
	s.ActiveQuests = filter(s.ActiveQuests, func(q entity.Quest) bool { return keep(q.ID) })
	s.CompletedQuests = filter(s.CompletedQuests, func(q entity.Quest) bool { return keep(q.ID) })
	s.PartyEffects = filter(s.PartyEffects, func(e entity.Effect) bool { return keep(e.ID) })
	if s.Combat != nil {
		s.Combat.Enemies = filter(s.Combat.Enemies, func(c entity.Combatant) bool { return keep(c.ID) })
		s.Combat.Allies = filter(s.Combat.Allies, func(c entity.Combatant) bool { return keep(c.ID) })
	}
}

func filter[T any](in []T, keep func(T) bool) []T {
	if in == nil {
		return nil
	}
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func identity(id, name *string) string {
	if s := entity.Deref(id); s != "" {
		return s
	}
	return entity.Deref(name)
}
