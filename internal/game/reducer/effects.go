package reducer

import "Chronicle/internal/game/entity"

// EffectSnapshot records effect durations at the start of a turn, keyed by
// effect id.
type EffectSnapshot map[string]int

// SnapshotEffects captures the duration of every identified effect in s.
func SnapshotEffects(s *entity.GameState) EffectSnapshot {
	out := make(EffectSnapshot)
	forEachBearer(s, func(_ string, effects *[]entity.Effect) {
		for _, e := range *effects {
			if id := entity.Deref(e.ID); id != "" && e.Duration != nil {
				out[id] = *e.Duration
			}
		}
	})
	return out
}

// touchedSet holds effects whose duration the current patch set explicitly.
// Entries are keyed by id and by bearer+name so a name-matched effect that
// kept its old id is still recognised.
type touchedSet map[string]bool

func (ts touchedSet) add(bearer string, e entity.Effect) {
	if e.Duration == nil {
		return
	}
	if id := entity.Deref(e.ID); id != "" {
		ts["id\x00"+id] = true
	}
	if name := entity.Deref(e.Name); name != "" {
		ts["name\x00"+bearer+"\x00"+name] = true
	}
}

func (ts touchedSet) has(bearer string, e entity.Effect) bool {
	if id := entity.Deref(e.ID); id != "" && ts["id\x00"+id] {
		return true
	}
	name := entity.Deref(e.Name)
	return name != "" && ts["name\x00"+bearer+"\x00"+name]
}

func touchedEffects(p *entity.Patch) touchedSet {
	ts := make(touchedSet)
	mark := func(bearer string, effects []entity.Effect) {
		for _, e := range effects {
			ts.add(bearer, e)
		}
	}
	for _, group := range [][]entity.Character{p.Players, p.NPCs} {
		for _, c := range group {
			mark(entity.Deref(c.ID), c.Effects)
		}
	}
	for _, l := range p.Locations {
		mark(entity.Deref(l.ID), l.Effects)
	}
	if p.Combat != nil {
		for _, group := range [][]entity.Combatant{p.Combat.Enemies, p.Combat.Allies} {
			for _, c := range group {
				mark(entity.Deref(c.ID), c.Effects)
			}
		}
	}
	mark(partyBearer, p.PartyEffects)
	return ts
}

const partyBearer = "\x00party"

// forEachBearer visits every effect list in s with its bearer key.
func forEachBearer(s *entity.GameState, fn func(bearer string, effects *[]entity.Effect)) {
	for _, c := range s.Characters() {
		fn(entity.Deref(c.ID), &c.Effects)
	}
	for i := range s.Locations {
		fn(entity.Deref(s.Locations[i].ID), &s.Locations[i].Effects)
	}
	if s.Combat != nil {
		for i := range s.Combat.Enemies {
			fn(entity.Deref(s.Combat.Enemies[i].ID), &s.Combat.Enemies[i].Effects)
		}
		for i := range s.Combat.Allies {
			fn(entity.Deref(s.Combat.Allies[i].ID), &s.Combat.Allies[i].Effects)
		}
	}
	fn(partyBearer, &s.PartyEffects)
}

// tickEffects decrements every finite effect the patch did not touch,
// starting from its start-of-turn duration, and removes effects that reach
// zero. Touched effects keep the value the patch gave them.
func tickEffects(s *entity.GameState, touched touchedSet, prior EffectSnapshot) {
	forEachBearer(s, func(bearer string, effects *[]entity.Effect) {
		if *effects == nil {
			return
		}
		out := (*effects)[:0]
		for _, e := range *effects {
			if e.Duration == nil || *e.Duration == entity.IndefiniteDuration {
				out = append(out, e)
				continue
			}
			d := *e.Duration
			if !touched.has(bearer, e) {
				if p, ok := prior[entity.Deref(e.ID)]; ok {
					d = p
				}
				d--
			}
			if d <= 0 {
				continue
			}
			e.Duration = entity.Int(d)
			out = append(out, e)
		}
		*effects = out
	})
}
