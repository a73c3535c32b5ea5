package reducer

import (
	"Chronicle/internal/game/entity"
	"Chronicle/internal/merge"
)

// Entity-scoped sub-updates locate their owner by id, then name. An update
// whose owner is missing is dropped and counted, never fatal.

func (t *turn) applyWounds() {
	for _, wu := range t.p.Wounds {
		c := t.s.FindCharacter(entity.Deref(wu.CharacterID), entity.Deref(wu.CharacterName))
		if c == nil {
			t.drops.Wounds++
			continue
		}
		c.Wounds = merge.MergeField(t.r.engine, "wounds", c.Wounds, []entity.Wound{wu.Wound})
		c.Wounds = filter(c.Wounds, func(w entity.Wound) bool { return !entity.Deref(w.Healed) })
	}
}

func (t *turn) applyFlags() {
	for _, fu := range t.p.FlagUpdates {
		if fu.Key == "" {
			t.drops.Flags++
			continue
		}
		id, name := entity.Deref(fu.EntityID), entity.Deref(fu.EntityName)
		var flags *map[string]any
		if c := t.s.FindCharacter(id, name); c != nil {
			flags = &c.Flags
		} else if f := t.s.FindFaction(id, name); f != nil {
			flags = &f.Flags
		}
		if flags == nil {
			t.drops.Flags++
			continue
		}
		setFlag(flags, fu.Key, fu.Value)
	}
}

// setFlag stores value under key; a nil value removes the flag.
func setFlag(flags *map[string]any, key string, value any) {
	if value == nil {
		delete(*flags, key)
		return
	}
	if *flags == nil {
		*flags = make(map[string]any)
	}
	(*flags)[key] = merge.Clone(value)
}

func (t *turn) applyActivities() {
	for _, au := range t.p.Activities {
		c := t.s.FindCharacter(entity.Deref(au.EntityID), entity.Deref(au.EntityName))
		if c == nil {
			t.drops.Activities++
			continue
		}
		c.Activity = entity.Str(au.Activity)
	}
}
