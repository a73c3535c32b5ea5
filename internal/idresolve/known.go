package idresolve

import "Chronicle/internal/game/entity"

// Known answers the id of an existing entity the patch names without one.
// scope is the id of the enclosing entity, empty at the top level.
type Known interface {
	Lookup(kind, scope, name string) (string, bool)
}

// Index is a Known built from a state snapshot.
type Index map[string]string

func indexKey(kind, scope, name string) string {
	return kind + "\x00" + scope + "\x00" + name
}

func (x Index) Lookup(kind, scope, name string) (string, bool) {
	id, ok := x[indexKey(kind, scope, name)]
	return id, ok
}

func (x Index) put(kind, scope string, id, name *string) {
	if entity.Deref(id) == "" || entity.Deref(name) == "" {
		return
	}
	k := indexKey(kind, scope, *name)
	if _, dup := x[k]; !dup {
		x[k] = *id
	}
}

// IndexState records every named entity of s under the same kind and scope
// the resolver uses while walking a patch.
func IndexState(s *entity.GameState) Index {
	x := make(Index)
	for _, c := range s.Characters() {
		x.put("character", "", c.ID, c.Name)
		cid := entity.Deref(c.ID)
		for _, it := range c.Inventory {
			x.put("item", cid, it.ID, it.Name)
		}
		for _, ef := range c.Effects {
			x.put("effect", cid, ef.ID, ef.Name)
		}
		for _, w := range c.Wounds {
			x.put("wound", cid, w.ID, w.Name)
		}
	}
	for _, f := range s.Factions {
		x.put("faction", "", f.ID, f.Name)
	}
	for _, group := range [][]entity.Quest{s.ActiveQuests, s.CompletedQuests} {
		for _, q := range group {
			x.put("quest", "", q.ID, q.Name)
			for _, o := range q.Objectives {
				x.put("objective", entity.Deref(q.ID), o.ID, o.Name)
			}
		}
	}
	for _, l := range s.Locations {
		x.put("location", "", l.ID, l.Name)
		for _, ef := range l.Effects {
			x.put("effect", entity.Deref(l.ID), ef.ID, ef.Name)
		}
	}
	for _, ef := range s.PartyEffects {
		x.put("effect", "", ef.ID, ef.Name)
	}
	return x
}
