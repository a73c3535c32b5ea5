package reducer

import (
	"Chronicle/internal/game/entity"
	"Chronicle/internal/merge"
)

func findQuest(list []entity.Quest, id, name string) int {
	if id != "" {
		for i := range list {
			if entity.Deref(list[i].ID) == id {
				return i
			}
		}
	}
	if name != "" {
		for i := range list {
			if entity.Deref(list[i].Name) == name {
				return i
			}
		}
	}
	return -1
}

func closed(status string) bool {
	return status == entity.QuestCompleted || status == entity.QuestFailed
}

// applyQuests merges quest patches into whichever list holds the quest and
// moves it when its status crosses between open and closed.
func (t *turn) applyQuests() {
	s := &t.s
	for _, qp := range t.p.Quests {
		id, name := entity.Deref(qp.ID), entity.Deref(qp.Name)

		inActive := findQuest(s.ActiveQuests, id, name)
		inDone := -1
		if inActive < 0 {
			inDone = findQuest(s.CompletedQuests, id, name)
		}

		var merged entity.Quest
		switch {
		case inActive >= 0:
			merged = t.mergeQuest(s.ActiveQuests[inActive], qp)
		case inDone >= 0:
			merged = t.mergeQuest(s.CompletedQuests[inDone], qp)
		default:
			merged = merge.Clone(qp)
			if merged.Status == nil {
				merged.Status = entity.Str(entity.QuestActive)
			}
			t.logf("New quest: %s.", entity.Deref(merged.Name))
		}
		status := entity.Deref(merged.Status)

		switch {
		case inActive >= 0 && !closed(status):
			s.ActiveQuests[inActive] = merged
		case inDone >= 0 && closed(status):
			s.CompletedQuests[inDone] = merged
		case closed(status):
			if inActive >= 0 {
				s.ActiveQuests = append(s.ActiveQuests[:inActive], s.ActiveQuests[inActive+1:]...)
			}
			s.CompletedQuests = append(s.CompletedQuests, merged)
			if status == entity.QuestFailed {
				t.logf("Quest failed: %s.", entity.Deref(merged.Name))
			} else {
				t.logf("Quest completed: %s.", entity.Deref(merged.Name))
			}
		default:
			if inDone >= 0 {
				s.CompletedQuests = append(s.CompletedQuests[:inDone], s.CompletedQuests[inDone+1:]...)
				t.logf("Quest reopened: %s.", entity.Deref(merged.Name))
			}
			s.ActiveQuests = append(s.ActiveQuests, merged)
		}
	}
}

func (t *turn) mergeQuest(cur, qp entity.Quest) entity.Quest {
	keepID := cur.ID
	out := merge.Merge(t.r.engine, cur, qp)
	if keepID != nil {
		out.ID = keepID
	}
	return out
}
