package reducer

import (
	"math"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/merge"
)

// Threshold is the progress needed to leave level: floor(100 * level^2.5).
func Threshold(level int) int {
	if level < 1 {
		level = 1
	}
	return int(math.Floor(100 * math.Pow(float64(level), 2.5)))
}

func findCharacter(list []entity.Character, c *entity.Character) int {
	if id := entity.Deref(c.ID); id != "" {
		for i := range list {
			if entity.Deref(list[i].ID) == id {
				return i
			}
		}
	}
	if name := entity.Deref(c.Name); name != "" {
		for i := range list {
			if entity.Deref(list[i].Name) == name {
				return i
			}
		}
	}
	return -1
}

func (t *turn) applyCharacters(list []entity.Character, patches []entity.Character) []entity.Character {
	for i := range patches {
		cp := &patches[i]
		idx := findCharacter(list, cp)
		if idx < 0 {
			list = append(list, entity.Character{})
			idx = len(list) - 1
			if cp.Color == nil {
				cp.Color = entity.Str(ColorFor(identity(cp.ID, cp.Name)))
			}
			if cp.Level == nil {
				cp.Level = entity.Int(1)
			}
		}
		t.applyCharacter(&list[idx], cp)
	}
	return list
}

func (t *turn) applyCharacter(c *entity.Character, cp *entity.Character) {
	// absolute fields go through the merge engine; deltas, inventory and
	// equipment need game rules and are applied afterwards
	abs := *cp
	abs.HealthChange, abs.EnergyChange, abs.GoldChange, abs.XPChange = nil, nil, nil, nil
	abs.EquipChanges, abs.RemovedItemIDs, abs.Inventory = nil, nil, nil
	keepID := c.ID
	*c = merge.Merge(t.r.engine, *c, abs)
	if keepID != nil {
		c.ID = keepID
	}

	c.Health = addClamped(c.Health, cp.HealthChange, c.MaxHealth)
	c.Energy = addClamped(c.Energy, cp.EnergyChange, c.MaxEnergy)
	c.Gold = addClamped(c.Gold, cp.GoldChange, nil)
	if cp.XPChange != nil {
		c.XP = addClamped(c.XP, cp.XPChange, nil)
	}
	t.levelUp(c)

	t.applyInventory(c, cp.Inventory, cp.RemovedItemIDs)
	t.applyEquipment(c, cp.EquipChanges)
	c.Wounds = filter(c.Wounds, func(w entity.Wound) bool { return !entity.Deref(w.Healed) })
}

// addClamped returns cur+delta clamped to [0, max]; cur is kept when delta is absent.
func addClamped(cur, delta, max *int) *int {
	if delta == nil {
		return cur
	}
	v := entity.Deref(cur) + *delta
	if v < 0 {
		v = 0
	}
	if max != nil && *max > 0 && v > *max {
		v = *max
	}
	return &v
}

func (t *turn) levelUp(c *entity.Character) {
	if c.XP == nil {
		return
	}
	level := max(entity.Deref(c.Level), 1)
	xp := *c.XP
	gained := 0
	for need := Threshold(level); xp >= need; need = Threshold(level) {
		xp -= need
		level++
		gained++
	}
	if gained == 0 {
		return
	}
	points := gained * t.r.cfg.BonusPointsPerLevel
	c.Level = entity.Int(level)
	c.XP = entity.Int(xp)
	c.BonusPoints = entity.Int(entity.Deref(c.BonusPoints) + points)

	name := entity.Deref(c.Name)
	if name == "" {
		name = entity.Deref(c.ID)
	}
	if gained == 1 {
		t.logf("%s reached level %d and gained %d bonus points.", name, level, points)
		return
	}
	t.logf("%s gained %d levels, reaching level %d, and %d bonus points.", name, gained, level, points)
}
