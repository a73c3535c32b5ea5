package reducer

import (
	"math"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/merge"
)

func findItem(inv []entity.Item, id, name string) int {
	if id != "" {
		for i := range inv {
			if entity.Deref(inv[i].ID) == id {
				return i
			}
		}
	}
	if name != "" {
		for i := range inv {
			if entity.Deref(inv[i].Name) == name {
				return i
			}
		}
	}
	return -1
}

// applyInventory merges item patches one at a time so repeated entries in
// a patch stack onto each other, then turns depleted consumables into
// spent residuals and prunes empty stacks.
func (t *turn) applyInventory(c *entity.Character, items []entity.Item, removed []string) {
	inv := c.Inventory
	for _, ip := range items {
		idx := findItem(inv, entity.Deref(ip.ID), entity.Deref(ip.Name))

		count := 1
		if idx >= 0 {
			count = countOf(inv[idx])
		}
		switch {
		case ip.Count != nil:
			count = *ip.Count
			if ip.CountDelta != nil {
				count += *ip.CountDelta
			}
		case ip.CountDelta != nil && idx >= 0:
			count += *ip.CountDelta
		case ip.CountDelta != nil:
			count = *ip.CountDelta
		}

		abs := ip
		abs.Count = entity.Int(max(count, 0))
		abs.CountDelta, abs.ResourceDelta = nil, nil
		inv = merge.MergeField(t.r.engine, "inventory", inv, []entity.Item{abs})

		if ip.ResourceDelta != nil {
			if j := findItem(inv, entity.Deref(abs.ID), entity.Deref(abs.Name)); j >= 0 {
				inv[j].Resource = addClamped(inv[j].Resource, ip.ResourceDelta, inv[j].MaxResource)
			}
		}
	}

	gone := make(map[string]bool, len(removed))
	for _, id := range removed {
		if id != "" {
			gone[id] = true
		}
	}
	inv = t.spendDepleted(c, inv)
	for _, it := range inv {
		if id := entity.Deref(it.ID); id != "" && countOf(it) <= 0 {
			gone[id] = true
		}
	}
	c.Inventory = filter(inv, func(it entity.Item) bool {
		return countOf(it) > 0 && !gone[entity.Deref(it.ID)]
	})
	if len(gone) > 0 {
		unequip(c, gone)
	}
}

// countOf treats a missing count as a single item.
func countOf(it entity.Item) int {
	if it.Count == nil {
		return 1
	}
	return *it.Count
}

func depleted(it entity.Item) bool {
	return entity.Deref(it.Consumable) && it.Resource != nil && *it.Resource <= 0 && countOf(it) > 0
}

// spendDepleted converts one unit of every depleted consumable stack into
// its spent residual. There is one residual stack per source item.
func (t *turn) spendDepleted(c *entity.Character, inv []entity.Item) []entity.Item {
	for i := 0; i < len(inv); i++ {
		if !depleted(inv[i]) {
			continue
		}
		src := &inv[i]
		srcID := entity.Deref(src.ID)
		spentName := entity.Deref(src.SpentName)
		if spentName == "" {
			spentName = "Empty " + entity.Deref(src.Name)
		}

		j := -1
		for k := range inv {
			if k != i && srcID != "" && entity.Deref(inv[k].SpentFrom) == srcID {
				j = k
				break
			}
		}
		if j < 0 {
			j = findItem(inv, "", spentName)
			if j == i {
				j = -1
			}
		}
		if j >= 0 {
			inv[j].Count = entity.Int(countOf(inv[j]) + 1)
		} else {
			spent := entity.Item{
				Name:    entity.Str(spentName),
				Count:   entity.Int(1),
				OwnerID: c.ID,
			}
			if srcID != "" {
				spent.ID = entity.Str(srcID + "-spent")
				spent.SpentFrom = entity.Str(srcID)
			}
			if src.Value != nil {
				spent.Value = entity.Int(int(math.Floor(float64(*src.Value) * t.r.cfg.SpentFraction)))
			}
			inv = append(inv, spent)
			src = &inv[i]
		}

		left := countOf(*src) - 1
		src.Count = entity.Int(left)
		switch {
		case left > 0 && src.MaxResource != nil:
			src.Resource = entity.Int(*src.MaxResource)
		case left > 0:
			src.Resource = nil
		}
		t.logf("%s used up a %s.", displayName(c), entity.Deref(src.Name))
	}
	return inv
}

func displayName(c *entity.Character) string {
	if n := entity.Deref(c.Name); n != "" {
		return n
	}
	return entity.Deref(c.ID)
}
