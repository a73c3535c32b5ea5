package reducer

import "Chronicle/internal/game/entity"

const (
	SlotMainHand = "main_hand"
	SlotOffHand  = "off_hand"
)

func (t *turn) applyEquipment(c *entity.Character, changes []entity.EquipChange) {
	for _, ch := range changes {
		if !t.applyEquipChange(c, ch) {
			t.drops.Equipment++
		}
	}
}

func (t *turn) applyEquipChange(c *entity.Character, ch entity.EquipChange) bool {
	slot := entity.Deref(ch.Slot)
	idx := findItem(c.Inventory, entity.Deref(ch.ItemID), entity.Deref(ch.ItemName))
	itemID := entity.Deref(ch.ItemID)
	if idx >= 0 {
		itemID = entity.Deref(c.Inventory[idx].ID)
	}

	if entity.Deref(ch.Unequip) {
		if itemID == "" && slot != "" {
			itemID = c.Equipment[slot]
		}
		if itemID == "" || len(c.Equipment) == 0 {
			return false
		}
		// a two-handed item only comes off both hands if it really holds both
		if c.Equipment[SlotMainHand] == itemID && c.Equipment[SlotOffHand] == itemID {
			delete(c.Equipment, SlotMainHand)
			delete(c.Equipment, SlotOffHand)
			return true
		}
		for s, id := range c.Equipment {
			if id == itemID && (slot == "" || s == slot) {
				delete(c.Equipment, s)
			}
		}
		return true
	}

	if idx < 0 || itemID == "" {
		return false
	}
	item := c.Inventory[idx]
	twoHanded := entity.Deref(ch.TwoHanded) || entity.Deref(item.TwoHanded)
	if slot == "" {
		slot = entity.Deref(item.Slot)
	}
	if slot == "" && twoHanded {
		slot = SlotMainHand
	}
	if slot == "" {
		return false
	}
	if c.Equipment == nil {
		c.Equipment = make(map[string]string)
	}

	for s, id := range c.Equipment {
		if id == itemID {
			delete(c.Equipment, s)
		}
	}
	if twoHanded {
		c.Equipment[SlotMainHand] = itemID
		c.Equipment[SlotOffHand] = itemID
		return true
	}
	if isHand(slot) {
		// equipping one hand frees a two-handed item from both
		if held := c.Equipment[SlotMainHand]; held != "" && held == c.Equipment[SlotOffHand] {
			delete(c.Equipment, SlotMainHand)
			delete(c.Equipment, SlotOffHand)
		}
	}
	c.Equipment[slot] = itemID
	return true
}

func isHand(slot string) bool {
	return slot == SlotMainHand || slot == SlotOffHand
}

// unequip clears every slot holding one of the given item ids.
func unequip(c *entity.Character, ids map[string]bool) {
	for s, id := range c.Equipment {
		if ids[id] {
			delete(c.Equipment, s)
		}
	}
}
