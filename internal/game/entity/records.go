package entity

// IndefiniteDuration marks an effect that never ticks down.
const IndefiniteDuration = 999

// Records below are shared by canonical state and turn patches. Every field
// is optional: a nil pointer, nil slice or nil map means "not mentioned".
// Fields ending in Change, Delta or Changes only ever appear in patches and
// are consumed by the reducer. Unknown generator fields land in Extra.

type Character struct {
	ID                *string           `json:"id,omitempty" mapstructure:"id"`
	InitialID         *string           `json:"initialId,omitempty" mapstructure:"initialId"`
	Name              *string           `json:"name,omitempty" mapstructure:"name"`
	Description       *string           `json:"description,omitempty" mapstructure:"description"`
	Color             *string           `json:"color,omitempty" mapstructure:"color"`
	Health            *int              `json:"health,omitempty" mapstructure:"health"`
	MaxHealth         *int              `json:"maxHealth,omitempty" mapstructure:"maxHealth"`
	Energy            *int              `json:"energy,omitempty" mapstructure:"energy"`
	MaxEnergy         *int              `json:"maxEnergy,omitempty" mapstructure:"maxEnergy"`
	Gold              *int              `json:"gold,omitempty" mapstructure:"gold"`
	XP                *int              `json:"xp,omitempty" mapstructure:"xp"`
	Level             *int              `json:"level,omitempty" mapstructure:"level"`
	BonusPoints       *int              `json:"bonusPoints,omitempty" mapstructure:"bonusPoints"`
	FactionID         *string           `json:"factionId,omitempty" mapstructure:"factionId"`
	InitialFactionID  *string           `json:"initialFactionId,omitempty" mapstructure:"initialFactionId"`
	LocationID        *string           `json:"locationId,omitempty" mapstructure:"locationId"`
	InitialLocationID *string           `json:"initialLocationId,omitempty" mapstructure:"initialLocationId"`
	Activity          *string           `json:"activity,omitempty" mapstructure:"activity"`
	Disposition       *string           `json:"disposition,omitempty" mapstructure:"disposition"`
	Stats             map[string]int    `json:"stats,omitempty" mapstructure:"stats"`
	Skills            []string          `json:"skills,omitempty" mapstructure:"skills"`
	Inventory         []Item            `json:"inventory,omitempty" mapstructure:"inventory"`
	Equipment         map[string]string `json:"equipment,omitempty" mapstructure:"equipment"`
	Effects           []Effect          `json:"effects,omitempty" mapstructure:"effects"`
	Wounds            []Wound           `json:"wounds,omitempty" mapstructure:"wounds"`
	Flags             map[string]any    `json:"flags,omitempty" mapstructure:"flags"`

	HealthChange   *int          `json:"healthChange,omitempty" mapstructure:"healthChange"`
	EnergyChange   *int          `json:"energyChange,omitempty" mapstructure:"energyChange"`
	GoldChange     *int          `json:"goldChange,omitempty" mapstructure:"goldChange"`
	XPChange       *int          `json:"xpChange,omitempty" mapstructure:"xpChange"`
	EquipChanges   []EquipChange `json:"equipChanges,omitempty" mapstructure:"equipChanges"`
	RemovedItemIDs []string      `json:"removedItemIds,omitempty" mapstructure:"removedItemIds"`

	Extra map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

type Item struct {
	ID             *string  `json:"id,omitempty" mapstructure:"id"`
	InitialID      *string  `json:"initialId,omitempty" mapstructure:"initialId"`
	Name           *string  `json:"name,omitempty" mapstructure:"name"`
	Description    *string  `json:"description,omitempty" mapstructure:"description"`
	Count          *int     `json:"count,omitempty" mapstructure:"count"`
	Consumable     *bool    `json:"consumable,omitempty" mapstructure:"consumable"`
	Resource       *int     `json:"resource,omitempty" mapstructure:"resource"`
	MaxResource    *int     `json:"maxResource,omitempty" mapstructure:"maxResource"`
	Value          *int     `json:"value,omitempty" mapstructure:"value"`
	Slot           *string  `json:"slot,omitempty" mapstructure:"slot"`
	TwoHanded      *bool    `json:"twoHanded,omitempty" mapstructure:"twoHanded"`
	SpentName      *string  `json:"spentName,omitempty" mapstructure:"spentName"`
	SpentFrom      *string  `json:"spentFrom,omitempty" mapstructure:"spentFrom"`
	OwnerID        *string  `json:"ownerId,omitempty" mapstructure:"ownerId"`
	InitialOwnerID *string  `json:"initialOwnerId,omitempty" mapstructure:"initialOwnerId"`
	Tags           []string `json:"tags,omitempty" mapstructure:"tags"`

	CountDelta    *int `json:"countDelta,omitempty" mapstructure:"countDelta"`
	ResourceDelta *int `json:"resourceDelta,omitempty" mapstructure:"resourceDelta"`

	Extra map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

// EquipChange writes or clears one slot. The item is located by ItemID,
// then ItemName, in the wearer's inventory.
type EquipChange struct {
	Slot          *string `json:"slot,omitempty" mapstructure:"slot"`
	ItemID        *string `json:"itemId,omitempty" mapstructure:"itemId"`
	InitialItemID *string `json:"initialItemId,omitempty" mapstructure:"initialItemId"`
	ItemName      *string `json:"itemName,omitempty" mapstructure:"itemName"`
	Unequip       *bool   `json:"unequip,omitempty" mapstructure:"unequip"`
	TwoHanded     *bool   `json:"twoHanded,omitempty" mapstructure:"twoHanded"`
}

type Effect struct {
	ID              *string  `json:"id,omitempty" mapstructure:"id"`
	InitialID       *string  `json:"initialId,omitempty" mapstructure:"initialId"`
	Name            *string  `json:"name,omitempty" mapstructure:"name"`
	Description     *string  `json:"description,omitempty" mapstructure:"description"`
	Duration        *int     `json:"duration,omitempty" mapstructure:"duration"`
	Potency         *int     `json:"potency,omitempty" mapstructure:"potency"`
	SourceID        *string  `json:"sourceId,omitempty" mapstructure:"sourceId"`
	InitialSourceID *string  `json:"initialSourceId,omitempty" mapstructure:"initialSourceId"`
	Tags            []string `json:"tags,omitempty" mapstructure:"tags"`

	Extra map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

type Wound struct {
	ID          *string `json:"id,omitempty" mapstructure:"id"`
	InitialID   *string `json:"initialId,omitempty" mapstructure:"initialId"`
	Name        *string `json:"name,omitempty" mapstructure:"name"`
	Severity    *string `json:"severity,omitempty" mapstructure:"severity"`
	Description *string `json:"description,omitempty" mapstructure:"description"`
	Healed      *bool   `json:"healed,omitempty" mapstructure:"healed"`

	Extra map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

type Faction struct {
	ID              *string        `json:"id,omitempty" mapstructure:"id"`
	InitialID       *string        `json:"initialId,omitempty" mapstructure:"initialId"`
	Name            *string        `json:"name,omitempty" mapstructure:"name"`
	Description     *string        `json:"description,omitempty" mapstructure:"description"`
	Color           *string        `json:"color,omitempty" mapstructure:"color"`
	Reputation      *int           `json:"reputation,omitempty" mapstructure:"reputation"`
	LeaderID        *string        `json:"leaderId,omitempty" mapstructure:"leaderId"`
	InitialLeaderID *string        `json:"initialLeaderId,omitempty" mapstructure:"initialLeaderId"`
	Members         []string       `json:"members,omitempty" mapstructure:"members"`
	Flags           map[string]any `json:"flags,omitempty" mapstructure:"flags"`

	Extra map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

// Quest status values.
const (
	QuestActive    = "active"
	QuestCompleted = "completed"
	QuestFailed    = "failed"
)

type Quest struct {
	ID             *string     `json:"id,omitempty" mapstructure:"id"`
	InitialID      *string     `json:"initialId,omitempty" mapstructure:"initialId"`
	Name           *string     `json:"name,omitempty" mapstructure:"name"`
	Description    *string     `json:"description,omitempty" mapstructure:"description"`
	Status         *string     `json:"status,omitempty" mapstructure:"status"`
	GiverID        *string     `json:"giverId,omitempty" mapstructure:"giverId"`
	InitialGiverID *string     `json:"initialGiverId,omitempty" mapstructure:"initialGiverId"`
	Reward         *string     `json:"reward,omitempty" mapstructure:"reward"`
	Objectives     []Objective `json:"objectives,omitempty" mapstructure:"objectives"`
	Log            []string    `json:"log,omitempty" mapstructure:"log"`

	Extra map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

type Objective struct {
	ID        *string `json:"id,omitempty" mapstructure:"id"`
	InitialID *string `json:"initialId,omitempty" mapstructure:"initialId"`
	Name      *string `json:"name,omitempty" mapstructure:"name"`
	Done      *bool   `json:"done,omitempty" mapstructure:"done"`
}

type Location struct {
	ID          *string  `json:"id,omitempty" mapstructure:"id"`
	InitialID   *string  `json:"initialId,omitempty" mapstructure:"initialId"`
	Name        *string  `json:"name,omitempty" mapstructure:"name"`
	Description *string  `json:"description,omitempty" mapstructure:"description"`
	Region      *string  `json:"region,omitempty" mapstructure:"region"`
	Discovered  *bool    `json:"discovered,omitempty" mapstructure:"discovered"`
	Exits       []Exit   `json:"exits,omitempty" mapstructure:"exits"`
	Effects     []Effect `json:"effects,omitempty" mapstructure:"effects"`
	Tags        []string `json:"tags,omitempty" mapstructure:"tags"`

	Extra map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

// Exit has no identity of its own; it is keyed by direction and destination.
type Exit struct {
	Direction         *string `json:"direction,omitempty" mapstructure:"direction"`
	LocationID        *string `json:"locationId,omitempty" mapstructure:"locationId"`
	InitialLocationID *string `json:"initialLocationId,omitempty" mapstructure:"initialLocationId"`
	Blocked           *bool   `json:"blocked,omitempty" mapstructure:"blocked"`
}

type Combat struct {
	Active  *bool       `json:"active,omitempty" mapstructure:"active"`
	Round   *int        `json:"round,omitempty" mapstructure:"round"`
	Enemies []Combatant `json:"enemies,omitempty" mapstructure:"enemies"`
	Allies  []Combatant `json:"allies,omitempty" mapstructure:"allies"`
}

type Combatant struct {
	ID                 *string  `json:"id,omitempty" mapstructure:"id"`
	InitialID          *string  `json:"initialId,omitempty" mapstructure:"initialId"`
	Name               *string  `json:"name,omitempty" mapstructure:"name"`
	Health             *int     `json:"health,omitempty" mapstructure:"health"`
	MaxHealth          *int     `json:"maxHealth,omitempty" mapstructure:"maxHealth"`
	CharacterID        *string  `json:"characterId,omitempty" mapstructure:"characterId"`
	InitialCharacterID *string  `json:"initialCharacterId,omitempty" mapstructure:"initialCharacterId"`
	Effects            []Effect `json:"effects,omitempty" mapstructure:"effects"`

	Extra map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

type WorldEvent struct {
	ID   *string `json:"id,omitempty" mapstructure:"id"`
	Turn *int    `json:"turn,omitempty" mapstructure:"turn"`
	Kind *string `json:"kind,omitempty" mapstructure:"kind"`
	Text *string `json:"text,omitempty" mapstructure:"text"`
}
