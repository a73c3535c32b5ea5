package entity

// Patch is the sparse effect of one turn as returned by the generator.
type Patch struct {
	Narrative                []string       `json:"narrative,omitempty" mapstructure:"narrative"`
	CombatLog                []string       `json:"combatLog,omitempty" mapstructure:"combatLog"`
	CurrentLocationID        *string        `json:"currentLocationId,omitempty" mapstructure:"currentLocationId"`
	InitialCurrentLocationID *string        `json:"initialCurrentLocationId,omitempty" mapstructure:"initialCurrentLocationId"`
	Players                  []Character    `json:"players,omitempty" mapstructure:"players"`
	NPCs                     []Character    `json:"npcs,omitempty" mapstructure:"npcs"`
	Factions                 []Faction      `json:"factions,omitempty" mapstructure:"factions"`
	Quests                   []Quest        `json:"quests,omitempty" mapstructure:"quests"`
	Locations                []Location     `json:"locations,omitempty" mapstructure:"locations"`
	WorldFlags               map[string]any `json:"worldFlags,omitempty" mapstructure:"worldFlags"`
	WorldEvents              []WorldEvent   `json:"worldEvents,omitempty" mapstructure:"worldEvents"`
	Combat                   *Combat        `json:"combat,omitempty" mapstructure:"combat"`
	PartyEffects             []Effect       `json:"partyEffects,omitempty" mapstructure:"partyEffects"`
	SuggestedActions         []string       `json:"suggestedActions,omitempty" mapstructure:"suggestedActions"`

	Wounds      []WoundUpdate    `json:"wounds,omitempty" mapstructure:"wounds"`
	FlagUpdates []FlagUpdate     `json:"flagUpdates,omitempty" mapstructure:"flagUpdates"`
	Activities  []ActivityUpdate `json:"activities,omitempty" mapstructure:"activities"`
	RemovedIDs  []string         `json:"removedIds,omitempty" mapstructure:"removedIds"`

	Moderation *Moderation `json:"moderation,omitempty" mapstructure:"moderation"`

	Extra map[string]any `json:"extra,omitempty" mapstructure:",remain"`
}

// WoundUpdate attaches or updates a wound on a character found by id, then name.
type WoundUpdate struct {
	CharacterID        *string `json:"characterId,omitempty" mapstructure:"characterId"`
	InitialCharacterID *string `json:"initialCharacterId,omitempty" mapstructure:"initialCharacterId"`
	CharacterName      *string `json:"characterName,omitempty" mapstructure:"characterName"`
	Wound              Wound   `json:"wound" mapstructure:"wound"`
}

// FlagUpdate sets one custom flag on a character or faction.
type FlagUpdate struct {
	EntityID        *string `json:"entityId,omitempty" mapstructure:"entityId"`
	InitialEntityID *string `json:"initialEntityId,omitempty" mapstructure:"initialEntityId"`
	EntityName      *string `json:"entityName,omitempty" mapstructure:"entityName"`
	Key             string  `json:"key" mapstructure:"key"`
	Value           any     `json:"value" mapstructure:"value"`
}

type ActivityUpdate struct {
	EntityID        *string `json:"entityId,omitempty" mapstructure:"entityId"`
	InitialEntityID *string `json:"initialEntityId,omitempty" mapstructure:"initialEntityId"`
	EntityName      *string `json:"entityName,omitempty" mapstructure:"entityName"`
	Activity        string  `json:"activity" mapstructure:"activity"`
}

// Moderation is the generator's content-policy verdict on the player input.
type Moderation struct {
	Score  float64 `json:"score" mapstructure:"score"`
	Reason string  `json:"reason,omitempty" mapstructure:"reason"`
}
