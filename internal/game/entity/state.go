package entity

// GameState is the canonical world as committed by the session owner.
type GameState struct {
	Turn              int            `json:"turn" mapstructure:"turn"`
	CurrentLocationID *string        `json:"currentLocationId,omitempty" mapstructure:"currentLocationId"`
	Players           []Character    `json:"players,omitempty" mapstructure:"players"`
	NPCs              []Character    `json:"npcs,omitempty" mapstructure:"npcs"`
	Factions          []Faction      `json:"factions,omitempty" mapstructure:"factions"`
	ActiveQuests      []Quest        `json:"activeQuests,omitempty" mapstructure:"activeQuests"`
	CompletedQuests   []Quest        `json:"completedQuests,omitempty" mapstructure:"completedQuests"`
	WorldFlags        map[string]any `json:"worldFlags,omitempty" mapstructure:"worldFlags"`
	WorldEvents       []WorldEvent   `json:"worldEvents,omitempty" mapstructure:"worldEvents"`
	Locations         []Location     `json:"locations,omitempty" mapstructure:"locations"`
	Combat            *Combat        `json:"combat,omitempty" mapstructure:"combat"`
	PartyEffects      []Effect       `json:"partyEffects,omitempty" mapstructure:"partyEffects"`
	SuggestedActions  []string       `json:"suggestedActions,omitempty" mapstructure:"suggestedActions"`
}

// Characters returns players followed by NPCs, as pointers into s.
func (s *GameState) Characters() []*Character {
	out := make([]*Character, 0, len(s.Players)+len(s.NPCs))
	for i := range s.Players {
		out = append(out, &s.Players[i])
	}
	for i := range s.NPCs {
		out = append(out, &s.NPCs[i])
	}
	return out
}

// FindCharacter locates a character by id, then by name.
func (s *GameState) FindCharacter(id, name string) *Character {
	chars := s.Characters()
	if id != "" {
		for _, c := range chars {
			if Deref(c.ID) == id {
				return c
			}
		}
	}
	if name != "" {
		for _, c := range chars {
			if Deref(c.Name) == name {
				return c
			}
		}
	}
	return nil
}

// FindFaction locates a faction by id, then by name.
func (s *GameState) FindFaction(id, name string) *Faction {
	if id != "" {
		for i := range s.Factions {
			if Deref(s.Factions[i].ID) == id {
				return &s.Factions[i]
			}
		}
	}
	if name != "" {
		for i := range s.Factions {
			if Deref(s.Factions[i].Name) == name {
				return &s.Factions[i]
			}
		}
	}
	return nil
}
