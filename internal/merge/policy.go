package merge

import (
	"reflect"
	"sort"
	"strings"
)

// Strategy decides how a patch array combines with the target array.
type Strategy uint8

const (
	// Fallback defers to the element shape: Concat for objects, Union for primitives.
	Fallback Strategy = iota
	// Replace drops the target array in favour of the patch array.
	Replace
	// Concat appends patch entries after target entries.
	Concat
	// MergeByKey pairs entries by identity, name or composite key and merges pairs.
	MergeByKey
	// Union appends patch entries not already present.
	Union
)

func (s Strategy) String() string {
	switch s {
	case Replace:
		return "replace"
	case Concat:
		return "concat"
	case MergeByKey:
		return "merge-by-key"
	case Union:
		return "union"
	default:
		return "fallback"
	}
}

// KeyFunc derives a composite key from one array entry.
type KeyFunc func(entry reflect.Value) (string, bool)

type Rule struct {
	Strategy  Strategy
	IDField   string
	NameField string
	Composite KeyFunc
}

// Table maps an array's field name (its JSON name) to a rule.
type Table map[string]Rule

// Lookup returns the rule for field. Unlisted fields get Concat for object
// entries and Union for primitive entries.
func (t Table) Lookup(field string, primitive bool) Rule {
	if r, ok := t[field]; ok && r.Strategy != Fallback {
		return r
	}
	if primitive {
		return Rule{Strategy: Union}
	}
	return Rule{Strategy: Concat}
}

// Fields lists the configured field names in order.
func (t Table) Fields() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// With returns a copy of t with extra rules applied on top.
func (t Table) With(extra Table) Table {
	out := make(Table, len(t)+len(extra))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// ByIDThenName is the usual entity rule.
func ByIDThenName() Rule {
	return Rule{Strategy: MergeByKey, IDField: "id", NameField: "name"}
}

// FieldsKey builds a composite key from the named fields; every field must be present.
func FieldsKey(fields ...string) KeyFunc {
	return func(entry reflect.Value) (string, bool) {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			s, ok := stringField(entry, f)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "|"), true
	}
}

// DefaultTable holds the game's array policies.
var DefaultTable = Table{
	// transient rosters and options
	"enemies":          {Strategy: Replace},
	"allies":           {Strategy: Replace},
	"suggestedActions": {Strategy: Replace},
	"options":          {Strategy: Replace},

	// append-only logs
	"worldEvents": {Strategy: Concat},
	"log":         {Strategy: Concat},
	"combatLog":   {Strategy: Concat},
	"narrative":   {Strategy: Concat},

	// entities
	"players":         ByIDThenName(),
	"npcs":            ByIDThenName(),
	"factions":        ByIDThenName(),
	"inventory":       ByIDThenName(),
	"effects":         ByIDThenName(),
	"partyEffects":    ByIDThenName(),
	"wounds":          ByIDThenName(),
	"quests":          ByIDThenName(),
	"activeQuests":    ByIDThenName(),
	"completedQuests": ByIDThenName(),
	"locations":       ByIDThenName(),
	"objectives":      ByIDThenName(),

	"exits":         {Strategy: MergeByKey, Composite: FieldsKey("direction", "locationId")},
	"relationships": {Strategy: MergeByKey, IDField: "targetId", NameField: "targetName"},

	"skills":  {Strategy: Union},
	"tags":    {Strategy: Union},
	"members": {Strategy: Union},
}
