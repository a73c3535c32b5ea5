package generator

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-viper/mapstructure/v2"

	"Chronicle/internal/game/entity"
	"Chronicle/modules/kit/errx"
)

const CodeMalformedPatch errx.Code = "GENERATOR_MALFORMED_PATCH"

var ErrMalformedPatch = errx.NewSys(CodeMalformedPatch, "generator returned a malformed patch")

// DecodePatch turns a loosely typed generator payload into a Patch. Numbers
// may arrive as floats or strings; unknown fields are kept in Extra.
func DecodePatch(raw map[string]any) (*entity.Patch, error) {
	var p entity.Patch
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, ErrMalformedPatch.WithCause(err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodePatch is the inverse of DecodePatch, producing JSON-shaped values.
// Extra entries are written back inline next to the known fields.
func EncodePatch(p *entity.Patch) (map[string]any, error) {
	m, err := toMap(p)
	if err != nil {
		return nil, err
	}
	hoistExtra(m)
	return m, nil
}

func hoistExtra(v any) {
	switch t := v.(type) {
	case map[string]any:
		if extra, ok := t["extra"].(map[string]any); ok {
			delete(t, "extra")
			for k, x := range extra {
				if _, taken := t[k]; !taken {
					t[k] = x
				}
			}
		}
		for _, x := range t {
			hoistExtra(x)
		}
	case []any:
		for _, x := range t {
			hoistExtra(x)
		}
	}
}

// Validate rejects patches the reducer cannot interpret: identity-bearing
// records with neither id nor name, and a moderation score that is not a
// finite number.
func Validate(p *entity.Patch) error {
	for i, c := range p.Players {
		if anonymous(c.ID, c.InitialID, c.Name) {
			return malformed("players[%d] has no id or name", i)
		}
	}
	for i, c := range p.NPCs {
		if anonymous(c.ID, c.InitialID, c.Name) {
			return malformed("npcs[%d] has no id or name", i)
		}
	}
	for i, f := range p.Factions {
		if anonymous(f.ID, f.InitialID, f.Name) {
			return malformed("factions[%d] has no id or name", i)
		}
	}
	for i, q := range p.Quests {
		if anonymous(q.ID, q.InitialID, q.Name) {
			return malformed("quests[%d] has no id or name", i)
		}
	}
	for i, l := range p.Locations {
		if anonymous(l.ID, l.InitialID, l.Name) {
			return malformed("locations[%d] has no id or name", i)
		}
	}
	if m := p.Moderation; m != nil && (math.IsNaN(m.Score) || math.IsInf(m.Score, 0)) {
		return malformed("moderation score is not finite")
	}
	return nil
}

func anonymous(id, initialID, name *string) bool {
	return entity.Deref(id) == "" && entity.Deref(initialID) == "" && entity.Deref(name) == ""
}

func malformed(format string, args ...any) error {
	return ErrMalformedPatch.WithCause(fmt.Errorf(format, args...))
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeRequest flattens a request into JSON-shaped values.
func EncodeRequest(req Request) (map[string]any, error) {
	return toMap(req)
}

func DecodeRequest(raw map[string]any) (Request, error) {
	var req Request
	b, err := json.Marshal(raw)
	if err != nil {
		return req, err
	}
	err = json.Unmarshal(b, &req)
	return req, err
}
