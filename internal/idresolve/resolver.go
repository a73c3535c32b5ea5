package idresolve

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// DefaultRefs maps every temporary reference field to the permanent field
// it resolves into.
var DefaultRefs = map[string]string{
	"initialFactionId":         "factionId",
	"initialItemId":            "itemId",
	"initialTargetId":          "targetId",
	"initialOwnerId":           "ownerId",
	"initialLocationId":        "locationId",
	"initialCurrentLocationId": "currentLocationId",
	"initialQuestId":           "questId",
	"initialGiverId":           "giverId",
	"initialLeaderId":          "leaderId",
	"initialSourceId":          "sourceId",
	"initialCharacterId":       "characterId",
	"initialEntityId":          "entityId",
}

const (
	idField      = "id"
	initialField = "initialId"
	nameField    = "name"
)

var ErrNotPointer = errors.New("idresolve: patch must be a non-nil pointer")

// Result describes one resolution.
type Result struct {
	// Mapping is temporary id -> permanent id.
	Mapping map[string]string
	// Assigned counts ids minted or looked up for entities lacking one.
	Assigned int
	// External lists references to ids nothing in the patch declared. They
	// already name a permanent entity and are copied through unchanged.
	External []string
}

// Resolver assigns permanent ids and rewrites temporary references.
type Resolver struct {
	gen  IDGenerator
	refs map[string]string
}

func New(gen IDGenerator, refs map[string]string) *Resolver {
	if gen == nil {
		gen = UUIDGenerator{}
	}
	if refs == nil {
		refs = DefaultRefs
	}
	return &Resolver{gen: gen, refs: refs}
}

// Resolve walks patch (any depth, through structs, pointers, slices and
// string-keyed maps) twice: first giving every entity a permanent id and
// recording temporary ids, then copying permanent ids into every reference
// field that still names a temporary one. patch is modified in place.
func (r *Resolver) Resolve(patch any, known Known) (Result, error) {
	v := reflect.ValueOf(patch)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return Result{}, ErrNotPointer
	}
	res := Result{Mapping: make(map[string]string)}
	a := &assigner{gen: r.gen, known: known, res: &res}
	a.walk(v, "")
	s := &substituter{refs: r.refs, res: &res}
	s.walk(v)
	sort.Strings(res.External)
	return res, nil
}

// Unresolved reports temporary reference fields that still have no
// permanent counterpart. A resolved patch yields nothing.
func (r *Resolver) Unresolved(patch any) []string {
	var out []string
	visit(reflect.ValueOf(patch), func(node reflect.Value) {
		for temp, perm := range r.refs {
			if t, ok := readString(node, temp); ok {
				if _, has := readString(node, perm); !has {
					out = append(out, temp+"="+t)
				}
			}
		}
	})
	sort.Strings(out)
	return out
}

type assigner struct {
	gen   IDGenerator
	known Known
	res   *Result
}

func (a *assigner) walk(v reflect.Value, scope string) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			a.walk(v.Elem(), scope)
		}
	case reflect.Struct:
		if hasField(v.Type(), idField) {
			scope = a.identify(v, kindOf(v), scope)
		}
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				a.walk(v.Field(i), scope)
			}
		}
	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String {
			return
		}
		if isMapEntity(v) {
			scope = a.identify(v, "entity", scope)
		}
		iter := v.MapRange()
		for iter.Next() {
			a.walk(iter.Value(), scope)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			a.walk(v.Index(i), scope)
		}
	}
}

// identify makes sure node has a permanent id and returns it.
func (a *assigner) identify(node reflect.Value, kind, scope string) string {
	temp, hasTemp := readString(node, initialField)
	id, ok := readString(node, idField)
	if !ok {
		switch {
		case hasTemp && a.res.Mapping[temp] != "":
			id = a.res.Mapping[temp]
		default:
			if name, named := readString(node, nameField); named && a.known != nil {
				id, ok = a.known.Lookup(kind, scope, name)
			}
			if !ok {
				id = a.gen.NewID(kind)
			}
		}
		writeString(node, idField, id)
		a.res.Assigned++
	}
	if hasTemp {
		if _, seen := a.res.Mapping[temp]; !seen {
			a.res.Mapping[temp] = id
		}
	}
	return id
}

type substituter struct {
	refs map[string]string
	res  *Result
}

func (s *substituter) walk(v reflect.Value) {
	visit(v, func(node reflect.Value) {
		for temp, perm := range s.refs {
			t, ok := readString(node, temp)
			if !ok {
				continue
			}
			if id, found := s.res.Mapping[t]; found {
				writeString(node, perm, id)
				continue
			}
			if _, has := readString(node, perm); !has {
				s.res.External = append(s.res.External, temp+"="+t)
				writeString(node, perm, t)
			}
		}
	})
}

// visit calls fn on every struct and string-keyed map reachable from v.
func visit(v reflect.Value, fn func(reflect.Value)) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			visit(v.Elem(), fn)
		}
	case reflect.Struct:
		fn(v)
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				visit(v.Field(i), fn)
			}
		}
	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String {
			return
		}
		fn(v)
		iter := v.MapRange()
		for iter.Next() {
			visit(iter.Value(), fn)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			visit(v.Index(i), fn)
		}
	}
}

func kindOf(v reflect.Value) string {
	return strings.ToLower(v.Type().Name())
}

func isMapEntity(m reflect.Value) bool {
	_, hasID := readString(m, idField)
	_, hasTemp := readString(m, initialField)
	return hasID || hasTemp
}

var fieldIndex sync.Map // reflect.Type -> map[string]int

func jsonIndex(t reflect.Type) map[string]int {
	if v, ok := fieldIndex.Load(t); ok {
		return v.(map[string]int)
	}
	idx := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			rs := []rune(f.Name)
			rs[0] = unicode.ToLower(rs[0])
			name = string(rs)
		}
		idx[name] = i
	}
	fieldIndex.Store(t, idx)
	return idx
}

func hasField(t reflect.Type, name string) bool {
	_, ok := jsonIndex(t)[name]
	return ok
}

func readString(node reflect.Value, name string) (string, bool) {
	var f reflect.Value
	switch node.Kind() {
	case reflect.Struct:
		i, ok := jsonIndex(node.Type())[name]
		if !ok {
			return "", false
		}
		f = node.Field(i)
	case reflect.Map:
		f = node.MapIndex(reflect.ValueOf(name).Convert(node.Type().Key()))
	default:
		return "", false
	}
	for f.IsValid() && (f.Kind() == reflect.Pointer || f.Kind() == reflect.Interface) {
		if f.IsNil() {
			return "", false
		}
		f = f.Elem()
	}
	if !f.IsValid() || f.Kind() != reflect.String || f.Len() == 0 {
		return "", false
	}
	return f.String(), true
}

func writeString(node reflect.Value, name, s string) {
	switch node.Kind() {
	case reflect.Struct:
		i, ok := jsonIndex(node.Type())[name]
		if !ok {
			return
		}
		f := node.Field(i)
		if !f.CanSet() {
			return
		}
		switch {
		case f.Kind() == reflect.String:
			f.SetString(s)
		case f.Kind() == reflect.Pointer && f.Type().Elem().Kind() == reflect.String:
			p := reflect.New(f.Type().Elem())
			p.Elem().SetString(s)
			f.Set(p)
		}
	case reflect.Map:
		val := reflect.ValueOf(s)
		if val.Type().AssignableTo(node.Type().Elem()) {
			node.SetMapIndex(reflect.ValueOf(name).Convert(node.Type().Key()), val)
		}
	}
}
