package merge

import (
	"fmt"
	"reflect"
)

// Engine deep-merges sparse patches into targets following a policy Table.
//
// Absent patch values (nil pointer, nil interface, nil slice, nil map,
// missing map key, zero non-pointer scalar) never change the target.
type Engine struct {
	table Table
}

func New(t Table) *Engine {
	if t == nil {
		t = DefaultTable
	}
	return &Engine{table: t}
}

// Default uses DefaultTable.
func Default() *Engine { return New(DefaultTable) }

func (e *Engine) Table() Table { return e.table }

// Merge returns a deep copy of target with patch merged in. Neither
// argument is modified.
func Merge[T any](e *Engine, target, patch T) T {
	return MergeField(e, "", target, patch)
}

// MergeField is Merge for a value that sits under field, so a top-level
// slice is combined with that field's rule.
func MergeField[T any](e *Engine, field string, target, patch T) T {
	out := Clone(target)
	dst := reflect.ValueOf(&out).Elem()
	e.mergeInto(dst, reflect.ValueOf(&patch).Elem(), field)
	return out
}

// MergeValue merges two generic JSON-shaped trees.
func (e *Engine) MergeValue(target, patch map[string]any) map[string]any {
	return Merge(e, target, patch)
}

func absent(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func (e *Engine) mergeInto(dst, src reflect.Value, field string) {
	if absent(src) {
		return
	}
	if dst.Kind() == reflect.Interface {
		if dst.IsNil() {
			dst.Set(cloneValue(src))
			return
		}
		dst.Set(e.mergeDynamic(dst.Elem(), indirectIface(src), field))
		return
	}
	src = indirectIface(src)
	if !src.IsValid() {
		return
	}

	switch dst.Kind() {
	case reflect.Pointer:
		if dst.IsNil() || dst.Type().Elem().Kind() != reflect.Struct {
			dst.Set(cloneValue(src))
			return
		}
		e.mergeInto(dst.Elem(), src.Elem(), field)
	case reflect.Struct:
		names := jsonNames(dst.Type())
		for i := 0; i < dst.NumField(); i++ {
			f := dst.Field(i)
			if names[i] == "" || !f.CanSet() {
				continue
			}
			e.mergeInto(f, src.Field(i), names[i])
		}
	case reflect.Map:
		e.mergeMap(dst, src)
	case reflect.Slice:
		dst.Set(e.mergeSlice(dst, src, field))
	default:
		// non-pointer scalar: zero means omitted
		if !src.IsZero() {
			dst.Set(src)
		}
	}
}

func indirectIface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// mergeDynamic merges values held in interfaces (JSON trees). Present
// scalars overwrite even when zero, since a present map key is explicit.
func (e *Engine) mergeDynamic(dst, src reflect.Value, field string) reflect.Value {
	out := reflect.New(reflect.TypeOf((*any)(nil)).Elem()).Elem()
	if !src.IsValid() {
		out.Set(dst)
		return out
	}
	if dst.Type() != src.Type() {
		out.Set(cloneValue(src))
		return out
	}
	switch src.Kind() {
	case reflect.Map, reflect.Slice, reflect.Struct, reflect.Pointer:
		tmp := reflect.New(src.Type()).Elem()
		tmp.Set(cloneValue(dst))
		e.mergeInto(tmp, src, field)
		out.Set(tmp)
	default:
		out.Set(src)
	}
	return out
}

func (e *Engine) mergeMap(dst, src reflect.Value) {
	if src.Len() == 0 {
		return
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(dst.Type(), src.Len()))
	}
	elemType := dst.Type().Elem()
	iter := src.MapRange()
	for iter.Next() {
		k, sv := iter.Key(), iter.Value()
		if absent(sv) {
			continue
		}
		name := ""
		if k.Kind() == reflect.String {
			name = k.String()
		}
		dv := dst.MapIndex(k)
		if !dv.IsValid() {
			dst.SetMapIndex(k, cloneValue(sv))
			continue
		}
		tmp := reflect.New(elemType).Elem()
		tmp.Set(cloneValue(dv))
		switch elemType.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Struct, reflect.Map, reflect.Slice:
			e.mergeInto(tmp, sv, name)
		default:
			tmp.Set(sv)
		}
		dst.SetMapIndex(k, tmp)
	}
}

func (e *Engine) mergeSlice(dst, src reflect.Value, field string) reflect.Value {
	rule := e.table.Lookup(field, primitiveEntries(dst) && primitiveEntries(src))
	switch rule.Strategy {
	case Replace:
		return cloneValue(src)
	case Union:
		return union(dst, src)
	case MergeByKey:
		return e.mergeByKey(dst, src, rule)
	default:
		out := reflect.MakeSlice(dst.Type(), 0, dst.Len()+src.Len())
		for i := 0; i < dst.Len(); i++ {
			out = reflect.Append(out, cloneValue(dst.Index(i)))
		}
		for i := 0; i < src.Len(); i++ {
			out = reflect.Append(out, cloneValue(src.Index(i)))
		}
		return out
	}
}

func isPrimitiveKind(k reflect.Kind) bool {
	switch k {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Interface, reflect.Pointer:
		return false
	}
	return true
}

func primitiveEntries(s reflect.Value) bool {
	elem := s.Type().Elem()
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Interface {
		return isPrimitiveKind(elem.Kind())
	}
	for i := 0; i < s.Len(); i++ {
		v := indirect(s.Index(i))
		if v.IsValid() && !isPrimitiveKind(v.Kind()) {
			return false
		}
	}
	return true
}

func primitiveKey(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%v", v.Type(), v.Interface())
}

func union(dst, src reflect.Value) reflect.Value {
	out := reflect.MakeSlice(dst.Type(), 0, dst.Len()+src.Len())
	seen := make(map[string]struct{}, dst.Len()+src.Len())
	for _, s := range []reflect.Value{dst, src} {
		for i := 0; i < s.Len(); i++ {
			k := primitiveKey(s.Index(i))
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = reflect.Append(out, cloneValue(s.Index(i)))
		}
	}
	return out
}

// keysOf lists the lookup keys of an entry in match order: id, name, composite.
func keysOf(entry reflect.Value, rule Rule) []string {
	var keys []string
	if rule.IDField != "" {
		if s, ok := stringField(entry, rule.IDField); ok {
			keys = append(keys, "id\x00"+s)
		}
	}
	if rule.NameField != "" {
		if s, ok := stringField(entry, rule.NameField); ok {
			keys = append(keys, "name\x00"+s)
		}
	}
	if rule.Composite != nil {
		if s, ok := rule.Composite(entry); ok {
			keys = append(keys, "key\x00"+s)
		}
	}
	return keys
}

func (e *Engine) mergeByKey(dst, src reflect.Value, rule Rule) reflect.Value {
	out := reflect.MakeSlice(dst.Type(), 0, dst.Len()+src.Len())
	index := make(map[string]int, dst.Len()+src.Len())

	add := func(entry reflect.Value) {
		keys := keysOf(entry, rule)
		if len(keys) == 0 {
			out = reflect.Append(out, cloneValue(entry))
			return
		}
		for _, k := range keys {
			i, ok := index[k]
			if !ok {
				continue
			}
			slot := out.Index(i)
			keepID, hadID := "", false
			if rule.IDField != "" {
				keepID, hadID = stringField(slot, rule.IDField)
			}
			e.mergeInto(slot, entry, "")
			if hadID {
				setStringField(slot, rule.IDField, keepID)
			}
			for _, nk := range keysOf(slot, rule) {
				if _, taken := index[nk]; !taken {
					index[nk] = i
				}
			}
			return
		}
		out = reflect.Append(out, cloneValue(entry))
		for _, k := range keys {
			index[k] = out.Len() - 1
		}
	}

	for i := 0; i < dst.Len(); i++ {
		add(dst.Index(i))
	}
	for i := 0; i < src.Len(); i++ {
		add(src.Index(i))
	}
	return out
}
