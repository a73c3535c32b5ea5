package merge

import (
	"reflect"
	"strings"
	"sync"
	"unicode"
)

var fieldNames sync.Map // reflect.Type -> []string

// jsonNames returns the JSON name of every field of struct type t, "" for
// unexported or skipped fields.
func jsonNames(t reflect.Type) []string {
	if v, ok := fieldNames.Load(t); ok {
		return v.([]string)
	}
	names := make([]string, t.NumField())
	for i := range names {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		switch {
		case name == "-":
			continue
		case name == "":
			r := []rune(f.Name)
			r[0] = unicode.ToLower(r[0])
			name = string(r)
		}
		names[i] = name
	}
	fieldNames.Store(t, names)
	return names
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// lookupField finds a field by JSON name on a struct or a string-keyed map.
func lookupField(entry reflect.Value, name string) reflect.Value {
	v := indirect(entry)
	if !v.IsValid() {
		return reflect.Value{}
	}
	switch v.Kind() {
	case reflect.Struct:
		for i, n := range jsonNames(v.Type()) {
			if n == name {
				return v.Field(i)
			}
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String {
			return v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		}
	}
	return reflect.Value{}
}

// stringField reads a non-empty string (or *string) field.
func stringField(entry reflect.Value, name string) (string, bool) {
	v := indirect(lookupField(entry, name))
	if !v.IsValid() || v.Kind() != reflect.String || v.Len() == 0 {
		return "", false
	}
	return v.String(), true
}

// setStringField writes s into a string, *string or map field.
func setStringField(entry reflect.Value, name, s string) {
	v := entry
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Interface {
		inner := indirect(v)
		if inner.IsValid() && inner.Kind() == reflect.Map {
			setStringField(inner, name, s)
		}
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i, n := range jsonNames(v.Type()) {
			if n != name {
				continue
			}
			f := v.Field(i)
			switch {
			case f.Kind() == reflect.String:
				f.SetString(s)
			case f.Kind() == reflect.Pointer && f.Type().Elem().Kind() == reflect.String:
				p := reflect.New(f.Type().Elem())
				p.Elem().SetString(s)
				f.Set(p)
			}
			return
		}
	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String {
			return
		}
		val := reflect.ValueOf(s)
		if !val.Type().AssignableTo(v.Type().Elem()) {
			return
		}
		v.SetMapIndex(reflect.ValueOf(name).Convert(v.Type().Key()), val)
	}
}
