package assoc

import (
	"reflect"
	"strings"
)

// KeySelector extracts the external key from a fetched object.
type KeySelector interface {
	Name() string
	// Key returns the object's key; ok is false when the object does not
	// expose the selector.
	Key(obj any) (key any, ok bool)
}

// Field selects a key by name. It understands map[string]any, Records, and
// structs (a niladic method, an exported field matched case-insensitively, or
// a field whose json tag is name).
func Field(name string) KeySelector {
	return fieldSelector(name)
}

// SelectorFunc adapts a function to a KeySelector.
func SelectorFunc(name string, fn func(obj any) (any, bool)) KeySelector {
	return funcSelector{name: name, fn: fn}
}

type funcSelector struct {
	name string
	fn   func(obj any) (any, bool)
}

func (s funcSelector) Name() string            { return s.name }
func (s funcSelector) Key(obj any) (any, bool) { return s.fn(obj) }

type fieldSelector string

func (s fieldSelector) Name() string {
	return string(s)
}

func (s fieldSelector) Key(obj any) (any, bool) {
	name := string(s)
	switch v := obj.(type) {
	case nil:
		return nil, false
	case map[string]any:
		key, ok := v[name]
		return key, ok
	case Record:
		if v.RecordType() == nil || !v.RecordType().HasAttribute(name) {
			return nil, false
		}
		return v.Attr(name), true
	}
	return reflectKey(reflect.ValueOf(obj), name)
}

func reflectKey(rv reflect.Value, name string) (any, bool) {
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, false
	}
	if method := rv.MethodByName(name); method.IsValid() {
		mt := method.Type()
		if mt.NumIn() == 0 && mt.NumOut() == 1 {
			return method.Call(nil)[0].Interface(), true
		}
	}

	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		value := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !value.IsValid() {
			return nil, false
		}
		return value.Interface(), true
	case reflect.Struct:
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			tag, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if tag == name || strings.EqualFold(field.Name, name) {
				return rv.Field(i).Interface(), true
			}
		}
	}
	return nil, false
}
