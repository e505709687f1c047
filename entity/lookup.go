package entity

import "reflect"

// Get returns the first component attached to e that implements or is of
// type T.
func Get[T any](e *Entity) (T, bool) {
	return GetWhere(e, func(T) bool { return true })
}

// GetWhere returns the first component attached to e that is a T and
// satisfies accept.
func GetWhere[T any](e *Entity, accept func(T) bool) (T, bool) {
	var zero T

	if e == nil {
		return zero, false
	}

	for _, a := range e.attachments {
		if c, ok := a.comp.(T); ok && accept(c) {
			return c, true
		}
	}

	return zero, false
}

// GetAll returns every component attached to e that is a T.
func GetAll[T any](e *Entity) []T {
	if e == nil {
		return nil
	}

	var list []T
	for _, a := range e.attachments {
		if c, ok := a.comp.(T); ok {
			list = append(list, c)
		}
	}

	return list
}

// TypeNameOf returns the short name of T, see TypeName.
func TypeNameOf[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Name()
}
