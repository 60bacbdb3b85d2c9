// Package session implements a client-held session: a key/value map carried in
// a signed cookie, with one-shot flash values.
package session

import (
	"errors"
	"maps"
)

// FlashPrefix marks flash entries inside the session payload.
const FlashPrefix = "__flash_"

// Session is a mutable key/value map with flash support.
// A Session belongs to a single request and is not safe for concurrent use.
type Session struct {
	values map[string]any
	dirty  bool
}

// New creates a session from decoded cookie data. A nil map yields an empty session.
func New(values map[string]any) *Session {
	if values == nil {
		values = make(map[string]any)
	}
	return &Session{values: values}
}

// Get returns the value for key. A plain value wins over a flash value;
// reading a flash value removes it from the session.
func (s *Session) Get(key string) (any, bool) {
	if v, ok := s.values[key]; ok {
		return v, true
	}

	flashKey := FlashPrefix + key
	if v, ok := s.values[flashKey]; ok {
		delete(s.values, flashKey)
		s.dirty = true
		return v, true
	}

	return nil, false
}

// Set stores a value.
func (s *Session) Set(key string, value any) {
	s.values[key] = value
	s.dirty = true
}

// Delete removes a value. Flash entries for key are left untouched.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// Flash stores a value that is returned by exactly one Get.
func (s *Session) Flash(key string, value any) {
	s.values[FlashPrefix+key] = value
	s.dirty = true
}

// Data returns a copy of the raw session payload, flash entries included.
func (s *Session) Data() map[string]any {
	return maps.Clone(s.values)
}

// Len returns the number of stored entries.
func (s *Session) Len() int {
	return len(s.values)
}

// IsDirty reports whether the session changed since it was parsed or last committed.
func (s *Session) IsDirty() bool {
	return s.dirty
}

// ClearDirty marks the session as committed.
func (s *Session) ClearDirty() {
	s.dirty = false
}

// Value is a typed helper to retrieve session values.
// JSON numbers decode as float64; store identifiers as strings.
func Value[T any](s *Session, key string) (T, error) {
	var zero T
	if s == nil {
		return zero, ErrNotFound
	}

	val, ok := s.Get(key)
	if !ok {
		return zero, ErrNotFound
	}

	typed, ok := val.(T)
	if !ok {
		return zero, errors.Join(ErrTypeMismatch, errors.New("key: "+key))
	}

	return typed, nil
}

// ValueOr returns the typed value or defaultVal when missing or of another type.
func ValueOr[T any](s *Session, key string, defaultVal T) T {
	val, err := Value[T](s, key)
	if err != nil {
		return defaultVal
	}
	return val
}
