// Copyright (c) 2025 Justin Cranford

package fortress

import (
	"fmt"
	"sort"
)

// ObjectMap wraps an ID→DatabaseObject mapping, enforcing key-object
// consistency, monotonic update, and type stability (§4.6).
type ObjectMap struct {
	objects map[ID]DatabaseObject
}

// NewObjectMap returns an empty ObjectMap.
func NewObjectMap() *ObjectMap {
	return &ObjectMap{objects: make(map[ID]DatabaseObject)}
}

// Get returns the object stored under id, if any.
func (m *ObjectMap) Get(id ID) (DatabaseObject, bool) {
	obj, ok := m.objects[id]
	return obj, ok
}

// Len returns the number of objects in the map.
func (m *ObjectMap) Len() int { return len(m.objects) }

// SortedIDs returns every ID in the map in ascending order, giving callers
// a deterministic iteration order for serialization (§4.6).
func (m *ObjectMap) SortedIDs() []ID {
	ids := make([]ID, 0, len(m.objects))
	for id := range m.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// Put inserts or replaces obj, keyed by obj.ID() (key-object consistency).
// If an object already exists under that ID, the replacement must pass
// safe_to_replace_with and must be the same kind; violating either is a
// fatal programmer error, since loaded data is revalidated through the
// same constructors that would have produced the panic on the way in
// (§4.6, §7). Use TryPut for the sync path, where remote data must not be
// trusted to satisfy the invariant.
func (m *ObjectMap) Put(obj DatabaseObject) {
	existing, ok := m.objects[obj.ID()]
	if !ok {
		m.objects[obj.ID()] = obj
		return
	}
	if existing.Kind() != obj.Kind() {
		panic(fmt.Sprintf("fortress: object %s changed kind from %s to %s", obj.ID(), existing.Kind(), obj.Kind()))
	}
	if !existing.SafeToReplaceWith(obj) {
		panic(fmt.Sprintf("fortress: object %s replacement is not safe (would discard history)", obj.ID()))
	}
	m.objects[obj.ID()] = obj
}

// TryPut is the sync variant of Put: instead of panicking on an invariant
// violation, it returns ErrTypeMismatch or ErrNotSafeToReplace so the sync
// client can turn the failure into a SyncConflict or skip the object
// (§4.6, §4.8, §7).
func (m *ObjectMap) TryPut(obj DatabaseObject) error {
	existing, ok := m.objects[obj.ID()]
	if !ok {
		m.objects[obj.ID()] = obj
		return nil
	}
	if existing.Kind() != obj.Kind() {
		return fmt.Errorf("%w: object %s", ErrTypeMismatch, obj.ID())
	}
	if !existing.SafeToReplaceWith(obj) {
		return fmt.Errorf("%w: object %s", ErrNotSafeToReplace, obj.ID())
	}
	m.objects[obj.ID()] = obj
	return nil
}

// Delete removes id from the map unconditionally. The object model never
// calls this as part of normal directory "removal" (§3: a Directory
// removing a child only appends a Remove edit); it exists for
// housekeeping such as pruning genuinely orphaned test fixtures.
func (m *ObjectMap) Delete(id ID) {
	delete(m.objects, id)
}
