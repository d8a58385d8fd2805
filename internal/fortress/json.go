// Copyright (c) 2025 Justin Cranford

package fortress

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Wire shapes for the two DatabaseObject variants (§6: "objects" is a JSON
// array of tagged-variant records ordered by ID"). Inner maps (EntryEdit's
// Data) already serialize with sorted keys because encoding/json and
// goccy/go-json both sort map[string]string keys when marshaling.

type entryWire struct {
	Type        ObjectKind  `json:"type"`
	ID          ID          `json:"id"`
	TimeCreated uint64      `json:"time_created"`
	History     []EntryEdit `json:"history"`
}

type directoryWire struct {
	Type    ObjectKind `json:"type"`
	ID      ID         `json:"id"`
	History []DirEdit  `json:"history"`
}

// MarshalJSON implements json.Marshaler.
func (e *Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryWire{Type: ObjectKindEntry, ID: e.id, TimeCreated: e.timeCreated, History: e.history})
}

// UnmarshalJSON implements json.Unmarshaler. It revalidates history through
// newEntryFromHistory exactly as constructors do, so corrupted or
// maliciously reordered history is rejected on load rather than silently
// accepted (§4.5, §7).
func (e *Entry) UnmarshalJSON(data []byte) error {
	var wire entryWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	entry, ok := newEntryFromHistory(wire.ID, wire.History, wire.TimeCreated)
	if !ok {
		return ErrInvalidHistory
	}
	*e = *entry
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d *Directory) MarshalJSON() ([]byte, error) {
	return json.Marshal(directoryWire{Type: ObjectKindDirectory, ID: d.id, History: d.history})
}

// UnmarshalJSON implements json.Unmarshaler, revalidating history as
// Directory's constructors do.
func (d *Directory) UnmarshalJSON(data []byte) error {
	var wire directoryWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	dir, ok := newDirectoryFromHistory(wire.ID, wire.History)
	if !ok {
		return ErrInvalidHistory
	}
	*d = *dir
	return nil
}

// MarshalJSON implements json.Marshaler by delegating to the held variant,
// which already emits its own "type" discriminator.
func (o DatabaseObject) MarshalJSON() ([]byte, error) {
	switch o.Kind() {
	case ObjectKindEntry:
		return o.entry.MarshalJSON()
	case ObjectKindDirectory:
		return o.directory.MarshalJSON()
	default:
		panic(fmt.Sprintf("fortress: unknown object kind %q", o.Kind()))
	}
}

// UnmarshalJSON implements json.Unmarshaler by peeking the "type" field and
// dispatching to the matching variant.
func (o *DatabaseObject) UnmarshalJSON(data []byte) error {
	var peek struct {
		Type ObjectKind `json:"type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	switch peek.Type {
	case ObjectKindEntry:
		var e Entry
		if err := e.UnmarshalJSON(data); err != nil {
			return err
		}
		*o = NewEntryObject(&e)
	case ObjectKindDirectory:
		var d Directory
		if err := d.UnmarshalJSON(data); err != nil {
			return err
		}
		*o = NewDirectoryObject(&d)
	default:
		return fmt.Errorf("%w: unknown object type %q", ErrSerialization, peek.Type)
	}
	return nil
}

// MarshalJSON implements json.Marshaler: objects serialize as a sequence
// ordered by ID, so SIVs over equal logical content match across peers
// (§4.6).
func (m *ObjectMap) MarshalJSON() ([]byte, error) {
	ids := m.SortedIDs()
	out := make([]DatabaseObject, len(ids))
	for i, id := range ids {
		out[i] = m.objects[id]
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ObjectMap) UnmarshalJSON(data []byte) error {
	var objs []DatabaseObject
	if err := json.Unmarshal(data, &objs); err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	m.objects = make(map[ID]DatabaseObject, len(objs))
	for _, obj := range objs {
		m.Put(obj)
	}
	return nil
}
