// Copyright (c) 2025 Justin Cranford

package fortress

import "fmt"

// ObjectKind distinguishes the two DatabaseObject variants (§3, §9).
type ObjectKind string

const (
	ObjectKindEntry     ObjectKind = "entry"
	ObjectKindDirectory ObjectKind = "directory"
)

// DatabaseObject is the tagged union of Entry or Directory (§3). An ID is
// permanently bound to one kind; ObjectMap enforces this (§4.6, §9).
type DatabaseObject struct {
	entry     *Entry
	directory *Directory
}

// NewEntryObject wraps an Entry as a DatabaseObject.
func NewEntryObject(e *Entry) DatabaseObject { return DatabaseObject{entry: e} }

// NewDirectoryObject wraps a Directory as a DatabaseObject.
func NewDirectoryObject(d *Directory) DatabaseObject { return DatabaseObject{directory: d} }

// Kind reports which variant this object holds.
func (o DatabaseObject) Kind() ObjectKind {
	if o.entry != nil {
		return ObjectKindEntry
	}
	return ObjectKindDirectory
}

// ID returns the common identity operation shared by both variants (§3).
func (o DatabaseObject) ID() ID {
	if o.entry != nil {
		return o.entry.ID()
	}
	return o.directory.ID()
}

// AsEntry returns the underlying Entry and true, or nil and false if this
// object is a Directory.
func (o DatabaseObject) AsEntry() (*Entry, bool) {
	if o.entry == nil {
		return nil, false
	}
	return o.entry, true
}

// AsDirectory returns the underlying Directory and true, or nil and false
// if this object is an Entry.
func (o DatabaseObject) AsDirectory() (*Directory, bool) {
	if o.directory == nil {
		return nil, false
	}
	return o.directory, true
}

// SafeToReplaceWith dispatches to the underlying variant's
// safe_to_replace_with, failing (false) across kinds (§4.6: type
// stability).
func (o DatabaseObject) SafeToReplaceWith(other DatabaseObject) bool {
	if o.Kind() != other.Kind() {
		return false
	}
	switch o.Kind() {
	case ObjectKindEntry:
		return o.entry.SafeToReplaceWith(other.entry)
	case ObjectKindDirectory:
		return o.directory.SafeToReplaceWith(other.directory)
	default:
		panic(fmt.Sprintf("fortress: unknown object kind %q", o.Kind()))
	}
}

// Merge dispatches to the underlying variant's merge, failing across
// kinds.
func (o DatabaseObject) Merge(other DatabaseObject) (DatabaseObject, bool) {
	if o.Kind() != other.Kind() {
		return DatabaseObject{}, false
	}
	switch o.Kind() {
	case ObjectKindEntry:
		merged, ok := o.entry.Merge(other.entry)
		if !ok {
			return DatabaseObject{}, false
		}
		return NewEntryObject(merged), true
	case ObjectKindDirectory:
		merged, ok := o.directory.Merge(other.directory)
		if !ok {
			return DatabaseObject{}, false
		}
		return NewDirectoryObject(merged), true
	default:
		panic(fmt.Sprintf("fortress: unknown object kind %q", o.Kind()))
	}
}
