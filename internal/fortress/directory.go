// Copyright (c) 2025 Justin Cranford

package fortress

import (
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// DirEditOp enumerates the three directory operations (§3).
type DirEditOp string

const (
	DirEditAdd    DirEditOp = "add"
	DirEditRemove DirEditOp = "remove"
	DirEditRename DirEditOp = "rename"
)

// DirEdit is one step in a Directory's history: Add(ID), Remove(ID), or
// Rename(string) (§3). Exactly one of ID or Name is meaningful, depending
// on Op.
type DirEdit struct {
	Time uint64    `json:"time"`
	Op   DirEditOp `json:"op"`
	ID   ID        `json:"id,omitempty"`
	Name string    `json:"name,omitempty"`
}

func (d DirEdit) equal(other DirEdit) bool {
	return d.Time == other.Time && d.Op == other.Op && d.ID == other.ID && d.Name == other.Name
}

// Directory is an append-only set of entry references plus an optional
// display name, both derived by folding history (§3, §4.5).
type Directory struct {
	id      ID
	name    string
	history []DirEdit
	entries map[ID]struct{}
}

// NewDirectory creates an empty, unnamed Directory with a fresh random ID.
func NewDirectory() (*Directory, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	d, ok := newDirectoryFromHistory(id, nil)
	if !ok {
		panic("fortress: unreachable: empty history rejected")
	}
	return d, nil
}

// newDirectoryFromHistory replays history from scratch, validating strict
// timestamp ordering. Mirrors newEntryFromHistory (§4.5).
func newDirectoryFromHistory(id ID, history []DirEdit) (*Directory, bool) {
	d := &Directory{id: id, entries: make(map[ID]struct{})}

	var minNextTimestamp uint64
	for _, edit := range history {
		if edit.Time < minNextTimestamp || edit.Time == ^uint64(0) {
			return nil, false
		}
		minNextTimestamp = edit.Time + 1
		d.applyHistory(edit)
		d.history = append(d.history, edit)
	}
	return d, true
}

// ID returns the directory's immutable identity.
func (d *Directory) ID() ID { return d.id }

// Name returns the directory's current display name: the data of the last
// Rename, or empty (§3).
func (d *Directory) Name() string { return d.name }

// Entries returns a copy of the set of IDs currently referenced by this
// directory.
func (d *Directory) Entries() map[ID]struct{} {
	out := make(map[ID]struct{}, len(d.entries))
	for id := range d.entries {
		out[id] = struct{}{}
	}
	return out
}

// SortedEntries returns the directory's referenced IDs in ascending order,
// for deterministic iteration (e.g. listing, serialization).
func (d *Directory) SortedEntries() []ID {
	out := make([]ID, 0, len(d.entries))
	for id := range d.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// History returns a copy of the directory's ordered edit history.
func (d *Directory) History() []DirEdit {
	out := make([]DirEdit, len(d.history))
	copy(out, d.history)
	return out
}

func (d *Directory) applyHistory(edit DirEdit) {
	switch edit.Op {
	case DirEditAdd:
		d.entries[edit.ID] = struct{}{}
	case DirEditRemove:
		delete(d.entries, edit.ID)
	case DirEditRename:
		d.name = edit.Name
	}
}

func (d *Directory) appendEdit(edit DirEdit) {
	if len(d.history) > 0 && edit.Time <= d.history[len(d.history)-1].Time {
		panic(fmt.Sprintf("fortress: directory history must be strictly ordered: got time %d after %d", edit.Time, d.history[len(d.history)-1].Time))
	}
	d.applyHistory(edit)
	d.history = append(d.history, edit)
}

// Add appends an Add(id) edit at time t, referencing id as a child of this
// directory.
func (d *Directory) Add(id ID, t uint64) {
	d.appendEdit(DirEdit{Time: t, Op: DirEditAdd, ID: id})
}

// Remove appends a Remove(id) edit at time t. The object itself is never
// destroyed; only the reference is removed (§3).
func (d *Directory) Remove(id ID, t uint64) {
	d.appendEdit(DirEdit{Time: t, Op: DirEditRemove, ID: id})
}

// Rename appends a Rename(name) edit at time t. name is normalized to
// Unicode NFC first: two devices typing the same visible name with
// different composition (e.g. precomposed vs. combining-accent input)
// must produce the same history entry, or the name would silently
// fork into confusing near-duplicates across peers.
func (d *Directory) Rename(name string, t uint64) {
	d.appendEdit(DirEdit{Time: t, Op: DirEditRename, Name: norm.NFC.String(name)})
}

// Merge attempts to merge self and other, by analogy with Entry.Merge
// (§4.5): concatenate histories, sort by time, dedupe identical
// consecutive edits, then replay and validate.
func (d *Directory) Merge(other *Directory) (*Directory, bool) {
	if d.id != other.id {
		return nil, false
	}

	merged := make([]DirEdit, 0, len(d.history)+len(other.history))
	merged = append(merged, d.history...)
	merged = append(merged, other.history...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Time < merged[j].Time })
	merged = dedupDirEdits(merged)

	return newDirectoryFromHistory(d.id, merged)
}

func dedupDirEdits(edits []DirEdit) []DirEdit {
	out := edits[:0:0]
	for i, edit := range edits {
		if i > 0 && edit.equal(edits[i-1]) {
			continue
		}
		out = append(out, edit)
	}
	return out
}

// SafeToReplaceWith returns true iff self.history is a subsequence of
// other.history, by analogy with Entry.SafeToReplaceWith (§4.5, §4.6).
func (d *Directory) SafeToReplaceWith(other *Directory) bool {
	if d.id != other.id {
		return false
	}

	j := 0
	for _, want := range d.history {
		found := false
		for ; j < len(other.history); j++ {
			if other.history[j].equal(want) {
				found = true
				j++
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
