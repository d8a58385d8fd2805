// Copyright (c) 2025 Justin Cranford

package fortress

import (
	"fmt"
	"sort"
	"time"
)

// nowNanos returns the current wall-clock time as a nanosecond Unix
// timestamp, the ordering key used throughout §4.5. Clock skew across
// peers can produce pseudo-conflicts or mask genuine concurrent edits;
// this implementation makes no attempt at clock reconciliation, matching
// the historical source (§9, first Open Question).
func nowNanos() uint64 {
	return uint64(time.Now().UnixNano())
}

// EntryEdit is one step in an Entry's history: a timestamp plus the
// key/value pairs changed at that instant (§3).
type EntryEdit struct {
	Time uint64            `json:"time"`
	Data map[string]string `json:"data"`
}

func (e EntryEdit) equal(other EntryEdit) bool {
	if e.Time != other.Time || len(e.Data) != len(other.Data) {
		return false
	}
	for k, v := range e.Data {
		if other.Data[k] != v {
			return false
		}
	}
	return true
}

func (e EntryEdit) clone() EntryEdit {
	data := make(map[string]string, len(e.Data))
	for k, v := range e.Data {
		data[k] = v
	}
	return EntryEdit{Time: e.Time, Data: data}
}

// Entry is an append-only key/value record whose current state is the
// left-to-right fold of its history (§3, §4.5).
type Entry struct {
	id          ID
	timeCreated uint64
	history     []EntryEdit
	state       map[string]string
}

// NewEntry creates an empty Entry with a fresh random ID and
// time_created set to now.
func NewEntry() (*Entry, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	e, ok := newEntryFromHistory(id, nil, nowNanos())
	if !ok {
		// unreachable: an empty history is always valid.
		panic("fortress: unreachable: empty history rejected")
	}
	return e, nil
}

// newEntryFromHistory replays history from scratch, validating strict
// timestamp ordering as it goes. Returns ok=false if the history is
// invalid (out of order, duplicate timestamps, or a timestamp of
// math.MaxUint64) — the caller treats this as an unresolvable conflict
// during merge, or a deserialization failure on load (§4.5).
func newEntryFromHistory(id ID, history []EntryEdit, timeCreated uint64) (*Entry, bool) {
	e := &Entry{
		id:          id,
		timeCreated: timeCreated,
		state:       make(map[string]string),
	}

	var minNextTimestamp uint64
	for _, edit := range history {
		if edit.Time < minNextTimestamp || edit.Time == ^uint64(0) {
			return nil, false
		}
		minNextTimestamp = edit.Time + 1
		e.applyHistory(edit)
		e.history = append(e.history, edit.clone())
	}
	return e, true
}

// ID returns the entry's immutable identity.
func (e *Entry) ID() ID { return e.id }

// TimeCreated returns the nanosecond timestamp the entry was created at.
func (e *Entry) TimeCreated() uint64 { return e.timeCreated }

// State returns a copy of the entry's current key/value state.
func (e *Entry) State() map[string]string {
	out := make(map[string]string, len(e.state))
	for k, v := range e.state {
		out[k] = v
	}
	return out
}

// Get returns the value for key and whether it is present.
func (e *Entry) Get(key string) (string, bool) {
	v, ok := e.state[key]
	return v, ok
}

// History returns a copy of the entry's ordered edit history.
func (e *Entry) History() []EntryEdit {
	out := make([]EntryEdit, len(e.history))
	for i, edit := range e.history {
		out[i] = edit.clone()
	}
	return out
}

func (e *Entry) applyHistory(edit EntryEdit) {
	for k, v := range edit.Data {
		e.state[k] = v
	}
}

// Edit appends edit after filtering any (k,v) pairs that already match the
// current state (redundant edits are dropped before append). Panics if
// edit.Time is not strictly greater than the last history entry's time —
// this is a programmer error, never reachable from adversary-controlled
// data since loaded histories are revalidated by newEntryFromHistory
// (§4.5, §7).
func (e *Entry) Edit(edit EntryEdit) {
	if len(e.history) > 0 && edit.Time <= e.history[len(e.history)-1].Time {
		panic(fmt.Sprintf("fortress: entry history must be strictly ordered: got time %d after %d", edit.Time, e.history[len(e.history)-1].Time))
	}

	filtered := EntryEdit{Time: edit.Time, Data: make(map[string]string, len(edit.Data))}
	for k, v := range edit.Data {
		if cur, ok := e.state[k]; !ok || cur != v {
			filtered.Data[k] = v
		}
	}

	if len(filtered.Data) == 0 {
		return
	}
	e.applyHistory(filtered)
	e.history = append(e.history, filtered)
}

// Merge attempts to merge self and other, returning the merged Entry and
// true on success, or false if the merge is an irresolvable conflict (two
// distinct edits sharing a timestamp). IDs must match (§4.5).
func (e *Entry) Merge(other *Entry) (*Entry, bool) {
	if e.id != other.id {
		return nil, false
	}

	merged := make([]EntryEdit, 0, len(e.history)+len(other.history))
	for _, edit := range e.history {
		merged = append(merged, edit.clone())
	}
	for _, edit := range other.history {
		merged = append(merged, edit.clone())
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Time < merged[j].Time })
	merged = dedupEntryEdits(merged)

	return newEntryFromHistory(e.id, merged, e.timeCreated)
}

func dedupEntryEdits(edits []EntryEdit) []EntryEdit {
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
// other.history (in order, not necessarily contiguous). This is the
// monotonicity check used by the object map (§4.5, §4.6).
func (e *Entry) SafeToReplaceWith(other *Entry) bool {
	if e.id != other.id {
		return false
	}

	j := 0
	for _, want := range e.history {
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
