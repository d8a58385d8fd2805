// Copyright (c) 2025 Justin Cranford

package fortress_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	fortressFortress "fortress/internal/fortress"
)

func TestEntry_EditFoldsIntoState(t *testing.T) {
	t.Parallel()

	e, err := fortressFortress.NewEntry()
	require.NoError(t, err)

	e.Edit(fortressFortress.EntryEdit{Time: 1, Data: map[string]string{"username": "alice"}})
	e.Edit(fortressFortress.EntryEdit{Time: 2, Data: map[string]string{"password": "hunter2"}})

	username, ok := e.Get("username")
	require.True(t, ok)
	require.Equal(t, "alice", username)

	password, ok := e.Get("password")
	require.True(t, ok)
	require.Equal(t, "hunter2", password)

	_, ok = e.Get("notes")
	require.False(t, ok)
}

func TestEntry_EditDropsRedundantPairs(t *testing.T) {
	t.Parallel()

	e, err := fortressFortress.NewEntry()
	require.NoError(t, err)

	e.Edit(fortressFortress.EntryEdit{Time: 1, Data: map[string]string{"username": "alice", "notes": "first"}})
	// "username" repeats its current value; only "notes" should be recorded.
	e.Edit(fortressFortress.EntryEdit{Time: 2, Data: map[string]string{"username": "alice", "notes": "second"}})

	require.Len(t, e.History(), 2)
	require.Equal(t, map[string]string{"notes": "second"}, e.History()[1].Data)
}

func TestEntry_EditOfOnlyRedundantPairsIsDropped(t *testing.T) {
	t.Parallel()

	e, err := fortressFortress.NewEntry()
	require.NoError(t, err)

	e.Edit(fortressFortress.EntryEdit{Time: 1, Data: map[string]string{"username": "alice"}})
	e.Edit(fortressFortress.EntryEdit{Time: 2, Data: map[string]string{"username": "alice"}})

	require.Len(t, e.History(), 1)
}

func TestEntry_EditPanicsOnOutOfOrderTimestamp(t *testing.T) {
	t.Parallel()

	e, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	e.Edit(fortressFortress.EntryEdit{Time: 10, Data: map[string]string{"username": "alice"}})

	require.Panics(t, func() {
		e.Edit(fortressFortress.EntryEdit{Time: 5, Data: map[string]string{"username": "bob"}})
	})
	require.Panics(t, func() {
		e.Edit(fortressFortress.EntryEdit{Time: 10, Data: map[string]string{"username": "bob"}})
	})
}

func TestEntry_SafeToReplaceWith(t *testing.T) {
	t.Parallel()

	e, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	e.Edit(fortressFortress.EntryEdit{Time: 1, Data: map[string]string{"username": "alice"}})

	behind, ok := roundTripEntry(t, e)
	require.True(t, ok)
	e.Edit(fortressFortress.EntryEdit{Time: 2, Data: map[string]string{"password": "hunter2"}})

	require.True(t, behind.SafeToReplaceWith(e), "a prefix of the history is always safe to replace with the full history")
	require.False(t, e.SafeToReplaceWith(behind), "the full history is never safe to replace with a strict prefix")
	require.True(t, e.SafeToReplaceWith(e), "identical history is trivially safe to replace with itself")
}

func TestEntry_MergeUnionsDisjointHistories(t *testing.T) {
	t.Parallel()

	left, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	left.Edit(fortressFortress.EntryEdit{Time: 1, Data: map[string]string{"username": "alice"}})

	right, ok := roundTripEntry(t, left)
	require.True(t, ok)
	right.Edit(fortressFortress.EntryEdit{Time: 2, Data: map[string]string{"password": "hunter2"}})

	merged, ok := left.Merge(right)
	require.True(t, ok)

	username, ok := merged.Get("username")
	require.True(t, ok)
	require.Equal(t, "alice", username)
	password, ok := merged.Get("password")
	require.True(t, ok)
	require.Equal(t, "hunter2", password)
	require.Len(t, merged.History(), 2)
}

func TestEntry_MergeIsIdempotentOnIdenticalHistories(t *testing.T) {
	t.Parallel()

	e, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	e.Edit(fortressFortress.EntryEdit{Time: 1, Data: map[string]string{"username": "alice"}})

	clone, ok := roundTripEntry(t, e)
	require.True(t, ok)

	merged, ok := e.Merge(clone)
	require.True(t, ok)
	require.Len(t, merged.History(), 1)
}

func TestEntry_MergeRejectsDifferentIDs(t *testing.T) {
	t.Parallel()

	left, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	right, err := fortressFortress.NewEntry()
	require.NoError(t, err)

	_, ok := left.Merge(right)
	require.False(t, ok)
}

func TestEntry_MergeRejectsConflictingTimestamp(t *testing.T) {
	t.Parallel()

	left, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	left.Edit(fortressFortress.EntryEdit{Time: 5, Data: map[string]string{"username": "alice"}})

	conflicting := entryWithConflictingEditAtSameID(t, left, 5, map[string]string{"username": "mallory"})

	_, ok := left.Merge(conflicting)
	require.False(t, ok, "two edits sharing a timestamp with different data cannot merge")
}

// roundTripEntry marshals and unmarshals e, returning an independent copy
// with the same id and history.
func roundTripEntry(t *testing.T, e *fortressFortress.Entry) (*fortressFortress.Entry, bool) {
	t.Helper()
	data, err := e.MarshalJSON()
	require.NoError(t, err)
	var clone fortressFortress.Entry
	err = clone.UnmarshalJSON(data)
	require.NoError(t, err)
	return &clone, true
}

// entryWithConflictingEditAtSameID builds a second Entry sharing base's id
// via its wire representation, with a single edit at conflictTime carrying
// different data than anything in base's own history at that time — the
// only way to reach history-conflicting merge inputs with IDs otherwise
// fixed at creation time.
func entryWithConflictingEditAtSameID(t *testing.T, base *fortressFortress.Entry, conflictTime uint64, data map[string]string) *fortressFortress.Entry {
	t.Helper()

	fresh, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	fresh.Edit(fortressFortress.EntryEdit{Time: conflictTime, Data: data})

	wireBytes, err := fresh.MarshalJSON()
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(wireBytes, &wire))

	idBytes, err := json.Marshal(base.ID().Hex())
	require.NoError(t, err)
	wire["id"] = idBytes

	patched, err := json.Marshal(wire)
	require.NoError(t, err)

	var retagged fortressFortress.Entry
	require.NoError(t, retagged.UnmarshalJSON(patched))
	return &retagged
}
