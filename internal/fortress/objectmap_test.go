// Copyright (c) 2025 Justin Cranford

package fortress_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	fortressFortress "fortress/internal/fortress"
)

func TestObjectMap_PutThenGet(t *testing.T) {
	t.Parallel()

	m := fortressFortress.NewObjectMap()
	e, err := fortressFortress.NewEntry()
	require.NoError(t, err)

	m.Put(fortressFortress.NewEntryObject(e))

	got, ok := m.Get(e.ID())
	require.True(t, ok)
	gotEntry, ok := got.AsEntry()
	require.True(t, ok)
	require.Equal(t, e.ID(), gotEntry.ID())
	require.Equal(t, 1, m.Len())
}

func TestObjectMap_PutPanicsOnKindChange(t *testing.T) {
	t.Parallel()

	m := fortressFortress.NewObjectMap()
	d, err := fortressFortress.NewDirectory()
	require.NoError(t, err)
	m.Put(fortressFortress.NewDirectoryObject(d))

	e, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	// Forge an Entry sharing d's id by round-tripping through JSON with the
	// id field swapped, mirroring the ID-substitution technique used in
	// entry_test.go.
	forged := entryWithID(t, e, d.ID())

	require.Panics(t, func() { m.Put(fortressFortress.NewEntryObject(forged)) })
}

func TestObjectMap_PutPanicsOnUnsafeReplace(t *testing.T) {
	t.Parallel()

	m := fortressFortress.NewObjectMap()
	e, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	e.Edit(fortressFortress.EntryEdit{Time: 1, Data: map[string]string{"username": "alice"}})
	m.Put(fortressFortress.NewEntryObject(e))

	stale, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	staleRetagged := entryWithID(t, stale, e.ID())

	require.Panics(t, func() { m.Put(fortressFortress.NewEntryObject(staleRetagged)) })
}

func TestObjectMap_TryPutReturnsErrorsInsteadOfPanicking(t *testing.T) {
	t.Parallel()

	m := fortressFortress.NewObjectMap()
	d, err := fortressFortress.NewDirectory()
	require.NoError(t, err)
	m.Put(fortressFortress.NewDirectoryObject(d))

	e, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	forged := entryWithID(t, e, d.ID())

	err = m.TryPut(fortressFortress.NewEntryObject(forged))
	require.Error(t, err)
	require.True(t, errors.Is(err, fortressFortress.ErrTypeMismatch))

	e2, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	e2.Edit(fortressFortress.EntryEdit{Time: 1, Data: map[string]string{"username": "alice"}})
	m.Put(fortressFortress.NewEntryObject(e2))

	stale, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	staleRetagged := entryWithID(t, stale, e2.ID())

	err = m.TryPut(fortressFortress.NewEntryObject(staleRetagged))
	require.Error(t, err)
	require.True(t, errors.Is(err, fortressFortress.ErrNotSafeToReplace))
}

func TestObjectMap_SortedIDsIsDeterministicAndComplete(t *testing.T) {
	t.Parallel()

	m := fortressFortress.NewObjectMap()
	want := make(map[fortressFortress.ID]struct{})
	for i := 0; i < 8; i++ {
		e, err := fortressFortress.NewEntry()
		require.NoError(t, err)
		m.Put(fortressFortress.NewEntryObject(e))
		want[e.ID()] = struct{}{}
	}

	ids := m.SortedIDs()
	require.Len(t, ids, len(want))
	for _, id := range ids {
		_, ok := want[id]
		require.True(t, ok)
	}
	for i := 1; i < len(ids); i++ {
		require.True(t, ids[i-1].Less(ids[i]))
	}
}

func TestObjectMap_Delete(t *testing.T) {
	t.Parallel()

	m := fortressFortress.NewObjectMap()
	e, err := fortressFortress.NewEntry()
	require.NoError(t, err)
	m.Put(fortressFortress.NewEntryObject(e))

	m.Delete(e.ID())
	_, ok := m.Get(e.ID())
	require.False(t, ok)
}

// entryWithID returns an Entry carrying e's history but retagged with id,
// via the wire representation.
func entryWithID(t *testing.T, e *fortressFortress.Entry, id fortressFortress.ID) *fortressFortress.Entry {
	t.Helper()
	data, err := e.MarshalJSON()
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &wire))
	wire["id"] = id.Hex()
	patched, err := json.Marshal(wire)
	require.NoError(t, err)

	var retagged fortressFortress.Entry
	require.NoError(t, retagged.UnmarshalJSON(patched))
	return &retagged
}
