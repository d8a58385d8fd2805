// Copyright (c) 2025 Justin Cranford

package fortresssync_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"fortress/internal/fortress"
	"fortress/internal/fortresssync"
)

// startServer boots a real listener running the reference sync server and
// returns its base URL; shutdown is registered with t.Cleanup.
func startServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	fortresssync.NewServer().Register(app)

	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(time.Second) })

	return "http://" + ln.Addr().String()
}

func TestSync_BootstrapFromZero(t *testing.T) {
	t.Parallel()

	baseURL := startServer(t)

	db, err := fortress.NewWithPasswordDebug("alice", "correct horse battery staple")
	require.NoError(t, err)
	db.SetSyncURL(baseURL)

	entry, err := fortress.NewEntry()
	require.NoError(t, err)
	entry.Edit(fortress.EntryEdit{Time: 1, Data: map[string]string{"title": "example.com"}})
	db.AddEntry(entry)

	require.NoError(t, db.Sync(context.Background(), http.DefaultClient))
}

func TestSync_TwoPeersConverge(t *testing.T) {
	t.Parallel()

	baseURL := startServer(t)

	peerA, err := fortress.NewWithPasswordDebug("bob", "hunter2-hunter2")
	require.NoError(t, err)
	peerA.SetSyncURL(baseURL)

	rootA, err := peerA.GetRoot()
	require.NoError(t, err)

	entry, err := fortress.NewEntry()
	require.NoError(t, err)
	entry.Edit(fortress.EntryEdit{Time: 1, Data: map[string]string{"title": "shared"}})
	peerA.AddEntry(entry)
	rootA.Add(entry.ID(), 2)

	require.NoError(t, peerA.Sync(context.Background(), http.DefaultClient))

	peerB, err := fortress.NewWithPasswordDebug("bob", "hunter2-hunter2")
	require.NoError(t, err)
	peerB.SetSyncURL(baseURL)

	require.NoError(t, peerB.Sync(context.Background(), http.DefaultClient))

	gotEntry, err := peerB.GetEntryByID(entry.ID())
	require.NoError(t, err)
	title, ok := gotEntry.Get("title")
	require.True(t, ok)
	require.Equal(t, "shared", title)
}

func TestSync_ConcurrentEditsOnDifferentKeysMerge(t *testing.T) {
	t.Parallel()

	baseURL := startServer(t)

	peerA, err := fortress.NewWithPasswordDebug("carol", "correcthorsebatterystaple")
	require.NoError(t, err)
	peerA.SetSyncURL(baseURL)

	entry, err := fortress.NewEntry()
	require.NoError(t, err)
	peerA.AddEntry(entry)
	require.NoError(t, peerA.Sync(context.Background(), http.DefaultClient))

	peerB, err := fortress.NewWithPasswordDebug("carol", "correcthorsebatterystaple")
	require.NoError(t, err)
	peerB.SetSyncURL(baseURL)
	require.NoError(t, peerB.Sync(context.Background(), http.DefaultClient))

	entryA, err := peerA.GetEntryByID(entry.ID())
	require.NoError(t, err)
	entryA.Edit(fortress.EntryEdit{Time: 10, Data: map[string]string{"username": "carol"}})
	require.NoError(t, peerA.Sync(context.Background(), http.DefaultClient))

	entryB, err := peerB.GetEntryByID(entry.ID())
	require.NoError(t, err)
	entryB.Edit(fortress.EntryEdit{Time: 20, Data: map[string]string{"notes": "rotate quarterly"}})
	require.NoError(t, peerB.Sync(context.Background(), http.DefaultClient))

	require.NoError(t, peerA.Sync(context.Background(), http.DefaultClient))

	merged, err := peerA.GetEntryByID(entry.ID())
	require.NoError(t, err)
	username, ok := merged.Get("username")
	require.True(t, ok)
	require.Equal(t, "carol", username)
	notes, ok := merged.Get("notes")
	require.True(t, ok)
	require.Equal(t, "rotate quarterly", notes)
}
