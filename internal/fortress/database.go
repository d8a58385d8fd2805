// Copyright (c) 2025 Justin Cranford

package fortress

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	fortresscrypto "fortress/internal/fortresscrypto"
)

// Database is the single-owner, synchronous root of the object model: an
// ObjectMap, a distinguished root Directory, the derived SyncParameters,
// an optional sync URL, and the SIV cache that lets the sync client tell
// its own dirty objects apart from the server's (§4.7, §5).
type Database struct {
	objects         *ObjectMap
	rootDirectoryID ID
	syncParameters  SyncParameters
	syncURL         *string
	sivCache        map[ID]fortresscrypto.Tag

	// password is retained in memory so save_to_path can derive a fresh
	// FileKeySuite without asking the caller to supply the password on
	// every save (§4.2, §4.7). It is never persisted or transmitted.
	password string

	// fileKeySuite is cached after the most recent save or load, for
	// callers that want to inspect the currently active file parameters
	// without re-deriving them.
	fileKeySuite *fortresscrypto.FileKeySuite
}

// NewWithPassword derives MasterKey (slow: release-cost Scrypt), creates
// and inserts a root Directory, and returns a fresh Database with no sync
// URL set (§4.7).
func NewWithPassword(username, password string) (*Database, error) {
	return newWithPassword(username, password, fortresscrypto.ReleaseMasterKeyParams)
}

// NewWithPasswordDebug is the cheap-cost variant used by tests.
func NewWithPasswordDebug(username, password string) (*Database, error) {
	return newWithPassword(username, password, fortresscrypto.DebugMasterKeyParams)
}

func newWithPassword(username, password string, params fortresscrypto.MasterKeyParams) (*Database, error) {
	syncParams, err := NewSyncParameters(username, password, params)
	if err != nil {
		return nil, err
	}

	root, err := NewDirectory()
	if err != nil {
		return nil, err
	}

	objects := NewObjectMap()
	objects.Put(NewDirectoryObject(root))

	return &Database{
		objects:         objects,
		rootDirectoryID: root.ID(),
		syncParameters:  syncParams,
		sivCache:        make(map[ID]fortresscrypto.Tag),
		password:        password,
	}, nil
}

// ChangePassword rederives MasterKey and every key suite from (username,
// password). The on-disk file parameters are only refreshed on the next
// save_to_path (§4.7). Fails only if Scrypt rejects the MasterKey cost
// parameters; no randomness is drawn here.
func (db *Database) ChangePassword(username, password string) error {
	syncParams, err := NewSyncParameters(username, password, fortresscrypto.ReleaseMasterKeyParams)
	if err != nil {
		return err
	}
	db.syncParameters = syncParams
	db.password = password
	db.fileKeySuite = nil
	return nil
}

// AddEntry inserts e into the object map.
func (db *Database) AddEntry(e *Entry) {
	db.objects.Put(NewEntryObject(e))
}

// AddDirectory inserts d into the object map.
func (db *Database) AddDirectory(d *Directory) {
	db.objects.Put(NewDirectoryObject(d))
}

// GetEntryByID returns the Entry at id, ErrNotFound if absent, or
// ErrTypeMismatch if id names a Directory.
func (db *Database) GetEntryByID(id ID) (*Entry, error) {
	obj, ok := db.objects.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e, ok := obj.AsEntry()
	if !ok {
		return nil, fmt.Errorf("%w: %s is a directory", ErrTypeMismatch, id)
	}
	return e, nil
}

// GetEntryByIDMut is the mutable-intent accessor. Entry is a pointer type,
// so it is identical to GetEntryByID; callers mutate through the returned
// pointer and the change is visible immediately (§4.7, §5: single-owner
// interior mutation).
func (db *Database) GetEntryByIDMut(id ID) (*Entry, error) {
	return db.GetEntryByID(id)
}

// GetDirectoryByID returns the Directory at id, or ErrNotFound.
func (db *Database) GetDirectoryByID(id ID) (*Directory, error) {
	obj, ok := db.objects.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d, ok := obj.AsDirectory()
	if !ok {
		return nil, fmt.Errorf("%w: %s is an entry", ErrTypeMismatch, id)
	}
	return d, nil
}

// GetDirectoryByIDMut is the mutable-intent accessor; see GetEntryByIDMut.
func (db *Database) GetDirectoryByIDMut(id ID) (*Directory, error) {
	return db.GetDirectoryByID(id)
}

// GetRoot returns the root Directory.
func (db *Database) GetRoot() (*Directory, error) {
	return db.GetDirectoryByID(db.rootDirectoryID)
}

// GetRootMut is the mutable-intent accessor for the root Directory.
func (db *Database) GetRootMut() (*Directory, error) {
	return db.GetDirectoryByIDMut(db.rootDirectoryID)
}

// MoveObject removes id from its current parent directory, if any, and
// adds it to newParent. Idempotent if id is already a child of newParent
// (§4.7).
func (db *Database) MoveObject(id ID, newParent ID, t uint64) error {
	for _, dirID := range db.objects.SortedIDs() {
		obj, _ := db.objects.Get(dirID)
		dir, ok := obj.AsDirectory()
		if !ok || dirID == newParent {
			continue
		}
		if _, present := dir.Entries()[id]; present {
			dir.Remove(id, t)
		}
	}

	target, err := db.GetDirectoryByIDMut(newParent)
	if err != nil {
		return err
	}
	if _, present := target.Entries()[id]; !present {
		target.Add(id, t)
	}
	return nil
}

// ListEntries returns every Entry in the object map, ordered by ID.
func (db *Database) ListEntries() []*Entry {
	var out []*Entry
	for _, id := range db.objects.SortedIDs() {
		obj, _ := db.objects.Get(id)
		if e, ok := obj.AsEntry(); ok {
			out = append(out, e)
		}
	}
	return out
}

// ListDirectories returns every Directory in the object map, ordered by
// ID.
func (db *Database) ListDirectories() []*Directory {
	var out []*Directory
	for _, id := range db.objects.SortedIDs() {
		obj, _ := db.objects.Get(id)
		if d, ok := obj.AsDirectory(); ok {
			out = append(out, d)
		}
	}
	return out
}

// SetSyncURL sets or clears (pass "") the sync server URL.
func (db *Database) SetSyncURL(url string) {
	if url == "" {
		db.syncURL = nil
		return
	}
	db.syncURL = &url
}

// GetSyncURL returns the configured sync URL, if any.
func (db *Database) GetSyncURL() (string, bool) {
	if db.syncURL == nil {
		return "", false
	}
	return *db.syncURL, true
}

// GetUsername returns the plaintext username.
func (db *Database) GetUsername() string { return db.syncParameters.Username() }

// GetLoginID returns the server-visible login identifier.
func (db *Database) GetLoginID() fortresscrypto.Tag { return db.syncParameters.LoginID() }

// GetLoginKey returns the bearer credential.
func (db *Database) GetLoginKey() fortresscrypto.LoginKey { return db.syncParameters.LoginKey() }

// databaseWire is the persisted JSON shape (§6): stable field names
// "objects", "root_directory", "sync_parameters", "sync_url", "siv_cache".
type databaseWire struct {
	Objects        *ObjectMap         `json:"objects"`
	RootDirectory  ID                 `json:"root_directory"`
	SyncParameters SyncParameters     `json:"sync_parameters"`
	SyncURL        *string            `json:"sync_url"`
	SIVCache       map[string]string  `json:"siv_cache"`
}

func (db *Database) toWire() databaseWire {
	cache := make(map[string]string, len(db.sivCache))
	for id, siv := range db.sivCache {
		cache[id.Hex()] = siv.Hex()
	}
	return databaseWire{
		Objects:        db.objects,
		RootDirectory:  db.rootDirectoryID,
		SyncParameters: db.syncParameters,
		SyncURL:        db.syncURL,
		SIVCache:       cache,
	}
}

func databaseFromWire(wire databaseWire) (*Database, error) {
	sivCache := make(map[ID]fortresscrypto.Tag, len(wire.SIVCache))
	for idHex, sivHex := range wire.SIVCache {
		id, err := IDFromHex(idHex)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
		}
		siv, err := fortresscrypto.TagFromHex(sivHex)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
		}
		sivCache[id] = siv
	}

	return &Database{
		objects:         wire.Objects,
		rootDirectoryID: wire.RootDirectory,
		syncParameters:  wire.SyncParameters,
		syncURL:         wire.SyncURL,
		sivCache:        sivCache,
	}, nil
}

// SaveToPath serializes the database to JSON, gzip-compresses it, encrypts
// it with a fresh FileKeySuite, and writes the result to path, caching the
// new suite on success (§4.7).
func (db *Database) SaveToPath(path string) error {
	return db.saveToPath(path, fortresscrypto.NewReleaseFileEncryptionParams)
}

// SaveToPathDebug is the cheap-cost variant used by tests.
func (db *Database) SaveToPathDebug(path string) error {
	return db.saveToPath(path, fortresscrypto.NewDebugFileEncryptionParams)
}

func (db *Database) saveToPath(path string, newParams func() (fortresscrypto.FileEncryptionParams, error)) error {
	_, span := tracer.Start(context.Background(), "Database.SaveToPath")
	defer span.End()
	span.SetAttributes(attribute.Int("fortress.database.object_count", db.objects.Len()))

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	payload, err := json.Marshal(db.toWire())
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrSerialization, err))
	}

	compressed, err := gzipCompress(payload)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrSerialization, err))
	}

	params, err := newParams()
	if err != nil {
		return fail(err)
	}
	suite, err := fortresscrypto.DeriveFileKeySuite([]byte(db.password), params)
	if err != nil {
		return fail(err)
	}

	body, err := fortresscrypto.EncryptToFile(compressed, params, suite)
	if err != nil {
		return fail(err)
	}

	if err := os.WriteFile(path, body, 0o600); err != nil {
		return fail(fmt.Errorf("fortress: write database file: %w", err))
	}

	db.fileKeySuite = &suite
	return nil
}

// LoadFromPath is the inverse of SaveToPath: decrypt, decompress,
// deserialize, and reconstruct the Database.
func LoadFromPath(path, password string) (*Database, error) {
	_, span := tracer.Start(context.Background(), "Database.LoadFromPath")
	defer span.End()
	fail := func(err error) (*Database, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fail(fmt.Errorf("fortress: read database file: %w", err))
	}

	compressed, _, suite, err := fortresscrypto.DecryptFromFile(raw, []byte(password))
	if err != nil {
		return fail(err)
	}

	payload, err := gzipDecompress(compressed)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrSerialization, err))
	}

	var wire databaseWire
	wire.Objects = NewObjectMap()
	if err := json.Unmarshal(payload, &wire); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrSerialization, err))
	}

	db, err := databaseFromWire(wire)
	if err != nil {
		return fail(err)
	}
	db.password = password
	db.fileKeySuite = &suite
	return db, nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
