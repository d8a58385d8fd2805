// Copyright (c) 2025 Justin Cranford

package fortress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	fortresscrypto "fortress/internal/fortresscrypto"
)

var tracer = otel.Tracer("fortress/internal/fortress")

// maxSyncRetries bounds how many push attempts a single object gets in one
// pass: after that many 409s (someone else pushed first) the push gives up
// with ErrSyncInconsistentServer (§4.8 step 4).
const maxSyncRetries = 5

// Sync runs one pass of the algorithm in §4.8: pull and merge every
// remote-changed object, then push every local-dirty object, retrying a
// push that loses a 409 race until maxSyncRetries attempts have been made. The caller may
// call Sync again if it wants to keep converging after a partial failure.
func (db *Database) Sync(ctx context.Context, client *http.Client) error {
	ctx, span := tracer.Start(ctx, "Database.Sync")
	defer span.End()

	baseURL, ok := db.GetSyncURL()
	if !ok {
		span.RecordError(ErrSyncBadURL)
		span.SetStatus(codes.Error, ErrSyncBadURL.Error())
		return ErrSyncBadURL
	}
	span.SetAttributes(attribute.String("fortress.sync.login_id", db.syncParameters.LoginID().Hex()))
	if client == nil {
		client = http.DefaultClient
	}

	auth := db.authHeader()
	remote, err := fetchObjectList(ctx, client, baseURL, auth)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	dirty := make(map[ID]struct{})
	if err := db.pullRemoteChanges(ctx, client, baseURL, auth, remote, dirty); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	db.markLocalChanges(dirty)

	for _, id := range sortedIDSet(dirty) {
		if err := db.pushWithRetry(ctx, client, baseURL, auth, id); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	span.SetAttributes(attribute.Int("fortress.sync.pushed_count", len(dirty)))
	return nil
}

func (db *Database) authHeader() string {
	return "Bearer " + db.syncParameters.LoginID().Hex() + db.syncParameters.LoginKey().Hex()
}

func fetchObjectList(ctx context.Context, client *http.Client, baseURL, auth string) (map[ID]fortresscrypto.Tag, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/objects", nil)
	if err != nil {
		return nil, fmt.Errorf("fortress: build sync request: %w", err)
	}
	req.Header.Set("Authorization", auth)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fortress: sync request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var rawPairs [][2]string
	if err := json.NewDecoder(resp.Body).Decode(&rawPairs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	out := make(map[ID]fortresscrypto.Tag, len(rawPairs))
	for _, pair := range rawPairs {
		id, err := IDFromHex(pair[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
		}
		siv, err := fortresscrypto.TagFromHex(pair[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
		}
		out[id] = siv
	}
	return out, nil
}

// pullRemoteChanges implements §4.8 step 3's remote-new/remote-changed
// branch. Any ID whose merge outcome still needs to be pushed back (kept
// local, or a successful 3-way merge) is added to dirty.
func (db *Database) pullRemoteChanges(ctx context.Context, client *http.Client, baseURL, auth string, remote map[ID]fortresscrypto.Tag, dirty map[ID]struct{}) error {
	suite := db.syncParameters.NetworkKeySuite()

	for _, id := range sortedIDMapKeys(remote) {
		remoteSIV := remote[id]
		if cached, ok := db.sivCache[id]; ok && cached.Equal(remoteSIV) {
			continue
		}

		remoteObj, err := fetchObject(ctx, client, baseURL, auth, id, remoteSIV, suite)
		if err != nil {
			return err
		}

		localObj, haveLocal := db.objects.Get(id)
		switch {
		case !haveLocal:
			db.objects.Put(remoteObj)
			db.sivCache[id] = remoteSIV

		case remoteObj.SafeToReplaceWith(localObj):
			// Local is already ahead of (or equal to) the server. Cache
			// remoteSIV anyway: it is the server's current version tag,
			// and the next push's old_siv must match it, not whatever
			// stale tag we last observed.
			db.sivCache[id] = remoteSIV
			dirty[id] = struct{}{}

		case localObj.SafeToReplaceWith(remoteObj):
			db.objects.Put(remoteObj)
			db.sivCache[id] = remoteSIV

		default:
			merged, ok := localObj.Merge(remoteObj)
			if !ok {
				return fmt.Errorf("%w: object %s", ErrSyncConflict, id)
			}
			db.objects.Put(merged)
			db.sivCache[id] = remoteSIV
			dirty[id] = struct{}{}
		}
	}
	return nil
}

// markLocalChanges implements §4.8 step 3's local-new/local-changed
// branch: any object we hold that has no cached SIV, or whose serialized
// bytes no longer match the content the cached SIV was computed over, is
// dirty. Recomputing the SIV deterministically (same NetworkKeySuite, same
// aad) is cheaper than keeping a separate dirty bit and can't drift from
// the cache's own invariant.
func (db *Database) markLocalChanges(dirty map[ID]struct{}) {
	suite := db.syncParameters.NetworkKeySuite()

	for _, id := range db.objects.SortedIDs() {
		if _, alreadyDirty := dirty[id]; alreadyDirty {
			continue
		}
		obj, _ := db.objects.Get(id)
		plaintext, err := json.Marshal(obj)
		if err != nil {
			continue
		}
		siv, _ := fortresscrypto.NetworkEncrypt(suite, id[:], plaintext)
		cached, ok := db.sivCache[id]
		if !ok || !cached.Equal(siv) {
			dirty[id] = struct{}{}
		}
	}
}

func fetchObject(ctx context.Context, client *http.Client, baseURL, auth string, id ID, siv fortresscrypto.Tag, suite fortresscrypto.NetworkKeySuite) (DatabaseObject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/object/"+id.Hex(), nil)
	if err != nil {
		return DatabaseObject{}, fmt.Errorf("fortress: build sync request: %w", err)
	}
	req.Header.Set("Authorization", auth)

	resp, err := client.Do(req)
	if err != nil {
		return DatabaseObject{}, fmt.Errorf("fortress: sync request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DatabaseObject{}, apiError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return DatabaseObject{}, fmt.Errorf("fortress: read sync response: %w", err)
	}

	plaintext, tag, err := fortresscrypto.NetworkDecrypt(suite, id[:], body)
	if err != nil {
		return DatabaseObject{}, err
	}
	if !tag.Equal(siv) {
		return DatabaseObject{}, fmt.Errorf("%w: object %s: server-listed version tag does not match fetched content", ErrSyncConflict, id)
	}

	var obj DatabaseObject
	if err := json.Unmarshal(plaintext, &obj); err != nil {
		return DatabaseObject{}, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return obj, nil
}

// pushWithRetry implements §4.8 step 4: push, and on 409 re-fetch the object
// list, re-run the pull step for every object whose server SIV changed
// (this one included), and retry, bounded by maxSyncRetries attempts.
func (db *Database) pushWithRetry(ctx context.Context, client *http.Client, baseURL, auth string, id ID) error {
	suite := db.syncParameters.NetworkKeySuite()

	for attempt := 0; attempt < maxSyncRetries; attempt++ {
		obj, ok := db.objects.Get(id)
		if !ok {
			return nil
		}

		plaintext, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSerialization, err)
		}

		siv, body := fortresscrypto.NetworkEncrypt(suite, id[:], plaintext)
		oldSIV, havePrior := db.sivCache[id]
		if !havePrior {
			oldSIV = fortresscrypto.ZeroTag
		}

		status, err := pushObject(ctx, client, baseURL, auth, id, oldSIV, body)
		if err != nil {
			return err
		}
		if status == http.StatusOK {
			db.sivCache[id] = siv
			return nil
		}
		if status != http.StatusConflict {
			return fmt.Errorf("%w: object %s: unexpected status %d", ErrSyncConflict, id, status)
		}

		remote, err := fetchObjectList(ctx, client, baseURL, auth)
		if err != nil {
			return err
		}
		dirty := make(map[ID]struct{})
		if err := db.pullRemoteChanges(ctx, client, baseURL, auth, remote, dirty); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: object %s", ErrSyncInconsistentServer, id)
}

func pushObject(ctx context.Context, client *http.Client, baseURL, auth string, id ID, oldSIV fortresscrypto.Tag, body []byte) (int, error) {
	url := baseURL + "/object/" + id.Hex() + "/" + oldSIV.Hex()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("fortress: build sync request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fortress: sync request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		return 0, apiError(resp)
	}
	return resp.StatusCode, nil
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		return &SyncAPIError{Status: resp.StatusCode, Message: "authentication failed"}
	}
	return &SyncAPIError{Status: resp.StatusCode, Message: string(body)}
}

func sortedIDMapKeys(m map[ID]fortresscrypto.Tag) []ID {
	ids := make([]ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return sortIDs(ids)
}

func sortedIDSet(m map[ID]struct{}) []ID {
	ids := make([]ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return sortIDs(ids)
}

func sortIDs(ids []ID) []ID {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}
