package boardshelf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidUsername means BGG does not know the username. Terminal:
	// nothing is written and the caller should prompt for a correction.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrSyncTimeout means the collection export was still pending after
	// the last fetch attempt. The sync gives up rather than reconciling
	// against data it never received.
	ErrSyncTimeout = errors.New("collection export still pending")
)

const (
	maxFetchAttempts  = 5
	pendingRetryDelay = 5 * time.Second
)

// Store is the persistence surface the engine reconciles against.
type Store interface {
	// ExistingGameIDs returns the subset of ids already in the catalog.
	ExistingGameIDs(ctx context.Context, ids []int64) ([]int64, error)
	// InsertGames bulk-inserts catalog rows in one transaction.
	InsertGames(ctx context.Context, games []*Game) error

	CreateUser(ctx context.Context, username string) error
	UserExists(ctx context.Context, username string) (bool, error)

	// OwnedGameIDs returns the BGG ids of a user's ownership rows.
	OwnedGameIDs(ctx context.Context, username string) ([]int64, error)
	// AddOwnedGames bulk-inserts ownership rows in one transaction.
	AddOwnedGames(ctx context.Context, username string, games []OwnedGame) error
	// RemoveOwnedGames bulk-deletes ownership rows in one transaction.
	RemoveOwnedGames(ctx context.Context, username string, ids []int64) error

	// GamesForUser returns the joined user and game rows, in insertion
	// order.
	GamesForUser(ctx context.Context, username string) ([]CollectionEntry, error)
}

// Engine reconciles a user's remote collection against the local store.
// It is the upward interface the web layer and CLIs call.
type Engine struct {
	Client *Client
	Store  Store

	// RetryDelay is the wait between fetch attempts while the export is
	// pending. Zero means the default 5s.
	RetryDelay time.Duration
}

// SyncCollection makes the stored ownership rows for username match the
// remote collection. existing selects resync semantics: for a new user a
// User row is created and every pair inserted; for an existing user the
// diff is applied, leaving unchanged rows (and their ratings) alone.
//
// Writes happen in two phases, catalog rows first, then user and
// ownership rows. Each phase is transactional on its own; a failure
// between phases leaves the extra catalog rows behind, which is harmless
// because the catalog is append-only and shared.
func (e *Engine) SyncCollection(ctx context.Context, username string, existing bool) error {
	username = strings.ToLower(username)

	result, err := e.fetchWithRetry(ctx, username)
	if err != nil {
		return err
	}

	ids := make([]int64, len(result.Games))
	for i, g := range result.Games {
		ids[i] = g.ID
	}

	if err := e.insertMissingGames(ctx, ids); err != nil {
		return err
	}

	if !existing {
		if err := e.Store.CreateUser(ctx, username); err != nil {
			return fmt.Errorf("creating user %q: %w", username, err)
		}
		if err := e.Store.AddOwnedGames(ctx, username, dedupeByID(result.Games)); err != nil {
			return fmt.Errorf("inserting owned games for %q: %w", username, err)
		}
		log.Infow("collection synced", "username", username, "games", len(result.Games))
		return nil
	}

	ownedIDs, err := e.Store.OwnedGameIDs(ctx, username)
	if err != nil {
		return fmt.Errorf("loading owned games for %q: %w", username, err)
	}
	owned := make(map[int64]bool, len(ownedIDs))
	for _, id := range ownedIDs {
		owned[id] = true
	}

	fetched := make(map[int64]bool, len(ids))
	var toAdd []OwnedGame
	for _, g := range dedupeByID(result.Games) {
		fetched[g.ID] = true
		if !owned[g.ID] {
			toAdd = append(toAdd, g)
		}
	}

	var stale []int64
	for _, id := range ownedIDs {
		if !fetched[id] {
			stale = append(stale, id)
		}
	}

	if len(toAdd) > 0 {
		if err := e.Store.AddOwnedGames(ctx, username, toAdd); err != nil {
			return fmt.Errorf("inserting owned games for %q: %w", username, err)
		}
	}
	if len(stale) > 0 {
		if err := e.Store.RemoveOwnedGames(ctx, username, stale); err != nil {
			return fmt.Errorf("removing stale games for %q: %w", username, err)
		}
	}

	log.Infow("collection resynced", "username", username, "added", len(toAdd), "removed", len(stale))
	return nil
}

// FilteredGames loads the user's stored collection and runs the filter
// pipeline over it.
func (e *Engine) FilteredGames(ctx context.Context, username string, f Filters) ([]CollectionEntry, error) {
	entries, err := e.Store.GamesForUser(ctx, strings.ToLower(username))
	if err != nil {
		return nil, fmt.Errorf("loading collection for %q: %w", username, err)
	}
	return f.Apply(entries), nil
}

// UserExists reports whether the username has been synced before.
func (e *Engine) UserExists(ctx context.Context, username string) (bool, error) {
	return e.Store.UserExists(ctx, strings.ToLower(username))
}

func (e *Engine) fetchWithRetry(ctx context.Context, username string) (*CollectionResult, error) {
	delay := e.RetryDelay
	if delay <= 0 {
		delay = pendingRetryDelay
	}

	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		result, err := e.Client.FetchCollection(ctx, username)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case CollectionInvalidUsername:
			return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
		case CollectionReady:
			return result, nil
		case CollectionPending:
			if attempt == maxFetchAttempts {
				continue
			}
			log.Infow("collection export pending, retrying", "username", username, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("%w: %q after %d attempts", ErrSyncTimeout, username, maxFetchAttempts)
}

// insertMissingGames fetches full records for collection ids the catalog
// has never seen and bulk-inserts them. Catalog rows are never updated
// once present.
func (e *Engine) insertMissingGames(ctx context.Context, ids []int64) error {
	unique := dedupeIDs(ids)
	if len(unique) == 0 {
		return nil
	}

	known, err := e.Store.ExistingGameIDs(ctx, unique)
	if err != nil {
		return fmt.Errorf("looking up catalog ids: %w", err)
	}
	knownSet := make(map[int64]bool, len(known))
	for _, id := range known {
		knownSet[id] = true
	}

	var missing []int64
	for _, id := range unique {
		if !knownSet[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	games, err := e.Client.FetchGames(ctx, missing)
	if err != nil {
		return err
	}
	if err := e.Store.InsertGames(ctx, games); err != nil {
		return fmt.Errorf("inserting %d catalog rows: %w", len(games), err)
	}

	log.Infow("catalog updated", "inserted", len(games))
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// dedupeByID keeps one ownership pair per game id, so a user never gets
// two rows for the same game even if the remote set carried the id twice
// with different ratings.
func dedupeByID(games []OwnedGame) []OwnedGame {
	seen := make(map[int64]bool, len(games))
	out := make([]OwnedGame, 0, len(games))
	for _, g := range games {
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		out = append(out, g)
	}
	return out
}
