package store

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kward/boardshelf"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	// In-memory SQLite with a silent logger to avoid test output pollution.
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return New(db)
}

func testGame(id int64, title, gameType string) *boardshelf.Game {
	return &boardshelf.Game{
		BGGID:              id,
		Title:              title,
		Type:               gameType,
		YearPublished:      2017,
		MinPlayers:         1,
		MaxPlayers:         4,
		PlayingTime:        90,
		MinPlayingTime:     60,
		MaxPlayingTime:     120,
		MinAge:             12,
		AverageRating:      7.9,
		BayesAverageRating: 7.5,
		Rank:               42,
		AverageWeight:      2.8,
		WeightVotes:        900,
		Designers:          "Some Designer",
		Mechanics:          "Deck Building|Worker Placement",
		Categories:         "Economic",
		BestPlayers:        "3",
		RecommendedPlayers: "2|3|4",
	}
}

func TestInsertGamesAndExistingIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	games := []*boardshelf.Game{
		testGame(1, "Gloomhaven", boardshelf.TypeBaseGame),
		testGame(2, "Scythe", boardshelf.TypeBaseGame),
	}
	if err := s.InsertGames(ctx, games); err != nil {
		t.Fatalf("Failed to insert games: %v", err)
	}

	found, err := s.ExistingGameIDs(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("Failed to query existing ids: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("Expected 2 existing ids, got %v", found)
	}

	foundSet := map[int64]bool{}
	for _, id := range found {
		foundSet[id] = true
	}
	if !foundSet[1] || !foundSet[2] {
		t.Errorf("Expected ids 1 and 2, got %v", found)
	}

	// Empty input short-circuits without touching the database.
	found, err = s.ExistingGameIDs(ctx, nil)
	if err != nil {
		t.Fatalf("Failed on empty id list: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("Expected no ids for empty input, got %v", found)
	}
}

func TestCatalogNaturalKeyIsUnique(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.InsertGames(ctx, []*boardshelf.Game{testGame(42, "Root", boardshelf.TypeBaseGame)}); err != nil {
		t.Fatalf("Failed to insert game: %v", err)
	}

	// A second insert of the same BGG id must violate the unique index.
	if err := s.InsertGames(ctx, []*boardshelf.Game{testGame(42, "Root", boardshelf.TypeBaseGame)}); err == nil {
		t.Error("Expected error when inserting duplicate bgg_game_id")
	}
}

func TestCreateUserAndUserExists(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	exists, err := s.UserExists(ctx, "rahdo")
	if err != nil {
		t.Fatalf("Failed to check user: %v", err)
	}
	if exists {
		t.Error("Expected user to not exist before creation")
	}

	if err := s.CreateUser(ctx, "rahdo"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	exists, err = s.UserExists(ctx, "rahdo")
	if err != nil {
		t.Fatalf("Failed to check user: %v", err)
	}
	if !exists {
		t.Error("Expected user to exist after creation")
	}

	// Usernames are unique.
	if err := s.CreateUser(ctx, "rahdo"); err == nil {
		t.Error("Expected error when creating duplicate user")
	}
}

func TestOwnedGamesAddAndRemove(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, "quinns"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	rating := 8.5
	owned := []boardshelf.OwnedGame{
		{ID: 1},
		{ID: 2, Rating: &rating},
		{ID: 3},
	}
	if err := s.AddOwnedGames(ctx, "quinns", owned); err != nil {
		t.Fatalf("Failed to add owned games: %v", err)
	}

	ids, err := s.OwnedGameIDs(ctx, "quinns")
	if err != nil {
		t.Fatalf("Failed to query owned ids: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("Expected 3 owned ids, got %v", ids)
	}

	if err := s.RemoveOwnedGames(ctx, "quinns", []int64{1, 3}); err != nil {
		t.Fatalf("Failed to remove owned games: %v", err)
	}

	ids, err = s.OwnedGameIDs(ctx, "quinns")
	if err != nil {
		t.Fatalf("Failed to query owned ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("Expected only id 2 to remain, got %v", ids)
	}
}

func TestOwnedGamesUnknownUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.OwnedGameIDs(ctx, "nobody"); err == nil {
		t.Error("Expected error for unknown user")
	}
	if err := s.AddOwnedGames(ctx, "nobody", []boardshelf.OwnedGame{{ID: 1}}); err == nil {
		t.Error("Expected error for unknown user")
	}
}

func TestGamesForUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	games := []*boardshelf.Game{
		testGame(10, "Wingspan", boardshelf.TypeBaseGame),
		testGame(11, "Wingspan: Europe", boardshelf.TypeExpansion),
		testGame(12, "Brass", boardshelf.TypeBaseGame),
	}
	if err := s.InsertGames(ctx, games); err != nil {
		t.Fatalf("Failed to insert games: %v", err)
	}
	if err := s.CreateUser(ctx, "elaine"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	rating := 9.0
	owned := []boardshelf.OwnedGame{
		{ID: 10, Rating: &rating},
		{ID: 11},
	}
	if err := s.AddOwnedGames(ctx, "elaine", owned); err != nil {
		t.Fatalf("Failed to add owned games: %v", err)
	}

	entries, err := s.GamesForUser(ctx, "elaine")
	if err != nil {
		t.Fatalf("Failed to query collection: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	// Insertion order is preserved.
	if entries[0].BGGID != 10 || entries[1].BGGID != 11 {
		t.Errorf("Expected entries in insertion order, got %d then %d", entries[0].BGGID, entries[1].BGGID)
	}

	if entries[0].Title != "Wingspan" {
		t.Errorf("Expected joined title Wingspan, got %q", entries[0].Title)
	}
	if entries[0].UserRating == nil || *entries[0].UserRating != 9.0 {
		t.Errorf("Expected user rating 9.0, got %v", entries[0].UserRating)
	}
	if entries[1].UserRating != nil {
		t.Errorf("Expected nil rating for unrated game, got %v", entries[1].UserRating)
	}
	if !entries[1].IsExpansion() {
		t.Error("Expected second entry to be an expansion")
	}
}

func TestGamesForUserSharedCatalog(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.InsertGames(ctx, []*boardshelf.Game{testGame(42, "Root", boardshelf.TypeBaseGame)}); err != nil {
		t.Fatalf("Failed to insert game: %v", err)
	}

	for _, name := range []string{"alice", "bob"} {
		if err := s.CreateUser(ctx, name); err != nil {
			t.Fatalf("Failed to create user %s: %v", name, err)
		}
		if err := s.AddOwnedGames(ctx, name, []boardshelf.OwnedGame{{ID: 42}}); err != nil {
			t.Fatalf("Failed to add owned game for %s: %v", name, err)
		}
	}

	for _, name := range []string{"alice", "bob"} {
		entries, err := s.GamesForUser(ctx, name)
		if err != nil {
			t.Fatalf("Failed to query collection for %s: %v", name, err)
		}
		if len(entries) != 1 || entries[0].BGGID != 42 {
			t.Errorf("Expected %s to own game 42, got %+v", name, entries)
		}
	}
}
