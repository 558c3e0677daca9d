// Package store persists the game catalog and per-user collections in a
// relational database through GORM.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"moul.io/zapgorm2"

	"github.com/kward/boardshelf"
)

const insertBatchSize = 500

// Store implements boardshelf.Store on top of a gorm connection.
type Store struct {
	db *gorm.DB
}

// Open connects to postgres, routes gorm logs through zap, and migrates
// the schema.
func Open(dsn string, zl *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}

	gl := zapgorm2.New(zl)
	gl.IgnoreRecordNotFoundError = true
	gl.LogLevel = gormlogger.Warn

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// New wraps an existing gorm connection. The schema must already be
// migrated.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ExistingGameIDs returns the subset of ids already present in the
// catalog.
func (s *Store) ExistingGameIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []int64
	err := s.db.WithContext(ctx).
		Model(&Game{}).
		Where("bgg_game_id IN ?", ids).
		Pluck("bgg_game_id", &found).Error
	if err != nil {
		return nil, fmt.Errorf("querying catalog ids: %w", err)
	}
	return found, nil
}

// InsertGames bulk-inserts catalog rows as one transaction.
func (s *Store) InsertGames(ctx context.Context, games []*boardshelf.Game) error {
	if len(games) == 0 {
		return nil
	}

	rows := make([]Game, len(games))
	for i, g := range games {
		rows[i] = newGameRow(g)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
}

// CreateUser inserts a User row. The caller passes the name already
// lowercased.
func (s *Store) CreateUser(ctx context.Context, username string) error {
	return s.db.WithContext(ctx).Create(&User{Name: username}).Error
}

// UserExists reports whether a User row exists for the name.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&User{}).
		Where("name = ?", username).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("querying user %q: %w", username, err)
	}
	return count > 0, nil
}

// OwnedGameIDs returns the BGG ids of the user's ownership rows.
func (s *Store) OwnedGameIDs(ctx context.Context, username string) ([]int64, error) {
	uid, err := s.userID(ctx, username)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = s.db.WithContext(ctx).
		Model(&UserGame{}).
		Where("user_id = ?", uid).
		Pluck("bgg_game_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("querying owned games for %q: %w", username, err)
	}
	return ids, nil
}

// AddOwnedGames bulk-inserts ownership rows as one transaction.
func (s *Store) AddOwnedGames(ctx context.Context, username string, games []boardshelf.OwnedGame) error {
	if len(games) == 0 {
		return nil
	}

	uid, err := s.userID(ctx, username)
	if err != nil {
		return err
	}

	rows := make([]UserGame, len(games))
	for i, g := range games {
		rows[i] = UserGame{
			UserID:     uid,
			BGGGameID:  g.ID,
			UserRating: g.Rating,
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
}

// RemoveOwnedGames bulk-deletes ownership rows as one transaction.
func (s *Store) RemoveOwnedGames(ctx context.Context, username string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	uid, err := s.userID(ctx, username)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.
			Where("user_id = ? AND bgg_game_id IN ?", uid, ids).
			Delete(&UserGame{}).Error
	})
}

type collectionRow struct {
	Game       Game `gorm:"embedded"`
	UserRating *float64
}

// GamesForUser inner-joins the user's ownership rows with the catalog on
// the natural BGG id and returns them in insertion order.
func (s *Store) GamesForUser(ctx context.Context, username string) ([]boardshelf.CollectionEntry, error) {
	uid, err := s.userID(ctx, username)
	if err != nil {
		return nil, err
	}

	var rows []collectionRow
	err = s.db.WithContext(ctx).
		Table("user_games").
		Select("games.*, user_games.user_rating AS user_rating").
		Joins("INNER JOIN games ON games.bgg_game_id = user_games.bgg_game_id").
		Where("user_games.user_id = ?", uid).
		Order("user_games.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying collection for %q: %w", username, err)
	}

	entries := make([]boardshelf.CollectionEntry, len(rows))
	for i, row := range rows {
		entries[i] = boardshelf.CollectionEntry{
			Game:       row.Game.record(),
			UserRating: row.UserRating,
		}
	}
	return entries, nil
}

func (s *Store) userID(ctx context.Context, username string) (int64, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("name = ?", username).First(&user).Error; err != nil {
		return 0, fmt.Errorf("looking up user %q: %w", username, err)
	}
	return user.ID, nil
}
