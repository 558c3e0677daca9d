package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/kward/boardshelf"
)

// Game is one cached catalog row. The natural key is the BGG id; rows are
// inserted once and never updated.
type Game struct {
	ID                 int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	BGGGameID          int64   `gorm:"column:bgg_game_id;uniqueIndex;not null" json:"bgg_game_id"`
	Title              string  `gorm:"type:text;not null" json:"title"`
	Type               string  `gorm:"type:text;not null" json:"type"`
	YearPublished      int     `gorm:"not null" json:"year_published"`
	Description        *string `gorm:"type:text" json:"description,omitempty"`
	ImageURL           *string `gorm:"type:text" json:"image_url,omitempty"`
	ThumbnailURL       *string `gorm:"type:text" json:"thumbnail_url,omitempty"`
	MinPlayers         int     `gorm:"not null" json:"min_players"`
	MaxPlayers         int     `gorm:"not null" json:"max_players"`
	PlayingTime        int     `gorm:"not null" json:"playing_time"`
	MinPlayingTime     int     `gorm:"not null" json:"min_playing_time"`
	MaxPlayingTime     int     `gorm:"not null" json:"max_playing_time"`
	MinAge             int     `gorm:"not null" json:"min_age"`
	AverageRating      float64 `gorm:"not null" json:"average_rating"`
	BayesAverageRating float64 `gorm:"not null" json:"bayes_average_rating"`
	BoardGameRank      int     `gorm:"not null" json:"board_game_rank"`
	AverageWeight      float64 `gorm:"not null" json:"average_weight"`
	WeightVotes        int     `gorm:"not null" json:"weight_votes"`
	Designers          string  `gorm:"type:text;not null" json:"designers"`
	Mechanics          string  `gorm:"type:text;not null" json:"mechanics"`
	Categories         string  `gorm:"type:text;not null" json:"categories"`

	BestPlayers               string `gorm:"type:text;not null" json:"best_players"`
	RecommendedPlayers        string `gorm:"type:text;not null" json:"recommended_players"`
	RecommendedNotBestPlayers string `gorm:"type:text;not null" json:"recommended_not_best_players"`

	CreatedAt time.Time `json:"created_at"`
}

// User is a linked BGG username. Names are stored lowercase and created
// exactly once, on first sync.
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:text;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// UserGame links a User to a catalog game by the natural BGG id, not the
// Game primary key, and carries the user's rating if any. Rows are
// created and deleted in bulk during sync, never edited.
type UserGame struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"index;not null" json:"user_id"`
	BGGGameID  int64     `gorm:"column:bgg_game_id;index;not null" json:"bgg_game_id"`
	UserRating *float64  `json:"user_rating,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AutoMigrate runs the database migrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Game{}, &User{}, &UserGame{})
}

func newGameRow(g *boardshelf.Game) Game {
	return Game{
		BGGGameID:          g.BGGID,
		Title:              g.Title,
		Type:               g.Type,
		YearPublished:      g.YearPublished,
		Description:        g.Description,
		ImageURL:           g.ImageURL,
		ThumbnailURL:       g.ThumbnailURL,
		MinPlayers:         g.MinPlayers,
		MaxPlayers:         g.MaxPlayers,
		PlayingTime:        g.PlayingTime,
		MinPlayingTime:     g.MinPlayingTime,
		MaxPlayingTime:     g.MaxPlayingTime,
		MinAge:             g.MinAge,
		AverageRating:      g.AverageRating,
		BayesAverageRating: g.BayesAverageRating,
		BoardGameRank:      g.Rank,
		AverageWeight:      g.AverageWeight,
		WeightVotes:        g.WeightVotes,
		Designers:          g.Designers,
		Mechanics:          g.Mechanics,
		Categories:         g.Categories,

		BestPlayers:               g.BestPlayers,
		RecommendedPlayers:        g.RecommendedPlayers,
		RecommendedNotBestPlayers: g.RecommendedNotBestPlayers,
	}
}

func (g Game) record() boardshelf.Game {
	return boardshelf.Game{
		BGGID:              g.BGGGameID,
		Title:              g.Title,
		Type:               g.Type,
		YearPublished:      g.YearPublished,
		Description:        g.Description,
		ImageURL:           g.ImageURL,
		ThumbnailURL:       g.ThumbnailURL,
		MinPlayers:         g.MinPlayers,
		MaxPlayers:         g.MaxPlayers,
		PlayingTime:        g.PlayingTime,
		MinPlayingTime:     g.MinPlayingTime,
		MaxPlayingTime:     g.MaxPlayingTime,
		MinAge:             g.MinAge,
		AverageRating:      g.AverageRating,
		BayesAverageRating: g.BayesAverageRating,
		Rank:               g.BoardGameRank,
		AverageWeight:      g.AverageWeight,
		WeightVotes:        g.WeightVotes,
		Designers:          g.Designers,
		Mechanics:          g.Mechanics,
		Categories:         g.Categories,

		BestPlayers:               g.BestPlayers,
		RecommendedPlayers:        g.RecommendedPlayers,
		RecommendedNotBestPlayers: g.RecommendedNotBestPlayers,
	}
}
