package boardshelf

// Game types as reported by the thing endpoint.
const (
	TypeBaseGame  = "boardgame"
	TypeExpansion = "boardgameexpansion"
)

// Game is one normalized catalog record. Rows are inserted once, keyed by
// the BGG id, and never updated afterwards.
type Game struct {
	BGGID              int64    `json:"bgg_game_id"`
	Title              string   `json:"title"`
	Type               string   `json:"type"`
	YearPublished      int      `json:"year_published"`
	Description        *string  `json:"description,omitempty"`
	ImageURL           *string  `json:"image_url,omitempty"`
	ThumbnailURL       *string  `json:"thumbnail_url,omitempty"`
	MinPlayers         int      `json:"min_players"`
	MaxPlayers         int      `json:"max_players"`
	PlayingTime        int      `json:"playing_time"`
	MinPlayingTime     int      `json:"min_playing_time"`
	MaxPlayingTime     int      `json:"max_playing_time"`
	MinAge             int      `json:"min_age"`
	AverageRating      float64  `json:"average_rating"`
	BayesAverageRating float64  `json:"bayes_average_rating"`
	Rank               int      `json:"board_game_rank"`
	AverageWeight      float64  `json:"average_weight"`
	WeightVotes        int      `json:"weight_votes"`
	Designers          string   `json:"designers"`
	Mechanics          string   `json:"mechanics"`
	Categories         string   `json:"categories"`

	// Derived from the suggested_numplayers poll, pipe-joined in poll order.
	BestPlayers               string `json:"best_players"`
	RecommendedPlayers        string `json:"recommended_players"`
	RecommendedNotBestPlayers string `json:"recommended_not_best_players"`
}

// IsExpansion reports whether the record is an expansion of a base game.
func (g *Game) IsExpansion() bool {
	return g.Type == TypeExpansion
}

// OwnedGame is one entry of a user's remote collection: the BGG id of the
// game plus the user's rating, if they rated it.
type OwnedGame struct {
	ID     int64
	Rating *float64
}

// CollectionEntry is one row of the joined user and game set, as served to
// the web layer.
type CollectionEntry struct {
	Game
	UserRating *float64 `json:"user_rating,omitempty"`
}
