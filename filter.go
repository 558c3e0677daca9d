package boardshelf

import (
	"sort"
	"strconv"
	"strings"
)

// PlayerCountMode selects how the player-count filter is evaluated.
type PlayerCountMode int

const (
	// PlayerCountPossible keeps games whose min/max player range covers
	// the count.
	PlayerCountPossible PlayerCountMode = iota
	// PlayerCountRecommended matches against the poll-derived recommended
	// counts.
	PlayerCountRecommended
	// PlayerCountBest matches against the poll-derived best counts.
	PlayerCountBest
)

// Sort field display names, as the web layer shows them.
const (
	SortTitle         = "Title"
	SortYearPublished = "Year Published"
	SortRating        = "Rating"
	SortGeekRating    = "Geek Rating"
	SortRank          = "Rank"
	SortComplexity    = "Complexity"
	SortPlayingTime   = "Playing Time"
	SortYourRating    = "Your Rating"
)

// Filters narrows and orders one user's collection. A nil field leaves
// its stage inactive; the stages are independent of each other.
type Filters struct {
	PlayerCount       *int
	PlayerCountMode   PlayerCountMode
	MinPlayingTime    *int
	MaxPlayingTime    *int
	MinWeight         *float64
	MaxWeight         *float64
	IncludeExpansions bool
	SortField         string
	SortDescending    bool
}

// Apply runs every active stage over the entries and sorts the survivors.
// The input slice is left alone.
func (f Filters) Apply(entries []CollectionEntry) []CollectionEntry {
	out := make([]CollectionEntry, 0, len(entries))
	for _, e := range entries {
		if f.keep(e) {
			out = append(out, e)
		}
	}
	f.sortEntries(out)
	return out
}

func (f Filters) keep(e CollectionEntry) bool {
	if !f.IncludeExpansions && e.IsExpansion() {
		return false
	}

	if f.PlayerCount != nil {
		n := *f.PlayerCount
		switch f.PlayerCountMode {
		case PlayerCountPossible:
			if n < e.MinPlayers || n > e.MaxPlayers {
				return false
			}
		case PlayerCountRecommended:
			if !containsCount(e.RecommendedPlayers, n) {
				return false
			}
		case PlayerCountBest:
			if !containsCount(e.BestPlayers, n) {
				return false
			}
		}
	}

	if f.MinPlayingTime != nil && e.MinPlayingTime < *f.MinPlayingTime {
		return false
	}
	if f.MaxPlayingTime != nil && e.MaxPlayingTime > *f.MaxPlayingTime {
		return false
	}
	if f.MinWeight != nil && e.AverageWeight < *f.MinWeight {
		return false
	}
	if f.MaxWeight != nil && e.AverageWeight > *f.MaxWeight {
		return false
	}

	return true
}

// containsCount reports whether the pipe-joined counts field contains n as
// a whole token: "2|3|4" contains 3 but not 23.
func containsCount(field string, n int) bool {
	if field == "" {
		return false
	}
	want := strconv.Itoa(n)
	for _, tok := range strings.Split(field, "|") {
		if tok == want {
			return true
		}
	}
	return false
}

// sortEntries is a stable sort, so rows that compare equal keep their
// stored order. An unknown or empty sort field leaves the order alone.
func (f Filters) sortEntries(entries []CollectionEntry) {
	less := lessFunc(f.SortField)
	if less == nil {
		return
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if f.SortDescending {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}

func lessFunc(field string) func(a, b CollectionEntry) bool {
	switch field {
	case SortTitle:
		return func(a, b CollectionEntry) bool {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	case SortYearPublished:
		return func(a, b CollectionEntry) bool { return a.YearPublished < b.YearPublished }
	case SortRating:
		return func(a, b CollectionEntry) bool { return a.AverageRating < b.AverageRating }
	case SortGeekRating:
		return func(a, b CollectionEntry) bool { return a.BayesAverageRating < b.BayesAverageRating }
	case SortRank:
		return func(a, b CollectionEntry) bool { return a.Rank < b.Rank }
	case SortComplexity:
		return func(a, b CollectionEntry) bool { return a.AverageWeight < b.AverageWeight }
	case SortPlayingTime:
		return func(a, b CollectionEntry) bool { return a.PlayingTime < b.PlayingTime }
	case SortYourRating:
		return func(a, b CollectionEntry) bool {
			return ratingValue(a.UserRating) < ratingValue(b.UserRating)
		}
	}
	return nil
}

// ratingValue orders unrated games before every rated one.
func ratingValue(r *float64) float64 {
	if r == nil {
		return -1
	}
	return *r
}

// Stats summarizes a filtered result set.
type Stats struct {
	Games      int `json:"games"`
	BaseGames  int `json:"base_games"`
	Expansions int `json:"expansions"`
}

// ComputeStats counts base games and expansions in a result set.
func ComputeStats(entries []CollectionEntry) Stats {
	s := Stats{Games: len(entries)}
	for _, e := range entries {
		if e.IsExpansion() {
			s.Expansions++
		} else {
			s.BaseGames++
		}
	}
	return s
}
