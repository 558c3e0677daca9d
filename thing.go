package boardshelf

import (
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
)

// ErrMalformedRecord means a game record from BGG was missing a required
// field. Required numeric fields have no safe default, so the whole sync
// aborts rather than caching a half-parsed record.
var ErrMalformedRecord = errors.New("malformed game record")

const suggestedPlayersPoll = "suggested_numplayers"

// XML shapes for the thing endpoint.
type thingItems struct {
	Items []thingItem `xml:"item"`
}

type thingItem struct {
	Type          string        `xml:"type,attr"`
	ID            int64         `xml:"id,attr"`
	Names         []thingName   `xml:"name"`
	Description   *string       `xml:"description"`
	Image         *string       `xml:"image"`
	Thumbnail     *string       `xml:"thumbnail"`
	YearPublished *valueAttr    `xml:"yearpublished"`
	MinPlayers    *valueAttr    `xml:"minplayers"`
	MaxPlayers    *valueAttr    `xml:"maxplayers"`
	PlayingTime   *valueAttr    `xml:"playingtime"`
	MinPlayTime   *valueAttr    `xml:"minplaytime"`
	MaxPlayTime   *valueAttr    `xml:"maxplaytime"`
	MinAge        *valueAttr    `xml:"minage"`
	Links         []thingLink   `xml:"link"`
	Polls         []thingPoll   `xml:"poll"`
	Ratings       *thingRatings `xml:"statistics>ratings"`
}

type thingName struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type valueAttr struct {
	Value string `xml:"value,attr"`
}

type thingLink struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type thingRatings struct {
	Average       *valueAttr  `xml:"average"`
	BayesAverage  *valueAttr  `xml:"bayesaverage"`
	AverageWeight *valueAttr  `xml:"averageweight"`
	NumWeights    *valueAttr  `xml:"numweights"`
	Ranks         []thingRank `xml:"ranks>rank"`
}

type thingRank struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type thingPoll struct {
	Name       string       `xml:"name,attr"`
	TotalVotes int          `xml:"totalvotes,attr"`
	Results    []pollOption `xml:"results"`
}

type pollOption struct {
	NumPlayers string       `xml:"numplayers,attr"`
	Results    []pollResult `xml:"result"`
}

type pollResult struct {
	Value    string `xml:"value,attr"`
	NumVotes int    `xml:"numvotes,attr"`
}

// ParseThings normalizes a thing endpoint payload into catalog records,
// in document order.
func ParseThings(data []byte) ([]*Game, error) {
	var payload thingItems
	if err := xml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding thing payload: %w", err)
	}

	games := make([]*Game, 0, len(payload.Items))
	for _, item := range payload.Items {
		g, err := item.normalize()
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}

	return games, nil
}

func (it thingItem) normalize() (*Game, error) {
	g := &Game{
		BGGID: it.ID,
		Type:  it.Type,
	}

	for _, n := range it.Names {
		if n.Type == "primary" {
			g.Title = n.Value
			break
		}
	}
	if g.Title == "" {
		return nil, malformed(it.ID, "primary name")
	}

	if it.Description != nil {
		d := html.UnescapeString(*it.Description)
		g.Description = &d
	}
	g.ImageURL = it.Image
	g.ThumbnailURL = it.Thumbnail

	var err error
	if g.YearPublished, err = requireInt(it.ID, "yearpublished", it.YearPublished); err != nil {
		return nil, err
	}
	if g.MinPlayers, err = requireInt(it.ID, "minplayers", it.MinPlayers); err != nil {
		return nil, err
	}
	if g.MaxPlayers, err = requireInt(it.ID, "maxplayers", it.MaxPlayers); err != nil {
		return nil, err
	}
	if g.PlayingTime, err = requireInt(it.ID, "playingtime", it.PlayingTime); err != nil {
		return nil, err
	}
	if g.MinPlayingTime, err = requireInt(it.ID, "minplaytime", it.MinPlayTime); err != nil {
		return nil, err
	}
	if g.MaxPlayingTime, err = requireInt(it.ID, "maxplaytime", it.MaxPlayTime); err != nil {
		return nil, err
	}
	if g.MinAge, err = requireInt(it.ID, "minage", it.MinAge); err != nil {
		return nil, err
	}

	if it.Ratings == nil {
		return nil, malformed(it.ID, "statistics")
	}
	if g.AverageRating, err = requireFloat(it.ID, "average", it.Ratings.Average); err != nil {
		return nil, err
	}
	if g.BayesAverageRating, err = requireFloat(it.ID, "bayesaverage", it.Ratings.BayesAverage); err != nil {
		return nil, err
	}
	if g.AverageWeight, err = requireFloat(it.ID, "averageweight", it.Ratings.AverageWeight); err != nil {
		return nil, err
	}
	if g.WeightVotes, err = requireInt(it.ID, "numweights", it.Ratings.NumWeights); err != nil {
		return nil, err
	}
	g.Rank = boardGameRank(it.Ratings.Ranks)

	g.Designers = joinLinkValues(it.Links, "boardgamedesigner")
	g.Mechanics = joinLinkValues(it.Links, "boardgamemechanic")
	g.Categories = joinLinkValues(it.Links, "boardgamecategory")

	g.BestPlayers, g.RecommendedPlayers, g.RecommendedNotBestPlayers = classifyPlayerPoll(findPoll(it.Polls, suggestedPlayersPoll))

	return g, nil
}

// boardGameRank extracts the overall boardgame rank. BGG reports
// "Not Ranked" for unranked games, which maps to 0.
func boardGameRank(ranks []thingRank) int {
	for _, r := range ranks {
		if r.Name != "boardgame" {
			continue
		}
		n, err := strconv.Atoi(r.Value)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// joinLinkValues collects the value attribute of every link of the given
// type, pipe-joined in document order.
func joinLinkValues(links []thingLink, linkType string) string {
	var values []string
	for _, l := range links {
		if l.Type == linkType {
			values = append(values, l.Value)
		}
	}
	return strings.Join(values, "|")
}

func findPoll(polls []thingPoll, name string) *thingPoll {
	for i := range polls {
		if polls[i].Name == name {
			return &polls[i]
		}
	}
	return nil
}

// classifyPlayerPoll derives the three player-count fields from the
// suggested_numplayers poll. Each option is a three-way majority vote:
// an option is not recommended when those votes outnumber best and
// recommended combined, best when best votes strictly beat recommended,
// and recommended otherwise, so a best/recommended tie goes to recommended. The
// recommended field includes the best counts; the recommended-not-best
// field excludes them.
func classifyPlayerPoll(poll *thingPoll) (best, recommended, recommendedNotBest string) {
	if poll == nil || poll.TotalVotes == 0 {
		return "", "", ""
	}

	var bestCounts, recCounts, recOnlyCounts []string
	for _, opt := range poll.Results {
		b := votesFor(opt, "Best")
		r := votesFor(opt, "Recommended")
		n := votesFor(opt, "Not Recommended")

		switch {
		case n > r+b:
			// Not recommended at this count, excluded from every field.
		case r < b:
			bestCounts = append(bestCounts, opt.NumPlayers)
			recCounts = append(recCounts, opt.NumPlayers)
		default:
			recCounts = append(recCounts, opt.NumPlayers)
			recOnlyCounts = append(recOnlyCounts, opt.NumPlayers)
		}
	}

	return strings.Join(bestCounts, "|"), strings.Join(recCounts, "|"), strings.Join(recOnlyCounts, "|")
}

func votesFor(opt pollOption, value string) int {
	for _, r := range opt.Results {
		if r.Value == value {
			return r.NumVotes
		}
	}
	return 0
}

func malformed(id int64, field string) error {
	return fmt.Errorf("%w: game %d missing %s", ErrMalformedRecord, id, field)
}

func requireInt(id int64, field string, v *valueAttr) (int, error) {
	if v == nil {
		return 0, malformed(id, field)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return 0, fmt.Errorf("%w: game %d field %s: %q is not a number", ErrMalformedRecord, id, field, v.Value)
	}
	return n, nil
}

func requireFloat(id int64, field string, v *valueAttr) (float64, error) {
	if v == nil {
		return 0, malformed(id, field)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: game %d field %s: %q is not a number", ErrMalformedRecord, id, field, v.Value)
	}
	return n, nil
}
