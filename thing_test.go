package boardshelf

import (
	"errors"
	"testing"
)

const gloomhavenXML = `<?xml version="1.0" encoding="utf-8"?>
<items termsofuse="https://boardgamegeek.com/xmlapi/termsofuse">
	<item type="boardgame" id="174430">
		<thumbnail>https://cf.geekdo-images.com/thumb.jpg</thumbnail>
		<image>https://cf.geekdo-images.com/image.jpg</image>
		<name type="primary" sortindex="1" value="Gloomhaven"/>
		<name type="alternate" sortindex="1" value="Homarkodo"/>
		<description>Vanquish monsters &amp;mdash; enhance abilities.</description>
		<yearpublished value="2017"/>
		<minplayers value="1"/>
		<maxplayers value="4"/>
		<poll name="suggested_numplayers" title="User Suggested Number of Players" totalvotes="1200">
			<results numplayers="1">
				<result value="Best" numvotes="100"/>
				<result value="Recommended" numvotes="300"/>
				<result value="Not Recommended" numvotes="150"/>
			</results>
			<results numplayers="2">
				<result value="Best" numvotes="500"/>
				<result value="Recommended" numvotes="200"/>
				<result value="Not Recommended" numvotes="20"/>
			</results>
			<results numplayers="3">
				<result value="Best" numvotes="550"/>
				<result value="Recommended" numvotes="250"/>
				<result value="Not Recommended" numvotes="30"/>
			</results>
			<results numplayers="4">
				<result value="Best" numvotes="50"/>
				<result value="Recommended" numvotes="150"/>
				<result value="Not Recommended" numvotes="400"/>
			</results>
		</poll>
		<playingtime value="120"/>
		<minplaytime value="60"/>
		<maxplaytime value="150"/>
		<minage value="14"/>
		<link type="boardgamecategory" id="1022" value="Adventure"/>
		<link type="boardgamecategory" id="1020" value="Exploration"/>
		<link type="boardgamemechanic" id="2001" value="Action Queue"/>
		<link type="boardgamedesigner" id="69802" value="Isaac Childres"/>
		<statistics page="1">
			<ratings>
				<usersrated value="60000"/>
				<average value="8.69468"/>
				<bayesaverage value="8.51342"/>
				<ranks>
					<rank type="subtype" id="1" name="boardgame" friendlyname="Board Game Rank" value="3"/>
					<rank type="family" id="5496" name="thematic" friendlyname="Thematic Rank" value="1"/>
				</ranks>
				<averageweight value="3.91"/>
				<numweights value="2900"/>
			</ratings>
		</statistics>
	</item>
</items>`

func TestParseThings(t *testing.T) {
	games, err := ParseThings([]byte(gloomhavenXML))
	if err != nil {
		t.Fatalf("Failed to parse payload: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("Expected 1 game, got %d", len(games))
	}

	g := games[0]
	if g.BGGID != 174430 {
		t.Errorf("Expected id 174430, got %d", g.BGGID)
	}
	if g.Title != "Gloomhaven" {
		t.Errorf("Expected primary name Gloomhaven, got %q", g.Title)
	}
	if g.Type != TypeBaseGame || g.IsExpansion() {
		t.Errorf("Expected base game, got type %q", g.Type)
	}
	if g.YearPublished != 2017 || g.MinPlayers != 1 || g.MaxPlayers != 4 {
		t.Errorf("Unexpected scalars: year=%d players=%d-%d", g.YearPublished, g.MinPlayers, g.MaxPlayers)
	}
	if g.PlayingTime != 120 || g.MinPlayingTime != 60 || g.MaxPlayingTime != 150 || g.MinAge != 14 {
		t.Errorf("Unexpected time fields: %d/%d/%d age %d", g.PlayingTime, g.MinPlayingTime, g.MaxPlayingTime, g.MinAge)
	}
	if g.AverageRating != 8.69468 || g.BayesAverageRating != 8.51342 {
		t.Errorf("Unexpected ratings: %v / %v", g.AverageRating, g.BayesAverageRating)
	}
	if g.Rank != 3 {
		t.Errorf("Expected boardgame rank 3, got %d", g.Rank)
	}
	if g.AverageWeight != 3.91 || g.WeightVotes != 2900 {
		t.Errorf("Unexpected weight fields: %v / %d", g.AverageWeight, g.WeightVotes)
	}

	// HTML entities in the description are unescaped once the XML layer has
	// decoded the raw text.
	if g.Description == nil || *g.Description != "Vanquish monsters — enhance abilities." {
		t.Errorf("Unexpected description: %v", g.Description)
	}
	if g.ImageURL == nil || *g.ImageURL != "https://cf.geekdo-images.com/image.jpg" {
		t.Errorf("Unexpected image: %v", g.ImageURL)
	}

	// Multi-valued fields keep document order.
	if g.Categories != "Adventure|Exploration" {
		t.Errorf("Unexpected categories: %q", g.Categories)
	}
	if g.Mechanics != "Action Queue" {
		t.Errorf("Unexpected mechanics: %q", g.Mechanics)
	}
	if g.Designers != "Isaac Childres" {
		t.Errorf("Unexpected designers: %q", g.Designers)
	}

	// Poll: 1 is recommended (300 >= 100, 150 < 400), 2 and 3 are best,
	// 4 is not recommended (400 > 200).
	if g.BestPlayers != "2|3" {
		t.Errorf("Unexpected best players: %q", g.BestPlayers)
	}
	if g.RecommendedPlayers != "1|2|3" {
		t.Errorf("Unexpected recommended players: %q", g.RecommendedPlayers)
	}
	if g.RecommendedNotBestPlayers != "1" {
		t.Errorf("Unexpected recommended-not-best players: %q", g.RecommendedNotBestPlayers)
	}
}

func TestParseThingsOptionalFieldsMissing(t *testing.T) {
	payload := `<items>
		<item type="boardgameexpansion" id="7">
			<name type="primary" value="Tiny Expansion"/>
			<yearpublished value="2020"/>
			<minplayers value="2"/>
			<maxplayers value="2"/>
			<playingtime value="30"/>
			<minplaytime value="20"/>
			<maxplaytime value="40"/>
			<minage value="8"/>
			<statistics>
				<ratings>
					<average value="6.5"/>
					<bayesaverage value="5.9"/>
					<ranks>
						<rank type="subtype" name="boardgame" value="Not Ranked"/>
					</ranks>
					<averageweight value="1.2"/>
					<numweights value="12"/>
				</ratings>
			</statistics>
		</item>
	</items>`

	games, err := ParseThings([]byte(payload))
	if err != nil {
		t.Fatalf("Failed to parse payload: %v", err)
	}

	g := games[0]
	if g.Description != nil || g.ImageURL != nil || g.ThumbnailURL != nil {
		t.Errorf("Expected nil optional fields, got %v %v %v", g.Description, g.ImageURL, g.ThumbnailURL)
	}
	if !g.IsExpansion() {
		t.Errorf("Expected expansion, got type %q", g.Type)
	}
	if g.Rank != 0 {
		t.Errorf("Expected rank 0 for Not Ranked, got %d", g.Rank)
	}
	if g.Designers != "" || g.Mechanics != "" || g.Categories != "" {
		t.Errorf("Expected empty link fields, got %q %q %q", g.Designers, g.Mechanics, g.Categories)
	}

	// No poll at all behaves like a zero-vote poll.
	if g.BestPlayers != "" || g.RecommendedPlayers != "" || g.RecommendedNotBestPlayers != "" {
		t.Errorf("Expected empty player fields, got %q %q %q", g.BestPlayers, g.RecommendedPlayers, g.RecommendedNotBestPlayers)
	}
}

func TestParseThingsMissingRequiredField(t *testing.T) {
	payload := `<items>
		<item type="boardgame" id="9">
			<name type="primary" value="Broken"/>
			<minplayers value="2"/>
			<maxplayers value="4"/>
		</item>
	</items>`

	_, err := ParseThings([]byte(payload))
	if err == nil {
		t.Fatal("Expected error for missing required field")
	}
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("Expected ErrMalformedRecord, got %v", err)
	}
}

func TestClassifyPlayerPollZeroVotes(t *testing.T) {
	poll := &thingPoll{
		Name:       suggestedPlayersPoll,
		TotalVotes: 0,
		Results: []pollOption{
			{NumPlayers: "2", Results: []pollResult{{Value: "Best", NumVotes: 0}}},
		},
	}

	best, rec, recOnly := classifyPlayerPoll(poll)
	if best != "" || rec != "" || recOnly != "" {
		t.Errorf("Expected empty fields for zero-vote poll, got %q %q %q", best, rec, recOnly)
	}
}

func TestClassifyPlayerPollSpread(t *testing.T) {
	// First option is clearly best, second is voted down hard enough to be
	// excluded from every field.
	poll := &thingPoll{
		Name:       suggestedPlayersPoll,
		TotalVotes: 13,
		Results: []pollOption{
			{NumPlayers: "2", Results: []pollResult{
				{Value: "Best", NumVotes: 5},
				{Value: "Recommended", NumVotes: 2},
				{Value: "Not Recommended", NumVotes: 0},
			}},
			{NumPlayers: "5", Results: []pollResult{
				{Value: "Best", NumVotes: 0},
				{Value: "Recommended", NumVotes: 1},
				{Value: "Not Recommended", NumVotes: 5},
			}},
		},
	}

	best, rec, recOnly := classifyPlayerPoll(poll)
	if best != "2" {
		t.Errorf("Expected best players %q, got %q", "2", best)
	}
	if rec != "2" {
		t.Errorf("Expected recommended players %q, got %q", "2", rec)
	}
	if recOnly != "" {
		t.Errorf("Expected no recommended-not-best players, got %q", recOnly)
	}
}

func TestClassifyPlayerPollTieGoesToRecommended(t *testing.T) {
	// A best/recommended tie is recommended, not best: best wins only with
	// strictly more votes.
	poll := &thingPoll{
		Name:       suggestedPlayersPoll,
		TotalVotes: 8,
		Results: []pollOption{
			{NumPlayers: "3", Results: []pollResult{
				{Value: "Best", NumVotes: 4},
				{Value: "Recommended", NumVotes: 4},
				{Value: "Not Recommended", NumVotes: 0},
			}},
		},
	}

	best, rec, recOnly := classifyPlayerPoll(poll)
	if best != "" {
		t.Errorf("Expected no best players on a tie, got %q", best)
	}
	if rec != "3" || recOnly != "3" {
		t.Errorf("Expected 3 to be recommended, got rec=%q recOnly=%q", rec, recOnly)
	}
}

func TestClassifyPlayerPollNotRecommendedMajority(t *testing.T) {
	// Not-recommended must outnumber best and recommended combined.
	poll := &thingPoll{
		Name:       suggestedPlayersPoll,
		TotalVotes: 12,
		Results: []pollOption{
			{NumPlayers: "6", Results: []pollResult{
				{Value: "Best", NumVotes: 3},
				{Value: "Recommended", NumVotes: 3},
				{Value: "Not Recommended", NumVotes: 6},
			}},
		},
	}

	// 6 is not strictly greater than 3+3, so the option stays recommended.
	best, rec, recOnly := classifyPlayerPoll(poll)
	if best != "" || rec != "6" || recOnly != "6" {
		t.Errorf("Expected 6 recommended on exact balance, got best=%q rec=%q recOnly=%q", best, rec, recOnly)
	}
}

func TestClassifyPlayerPollDocumentOrder(t *testing.T) {
	// Joined fields follow the poll's document order, which is not
	// necessarily numeric order.
	poll := &thingPoll{
		Name:       suggestedPlayersPoll,
		TotalVotes: 30,
		Results: []pollOption{
			{NumPlayers: "4+", Results: []pollResult{
				{Value: "Best", NumVotes: 10},
				{Value: "Recommended", NumVotes: 2},
			}},
			{NumPlayers: "2", Results: []pollResult{
				{Value: "Best", NumVotes: 12},
				{Value: "Recommended", NumVotes: 6},
			}},
		},
	}

	best, _, _ := classifyPlayerPoll(poll)
	if best != "4+|2" {
		t.Errorf("Expected document order 4+|2, got %q", best)
	}
}
