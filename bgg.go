package boardshelf

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public BGG XML API2 root.
const DefaultBaseURL = "https://boardgamegeek.com/xmlapi2/"

// thingChunkSize is the documented per-request id limit of the thing
// endpoint.
const thingChunkSize = 1000

// pendingMessage is the body BGG returns, verbatim, while a large
// collection export is still queued.
const pendingMessage = "Your request for this collection has been accepted and will be processed.  Please try again later for access."

const invalidUsernameMessage = "Invalid username specified"

// CollectionStatus tags the outcome of a collection fetch. Pending is
// retryable; InvalidUsername is terminal.
type CollectionStatus int

const (
	// CollectionReady means the owned-game set was returned.
	CollectionReady CollectionStatus = iota
	// CollectionPending means the export is queued; try again later.
	CollectionPending
	// CollectionInvalidUsername means BGG does not know the username.
	CollectionInvalidUsername
)

// CollectionResult is the tagged outcome of FetchCollection. Games is only
// populated when Status is CollectionReady.
type CollectionResult struct {
	Status CollectionStatus
	Games  []OwnedGame
}

// Client talks to the BGG XML API2.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the public API.
func NewClient() *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type collectionPayload struct {
	XMLName  xml.Name
	Text     string           `xml:",chardata"`
	Messages []string         `xml:"error>message"`
	Items    []collectionItem `xml:"item"`
}

type collectionItem struct {
	ObjectID int64      `xml:"objectid,attr"`
	Rating   *valueAttr `xml:"stats>rating"`
}

// FetchCollection fetches the owned items of a username. The queued-export
// and unknown-username responses come back as body text, not status codes,
// so the body decides the result tag.
func (c *Client) FetchCollection(ctx context.Context, username string) (*CollectionResult, error) {
	params := url.Values{}
	params.Set("username", username)
	params.Set("stats", "1")
	params.Set("own", "1")

	body, err := c.get(ctx, "collection", params)
	if err != nil {
		return nil, err
	}

	var payload collectionPayload
	if err := xml.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding collection payload: %w", err)
	}

	for _, msg := range payload.Messages {
		if strings.TrimSpace(msg) == invalidUsernameMessage {
			return &CollectionResult{Status: CollectionInvalidUsername}, nil
		}
	}
	if payload.XMLName.Local == "message" && strings.TrimSpace(payload.Text) == pendingMessage {
		return &CollectionResult{Status: CollectionPending}, nil
	}

	// Identical id and rating pairs collapse; first occurrence keeps its
	// document-order position.
	seen := make(map[string]bool, len(payload.Items))
	games := make([]OwnedGame, 0, len(payload.Items))
	for _, item := range payload.Items {
		og := OwnedGame{ID: item.ObjectID}
		if item.Rating != nil && item.Rating.Value != "N/A" {
			r, err := strconv.ParseFloat(item.Rating.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: collection item %d rating %q", ErrMalformedRecord, item.ObjectID, item.Rating.Value)
			}
			og.Rating = &r
		}
		key := og.key()
		if seen[key] {
			continue
		}
		seen[key] = true
		games = append(games, og)
	}

	return &CollectionResult{Status: CollectionReady, Games: games}, nil
}

// FetchGames fetches and normalizes full records for the given ids,
// issuing one request per chunk of at most thingChunkSize ids. Chunks go
// out sequentially and results concatenate in chunk order.
func (c *Client) FetchGames(ctx context.Context, ids []int64) ([]*Game, error) {
	var games []*Game
	for start := 0; start < len(ids); start += thingChunkSize {
		end := min(start+thingChunkSize, len(ids))

		chunk := ids[start:end]
		strs := make([]string, len(chunk))
		for i, id := range chunk {
			strs[i] = strconv.FormatInt(id, 10)
		}

		params := url.Values{}
		params.Set("id", strings.Join(strs, ","))
		params.Set("stats", "1")

		body, err := c.get(ctx, "thing", params)
		if err != nil {
			return nil, err
		}

		parsed, err := ParseThings(body)
		if err != nil {
			return nil, err
		}
		games = append(games, parsed...)
	}

	return games, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := strings.TrimSuffix(c.BaseURL, "/") + "/" + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}

	return body, nil
}

func (o OwnedGame) key() string {
	if o.Rating == nil {
		return strconv.FormatInt(o.ID, 10)
	}
	return fmt.Sprintf("%d|%g", o.ID, *o.Rating)
}
