package balldontlie

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the balldontlie API base URL
	DefaultBaseURL = "https://api.balldontlie.io"

	// Conservative defaults; the free tier allows 5 req/min bursts
	defaultRateLimit = 5.0
	defaultBurst     = 3
)

// Client handles balldontlie API requests. Every call waits on the rate
// limiter first so concurrent per-event pollers stay under the API quota.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new balldontlie API client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GamesByDates fetches games for the given dates (YYYY-MM-DD). A non-zero
// teamID restricts the result to that team's games.
func (c *Client) GamesByDates(ctx context.Context, dates []string, teamID int) ([]Game, error) {
	params := url.Values{}
	for _, d := range dates {
		params.Add("dates[]", d)
	}
	if teamID > 0 {
		params.Set("team_ids[]", strconv.Itoa(teamID))
	}
	params.Set("per_page", "25")

	var resp gamesResponse
	if err := c.get(ctx, "/v1/games", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Game fetches a single game by id
func (c *Client) Game(ctx context.Context, gameID int) (*Game, error) {
	var resp gameResponse
	if err := c.get(ctx, fmt.Sprintf("/v1/games/%d", gameID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Odds fetches all vendors' odds for a date (YYYY-MM-DD). Callers filter
// by game id; the API only supports date-level queries.
func (c *Client) Odds(ctx context.Context, date string) ([]GameOdds, error) {
	params := url.Values{}
	params.Add("dates[]", date)
	params.Set("per_page", "100")

	var resp oddsResponse
	if err := c.get(ctx, "/v2/odds", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GameStats fetches per-player box-score lines for a game
func (c *Client) GameStats(ctx context.Context, gameID int) ([]Stat, error) {
	params := url.Values{}
	params.Set("game_ids[]", strconv.Itoa(gameID))
	params.Set("per_page", "100")

	var resp statsResponse
	if err := c.get(ctx, "/v1/stats", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ActivePlayers fetches a team's current active roster
func (c *Client) ActivePlayers(ctx context.Context, teamID int) ([]ActivePlayer, error) {
	params := url.Values{}
	params.Set("team_ids[]", strconv.Itoa(teamID))
	params.Set("per_page", "100")

	var resp playersResponse
	if err := c.get(ctx, "/v1/players/active", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SeasonAverages fetches a player's season averages
func (c *Client) SeasonAverages(ctx context.Context, season, playerID int) (*SeasonAverage, error) {
	params := url.Values{}
	params.Set("season", strconv.Itoa(season))
	params.Set("player_id", strconv.Itoa(playerID))

	var resp seasonAveragesResponse
	if err := c.get(ctx, "/v1/season_averages", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return &resp.Data[0], nil
}

// get makes a rate-limited HTTP GET request and decodes the JSON body
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("balldontlie API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
