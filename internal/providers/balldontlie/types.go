package balldontlie

// Upstream response shapes. Scores and prices are pointers because the
// API returns null for games that have not tipped off and for vendors
// without a current line; nothing downstream may mistake null for zero.

// Team is a team object as embedded in game responses
type Team struct {
	ID           int    `json:"id"`
	Abbreviation string `json:"abbreviation"`
	FullName     string `json:"full_name"`
}

// Game is one game from /v1/games
type Game struct {
	ID               int    `json:"id"`
	Date             string `json:"date"`     // YYYY-MM-DD
	Datetime         string `json:"datetime"` // RFC3339 tip-off, empty on some plans
	Season           int    `json:"season"`
	Status           string `json:"status"` // "Final", "1st Qtr", "Halftime", or "7:00 PM ET"
	Period           int    `json:"period"`
	Time             string `json:"time"` // "7:34", "Q4 5:32", "Final", or ""
	Postseason       bool   `json:"postseason"`
	HomeTeamScore    *int   `json:"home_team_score"`
	VisitorTeamScore *int   `json:"visitor_team_score"`
	HomeTeam         Team   `json:"home_team"`
	VisitorTeam      Team   `json:"visitor_team"`
}

// GameOdds is one vendor's odds entry from /v2/odds
type GameOdds struct {
	GameID        int      `json:"game_id"`
	Vendor        string   `json:"vendor"`
	Type          string   `json:"type"`
	Live          bool     `json:"live"`
	MoneylineHome *float64 `json:"moneyline_home_odds"`
	MoneylineAway *float64 `json:"moneyline_away_odds"`
}

// Stat is one player's line from /v1/stats
type Stat struct {
	Player ActivePlayer `json:"player"`
	Team   Team         `json:"team"`
	Min    string       `json:"min"`
	Pts    int          `json:"pts"`
	Reb    int          `json:"reb"`
	Ast    int          `json:"ast"`
	Stl    int          `json:"stl"`
	Blk    int          `json:"blk"`
}

// ActivePlayer is a player object from /v1/players/active
type ActivePlayer struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Position  string `json:"position"`
	TeamID    int    `json:"team_id"`
}

// SeasonAverage is one row from /v1/season_averages
type SeasonAverage struct {
	PlayerID    int     `json:"player_id"`
	Season      int     `json:"season"`
	GamesPlayed int     `json:"games_played"`
	Min         string  `json:"min"`
	Pts         float64 `json:"pts"`
	Reb         float64 `json:"reb"`
	Ast         float64 `json:"ast"`
	Stl         float64 `json:"stl"`
	Blk         float64 `json:"blk"`
}

type gamesResponse struct {
	Data []Game `json:"data"`
}

type gameResponse struct {
	Data Game `json:"data"`
}

type oddsResponse struct {
	Data []GameOdds `json:"data"`
}

type statsResponse struct {
	Data []Stat `json:"data"`
}

type playersResponse struct {
	Data []ActivePlayer `json:"data"`
}

type seasonAveragesResponse struct {
	Data []SeasonAverage `json:"data"`
}
