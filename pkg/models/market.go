package models

// MarketQuote is one bookmaker's moneyline pair for an event, normalized
// by the market adapter. Prices are American odds.
type MarketQuote struct {
	Source    string `json:"source"`
	HomePrice int    `json:"home_price"`
	AwayPrice int    `json:"away_price"`
}
