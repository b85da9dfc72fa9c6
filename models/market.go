package models

// BookEntry is one public order-book level: [price, remaining volume].
type BookEntry [2]int64

// BookSnapshot is the public view of a pair's open limit orders. Market
// orders carry no price and never appear. Bids are sorted by price
// descending, asks ascending.
type BookSnapshot struct {
	Cryptopair string      `json:"cryptopair"`
	Bids       []BookEntry `json:"bids"`
	Asks       []BookEntry `json:"asks"`
}

// Ticker summarizes recent trading on a pair.
type Ticker struct {
	Cryptopair string `json:"cryptopair"`
	LastPrice  int64  `json:"last_price"`
	PriceDelta int64  `json:"price_delta"`
	High24h    int64  `json:"high_24h"`
	Low24h     int64  `json:"low_24h"`
	Volume24h  int64  `json:"volume_24h"`
	BaseVol24h int64  `json:"base_volume_24h"`
	BestBid    int64  `json:"best_bid"`
	BestAsk    int64  `json:"best_ask"`
	Timestamp  int64  `json:"timestamp"`
}
