package domain

type Instrument struct {
	Symbol     string `json:"symbol"`
	BaseCoin   string `json:"base_coin"`
	QuoteCoin  string `json:"quote_coin"`
	Status     string `json:"status"`
	LaunchTime int64  `json:"launch_time"`
}

type Ticker struct {
	Symbol       string  `json:"symbol"`
	LastPrice    float64 `json:"last_price"`
	PrevPrice1h  float64 `json:"prev_price_1h"`
	Price24hPcnt float64 `json:"price_24h_pcnt"`
	Volume24h    float64 `json:"volume_24h"`
	Turnover24h  float64 `json:"turnover_24h"` // USD
	OpenInterest float64 `json:"open_interest"`
	FundingRate  float64 `json:"funding_rate"`
}

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}
