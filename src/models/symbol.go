package models

// MSymbol pairs a tradable asset code with the provider's coin identifier.
type MSymbol struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	CoinID string `yaml:"coin_id" json:"coin_id"`
}

// DefaultSymbols is the tradable set used when the config does not list one.
func DefaultSymbols() []MSymbol {
	return []MSymbol{
		{Symbol: "BTC", CoinID: "bitcoin"},
		{Symbol: "LTC", CoinID: "litecoin"},
		{Symbol: "ETH", CoinID: "ethereum"},
		{Symbol: "DOT", CoinID: "polkadot"},
		{Symbol: "LINK", CoinID: "chainlink"},
		{Symbol: "XRP", CoinID: "ripple"},
	}
}
