package models

// Ticker is the canonical identity for a tradable instrument. CanonicalID is
// stable and never reused; external naming lives in SymbolAlias.
type Ticker struct {
	CanonicalID string
	DisplayName string
	Active      bool
}

// SymbolAlias maps a Ticker to one external symbol representation.
// At most one active alias exists per (CanonicalID, SymbolType).
type SymbolAlias struct {
	CanonicalID string
	SymbolValue string
	SymbolType  SymbolType
}

// RawPricePoint is one daily OHLCV observation. TradingDate is the exchange's
// session date ("2006-01-02"), never the fetch wall-clock time.
type RawPricePoint struct {
	ProviderSymbol string
	TradingDate    string
	Open           float64
	High           float64
	Low            float64
	Close          float64
	Volume         float64
}
