package risk

import (
	"math"
	"strings"
)

// PairProfile carries the per-instrument constants the lifecycle layer
// needs: price granularity, tradeable size granularity, the kill-zone
// cutoff for watch expiry and the correlation map used by the gate.
type PairProfile struct {
	Symbol        string
	Digits        int
	PipSize       float64
	LotStep       float64
	MinLot        float64
	BaseCurrency  string
	QuoteCurrency string

	// KillZoneEndHour is the MEZ (UTC+1) hour after which unconfirmed
	// watches expire. Zero means no kill-zone cutoff for the pair.
	KillZoneEndHour int

	// Correlations maps other symbols to their correlation coefficient
	// with this pair. Positive values mean the pairs move together.
	Correlations map[string]float64
}

var pairProfiles = map[string]PairProfile{
	"GBPJPY": {
		Symbol: "GBPJPY", Digits: 3, PipSize: 0.01, LotStep: 0.01, MinLot: 0.01,
		BaseCurrency: "GBP", QuoteCurrency: "JPY", KillZoneEndHour: 20,
		Correlations: map[string]float64{
			"GBPUSD": 0.85, "EURJPY": 0.80, "USDJPY": 0.60,
		},
	},
	"EURUSD": {
		Symbol: "EURUSD", Digits: 5, PipSize: 0.0001, LotStep: 0.01, MinLot: 0.01,
		BaseCurrency: "EUR", QuoteCurrency: "USD",
		Correlations: map[string]float64{
			"GBPUSD": 0.88, "USDJPY": -0.55,
		},
	},
	"GBPUSD": {
		Symbol: "GBPUSD", Digits: 5, PipSize: 0.0001, LotStep: 0.01, MinLot: 0.01,
		BaseCurrency: "GBP", QuoteCurrency: "USD",
		Correlations: map[string]float64{
			"EURUSD": 0.88, "GBPJPY": 0.85,
		},
	},
	"XAUUSD": {
		Symbol: "XAUUSD", Digits: 2, PipSize: 0.1, LotStep: 0.01, MinLot: 0.01,
		BaseCurrency: "XAU", QuoteCurrency: "USD",
		Correlations: map[string]float64{},
	},
	"USDJPY": {
		Symbol: "USDJPY", Digits: 3, PipSize: 0.01, LotStep: 0.01, MinLot: 0.01,
		BaseCurrency: "USD", QuoteCurrency: "JPY",
		Correlations: map[string]float64{
			"GBPJPY": 0.60, "EURJPY": 0.65,
		},
	},
	"EURJPY": {
		Symbol: "EURJPY", Digits: 3, PipSize: 0.01, LotStep: 0.01, MinLot: 0.01,
		BaseCurrency: "EUR", QuoteCurrency: "JPY", KillZoneEndHour: 20,
		Correlations: map[string]float64{
			"GBPJPY": 0.80, "USDJPY": 0.65,
		},
	},
}

// GetProfile returns the profile for a symbol, deriving sensible defaults
// for unknown pairs from the symbol name.
func GetProfile(symbol string) PairProfile {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if profile, ok := pairProfiles[symbol]; ok {
		return profile
	}

	digits := 5
	switch {
	case strings.HasPrefix(symbol, "XAU"):
		digits = 2
	case strings.HasSuffix(symbol, "JPY"):
		digits = 3
	}

	base, quote := symbol, ""
	if len(symbol) >= 6 {
		base, quote = symbol[:3], symbol[3:]
	}

	return PairProfile{
		Symbol:        symbol,
		Digits:        digits,
		PipSize:       math.Pow(10, -float64(digits-1)),
		LotStep:       0.01,
		MinLot:        0.01,
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Correlations:  map[string]float64{},
	}
}

// PipsBetween converts a price distance into pips for the pair.
func (p PairProfile) PipsBetween(a, b float64) float64 {
	if p.PipSize == 0 {
		return 0
	}
	return math.Abs(a-b) / p.PipSize
}
