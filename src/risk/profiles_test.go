package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetProfileKnownPairs(t *testing.T) {
	gbpjpy := GetProfile("gbpjpy")
	assert.Equal(t, 3, gbpjpy.Digits)
	assert.Equal(t, 0.01, gbpjpy.PipSize)
	assert.Equal(t, 20, gbpjpy.KillZoneEndHour)

	eurusd := GetProfile("EURUSD")
	assert.Equal(t, 5, eurusd.Digits)
	assert.Equal(t, 0.0001, eurusd.PipSize)
	assert.Zero(t, eurusd.KillZoneEndHour)
}

func TestGetProfileAutoDetect(t *testing.T) {
	tests := []struct {
		symbol     string
		wantDigits int
		wantQuote  string
	}{
		{"AUDJPY", 3, "JPY"},
		{"XAUEUR", 2, "EUR"},
		{"NZDCAD", 5, "CAD"},
	}

	for _, tc := range tests {
		t.Run(tc.symbol, func(t *testing.T) {
			p := GetProfile(tc.symbol)
			assert.Equal(t, tc.wantDigits, p.Digits)
			assert.Equal(t, tc.wantQuote, p.QuoteCurrency)
		})
	}
}

func TestPipsBetween(t *testing.T) {
	gbpjpy := GetProfile("GBPJPY")
	assert.InDelta(t, 50.0, gbpjpy.PipsBetween(195.00, 195.50), 1e-9)

	eurusd := GetProfile("EURUSD")
	assert.InDelta(t, 30.0, eurusd.PipsBetween(1.0900, 1.0930), 1e-9)
}
