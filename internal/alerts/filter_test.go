package alerts

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

func tokenWithThreshold(usd int64) registry.TrackedToken {
	return registry.TrackedToken{
		Chain:           registry.ChainEthereum,
		Address:         "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984",
		Name:            "Uniswap",
		Symbol:          "UNI",
		MinUsdThreshold: decimal.NewFromInt(usd),
		ChatID:          100,
	}
}

func TestShouldAlertThreshold(t *testing.T) {
	tok := tokenWithThreshold(5)

	assert.False(t, ShouldAlert(tok, decimal.NewFromInt(3)))
	assert.False(t, ShouldAlert(tok, decimal.NewFromFloat(4.99)))
	assert.True(t, ShouldAlert(tok, decimal.NewFromInt(5))) // boundary is inclusive
	assert.True(t, ShouldAlert(tok, decimal.NewFromInt(10)))
}

func TestShouldAlertZeroThresholdPassesEverything(t *testing.T) {
	tok := tokenWithThreshold(0)

	assert.True(t, ShouldAlert(tok, decimal.Zero))
	assert.True(t, ShouldAlert(tok, decimal.NewFromFloat(0.01)))
	assert.True(t, ShouldAlert(tok, decimal.NewFromInt(1000000)))
}
