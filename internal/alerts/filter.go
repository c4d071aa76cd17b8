package alerts

import (
	"github.com/shopspring/decimal"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

// ShouldAlert reports whether a buy of usdValue clears the token's
// minimum USD threshold. A zero threshold lets every buy through.
func ShouldAlert(tok registry.TrackedToken, usdValue decimal.Decimal) bool {
	return usdValue.GreaterThanOrEqual(tok.MinUsdThreshold)
}
