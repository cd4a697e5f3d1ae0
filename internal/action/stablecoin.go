package action

// stablecoinAliases maps USD-pegged stablecoins onto the reference stable
// asset so that price lookups and NAV aggregation treat them as equivalent.
var stablecoinAliases = map[string]string{
	"BUSD": "USDT",
	"USDC": "USDT",
	"TUSD": "USDT",
	"USDP": "USDT",
	"DAI":  "USDT",
	"VAI":  "USDT",
}

// CanonicalAsset folds stablecoin aliases into the reference stable asset.
// All other symbols pass through unchanged.
func CanonicalAsset(asset string) string {
	if canonical, ok := stablecoinAliases[asset]; ok {
		return canonical
	}
	return asset
}
