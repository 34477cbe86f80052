package exchange

import "strings"

var quoteAssets = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "IDR", "EUR", "TRY", "BTC", "ETH", "BNB"}

// SplitSymbol returns base and quote for pairs such as BTCUSDT, BTC/USDT or btc_idr
func SplitSymbol(symbol string) (base, quote string) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "_", "-"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return parts[0], parts[1]
		}
	}
	for _, q := range quoteAssets {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q), q
		}
	}
	return s, ""
}

// BinanceSymbol renders a pair as BTCUSDT
func BinanceSymbol(symbol string) string {
	base, quote := SplitSymbol(symbol)
	return base + quote
}

// IndodaxPair renders a pair as btc_idr
func IndodaxPair(symbol string) string {
	base, quote := SplitSymbol(symbol)
	if quote == "" {
		return strings.ToLower(base)
	}
	return strings.ToLower(base + "_" + quote)
}
