package ingest

import "strings"

// Aliases returns the ordered ticker candidates to try upstream for a
// logical symbol. The logical symbol always comes first; a USDT-quoted pair
// gets its USD-quoted variant as a fallback (binance.us lists BTCUSD where
// binance.com lists BTCUSDT).
func Aliases(symbol string) []string {
	if strings.HasSuffix(symbol, "USDT") {
		return []string{symbol, strings.TrimSuffix(symbol, "USDT") + "USD"}
	}
	return []string{symbol}
}
