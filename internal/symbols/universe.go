// Package symbols holds the predefined watchlists and symbol parsing.
package symbols

// Universe represents a predefined watchlist
type Universe string

const (
	UniverseCryptoMajors Universe = "crypto-majors"
	UniverseCryptoTest   Universe = "crypto-test" // small set for testing
	UniverseUSMegacap    Universe = "us-megacap"
)

// Universes lists every predefined watchlist
func Universes() []Universe {
	return []Universe{UniverseCryptoMajors, UniverseCryptoTest, UniverseUSMegacap}
}

// GetUniverse returns the list of symbols for a given universe
func GetUniverse(u Universe) []string {
	switch u {
	case UniverseCryptoMajors:
		return CryptoMajorSymbols
	case UniverseCryptoTest:
		return CryptoTestSymbols
	case UniverseUSMegacap:
		return USMegacapSymbols
	default:
		return nil
	}
}

// ProviderFor names the provider that lists the universe's symbols
func ProviderFor(u Universe) string {
	if u == UniverseUSMegacap {
		return "yahoo"
	}
	return "binance"
}

var CryptoTestSymbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

// CryptoMajorSymbols are liquid USDT-margined perpetuals
var CryptoMajorSymbols = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
	"DOGEUSDT", "ADAUSDT", "AVAXUSDT", "LINKUSDT", "DOTUSDT",
	"TRXUSDT", "LTCUSDT", "BCHUSDT", "NEARUSDT", "ATOMUSDT",
	"UNIUSDT", "APTUSDT", "ARBUSDT", "OPUSDT", "SUIUSDT",
}

var USMegacapSymbols = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA",
	"META", "TSLA", "AVGO", "BRK-B", "JPM",
	"LLY", "V", "UNH", "XOM", "MA",
}
