package models

// SymbolType classifies external symbol namespaces.
type SymbolType string

const (
	SymbolProvider SymbolType = "provider"
	SymbolDisplay  SymbolType = "display"
	SymbolExchange SymbolType = "exchange"
)

// IsValidSymbolType returns true if st is a supported symbol type.
func IsValidSymbolType(st SymbolType) bool {
	switch st {
	case SymbolProvider, SymbolDisplay, SymbolExchange:
		return true
	default:
		return false
	}
}

// ParseSymbolType converts a raw string to a symbol type. Unknown values are
// rejected rather than defaulted: translating through the wrong namespace is
// worse than failing.
func ParseSymbolType(s string) (SymbolType, bool) {
	st := SymbolType(s)
	if IsValidSymbolType(st) {
		return st, true
	}
	return "", false
}
