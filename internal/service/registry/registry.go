package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	applogger "drreport/pkg/logger"
)

// Registry is the in-memory symbol index. It is the only place canonical IDs
// are translated to or from external symbols; callers that need a provider
// symbol go through Resolve and get an error when no alias exists, never the
// canonical ID echoed back.
type Registry struct {
	source domrepo.RegistrySource
	l      *applogger.Logger

	mu      sync.RWMutex
	active  []string
	forward map[string]map[models.SymbolType]string
	reverse map[models.SymbolType]map[string]string
}

// New creates a registry backed by a row source. Call Reload before use.
func New(source domrepo.RegistrySource, l *applogger.Logger) *Registry {
	return &Registry{
		source:  source,
		l:       l,
		forward: make(map[string]map[models.SymbolType]string),
		reverse: make(map[models.SymbolType]map[string]string),
	}
}

// NewStatic creates a registry over fixed rows, without a backing source.
func NewStatic(tickers []models.Ticker, aliases []models.SymbolAlias) *Registry {
	r := &Registry{
		forward: make(map[string]map[models.SymbolType]string),
		reverse: make(map[models.SymbolType]map[string]string),
	}
	r.index(tickers, aliases)
	return r
}

// Reload replaces the index from the source. Read-heavy callers keep seeing
// the previous snapshot until the swap.
func (r *Registry) Reload(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("registry has no source")
	}
	tickers, err := r.source.LoadTickers(ctx)
	if err != nil {
		return fmt.Errorf("reload tickers: %w", err)
	}
	aliases, err := r.source.LoadAliases(ctx)
	if err != nil {
		return fmt.Errorf("reload aliases: %w", err)
	}
	r.index(tickers, aliases)
	if r.l != nil {
		r.l.Info("registry reloaded",
			applogger.Int("tickers", len(tickers)),
			applogger.Int("aliases", len(aliases)),
		)
	}
	return nil
}

func (r *Registry) index(tickers []models.Ticker, aliases []models.SymbolAlias) {
	known := make(map[string]bool, len(tickers))
	active := make([]string, 0, len(tickers))
	for _, t := range tickers {
		known[t.CanonicalID] = true
		if t.Active {
			active = append(active, t.CanonicalID)
		}
	}
	sort.Strings(active)

	forward := make(map[string]map[models.SymbolType]string, len(tickers))
	reverse := make(map[models.SymbolType]map[string]string)
	for _, a := range aliases {
		if !known[a.CanonicalID] {
			if r.l != nil {
				r.l.Warn("alias for unknown ticker skipped",
					applogger.String("canonical_id", a.CanonicalID),
					applogger.String("symbol_value", a.SymbolValue),
				)
			}
			continue
		}
		if forward[a.CanonicalID] == nil {
			forward[a.CanonicalID] = make(map[models.SymbolType]string)
		}
		forward[a.CanonicalID][a.SymbolType] = a.SymbolValue

		if reverse[a.SymbolType] == nil {
			reverse[a.SymbolType] = make(map[string]string)
		}
		reverse[a.SymbolType][a.SymbolValue] = a.CanonicalID
	}

	r.mu.Lock()
	r.active = active
	r.forward = forward
	r.reverse = reverse
	r.mu.Unlock()
}

// Resolve maps a canonical ID to its alias of the given type.
func (r *Registry) Resolve(canonicalID string, symbolType models.SymbolType) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if byType, ok := r.forward[canonicalID]; ok {
		if v, ok := byType[symbolType]; ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s has no %s alias: %w", canonicalID, symbolType, models.ErrUnresolvedSymbol)
}

// ReverseResolve maps an external symbol back to its canonical ID.
func (r *Registry) ReverseResolve(symbolValue string, symbolType models.SymbolType) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if byValue, ok := r.reverse[symbolType]; ok {
		if id, ok := byValue[symbolValue]; ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("no ticker owns %s alias %q: %w", symbolType, symbolValue, models.ErrUnknownSymbol)
}

// ListActive returns active canonical IDs in lexicographic order. The result
// is a copy; callers may not mutate the index through it.
func (r *Registry) ListActive() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.active))
	copy(out, r.active)
	return out
}

var _ domrepo.SymbolRegistry = (*Registry)(nil)
