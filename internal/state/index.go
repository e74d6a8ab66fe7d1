package state

import (
	"strings"
	"sync"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/gagliardetto/solana-go"
)

// Index holds the token, pair and pool lookups built at startup, plus the
// liquidity edges and route cache written as pools decode. Reads dominate.
type Index struct {
	mu sync.RWMutex

	tokensBySymbol map[string]models.TokenInfo
	tokensByMint   map[solana.PublicKey]models.TokenInfo
	pairs          []models.TokenPair
	pairPools      map[models.TokenPair][]solana.PublicKey
	pools          map[solana.PublicKey]models.PoolInfo

	edges      map[edgeKey]models.LiquidityEdge
	routeCache map[routeKey][]models.Route
}

type edgeKey struct {
	tier    models.Tier
	pool    solana.PublicKey
	tokenIn solana.PublicKey
}

type routeKey struct {
	in, out solana.PublicKey
}

func NewIndex() *Index {
	return &Index{
		tokensBySymbol: make(map[string]models.TokenInfo),
		tokensByMint:   make(map[solana.PublicKey]models.TokenInfo),
		pairPools:      make(map[models.TokenPair][]solana.PublicKey),
		pools:          make(map[solana.PublicKey]models.PoolInfo),
		edges:          make(map[edgeKey]models.LiquidityEdge),
		routeCache:     make(map[routeKey][]models.Route),
	}
}

func (ix *Index) AddToken(t models.TokenInfo) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.tokensBySymbol[t.Symbol] = t
	ix.tokensByMint[t.Mint] = t
}

func (ix *Index) TokenBySymbol(symbol string) (models.TokenInfo, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tokensBySymbol[symbol]
	return t, ok
}

func (ix *Index) TokenByMint(mint solana.PublicKey) (models.TokenInfo, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tokensByMint[mint]
	return t, ok
}

// AddTokenPair registers a pair once, regardless of symbol order.
func (ix *Index) AddTokenPair(symbolA, symbolB string) models.TokenPair {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.addPairLocked(symbolA, symbolB)
}

func (ix *Index) addPairLocked(symbolA, symbolB string) models.TokenPair {
	pair := models.TokenPair{SymbolA: symbolA, SymbolB: symbolB}
	if _, ok := ix.pairPools[pair]; ok {
		return pair
	}
	rev := models.TokenPair{SymbolA: symbolB, SymbolB: symbolA}
	if _, ok := ix.pairPools[rev]; ok {
		return rev
	}
	ix.pairs = append(ix.pairs, pair)
	ix.pairPools[pair] = nil
	return pair
}

func (ix *Index) Pairs() []models.TokenPair {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]models.TokenPair(nil), ix.pairs...)
}

// AddPool records a tracked pool under its pair. It returns false when the
// pool address is already known.
func (ix *Index) AddPool(p models.PoolInfo) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.pools[p.Address]; ok {
		return false
	}
	pair := ix.addPairLocked(p.SymbolA, p.SymbolB)
	ix.pools[p.Address] = p
	ix.pairPools[pair] = append(ix.pairPools[pair], p.Address)
	return true
}

// Contains reports whether pool is in the tracked set.
func (ix *Index) Contains(pool solana.PublicKey) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.pools[pool]
	return ok
}

func (ix *Index) Pool(pool solana.PublicKey) (models.PoolInfo, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.pools[pool]
	return p, ok
}

// PoolAddresses returns every tracked pool address.
func (ix *Index) PoolAddresses() []solana.PublicKey {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]solana.PublicKey, 0, len(ix.pools))
	for _, pair := range ix.pairs {
		out = append(out, ix.pairPools[pair]...)
	}
	return out
}

func (ix *Index) PoolsForPair(symbolA, symbolB string) []solana.PublicKey {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if pools, ok := ix.pairPools[models.TokenPair{SymbolA: symbolA, SymbolB: symbolB}]; ok {
		return append([]solana.PublicKey(nil), pools...)
	}
	return append([]solana.PublicKey(nil), ix.pairPools[models.TokenPair{SymbolA: symbolB, SymbolB: symbolA}]...)
}

// PoolsBySymbol returns the pools of every pair containing symbol.
// Matching is case-insensitive.
func (ix *Index) PoolsBySymbol(symbol string) []solana.PublicKey {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []solana.PublicKey
	for _, pair := range ix.pairs {
		if strings.EqualFold(pair.SymbolA, symbol) || strings.EqualFold(pair.SymbolB, symbol) {
			out = append(out, ix.pairPools[pair]...)
		}
	}
	return out
}

// PoolsByMint returns the pools trading mint on either side.
func (ix *Index) PoolsByMint(mint solana.PublicKey) []solana.PublicKey {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []solana.PublicKey
	for _, pair := range ix.pairs {
		for _, addr := range ix.pairPools[pair] {
			p := ix.pools[addr]
			if p.MintA.Equals(mint) || p.MintB.Equals(mint) {
				out = append(out, addr)
			}
		}
	}
	return out
}

// UpsertEdge stores e, replacing any earlier edge for the same tier, pool
// and direction.
func (ix *Index) UpsertEdge(e models.LiquidityEdge) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.edges[edgeKey{tier: e.Tier, pool: e.Pool, tokenIn: e.TokenIn}] = e
}

// EdgesFrom returns every edge of tier leaving tokenIn.
func (ix *Index) EdgesFrom(tier models.Tier, tokenIn solana.PublicKey) []models.LiquidityEdge {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []models.LiquidityEdge
	for k, e := range ix.edges {
		if k.tier == tier && k.tokenIn.Equals(tokenIn) {
			out = append(out, e)
		}
	}
	return out
}

func (ix *Index) EdgeCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.edges)
}

func (ix *Index) SetRoutes(in, out solana.PublicKey, routes []models.Route) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.routeCache[routeKey{in: in, out: out}] = routes
}

func (ix *Index) Routes(in, out solana.PublicKey) ([]models.Route, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	r, ok := ix.routeCache[routeKey{in: in, out: out}]
	return r, ok
}
