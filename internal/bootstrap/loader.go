package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/state"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/sugawarayuuta/sonnet"
)

var ErrNoTokens = errors.New("bootstrap: no initial tokens resolved")

// TokenEntry is one element of tokens.json.
type TokenEntry struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type PoolToken struct {
	Mint   string `json:"mint"`
	Symbol string `json:"symbol"`
}

// PoolEntry is one element of the whirlpools array in orca_pools.json.
type PoolEntry struct {
	Address string    `json:"address"`
	TokenA  PoolToken `json:"tokenA"`
	TokenB  PoolToken `json:"tokenB"`
	TVL     float64   `json:"tvl"`
}

type poolsFile struct {
	Whirlpools []PoolEntry `json:"whirlpools"`
}

type Config struct {
	TokensFile    string
	PoolsFile     string
	InitialTokens []string
	MinTVL        float64
	Logger        *logrus.Logger
}

// Report counts what Load did with the pool list.
type Report struct {
	Tokens          int
	Pairs           int
	Processed       int
	SkippedLowTVL   int
	SkippedExisting int
	SkippedInvalid  int
	MissingTokens   []string
}

// LoadTokens reads and parses a tokens file.
func LoadTokens(path string) ([]TokenEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokens file: %w", err)
	}
	var tokens []TokenEntry
	if err := sonnet.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse tokens file: %w", err)
	}
	return tokens, nil
}

// LoadPools reads and parses a whirlpool list.
func LoadPools(path string) ([]PoolEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pools file: %w", err)
	}
	var f poolsFile
	if err := sonnet.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pools file: %w", err)
	}
	return f.Whirlpools, nil
}

// Load populates index from the configured files. Tokens listed in
// InitialTokens but absent from the tokens file are reported and skipped.
func Load(cfg Config, index *state.Index) (Report, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	var report Report

	tokens, err := LoadTokens(cfg.TokensFile)
	if err != nil {
		return report, err
	}
	bySymbol := make(map[string]TokenEntry, len(tokens))
	for _, t := range tokens {
		if _, ok := bySymbol[t.Symbol]; !ok {
			bySymbol[t.Symbol] = t
		}
	}

	var tracked []string
	for _, raw := range cfg.InitialTokens {
		symbol := strings.TrimSpace(raw)
		if symbol == "" {
			continue
		}
		entry, ok := bySymbol[symbol]
		if !ok {
			logger.WithField("symbol", symbol).Warn("token not found in tokens file")
			report.MissingTokens = append(report.MissingTokens, symbol)
			continue
		}
		mint, err := solana.PublicKeyFromBase58(entry.Address)
		if err != nil {
			return report, fmt.Errorf("token %s: invalid address: %w", symbol, err)
		}
		index.AddToken(models.TokenInfo{Symbol: symbol, Mint: mint, Decimals: entry.Decimals})
		tracked = append(tracked, symbol)
	}
	if len(tracked) == 0 {
		return report, ErrNoTokens
	}
	report.Tokens = len(tracked)

	for i := 0; i < len(tracked); i++ {
		for j := i + 1; j < len(tracked); j++ {
			index.AddTokenPair(tracked[i], tracked[j])
			report.Pairs++
		}
	}

	pools, err := LoadPools(cfg.PoolsFile)
	if err != nil {
		return report, err
	}

	for _, p := range pools {
		if _, ok := index.TokenBySymbol(p.TokenA.Symbol); !ok {
			continue
		}
		if _, ok := index.TokenBySymbol(p.TokenB.Symbol); !ok {
			continue
		}
		if p.TVL < cfg.MinTVL {
			report.SkippedLowTVL++
			continue
		}

		info, err := parsePool(p)
		if err != nil {
			logger.WithError(err).WithField("pool", p.Address).Warn("skipping malformed pool entry")
			report.SkippedInvalid++
			continue
		}
		if !index.AddPool(info) {
			report.SkippedExisting++
			continue
		}
		report.Processed++
	}

	logger.WithFields(logrus.Fields{
		"tokens":           report.Tokens,
		"pairs":            report.Pairs,
		"processed":        report.Processed,
		"skipped_low_tvl":  report.SkippedLowTVL,
		"skipped_existing": report.SkippedExisting,
	}).Info("pool index loaded")

	return report, nil
}

func parsePool(p PoolEntry) (models.PoolInfo, error) {
	addr, err := solana.PublicKeyFromBase58(p.Address)
	if err != nil {
		return models.PoolInfo{}, fmt.Errorf("address: %w", err)
	}
	mintA, err := solana.PublicKeyFromBase58(p.TokenA.Mint)
	if err != nil {
		return models.PoolInfo{}, fmt.Errorf("tokenA mint: %w", err)
	}
	mintB, err := solana.PublicKeyFromBase58(p.TokenB.Mint)
	if err != nil {
		return models.PoolInfo{}, fmt.Errorf("tokenB mint: %w", err)
	}
	return models.PoolInfo{
		Address: addr,
		SymbolA: p.TokenA.Symbol,
		SymbolB: p.TokenB.Symbol,
		MintA:   mintA,
		MintB:   mintB,
		TVL:     p.TVL,
	}, nil
}
