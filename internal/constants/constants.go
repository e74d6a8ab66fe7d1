package constants

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// WhirlpoolProgramID is the Orca Whirlpool program.
var WhirlpoolProgramID = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")

// Commitments
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Endpoints
const (
	DefaultRPCURL     = "https://api.mainnet-beta.solana.com"
	DefaultWSURL      = "wss://api.mainnet-beta.solana.com"
	DefaultJupiterURL = "https://api.jup.ag/swap/v1"
)

// Redis Pub/Sub channels
const (
	PubSubChannelAll      = "pools:all"
	PubSubChannelTier     = "pools:tier:"
	PubSubChannelPool     = "pools:pool:"
	PubSubPatternAllPools = "pools:pool:*"
)

// Redis keys
const (
	RedisKeyStatePrefix = "pool:state:"
	RedisKeyProgress    = "network:progress"
)

// Bootstrap
const (
	DefaultMinTVL        = 100000.0
	DefaultTokensFile    = "tokens.json"
	DefaultPoolsFile     = "orca_pools.json"
	DefaultInitialTokens = "SOL,USDC,USDT,JUP"
)

// Ingestion
const (
	DefaultQueueWarnDepth   = 10000
	DefaultDispatchBuffer   = 4096
	DefaultFlagPollInterval = 5 * time.Second
	DefaultSeedBatchSize    = 100
)

// Well-known mints, used for fallbacks and CLI defaults.
var TokenSymbols = map[string]string{
	"So11111111111111111111111111111111111111112":  "SOL",
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  "mSOL",
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  "JUP",
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": "BONK",
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": "RAY",
	"orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE":  "ORCA",
}
