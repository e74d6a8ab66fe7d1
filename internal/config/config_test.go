package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/decoder"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, []models.Tier{models.TierSpeculative, models.TierDurable}, cfg.Tiers)
	assert.Equal(t, "processed", cfg.SpeculativeCommitment)
	assert.Equal(t, "finalized", cfg.DurableCommitment)
	assert.Equal(t, decoder.LayoutSnapshot, cfg.Layout)
	assert.Equal(t, StalePolicyApply, cfg.StalePolicy)
	assert.Equal(t, uint64(10), cfg.StaleTolerance)
	assert.Equal(t, time.Second, cfg.DelayThreshold)
	assert.Equal(t, 100000.0, cfg.MinTVL)
	assert.Equal(t, []string{"SOL", "USDC", "USDT", "JUP"}, cfg.InitialTokens)
	assert.Empty(t, cfg.Sinks)
	assert.True(t, cfg.ProgramSubscribe)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("INGESTOR_WS_URL", "ws://localhost:8900")
	t.Setenv("INGESTOR_TIERS", "finalized")
	t.Setenv("INGESTOR_LAYOUT", "account")
	t.Setenv("INGESTOR_STALE_POLICY", "DROP")
	t.Setenv("INGESTOR_SINKS", "pubsub, ClickHouse")
	t.Setenv("INGESTOR_MIN_TVL", "2500.5")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8900", cfg.WSURL)
	assert.Equal(t, []models.Tier{models.TierDurable}, cfg.Tiers)
	assert.Equal(t, decoder.LayoutAccount, cfg.Layout)
	assert.Equal(t, StalePolicyDrop, cfg.StalePolicy)
	assert.Equal(t, []string{SinkPubSub, SinkClickHouse}, cfg.Sinks)
	assert.Equal(t, 2500.5, cfg.MinTVL)
	assert.True(t, cfg.HasSink(SinkClickHouse))
	assert.False(t, cfg.HasSink(SinkRedis))
	assert.True(t, cfg.NeedsRedis())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingestor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ws-url: wss://node.example.com
initial-tokens: [SOL, BONK]
stale-tolerance: 25
`), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Uint64("stale-tolerance", 10, "")
	require.NoError(t, flags.Parse([]string{"--stale-tolerance=40"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "wss://node.example.com", cfg.WSURL)
	assert.Equal(t, []string{"SOL", "BONK"}, cfg.InitialTokens)
	assert.Equal(t, uint64(40), cfg.StaleTolerance, "flags win over file")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	t.Setenv("INGESTOR_TIERS", "speculative,pending")
	_, err = Load("", nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"http scheme", func(c *Config) { c.WSURL = "https://api.mainnet-beta.solana.com" }, "ws-url"},
		{"no tiers", func(c *Config) { c.Tiers = nil }, "tier"},
		{"bad commitment", func(c *Config) { c.DurableCommitment = "max" }, "commitment"},
		{"bad policy", func(c *Config) { c.StalePolicy = "ignore" }, "stale-policy"},
		{"zero tolerance", func(c *Config) { c.StaleTolerance = 0 }, "stale-tolerance"},
		{"negative tvl", func(c *Config) { c.MinTVL = -1 }, "min-tvl"},
		{"backoff order", func(c *Config) { c.RestartMaxBackoff = time.Millisecond }, "restart-max-backoff"},
		{"unknown sink", func(c *Config) { c.Sinks = []string{"kafka"} }, "sink"},
		{"seed without rpc", func(c *Config) { c.Seed = true; c.RPCURL = "" }, "seed"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCommitment(t *testing.T) {
	cfg := &Config{SpeculativeCommitment: "confirmed", DurableCommitment: "finalized"}
	assert.Equal(t, "confirmed", cfg.Commitment(models.TierSpeculative))
	assert.Equal(t, "finalized", cfg.Commitment(models.TierDurable))
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("INGESTOR_TEST_LOADENV=yes\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("INGESTOR_TEST_LOADENV") })

	loaded := LoadEnv(filepath.Join(dir, "missing.env"), path)
	assert.Equal(t, []string{path}, loaded)
	assert.Equal(t, "yes", os.Getenv("INGESTOR_TEST_LOADENV"))
}
