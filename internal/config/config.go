package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/constants"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/decoder"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "INGESTOR"

// Stale update policies
const (
	StalePolicyApply = "apply"
	StalePolicyDrop  = "drop"
)

// Update sinks
const (
	SinkPubSub     = "pubsub"
	SinkRedis      = "redis"
	SinkClickHouse = "clickhouse"
)

type Config struct {
	// Node endpoints
	WSURL  string
	RPCURL string

	// Tiers
	Tiers                 []models.Tier
	SpeculativeCommitment string
	DurableCommitment     string
	ProgramSubscribe      bool
	Layout                decoder.Layout

	// Consistency
	StalePolicy      string
	StaleTolerance   uint64
	DelayThreshold   time.Duration
	FlagPollInterval time.Duration

	// Bootstrap
	TokensFile    string
	PoolsFile     string
	InitialTokens []string
	MinTVL        float64
	Seed          bool

	// Transport
	PingInterval          time.Duration
	RestartInitialBackoff time.Duration
	RestartMaxBackoff     time.Duration

	// RPC client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Sinks
	Sinks          []string
	DispatchBuffer int

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP API
	APIAddr       string
	APIKey        string
	DevMode       bool
	JupiterURL    string
	JupiterAPIKey string
	QuoteRPS      float64

	LogLevel string
}

// LoadEnv loads .env files into the process environment. Missing files are
// not an error; the returned slice lists the files that were loaded.
func LoadEnv(paths ...string) []string {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var loaded []string
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}

// Load merges config file, environment variables (INGESTOR_*), and flags
// into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("ingestor")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	tiers, err := parseTiers(getStringSlice(v, "tiers"))
	if err != nil {
		return nil, err
	}
	layout, err := decoder.ParseLayout(v.GetString("layout"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		WSURL:  v.GetString("ws-url"),
		RPCURL: v.GetString("rpc-url"),

		Tiers:                 tiers,
		SpeculativeCommitment: v.GetString("speculative-commitment"),
		DurableCommitment:     v.GetString("durable-commitment"),
		ProgramSubscribe:      v.GetBool("program-subscribe"),
		Layout:                layout,

		StalePolicy:      strings.ToLower(v.GetString("stale-policy")),
		StaleTolerance:   v.GetUint64("stale-tolerance"),
		DelayThreshold:   v.GetDuration("delay-threshold"),
		FlagPollInterval: v.GetDuration("flag-poll-interval"),

		TokensFile:    v.GetString("tokens-file"),
		PoolsFile:     v.GetString("pools-file"),
		InitialTokens: getStringSlice(v, "initial-tokens"),
		MinTVL:        v.GetFloat64("min-tvl"),
		Seed:          v.GetBool("seed"),

		PingInterval:          v.GetDuration("ping-interval"),
		RestartInitialBackoff: v.GetDuration("restart-initial-backoff"),
		RestartMaxBackoff:     v.GetDuration("restart-max-backoff"),

		HTTPTimeout:  v.GetDuration("http-timeout"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),

		Sinks:          lower(getStringSlice(v, "sinks")),
		DispatchBuffer: v.GetInt("dispatch-buffer"),

		RedisAddr:     v.GetString("redis-addr"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),

		ClickHouseAddr:     v.GetString("clickhouse-addr"),
		ClickHouseDatabase: v.GetString("clickhouse-database"),
		ClickHouseUsername: v.GetString("clickhouse-username"),
		ClickHousePassword: v.GetString("clickhouse-password"),

		APIAddr:       v.GetString("api-addr"),
		APIKey:        v.GetString("api-key"),
		DevMode:       v.GetBool("dev-mode"),
		JupiterURL:    v.GetString("jupiter-url"),
		JupiterAPIKey: v.GetString("jupiter-api-key"),
		QuoteRPS:      v.GetFloat64("quote-rps"),

		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ws-url", constants.DefaultWSURL)
	v.SetDefault("rpc-url", constants.DefaultRPCURL)

	v.SetDefault("tiers", "speculative,durable")
	v.SetDefault("speculative-commitment", constants.CommitmentProcessed)
	v.SetDefault("durable-commitment", constants.CommitmentFinalized)
	v.SetDefault("program-subscribe", true)
	v.SetDefault("layout", string(decoder.LayoutSnapshot))

	v.SetDefault("stale-policy", StalePolicyApply)
	v.SetDefault("stale-tolerance", uint64(10))
	v.SetDefault("delay-threshold", time.Second)
	v.SetDefault("flag-poll-interval", constants.DefaultFlagPollInterval)

	v.SetDefault("tokens-file", constants.DefaultTokensFile)
	v.SetDefault("pools-file", constants.DefaultPoolsFile)
	v.SetDefault("initial-tokens", constants.DefaultInitialTokens)
	v.SetDefault("min-tvl", constants.DefaultMinTVL)
	v.SetDefault("seed", false)

	v.SetDefault("ping-interval", 30*time.Second)
	v.SetDefault("restart-initial-backoff", time.Second)
	v.SetDefault("restart-max-backoff", time.Minute)

	v.SetDefault("http-timeout", 30*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 2*time.Second)

	v.SetDefault("sinks", "")
	v.SetDefault("dispatch-buffer", constants.DefaultDispatchBuffer)

	v.SetDefault("redis-addr", "localhost:6379")
	v.SetDefault("redis-db", 0)

	v.SetDefault("clickhouse-addr", "localhost:9000")
	v.SetDefault("clickhouse-database", "solana")
	v.SetDefault("clickhouse-username", "default")

	v.SetDefault("api-addr", "")
	v.SetDefault("jupiter-url", constants.DefaultJupiterURL)
	v.SetDefault("quote-rps", 2.0)

	v.SetDefault("log-level", "info")
}

// Validate checks the loaded configuration for values the runner cannot use.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.WSURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Errorf("ws-url must be a ws:// or wss:// URL, got %q", c.WSURL))
	}
	if len(c.Tiers) == 0 {
		errs = append(errs, errors.New("at least one tier is required"))
	}
	for _, cm := range []string{c.SpeculativeCommitment, c.DurableCommitment} {
		if !validCommitment(cm) {
			errs = append(errs, fmt.Errorf("unknown commitment %q", cm))
		}
	}
	if c.StalePolicy != StalePolicyApply && c.StalePolicy != StalePolicyDrop {
		errs = append(errs, fmt.Errorf("stale-policy must be %q or %q, got %q", StalePolicyApply, StalePolicyDrop, c.StalePolicy))
	}
	if c.StaleTolerance == 0 {
		errs = append(errs, errors.New("stale-tolerance must be positive"))
	}
	if c.MinTVL < 0 {
		errs = append(errs, errors.New("min-tvl must not be negative"))
	}
	if len(c.InitialTokens) == 0 {
		errs = append(errs, errors.New("initial-tokens is required"))
	}
	if c.RestartMaxBackoff < c.RestartInitialBackoff {
		errs = append(errs, errors.New("restart-max-backoff must be >= restart-initial-backoff"))
	}
	if c.DispatchBuffer <= 0 {
		errs = append(errs, errors.New("dispatch-buffer must be positive"))
	}
	for _, s := range c.Sinks {
		switch s {
		case SinkPubSub, SinkRedis, SinkClickHouse:
		default:
			errs = append(errs, fmt.Errorf("unknown sink %q", s))
		}
	}
	if c.Seed && c.RPCURL == "" {
		errs = append(errs, errors.New("seed requires rpc-url"))
	}

	return errors.Join(errs...)
}

// Commitment returns the configured commitment of a tier.
func (c *Config) Commitment(t models.Tier) string {
	if t == models.TierDurable {
		return c.DurableCommitment
	}
	return c.SpeculativeCommitment
}

// HasSink reports whether the named sink is enabled.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// NeedsRedis reports whether any enabled component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.HasSink(SinkPubSub) || c.HasSink(SinkRedis) || c.APIAddr != ""
}

func validCommitment(c string) bool {
	switch c {
	case constants.CommitmentProcessed, constants.CommitmentConfirmed, constants.CommitmentFinalized:
		return true
	}
	return false
}

func parseTiers(names []string) ([]models.Tier, error) {
	seen := make(map[models.Tier]bool, len(names))
	out := make([]models.Tier, 0, len(names))
	for _, n := range names {
		t, err := models.ParseTier(n)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	switch typed := v.Get(key).(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return cleanStrings(strings.Split(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func lower(items []string) []string {
	for i := range items {
		items[i] = strings.ToLower(items[i])
	}
	return items
}
