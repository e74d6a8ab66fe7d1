package main

import (
	"os"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/config"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/constants"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	config.LoadEnv()

	root := &cobra.Command{
		Use:          "ingestor",
		Short:        "Orca Whirlpool pool state ingestor",
		SilenceUsage: true,
		RunE:         runIngestor,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Stream pool state into the in-memory store",
		RunE:  runIngestor,
	}
	addRunFlags(runCmd)
	addRunFlags(root)
	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode [payload]",
		Short: "Decode a base64+zstd pool payload",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDecode,
	}
	decodeCmd.Flags().String("layout", "snapshot", "payload layout (snapshot, account)")
	decodeCmd.Flags().String("encoding", "base64+zstd", "payload encoding")
	decodeCmd.Flags().Uint8("decimals-a", 0, "token A decimals, for the human price")
	decodeCmd.Flags().Uint8("decimals-b", 0, "token B decimals, for the human price")
	root.AddCommand(decodeCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote <inputMint> <outputMint> <amount>",
		Short: "Fetch an aggregator quote",
		Args:  cobra.ExactArgs(3),
		RunE:  runQuote,
	}
	quoteCmd.Flags().String("jupiter-url", constants.DefaultJupiterURL, "Jupiter swap API base URL")
	quoteCmd.Flags().String("jupiter-api-key", "", "Jupiter API key")
	quoteCmd.Flags().Uint16("slippage-bps", 50, "slippage tolerance in basis points")
	quoteCmd.Flags().StringSlice("dexes", nil, "restrict routing to these dexes")
	root.AddCommand(quoteCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("ws-url", constants.DefaultWSURL, "node websocket URL")
	f.String("rpc-url", constants.DefaultRPCURL, "node HTTP RPC URL, used for seeding")
	f.StringSlice("tiers", []string{"speculative", "durable"}, "tiers to run")
	f.String("layout", "snapshot", "payload layout (snapshot, account)")
	f.Bool("program-subscribe", true, "also subscribe to the whole program")
	f.String("stale-policy", "apply", "what to do with stale updates (apply, drop)")
	f.String("tokens-file", constants.DefaultTokensFile, "token list")
	f.String("pools-file", constants.DefaultPoolsFile, "whirlpool list")
	f.StringSlice("initial-tokens", []string{"SOL", "USDC", "USDT", "JUP"}, "token symbols to track")
	f.Float64("min-tvl", constants.DefaultMinTVL, "minimum pool TVL in USD")
	f.Bool("seed", false, "seed pool state over RPC before streaming")
	f.StringSlice("sinks", nil, "update sinks (pubsub, redis, clickhouse)")
	f.String("redis-addr", "localhost:6379", "Redis address")
	f.String("clickhouse-addr", "localhost:9000", "ClickHouse address")
	f.String("api-addr", "", "HTTP API bind address, empty disables the API")
	f.Duration("restart-max-backoff", time.Minute, "maximum delay between stream restarts")
}

func newLogger(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	return logger, nil
}
