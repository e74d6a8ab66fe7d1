package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/bootstrap"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/cache"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/config"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/constants"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/decoder"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/flags"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/ingest"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/jupiter"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/rpc"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/server"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/state"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/storage"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/stream"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/supervisor"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// tierRuntime is everything running for one tier.
type tierRuntime struct {
	tier        models.Tier
	subscriber  *stream.Subscriber
	coordinator *ingest.Coordinator
	supervisor  *supervisor.Supervisor
}

func runIngestor(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	index := state.NewIndex()
	report, err := bootstrap.Load(bootstrap.Config{
		TokensFile:    cfg.TokensFile,
		PoolsFile:     cfg.PoolsFile,
		InitialTokens: cfg.InitialTokens,
		MinTVL:        cfg.MinTVL,
		Logger:        logger,
	}, index)
	if err != nil {
		return fmt.Errorf("load pool index: %w", err)
	}
	if report.Processed == 0 {
		logger.Warn("no pools passed the filters, only the program subscription will deliver updates")
	}

	store := state.NewStore(state.StoreConfig{
		Index:          index,
		StaleTolerance: cfg.StaleTolerance,
		DelayThreshold: cfg.DelayThreshold,
		Logger:         logger,
	})

	var rclient *redis.Client
	if cfg.NeedsRedis() {
		rclient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rclient.Close()
		if err := rclient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	var (
		sinks       []storage.UpdateSink
		redisCache  *cache.RedisCache
		historySink storage.PoolHistoryStore
	)
	if cfg.HasSink(config.SinkPubSub) {
		sinks = append(sinks, cache.NewPubSubManager(rclient, logger))
	}
	if cfg.HasSink(config.SinkRedis) {
		redisCache = cache.NewRedisCacheFromClient(rclient, 0, logger)
		sinks = append(sinks, redisCache)
	}
	if cfg.HasSink(config.SinkClickHouse) {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer ch.Close()
		historySink = ch
		if err := historySink.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
		sinks = append(sinks, historySink)
	}

	dispatcher := ingest.NewDispatcher(ingest.DispatcherConfig{
		Sinks:  sinks,
		Buffer: cfg.DispatchBuffer,
		Logger: logger,
	})

	var (
		flagStore *flags.Store
		policy    ingest.StalePolicy = ingest.StaticPolicy(cfg.StalePolicy == config.StalePolicyDrop)
		flagPoll  *ingest.FlagPolicy
	)
	if rclient != nil {
		flagStore, err = flags.NewStore(rclient)
		if err != nil {
			return fmt.Errorf("flags store: %w", err)
		}
		flagPoll = ingest.NewFlagPolicy(ingest.FlagPolicyConfig{
			Flags:    flagStore,
			Key:      flags.DropStale,
			Default:  cfg.StalePolicy == config.StalePolicyDrop,
			Interval: cfg.FlagPollInterval,
			Logger:   logger,
		})
		policy = flagPoll
	}

	progress := stream.NewQueue[models.SlotInfo]()
	slotTier := cfg.Tiers[0]
	for _, t := range cfg.Tiers {
		if t == models.TierSpeculative {
			slotTier = t
		}
	}

	tiers := make([]*tierRuntime, 0, len(cfg.Tiers))
	for _, tier := range cfg.Tiers {
		updates := stream.NewQueue[stream.AccountUpdate]()
		sub := stream.NewSubscriber(stream.SubscriberConfig{
			URL:              cfg.WSURL,
			Tier:             tier,
			Commitment:       cfg.Commitment(tier),
			Pools:            index,
			ProgramID:        constants.WhirlpoolProgramID,
			SubscribeProgram: cfg.ProgramSubscribe,
			SubscribeSlots:   tier == slotTier,
			Updates:          updates,
			Progress:         progress,
			PingInterval:     cfg.PingInterval,
			Logger:           logger,
		})
		tiers = append(tiers, &tierRuntime{
			tier:       tier,
			subscriber: sub,
			coordinator: ingest.NewCoordinator(ingest.CoordinatorConfig{
				Tier:      tier,
				Updates:   updates,
				Store:     store,
				Decode:    decoder.For(cfg.Layout),
				Policy:    policy,
				Publisher: dispatcher,
				WarnDepth: constants.DefaultQueueWarnDepth,
				Logger:    logger,
			}),
			supervisor: supervisor.New(supervisor.Config{
				Name:           tier.String(),
				Provider:       sub,
				InitialBackoff: cfg.RestartInitialBackoff,
				MaxBackoff:     cfg.RestartMaxBackoff,
				Logger:         logger,
			}),
		})
	}

	if cfg.Seed {
		if err := seed(ctx, cfg, logger, store, tiers, slotTier); err != nil {
			logger.WithError(err).Warn("seeding failed, continuing with the stream only")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(gctx) })
	if flagPoll != nil {
		g.Go(func() error { return flagPoll.Run(gctx) })
	}

	var progressSink ingest.ProgressSink
	if redisCache != nil {
		progressSink = redisCache
	}
	g.Go(func() error { return ingest.RunProgress(gctx, progress, store, progressSink, logger) })

	for _, rt := range tiers {
		rt := rt
		g.Go(func() error { return rt.coordinator.Run(gctx) })
		g.Go(func() error { return rt.supervisor.Run(gctx) })
	}

	if cfg.APIAddr != "" {
		h := &server.Handlers{
			Store:   store,
			Stats:   func() any { return pipelineStats(store, dispatcher, tiers) },
			DevMode: cfg.DevMode,
			Logger:  logger,
		}
		if flagStore != nil {
			h.Flags = flagStore
		}
		if cfg.JupiterURL != "" {
			h.Jupiter = jupiter.NewClient(cfg.JupiterURL, cfg.JupiterAPIKey)
		}

		srv, err := server.NewServer(server.ServerDeps{
			Handlers: h,
			Config: server.ServerConfig{
				Addr:     cfg.APIAddr,
				DevMode:  cfg.DevMode,
				APIKey:   cfg.APIKey,
				QuoteRPS: cfg.QuoteRPS,
			},
		})
		if err != nil {
			return fmt.Errorf("create http server: %w", err)
		}

		g.Go(func() error {
			logger.WithField("addr", cfg.APIAddr).Info("api server starting")
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Shutdown(context.Background())
		})
	}

	logger.WithFields(logrus.Fields{
		"tiers":  cfg.Tiers,
		"pools":  report.Processed,
		"layout": cfg.Layout,
		"sinks":  cfg.Sinks,
	}).Info("ingestor running")

	err = g.Wait()
	logger.WithFields(logrus.Fields(statsFields(store))).Info("ingestor stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func seed(ctx context.Context, cfg *config.Config, logger *logrus.Logger, store *state.Store, tiers []*tierRuntime, slotTier models.Tier) error {
	client := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCURL,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	coordinators := make([]*ingest.Coordinator, 0, len(tiers))
	for _, rt := range tiers {
		coordinators = append(coordinators, rt.coordinator)
	}

	seeder := ingest.NewSeeder(ingest.SeederConfig{
		Fetcher:      client,
		Coordinators: coordinators,
		Commitment:   cfg.DurableCommitment,
		BatchSize:    constants.DefaultSeedBatchSize,
		Logger:       logger,
	})
	report, err := seeder.Seed(ctx, store.Index().PoolAddresses())
	if err != nil {
		return err
	}

	current, err := ingest.PrimeProgress(ctx, client, cfg.Commitment(slotTier), store)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"requested": report.Requested,
		"applied":   report.Applied,
		"missing":   report.Missing,
		"failed":    report.Failed,
		"slot":      report.Slot,
		"current":   current,
	}).Info("pool state seeded")
	return nil
}

func pipelineStats(store *state.Store, dispatcher *ingest.Dispatcher, tiers []*tierRuntime) map[string]any {
	perTier := make(map[string]any, len(tiers))
	for _, rt := range tiers {
		perTier[rt.tier.String()] = map[string]any{
			"connection":  rt.subscriber.State().String(),
			"subscriber":  rt.subscriber.Stats(),
			"coordinator": rt.coordinator.Stats(),
			"restarts":    rt.supervisor.Restarts(),
			"pools":       store.Len(rt.tier),
		}
	}
	return map[string]any{
		"tiers":      perTier,
		"dispatcher": dispatcher.Stats(),
		"edges":      store.Index().EdgeCount(),
	}
}

func statsFields(store *state.Store) map[string]any {
	out := make(map[string]any, len(models.Tiers))
	for _, t := range models.Tiers {
		out[t.String()+"_pools"] = store.Len(t)
	}
	return out
}
