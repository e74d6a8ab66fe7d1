// Command subscriber tails pool updates published by the ingestor.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/cache"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/config"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/constants"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	config.LoadEnv()

	fs := pflag.NewFlagSet("subscriber", pflag.ExitOnError)
	fs.String("config", "", "config file path")
	fs.String("redis-addr", "localhost:6379", "Redis address")
	tier := fs.String("tier", "", "only follow one tier (speculative, durable)")
	pool := fs.String("pool", "", "only follow one pool address")
	_ = fs.Parse(os.Args[1:])

	cfgFile, _ := fs.GetString("config")
	cfg, err := config.Load(cfgFile, fs)
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rclient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rclient.Close()
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	pubsub := cache.NewPubSubManager(rclient, logger)

	channel := constants.PubSubChannelAll
	switch {
	case *pool != "":
		channel = constants.PubSubChannelPool + *pool
	case *tier != "":
		t, err := models.ParseTier(*tier)
		if err != nil {
			logger.WithError(err).Fatal("invalid tier")
		}
		channel = constants.PubSubChannelTier + t.String()
	}

	logger.WithField("channel", channel).Info("subscriber running, press Ctrl+C to stop")

	err = pubsub.Subscribe(ctx, channel, func(u *models.PoolUpdate) {
		logger.WithFields(logrus.Fields{
			"tier":      u.Tier,
			"pool":      u.Pool,
			"pair":      u.Pair,
			"slot":      u.Slot,
			"price":     u.Price,
			"liquidity": u.Liquidity,
			"tick":      u.TickCurrentIndex,
		}).Info("pool update")
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("subscription ended")
	}
	logger.Info("subscriber stopped")
}
