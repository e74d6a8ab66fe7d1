package cache

import (
	"context"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/constants"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sugawarayuuta/sonnet"
)

// PubSubManager publishes pool updates to Redis channels and lets consumers
// subscribe to them.
type PubSubManager struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewPubSubManager(client *redis.Client, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{client: client, logger: logger}
}

func (p *PubSubManager) Name() string { return "pubsub" }

func (p *PubSubManager) WriteUpdate(ctx context.Context, update *models.PoolUpdate) error {
	return p.PublishPoolUpdate(ctx, update)
}

// Channels lists every channel an update is published to.
func Channels(update *models.PoolUpdate) []string {
	return []string{
		constants.PubSubChannelAll,
		constants.PubSubChannelTier + update.Tier,
		constants.PubSubChannelPool + update.Pool,
	}
}

// PublishPoolUpdate publishes one update to all of its channels in a single
// round trip.
func (p *PubSubManager) PublishPoolUpdate(ctx context.Context, update *models.PoolUpdate) error {
	data, err := sonnet.Marshal(update)
	if err != nil {
		return err
	}

	pipe := p.client.Pipeline()
	for _, channel := range Channels(update) {
		pipe.Publish(ctx, channel, data)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Subscribe delivers updates from one channel until ctx is cancelled.
func (p *PubSubManager) Subscribe(ctx context.Context, channel string, handler storage.UpdateHandler) error {
	pubsub := p.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	p.logger.WithField("channel", channel).Info("subscribed")
	return p.consume(ctx, pubsub, handler)
}

// PSubscribe is Subscribe for a channel pattern such as pools:pool:*.
func (p *PubSubManager) PSubscribe(ctx context.Context, pattern string, handler storage.UpdateHandler) error {
	pubsub := p.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	p.logger.WithField("pattern", pattern).Info("subscribed")
	return p.consume(ctx, pubsub, handler)
}

func (p *PubSubManager) consume(ctx context.Context, pubsub *redis.PubSub, handler storage.UpdateHandler) error {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var update models.PoolUpdate
			if err := sonnet.Unmarshal([]byte(msg.Payload), &update); err != nil {
				p.logger.WithError(err).WithField("channel", msg.Channel).Warn("unmarshal pool update")
				continue
			}
			handler(&update)
		}
	}
}
