package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier delivers operator alerts. Notify must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// LogNotifier writes alerts to the log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, text string) {
	n.logger.Error("operator alert", zap.String("text", text))
}

// Publisher is the Redis surface used by RedisNotifier.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes alerts on a Redis channel in the background.
type RedisNotifier struct {
	client  Publisher
	channel string
	timeout time.Duration
	logger  *zap.Logger
	pending sync.WaitGroup
}

func NewRedisNotifier(client Publisher, channel string, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{
		client:  client,
		channel: channel,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Notify returns immediately; the publish runs detached from ctx.
func (n *RedisNotifier) Notify(_ context.Context, text string) {
	n.pending.Add(1)
	go func() {
		defer n.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.client.Publish(ctx, n.channel, text).Err(); err != nil {
			n.logger.Warn("alert publish failed", zap.String("channel", n.channel), zap.Error(err))
		}
	}()
}

// Wait blocks until alerts already handed to Notify are published or timed out.
func (n *RedisNotifier) Wait() {
	n.pending.Wait()
}

// Multi fans an alert out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, text string) {
	for _, n := range m {
		n.Notify(ctx, text)
	}
}
