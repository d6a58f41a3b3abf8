package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/config"
)

// Redis appends each data point to a Redis stream with XADD, trimming the
// stream to roughly MaxLen entries when set.
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(cfg config.RedisSinkConf) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return newRedisWithClient(client, cfg.Stream, cfg.MaxLen), nil
}

func newRedisWithClient(client *redis.Client, stream string, maxLen int64) *Redis {
	return &Redis{client: client, stream: stream, maxLen: maxLen}
}

func (*Redis) Name() string { return "redis" }

func (s *Redis) WriteDataPoint(ctx context.Context, dp DataPoint) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: streamValues(dp),
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", s.stream, err)
	}
	return nil
}

// streamValues flattens a data point into stream entry fields.
func streamValues(dp DataPoint) map[string]interface{} {
	v := make(map[string]interface{}, 2+len(dp.Indexes)+len(dp.Blobs)+len(dp.Doubles))
	if dp.ID != "" {
		v["id"] = dp.ID
	}
	v["ts"] = strconv.FormatInt(dp.Timestamp, 10)
	for i, s := range dp.Indexes {
		v["index"+strconv.Itoa(i+1)] = s
	}
	for i, s := range dp.Blobs {
		v["blob"+strconv.Itoa(i+1)] = s
	}
	for i, d := range dp.Doubles {
		v["double"+strconv.Itoa(i+1)] = strconv.FormatFloat(d, 'f', -1, 64)
	}
	return v
}

func (s *Redis) Close() error {
	return s.client.Close()
}
