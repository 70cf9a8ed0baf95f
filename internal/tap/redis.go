package tap

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// redisMaxLen caps the stream (approximately) so the tap cannot grow without bound.
const redisMaxLen = 100000

type RedisSink struct {
	cli    *redis.Client
	stream string
}

func NewRedisSink(addr, stream string) *RedisSink {
	cli := redis.NewClient(&redis.Options{Addr: addr})
	return newRedisSinkWithClient(cli, stream)
}

func newRedisSinkWithClient(cli *redis.Client, stream string) *RedisSink {
	return &RedisSink{cli: cli, stream: stream}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Publish(ctx context.Context, r *Record) error {
	return s.cli.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: redisMaxLen,
		Approx: true,
		Values: streamValues(r),
	}).Err()
}

func (s *RedisSink) Close() error { return s.cli.Close() }

func streamValues(r *Record) map[string]any {
	return map[string]any{
		"data":      r.Data,
		"from":      r.From,
		"seq":       strconv.FormatUint(r.Seq, 10),
		"ts":        strconv.FormatInt(r.When.UnixMilli(), 10),
		"delivered": strconv.Itoa(r.Delivered),
	}
}
