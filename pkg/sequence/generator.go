package sequence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"gymgate/pkg/rediskey"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

// Generator hands out human-readable codes printed on member cards and
// receipts. Codes are monotonically increasing and never reused.
type Generator interface {
	NextMemberCode(ctx context.Context) (string, error)
	NextReceiptCode(ctx context.Context) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
	}
}

func (g *RedisGenerator) NextMemberCode(ctx context.Context) (string, error) {
	key := rediskey.NamespaceKey(rediskey.SequencePrefix, "member")
	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("M-%05d", seq), nil
}

func (g *RedisGenerator) NextReceiptCode(ctx context.Context) (string, error) {
	key := rediskey.NamespaceKey(rediskey.SequencePrefix, "receipt")
	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("R-%07d", seq), nil
}
