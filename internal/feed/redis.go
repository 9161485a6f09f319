// 包 feed：把已提交的访问记录追加到 Redis Stream，供下游异步消费
// 约束：只追加，不参与计数；计数始终以数据库为准
package feed

import (
	"context"
	"strconv"

	"page-counter/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisStream：XADD 发布器；maxLen > 0 时按近似长度裁剪
type RedisStream struct {
	rc     *redis.Client
	stream string
	maxLen int64
}

func NewRedisStream(rc *redis.Client, stream string, maxLen int64) *RedisStream {
	return &RedisStream{rc: rc, stream: stream, maxLen: maxLen}
}

func (s *RedisStream) Publish(ctx context.Context, rec model.AccessRecord) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":      strconv.FormatInt(rec.ID, 10),
			"url":     rec.URL,
			"site":    rec.Site,
			"ip_addr": rec.IPAddr,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.rc.XAdd(ctx, args).Err()
}
