// 包 utils：数据库与 Redis 连接工具
package utils

import (
	"page-counter/internal/config"
	"page-counter/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：按配置打开 Redis 客户端；未启用时返回 nil
func OpenRedis(rc config.RedisConfig) *redis.Client {
	if !rc.Enable {
		return nil
	}
	logger.L().Debug("redis_env", "addr", rc.Addr(), "db", rc.DB)
	return redis.NewClient(&redis.Options{Addr: rc.Addr(), Password: rc.Pass, DB: rc.DB})
}
