package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"portfolio_sync/pkg/config"
)

type Client struct {
	rdb *redis.Client
	ctx context.Context
}

var GlobalRedisClient *Client

// InitRedis 初始化Redis客户端
func InitRedis() error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.GlobalConfig.RedisHost, config.GlobalConfig.RedisPort),
		Password: config.GlobalConfig.RedisPassword,
		DB:       config.GlobalConfig.RedisDB,
	})

	ctx := context.Background()

	// 测试连接
	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis连接失败: %v", err)
	}

	GlobalRedisClient = &Client{
		rdb: rdb,
		ctx: ctx,
	}

	logrus.Info("Redis连接成功")
	return nil
}

// Redis键名常量
const (
	KeyNotificationHistory = "notifications:history"     // 通知历史 (list, 新的在前)
	KeyNotificationPrefs   = "notifications:preferences" // 分类开关 (hash)
	KeyAccountContext      = "account:context"           // 上次选中的账户上下文
	KeySnapshotCache       = "cache:snapshot"            // 最近一次提交的快照
)

// Get 基础Redis操作方法
func (c *Client) Get(key string) *redis.StringCmd {
	return c.rdb.Get(c.ctx, key)
}

func (c *Client) Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return c.rdb.Set(c.ctx, key, value, expiration)
}

func (c *Client) Del(key string) *redis.IntCmd {
	return c.rdb.Del(c.ctx, key)
}

func (c *Client) Ping() error {
	return c.rdb.Ping(c.ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
