package redis

import (
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SaveAccountContext 持久化当前账户上下文，重启后恢复
func (c *Client) SaveAccountContext(snapshot interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.rdb.Set(c.ctx, KeyAccountContext, data, 0).Err()
}

// LoadAccountContext 读取持久化的账户上下文，不存在时返回 false
func (c *Client) LoadAccountContext(target interface{}) (bool, error) {
	data, err := c.rdb.Get(c.ctx, KeyAccountContext).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return true, json.Unmarshal([]byte(data), target)
}

// CacheSnapshot 缓存最近提交的快照，供只读消费方在重启后立即展示
func (c *Client) CacheSnapshot(snapshot interface{}, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.rdb.Set(c.ctx, KeySnapshotCache, data, ttl).Err()
}

// GetCachedSnapshot 读取缓存的快照
func (c *Client) GetCachedSnapshot(target interface{}) (bool, error) {
	data, err := c.rdb.Get(c.ctx, KeySnapshotCache).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return true, json.Unmarshal([]byte(data), target)
}
