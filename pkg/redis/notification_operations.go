package redis

import (
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"portfolio_sync/models"
)

// 历史镜像的最大长度，与内存历史保持一致
const notificationHistoryLimit = 100

// PushNotification 把通知插入历史镜像头部并截断到上限
func (c *Client) PushNotification(notification *models.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	pipe := c.rdb.Pipeline()
	pipe.LPush(c.ctx, KeyNotificationHistory, data)
	pipe.LTrim(c.ctx, KeyNotificationHistory, 0, notificationHistoryLimit-1)
	_, err = pipe.Exec(c.ctx)
	return err
}

// GetNotificationHistory 获取历史镜像 (新的在前)
func (c *Client) GetNotificationHistory() ([]*models.Notification, error) {
	items, err := c.rdb.LRange(c.ctx, KeyNotificationHistory, 0, notificationHistoryLimit-1).Result()
	if err != nil {
		return nil, err
	}

	notifications := make([]*models.Notification, 0, len(items))
	for i := range items {
		var n models.Notification
		if err := json.Unmarshal([]byte(items[i]), &n); err != nil {
			logrus.Errorf("解析通知历史失败: %v", err)
			continue
		}
		notifications = append(notifications, &n)
	}
	return notifications, nil
}

// ReplaceNotificationHistory 整体重写历史镜像 (已读状态变化后)
func (c *Client) ReplaceNotificationHistory(notifications []*models.Notification) error {
	pipe := c.rdb.Pipeline()
	pipe.Del(c.ctx, KeyNotificationHistory)

	// LPush 逆序写入，保持新的在前
	for i := len(notifications) - 1; i >= 0; i-- {
		data, err := json.Marshal(notifications[i])
		if err != nil {
			return err
		}
		pipe.LPush(c.ctx, KeyNotificationHistory, data)
	}

	_, err := pipe.Exec(c.ctx)
	return err
}

// ClearNotificationHistory 清空历史镜像
func (c *Client) ClearNotificationHistory() error {
	return c.rdb.Del(c.ctx, KeyNotificationHistory).Err()
}

// SetNotificationPreference 设置分类开关
func (c *Client) SetNotificationPreference(category string, enabled bool) error {
	return c.rdb.HSet(c.ctx, KeyNotificationPrefs, category, enabled).Err()
}

// GetNotificationPreferences 获取全部分类开关
func (c *Client) GetNotificationPreferences() (*models.NotificationPreferences, error) {
	values, err := c.rdb.HGetAll(c.ctx, KeyNotificationPrefs).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	prefs := &models.NotificationPreferences{
		Categories: make(map[string]bool, len(values)),
	}
	for category, value := range values {
		prefs.Categories[category] = value == "1" || value == "true"
	}
	return prefs, nil
}
