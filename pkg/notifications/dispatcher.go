package notifications

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"portfolio_sync/models"
	"portfolio_sync/pkg/redis"
	"portfolio_sync/pkg/telegram"
)

// HistoryLimit 历史上限，超出后淘汰最旧的通知
const HistoryLimit = 100

// ========== 分类规则表 ==========
// 通知类型到渠道/优先级/偏好分类/颜色/动作的静态映射，集中在这里便于单独测试。
// 未登记的类型落入系统渠道、unknown分类、最低优先级。

type Classification struct {
	Channel  string
	Category string
	Priority int
	Color    string
	Actions  []string
}

var typeRules = map[string]Classification{
	models.NotificationTradeClosed:    {models.ChannelTrades, models.CategoryTrades, models.PriorityMedium, models.ColorGreen, []string{"view_history"}},
	models.NotificationTradeOpened:    {models.ChannelTrades, models.CategoryTrades, models.PriorityMedium, models.ColorBlue, []string{"view_position"}},
	models.NotificationOrderFilled:    {models.ChannelTrades, models.CategoryTrades, models.PriorityMedium, models.ColorBlue, []string{"view_orders"}},
	models.NotificationOrderCancelled: {models.ChannelTrades, models.CategoryTrades, models.PriorityLow, models.ColorGray, []string{"view_orders"}},
	models.NotificationBreakEven:      {models.ChannelTrades, models.CategoryBreakEven, models.PriorityMedium, models.ColorBlue, []string{"view_position"}},
	models.NotificationPartialTP:      {models.ChannelTrades, models.CategoryPartialTP, models.PriorityMedium, models.ColorGreen, []string{"view_position"}},
	models.NotificationSignal:         {models.ChannelSignals, models.CategorySignals, models.PriorityMedium, models.ColorBlue, []string{"view_signal"}},
	models.NotificationPriceAlert:     {models.ChannelAlerts, models.CategoryPriceAlerts, models.PriorityHigh, models.ColorOrange, []string{"view_chart"}},
	models.NotificationMarginWarning:  {models.ChannelAlerts, models.CategoryMarginWarning, models.PriorityCritical, models.ColorRed, []string{"view_positions", "close_all"}},
	models.NotificationLiquidation:    {models.ChannelAlerts, models.CategoryMarginWarning, models.PriorityCritical, models.ColorRed, []string{"view_positions", "close_all"}},
	models.NotificationRisk:           {models.ChannelAlerts, models.CategoryMarginWarning, models.PriorityCritical, models.ColorRed, []string{"view_positions", "close_all"}},
	models.NotificationDailyReport:    {models.ChannelSystem, models.CategoryDailyReport, models.PriorityLow, models.ColorGray, []string{"view_report"}},
	models.NotificationSyncError:      {models.ChannelSystem, models.CategorySystem, models.PriorityHigh, models.ColorOrange, []string{"retry_sync"}},
	models.NotificationSystem:         {models.ChannelSystem, models.CategorySystem, models.PriorityLow, models.ColorGray, nil},
}

// 风险类通知无视规则表，强制最高优先级、警报渠道和红色
var riskTypes = map[string]bool{
	models.NotificationMarginWarning: true,
	models.NotificationLiquidation:   true,
	models.NotificationRisk:          true,
}

// Classify 解析通知类型的渠道/分类/优先级/颜色/动作
func Classify(notificationType string) Classification {
	rule, exists := typeRules[notificationType]
	if !exists {
		rule = Classification{models.ChannelSystem, models.CategoryUnknown, models.PriorityLow, models.ColorGray, nil}
	}

	if riskTypes[notificationType] {
		rule.Channel = models.ChannelAlerts
		rule.Priority = models.PriorityCritical
		rule.Color = models.ColorRed
	}
	return rule
}

// resolveColor 平仓通知按盈亏符号着色，其余类型用规则表里的静态颜色
func resolveColor(notificationType string, rule Classification, data map[string]interface{}) string {
	if notificationType != models.NotificationTradeClosed {
		return rule.Color
	}

	pnl, ok := pnlFromData(data)
	if !ok {
		return rule.Color
	}
	if pnl < 0 {
		return models.ColorRed
	}
	return models.ColorGreen
}

func pnlFromData(data map[string]interface{}) (float64, bool) {
	if data == nil {
		return 0, false
	}
	switch v := data["pnl"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// ========== 通知分发器 ==========

// Broadcaster 推送已入库通知的出口 (WebSocket)
type Broadcaster interface {
	BroadcastNotification(notification *models.Notification)
}

// Dispatcher 通知分发器。
// 分类 -> 偏好过滤 -> 去重入库 -> 推送。入库不受偏好影响，只有推送被抑制。
type Dispatcher struct {
	mutex       sync.RWMutex
	history     []*models.Notification // 新的在前
	unreadCount int
	prefs       *models.NotificationPreferences

	broadcaster Broadcaster
}

// NewDispatcher 创建分发器并从Redis恢复历史和偏好
func NewDispatcher(broadcaster Broadcaster) *Dispatcher {
	d := &Dispatcher{
		history:     make([]*models.Notification, 0, HistoryLimit),
		prefs:       &models.NotificationPreferences{Categories: make(map[string]bool)},
		broadcaster: broadcaster,
	}

	if redis.GlobalRedisClient != nil {
		if history, err := redis.GlobalRedisClient.GetNotificationHistory(); err == nil {
			d.history = history
			d.unreadCount = d.recountLocked()
		}
		if prefs, err := redis.GlobalRedisClient.GetNotificationPreferences(); err == nil {
			d.prefs = prefs
		}
	}

	return d
}

// Publish 分类并分发一条通知 (core.Notifier 实现)
func (d *Dispatcher) Publish(notificationType, title, message string, data map[string]interface{}) {
	rule := Classify(notificationType)

	notification := &models.Notification{
		ID:        uuid.New().String(),
		Type:      notificationType,
		Channel:   rule.Channel,
		Category:  rule.Category,
		Priority:  rule.Priority,
		Color:     resolveColor(notificationType, rule, data),
		Title:     title,
		Message:   message,
		Actions:   rule.Actions,
		Data:      data,
		Timestamp: time.Now(),
	}

	d.Dispatch(notification)
}

// Dispatch 处理一条已构造的通知
func (d *Dispatcher) Dispatch(notification *models.Notification) {
	stored := d.store(notification)
	if !stored {
		return // 与最近一条重复，丢弃
	}

	// 偏好只抑制推送，历史照常记录
	if !d.ShouldDeliver(notification) {
		logrus.Debugf("通知分类 %s 已关闭，跳过推送: %s", notification.Category, notification.Title)
		return
	}

	if d.broadcaster != nil {
		d.broadcaster.BroadcastNotification(notification)
	}

	// Telegram未配置或发送失败时只记日志，通知已在历史里
	if telegram.GlobalTelegramClient != nil {
		if err := telegram.GlobalTelegramClient.SendNotification(notification); err != nil {
			logrus.Warnf("Telegram推送失败: %v", err)
		}
	}
}

// ShouldDeliver 偏好过滤，未设置的分类默认推送
func (d *Dispatcher) ShouldDeliver(notification *models.Notification) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.prefs.IsEnabled(notification.Category)
}

// store 去重入库。返回 false 表示与最近一条重复。
func (d *Dispatcher) store(notification *models.Notification) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// 与队首完全相同的通知视为重复 (同类型同内容的连续触发)
	if len(d.history) > 0 {
		head := d.history[0]
		if head.Type == notification.Type && head.Message == notification.Message {
			return false
		}
	}

	d.history = append([]*models.Notification{notification}, d.history...)
	if len(d.history) > HistoryLimit {
		d.history = d.history[:HistoryLimit]
	}

	// 全量重算未读数，避免增量计数漂移
	d.unreadCount = d.recountLocked()

	d.persistLocked(notification)
	return true
}

func (d *Dispatcher) recountLocked() int {
	count := 0
	for _, n := range d.history {
		if !n.Read {
			count++
		}
	}
	return count
}

func (d *Dispatcher) persistLocked(notification *models.Notification) {
	if redis.GlobalRedisClient == nil {
		return
	}
	if err := redis.GlobalRedisClient.PushNotification(notification); err != nil {
		logrus.Errorf("持久化通知失败: %v", err)
	}
}

// ========== 历史查询和已读管理 ==========

// GetHistory 获取全部历史 (新的在前)
func (d *Dispatcher) GetHistory() []*models.Notification {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	history := make([]*models.Notification, len(d.history))
	copy(history, d.history)
	return history
}

// UnreadCount 当前未读数
func (d *Dispatcher) UnreadCount() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.unreadCount
}

// MarkRead 标记单条已读。重复标记和未知ID都是无害的空操作。
func (d *Dispatcher) MarkRead(id string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	changed := false
	for _, n := range d.history {
		if n.ID == id && !n.Read {
			n.Read = true
			changed = true
			break
		}
	}

	if changed {
		d.unreadCount = d.recountLocked()
		d.replaceMirrorLocked()
	}
}

// MarkAllRead 标记全部已读，幂等
func (d *Dispatcher) MarkAllRead() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	changed := false
	for _, n := range d.history {
		if !n.Read {
			n.Read = true
			changed = true
		}
	}

	if changed {
		d.unreadCount = d.recountLocked()
		d.replaceMirrorLocked()
	}
}

// ClearAll 清空历史
func (d *Dispatcher) ClearAll() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.history = d.history[:0]
	d.unreadCount = 0

	if redis.GlobalRedisClient != nil {
		if err := redis.GlobalRedisClient.ClearNotificationHistory(); err != nil {
			logrus.Errorf("清空通知历史失败: %v", err)
		}
	}
}

func (d *Dispatcher) replaceMirrorLocked() {
	if redis.GlobalRedisClient == nil {
		return
	}
	if err := redis.GlobalRedisClient.ReplaceNotificationHistory(d.history); err != nil {
		logrus.Errorf("重写通知历史失败: %v", err)
	}
}

// ========== 偏好管理 ==========

// GetPreferences 获取当前偏好
func (d *Dispatcher) GetPreferences() *models.NotificationPreferences {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	prefs := &models.NotificationPreferences{
		Categories: make(map[string]bool, len(d.prefs.Categories)),
	}
	for k, v := range d.prefs.Categories {
		prefs.Categories[k] = v
	}
	return prefs
}

// SetPreference 设置分类开关并持久化
func (d *Dispatcher) SetPreference(category string, enabled bool) {
	d.mutex.Lock()
	if d.prefs.Categories == nil {
		d.prefs.Categories = make(map[string]bool)
	}
	d.prefs.Categories[category] = enabled
	d.mutex.Unlock()

	if redis.GlobalRedisClient != nil {
		if err := redis.GlobalRedisClient.SetNotificationPreference(category, enabled); err != nil {
			logrus.Errorf("持久化通知偏好失败: %v", err)
		}
	}
}
