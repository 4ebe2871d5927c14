package models

import "time"

// ========== 通知渠道 ==========

const (
	ChannelTrades  = "trades"  // 成交和持仓变化
	ChannelSignals = "signals" // 策略信号
	ChannelAlerts  = "alerts"  // 风险警报
	ChannelSystem  = "system"  // 系统消息
)

// ========== 通知优先级 ==========

const (
	PriorityLow      = 1
	PriorityMedium   = 2
	PriorityHigh     = 3
	PriorityCritical = 4 // 风险类通知强制使用
)

// ========== 通知类型 ==========

const (
	NotificationTradeClosed    = "trade_closed"
	NotificationTradeOpened    = "trade_opened"
	NotificationOrderFilled    = "order_filled"
	NotificationOrderCancelled = "order_cancelled"
	NotificationBreakEven      = "break_even"
	NotificationPartialTP      = "partial_tp"
	NotificationSignal         = "signal"
	NotificationPriceAlert     = "price_alert"
	NotificationMarginWarning  = "margin_warning"
	NotificationLiquidation    = "liquidation_warning"
	NotificationRisk           = "risk"
	NotificationDailyReport    = "daily_report"
	NotificationSyncError      = "sync_error"
	NotificationSystem         = "system"
)

// ========== 偏好分类 ==========
// 偏好开关的粒度比渠道细，按业务分类独立开关。
// 未登记的通知类型落入 unknown 分类，不和真正的系统通知共用开关。

const (
	CategoryTrades        = "trades"
	CategorySignals       = "signals"
	CategoryPriceAlerts   = "price-alerts"
	CategoryDailyReport   = "daily-report"
	CategoryBreakEven     = "break-even"
	CategoryPartialTP     = "partial-tp"
	CategoryMarginWarning = "margin-warning"
	CategorySystem        = "system"
	CategoryUnknown       = "unknown"
)

// ========== 展示颜色 ==========

const (
	ColorGreen  = "green"
	ColorRed    = "red"
	ColorBlue   = "blue"
	ColorOrange = "orange"
	ColorGray   = "gray"
)

// Notification 单条通知
type Notification struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Channel   string                 `json:"channel"`
	Category  string                 `json:"category"`
	Priority  int                    `json:"priority"`
	Color     string                 `json:"color"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Actions   []string               `json:"actions,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Read      bool                   `json:"read"`
}

// IsCritical 是否最高优先级
func (n *Notification) IsCritical() bool {
	return n.Priority >= PriorityCritical
}

// NotificationPreferences 分类开关，缺失的分类视为开启 (opt-out 模型)
type NotificationPreferences struct {
	Categories map[string]bool `json:"categories"`
}

// IsEnabled 分类是否开启，未设置时默认开启
func (p *NotificationPreferences) IsEnabled(category string) bool {
	if p == nil || p.Categories == nil {
		return true
	}
	enabled, exists := p.Categories[category]
	if !exists {
		return true
	}
	return enabled
}
