package notifications

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"portfolio_sync/models"
)

// captureBroadcaster 记录实际推送出去的通知
type captureBroadcaster struct {
	delivered []*models.Notification
}

func (c *captureBroadcaster) BroadcastNotification(n *models.Notification) {
	c.delivered = append(c.delivered, n)
}

// ========== 分类规则测试 ==========

func TestClassifyKnownTypes(t *testing.T) {
	rule := Classify(models.NotificationTradeClosed)
	if rule.Channel != models.ChannelTrades || rule.Priority != models.PriorityMedium {
		t.Errorf("trade_closed 分类错误: %+v", rule)
	}

	rule = Classify(models.NotificationSignal)
	if rule.Channel != models.ChannelSignals {
		t.Errorf("signal 分类错误: %+v", rule)
	}
}

func TestClassifyRiskAlwaysCritical(t *testing.T) {
	// 风险类通知无视规则表，强制警报渠道和最高优先级
	for _, typ := range []string{
		models.NotificationMarginWarning,
		models.NotificationLiquidation,
		models.NotificationRisk,
	} {
		rule := Classify(typ)
		if rule.Channel != models.ChannelAlerts {
			t.Errorf("%s 渠道错误: 期望 alerts, 实际 %s", typ, rule.Channel)
		}
		if rule.Priority != models.PriorityCritical {
			t.Errorf("%s 优先级错误: 期望 %d, 实际 %d", typ, models.PriorityCritical, rule.Priority)
		}
	}
}

func TestClassifyColors(t *testing.T) {
	cases := map[string]string{
		models.NotificationTradeOpened:   models.ColorBlue,
		models.NotificationPriceAlert:    models.ColorOrange,
		models.NotificationMarginWarning: models.ColorRed,
		models.NotificationLiquidation:   models.ColorRed,
		models.NotificationDailyReport:   models.ColorGray,
		models.NotificationSyncError:     models.ColorOrange,
	}

	for typ, expected := range cases {
		if got := Classify(typ).Color; got != expected {
			t.Errorf("%s 颜色错误: 期望 %s, 实际 %s", typ, expected, got)
		}
	}
}

func TestClassifyActions(t *testing.T) {
	rule := Classify(models.NotificationRisk)
	if len(rule.Actions) != 2 || rule.Actions[0] != "view_positions" || rule.Actions[1] != "close_all" {
		t.Errorf("风险类通知动作错误: %v", rule.Actions)
	}

	rule = Classify(models.NotificationSignal)
	if len(rule.Actions) != 1 || rule.Actions[0] != "view_signal" {
		t.Errorf("signal 动作错误: %v", rule.Actions)
	}
}

func TestClassifyUnknownTypeFallsBack(t *testing.T) {
	rule := Classify("some_future_type")
	if rule.Channel != models.ChannelSystem || rule.Priority != models.PriorityLow {
		t.Errorf("未登记类型应落入系统渠道最低优先级: %+v", rule)
	}
	// 未登记类型用独立的 unknown 分类，关闭系统分类不会把它们一并抑制
	if rule.Category != models.CategoryUnknown {
		t.Errorf("未登记类型分类错误: 期望 %s, 实际 %s", models.CategoryUnknown, rule.Category)
	}
	if rule.Color != models.ColorGray {
		t.Errorf("未登记类型颜色错误: 期望 %s, 实际 %s", models.ColorGray, rule.Color)
	}
}

func TestUnknownTypeNotSuppressedBySystemPreference(t *testing.T) {
	broadcaster := &captureBroadcaster{}
	d := NewDispatcher(broadcaster)

	d.SetPreference(models.CategorySystem, false)
	d.Publish("some_future_type", "未知事件", "上游新增的事件类型", nil)

	if len(broadcaster.delivered) != 1 {
		t.Fatalf("关闭系统分类不应抑制未登记类型: 实际推送 %d 条", len(broadcaster.delivered))
	}
}

// ========== 历史管理测试 ==========

func TestHistoryBoundedWithOldestEviction(t *testing.T) {
	d := NewDispatcher(nil)

	for i := 0; i < HistoryLimit+5; i++ {
		d.Publish(models.NotificationSystem, "系统消息", fmt.Sprintf("消息 %d", i), nil)
	}

	history := d.GetHistory()
	if len(history) != HistoryLimit {
		t.Fatalf("历史长度错误: 期望 %d, 实际 %d", HistoryLimit, len(history))
	}

	// 新的在前，最旧的5条被淘汰
	if history[0].Message != fmt.Sprintf("消息 %d", HistoryLimit+4) {
		t.Errorf("队首应是最新通知: 实际 %s", history[0].Message)
	}
	if history[len(history)-1].Message != "消息 5" {
		t.Errorf("最旧的通知未被淘汰: 队尾 %s", history[len(history)-1].Message)
	}
}

func TestDuplicateHeadDropped(t *testing.T) {
	d := NewDispatcher(nil)

	d.Publish(models.NotificationTradeClosed, "平仓", "BTCUSDT long 平仓指令已提交", nil)
	d.Publish(models.NotificationTradeClosed, "平仓", "BTCUSDT long 平仓指令已提交", nil)

	if got := len(d.GetHistory()); got != 1 {
		t.Errorf("连续重复通知应被丢弃: 期望 1, 实际 %d", got)
	}

	// 内容不同不算重复
	d.Publish(models.NotificationTradeClosed, "平仓", "ETHUSDT short 平仓指令已提交", nil)
	if got := len(d.GetHistory()); got != 2 {
		t.Errorf("不同内容的通知不应被去重: 期望 2, 实际 %d", got)
	}
}

func TestUnreadCountRecounted(t *testing.T) {
	d := NewDispatcher(nil)

	d.Publish(models.NotificationSystem, "a", "消息1", nil)
	d.Publish(models.NotificationSystem, "b", "消息2", nil)
	d.Publish(models.NotificationSystem, "c", "消息3", nil)

	if d.UnreadCount() != 3 {
		t.Fatalf("未读数错误: 期望 3, 实际 %d", d.UnreadCount())
	}

	target := d.GetHistory()[1]
	d.MarkRead(target.ID)
	if d.UnreadCount() != 2 {
		t.Errorf("标记已读后未读数错误: 期望 2, 实际 %d", d.UnreadCount())
	}

	// 重复标记和未知ID都是无害的空操作
	d.MarkRead(target.ID)
	d.MarkRead("no-such-id")
	if d.UnreadCount() != 2 {
		t.Errorf("幂等标记不应改变未读数: 实际 %d", d.UnreadCount())
	}
}

func TestMarkAllReadIdempotent(t *testing.T) {
	d := NewDispatcher(nil)

	d.Publish(models.NotificationSystem, "a", "消息1", nil)
	d.Publish(models.NotificationSystem, "b", "消息2", nil)

	d.MarkAllRead()
	if d.UnreadCount() != 0 {
		t.Fatalf("全部已读后未读数应为0: 实际 %d", d.UnreadCount())
	}

	d.MarkAllRead()
	if d.UnreadCount() != 0 {
		t.Errorf("重复全部已读不应出错: 实际 %d", d.UnreadCount())
	}

	// 新通知重新计入未读
	d.Publish(models.NotificationSystem, "c", "消息3", nil)
	if d.UnreadCount() != 1 {
		t.Errorf("新通知应计入未读: 实际 %d", d.UnreadCount())
	}
}

func TestClearAll(t *testing.T) {
	d := NewDispatcher(nil)

	d.Publish(models.NotificationSystem, "a", "消息1", nil)
	d.ClearAll()

	if len(d.GetHistory()) != 0 || d.UnreadCount() != 0 {
		t.Error("清空后历史和未读数应归零")
	}
}

// ========== 偏好过滤测试 ==========

func TestPreferenceSuppressesDeliveryNotHistory(t *testing.T) {
	broadcaster := &captureBroadcaster{}
	d := NewDispatcher(broadcaster)

	d.SetPreference(models.CategoryTrades, false)

	d.Publish(models.NotificationTradeClosed, "平仓", "BTCUSDT 已平仓", nil)
	d.Publish(models.NotificationSystem, "系统", "服务已启动", nil)

	// 关闭的分类不推送，但历史照常记录、照常计未读
	if len(broadcaster.delivered) != 1 {
		t.Fatalf("推送数量错误: 期望 1, 实际 %d", len(broadcaster.delivered))
	}
	if broadcaster.delivered[0].Type != models.NotificationSystem {
		t.Errorf("被推送的应是未关闭分类: 实际 %s", broadcaster.delivered[0].Type)
	}
	if len(d.GetHistory()) != 2 {
		t.Errorf("被抑制的通知仍应入库: 期望 2, 实际 %d", len(d.GetHistory()))
	}
	if d.UnreadCount() != 2 {
		t.Errorf("被抑制的通知仍应计入未读: 实际 %d", d.UnreadCount())
	}
}

func TestPreferenceDefaultsToEnabled(t *testing.T) {
	broadcaster := &captureBroadcaster{}
	d := NewDispatcher(broadcaster)

	// 未设置过的分类默认开启
	d.Publish(models.NotificationMarginWarning, "保证金告警", "保证金率不足", nil)
	if len(broadcaster.delivered) != 1 {
		t.Fatalf("默认开启的分类应推送: 实际 %d", len(broadcaster.delivered))
	}

	// 重新开启后恢复推送
	d.SetPreference(models.CategoryMarginWarning, false)
	d.Publish(models.NotificationMarginWarning, "保证金告警", "保证金率持续恶化", nil)
	if len(broadcaster.delivered) != 1 {
		t.Errorf("关闭后不应推送: 实际 %d", len(broadcaster.delivered))
	}

	d.SetPreference(models.CategoryMarginWarning, true)
	d.Publish(models.NotificationMarginWarning, "保证金告警", "保证金率已恢复", nil)
	if len(broadcaster.delivered) != 2 {
		t.Errorf("重新开启后应恢复推送: 实际 %d", len(broadcaster.delivered))
	}
}

func TestPublishedNotificationCarriesClassification(t *testing.T) {
	broadcaster := &captureBroadcaster{}
	d := NewDispatcher(broadcaster)

	d.Publish(models.NotificationMarginWarning, "保证金告警", "保证金率不足", map[string]interface{}{"ratio": 0.05})

	n := broadcaster.delivered[0]
	if n.ID == "" {
		t.Error("通知应分配唯一ID")
	}
	if n.Channel != models.ChannelAlerts || n.Priority != models.PriorityCritical {
		t.Errorf("通知应携带分类结果: channel=%s priority=%d", n.Channel, n.Priority)
	}
	if !n.IsCritical() {
		t.Error("风险类通知应是最高优先级")
	}
	if n.Read {
		t.Error("新通知应是未读状态")
	}
	if n.Color != models.ColorRed {
		t.Errorf("风险类通知颜色错误: 期望 %s, 实际 %s", models.ColorRed, n.Color)
	}
	if len(n.Actions) == 0 {
		t.Error("风险类通知应携带可用动作")
	}
}

func TestTradeClosedColorFollowsPnlSign(t *testing.T) {
	broadcaster := &captureBroadcaster{}
	d := NewDispatcher(broadcaster)

	d.Publish(models.NotificationTradeClosed, "平仓", "BTCUSDT 盈利平仓", map[string]interface{}{"pnl": 1250.5})
	d.Publish(models.NotificationTradeClosed, "平仓", "ETHUSDT 亏损平仓", map[string]interface{}{"pnl": -320.0})
	d.Publish(models.NotificationTradeClosed, "平仓", "SOLUSDT 平仓", nil)

	if len(broadcaster.delivered) != 3 {
		t.Fatalf("推送数量错误: 实际 %d", len(broadcaster.delivered))
	}
	if got := broadcaster.delivered[0].Color; got != models.ColorGreen {
		t.Errorf("盈利平仓颜色错误: 期望 green, 实际 %s", got)
	}
	if got := broadcaster.delivered[1].Color; got != models.ColorRed {
		t.Errorf("亏损平仓颜色错误: 期望 red, 实际 %s", got)
	}
	// 盈亏缺失时退回规则表的静态颜色
	if got := broadcaster.delivered[2].Color; got != models.ColorGreen {
		t.Errorf("盈亏缺失时颜色错误: 期望 green, 实际 %s", got)
	}

	// 颜色是对外契约的一部分，序列化后字段必须存在
	payload, err := json.Marshal(broadcaster.delivered[0])
	if err != nil {
		t.Fatalf("序列化通知失败: %v", err)
	}
	if !strings.Contains(string(payload), `"color":"green"`) {
		t.Errorf("序列化结果缺少 color 字段: %s", payload)
	}
}
