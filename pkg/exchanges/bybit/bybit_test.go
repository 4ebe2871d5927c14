package bybit

import (
	"testing"
	"time"

	"portfolio_sync/pkg/exchanges/types"
)

// ========== 周期换算测试 ==========

func TestPeriodStartMilliCustomWins(t *testing.T) {
	got := periodStartMilli(types.PeriodCustom, "2026-08-01")

	expected := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if got != expected {
		t.Errorf("自定义起始时间错误: 期望 %d, 实际 %d", expected, got)
	}
}

func TestPeriodEndMilliInclusive(t *testing.T) {
	got := periodEndMilli("2026-08-15")

	// 结束日期整天计入，截止点是次日零点
	expected := time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC).UnixMilli()
	if got != expected {
		t.Errorf("自定义截止时间错误: 期望 %d, 实际 %d", expected, got)
	}
}

func TestPeriodEndMilliEmptyOrBad(t *testing.T) {
	if got := periodEndMilli(""); got != 0 {
		t.Errorf("空结束日期应返回0: 实际 %d", got)
	}
	if got := periodEndMilli("not-a-date"); got != 0 {
		t.Errorf("非法结束日期应返回0: 实际 %d", got)
	}
}

// ========== 盈亏分桶测试 ==========

func TestBucketClosedPnlChronology(t *testing.T) {
	day1 := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)

	// 接口按最新在前返回
	list := []map[string]interface{}{
		{"symbol": "BTCUSDT", "updatedTime": day2.Add(3 * time.Hour).UnixMilli(), "closedPnl": 5.0},
		{"symbol": "BTCUSDT", "updatedTime": day1.Add(14 * time.Hour).UnixMilli(), "closedPnl": -3.0},
		{"symbol": "ETHUSDT", "updatedTime": day1.Add(2 * time.Hour).UnixMilli(), "closedPnl": 2.0},
	}

	candles := bucketClosedPnl(list, types.Period1W)
	if len(candles) != 2 {
		t.Fatalf("分桶数量错误: 期望 2, 实际 %d", len(candles))
	}

	first, ok := candles[0].(map[string]interface{})
	if !ok {
		t.Fatal("分桶结果类型错误")
	}
	second := candles[1].(map[string]interface{})

	// 输出按天升序
	if first["timestamp"].(int64) != day1.UnixMilli() || second["timestamp"].(int64) != day2.UnixMilli() {
		t.Errorf("分桶顺序错误: %v, %v", first["timestamp"], second["timestamp"])
	}

	// open是当天第一笔，close是当天最后一笔，与接口返回顺序无关
	if first["open"].(float64) != 2.0 {
		t.Errorf("开盘值错误: 期望 2, 实际 %v", first["open"])
	}
	if first["close"].(float64) != -3.0 {
		t.Errorf("收盘值错误: 期望 -3, 实际 %v", first["close"])
	}
	if first["trade_count"].(int) != 2 || first["win_count"].(int) != 1 {
		t.Errorf("笔数统计错误: trades=%v wins=%v", first["trade_count"], first["win_count"])
	}
}

func TestBucketClosedPnlKeepsInputOrder(t *testing.T) {
	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	list := []map[string]interface{}{
		{"symbol": "BTCUSDT", "updatedTime": day.Add(2 * time.Hour).UnixMilli(), "closedPnl": 1.0},
		{"symbol": "BTCUSDT", "updatedTime": day.Add(1 * time.Hour).UnixMilli(), "closedPnl": -1.0},
	}

	bucketClosedPnl(list, types.Period1D)

	// 排序在副本上进行，调用方的切片保持原样
	if list[0]["closedPnl"].(float64) != 1.0 {
		t.Error("分桶不应改动调用方的切片顺序")
	}
}
