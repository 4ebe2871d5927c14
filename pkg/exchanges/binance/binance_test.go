package binance

import (
	"testing"
	"time"

	"portfolio_sync/pkg/exchanges/types"
)

// ========== 周期换算测试 ==========

func TestPeriodEndMilliInclusive(t *testing.T) {
	got := periodEndMilli("2026-08-15")

	// 结束日期整天计入，截止点是次日零点
	expected := time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC).UnixMilli()
	if got != expected {
		t.Errorf("自定义截止时间错误: 期望 %d, 实际 %d", expected, got)
	}

	if got := periodEndMilli(""); got != 0 {
		t.Errorf("空结束日期应返回0: 实际 %d", got)
	}
}

// ========== 盈亏分桶测试 ==========

func TestBucketIncomeChronology(t *testing.T) {
	day1 := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)

	// 流水乱序到达
	list := []map[string]interface{}{
		{"symbol": "ETHUSDT", "time": day2.Add(5 * time.Hour).UnixMilli(), "income": 8.0},
		{"symbol": "BTCUSDT", "time": day1.Add(20 * time.Hour).UnixMilli(), "income": -4.0},
		{"symbol": "BTCUSDT", "time": day1.Add(1 * time.Hour).UnixMilli(), "income": 3.0},
	}

	candles := bucketIncome(list, types.Period1W)
	if len(candles) != 2 {
		t.Fatalf("分桶数量错误: 期望 2, 实际 %d", len(candles))
	}

	first := candles[0].(map[string]interface{})
	second := candles[1].(map[string]interface{})

	// 输出按天升序
	if first["timestamp"].(int64) != day1.UnixMilli() || second["timestamp"].(int64) != day2.UnixMilli() {
		t.Errorf("分桶顺序错误: %v, %v", first["timestamp"], second["timestamp"])
	}

	// open是当天第一笔，close是当天最后一笔，与流水顺序无关
	if first["open"].(float64) != 3.0 {
		t.Errorf("开盘值错误: 期望 3, 实际 %v", first["open"])
	}
	if first["close"].(float64) != -4.0 {
		t.Errorf("收盘值错误: 期望 -4, 实际 %v", first["close"])
	}
}
