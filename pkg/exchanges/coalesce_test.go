package exchanges_test

import (
	"testing"

	"portfolio_sync/pkg/exchanges"
	"portfolio_sync/pkg/exchanges/types"
)

// ========== 安全提取测试 ==========

func TestSafeFloatStringCoercion(t *testing.T) {
	raw := map[string]interface{}{"price": "123.45"}

	got := exchanges.SafeFloat(raw, []string{"price"}, 0)
	if got != 123.45 {
		t.Errorf("数值字符串强制转换错误: 期望 123.45, 实际 %v", got)
	}
}

func TestSafeFloatKeyPriority(t *testing.T) {
	// 两个候选键都存在时取优先级高的
	raw := map[string]interface{}{
		"unrealized_pnl": 100.0,
		"pnl":            200.0,
	}

	got := exchanges.SafeFloat(raw, []string{"unrealized_pnl", "pnl"}, 0)
	if got != 100.0 {
		t.Errorf("候选键优先级错误: 期望 100, 实际 %v", got)
	}

	// 主键缺失时取备选键的强制转换值
	raw = map[string]interface{}{"pnl": "200.5"}
	got = exchanges.SafeFloat(raw, []string{"unrealized_pnl", "pnl"}, 0)
	if got != 200.5 {
		t.Errorf("备选键取值错误: 期望 200.5, 实际 %v", got)
	}
}

func TestSafeFloatBadTypeFallsThrough(t *testing.T) {
	// 类型无法转换的键视为缺失，继续尝试下一候选键
	raw := map[string]interface{}{
		"take_profit": "not-a-number",
		"tp_price":    98000.0,
	}

	got := exchanges.SafeFloat(raw, []string{"take_profit", "tp_price"}, 0)
	if got != 98000.0 {
		t.Errorf("坏类型键未跳过: 期望 98000, 实际 %v", got)
	}
}

func TestSafeIntegerStringLeverage(t *testing.T) {
	raw := map[string]interface{}{"leverage": "25"}

	got := exchanges.SafeInteger(raw, []string{"leverage"}, types.DefaultLeverage)
	if got != 25 {
		t.Errorf("杠杆字符串解析错误: 期望 25, 实际 %d", got)
	}
}

func TestNormalizeSide(t *testing.T) {
	cases := map[string]string{
		"Buy":   types.PositionSideLong,
		"buy":   types.PositionSideLong,
		"LONG":  types.PositionSideLong,
		"Sell":  types.PositionSideShort,
		"short": types.PositionSideShort,
	}

	for input, expected := range cases {
		if got := exchanges.NormalizeSide(input); got != expected {
			t.Errorf("方向归一化错误 %q: 期望 %s, 实际 %s", input, expected, got)
		}
	}
}

// ========== 持仓解析测试 ==========

func TestParsePositionAlternateFields(t *testing.T) {
	raw := map[string]interface{}{
		"symbol":      "BTCUSDT",
		"side":        "Buy",
		"pnl":         1250.5,
		"take_profit": 100000.0,
	}

	p, err := exchanges.ParsePosition(raw, types.ExchangeBybit, types.AccountTypeDemo)
	if err != nil {
		t.Fatalf("解析持仓失败: %v", err)
	}

	if p.Side != types.PositionSideLong {
		t.Errorf("方向错误: 期望 long, 实际 %s", p.Side)
	}
	if p.UnrealizedPnl != 1250.5 {
		t.Errorf("未实现盈亏错误: 期望 1250.5, 实际 %v", p.UnrealizedPnl)
	}
	if p.TakeProfit != 100000.0 {
		t.Errorf("止盈价错误: 期望 100000, 实际 %v", p.TakeProfit)
	}
}

func TestParsePositionLeverageDefaults(t *testing.T) {
	// 杠杆缺失时用平台默认值
	raw := map[string]interface{}{"symbol": "ETHUSDT", "side": "Sell"}

	p, err := exchanges.ParsePosition(raw, types.ExchangeBybit, types.AccountTypeDemo)
	if err != nil {
		t.Fatalf("解析持仓失败: %v", err)
	}
	if p.Leverage != types.DefaultLeverage {
		t.Errorf("默认杠杆错误: 期望 %d, 实际 %d", types.DefaultLeverage, p.Leverage)
	}

	// 非法杠杆值同样回退到默认值
	raw["leverage"] = "0"
	p, _ = exchanges.ParsePosition(raw, types.ExchangeBybit, types.AccountTypeDemo)
	if p.Leverage != types.DefaultLeverage {
		t.Errorf("非法杠杆未回退: 期望 %d, 实际 %d", types.DefaultLeverage, p.Leverage)
	}
}

func TestParsePositionMarginDerived(t *testing.T) {
	// 保证金缺失时按 名义价值/杠杆 推导
	raw := map[string]interface{}{
		"symbol":     "BTCUSDT",
		"side":       "Buy",
		"size":       2.0,
		"mark_price": 50000.0,
		"leverage":   10,
	}

	p, err := exchanges.ParsePosition(raw, types.ExchangeBybit, types.AccountTypeDemo)
	if err != nil {
		t.Fatalf("解析持仓失败: %v", err)
	}

	expected := 2.0 * 50000.0 / 10.0
	if p.Margin != expected {
		t.Errorf("推导保证金错误: 期望 %v, 实际 %v", expected, p.Margin)
	}
}

func TestParsePositionMissingSymbol(t *testing.T) {
	raw := map[string]interface{}{"side": "Buy", "pnl": 10.0}

	if _, err := exchanges.ParsePosition(raw, types.ExchangeBybit, types.AccountTypeDemo); err == nil {
		t.Error("缺少symbol的记录应该返回错误")
	}
}

func TestParsePositionsSkipsBadRecords(t *testing.T) {
	rawList := []map[string]interface{}{
		{"symbol": "BTCUSDT", "side": "Buy", "size": 1.0},
		{"side": "Sell"}, // 缺symbol，应被跳过
		{"symbol": "ETHUSDT", "side": "Sell", "size": 2.0},
	}

	positions := exchanges.ParsePositions(rawList, types.ExchangeBybit, types.AccountTypeDemo)
	if len(positions) != 2 {
		t.Fatalf("坏记录处理错误: 期望 2 条, 实际 %d 条", len(positions))
	}
	if positions[0].Symbol != "BTCUSDT" || positions[1].Symbol != "ETHUSDT" {
		t.Error("批次中其余记录应正常提交")
	}
}

// ========== 余额解析测试 ==========

func TestParseBalanceDerivedMargin(t *testing.T) {
	raw := map[string]interface{}{
		"equity":    1000.0,
		"available": 400.0,
	}

	b := exchanges.ParseBalance(raw)
	if b.PositionMargin != 600.0 {
		t.Errorf("推导仓位保证金错误: 期望 600, 实际 %v", b.PositionMargin)
	}
}

func TestParseBalanceExplicitMarginWins(t *testing.T) {
	raw := map[string]interface{}{
		"equity":          1000.0,
		"available":       400.0,
		"position_margin": 500.0,
	}

	b := exchanges.ParseBalance(raw)
	if b.PositionMargin != 500.0 {
		t.Errorf("显式保证金应优先: 期望 500, 实际 %v", b.PositionMargin)
	}
}

func TestParseBalanceMarginNeverNegative(t *testing.T) {
	// 可用大于权益时推导值钳制为0
	raw := map[string]interface{}{
		"equity":    400.0,
		"available": 1000.0,
	}

	b := exchanges.ParseBalance(raw)
	if b.PositionMargin != 0 {
		t.Errorf("推导保证金不应为负: 实际 %v", b.PositionMargin)
	}
}

// ========== 订单解析测试 ==========

func TestParseOrderSyntheticID(t *testing.T) {
	raw := map[string]interface{}{
		"symbol": "BTCUSDT",
		"side":   "BUY",
	}

	o, err := exchanges.ParseOrder(raw)
	if err != nil {
		t.Fatalf("解析订单失败: %v", err)
	}

	if o.OrderID != "unknown_BTCUSDT_BUY" {
		t.Errorf("合成订单ID错误: 实际 %s", o.OrderID)
	}
	if o.HasRealID() {
		t.Error("合成ID不应被当作真实ID")
	}
	if !types.IsSyntheticOrderID(o.OrderID) {
		t.Error("合成ID应被识别")
	}
}

func TestParseOrderIDPriority(t *testing.T) {
	// 大整数ID以数值出现时不能变成科学计数法
	raw := map[string]interface{}{
		"symbol":  "BTCUSDT",
		"side":    "SELL",
		"orderId": 1234567890123456.0,
	}

	o, err := exchanges.ParseOrder(raw)
	if err != nil {
		t.Fatalf("解析订单失败: %v", err)
	}
	if o.OrderID != "1234567890123456" {
		t.Errorf("订单ID格式错误: 实际 %s", o.OrderID)
	}
	if !o.HasRealID() {
		t.Error("真实ID不应被当作合成ID")
	}
}

// ========== 统计解析测试 ==========

func TestParsePortfolioSummaryCarriesCustomRange(t *testing.T) {
	raw := map[string]interface{}{
		"futures": map[string]interface{}{"total_value": 2000.0, "pnl": 150.0},
	}

	s := exchanges.ParsePortfolioSummary(raw, types.PeriodCustom, "2026-08-01", "2026-08-15")
	if s.Period != types.PeriodCustom {
		t.Errorf("周期错误: 实际 %s", s.Period)
	}
	if s.CustomStart != "2026-08-01" || s.CustomEnd != "2026-08-15" {
		t.Errorf("自定义起止日期丢失: start=%q end=%q", s.CustomStart, s.CustomEnd)
	}
	if s.Futures.TotalValue != 2000.0 {
		t.Errorf("合约总值错误: 实际 %v", s.Futures.TotalValue)
	}
}

func TestParseTradeStatsDerivedWinRate(t *testing.T) {
	raw := map[string]interface{}{
		"total_trades": 10,
		"win_trades":   7,
		"total_pnl":    1500.0,
	}

	s := exchanges.ParseTradeStats(raw)
	if s.WinRate != 0.7 {
		t.Errorf("推导胜率错误: 期望 0.7, 实际 %v", s.WinRate)
	}
}

func TestParseTradeIsOpen(t *testing.T) {
	raw := map[string]interface{}{
		"symbol":     "BTCUSDT",
		"side":       "buy",
		"open_rate":  50000.0,
		"profit_abs": 120.0,
	}

	trade, err := exchanges.ParseTrade(raw)
	if err != nil {
		t.Fatalf("解析成交失败: %v", err)
	}
	if !trade.IsOpen {
		t.Error("缺少exitPrice的成交应视为未平仓")
	}

	raw["close_rate"] = 51000.0
	trade, _ = exchanges.ParseTrade(raw)
	if trade.IsOpen {
		t.Error("有exitPrice的成交应视为已平仓")
	}
}

func TestParseTradesSkipsBadRecords(t *testing.T) {
	rawList := []map[string]interface{}{
		{"symbol": "BTCUSDT", "side": "buy", "close_rate": 51000.0, "profit_abs": 120.0},
		{"side": "sell"}, // 缺symbol，应被跳过
	}

	trades := exchanges.ParseTrades(rawList)
	if len(trades) != 1 {
		t.Fatalf("坏记录处理错误: 期望 1 条, 实际 %d 条", len(trades))
	}
}
