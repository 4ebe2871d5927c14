package exchanges

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"portfolio_sync/pkg/exchanges/types"
)

// 各交易所对同一逻辑字段的命名并不一致，所有候选键按优先级集中在这里，
// 方便单独测试，避免散落在解析代码里的 ad hoc 取值。
var (
	positionSymbolKeys     = []string{"symbol", "pair"}
	positionSideKeys       = []string{"side", "position_side", "positionSide"}
	positionSizeKeys       = []string{"size", "position_amt", "positionAmt", "contracts"}
	positionEntryKeys      = []string{"entry_price", "entryPrice", "avg_price", "avgPrice"}
	positionMarkKeys       = []string{"mark_price", "markPrice"}
	positionLeverageKeys   = []string{"leverage"}
	positionPnlKeys        = []string{"unrealized_pnl", "pnl"}
	positionPnlPctKeys     = []string{"pnl_percent", "pnl_ratio"}
	positionLiqKeys        = []string{"liquidation_price", "liq_price", "liqPrice"}
	positionTakeProfitKeys = []string{"take_profit", "tp_price", "takeProfit"}
	positionStopLossKeys   = []string{"stop_loss", "sl_price", "stopLoss"}
	positionMarginKeys     = []string{"margin", "position_margin", "initial_margin", "positionIM"}
	positionStrategyKeys   = []string{"strategy", "strategy_name", "entry_tag"}

	balanceEquityKeys    = []string{"equity", "total_equity", "totalEquity", "total"}
	balanceAvailableKeys = []string{"available", "available_balance", "availableBalance", "free"}
	balancePnlKeys       = []string{"unrealized_pnl", "unrealised_pnl", "pnl"}
	balanceMarginKeys    = []string{"position_margin", "margin_balance"}
	balanceCurrencyKeys  = []string{"currency", "coin", "asset"}

	orderIDKeys       = []string{"order_id", "orderId", "id"}
	orderSymbolKeys   = []string{"symbol", "pair"}
	orderSideKeys     = []string{"side"}
	orderTypeKeys     = []string{"type", "order_type", "orderType"}
	orderQuantityKeys = []string{"quantity", "qty", "amount"}
	orderPriceKeys    = []string{"price", "limit_price"}
	orderStatusKeys   = []string{"status", "order_status", "orderStatus"}

	tradeTimestampKeys = []string{"close_timestamp", "timestamp"}
	tradeExitPriceKeys = []string{"exit_price", "close_rate"}
	tradePnlKeys       = []string{"pnl", "profit_abs", "realized_pnl"}
)

// ========== 安全数据提取 ==========

// SafeString 按优先级从候选键中提取字符串
func SafeString(obj map[string]interface{}, keys []string, defaultValue string) string {
	for _, key := range keys {
		val, exists := obj[key]
		if !exists || val == nil {
			continue
		}
		if str, ok := val.(string); ok {
			return str
		}
		// 数值类型转字符串时避免科学计数法 (订单ID等大整数)
		switch v := val.(type) {
		case float64:
			if v == float64(int64(v)) {
				return fmt.Sprintf("%.0f", v)
			}
			return fmt.Sprintf("%v", v)
		case int64:
			return fmt.Sprintf("%d", v)
		case int:
			return fmt.Sprintf("%d", v)
		}
	}
	return defaultValue
}

// SafeFloat 按优先级从候选键中提取浮点数，数值字符串会被强制转换
func SafeFloat(obj map[string]interface{}, keys []string, defaultValue float64) float64 {
	if f, ok := SafeFloatOk(obj, keys); ok {
		return f
	}
	return defaultValue
}

// SafeFloatOk 同 SafeFloat，并返回字段是否解析成功。
// 类型不匹配且无法强制转换的键视为缺失，继续尝试下一候选键。
func SafeFloatOk(obj map[string]interface{}, keys []string) (float64, bool) {
	for _, key := range keys {
		val, exists := obj[key]
		if !exists || val == nil {
			continue
		}
		switch v := val.(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// SafeInteger 按优先级从候选键中提取整数
func SafeInteger(obj map[string]interface{}, keys []string, defaultValue int64) int64 {
	for _, key := range keys {
		val, exists := obj[key]
		if !exists || val == nil {
			continue
		}
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		case string:
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return int64(f)
			}
		}
	}
	return defaultValue
}

// SafeBool 按优先级从候选键中提取布尔值
func SafeBool(obj map[string]interface{}, keys []string, defaultValue bool) bool {
	for _, key := range keys {
		val, exists := obj[key]
		if !exists || val == nil {
			continue
		}
		if b, ok := val.(bool); ok {
			return b
		}
		if str, ok := val.(string); ok {
			return strings.ToLower(str) == "true" || str == "1"
		}
	}
	return defaultValue
}

// SafeValue 按优先级从候选键中提取原始值
func SafeValue(obj map[string]interface{}, keys []string, defaultValue interface{}) interface{} {
	for _, key := range keys {
		if val, exists := obj[key]; exists && val != nil {
			return val
		}
	}
	return defaultValue
}

// ========== 方向归一化 ==========

// NormalizeSide 把各交易所的方向表示归一化为 long/short
func NormalizeSide(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long":
		return types.PositionSideLong
	case "sell", "short":
		return types.PositionSideShort
	default:
		return raw
	}
}

// ========== 实体解析 ==========

// ParsePosition 把原始持仓记录归一化为标准持仓。
// symbol 是必需字段，缺失时整条记录被丢弃 (返回错误)，批次中其余记录不受影响。
func ParsePosition(raw map[string]interface{}, exchange, accountType string) (*types.Position, error) {
	symbol := SafeString(raw, positionSymbolKeys, "")
	if symbol == "" {
		return nil, NewBadResponse("position record missing symbol")
	}

	p := &types.Position{
		Symbol:      symbol,
		Side:        NormalizeSide(SafeString(raw, positionSideKeys, "")),
		Size:        SafeFloat(raw, positionSizeKeys, 0),
		EntryPrice:  SafeFloat(raw, positionEntryKeys, 0),
		MarkPrice:   SafeFloat(raw, positionMarkKeys, 0),
		Strategy:    SafeString(raw, positionStrategyKeys, ""),
		Exchange:    exchange,
		AccountType: accountType,
		Error:       SafeString(raw, []string{"error"}, ""),
	}

	// 杠杆可能是数字或数字字符串，解析失败时用平台默认值并保证 >=1
	leverage := SafeInteger(raw, positionLeverageKeys, types.DefaultLeverage)
	if leverage < 1 {
		leverage = types.DefaultLeverage
	}
	p.Leverage = int(leverage)

	// 盈亏和百分比各有两个候选字段，两者都缺失才取0
	p.UnrealizedPnl = SafeFloat(raw, positionPnlKeys, 0)
	p.PnlPercent = SafeFloat(raw, positionPnlPctKeys, 0)

	p.LiquidationPrice = SafeFloat(raw, positionLiqKeys, 0)
	p.TakeProfit = SafeFloat(raw, positionTakeProfitKeys, 0)
	p.StopLoss = SafeFloat(raw, positionStopLossKeys, 0)

	// 保证金缺失时按名义价值/杠杆推导
	if margin, ok := SafeFloatOk(raw, positionMarginKeys); ok {
		p.Margin = margin
	} else if p.Leverage > 0 {
		p.Margin = p.NotionalValue() / float64(p.Leverage)
	}

	return p, nil
}

// ParsePositions 批量解析持仓，坏记录跳过，其余照常提交
func ParsePositions(rawList []map[string]interface{}, exchange, accountType string) []*types.Position {
	positions := make([]*types.Position, 0, len(rawList))
	for i := range rawList {
		p, err := ParsePosition(rawList[i], exchange, accountType)
		if err != nil {
			continue
		}
		positions = append(positions, p)
	}
	return positions
}

// ParseBalance 把原始余额记录归一化为标准余额。
// positionMargin 的取值优先级：显式字段 → margin_balance → max(0, equity-available)。
func ParseBalance(raw map[string]interface{}) *types.Balance {
	b := &types.Balance{
		Equity:        SafeFloat(raw, balanceEquityKeys, 0),
		Available:     SafeFloat(raw, balanceAvailableKeys, 0),
		UnrealizedPnl: SafeFloat(raw, balancePnlKeys, 0),
		Currency:      SafeString(raw, balanceCurrencyKeys, types.DefaultCurrency),
		Error:         SafeString(raw, []string{"error"}, ""),
	}

	if margin, ok := SafeFloatOk(raw, balanceMarginKeys); ok {
		b.PositionMargin = margin
	} else {
		b.PositionMargin = math.Max(0, b.Equity-b.Available)
	}

	return b
}

// ParseOrder 把原始订单记录归一化为标准订单。
// 订单ID依次尝试三个候选键，全部缺失时使用 symbol+side 的合成占位符。
func ParseOrder(raw map[string]interface{}) (*types.Order, error) {
	symbol := SafeString(raw, orderSymbolKeys, "")
	if symbol == "" {
		return nil, NewBadResponse("order record missing symbol")
	}

	side := strings.ToUpper(SafeString(raw, orderSideKeys, ""))
	orderID := SafeString(raw, orderIDKeys, "")
	if orderID == "" {
		orderID = types.SyntheticOrderID(symbol, side)
	}

	return &types.Order{
		OrderID:  orderID,
		Symbol:   symbol,
		Side:     side,
		Type:     SafeString(raw, orderTypeKeys, types.OrderTypeLimit),
		Quantity: SafeFloat(raw, orderQuantityKeys, 0),
		Price:    SafeFloat(raw, orderPriceKeys, 0),
		Status:   SafeString(raw, orderStatusKeys, ""),
	}, nil
}

// ParseOrders 批量解析订单，坏记录跳过
func ParseOrders(rawList []map[string]interface{}) []*types.Order {
	orders := make([]*types.Order, 0, len(rawList))
	for i := range rawList {
		o, err := ParseOrder(rawList[i])
		if err != nil {
			continue
		}
		orders = append(orders, o)
	}
	return orders
}

// ParseTrade 把原始成交记录归一化为标准成交。
// 时间戳从两个候选键取值；exitPrice 缺失表示未平仓。
func ParseTrade(raw map[string]interface{}) (*types.Trade, error) {
	symbol := SafeString(raw, []string{"symbol", "pair"}, "")
	if symbol == "" {
		return nil, NewBadResponse("trade record missing symbol")
	}

	exitPrice, hasExit := SafeFloatOk(raw, tradeExitPriceKeys)

	return &types.Trade{
		Symbol:     symbol,
		Side:       NormalizeSide(SafeString(raw, []string{"side"}, "")),
		EntryPrice: SafeFloat(raw, []string{"entry_price", "open_rate"}, 0),
		ExitPrice:  exitPrice,
		Pnl:        SafeFloat(raw, tradePnlKeys, 0),
		ExitReason: SafeString(raw, []string{"exit_reason", "sell_reason"}, ""),
		Timestamp:  SafeInteger(raw, tradeTimestampKeys, 0),
		IsOpen:     !hasExit,
	}, nil
}

// ParseTrades 批量解析成交记录，坏记录跳过
func ParseTrades(rawList []map[string]interface{}) []*types.Trade {
	trades := make([]*types.Trade, 0, len(rawList))
	for i := range rawList {
		t, err := ParseTrade(rawList[i])
		if err != nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades
}

// ParseTradeStats 解析交易统计，胜率缺失时按 win/total 推导
func ParseTradeStats(raw map[string]interface{}) *types.TradeStats {
	s := &types.TradeStats{
		TotalTrades: int(SafeInteger(raw, []string{"total_trades", "trade_count"}, 0)),
		WinTrades:   int(SafeInteger(raw, []string{"win_trades", "winning_trades"}, 0)),
		TotalPnl:    SafeFloat(raw, []string{"total_pnl", "profit_closed_coin"}, 0),
		Error:       SafeString(raw, []string{"error"}, ""),
	}

	if winRate, ok := SafeFloatOk(raw, []string{"win_rate", "winrate"}); ok {
		s.WinRate = winRate
	} else if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinTrades) / float64(s.TotalTrades)
	}

	return s
}

// ParsePortfolioSummary 解析组合汇总，自定义周期把起止日期一并带回
func ParsePortfolioSummary(raw map[string]interface{}, period, customStart, customEnd string) *types.PortfolioSummary {
	summary := &types.PortfolioSummary{
		Period:      period,
		CustomStart: customStart,
		CustomEnd:   customEnd,
		Spot:        parseSubPortfolio(SafeValue(raw, []string{"spot"}, nil)),
		Futures: parseSubPortfolio(
			SafeValue(raw, []string{"futures", "future", "derivatives"}, nil)),
		Error: SafeString(raw, []string{"error"}, ""),
	}

	if rawCandles, ok := SafeValue(raw, []string{"candles", "pnl_candles"}, nil).([]interface{}); ok {
		summary.Candles = make([]types.PnlCandle, 0, len(rawCandles))
		for i := range rawCandles {
			candleMap, ok := rawCandles[i].(map[string]interface{})
			if !ok {
				continue
			}
			summary.Candles = append(summary.Candles, parsePnlCandle(candleMap))
		}
	}

	return summary
}

func parseSubPortfolio(raw interface{}) types.SubPortfolio {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return types.SubPortfolio{}
	}
	return types.SubPortfolio{
		TotalValue: SafeFloat(obj, []string{"total_value", "value", "balance"}, 0),
		Pnl:        SafeFloat(obj, []string{"pnl", "profit"}, 0),
		PnlPercent: SafeFloat(obj, []string{"pnl_percent", "profit_ratio"}, 0),
	}
}

func parsePnlCandle(obj map[string]interface{}) types.PnlCandle {
	candle := types.PnlCandle{
		Timestamp:  SafeInteger(obj, []string{"timestamp", "time"}, 0),
		Open:       SafeFloat(obj, []string{"open"}, 0),
		High:       SafeFloat(obj, []string{"high"}, 0),
		Low:        SafeFloat(obj, []string{"low"}, 0),
		Close:      SafeFloat(obj, []string{"close"}, 0),
		TradeCount: int(SafeInteger(obj, []string{"trade_count", "trades"}, 0)),
		WinCount:   int(SafeInteger(obj, []string{"win_count", "wins"}, 0)),
		ByStrategy: make(map[string]float64),
		BySymbol:   make(map[string]float64),
	}

	if byStrategy, ok := SafeValue(obj, []string{"by_strategy"}, nil).(map[string]interface{}); ok {
		for name := range byStrategy {
			candle.ByStrategy[name] = SafeFloat(byStrategy, []string{name}, 0)
		}
	}
	if bySymbol, ok := SafeValue(obj, []string{"by_symbol"}, nil).(map[string]interface{}); ok {
		for name := range bySymbol {
			candle.BySymbol[name] = SafeFloat(bySymbol, []string{name}, 0)
		}
	}

	return candle
}

// ParseAck 解析变更操作的远端确认
func ParseAck(raw map[string]interface{}) *types.Ack {
	return &types.Ack{
		Success: SafeBool(raw, []string{"success", "result"}, true),
		Message: SafeString(raw, []string{"message", "msg", "retMsg"}, ""),
		Info:    raw,
	}
}
