package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"portfolio_sync/pkg/exchanges"
	"portfolio_sync/pkg/exchanges/types"
)

// ========== Binance 合约实现 ==========

// Binance 实现账户数据接口 (USDT-M 合约 API)
type Binance struct {
	*exchanges.BaseClient
	config *Config
}

// New 创建新的Binance实例
func New(config *Config) (*Binance, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	base := exchanges.NewBaseClient("binance", "Binance", config.AccountType, config.GetBaseURL())
	base.SetCredentials(config.APIKey, config.Secret)

	return &Binance{
		BaseClient: base,
		config:     config.Clone(),
	}, nil
}

// ========== 签名和认证 ==========

// generateSignature 生成HMAC SHA256签名
func (b *Binance) generateSignature(query string) string {
	mac := hmac.New(sha256.New, []byte(b.config.Secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// signQuery 附加时间戳并签名查询串
func (b *Binance) signQuery(params url.Values) string {
	params.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))
	params.Set("recvWindow", RecvWindow)

	query := params.Encode()
	return query + "&signature=" + b.generateSignature(query)
}

func (b *Binance) authHeaders() map[string]string {
	return map[string]string{
		"X-MBX-APIKEY": b.config.APIKey,
	}
}

// checkError 识别业务错误响应 {"code": -xxxx, "msg": "..."}
func checkError(obj map[string]interface{}) error {
	code := exchanges.SafeInteger(obj, []string{"code"}, 0)
	if code >= 0 {
		return nil
	}

	msg := exchanges.SafeString(obj, []string{"msg"}, "unknown error")
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "does not exist") || strings.Contains(lower, "unknown order"):
		return exchanges.NewOrderNotFound(msg)
	case strings.Contains(lower, "api-key") || strings.Contains(lower, "signature"):
		return exchanges.NewAuthenticationError(msg)
	default:
		return exchanges.NewBadResponse(fmt.Sprintf("binance error %d: %s", code, msg))
	}
}

func (b *Binance) getSigned(ctx context.Context, path string, params url.Values) (map[string]interface{}, error) {
	resp, err := b.GetJSON(ctx, path+"?"+b.signQuery(params), b.authHeaders())
	if err != nil {
		return nil, err
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (b *Binance) getSignedList(ctx context.Context, path string, params url.Values) ([]map[string]interface{}, error) {
	return b.GetJSONList(ctx, path+"?"+b.signQuery(params), b.authHeaders())
}

// ========== 账户数据接口 ==========

// FetchBalance 获取合约账户余额 (原始JSON)
func (b *Binance) FetchBalance(ctx context.Context) (map[string]interface{}, error) {
	resp, err := b.getSigned(ctx, EndpointAccount, url.Values{})
	if err != nil {
		return nil, err
	}

	// Binance 的字段名与标准名不同，透传为候选键集合里的原始名
	return map[string]interface{}{
		"equity":         exchanges.SafeValue(resp, []string{"totalMarginBalance"}, nil),
		"available":      exchanges.SafeValue(resp, []string{"availableBalance"}, nil),
		"unrealized_pnl": exchanges.SafeValue(resp, []string{"totalUnrealizedProfit"}, nil),
		"margin_balance": exchanges.SafeValue(resp, []string{"totalInitialMargin"}, nil),
		"currency":       types.DefaultCurrency,
	}, nil
}

// FetchPositions 获取持仓列表 (原始JSON数组)。
// 单向持仓模式下 positionSide 恒为 BOTH，方向从 positionAmt 符号推导。
func (b *Binance) FetchPositions(ctx context.Context) ([]map[string]interface{}, error) {
	list, err := b.getSignedList(ctx, EndpointPositionRisk, url.Values{})
	if err != nil {
		return nil, err
	}

	positions := make([]map[string]interface{}, 0, len(list))
	for i := range list {
		amt := exchanges.SafeFloat(list[i], []string{"positionAmt"}, 0)
		if amt == 0 {
			continue // 空仓记录也会返回，过滤掉
		}

		raw := list[i]
		side := exchanges.SafeString(raw, []string{"positionSide"}, "BOTH")
		if side == "BOTH" {
			if amt > 0 {
				side = types.PositionSideLong
			} else {
				side = types.PositionSideShort
			}
		}

		raw["side"] = side
		raw["size"] = math.Abs(amt)
		raw["pnl"] = exchanges.SafeValue(raw, []string{"unRealizedProfit"}, nil)
		raw["liq_price"] = exchanges.SafeValue(raw, []string{"liquidationPrice"}, nil)
		positions = append(positions, raw)
	}

	return positions, nil
}

// FetchOrders 获取活动订单 (原始JSON数组)
func (b *Binance) FetchOrders(ctx context.Context) ([]map[string]interface{}, error) {
	list, err := b.getSignedList(ctx, EndpointOpenOrders, url.Values{})
	if err != nil {
		return nil, err
	}

	for i := range list {
		list[i]["quantity"] = exchanges.SafeValue(list[i], []string{"origQty"}, nil)
	}
	return list, nil
}

// FetchTradeStats 基于已实现盈亏流水计算交易统计 (原始JSON)
func (b *Binance) FetchTradeStats(ctx context.Context) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("incomeType", "REALIZED_PNL")
	params.Set("limit", "1000")

	list, err := b.getSignedList(ctx, EndpointIncome, params)
	if err != nil {
		return nil, err
	}

	totalPnl := 0.0
	winTrades := 0
	for i := range list {
		income := exchanges.SafeFloat(list[i], []string{"income"}, 0)
		totalPnl += income
		if income > 0 {
			winTrades++
		}
	}

	return map[string]interface{}{
		"total_trades": len(list),
		"win_trades":   winTrades,
		"total_pnl":    totalPnl,
	}, nil
}

// FetchPortfolioSummary 获取组合汇总 (原始JSON)，用盈亏流水按天分桶构造K线
func (b *Binance) FetchPortfolioSummary(ctx context.Context, period, customStart, customEnd string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("incomeType", "REALIZED_PNL")
	params.Set("limit", "1000")
	if start := periodStartMilli(period, customStart); start > 0 {
		params.Set("startTime", fmt.Sprintf("%d", start))
	}
	if end := periodEndMilli(customEnd); end > 0 {
		params.Set("endTime", fmt.Sprintf("%d", end))
	}

	list, err := b.getSignedList(ctx, EndpointIncome, params)
	if err != nil {
		return nil, err
	}

	balance, err := b.FetchBalance(ctx)
	if err != nil {
		return nil, err
	}

	totalPnl := 0.0
	for i := range list {
		totalPnl += exchanges.SafeFloat(list[i], []string{"income"}, 0)
	}

	return map[string]interface{}{
		"futures": map[string]interface{}{
			"total_value": exchanges.SafeValue(balance, []string{"equity"}, 0.0),
			"pnl":         totalPnl,
		},
		"spot":    map[string]interface{}{},
		"candles": bucketIncome(list, period),
	}, nil
}

// ========== 变更操作 ==========

// ClosePosition 市价平掉指定持仓 (reduceOnly 反向单)
func (b *Binance) ClosePosition(ctx context.Context, symbol, side string) (map[string]interface{}, error) {
	// 平仓需要数量，先查当前持仓
	positions, err := b.FetchPositions(ctx)
	if err != nil {
		return nil, err
	}

	var size float64
	for i := range positions {
		if exchanges.SafeString(positions[i], []string{"symbol"}, "") == symbol &&
			exchanges.NormalizeSide(exchanges.SafeString(positions[i], []string{"side"}, "")) == side {
			size = exchanges.SafeFloat(positions[i], []string{"size"}, 0)
			break
		}
	}
	if size == 0 {
		return nil, exchanges.NewPositionNotFound(symbol, side)
	}

	orderSide := "SELL"
	if side == types.PositionSideShort {
		orderSide = "BUY"
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", orderSide)
	params.Set("type", "MARKET")
	params.Set("quantity", fmt.Sprintf("%g", size))
	params.Set("reduceOnly", "true")

	resp, err := b.PostJSON(ctx, EndpointOrder+"?"+b.signQuery(params), nil, b.authHeaders())
	if err != nil {
		return nil, err
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CloseAllPositions 逐个平掉所有持仓
func (b *Binance) CloseAllPositions(ctx context.Context) (map[string]interface{}, error) {
	positions, err := b.FetchPositions(ctx)
	if err != nil {
		return nil, err
	}

	closed := 0
	for i := range positions {
		symbol := exchanges.SafeString(positions[i], []string{"symbol"}, "")
		side := exchanges.NormalizeSide(exchanges.SafeString(positions[i], []string{"side"}, ""))
		if symbol == "" {
			continue
		}
		if _, err := b.ClosePosition(ctx, symbol, side); err != nil {
			return nil, err
		}
		closed++
	}

	return map[string]interface{}{"success": true, "closed": closed}, nil
}

// CancelOrder 撤销订单
func (b *Binance) CancelOrder(ctx context.Context, symbol, orderID string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	body, err := b.FetchWithRetry(ctx, b.GetBaseURL()+EndpointOrder+"?"+b.signQuery(params),
		http.MethodDelete, b.authHeaders(), "")
	if err != nil {
		return nil, err
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, exchanges.NewBadResponse(fmt.Sprintf("invalid JSON object: %v", err))
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ========== 辅助函数 ==========

// periodStartMilli 统计周期的起始时间 (毫秒)，自定义周期优先
func periodStartMilli(period, customStart string) int64 {
	if customStart != "" {
		if t, err := time.Parse("2006-01-02", customStart); err == nil {
			return t.UnixMilli()
		}
	}

	now := time.Now()
	switch period {
	case types.Period1D:
		return now.AddDate(0, 0, -1).UnixMilli()
	case types.Period1W:
		return now.AddDate(0, 0, -7).UnixMilli()
	case types.Period1M:
		return now.AddDate(0, -1, 0).UnixMilli()
	case types.Period3M:
		return now.AddDate(0, -3, 0).UnixMilli()
	case types.Period1Y:
		return now.AddDate(-1, 0, 0).UnixMilli()
	}
	return 0
}

// periodEndMilli 自定义周期的截止时间 (毫秒)，结束日期按整天计入。
// 非自定义周期截止到当前时刻，返回0表示不传endTime。
func periodEndMilli(customEnd string) int64 {
	if customEnd == "" {
		return 0
	}
	if t, err := time.Parse("2006-01-02", customEnd); err == nil {
		return t.AddDate(0, 0, 1).UnixMilli()
	}
	return 0
}

// bucketIncome 把盈亏流水按天分桶为盈亏K线
func bucketIncome(list []map[string]interface{}, period string) []interface{} {
	type bucket struct {
		open, high, low, close float64
		trades, wins           int
		bySymbol               map[string]float64
		initialized            bool
	}
	buckets := make(map[int64]*bucket)

	// 流水顺序不可依赖，先按时间升序排好，open/close才是当天首尾两笔
	rows := make([]map[string]interface{}, len(list))
	copy(rows, list)
	sort.SliceStable(rows, func(i, j int) bool {
		return exchanges.SafeInteger(rows[i], []string{"time"}, 0) < exchanges.SafeInteger(rows[j], []string{"time"}, 0)
	})

	for i := range rows {
		ts := exchanges.SafeInteger(rows[i], []string{"time"}, 0)
		income := exchanges.SafeFloat(rows[i], []string{"income"}, 0)
		symbol := exchanges.SafeString(rows[i], []string{"symbol"}, "")

		day := time.UnixMilli(ts).UTC().Truncate(24 * time.Hour).UnixMilli()
		bk := buckets[day]
		if bk == nil {
			bk = &bucket{bySymbol: make(map[string]float64)}
			buckets[day] = bk
		}

		if !bk.initialized {
			bk.open = income
			bk.high = income
			bk.low = income
			bk.initialized = true
		}
		bk.close = income
		if income > bk.high {
			bk.high = income
		}
		if income < bk.low {
			bk.low = income
		}
		bk.trades++
		if income > 0 {
			bk.wins++
		}
		if symbol != "" {
			bk.bySymbol[symbol] += income
		}
	}

	days := make([]int64, 0, len(buckets))
	for ts := range buckets {
		days = append(days, ts)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	candles := make([]interface{}, 0, len(buckets))
	for _, ts := range days {
		bk := buckets[ts]
		candles = append(candles, map[string]interface{}{
			"timestamp":   ts,
			"open":        bk.open,
			"high":        bk.high,
			"low":         bk.low,
			"close":       bk.close,
			"trade_count": bk.trades,
			"win_count":   bk.wins,
			"by_symbol":   bk.bySymbol,
		})
	}
	return candles
}
