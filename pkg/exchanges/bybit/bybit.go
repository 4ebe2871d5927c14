package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"portfolio_sync/pkg/exchanges"
	"portfolio_sync/pkg/exchanges/types"
)

// ========== Bybit 交易所实现 ==========

// Bybit 实现账户数据接口 (v5 API)
type Bybit struct {
	*exchanges.BaseClient
	config   *Config
	category string
}

// New 创建新的Bybit实例
func New(config *Config) (*Bybit, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	base := exchanges.NewBaseClient("bybit", "Bybit", config.AccountType, config.GetBaseURL())
	base.SetCredentials(config.APIKey, config.Secret)

	return &Bybit{
		BaseClient: base,
		config:     config.Clone(),
		category:   config.Category,
	}, nil
}

// GetCategory 获取产品类型
func (b *Bybit) GetCategory() string {
	return b.category
}

// ========== 签名和认证 ==========

// signHeaders 生成 v5 私有接口签名头
func (b *Bybit) signHeaders(payload string) map[string]string {
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	raw := timestamp + b.config.APIKey + RecvWindow + payload

	mac := hmac.New(sha256.New, []byte(b.config.Secret))
	mac.Write([]byte(raw))
	signature := hex.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"X-BAPI-API-KEY":     b.config.APIKey,
		"X-BAPI-TIMESTAMP":   timestamp,
		"X-BAPI-RECV-WINDOW": RecvWindow,
		"X-BAPI-SIGN":        signature,
	}
}

// unwrapResult 校验retCode并展开 result 字段
func (b *Bybit) unwrapResult(resp map[string]interface{}) (map[string]interface{}, error) {
	retCode := exchanges.SafeInteger(resp, []string{"retCode"}, -1)
	if retCode != 0 {
		msg := exchanges.SafeString(resp, []string{"retMsg"}, "unknown error")
		if strings.Contains(strings.ToLower(msg), "not exist") ||
			strings.Contains(strings.ToLower(msg), "not found") {
			return nil, exchanges.NewOrderNotFound(msg)
		}
		return nil, exchanges.NewBadResponse(fmt.Sprintf("bybit error %d: %s", retCode, msg))
	}

	result, ok := exchanges.SafeValue(resp, []string{"result"}, nil).(map[string]interface{})
	if !ok {
		return nil, exchanges.NewBadResponse("bybit response missing result")
	}
	return result, nil
}

// unwrapList 展开 result.list 数组
func (b *Bybit) unwrapList(resp map[string]interface{}) ([]map[string]interface{}, error) {
	result, err := b.unwrapResult(resp)
	if err != nil {
		return nil, err
	}

	rawList, ok := exchanges.SafeValue(result, []string{"list"}, nil).([]interface{})
	if !ok {
		return nil, exchanges.NewBadResponse("bybit result missing list")
	}

	list := make([]map[string]interface{}, 0, len(rawList))
	for i := range rawList {
		if obj, ok := rawList[i].(map[string]interface{}); ok {
			list = append(list, obj)
		}
	}
	return list, nil
}

func (b *Bybit) getSigned(ctx context.Context, path, query string) (map[string]interface{}, error) {
	full := path
	if query != "" {
		full += "?" + query
	}
	return b.GetJSON(ctx, full, b.signHeaders(query))
}

func (b *Bybit) postSigned(ctx context.Context, path string, payload map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return b.PostJSON(ctx, path, payload, b.signHeaders(string(body)))
}

// ========== 账户数据接口 ==========

// FetchBalance 获取统一账户余额 (原始JSON)
func (b *Bybit) FetchBalance(ctx context.Context) (map[string]interface{}, error) {
	query := "accountType=UNIFIED"
	resp, err := b.getSigned(ctx, EndpointWalletBalance, query)
	if err != nil {
		return nil, err
	}

	list, err := b.unwrapList(resp)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, exchanges.NewBadResponse("bybit wallet balance list is empty")
	}

	// 统一账户只有一条记录，余额字段在 coin 之外的账户级字段里
	account := list[0]
	raw := map[string]interface{}{
		"equity":         exchanges.SafeValue(account, []string{"totalEquity"}, nil),
		"available":      exchanges.SafeValue(account, []string{"totalAvailableBalance"}, nil),
		"unrealized_pnl": exchanges.SafeValue(account, []string{"totalPerpUPL"}, nil),
		"margin_balance": exchanges.SafeValue(account, []string{"totalInitialMargin"}, nil),
		"currency":       types.DefaultCurrency,
	}
	return raw, nil
}

// FetchPositions 获取持仓列表 (原始JSON数组)
func (b *Bybit) FetchPositions(ctx context.Context) ([]map[string]interface{}, error) {
	query := fmt.Sprintf("category=%s&settleCoin=%s", b.category, types.DefaultCurrency)
	resp, err := b.getSigned(ctx, EndpointPositionInfo, query)
	if err != nil {
		return nil, err
	}
	return b.unwrapList(resp)
}

// FetchOrders 获取活动订单 (原始JSON数组)
func (b *Bybit) FetchOrders(ctx context.Context) ([]map[string]interface{}, error) {
	query := fmt.Sprintf("category=%s&settleCoin=%s", b.category, types.DefaultCurrency)
	resp, err := b.getSigned(ctx, EndpointOrderRealtime, query)
	if err != nil {
		return nil, err
	}
	return b.unwrapList(resp)
}

// FetchTradeStats 基于已平仓盈亏计算交易统计 (原始JSON)
func (b *Bybit) FetchTradeStats(ctx context.Context) (map[string]interface{}, error) {
	query := fmt.Sprintf("category=%s&limit=100", b.category)
	resp, err := b.getSigned(ctx, EndpointClosedPnl, query)
	if err != nil {
		return nil, err
	}

	list, err := b.unwrapList(resp)
	if err != nil {
		return nil, err
	}

	totalPnl := 0.0
	winTrades := 0
	for i := range list {
		pnl := exchanges.SafeFloat(list[i], []string{"closedPnl"}, 0)
		totalPnl += pnl
		if pnl > 0 {
			winTrades++
		}
	}

	return map[string]interface{}{
		"total_trades": len(list),
		"win_trades":   winTrades,
		"total_pnl":    totalPnl,
	}, nil
}

// FetchPortfolioSummary 获取组合汇总 (原始JSON)。
// Bybit 没有现成的汇总接口，用已平仓盈亏按周期分桶构造。
func (b *Bybit) FetchPortfolioSummary(ctx context.Context, period, customStart, customEnd string) (map[string]interface{}, error) {
	query := fmt.Sprintf("category=%s&limit=200", b.category)
	if start := periodStartMilli(period, customStart); start > 0 {
		query += fmt.Sprintf("&startTime=%d", start)
	}
	if end := periodEndMilli(customEnd); end > 0 {
		query += fmt.Sprintf("&endTime=%d", end)
	}

	resp, err := b.getSigned(ctx, EndpointClosedPnl, query)
	if err != nil {
		return nil, err
	}

	list, err := b.unwrapList(resp)
	if err != nil {
		return nil, err
	}

	balance, err := b.FetchBalance(ctx)
	if err != nil {
		return nil, err
	}

	totalPnl := 0.0
	for i := range list {
		totalPnl += exchanges.SafeFloat(list[i], []string{"closedPnl"}, 0)
	}

	return map[string]interface{}{
		"futures": map[string]interface{}{
			"total_value": exchanges.SafeValue(balance, []string{"equity"}, 0.0),
			"pnl":         totalPnl,
		},
		"spot":    map[string]interface{}{},
		"candles": bucketClosedPnl(list, period),
	}, nil
}

// ========== 变更操作 ==========

// ClosePosition 市价平掉指定持仓 (reduceOnly 反向单)
func (b *Bybit) ClosePosition(ctx context.Context, symbol, side string) (map[string]interface{}, error) {
	orderSide := "Sell"
	if side == types.PositionSideShort {
		orderSide = "Buy"
	}

	payload := map[string]interface{}{
		"category":       b.category,
		"symbol":         symbol,
		"side":           orderSide,
		"orderType":      "Market",
		"qty":            "0",
		"reduceOnly":     true,
		"closeOnTrigger": true,
	}

	resp, err := b.postSigned(ctx, EndpointPlaceOrder, payload)
	if err != nil {
		return nil, err
	}
	if _, err := b.unwrapResult(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CloseAllPositions 逐个平掉所有持仓
func (b *Bybit) CloseAllPositions(ctx context.Context) (map[string]interface{}, error) {
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
func (b *Bybit) CancelOrder(ctx context.Context, symbol, orderID string) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"category": b.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	resp, err := b.postSigned(ctx, EndpointCancelOrder, payload)
	if err != nil {
		return nil, err
	}
	if _, err := b.unwrapResult(resp); err != nil {
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

// bucketClosedPnl 把已平仓盈亏按天分桶为盈亏K线
func bucketClosedPnl(list []map[string]interface{}, period string) []interface{} {
	type bucket struct {
		open, high, low, close float64
		trades, wins           int
		byStrategy             map[string]float64
		bySymbol               map[string]float64
		initialized            bool
	}
	buckets := make(map[int64]*bucket)

	// 接口按最新在前返回，先按时间升序排好，open/close才是当天首尾两笔
	rows := make([]map[string]interface{}, len(list))
	copy(rows, list)
	sort.SliceStable(rows, func(i, j int) bool {
		left := exchanges.SafeInteger(rows[i], []string{"updatedTime", "createdTime"}, 0)
		right := exchanges.SafeInteger(rows[j], []string{"updatedTime", "createdTime"}, 0)
		return left < right
	})

	for i := range rows {
		ts := exchanges.SafeInteger(rows[i], []string{"updatedTime", "createdTime"}, 0)
		pnl := exchanges.SafeFloat(rows[i], []string{"closedPnl"}, 0)
		symbol := exchanges.SafeString(rows[i], []string{"symbol"}, "")

		day := time.UnixMilli(ts).UTC().Truncate(24 * time.Hour).UnixMilli()
		bk := buckets[day]
		if bk == nil {
			bk = &bucket{byStrategy: make(map[string]float64), bySymbol: make(map[string]float64)}
			buckets[day] = bk
		}

		if !bk.initialized {
			bk.open = pnl
			bk.high = pnl
			bk.low = pnl
			bk.initialized = true
		}
		bk.close = pnl
		if pnl > bk.high {
			bk.high = pnl
		}
		if pnl < bk.low {
			bk.low = pnl
		}
		bk.trades++
		if pnl > 0 {
			bk.wins++
		}
		if symbol != "" {
			bk.bySymbol[symbol] += pnl
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
			"by_strategy": bk.byStrategy,
			"by_symbol":   bk.bySymbol,
		})
	}
	return candles
}
