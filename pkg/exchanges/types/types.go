package types

import (
	"fmt"
	"strings"
	"time"
)

// ========== 常量定义 ==========

// 交易所类型
const (
	ExchangeBybit   = "bybit"
	ExchangeBinance = "binance"
)

// 账户类型
const (
	AccountTypeDemo    = "demo"    // Bybit 模拟盘
	AccountTypeReal    = "real"    // Bybit 实盘
	AccountTypeTestnet = "testnet" // Binance 测试网
	AccountTypeMainnet = "mainnet" // Binance 主网
)

// 持仓方向
const (
	PositionSideLong  = "long"
	PositionSideShort = "short"
)

// 订单方向
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

// 订单类型
const (
	OrderTypeMarket     = "market"
	OrderTypeLimit      = "limit"
	OrderTypeStopMarket = "stop_market"
	OrderTypeTakeProfit = "take_profit"
)

// 统计周期
const (
	Period1D     = "1d"
	Period1W     = "1w"
	Period1M     = "1m"
	Period3M     = "3m"
	Period1Y     = "1y"
	PeriodCustom = "custom" // 自定义起止日期
)

// 默认值
const (
	DefaultLeverage = 10     // 杠杆解析失败时的默认倍数
	DefaultCurrency = "USDT" // 余额默认计价货币
)

// ValidAccountTypes 各交易所支持的账户类型
var ValidAccountTypes = map[string][]string{
	ExchangeBybit:   {AccountTypeDemo, AccountTypeReal},
	ExchangeBinance: {AccountTypeTestnet, AccountTypeMainnet},
}

// DefaultAccountTypes 各交易所的默认账户类型
var DefaultAccountTypes = map[string]string{
	ExchangeBybit:   AccountTypeDemo,
	ExchangeBinance: AccountTypeTestnet,
}

// IsValidAccountType 检查账户类型是否属于交易所的有效集合
func IsValidAccountType(exchange, accountType string) bool {
	for _, t := range ValidAccountTypes[exchange] {
		if t == accountType {
			return true
		}
	}
	return false
}

// IsValidPeriod 检查统计周期是否有效
func IsValidPeriod(period string) bool {
	switch period {
	case Period1D, Period1W, Period1M, Period3M, Period1Y, PeriodCustom:
		return true
	}
	return false
}

// ========== 核心数据类型 ==========

// Position 持仓信息 (每次同步整体重建，无跨周期身份)
type Position struct {
	Symbol           string  `json:"symbol"`                      // 交易对
	Side             string  `json:"side"`                        // long/short
	Size             float64 `json:"size"`                        // 持仓大小
	EntryPrice       float64 `json:"entry_price"`                 // 开仓价格
	MarkPrice        float64 `json:"mark_price"`                  // 标记价格
	Leverage         int     `json:"leverage"`                    // 杠杆倍数 (>=1)
	UnrealizedPnl    float64 `json:"unrealized_pnl"`              // 未实现盈亏
	PnlPercent       float64 `json:"pnl_percent"`                 // 盈亏百分比
	LiquidationPrice float64 `json:"liquidation_price,omitempty"` // 强平价格
	TakeProfit       float64 `json:"take_profit,omitempty"`       // 止盈价
	StopLoss         float64 `json:"stop_loss,omitempty"`         // 止损价
	Strategy         string  `json:"strategy,omitempty"`          // 策略标签
	Exchange         string  `json:"exchange"`                    // 交易所
	AccountType      string  `json:"account_type"`                // 账户类型
	Margin           float64 `json:"margin"`                      // 保证金
	Error            string  `json:"error,omitempty"`             // 非空时该记录不可用于交易决策
}

// Key 持仓身份键 (symbol, side)
func (p *Position) Key() string {
	return p.Symbol + ":" + p.Side
}

// NotionalValue 名义价值
func (p *Position) NotionalValue() float64 {
	return p.Size * p.MarkPrice
}

// IsProfitable 是否盈利
func (p *Position) IsProfitable() bool {
	return p.UnrealizedPnl > 0
}

// DisplaySide 仓位方向的展示文本
func (p *Position) DisplaySide() string {
	switch p.Side {
	case PositionSideLong:
		return "做多"
	case PositionSideShort:
		return "做空"
	default:
		return "未知"
	}
}

// DisplayPnl 盈亏展示文本 (带符号)
func (p *Position) DisplayPnl() string {
	if p.UnrealizedPnl >= 0 {
		return fmt.Sprintf("+%.2f (%.2f%%)", p.UnrealizedPnl, p.PnlPercent)
	}
	return fmt.Sprintf("%.2f (%.2f%%)", p.UnrealizedPnl, p.PnlPercent)
}

// Balance 账户余额
type Balance struct {
	Equity         float64 `json:"equity"`          // 净值
	Available      float64 `json:"available"`       // 可用余额
	UnrealizedPnl  float64 `json:"unrealized_pnl"`  // 未实现盈亏
	PositionMargin float64 `json:"position_margin"` // 持仓保证金
	Currency       string  `json:"currency"`        // 计价货币
	Error          string  `json:"error,omitempty"` // 非空时该记录不可用于交易决策
}

// MarginRatio 保证金占用比例
func (b *Balance) MarginRatio() float64 {
	if b.Equity <= 0 {
		return 0
	}
	return b.PositionMargin / b.Equity
}

// DisplayEquity 净值展示文本
func (b *Balance) DisplayEquity() string {
	return fmt.Sprintf("%.2f %s", b.Equity, b.Currency)
}

// Order 订单信息
type Order struct {
	OrderID  string  `json:"order_id"` // 缺失时回退为 unknown_<symbol>_<side>
	Symbol   string  `json:"symbol"`   // 交易对
	Side     string  `json:"side"`     // BUY/SELL
	Type     string  `json:"type"`     // 订单类型
	Quantity float64 `json:"quantity"` // 数量
	Price    float64 `json:"price"`    // 价格
	Status   string  `json:"status"`   // 订单状态
}

// HasRealID 订单ID是否来自交易所 (非合成占位)
func (o *Order) HasRealID() bool {
	return o.OrderID != "" && o.OrderID != SyntheticOrderID(o.Symbol, o.Side)
}

// SyntheticOrderID 合成订单ID占位符。
// 不使用随机值，避免撤单时误伤无关订单。
func SyntheticOrderID(symbol, side string) string {
	return fmt.Sprintf("unknown_%s_%s", symbol, side)
}

// IsSyntheticOrderID 订单ID是否为合成占位符
func IsSyntheticOrderID(orderID string) bool {
	return strings.HasPrefix(orderID, "unknown_")
}

// Trade 成交记录
type Trade struct {
	Symbol     string  `json:"symbol"`                // 交易对
	Side       string  `json:"side"`                  // long/short
	EntryPrice float64 `json:"entry_price"`           // 开仓价格
	ExitPrice  float64 `json:"exit_price,omitempty"`  // 平仓价格 (未平仓为0)
	Pnl        float64 `json:"pnl,omitempty"`         // 已实现盈亏
	ExitReason string  `json:"exit_reason,omitempty"` // 平仓原因
	Timestamp  int64   `json:"timestamp"`             // 毫秒时间戳
	IsOpen     bool    `json:"is_open"`               // 是否未平仓
}

// ExitTime 平仓时间
func (t *Trade) ExitTime() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// TradeStats 交易统计
type TradeStats struct {
	TotalTrades int     `json:"total_trades"` // 总交易数
	WinTrades   int     `json:"win_trades"`   // 盈利交易数
	TotalPnl    float64 `json:"total_pnl"`    // 总盈亏
	WinRate     float64 `json:"win_rate"`     // 胜率
	Error       string  `json:"error,omitempty"`
}

// ========== 组合汇总 ==========

// PnlCandle 时间分桶的盈亏K线簇
type PnlCandle struct {
	Timestamp  int64              `json:"timestamp"`   // 桶起始时间 (毫秒)
	Open       float64            `json:"open"`        // 开盘盈亏
	High       float64            `json:"high"`        // 最高盈亏
	Low        float64            `json:"low"`         // 最低盈亏
	Close      float64            `json:"close"`       // 收盘盈亏
	TradeCount int                `json:"trade_count"` // 交易数
	WinCount   int                `json:"win_count"`   // 盈利数
	ByStrategy map[string]float64 `json:"by_strategy"` // 按策略分解
	BySymbol   map[string]float64 `json:"by_symbol"`   // 按交易对分解
}

// SubPortfolio 子组合 (现货/合约)
type SubPortfolio struct {
	TotalValue float64 `json:"total_value"` // 总价值
	Pnl        float64 `json:"pnl"`         // 周期盈亏
	PnlPercent float64 `json:"pnl_percent"` // 周期盈亏百分比
}

// PortfolioSummary 组合汇总
type PortfolioSummary struct {
	Spot        SubPortfolio `json:"spot"`                   // 现货子组合
	Futures     SubPortfolio `json:"futures"`                // 合约子组合
	Candles     []PnlCandle  `json:"candles"`                // 盈亏K线簇
	Period      string       `json:"period"`                 // 统计周期
	CustomStart string       `json:"custom_start,omitempty"` // 自定义起始日期
	CustomEnd   string       `json:"custom_end,omitempty"`   // 自定义结束日期
	Error       string       `json:"error,omitempty"`
}

// TotalValue 组合总价值
func (s *PortfolioSummary) TotalValue() float64 {
	return s.Spot.TotalValue + s.Futures.TotalValue
}

// ========== 响应类型 ==========

// Response HTTP响应
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
}

// Ack 变更操作的远端确认
type Ack struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Info    map[string]interface{} `json:"info,omitempty"` // 原始信息
}
