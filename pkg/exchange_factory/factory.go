package exchange_factory

import (
	"context"
	"fmt"
	"strings"

	"portfolio_sync/pkg/config"
	"portfolio_sync/pkg/exchanges/binance"
	"portfolio_sync/pkg/exchanges/bybit"
	"portfolio_sync/pkg/exchanges/types"
)

// ExchangeInterface 定义交易所账户数据接口
type ExchangeInterface interface {
	// 基础信息
	GetID() string
	GetName() string
	GetAccountType() string

	// 账户数据 (原始JSON，归一化在上层统一处理)
	FetchBalance(ctx context.Context) (map[string]interface{}, error)
	FetchPositions(ctx context.Context) ([]map[string]interface{}, error)
	FetchOrders(ctx context.Context) ([]map[string]interface{}, error)
	FetchTradeStats(ctx context.Context) (map[string]interface{}, error)
	FetchPortfolioSummary(ctx context.Context, period, customStart, customEnd string) (map[string]interface{}, error)

	// 变更操作
	ClosePosition(ctx context.Context, symbol, side string) (map[string]interface{}, error)
	CloseAllPositions(ctx context.Context) (map[string]interface{}, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (map[string]interface{}, error)
}

// ExchangeType 支持的交易所类型
type ExchangeType string

const (
	ExchangeTypeBybit   ExchangeType = "bybit"
	ExchangeTypeBinance ExchangeType = "binance"
)

// ExchangeFactory 交易所工厂
type ExchangeFactory struct{}

// NewExchangeFactory 创建新的交易所工厂
func NewExchangeFactory() *ExchangeFactory {
	return &ExchangeFactory{}
}

// CreateExchange 根据交易所和账户类型创建实例。
// accountType 为空时使用交易所默认账户类型。
func (f *ExchangeFactory) CreateExchange(exchangeType, accountType string) (ExchangeInterface, error) {
	exchangeType = strings.ToLower(strings.TrimSpace(exchangeType))

	if accountType == "" {
		accountType = types.DefaultAccountTypes[exchangeType]
	}

	switch ExchangeType(exchangeType) {
	case ExchangeTypeBybit:
		return f.createBybitExchange(accountType)
	case ExchangeTypeBinance:
		return f.createBinanceExchange(accountType)
	default:
		return nil, fmt.Errorf("不支持的交易所类型: %s", exchangeType)
	}
}

// CreateFromConfig 从全局配置创建默认交易所
func (f *ExchangeFactory) CreateFromConfig() (ExchangeInterface, error) {
	if config.GlobalConfig == nil {
		return nil, fmt.Errorf("全局配置未初始化")
	}

	return f.CreateExchange(config.GlobalConfig.DefaultExchange, config.GlobalConfig.DefaultAccountType)
}

// createBybitExchange 创建 Bybit 交易所实例
func (f *ExchangeFactory) createBybitExchange(accountType string) (*bybit.Bybit, error) {
	cfg := bybit.DefaultConfig()
	cfg.AccountType = accountType

	if config.GlobalConfig != nil {
		cfg.APIKey = config.GlobalConfig.BybitAPIKey
		cfg.Secret = config.GlobalConfig.BybitSecret
	}

	return bybit.New(cfg)
}

// createBinanceExchange 创建 Binance 交易所实例
func (f *ExchangeFactory) createBinanceExchange(accountType string) (*binance.Binance, error) {
	cfg := binance.DefaultConfig()
	cfg.AccountType = accountType

	if config.GlobalConfig != nil {
		cfg.APIKey = config.GlobalConfig.BinanceAPIKey
		cfg.Secret = config.GlobalConfig.BinanceSecret
	}

	return binance.New(cfg)
}
