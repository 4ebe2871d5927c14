package binance

import (
	"fmt"

	"portfolio_sync/pkg/exchanges/types"
)

// ========== Binance 配置 ==========

// Config Binance 合约配置
type Config struct {
	// 账户配置
	AccountType string `json:"accountType"` // testnet / mainnet
	APIKey      string `json:"apiKey"`
	Secret      string `json:"secret"`

	// 网络配置
	Timeout int `json:"timeout"` // 超时时间(毫秒)
}

// DefaultConfig 返回默认配置 (测试网)
func DefaultConfig() *Config {
	return &Config{
		AccountType: types.AccountTypeTestnet,
		Timeout:     30000, // 30秒
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	if !types.IsValidAccountType(types.ExchangeBinance, c.AccountType) {
		return fmt.Errorf("invalid accountType: %s, must be 'testnet' or 'mainnet'", c.AccountType)
	}

	return nil
}

// Clone 克隆配置
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// GetBaseURL 获取基础URL
func (c *Config) GetBaseURL() string {
	if c.AccountType == types.AccountTypeTestnet {
		return TestnetBaseURL
	}
	return BaseURL
}

// IsTestnet 是否测试网
func (c *Config) IsTestnet() bool {
	return c.AccountType == types.AccountTypeTestnet
}
