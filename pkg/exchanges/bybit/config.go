package bybit

import (
	"fmt"

	"portfolio_sync/pkg/exchanges/types"
)

// ========== Bybit 配置 ==========

// Config Bybit 交易所配置
type Config struct {
	// 账户配置
	AccountType string `json:"accountType"` // demo / real
	APIKey      string `json:"apiKey"`
	Secret      string `json:"secret"`

	// 网络配置
	Timeout int `json:"timeout"` // 超时时间(毫秒)

	// Bybit 特有配置
	Category string `json:"category"` // 产品类型: linear, spot
}

// DefaultConfig 返回默认配置 (模拟盘)
func DefaultConfig() *Config {
	return &Config{
		AccountType: types.AccountTypeDemo,
		Timeout:     30000, // 30秒
		Category:    CategoryLinear,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	if !types.IsValidAccountType(types.ExchangeBybit, c.AccountType) {
		return fmt.Errorf("invalid accountType: %s, must be 'demo' or 'real'", c.AccountType)
	}

	validCategories := map[string]bool{
		CategoryLinear: true,
		CategorySpot:   true,
	}
	if !validCategories[c.Category] {
		return fmt.Errorf("invalid category: %s", c.Category)
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
	if c.AccountType == types.AccountTypeDemo {
		return DemoBaseURL
	}
	return BaseURL
}

// IsDemo 是否模拟盘
func (c *Config) IsDemo() bool {
	return c.AccountType == types.AccountTypeDemo
}
