package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio_sync/pkg/config"
	"portfolio_sync/pkg/exchanges/types"
)

// ConfigController 系统配置接口
type ConfigController struct{}

// NewConfigController 创建配置控制器
func NewConfigController() *ConfigController {
	return &ConfigController{}
}

// GetSystemConfig 获取系统配置 (前端初始化用)
func (c *ConfigController) GetSystemConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"exchanges":           []string{types.ExchangeBybit, types.ExchangeBinance},
			"accountTypes":        types.ValidAccountTypes,
			"defaultAccountTypes": types.DefaultAccountTypes,
			"periods": []string{
				types.Period1D, types.Period1W, types.Period1M,
				types.Period3M, types.Period1Y, types.PeriodCustom,
			},
			"defaultExchange":     config.GlobalConfig.DefaultExchange,
			"autoRefreshInterval": config.GlobalConfig.AutoRefreshInterval.String(),
		},
	})
}
