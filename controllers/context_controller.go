package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"portfolio_sync/pkg/account"
	"portfolio_sync/pkg/exchanges/types"
	"portfolio_sync/pkg/redis"
)

// ContextController 账户上下文切换接口
type ContextController struct {
	accountCtx *account.Context
}

// NewContextController 创建上下文控制器
func NewContextController(accountCtx *account.Context) *ContextController {
	return &ContextController{accountCtx: accountCtx}
}

// GetContext 获取当前上下文
func (cc *ContextController) GetContext(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"data": cc.accountCtx.Get(),
	})
}

// SwitchExchangeRequest 切换交易所请求
type SwitchExchangeRequest struct {
	Exchange string `json:"exchange" binding:"required"`
}

// SwitchExchange 切换交易所。
// 账户类型对新交易所无效时自动落到该交易所默认值。
func (cc *ContextController) SwitchExchange(ctx *gin.Context) {
	var req SwitchExchangeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "请求参数格式错误",
			"code":  "INVALID_PARAMS",
		})
		return
	}

	if _, exists := types.ValidAccountTypes[req.Exchange]; !exists {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "不支持的交易所: " + req.Exchange,
			"code":  "INVALID_EXCHANGE",
		})
		return
	}

	cc.accountCtx.SetExchange(req.Exchange)
	cc.persist()

	ctx.JSON(http.StatusOK, gin.H{
		"message": "交易所已切换",
		"data":    cc.accountCtx.Get(),
	})
}

// SwitchAccountTypeRequest 切换账户类型请求
type SwitchAccountTypeRequest struct {
	AccountType string `json:"accountType" binding:"required"`
}

// SwitchAccountType 切换账户类型
func (cc *ContextController) SwitchAccountType(ctx *gin.Context) {
	var req SwitchAccountTypeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "请求参数格式错误",
			"code":  "INVALID_PARAMS",
		})
		return
	}

	if !cc.accountCtx.SetAccountType(req.AccountType) {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "账户类型对当前交易所无效: " + req.AccountType,
			"code":  "INVALID_ACCOUNT_TYPE",
		})
		return
	}
	cc.persist()

	ctx.JSON(http.StatusOK, gin.H{
		"message": "账户类型已切换",
		"data":    cc.accountCtx.Get(),
	})
}

// SwitchPeriodRequest 切换统计周期请求
type SwitchPeriodRequest struct {
	Period      string `json:"period" binding:"required"`
	CustomStart string `json:"customStart"`
	CustomEnd   string `json:"customEnd"`
}

// SwitchPeriod 切换统计周期，只触发汇总重算
func (cc *ContextController) SwitchPeriod(ctx *gin.Context) {
	var req SwitchPeriodRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "请求参数格式错误",
			"code":  "INVALID_PARAMS",
		})
		return
	}

	if !cc.accountCtx.SetPeriod(req.Period, req.CustomStart, req.CustomEnd) {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的统计周期: " + req.Period,
			"code":  "INVALID_PERIOD",
		})
		return
	}
	cc.persist()

	ctx.JSON(http.StatusOK, gin.H{
		"message": "统计周期已切换",
		"data":    cc.accountCtx.Get(),
	})
}

// persist 把当前上下文写入Redis，重启后恢复
func (cc *ContextController) persist() {
	if redis.GlobalRedisClient == nil {
		return
	}
	if err := redis.GlobalRedisClient.SaveAccountContext(cc.accountCtx.Get()); err != nil {
		logrus.Errorf("持久化账户上下文失败: %v", err)
	}
}
