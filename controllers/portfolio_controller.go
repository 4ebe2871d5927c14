package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"portfolio_sync/core"
	"portfolio_sync/pkg/exchanges"
	"portfolio_sync/pkg/redis"
)

// PortfolioController 账户数据接口，全部读取自最近提交的快照
type PortfolioController struct {
	syncController *core.SyncController
}

// NewPortfolioController 创建账户数据控制器
func NewPortfolioController(syncController *core.SyncController) *PortfolioController {
	return &PortfolioController{syncController: syncController}
}

// GetSnapshot 获取完整快照。
// 首次同步还没完成时回退到Redis缓存的上次快照，避免重启后的空白窗口。
func (p *PortfolioController) GetSnapshot(ctx *gin.Context) {
	snapshot := p.syncController.GetSnapshot()

	if (snapshot.State == core.StateIdle || snapshot.State == core.StateLoading) &&
		len(snapshot.Positions) == 0 && snapshot.Balance == nil &&
		redis.GlobalRedisClient != nil {
		var cached core.Snapshot
		if found, err := redis.GlobalRedisClient.GetCachedSnapshot(&cached); err == nil && found {
			cached.State = snapshot.State
			ctx.JSON(http.StatusOK, gin.H{
				"data":   &cached,
				"cached": true,
			})
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": snapshot,
	})
}

// GetPositions 获取持仓列表
func (p *PortfolioController) GetPositions(ctx *gin.Context) {
	snapshot := p.syncController.GetSnapshot()

	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"positions": snapshot.Positions,
			"totalPnl":  snapshot.TotalUnrealizedPnl(),
			"state":     snapshot.State,
			"error":     snapshot.Errors[core.CollectionPositions],
		},
	})
}

// GetBalance 获取账户余额
func (p *PortfolioController) GetBalance(ctx *gin.Context) {
	snapshot := p.syncController.GetSnapshot()

	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"balance": snapshot.Balance,
			"state":   snapshot.State,
			"error":   snapshot.Errors[core.CollectionBalance],
		},
	})
}

// GetOrders 获取活动订单
func (p *PortfolioController) GetOrders(ctx *gin.Context) {
	snapshot := p.syncController.GetSnapshot()

	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"orders": snapshot.Orders,
			"state":  snapshot.State,
			"error":  snapshot.Errors[core.CollectionOrders],
		},
	})
}

// GetTradeStats 获取交易统计
func (p *PortfolioController) GetTradeStats(ctx *gin.Context) {
	snapshot := p.syncController.GetSnapshot()

	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"tradeStats": snapshot.TradeStats,
			"state":      snapshot.State,
			"error":      snapshot.Errors[core.CollectionTradeStats],
		},
	})
}

// GetSummary 获取组合汇总
func (p *PortfolioController) GetSummary(ctx *gin.Context) {
	snapshot := p.syncController.GetSnapshot()

	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"summary": snapshot.Summary,
			"period":  snapshot.Context.Period,
			"state":   snapshot.State,
			"error":   snapshot.Errors[core.CollectionSummary],
		},
	})
}

// Refresh 手动触发全量刷新
func (p *PortfolioController) Refresh(ctx *gin.Context) {
	go p.syncController.Refresh()

	ctx.JSON(http.StatusOK, gin.H{
		"message": "刷新已触发",
	})
}

// ========== 变更操作 ==========

// ClosePositionRequest 平仓请求
type ClosePositionRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Side   string `json:"side" binding:"required"`
}

// ClosePosition 平掉指定持仓
func (p *PortfolioController) ClosePosition(ctx *gin.Context) {
	var req ClosePositionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "请求参数格式错误",
			"code":  "INVALID_PARAMS",
		})
		return
	}

	side := exchanges.NormalizeSide(req.Side)
	if err := p.syncController.ClosePosition(ctx.Request.Context(), req.Symbol, side); err != nil {
		respondOperationError(ctx, "平仓失败", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "平仓指令已提交",
	})
}

// CloseAllPositions 平掉所有持仓
func (p *PortfolioController) CloseAllPositions(ctx *gin.Context) {
	if err := p.syncController.CloseAllPositions(ctx.Request.Context()); err != nil {
		respondOperationError(ctx, "一键平仓失败", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "一键平仓指令已提交",
	})
}

// CancelOrderRequest 撤单请求
type CancelOrderRequest struct {
	Symbol  string `json:"symbol" binding:"required"`
	OrderID string `json:"orderId" binding:"required"`
}

// CancelOrder 撤销订单
func (p *PortfolioController) CancelOrder(ctx *gin.Context) {
	var req CancelOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "请求参数格式错误",
			"code":  "INVALID_PARAMS",
		})
		return
	}

	if err := p.syncController.CancelOrder(ctx.Request.Context(), req.Symbol, req.OrderID); err != nil {
		respondOperationError(ctx, "撤单失败", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "撤单指令已提交",
	})
}

// respondOperationError 按错误类别映射HTTP状态码。
// 逻辑错误返回404并提示用户，传输错误返回502。
func respondOperationError(ctx *gin.Context, operation string, err error) {
	logrus.Warnf("%s: %v", operation, err)

	status := http.StatusInternalServerError
	code := "OPERATION_FAILED"

	switch {
	case exchanges.IsLogicError(err):
		status = http.StatusNotFound
		code = "NOT_FOUND"
	case exchanges.IsTransportError(err):
		status = http.StatusBadGateway
		code = "EXCHANGE_UNAVAILABLE"
	}

	ctx.JSON(status, gin.H{
		"error":   operation,
		"details": err.Error(),
		"code":    code,
	})
}
