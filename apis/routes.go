package apis

import (
	"github.com/gin-gonic/gin"

	"portfolio_sync/controllers"
	"portfolio_sync/core"
	"portfolio_sync/pkg/account"
	"portfolio_sync/pkg/middleware"
	"portfolio_sync/pkg/notifications"
	"portfolio_sync/pkg/websocket"
)

func SetupRoutes(r *gin.Engine, syncController *core.SyncController, accountCtx *account.Context, dispatcher *notifications.Dispatcher, wsManager *websocket.WebSocketManager) {
	// 创建控制器实例
	authController := &controllers.AuthController{}
	portfolioController := controllers.NewPortfolioController(syncController)
	contextController := controllers.NewContextController(accountCtx)
	notificationController := controllers.NewNotificationController(dispatcher)
	configController := controllers.NewConfigController()

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Portfolio Sync API is running",
		})
	})

	// 添加跨域和认证中间件
	r.Use(middleware.Cors())
	r.Use(middleware.AuthMiddleware())

	// WebSocket路由
	r.GET("/ws", wsManager.HandleWebSocket)

	// 认证路由
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/login", authController.Login) // 用户登录
	}

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// 用户信息路由
		user := v1.Group("/user")
		{
			user.GET("/profile", authController.GetProfile) // 获取用户信息
		}

		// 账户数据路由
		portfolio := v1.Group("/portfolio")
		{
			portfolio.GET("/snapshot", portfolioController.GetSnapshot)         // 获取完整快照
			portfolio.GET("/positions", portfolioController.GetPositions)       // 获取持仓列表
			portfolio.GET("/balance", portfolioController.GetBalance)           // 获取账户余额
			portfolio.GET("/orders", portfolioController.GetOrders)             // 获取活动订单
			portfolio.GET("/stats", portfolioController.GetTradeStats)          // 获取交易统计
			portfolio.GET("/summary", portfolioController.GetSummary)           // 获取组合汇总
			portfolio.POST("/refresh", portfolioController.Refresh)             // 手动刷新
			portfolio.POST("/close", portfolioController.ClosePosition)         // 平仓
			portfolio.POST("/close-all", portfolioController.CloseAllPositions) // 一键平仓
			portfolio.POST("/cancel-order", portfolioController.CancelOrder)    // 撤单
		}

		// 账户上下文路由
		context := v1.Group("/context")
		{
			context.GET("", contextController.GetContext)                     // 获取当前上下文
			context.PUT("/exchange", contextController.SwitchExchange)        // 切换交易所
			context.PUT("/account-type", contextController.SwitchAccountType) // 切换账户类型
			context.PUT("/period", contextController.SwitchPeriod)            // 切换统计周期
		}

		// 通知路由
		notificationGroup := v1.Group("/notifications")
		{
			notificationGroup.GET("", notificationController.GetHistory)                  // 获取通知历史
			notificationGroup.GET("/unread-count", notificationController.GetUnreadCount) // 获取未读数
			notificationGroup.PUT("/:id/read", notificationController.MarkRead)           // 标记单条已读
			notificationGroup.PUT("/read-all", notificationController.MarkAllRead)        // 标记全部已读
			notificationGroup.DELETE("", notificationController.ClearAll)                 // 清空历史
			notificationGroup.GET("/preferences", notificationController.GetPreferences)  // 获取偏好
			notificationGroup.PUT("/preferences", notificationController.SetPreference)   // 设置偏好
		}

		// WebSocket统计
		v1.GET("/ws/stats", wsManager.GetStats)

		// 系统配置路由
		v1.GET("/config", configController.GetSystemConfig) // 获取系统配置
	}

	// 未匹配的API路由返回404
	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "API endpoint not found"})
	})
}
