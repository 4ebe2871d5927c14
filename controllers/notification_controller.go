package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio_sync/pkg/notifications"
)

// NotificationController 通知历史和偏好接口
type NotificationController struct {
	dispatcher *notifications.Dispatcher
}

// NewNotificationController 创建通知控制器
func NewNotificationController(dispatcher *notifications.Dispatcher) *NotificationController {
	return &NotificationController{dispatcher: dispatcher}
}

// GetHistory 获取通知历史 (新的在前)
func (n *NotificationController) GetHistory(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"notifications": n.dispatcher.GetHistory(),
			"unreadCount":   n.dispatcher.UnreadCount(),
		},
	})
}

// GetUnreadCount 获取未读数
func (n *NotificationController) GetUnreadCount(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"unreadCount": n.dispatcher.UnreadCount(),
		},
	})
}

// MarkRead 标记单条已读 (幂等)
func (n *NotificationController) MarkRead(ctx *gin.Context) {
	id := ctx.Param("id")
	if id == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "通知ID不能为空",
			"code":  "INVALID_PARAMS",
		})
		return
	}

	n.dispatcher.MarkRead(id)
	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"unreadCount": n.dispatcher.UnreadCount(),
		},
	})
}

// MarkAllRead 标记全部已读 (幂等)
func (n *NotificationController) MarkAllRead(ctx *gin.Context) {
	n.dispatcher.MarkAllRead()
	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"unreadCount": 0,
		},
	})
}

// ClearAll 清空历史
func (n *NotificationController) ClearAll(ctx *gin.Context) {
	n.dispatcher.ClearAll()
	ctx.JSON(http.StatusOK, gin.H{
		"message": "通知历史已清空",
	})
}

// GetPreferences 获取偏好开关
func (n *NotificationController) GetPreferences(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"data": n.dispatcher.GetPreferences(),
	})
}

// SetPreferenceRequest 偏好设置请求
type SetPreferenceRequest struct {
	Category string `json:"category" binding:"required"`
	Enabled  *bool  `json:"enabled" binding:"required"`
}

// SetPreference 设置分类开关
func (n *NotificationController) SetPreference(ctx *gin.Context) {
	var req SetPreferenceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "请求参数格式错误",
			"code":  "INVALID_PARAMS",
		})
		return
	}

	n.dispatcher.SetPreference(req.Category, *req.Enabled)
	ctx.JSON(http.StatusOK, gin.H{
		"data": n.dispatcher.GetPreferences(),
	})
}
