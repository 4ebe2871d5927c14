package websocket

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"portfolio_sync/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该检查Origin
		return true
	},
}

// WebSocketManager WebSocket管理器
type WebSocketManager struct {
	hub *Hub
}

// NewWebSocketManager 创建WebSocket管理器
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		hub: NewHub(),
	}
}

// Start 启动WebSocket管理器
func (wsm *WebSocketManager) Start() {
	go wsm.hub.Run()
}

// HandleWebSocket 处理WebSocket连接
func (wsm *WebSocketManager) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("WebSocket升级失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "WebSocket升级失败",
			"details": err.Error(),
		})
		return
	}

	clientID := fmt.Sprintf("client_%d_%s", time.Now().UnixNano(), c.ClientIP())
	client := NewClient(wsm.hub, conn, clientID)

	wsm.hub.register <- client
	client.StartClient()

	logrus.WithFields(logrus.Fields{
		"clientId":   clientID,
		"remoteAddr": c.Request.RemoteAddr,
	}).Info("WebSocket连接已建立")
}

// GetStats 获取WebSocket统计信息
func (wsm *WebSocketManager) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   wsm.hub.GetStats(),
	})
}

// GetHub 获取Hub实例
func (wsm *WebSocketManager) GetHub() *Hub {
	return wsm.hub
}

// SetSnapshotProvider 注册快照提供方，新订阅立即收到最近提交的快照
func (wsm *WebSocketManager) SetSnapshotProvider(provider func() interface{}) {
	wsm.hub.SetProvider(DataTypeSnapshot, provider)
}

// SetNotificationProvider 注册通知历史提供方
func (wsm *WebSocketManager) SetNotificationProvider(provider func() interface{}) {
	wsm.hub.SetProvider(DataTypeNotifications, provider)
}

// BroadcastSnapshot 广播提交的快照
func (wsm *WebSocketManager) BroadcastSnapshot(snapshot interface{}) {
	wsm.hub.BroadcastToSubscribers(DataTypeSnapshot, snapshot)
}

// BroadcastNotification 广播单条通知 (notifications.Broadcaster 实现)
func (wsm *WebSocketManager) BroadcastNotification(notification *models.Notification) {
	wsm.hub.BroadcastToSubscribers(DataTypeNotifications, notification)
}
