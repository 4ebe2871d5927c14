package servers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"portfolio_sync/apis"
	"portfolio_sync/core"
	"portfolio_sync/pkg/account"
	"portfolio_sync/pkg/config"
	"portfolio_sync/pkg/notifications"
	"portfolio_sync/pkg/websocket"
)

type HTTPServer struct {
	engine *gin.Engine
	server *http.Server
	port   string
}

// NewHTTPServer 创建HTTP服务器
func NewHTTPServer(syncController *core.SyncController, accountCtx *account.Context, dispatcher *notifications.Dispatcher, wsManager *websocket.WebSocketManager) *HTTPServer {
	// 设置Gin模式
	if config.GlobalConfig.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()

	// 设置路由
	apis.SetupRoutes(engine, syncController, accountCtx, dispatcher, wsManager)

	port := config.GlobalConfig.Port

	return &HTTPServer{
		engine: engine,
		port:   port,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: engine,
		},
	}
}

// Start 启动HTTP服务器 (阻塞)
func (s *HTTPServer) Start() error {
	logrus.Infof("HTTP服务器启动在端口 %s", s.port)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP服务器启动失败: %w", err)
	}
	return nil
}

// Shutdown 优雅关闭，等待进行中的请求完成
func (s *HTTPServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logrus.Info("正在关闭HTTP服务器...")
	return s.server.Shutdown(ctx)
}
