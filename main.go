package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"portfolio_sync/core"
	"portfolio_sync/pkg/account"
	"portfolio_sync/pkg/config"
	"portfolio_sync/pkg/exchange_factory"
	"portfolio_sync/pkg/notifications"
	"portfolio_sync/pkg/redis"
	"portfolio_sync/pkg/telegram"
	"portfolio_sync/pkg/websocket"
	"portfolio_sync/servers"
)

func main() {
	logrus.SetLevel(logrus.InfoLevel)
	logrus.Info("启动账户同步服务...")

	// 加载配置
	config.LoadConfig()

	// 初始化Redis
	if err := redis.InitRedis(); err != nil {
		if telegram.GlobalTelegramClient != nil {
			telegram.GlobalTelegramClient.SendServiceStatus("error", fmt.Sprintf("Redis初始化失败\n错误: %v\n服务即将停止", err))
		}
		logrus.Fatalf("Redis init fail: %v", err)
	}

	// 初始化Telegram客户端 (未配置时通知只入库不推送)
	if err := telegram.InitTelegram(); err != nil {
		logrus.Errorf("Telegram init fail: %v", err)
	}

	// 恢复上次的账户上下文，没有持久化记录时用配置默认值
	accountCtx := restoreAccountContext()

	// 初始化WebSocket管理器
	wsManager := websocket.NewWebSocketManager()
	wsManager.Start()

	// 初始化通知分发器 (从Redis恢复历史和偏好)
	dispatcher := notifications.NewDispatcher(wsManager)
	wsManager.SetNotificationProvider(func() interface{} {
		return dispatcher.GetHistory()
	})

	// 初始化同步控制器
	factory := exchange_factory.NewExchangeFactory()
	syncController, err := core.NewSyncController(factory, accountCtx, dispatcher)
	if err != nil {
		logrus.Fatalf("同步控制器初始化失败: %v", err)
	}

	// 快照提交后推给WebSocket订阅者，新订阅立即收到最近快照
	wsManager.SetSnapshotProvider(func() interface{} {
		return syncController.GetSnapshot()
	})
	syncController.Subscribe(func(snapshot *core.Snapshot) {
		wsManager.BroadcastSnapshot(snapshot)

		// 提交的快照写入Redis缓存，重启后首个请求不用等首次同步
		if snapshot.State == core.StateReady || snapshot.State == core.StateReadyWithError {
			if err := redis.GlobalRedisClient.CacheSnapshot(snapshot, time.Hour); err != nil {
				logrus.Warnf("缓存快照失败: %v", err)
			}
		}
	})

	// 启动时先做一次全量同步
	go syncController.Refresh()

	// 按配置启动定时刷新
	syncController.StartAutoRefresh(config.GlobalConfig.AutoRefreshInterval)

	// 创建HTTP服务器
	server := servers.NewHTTPServer(syncController, accountCtx, dispatcher, wsManager)
	go func() {
		if err := server.Start(); err != nil {
			logrus.Fatalf("%v", err)
		}
	}()

	if telegram.GlobalTelegramClient != nil {
		telegram.GlobalTelegramClient.SendServiceStatus("started", "账户同步服务已启动")
	}
	logrus.Info("账户同步服务启动完成!")

	gracefulShutdown(server, syncController)
}

// restoreAccountContext 从Redis恢复账户上下文
func restoreAccountContext() *account.Context {
	exchange := config.GlobalConfig.DefaultExchange
	accountType := config.GlobalConfig.DefaultAccountType
	period := config.GlobalConfig.DefaultPeriod

	if redis.GlobalRedisClient != nil {
		var saved account.Snapshot
		if found, err := redis.GlobalRedisClient.LoadAccountContext(&saved); err == nil && found {
			exchange = saved.Exchange
			accountType = saved.AccountType
			period = saved.Period
			logrus.Infof("恢复账户上下文: %s/%s/%s", exchange, accountType, period)
		}
	}

	return account.NewContext(exchange, accountType, period)
}

// gracefulShutdown 优雅关闭
func gracefulShutdown(server *servers.HTTPServer, syncController *core.SyncController) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("收到退出信号，开始关闭...")

	syncController.Stop()

	if err := server.Shutdown(); err != nil {
		logrus.Errorf("HTTP服务器关闭失败: %v", err)
	}

	if redis.GlobalRedisClient != nil {
		if err := redis.GlobalRedisClient.Close(); err != nil {
			logrus.Errorf("Redis关闭失败: %v", err)
		}
	}

	if telegram.GlobalTelegramClient != nil {
		telegram.GlobalTelegramClient.SendServiceStatus("stopped", "账户同步服务已停止")
	}

	logrus.Info("服务已退出")
}
