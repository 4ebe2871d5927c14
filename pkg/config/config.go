package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// 服务配置
	LogLevel string
	Port     string

	// 账户上下文默认值
	DefaultExchange    string // 默认交易所: bybit, binance
	DefaultAccountType string // 默认账户类型，空值时用交易所默认
	DefaultPeriod      string // 默认统计周期

	// 交易所凭证
	BybitAPIKey   string
	BybitSecret   string
	BinanceAPIKey string
	BinanceSecret string

	// 同步配置
	AutoRefreshInterval time.Duration // 自动刷新间隔，0表示关闭
	FetchTimeout        time.Duration // 单次同步周期超时

	// 认证配置
	AdminUsername string // 管理员用户名
	AdminPassword string // 管理员密码
	JWTSecret     string // JWT密钥

	// Telegram配置
	TelegramBotToken string
	TelegramChatID   int64
}

var GlobalConfig *Config

func LoadConfig() {
	// 加载.env文件
	if err := godotenv.Load(); err != nil {
		logrus.Warn("未找到.env文件，使用环境变量")
	}

	GlobalConfig = &Config{
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Port:          getEnv("PORT", "8081"),

		DefaultExchange:    getEnv("DEFAULT_EXCHANGE", "bybit"), // 默认使用 bybit
		DefaultAccountType: getEnv("DEFAULT_ACCOUNT_TYPE", ""),
		DefaultPeriod:      getEnv("DEFAULT_PERIOD", "1w"),

		BybitAPIKey:   getEnv("BYBIT_API_KEY", ""),
		BybitSecret:   getEnv("BYBIT_SECRET", ""),
		BinanceAPIKey: getEnv("BINANCE_API_KEY", ""),
		BinanceSecret: getEnv("BINANCE_SECRET", ""),

		AutoRefreshInterval: getEnvDuration("AUTO_REFRESH_INTERVAL", "0s"), // 默认关闭
		FetchTimeout:        getEnvDuration("FETCH_TIMEOUT", "30s"),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		JWTSecret:     getEnv("JWT_SECRET", "d4f8c1b2e3f4a5b6c7d8e9f0a1b2c3d4e5f6g7h8i9j0k1l2m3n4o5p6q7r8s9t0"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),
	}

	// 设置日志级别
	level, err := logrus.ParseLevel(GlobalConfig.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	logrus.Info("配置加载完成")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.Warnf("无法解析环境变量 %s 的时间间隔值: %s，使用默认值: %s", key, value, defaultValue)
	}

	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}

	logrus.Errorf("无法解析默认时间间隔值: %s，使用30秒", defaultValue)
	return 30 * time.Second
}
