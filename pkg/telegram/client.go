package telegram

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"portfolio_sync/models"
	"portfolio_sync/pkg/config"
)

const (
	MaxMessageLength = 4096 // Telegram单条消息最大长度
)

type TelegramClient struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

var GlobalTelegramClient *TelegramClient

// InitTelegram 初始化Telegram客户端。
// 未配置Token时跳过，通知仍会进入历史，只是不推送。
func InitTelegram() error {
	if config.GlobalConfig.TelegramBotToken == "" {
		logrus.Warn("未配置Telegram Bot Token，跳过Telegram初始化")
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(config.GlobalConfig.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("创建Telegram Bot失败: %v", err)
	}

	bot.Debug = false

	if config.GlobalConfig.TelegramChatID == 0 {
		return fmt.Errorf("未配置Telegram Chat ID")
	}

	GlobalTelegramClient = &TelegramClient{
		bot:    bot,
		chatID: config.GlobalConfig.TelegramChatID,
	}

	logrus.Info("Telegram客户端初始化成功")
	return nil
}

// SendMessage 发送普通文本消息
func (t *TelegramClient) SendMessage(text string) error {
	if t == nil || t.bot == nil {
		return fmt.Errorf("Telegram客户端未初始化")
	}

	if len(text) > MaxMessageLength {
		text = text[:MaxMessageLength]
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	_, err := t.bot.Send(msg)
	if err != nil {
		logrus.Errorf("发送Telegram消息失败: %v", err)
	}
	return err
}

// SendNotification 推送通知。优先级越高前缀越醒目。
func (t *TelegramClient) SendNotification(n *models.Notification) error {
	prefix := priorityPrefix(n.Priority)
	text := fmt.Sprintf("%s %s\n%s\n\n时间: %s",
		prefix, n.Title, n.Message, formatTime(n.Timestamp))
	return t.SendMessage(text)
}

// SendServiceStatus 发送服务状态消息
func (t *TelegramClient) SendServiceStatus(status, message string) error {
	text := fmt.Sprintf("服务状态: %s\n%s\n时间: %s",
		status, message, formatTime(time.Now()))
	return t.SendMessage(text)
}

// SendError 发送错误消息
func (t *TelegramClient) SendError(operation string, err error) error {
	text := fmt.Sprintf("操作失败: %s\n错误: %v\n时间: %s",
		operation, err, formatTime(time.Now()))
	return t.SendMessage(text)
}

func priorityPrefix(priority int) string {
	switch {
	case priority >= models.PriorityCritical:
		return "🚨"
	case priority >= models.PriorityHigh:
		return "⚠️"
	case priority >= models.PriorityMedium:
		return "📢"
	default:
		return "ℹ️"
	}
}

// 获取中国时区
func getChinaLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		logrus.Warnf("无法加载中国时区，使用UTC: %v", err)
		return time.UTC
	}
	return loc
}

func formatTime(t time.Time) string {
	return t.In(getChinaLocation()).Format("2006-01-02 15:04:05")
}
