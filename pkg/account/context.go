package account

import (
	"sync"

	"github.com/sirupsen/logrus"

	"portfolio_sync/pkg/exchanges/types"
)

// ========== 账户上下文 ==========

// Context 当前选中的交易所/账户类型/统计周期。
// 任何一项变化都会触发订阅者回调，由同步层决定刷新范围。
type Context struct {
	mutex sync.RWMutex

	exchange    string
	accountType string
	period      string
	customStart string // 自定义周期起始 (YYYY-MM-DD)
	customEnd   string // 自定义周期结束

	subscribers []func(Snapshot)
}

// Snapshot 上下文的不可变快照
type Snapshot struct {
	Exchange    string `json:"exchange"`
	AccountType string `json:"accountType"`
	Period      string `json:"period"`
	CustomStart string `json:"customStart,omitempty"`
	CustomEnd   string `json:"customEnd,omitempty"`
}

// NewContext 创建账户上下文。
// accountType 为空或对该交易所无效时回退到交易所默认值。
func NewContext(exchange, accountType, period string) *Context {
	if !types.IsValidAccountType(exchange, accountType) {
		accountType = types.DefaultAccountTypes[exchange]
	}
	if !types.IsValidPeriod(period) {
		period = types.Period1W
	}

	return &Context{
		exchange:    exchange,
		accountType: accountType,
		period:      period,
	}
}

// Subscribe 注册上下文变化回调。
// 回调在持锁之外执行，允许订阅者回头读取上下文。
func (c *Context) Subscribe(fn func(Snapshot)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Get 获取当前快照
func (c *Context) Get() Snapshot {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.snapshotLocked()
}

func (c *Context) snapshotLocked() Snapshot {
	return Snapshot{
		Exchange:    c.exchange,
		AccountType: c.accountType,
		Period:      c.period,
		CustomStart: c.customStart,
		CustomEnd:   c.customEnd,
	}
}

// ========== 上下文变更 ==========

// SetExchange 切换交易所。
// 当前账户类型对新交易所无效时自动切到新交易所的默认账户类型。
func (c *Context) SetExchange(exchange string) {
	c.mutex.Lock()

	if c.exchange == exchange {
		c.mutex.Unlock()
		return
	}

	c.exchange = exchange
	if !types.IsValidAccountType(exchange, c.accountType) {
		old := c.accountType
		c.accountType = types.DefaultAccountTypes[exchange]
		logrus.Infof("账户类型 %s 对 %s 无效，回退到 %s", old, exchange, c.accountType)
	}

	snapshot := c.snapshotLocked()
	subscribers := c.subscribersLocked()
	c.mutex.Unlock()

	c.notify(subscribers, snapshot)
}

// SetAccountType 切换账户类型，对当前交易所无效的值被拒绝
func (c *Context) SetAccountType(accountType string) bool {
	c.mutex.Lock()

	if !types.IsValidAccountType(c.exchange, accountType) {
		c.mutex.Unlock()
		logrus.Warnf("账户类型 %s 对 %s 无效，忽略", accountType, c.exchange)
		return false
	}

	if c.accountType == accountType {
		c.mutex.Unlock()
		return true
	}

	c.accountType = accountType
	snapshot := c.snapshotLocked()
	subscribers := c.subscribersLocked()
	c.mutex.Unlock()

	c.notify(subscribers, snapshot)
	return true
}

// SetPeriod 切换统计周期。自定义周期需要同时给出起止日期。
func (c *Context) SetPeriod(period, customStart, customEnd string) bool {
	if !types.IsValidPeriod(period) {
		logrus.Warnf("无效的统计周期: %s", period)
		return false
	}
	if period == types.PeriodCustom && (customStart == "" || customEnd == "") {
		logrus.Warn("自定义周期缺少起止日期")
		return false
	}

	c.mutex.Lock()

	if c.period == period && c.customStart == customStart && c.customEnd == customEnd {
		c.mutex.Unlock()
		return true
	}

	c.period = period
	c.customStart = customStart
	c.customEnd = customEnd
	snapshot := c.snapshotLocked()
	subscribers := c.subscribersLocked()
	c.mutex.Unlock()

	c.notify(subscribers, snapshot)
	return true
}

func (c *Context) subscribersLocked() []func(Snapshot) {
	subscribers := make([]func(Snapshot), len(c.subscribers))
	copy(subscribers, c.subscribers)
	return subscribers
}

func (c *Context) notify(subscribers []func(Snapshot), snapshot Snapshot) {
	for _, fn := range subscribers {
		fn(snapshot)
	}
}
