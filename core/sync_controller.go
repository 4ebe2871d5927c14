package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"portfolio_sync/pkg/account"
	"portfolio_sync/pkg/config"
	"portfolio_sync/pkg/exchange_factory"
	"portfolio_sync/pkg/exchanges"
	"portfolio_sync/pkg/exchanges/types"
)

// Notifier 同步层的事件出口，由通知分发器实现
type Notifier interface {
	Publish(notificationType, title, message string, data map[string]interface{})
}

// SyncController 账户数据同步控制器。
// 监听账户上下文变化，并行拉取各数据集合，原子提交完整快照。
type SyncController struct {
	factory    *exchange_factory.ExchangeFactory
	accountCtx *account.Context
	notifier   Notifier

	mutex   sync.RWMutex
	client  exchange_factory.ExchangeInterface
	current *Snapshot
	// 最后发起的同步周期代号，旧周期的结果到达后直接丢弃
	generation uint64

	listeners []func(*Snapshot)

	fetchTimeout time.Duration
	stopRefresh  chan struct{}
	refreshOnce  sync.Once
}

// NewSyncController 创建同步控制器并订阅上下文变化
func NewSyncController(factory *exchange_factory.ExchangeFactory, accountCtx *account.Context, notifier Notifier) (*SyncController, error) {
	ctxSnapshot := accountCtx.Get()

	client, err := factory.CreateExchange(ctxSnapshot.Exchange, ctxSnapshot.AccountType)
	if err != nil {
		return nil, fmt.Errorf("创建交易所客户端失败: %w", err)
	}

	sc := &SyncController{
		factory:      factory,
		accountCtx:   accountCtx,
		notifier:     notifier,
		client:       client,
		current:      NewSnapshot(ctxSnapshot),
		fetchTimeout: 30 * time.Second,
		stopRefresh:  make(chan struct{}),
	}

	if config.GlobalConfig != nil && config.GlobalConfig.FetchTimeout > 0 {
		sc.fetchTimeout = config.GlobalConfig.FetchTimeout
	}

	accountCtx.Subscribe(sc.onContextChange)
	return sc, nil
}

// Subscribe 注册快照提交回调。注册时立即推送当前快照。
func (sc *SyncController) Subscribe(fn func(*Snapshot)) {
	sc.mutex.Lock()
	sc.listeners = append(sc.listeners, fn)
	snapshot := sc.current
	sc.mutex.Unlock()

	fn(snapshot)
}

// GetSnapshot 获取最近提交的快照
func (sc *SyncController) GetSnapshot() *Snapshot {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.current
}

// onContextChange 上下文变化的级联刷新。
// 交易所/账户类型变化重建客户端并全量刷新，周期变化只重算汇总。
func (sc *SyncController) onContextChange(ctxSnapshot account.Snapshot) {
	sc.mutex.Lock()
	rebuilt := false
	if sc.client == nil ||
		sc.client.GetID() != ctxSnapshot.Exchange ||
		sc.client.GetAccountType() != ctxSnapshot.AccountType {
		client, err := sc.factory.CreateExchange(ctxSnapshot.Exchange, ctxSnapshot.AccountType)
		if err != nil {
			sc.mutex.Unlock()
			logrus.Errorf("切换交易所客户端失败: %v", err)
			return
		}
		sc.client = client
		rebuilt = true
	}
	sc.mutex.Unlock()

	if rebuilt {
		go sc.Refresh()
	} else {
		go sc.RefreshSummary()
	}
}

// ========== 同步周期 ==========

// Refresh 全量刷新所有数据集合
func (sc *SyncController) Refresh() {
	sc.runCycle(true)
}

// RefreshData 刷新账户数据 (持仓/余额/订单/统计)，不重算汇总之外的集合。
// 汇总随周期上下文变化，这里一并刷新保持一致。
func (sc *SyncController) RefreshData() {
	sc.runCycle(true)
}

// RefreshSummary 只重算组合汇总 (统计周期变化时)
func (sc *SyncController) RefreshSummary() {
	sc.runCycle(false)
}

// runCycle 执行一次同步周期。
// full=false 时只拉取汇总集合，其余集合从当前快照继承。
func (sc *SyncController) runCycle(full bool) {
	sc.mutex.Lock()
	sc.generation++
	generation := sc.generation
	client := sc.client
	ctxSnapshot := sc.accountCtx.Get()

	// 进入加载态，保留现有数据 (stale-while-revalidate)
	loading := sc.current.Clone()
	loading.State = StateLoading
	loading.Context = ctxSnapshot
	loading.Generation = generation
	sc.current = loading
	listeners := sc.listenersLocked()
	sc.mutex.Unlock()

	sc.broadcast(listeners, loading)

	ctx, cancel := context.WithTimeout(context.Background(), sc.fetchTimeout)
	defer cancel()

	result := sc.fetchAll(ctx, client, ctxSnapshot, full)

	sc.commit(generation, ctxSnapshot, result)
}

// fetchResult 一次周期中各集合的拉取结果
type fetchResult struct {
	positions  []*types.Position
	balance    *types.Balance
	orders     []*types.Order
	tradeStats *types.TradeStats
	summary    *types.PortfolioSummary
	errors     map[string]string
	fetched    map[string]bool
}

// fetchAll 并行拉取各集合，单个集合失败不影响其他集合
func (sc *SyncController) fetchAll(ctx context.Context, client exchange_factory.ExchangeInterface, ctxSnapshot account.Snapshot, full bool) *fetchResult {
	result := &fetchResult{
		errors:  make(map[string]string),
		fetched: make(map[string]bool),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	record := func(collection string, err error, apply func()) {
		mu.Lock()
		defer mu.Unlock()
		result.fetched[collection] = true
		if err != nil {
			result.errors[collection] = err.Error()
			logrus.Warnf("拉取 %s 失败: %v", collection, err)
			return
		}
		apply()
	}

	if full {
		wg.Add(4)

		go func() {
			defer wg.Done()
			raw, err := client.FetchPositions(ctx)
			var positions []*types.Position
			if err == nil {
				positions = exchanges.ParsePositions(raw, ctxSnapshot.Exchange, ctxSnapshot.AccountType)
			}
			record(CollectionPositions, err, func() { result.positions = positions })
		}()

		go func() {
			defer wg.Done()
			raw, err := client.FetchBalance(ctx)
			var balance *types.Balance
			if err == nil {
				balance = exchanges.ParseBalance(raw)
			}
			record(CollectionBalance, err, func() { result.balance = balance })
		}()

		go func() {
			defer wg.Done()
			raw, err := client.FetchOrders(ctx)
			var orders []*types.Order
			if err == nil {
				orders = exchanges.ParseOrders(raw)
			}
			record(CollectionOrders, err, func() { result.orders = orders })
		}()

		go func() {
			defer wg.Done()
			raw, err := client.FetchTradeStats(ctx)
			var stats *types.TradeStats
			if err == nil {
				stats = exchanges.ParseTradeStats(raw)
			}
			record(CollectionTradeStats, err, func() { result.tradeStats = stats })
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		raw, err := client.FetchPortfolioSummary(ctx, ctxSnapshot.Period, ctxSnapshot.CustomStart, ctxSnapshot.CustomEnd)
		var summary *types.PortfolioSummary
		if err == nil {
			summary = exchanges.ParsePortfolioSummary(raw, ctxSnapshot.Period, ctxSnapshot.CustomStart, ctxSnapshot.CustomEnd)
		}
		record(CollectionSummary, err, func() { result.summary = summary })
	}()

	wg.Wait()
	return result
}

// commit 原子提交周期结果。
// 代号不匹配说明已有更新的周期发起，本次结果整体丢弃。
func (sc *SyncController) commit(generation uint64, ctxSnapshot account.Snapshot, result *fetchResult) {
	sc.mutex.Lock()

	if generation != sc.generation {
		sc.mutex.Unlock()
		logrus.Debugf("丢弃过期的同步结果 (周期 %d, 当前 %d)", generation, sc.generation)
		return
	}

	next := sc.current.Clone()
	next.Context = ctxSnapshot
	next.Generation = generation
	next.UpdatedAt = time.Now()
	next.Errors = make(map[string]string)

	// 成功的集合用新数据，失败的集合保留上次有效数据并标记错误
	if result.fetched[CollectionPositions] {
		if msg, failed := result.errors[CollectionPositions]; failed {
			next.Errors[CollectionPositions] = msg
		} else {
			next.Positions = result.positions
		}
	}
	if result.fetched[CollectionBalance] {
		if msg, failed := result.errors[CollectionBalance]; failed {
			next.Errors[CollectionBalance] = msg
		} else {
			next.Balance = result.balance
		}
	}
	if result.fetched[CollectionOrders] {
		if msg, failed := result.errors[CollectionOrders]; failed {
			next.Errors[CollectionOrders] = msg
		} else {
			next.Orders = result.orders
		}
	}
	if result.fetched[CollectionTradeStats] {
		if msg, failed := result.errors[CollectionTradeStats]; failed {
			next.Errors[CollectionTradeStats] = msg
		} else {
			next.TradeStats = result.tradeStats
		}
	}
	if result.fetched[CollectionSummary] {
		if msg, failed := result.errors[CollectionSummary]; failed {
			next.Errors[CollectionSummary] = msg
		} else {
			next.Summary = result.summary
		}
	}

	if next.HasErrors() {
		next.State = StateReadyWithError
	} else {
		next.State = StateReady
	}

	sc.current = next
	listeners := sc.listenersLocked()
	sc.mutex.Unlock()

	sc.broadcast(listeners, next)

	if next.HasErrors() && sc.notifier != nil {
		for collection, msg := range next.Errors {
			sc.notifier.Publish("sync_error", "数据同步失败",
				fmt.Sprintf("%s 同步失败: %s", collection, msg),
				map[string]interface{}{"collection": collection})
		}
	}
}

func (sc *SyncController) listenersLocked() []func(*Snapshot) {
	listeners := make([]func(*Snapshot), len(sc.listeners))
	copy(listeners, sc.listeners)
	return listeners
}

func (sc *SyncController) broadcast(listeners []func(*Snapshot), snapshot *Snapshot) {
	for _, fn := range listeners {
		fn(snapshot)
	}
}

// ========== 变更操作 ==========
// 变更成功与否都无条件重新拉取，本地不推算远端结果。

// ClosePosition 平掉指定持仓
func (sc *SyncController) ClosePosition(ctx context.Context, symbol, side string) error {
	sc.mutex.RLock()
	client := sc.client
	sc.mutex.RUnlock()

	raw, err := client.ClosePosition(ctx, symbol, side)
	sc.RefreshData()

	if err != nil {
		logrus.Errorf("平仓失败 %s %s: %v", symbol, side, err)
		return err
	}
	if ack := exchanges.ParseAck(raw); ack.Message != "" {
		logrus.Infof("平仓确认 %s %s: %s", symbol, side, ack.Message)
	}

	if sc.notifier != nil {
		sc.notifier.Publish("trade_closed", "持仓已平仓",
			fmt.Sprintf("%s %s 平仓指令已提交", symbol, side),
			map[string]interface{}{"symbol": symbol, "side": side})
	}
	return nil
}

// CloseAllPositions 平掉所有持仓
func (sc *SyncController) CloseAllPositions(ctx context.Context) error {
	sc.mutex.RLock()
	client := sc.client
	sc.mutex.RUnlock()

	raw, err := client.CloseAllPositions(ctx)
	sc.RefreshData()

	if err != nil {
		logrus.Errorf("一键平仓失败: %v", err)
		return err
	}
	if ack := exchanges.ParseAck(raw); ack.Message != "" {
		logrus.Infof("一键平仓确认: %s", ack.Message)
	}

	if sc.notifier != nil {
		sc.notifier.Publish("trade_closed", "全部持仓已平仓", "一键平仓指令已提交", nil)
	}
	return nil
}

// CancelOrder 撤销订单。合成占位ID没有远端对应物，直接拒绝。
func (sc *SyncController) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if types.IsSyntheticOrderID(orderID) {
		return exchanges.NewOrderNotFound(orderID)
	}

	sc.mutex.RLock()
	client := sc.client
	sc.mutex.RUnlock()

	_, err := client.CancelOrder(ctx, symbol, orderID)
	sc.RefreshData()

	if err != nil {
		logrus.Errorf("撤单失败 %s: %v", orderID, err)
		return err
	}
	return nil
}

// ========== 自动刷新 ==========

// StartAutoRefresh 启动定时全量刷新，interval<=0 时不启动
func (sc *SyncController) StartAutoRefresh(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logrus.Infof("自动刷新已启动，间隔 %s", interval)
		for {
			select {
			case <-ticker.C:
				sc.Refresh()
			case <-sc.stopRefresh:
				logrus.Info("自动刷新已停止")
				return
			}
		}
	}()
}

// Stop 停止后台刷新
func (sc *SyncController) Stop() {
	sc.refreshOnce.Do(func() {
		close(sc.stopRefresh)
	})
}
