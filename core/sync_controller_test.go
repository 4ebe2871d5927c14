package core

import (
	"context"
	"testing"
	"time"

	"portfolio_sync/pkg/account"
	"portfolio_sync/pkg/exchanges"
	"portfolio_sync/pkg/exchanges/types"
)

// fakeExchange 可编程的交易所桩
type fakeExchange struct {
	positions    []map[string]interface{}
	balance      map[string]interface{}
	orders       []map[string]interface{}
	stats        map[string]interface{}
	summary      map[string]interface{}
	positionsErr error
	balanceErr   error

	closeAllErr error
	closeErr    error
	cancelErr   error

	fetchPositionsCalls int
	closeAllCalls       int
}

func (f *fakeExchange) GetID() string          { return types.ExchangeBybit }
func (f *fakeExchange) GetName() string        { return "Fake" }
func (f *fakeExchange) GetAccountType() string { return types.AccountTypeDemo }

func (f *fakeExchange) FetchPositions(ctx context.Context) ([]map[string]interface{}, error) {
	f.fetchPositionsCalls++
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	return f.positions, nil
}

func (f *fakeExchange) FetchBalance(ctx context.Context) (map[string]interface{}, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeExchange) FetchOrders(ctx context.Context) ([]map[string]interface{}, error) {
	return f.orders, nil
}

func (f *fakeExchange) FetchTradeStats(ctx context.Context) (map[string]interface{}, error) {
	return f.stats, nil
}

func (f *fakeExchange) FetchPortfolioSummary(ctx context.Context, period, customStart, customEnd string) (map[string]interface{}, error) {
	return f.summary, nil
}

func (f *fakeExchange) ClosePosition(ctx context.Context, symbol, side string) (map[string]interface{}, error) {
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	return map[string]interface{}{"success": true}, nil
}

func (f *fakeExchange) CloseAllPositions(ctx context.Context) (map[string]interface{}, error) {
	f.closeAllCalls++
	if f.closeAllErr != nil {
		return nil, f.closeAllErr
	}
	return map[string]interface{}{"success": true}, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) (map[string]interface{}, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return map[string]interface{}{"success": true}, nil
}

func newTestController(fake *fakeExchange) *SyncController {
	accountCtx := account.NewContext(types.ExchangeBybit, types.AccountTypeDemo, types.Period1W)
	return &SyncController{
		accountCtx:   accountCtx,
		client:       fake,
		current:      NewSnapshot(accountCtx.Get()),
		fetchTimeout: 5 * time.Second,
		stopRefresh:  make(chan struct{}),
	}
}

func defaultFake() *fakeExchange {
	return &fakeExchange{
		positions: []map[string]interface{}{
			{"symbol": "BTCUSDT", "side": "Buy", "size": 1.0, "pnl": 100.0},
			{"symbol": "ETHUSDT", "side": "Sell", "size": 2.0, "pnl": -20.0},
		},
		balance: map[string]interface{}{"equity": 1000.0, "available": 400.0},
		orders:  []map[string]interface{}{{"symbol": "BTCUSDT", "side": "BUY", "order_id": "o-1"}},
		stats:   map[string]interface{}{"total_trades": 5, "win_trades": 3, "total_pnl": 80.0},
		summary: map[string]interface{}{"futures": map[string]interface{}{"total_value": 1000.0, "pnl": 80.0}},
	}
}

// ========== 同步周期测试 ==========

func TestRefreshCommitsFullSnapshot(t *testing.T) {
	fake := defaultFake()
	sc := newTestController(fake)

	sc.Refresh()

	snapshot := sc.GetSnapshot()
	if snapshot.State != StateReady {
		t.Fatalf("状态错误: 期望 %s, 实际 %s", StateReady, snapshot.State)
	}
	if len(snapshot.Positions) != 2 {
		t.Errorf("持仓数量错误: 期望 2, 实际 %d", len(snapshot.Positions))
	}
	if snapshot.Balance == nil || snapshot.Balance.PositionMargin != 600.0 {
		t.Error("余额归一化结果错误")
	}
	if len(snapshot.Orders) != 1 {
		t.Errorf("订单数量错误: 期望 1, 实际 %d", len(snapshot.Orders))
	}
	if snapshot.TradeStats == nil || snapshot.TradeStats.WinRate != 0.6 {
		t.Error("交易统计推导胜率错误")
	}
	if snapshot.HasErrors() {
		t.Errorf("无错误周期不应带错误标记: %v", snapshot.Errors)
	}
}

func TestPartialFailureKeepsLastKnownGood(t *testing.T) {
	fake := defaultFake()
	sc := newTestController(fake)

	// 先做一次成功的全量同步
	sc.Refresh()
	firstBalance := sc.GetSnapshot().Balance
	if firstBalance == nil {
		t.Fatal("首次同步应有余额数据")
	}

	// 第二次余额拉取失败，其他集合正常
	fake.balanceErr = exchanges.NewNetworkError("connection refused")
	fake.positions = fake.positions[:1]
	sc.Refresh()

	snapshot := sc.GetSnapshot()
	if snapshot.State != StateReadyWithError {
		t.Fatalf("状态错误: 期望 %s, 实际 %s", StateReadyWithError, snapshot.State)
	}
	if snapshot.Balance != firstBalance {
		t.Error("失败的集合应保留上次有效数据")
	}
	if snapshot.Errors[CollectionBalance] == "" {
		t.Error("失败的集合应带错误标记")
	}
	// 成功的集合照常更新
	if len(snapshot.Positions) != 1 {
		t.Errorf("成功集合未更新: 期望 1 条持仓, 实际 %d", len(snapshot.Positions))
	}
}

func TestStaleCycleResultDiscarded(t *testing.T) {
	fake := defaultFake()
	sc := newTestController(fake)
	ctxSnapshot := sc.accountCtx.Get()

	// 周期1的拉取结果
	sc.generation = 1
	result1 := sc.fetchAll(context.Background(), fake, ctxSnapshot, true)

	// 周期2在周期1提交前发起并完成
	fake.positions = []map[string]interface{}{
		{"symbol": "SOLUSDT", "side": "Buy", "size": 5.0},
	}
	sc.generation = 2
	result2 := sc.fetchAll(context.Background(), fake, ctxSnapshot, true)
	sc.commit(2, ctxSnapshot, result2)

	committed := sc.GetSnapshot()
	if len(committed.Positions) != 1 || committed.Positions[0].Symbol != "SOLUSDT" {
		t.Fatal("周期2的结果应已提交")
	}

	// 周期1的结果迟到，必须被整体丢弃
	sc.commit(1, ctxSnapshot, result1)

	snapshot := sc.GetSnapshot()
	if snapshot.Generation != 2 {
		t.Errorf("过期周期不应覆盖代号: 实际 %d", snapshot.Generation)
	}
	if len(snapshot.Positions) != 1 || snapshot.Positions[0].Symbol != "SOLUSDT" {
		t.Error("过期周期的结果不应被提交 (last-context-wins)")
	}
}

func TestSubscriberReceivesCommits(t *testing.T) {
	fake := defaultFake()
	sc := newTestController(fake)

	var states []string
	sc.Subscribe(func(s *Snapshot) {
		states = append(states, s.State)
	})

	// 注册时立即收到当前快照
	if len(states) != 1 || states[0] != StateIdle {
		t.Fatalf("注册时应收到初始快照: %v", states)
	}

	sc.Refresh()

	// 加载态和提交态各广播一次
	if len(states) != 3 {
		t.Fatalf("广播次数错误: 期望 3, 实际 %d (%v)", len(states), states)
	}
	if states[1] != StateLoading || states[2] != StateReady {
		t.Errorf("广播顺序错误: %v", states)
	}
}

// ========== 变更操作测试 ==========

func TestCloseAllFailureRetainsPositions(t *testing.T) {
	fake := defaultFake()
	sc := newTestController(fake)

	sc.Refresh()
	before := len(sc.GetSnapshot().Positions)

	// 一键平仓在传输层失败
	fake.closeAllErr = exchanges.NewExchangeNotAvailable("bad gateway")
	err := sc.CloseAllPositions(context.Background())
	if err == nil {
		t.Fatal("传输层失败应返回错误")
	}

	// 持仓集合保留调用前的值，且已无条件重新拉取
	snapshot := sc.GetSnapshot()
	if len(snapshot.Positions) != before {
		t.Errorf("失败的平仓不应改变持仓: 期望 %d, 实际 %d", before, len(snapshot.Positions))
	}
	if fake.fetchPositionsCalls < 2 {
		t.Error("变更操作后应无条件重新拉取")
	}
}

func TestCloseAllSuccessTriggersRefetch(t *testing.T) {
	fake := defaultFake()
	sc := newTestController(fake)

	sc.Refresh()

	// 平仓成功后远端已无持仓，重新拉取应反映远端状态
	fake.positions = nil
	if err := sc.CloseAllPositions(context.Background()); err != nil {
		t.Fatalf("平仓失败: %v", err)
	}

	if len(sc.GetSnapshot().Positions) != 0 {
		t.Error("平仓后的快照应来自重新拉取，而非本地推算")
	}
}

func TestCancelOrderRejectsSyntheticID(t *testing.T) {
	fake := defaultFake()
	sc := newTestController(fake)

	err := sc.CancelOrder(context.Background(), "BTCUSDT", "unknown_BTCUSDT_BUY")
	if err == nil {
		t.Fatal("合成订单ID应被拒绝")
	}
	if !exchanges.IsLogicError(err) {
		t.Errorf("合成ID撤单应是逻辑错误: %T", err)
	}
	if fake.fetchPositionsCalls != 0 {
		t.Error("被拒绝的撤单不应触发远端调用")
	}
}

func TestRefreshSummaryOnlyTouchesSummary(t *testing.T) {
	fake := defaultFake()
	sc := newTestController(fake)

	sc.Refresh()
	positionsBefore := sc.GetSnapshot().Positions
	callsBefore := fake.fetchPositionsCalls

	// 周期切换只重算汇总
	fake.summary = map[string]interface{}{
		"futures": map[string]interface{}{"total_value": 2000.0, "pnl": 300.0},
	}
	sc.RefreshSummary()

	snapshot := sc.GetSnapshot()
	if fake.fetchPositionsCalls != callsBefore {
		t.Error("汇总刷新不应重新拉取持仓")
	}
	if len(snapshot.Positions) != len(positionsBefore) {
		t.Error("汇总刷新应继承现有持仓数据")
	}
	if snapshot.Summary == nil || snapshot.Summary.Futures.TotalValue != 2000.0 {
		t.Error("汇总数据未更新")
	}
}
