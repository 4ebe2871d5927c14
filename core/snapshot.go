package core

import (
	"time"

	"portfolio_sync/pkg/account"
	"portfolio_sync/pkg/exchanges/types"
)

// ========== 同步状态 ==========

const (
	StateIdle           = "idle"
	StateLoading        = "loading"
	StateReady          = "ready"
	StateReadyWithError = "ready_with_error" // 展示上次数据，同时带错误标记
)

// 数据集合名称，错误标记按集合粒度记录
const (
	CollectionPositions  = "positions"
	CollectionBalance    = "balance"
	CollectionOrders     = "orders"
	CollectionTradeStats = "trade_stats"
	CollectionSummary    = "summary"
)

// Snapshot 一次同步周期的完整结果。
// 提交是原子的：订阅者要么看到整个快照，要么什么都看不到。
type Snapshot struct {
	State      string           `json:"state"`
	Context    account.Snapshot `json:"context"`
	Generation uint64           `json:"generation"`
	UpdatedAt  time.Time        `json:"updatedAt"`

	Positions  []*types.Position       `json:"positions"`
	Balance    *types.Balance          `json:"balance"`
	Orders     []*types.Order          `json:"orders"`
	TradeStats *types.TradeStats       `json:"tradeStats"`
	Summary    *types.PortfolioSummary `json:"summary"`

	// 集合名 -> 错误消息。集合出错时保留上一次的有效数据。
	Errors map[string]string `json:"errors,omitempty"`
}

// NewSnapshot 创建空的初始快照
func NewSnapshot(ctx account.Snapshot) *Snapshot {
	return &Snapshot{
		State:     StateIdle,
		Context:   ctx,
		UpdatedAt: time.Now(),
		Positions: make([]*types.Position, 0),
		Orders:    make([]*types.Order, 0),
		Errors:    make(map[string]string),
	}
}

// Clone 深拷贝顶层结构 (集合切片重新分配，元素共享)。
// 提交后快照只读，元素共享是安全的。
func (s *Snapshot) Clone() *Snapshot {
	clone := *s

	clone.Positions = make([]*types.Position, len(s.Positions))
	copy(clone.Positions, s.Positions)

	clone.Orders = make([]*types.Order, len(s.Orders))
	copy(clone.Orders, s.Orders)

	clone.Errors = make(map[string]string, len(s.Errors))
	for k, v := range s.Errors {
		clone.Errors[k] = v
	}

	return &clone
}

// HasErrors 是否存在失败的集合
func (s *Snapshot) HasErrors() bool {
	return len(s.Errors) > 0
}

// TotalUnrealizedPnl 全部持仓的未实现盈亏合计
func (s *Snapshot) TotalUnrealizedPnl() float64 {
	total := 0.0
	for _, p := range s.Positions {
		total += p.UnrealizedPnl
	}
	return total
}
