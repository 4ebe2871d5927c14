package account

import (
	"testing"

	"portfolio_sync/pkg/exchanges/types"
)

func TestNewContextFallsBackToDefaults(t *testing.T) {
	// 账户类型对交易所无效时回退到交易所默认值
	ctx := NewContext(types.ExchangeBybit, "mainnet", types.Period1W)

	snapshot := ctx.Get()
	if snapshot.AccountType != types.AccountTypeDemo {
		t.Errorf("无效账户类型未回退: 期望 demo, 实际 %s", snapshot.AccountType)
	}
}

func TestSetExchangeResetsInvalidAccountType(t *testing.T) {
	ctx := NewContext(types.ExchangeBybit, types.AccountTypeReal, types.Period1W)

	// real 对 binance 无效，切换后应落到 binance 默认的 testnet
	ctx.SetExchange(types.ExchangeBinance)

	snapshot := ctx.Get()
	if snapshot.Exchange != types.ExchangeBinance {
		t.Errorf("交易所未切换: 实际 %s", snapshot.Exchange)
	}
	if snapshot.AccountType != types.AccountTypeTestnet {
		t.Errorf("账户类型未回退: 期望 testnet, 实际 %s", snapshot.AccountType)
	}
}

func TestSetAccountTypeRejectsInvalid(t *testing.T) {
	ctx := NewContext(types.ExchangeBybit, types.AccountTypeDemo, types.Period1W)

	if ctx.SetAccountType("mainnet") {
		t.Error("对当前交易所无效的账户类型应被拒绝")
	}
	if ctx.Get().AccountType != types.AccountTypeDemo {
		t.Error("被拒绝的切换不应修改上下文")
	}

	if !ctx.SetAccountType(types.AccountTypeReal) {
		t.Error("有效的账户类型应被接受")
	}
}

func TestSubscriberNotifiedOnChange(t *testing.T) {
	ctx := NewContext(types.ExchangeBybit, types.AccountTypeDemo, types.Period1W)

	var received []Snapshot
	ctx.Subscribe(func(s Snapshot) {
		received = append(received, s)
	})

	ctx.SetAccountType(types.AccountTypeReal)
	ctx.SetPeriod(types.Period1M, "", "")

	if len(received) != 2 {
		t.Fatalf("订阅者通知次数错误: 期望 2, 实际 %d", len(received))
	}
	if received[0].AccountType != types.AccountTypeReal {
		t.Error("第一次通知应携带新的账户类型")
	}
	if received[1].Period != types.Period1M {
		t.Error("第二次通知应携带新的统计周期")
	}
}

func TestNoopChangesDoNotNotify(t *testing.T) {
	ctx := NewContext(types.ExchangeBybit, types.AccountTypeDemo, types.Period1W)

	notified := 0
	ctx.Subscribe(func(Snapshot) { notified++ })

	// 设置为当前值不应触发通知
	ctx.SetExchange(types.ExchangeBybit)
	ctx.SetAccountType(types.AccountTypeDemo)
	ctx.SetPeriod(types.Period1W, "", "")

	if notified != 0 {
		t.Errorf("无变化的设置不应通知订阅者: 实际通知 %d 次", notified)
	}
}

func TestCustomPeriodRequiresDates(t *testing.T) {
	ctx := NewContext(types.ExchangeBybit, types.AccountTypeDemo, types.Period1W)

	if ctx.SetPeriod(types.PeriodCustom, "", "") {
		t.Error("自定义周期缺少起止日期时应被拒绝")
	}
	if !ctx.SetPeriod(types.PeriodCustom, "2026-01-01", "2026-02-01") {
		t.Error("带起止日期的自定义周期应被接受")
	}

	snapshot := ctx.Get()
	if snapshot.CustomStart != "2026-01-01" || snapshot.CustomEnd != "2026-02-01" {
		t.Error("自定义起止日期未保存")
	}
}
