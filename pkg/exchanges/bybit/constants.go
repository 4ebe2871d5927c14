package bybit

// ========== API URL ==========

const (
	BaseURL     = "https://api.bybit.com"      // 实盘
	DemoBaseURL = "https://api-demo.bybit.com" // 模拟盘
)

// ========== API 端点 ==========

const (
	EndpointWalletBalance = "/v5/account/wallet-balance"
	EndpointPositionInfo  = "/v5/position/list"
	EndpointOrderRealtime = "/v5/order/realtime"
	EndpointClosedPnl     = "/v5/position/closed-pnl"
	EndpointPlaceOrder    = "/v5/order/create"
	EndpointCancelOrder   = "/v5/order/cancel"
)

// ========== 产品类型 ==========

const (
	CategoryLinear = "linear" // USDT 永续
	CategorySpot   = "spot"
)

// ========== 签名相关 ==========

const (
	RecvWindow = "5000" // 请求有效窗口(毫秒)
)
