package binance

// ========== API URL ==========

const (
	BaseURL        = "https://fapi.binance.com"          // 主网
	TestnetBaseURL = "https://testnet.binancefuture.com" // 测试网
)

// ========== API 端点 ==========

const (
	EndpointAccount      = "/fapi/v2/account"
	EndpointPositionRisk = "/fapi/v2/positionRisk"
	EndpointOpenOrders   = "/fapi/v1/openOrders"
	EndpointUserTrades   = "/fapi/v1/userTrades"
	EndpointIncome       = "/fapi/v1/income"
	EndpointOrder        = "/fapi/v1/order"
)

// ========== 签名相关 ==========

const (
	RecvWindow = "5000" // 请求有效窗口(毫秒)
)
