package exchanges

import (
	"fmt"
	"net/http"
)

// ========== 错误类型层次结构 ==========

// Error 基础错误接口
type Error interface {
	error
	GetType() string
	GetCode() int
	GetDetails() string
}

// BaseError 基础错误结构
type BaseError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details"`
	Code    int    `json:"code"`
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) GetType() string {
	return e.Type
}

func (e *BaseError) GetCode() int {
	return e.Code
}

func (e *BaseError) GetDetails() string {
	return e.Details
}

// ========== 网络和连接错误 (传输层，可本地恢复) ==========

// NetworkError 网络错误
type NetworkError struct {
	*BaseError
}

func NewNetworkError(message string) *NetworkError {
	return &NetworkError{
		BaseError: &BaseError{
			Type:    "NetworkError",
			Message: message,
		},
	}
}

// RequestTimeout 请求超时错误
type RequestTimeout struct {
	*BaseError
}

func NewRequestTimeout(message string) *RequestTimeout {
	return &RequestTimeout{
		BaseError: &BaseError{
			Type:    "RequestTimeout",
			Message: message,
		},
	}
}

// ExchangeNotAvailable 交易所不可用错误
type ExchangeNotAvailable struct {
	*BaseError
}

func NewExchangeNotAvailable(message string) *ExchangeNotAvailable {
	return &ExchangeNotAvailable{
		BaseError: &BaseError{
			Type:    "ExchangeNotAvailable",
			Message: message,
		},
	}
}

// RateLimitExceeded 限流错误
type RateLimitExceeded struct {
	*BaseError
	RetryAfter int // 重试等待时间（秒）
}

func NewRateLimitExceeded(message string, retryAfter int) *RateLimitExceeded {
	return &RateLimitExceeded{
		BaseError: &BaseError{
			Type:    "RateLimitExceeded",
			Message: message,
			Code:    http.StatusTooManyRequests,
		},
		RetryAfter: retryAfter,
	}
}

// ========== 认证和权限错误 ==========

// AuthenticationError 认证错误
type AuthenticationError struct {
	*BaseError
}

func NewAuthenticationError(message string) *AuthenticationError {
	return &AuthenticationError{
		BaseError: &BaseError{
			Type:    "AuthenticationError",
			Message: message,
			Code:    http.StatusUnauthorized,
		},
	}
}

// PermissionDenied 权限拒绝错误
type PermissionDenied struct {
	*BaseError
}

func NewPermissionDenied(message string) *PermissionDenied {
	return &PermissionDenied{
		BaseError: &BaseError{
			Type:    "PermissionDenied",
			Message: message,
			Code:    http.StatusForbidden,
		},
	}
}

// ========== 数据和业务错误 ==========

// BadResponse 响应结构错误 (缺少必需字段等)
type BadResponse struct {
	*BaseError
}

func NewBadResponse(message string) *BadResponse {
	return &BadResponse{
		BaseError: &BaseError{
			Type:    "BadResponse",
			Message: message,
		},
	}
}

// OrderNotFound 订单不存在错误
type OrderNotFound struct {
	*BaseError
}

func NewOrderNotFound(orderID string) *OrderNotFound {
	return &OrderNotFound{
		BaseError: &BaseError{
			Type:    "OrderNotFound",
			Message: fmt.Sprintf("order not found: %s", orderID),
			Code:    http.StatusNotFound,
		},
	}
}

// PositionNotFound 持仓不存在错误
type PositionNotFound struct {
	*BaseError
}

func NewPositionNotFound(symbol, side string) *PositionNotFound {
	return &PositionNotFound{
		BaseError: &BaseError{
			Type:    "PositionNotFound",
			Message: fmt.Sprintf("position not found: %s %s", symbol, side),
			Code:    http.StatusNotFound,
		},
	}
}

// ========== 错误分类辅助 ==========

// IsTransportError 传输层错误：数据保留上次值并附带错误标记
func IsTransportError(err error) bool {
	switch err.(type) {
	case *NetworkError, *RequestTimeout, *ExchangeNotAvailable, *RateLimitExceeded:
		return true
	}
	return false
}

// IsLogicError 业务逻辑错误：提示用户，不自动重试
func IsLogicError(err error) bool {
	switch err.(type) {
	case *OrderNotFound, *PositionNotFound:
		return true
	}
	return false
}
