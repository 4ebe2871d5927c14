package exchanges

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"portfolio_sync/pkg/exchanges/types"
)

// BaseClient 交易所REST客户端的公共实现
type BaseClient struct {
	// ========== 基础配置 ==========
	id          string
	name        string
	accountType string
	baseURL     string

	// ========== API 配置 ==========
	apiKey string
	secret string

	// ========== 网络配置 ==========
	timeout   time.Duration
	userAgent string
	headers   map[string]string

	// ========== 运行时状态 ==========
	httpClient *http.Client

	// ========== 重试配置 ==========
	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	enableJitter  bool

	// ========== 同步锁 ==========
	mutex sync.RWMutex
}

// NewBaseClient 创建基础客户端
func NewBaseClient(id, name, accountType, baseURL string) *BaseClient {
	return &BaseClient{
		id:            id,
		name:          name,
		accountType:   accountType,
		baseURL:       baseURL,
		timeout:       30 * time.Second,
		userAgent:     "portfolio_sync/1.0.0",
		headers:       make(map[string]string),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		maxRetries:    3,
		retryDelay:    100 * time.Millisecond,
		maxRetryDelay: 10 * time.Second,
		enableJitter:  true,
	}
}

// ========== 基础信息方法 ==========

func (b *BaseClient) GetID() string          { return b.id }
func (b *BaseClient) GetName() string        { return b.name }
func (b *BaseClient) GetAccountType() string { return b.accountType }
func (b *BaseClient) GetBaseURL() string     { return b.baseURL }

// SetCredentials 设置API凭证
func (b *BaseClient) SetCredentials(apiKey, secret string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.apiKey = apiKey
	b.secret = secret
}

// SetRetryConfig 设置重试配置
func (b *BaseClient) SetRetryConfig(maxRetries int, retryDelay, maxRetryDelay time.Duration, enableJitter bool) {
	b.maxRetries = maxRetries
	b.retryDelay = retryDelay
	b.maxRetryDelay = maxRetryDelay
	b.enableJitter = enableJitter
}

// DisableRetry 禁用重试机制
func (b *BaseClient) DisableRetry() {
	b.maxRetries = 0
}

// ========== 重试逻辑实现 ==========

// shouldRetry 判断错误是否应该重试
func (b *BaseClient) shouldRetry(err error) bool {
	if err == nil {
		return false
	}

	switch err.(type) {
	case *NetworkError, *ExchangeNotAvailable, *RateLimitExceeded, *RequestTimeout:
		return true
	}

	// 检查错误消息中的关键词
	errMsg := strings.ToLower(err.Error())
	retryableKeywords := []string{
		"connection", "timeout", "network", "temporary",
		"unavailable", "overloaded", "rate limit",
		"too many requests", "service unavailable",
		"bad gateway", "gateway timeout",
	}

	for _, keyword := range retryableKeywords {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}

	return false
}

// calculateBackoffDelay 计算退避延迟
func (b *BaseClient) calculateBackoffDelay(attempt int) time.Duration {
	// 指数退避：baseDelay * 2^attempt
	delay := time.Duration(float64(b.retryDelay) * math.Pow(2, float64(attempt)))

	// 限制最大延迟
	if delay > b.maxRetryDelay {
		delay = b.maxRetryDelay
	}

	// 添加随机抖动以避免惊群效应
	if b.enableJitter && attempt > 0 {
		jitterRange := float64(delay) * 0.1                // 10%的抖动范围
		jitter := (rand.Float64() - 0.5) * 2 * jitterRange // -10% 到 +10%
		delay = time.Duration(float64(delay) + jitter)

		if delay < 0 {
			delay = b.retryDelay
		}
	}

	return delay
}

// RetryWithBackoff 执行带指数退避的重试
func (b *BaseClient) RetryWithBackoff(ctx context.Context, operation func() error) error {
	if b.maxRetries == 0 {
		return operation()
	}

	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if !b.shouldRetry(lastErr) {
			return lastErr
		}

		if attempt >= b.maxRetries {
			break
		}

		backoffDelay := b.calculateBackoffDelay(attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay):
			// 继续下一次重试
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", b.maxRetries, lastErr)
}

// ========== HTTP 请求方法 ==========

// Request 发送HTTP请求
func (b *BaseClient) Request(ctx context.Context, url, method string, headers map[string]string, body string) (*types.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", b.userAgent)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range b.headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	httpResp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewRequestTimeout("request deadline exceeded")
		}
		return nil, NewNetworkError("HTTP request failed")
	}

	response := &types.Response{
		StatusCode: httpResp.StatusCode,
		Body:       make([]byte, 0),
		Headers:    make(map[string]string),
	}

	for k, v := range httpResp.Header {
		if len(v) > 0 {
			response.Headers[k] = v[0]
		}
	}

	if httpResp.Body != nil {
		defer httpResp.Body.Close()
		bodyBytes, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, NewNetworkError("failed to read response body")
		}
		response.Body = bodyBytes
	}

	return response, nil
}

// FetchWithRetry 发送带重试的HTTP请求并处理响应
func (b *BaseClient) FetchWithRetry(ctx context.Context, url, method string, headers map[string]string, body string) ([]byte, error) {
	var resp *types.Response

	err := b.RetryWithBackoff(ctx, func() error {
		var reqErr error
		resp, reqErr = b.Request(ctx, url, method, headers, body)
		if reqErr != nil {
			return reqErr
		}

		// 某些状态码需要重试
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return NewRateLimitExceeded("rate limit exceeded", 60)
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return NewExchangeNotAvailable("exchange temporarily unavailable")
		case http.StatusInternalServerError:
			return NewExchangeNotAvailable("internal server error")
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if resp == nil {
		return nil, NewNetworkError("no response received")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, NewAuthenticationError("authentication failed")
	case resp.StatusCode == http.StatusForbidden:
		return nil, NewPermissionDenied("permission denied")
	case resp.StatusCode >= 400:
		return nil, NewNetworkError(fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(resp.Body)))
	}

	return resp.Body, nil
}

// GetJSON 发送GET请求并解析为JSON对象
func (b *BaseClient) GetJSON(ctx context.Context, path string, headers map[string]string) (map[string]interface{}, error) {
	body, err := b.FetchWithRetry(ctx, b.baseURL+path, http.MethodGet, headers, "")
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, NewBadResponse(fmt.Sprintf("invalid JSON object: %v", err))
	}
	return result, nil
}

// GetJSONList 发送GET请求并解析为JSON对象数组
func (b *BaseClient) GetJSONList(ctx context.Context, path string, headers map[string]string) ([]map[string]interface{}, error) {
	body, err := b.FetchWithRetry(ctx, b.baseURL+path, http.MethodGet, headers, "")
	if err != nil {
		return nil, err
	}

	var rawList []interface{}
	if err := json.Unmarshal(body, &rawList); err != nil {
		// 部分接口把数组包在 {"list": [...]} 里
		var wrapper map[string]interface{}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, NewBadResponse(fmt.Sprintf("invalid JSON list: %v", err))
		}
		wrapped, ok := SafeValue(wrapper, []string{"list", "data", "result"}, nil).([]interface{})
		if !ok {
			return nil, NewBadResponse("response is not a list")
		}
		rawList = wrapped
	}

	result := make([]map[string]interface{}, 0, len(rawList))
	for i := range rawList {
		if obj, ok := rawList[i].(map[string]interface{}); ok {
			result = append(result, obj)
		}
	}
	return result, nil
}

// PostJSON 发送POST请求并解析为JSON对象
func (b *BaseClient) PostJSON(ctx context.Context, path string, payload interface{}, headers map[string]string) (map[string]interface{}, error) {
	var body string
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = string(data)
	}

	respBody, err := b.FetchWithRetry(ctx, b.baseURL+path, http.MethodPost, headers, body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, NewBadResponse(fmt.Sprintf("invalid JSON object: %v", err))
		}
	}
	if result == nil {
		result = map[string]interface{}{"success": true}
	}
	return result, nil
}
