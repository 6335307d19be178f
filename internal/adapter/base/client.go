package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"SportsNations/internal/config"
	"SportsNations/internal/model"
	"SportsNations/internal/utils/httpclient"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	defaultRetries  = 3
	maxResponseSize = 64 << 20
)

// Request 一次 GET 请求
type Request struct {
	URL     string
	Query   url.Values
	Headers map[string]string
}

// StatusError 非 2xx 响应
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("请求%s返回HTTP %d", e.URL, e.Code)
}

// Client 带有限次数指数退避重试的 HTTP 客户端
type Client struct {
	http    *http.Client
	retries int
	logger  *logrus.Logger
	// 退避参数，测试中可调小
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func NewClient(connectorID string, cfg *config.ConnectorConfig, logger *logrus.Logger) *Client {
	retries := cfg.RetryCount
	if retries <= 0 {
		retries = defaultRetries
	}
	return &Client{
		http:            httpclient.NewHTTPClient(connectorID, cfg, logger),
		retries:         retries,
		logger:          logger,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryable 网络错误、429、5xx 可重试；其余 4xx 直接失败
func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Get 返回响应体；重试耗尽后的错误包装为 ErrSourceUnreachable
func (c *Client) Get(ctx context.Context, req Request) ([]byte, error) {
	target := req.URL
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}
		resp, err := c.http.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.WithError(err).WithFields(logrus.Fields{"url": req.URL, "attempt": attempt}).Warn("请求失败，准备重试")
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
			statusErr := &StatusError{URL: req.URL, Code: resp.StatusCode}
			if !retryable(resp.StatusCode) {
				return backoff.Permanent(statusErr)
			}
			c.logger.WithFields(logrus.Fields{"url": req.URL, "status": resp.StatusCode, "attempt": attempt}).Warn("服务端错误，准备重试")
			return statusErr
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return err
		}
		body = data
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.InitialInterval
	policy.MaxInterval = c.MaxInterval
	policy.MaxElapsedTime = 0 // 总时长由 ctx 控制
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retries-1)), ctx))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %w", model.ErrSourceUnreachable, req.URL, err)
		}
		return nil, fmt.Errorf("%w: %s（共尝试%d次）: %w", model.ErrSourceUnreachable, req.URL, attempt, err)
	}
	return body, nil
}
