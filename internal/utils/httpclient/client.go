package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"SportsNations/internal/config"
	"SportsNations/internal/metrics"

	"github.com/sirupsen/logrus"
)

// defaultTimeout 未配置 timeout 时的单次请求超时
const defaultTimeout = 30 * time.Second

// UserAgent 所有 connector 请求携带的 UA；Wikidata SPARQL 拒绝没有 UA 的请求
const UserAgent = "SportsNations/1.0 (rankings ingestion)"

// NewHTTPClient 为某个 connector 构建 HTTP 客户端（代理、超时、UA、自动解压、响应计数）
func NewHTTPClient(connectorID string, cfg *config.ConnectorConfig, logger *logrus.Logger) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        16,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	// 配置代理
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{"connector": connectorID, "proxy": cfg.Proxy}).Warn("代理地址解析失败，将不使用代理")
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
			logger.WithFields(logrus.Fields{"connector": connectorID, "proxy": cfg.Proxy}).Info("HTTP客户端已配置代理")
		}
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &connectorTransport{
			next:        transport,
			connectorID: connectorID,
			logger:      logger,
		},
	}
}

// connectorTransport 补齐请求头、解压 gzip 响应并按状态码计数
type connectorTransport struct {
	next        http.RoundTripper
	connectorID string
	logger      *logrus.Logger
}

func (t *connectorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTripper 不得修改调用方的请求
	req = req.Clone(req.Context())
	req.Header.Set("Accept-Encoding", "gzip")
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		metrics.RecordHTTPResponse(t.connectorID, "transport_error")
		return nil, err
	}
	metrics.RecordHTTPResponse(t.connectorID, strconv.Itoa(resp.StatusCode))

	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp, nil
	}
	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.logger.WithError(err).WithField("connector", t.connectorID).Warn("gzip解压失败，返回原始响应")
		return resp, nil
	}
	resp.Body = &gzipBody{Reader: gz, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// gzipBody 关闭时同时关闭解压 reader 与原始响应体
type gzipBody struct {
	*gzip.Reader
	raw io.ReadCloser
}

func (g *gzipBody) Close() error {
	gzErr := g.Reader.Close()
	if err := g.raw.Close(); err != nil {
		return err
	}
	return gzErr
}
