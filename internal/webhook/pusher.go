// Package webhook 把标签事件以签名 JSON 推送到外部 HTTP 接收方
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/inventory"
)

// Event 推送报文
type Event struct {
	Event     string                  `json:"event"`
	ReaderID  string                  `json:"readerId"`
	Timestamp int64                   `json:"timestamp"`
	Nonce     string                  `json:"nonce"`
	Tags      []inventory.Observation `json:"tags"`
}

const EventTagsObserved = "tags.observed"

// Pusher 签名推送器。仅对网络错误与 5xx 重试。
type Pusher struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	secret   string
	retries  int
	backoff  []time.Duration
	log      *zap.Logger
}

// NewPusher 创建推送器；client 为空时使用 5s 超时的默认客户端
func NewPusher(client *http.Client, endpoint, apiKey, secret string, retries int, logger *zap.Logger) (*Pusher, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook url: unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pusher{
		client:   client,
		endpoint: u,
		apiKey:   apiKey,
		secret:   secret,
		retries:  retries,
		backoff:  []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond, time.Second},
		log:      logger.Named("webhook"),
	}, nil
}

// Push 发送一个事件，2xx 视为成功
func (p *Pusher) Push(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	sig := Sign(p.secret, Canonical(http.MethodPost, p.endpoint.Path, ev.Timestamp, ev.Nonce, body))

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff[min(attempt-1, len(p.backoff)-1)]):
			}
		}
		code, err := p.do(ctx, body, sig, ev)
		switch {
		case err != nil:
			lastErr = err
		case code >= 200 && code < 300:
			return nil
		case code < 500:
			return fmt.Errorf("webhook rejected: http %d", code)
		default:
			lastErr = fmt.Errorf("webhook: http %d", code)
		}
		p.log.Debug("webhook attempt failed", zap.Int("attempt", attempt), zap.Error(lastErr))
	}
	return lastErr
}

func (p *Pusher) do(ctx context.Context, body []byte, sig string, ev Event) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-Api-Key", p.apiKey)
	}
	req.Header.Set("X-Signature", sig)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ev.Timestamp, 10))
	req.Header.Set("X-Nonce", ev.Nonce)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// Sink 作为盘点下游，每批标签推送一次
type Sink struct {
	pusher   *Pusher
	readerID string
}

var _ inventory.Sink = (*Sink)(nil)

func NewSink(p *Pusher, readerID string) *Sink {
	return &Sink{pusher: p, readerID: readerID}
}

func (s *Sink) Name() string { return "webhook" }

func (s *Sink) Write(ctx context.Context, obs []inventory.Observation) error {
	return s.pusher.Push(ctx, Event{
		Event:     EventTagsObserved,
		ReaderID:  s.readerID,
		Timestamp: time.Now().Unix(),
		Nonce:     uuid.NewString(),
		Tags:      obs,
	})
}
