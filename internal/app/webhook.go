package app

import (
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/rfid-gateway/internal/config"
	"github.com/taoyao-code/rfid-gateway/internal/webhook"
)

// NewWebhookPusher 创建签名推送器
func NewWebhookPusher(cfg cfgpkg.WebhookConfig, log *zap.Logger) (*webhook.Pusher, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	return webhook.NewPusher(client, cfg.URL, cfg.APIKey, cfg.Secret, cfg.Retries, log)
}
