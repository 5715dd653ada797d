package ocr

import (
	"fmt"
	"strings"
)

// Config selects an OCR provider and carries its credentials.
type Config struct {
	Provider string

	TencentSecretID  string
	TencentSecretKey string
	TencentRegion    string

	BaiduAPIKey    string
	BaiduSecretKey string
}

// New builds the Recognizer named by cfg.Provider.
func New(cfg Config) (Recognizer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "tencent":
		return NewTencentRecognizer(TencentConfig{
			SecretID:  cfg.TencentSecretID,
			SecretKey: cfg.TencentSecretKey,
			Region:    cfg.TencentRegion,
		})
	case "baidu":
		return NewBaiduRecognizer(BaiduConfig{
			APIKey:    cfg.BaiduAPIKey,
			SecretKey: cfg.BaiduSecretKey,
		})
	default:
		return nil, fmt.Errorf("unsupported ocr provider: %q", cfg.Provider)
	}
}
