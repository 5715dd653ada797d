package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string
	DataDir string

	RedisURL      string
	StatsCacheTTL time.Duration

	GradingWorkers   int
	GradingQueueSize int
	GradingTimeout   time.Duration

	MaxImagesPerUpload int
	MaxImageSizeBytes  int64

	OCRProvider      string
	TencentSecretID  string
	TencentSecretKey string
	TencentRegion    string
	BaiduAPIKey      string
	BaiduSecretKey   string

	DeepSeekAPIKey      string
	DeepSeekBaseURL     string
	DeepSeekModel       string
	DeepSeekMaxTokens   int
	DeepSeekTemperature float64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ZHIPI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "ZhiPi API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8000")
	v.SetDefault("data.dir", "./data")
	v.SetDefault("stats.cache_ttl", "1m")
	v.SetDefault("grading.workers", 4)
	v.SetDefault("grading.queue_size", 64)
	v.SetDefault("grading.timeout", "60s")
	v.SetDefault("upload.max_images", 10)
	v.SetDefault("upload.max_image_bytes", 10*1024*1024)
	v.SetDefault("ocr.provider", "tencent")
	v.SetDefault("tencent.region", "ap-guangzhou")
	v.SetDefault("deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("deepseek.model", "deepseek-chat")
	v.SetDefault("deepseek.max_tokens", 2000)
	v.SetDefault("deepseek.temperature", 0.7)

	ttl, err := time.ParseDuration(v.GetString("stats.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats cache ttl: %w", err)
	}

	gradingTimeout, err := time.ParseDuration(v.GetString("grading.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid grading timeout: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DataDir:             v.GetString("data.dir"),
		RedisURL:            v.GetString("redis.url"),
		StatsCacheTTL:       ttl,
		GradingWorkers:      v.GetInt("grading.workers"),
		GradingQueueSize:    v.GetInt("grading.queue_size"),
		GradingTimeout:      gradingTimeout,
		MaxImagesPerUpload:  v.GetInt("upload.max_images"),
		MaxImageSizeBytes:   v.GetInt64("upload.max_image_bytes"),
		OCRProvider:         strings.ToLower(v.GetString("ocr.provider")),
		TencentSecretID:     v.GetString("tencent.secret_id"),
		TencentSecretKey:    v.GetString("tencent.secret_key"),
		TencentRegion:       v.GetString("tencent.region"),
		BaiduAPIKey:         v.GetString("baidu.api_key"),
		BaiduSecretKey:      v.GetString("baidu.secret_key"),
		DeepSeekAPIKey:      v.GetString("deepseek.api_key"),
		DeepSeekBaseURL:     v.GetString("deepseek.base_url"),
		DeepSeekModel:       v.GetString("deepseek.model"),
		DeepSeekMaxTokens:   v.GetInt("deepseek.max_tokens"),
		DeepSeekTemperature: v.GetFloat64("deepseek.temperature"),
	}

	if cfg.GradingWorkers <= 0 {
		cfg.GradingWorkers = 4
	}
	if cfg.GradingQueueSize <= 0 {
		cfg.GradingQueueSize = 64
	}
	if cfg.GradingTimeout <= 0 {
		cfg.GradingTimeout = 60 * time.Second
	}
	if cfg.MaxImagesPerUpload <= 0 {
		cfg.MaxImagesPerUpload = 10
	}
	if cfg.MaxImageSizeBytes <= 0 {
		cfg.MaxImageSizeBytes = 10 * 1024 * 1024
	}

	return cfg, nil
}
