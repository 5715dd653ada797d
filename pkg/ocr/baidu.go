package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	baiduDefaultTokenURL = "https://aip.baidubce.com/oauth/2.0/token"
	baiduDefaultOCRURL   = "https://aip.baidubce.com/rest/2.0/ocr/v1/general_basic"
)

// BaiduConfig holds credentials for the Baidu OCR API.
type BaiduConfig struct {
	APIKey     string
	SecretKey  string
	TokenURL   string
	OCRURL     string
	HTTPClient *http.Client
}

// BaiduRecognizer calls the Baidu general_basic OCR endpoint, fetching
// and caching the OAuth access token on demand.
type BaiduRecognizer struct {
	cfg    BaiduConfig
	client *http.Client

	mu    sync.Mutex
	token string
}

// NewBaiduRecognizer builds a recognizer from the given credentials.
func NewBaiduRecognizer(cfg BaiduConfig) (*BaiduRecognizer, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("baidu api key and secret key are required")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = baiduDefaultTokenURL
	}
	if cfg.OCRURL == "" {
		cfg.OCRURL = baiduDefaultOCRURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &BaiduRecognizer{cfg: cfg, client: client}, nil
}

func (b *BaiduRecognizer) accessToken(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.token != "" {
		return b.token, nil
	}

	params := url.Values{}
	params.Set("grant_type", "client_credentials")
	params.Set("client_id", b.cfg.APIKey)
	params.Set("client_secret", b.cfg.SecretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.TokenURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("baidu token request: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
		ErrorDesc   string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("baidu token error %s: %s", parsed.Error, parsed.ErrorDesc)
	}

	b.token = parsed.AccessToken
	return b.token, nil
}

// Recognize extracts text from the image via the general_basic endpoint.
func (b *BaiduRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	token, err := b.accessToken(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(image))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.cfg.OCRURL+"?access_token="+url.QueryEscape(token),
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("baidu ocr request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ocr response: %w", err)
	}

	var parsed struct {
		ErrorCode   int    `json:"error_code"`
		ErrorMsg    string `json:"error_msg"`
		WordsResult []struct {
			Words string `json:"words"`
		} `json:"words_result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if parsed.ErrorCode != 0 {
		return "", fmt.Errorf("baidu ocr error %d: %s", parsed.ErrorCode, parsed.ErrorMsg)
	}

	lines := make([]string, 0, len(parsed.WordsResult))
	for _, item := range parsed.WordsResult {
		lines = append(lines, item.Words)
	}
	return strings.Join(lines, "\n"), nil
}
