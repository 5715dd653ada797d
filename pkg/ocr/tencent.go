package ocr

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	tencentDefaultEndpoint = "ocr.tencentcloudapi.com"
	tencentService         = "ocr"
	tencentVersion         = "2018-11-19"
	tencentAction          = "GeneralBasicOCR"
)

// TencentConfig holds credentials for the Tencent Cloud OCR API.
type TencentConfig struct {
	SecretID   string
	SecretKey  string
	Region     string
	Endpoint   string
	HTTPClient *http.Client
}

// TencentRecognizer calls the Tencent Cloud GeneralBasicOCR action using
// TC3-HMAC-SHA256 request signing.
type TencentRecognizer struct {
	cfg    TencentConfig
	client *http.Client
	now    func() time.Time
}

// NewTencentRecognizer builds a recognizer from the given credentials.
func NewTencentRecognizer(cfg TencentConfig) (*TencentRecognizer, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("tencent secret id and secret key are required")
	}
	if cfg.Region == "" {
		cfg.Region = "ap-guangzhou"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tencentDefaultEndpoint
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &TencentRecognizer{cfg: cfg, client: client, now: time.Now}, nil
}

type tencentResponse struct {
	Response struct {
		TextDetections []struct {
			DetectedText string `json:"DetectedText"`
		} `json:"TextDetections"`
		Error *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
	} `json:"Response"`
}

// Recognize extracts text from the image via GeneralBasicOCR.
func (t *TencentRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"ImageBase64": base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return "", fmt.Errorf("marshal ocr payload: %w", err)
	}

	timestamp := t.now().Unix()
	authorization := t.sign(payload, timestamp)

	scheme := "https"
	if strings.HasPrefix(t.cfg.Endpoint, "localhost") || strings.HasPrefix(t.cfg.Endpoint, "127.0.0.1") {
		scheme = "http"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, scheme+"://"+t.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Host", t.cfg.Endpoint)
	req.Header.Set("X-TC-Action", tencentAction)
	req.Header.Set("X-TC-Timestamp", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-TC-Version", tencentVersion)
	req.Header.Set("X-TC-Region", t.cfg.Region)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tencent ocr request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tencent ocr returned status %d: %s", resp.StatusCode, body)
	}

	var parsed tencentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if parsed.Response.Error != nil {
		return "", fmt.Errorf("tencent ocr error %s: %s", parsed.Response.Error.Code, parsed.Response.Error.Message)
	}

	lines := make([]string, 0, len(parsed.Response.TextDetections))
	for _, detection := range parsed.Response.TextDetections {
		lines = append(lines, detection.DetectedText)
	}
	return strings.Join(lines, "\n"), nil
}

// sign produces the TC3-HMAC-SHA256 Authorization header for the payload.
func (t *TencentRecognizer) sign(payload []byte, timestamp int64) string {
	canonicalHeaders := "content-type:application/json\nhost:" + t.cfg.Endpoint + "\n"
	signedHeaders := "content-type;host"
	hashedPayload := sha256Hex(payload)
	canonicalRequest := strings.Join([]string{
		http.MethodPost, "/", "", canonicalHeaders, signedHeaders, hashedPayload,
	}, "\n")

	algorithm := "TC3-HMAC-SHA256"
	date := time.Unix(timestamp, 0).UTC().Format("2006-01-02")
	credentialScope := date + "/" + tencentService + "/tc3_request"
	stringToSign := strings.Join([]string{
		algorithm,
		strconv.FormatInt(timestamp, 10),
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	secretDate := hmacSHA256([]byte("TC3"+t.cfg.SecretKey), date)
	secretService := hmacSHA256(secretDate, tencentService)
	secretSigning := hmacSHA256(secretService, "tc3_request")
	signature := hex.EncodeToString(hmacSHA256(secretSigning, stringToSign))

	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, t.cfg.SecretID, credentialScope, signedHeaders, signature)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
