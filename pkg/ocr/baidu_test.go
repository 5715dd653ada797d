package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBaiduRecognizerRequiresCredentials(t *testing.T) {
	_, err := NewBaiduRecognizer(BaiduConfig{APIKey: "key"})
	require.Error(t, err)

	_, err = NewBaiduRecognizer(BaiduConfig{APIKey: "key", SecretKey: "secret"})
	require.NoError(t, err)
}

func TestBaiduRecognizeCachesToken(t *testing.T) {
	var tokenCalls atomic.Int32

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		require.Equal(t, "api-key", r.URL.Query().Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token-123"}`))
	}))
	defer tokenServer.Close()

	ocrServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "token-123", r.URL.Query().Get("access_token"))
		require.NoError(t, r.ParseForm())
		require.NotEmpty(t, r.PostForm.Get("image"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"words_result":[{"words":"first line"},{"words":"second line"}]}`))
	}))
	defer ocrServer.Close()

	recognizer, err := NewBaiduRecognizer(BaiduConfig{
		APIKey:    "api-key",
		SecretKey: "secret",
		TokenURL:  tokenServer.URL,
		OCRURL:    ocrServer.URL,
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		text, err := recognizer.Recognize(ctx, []byte("image"))
		require.NoError(t, err)
		require.Equal(t, "first line\nsecond line", text)
	}

	require.Equal(t, int32(1), tokenCalls.Load())
}

func TestBaiduRecognizeAPIError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"token-123"}`))
	}))
	defer tokenServer.Close()

	ocrServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error_code":17,"error_msg":"daily quota exceeded"}`))
	}))
	defer ocrServer.Close()

	recognizer, err := NewBaiduRecognizer(BaiduConfig{
		APIKey:    "api-key",
		SecretKey: "secret",
		TokenURL:  tokenServer.URL,
		OCRURL:    ocrServer.URL,
	})
	require.NoError(t, err)

	_, err = recognizer.Recognize(context.Background(), []byte("image"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "daily quota exceeded")
}

func TestBaiduTokenError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"unknown client id"}`))
	}))
	defer tokenServer.Close()

	recognizer, err := NewBaiduRecognizer(BaiduConfig{
		APIKey:    "api-key",
		SecretKey: "secret",
		TokenURL:  tokenServer.URL,
	})
	require.NoError(t, err)

	_, err = recognizer.Recognize(context.Background(), []byte("image"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown client id")
}

func TestFactorySelectsProvider(t *testing.T) {
	recognizer, err := New(Config{Provider: "tencent", TencentSecretID: "id", TencentSecretKey: "key"})
	require.NoError(t, err)
	require.IsType(t, &TencentRecognizer{}, recognizer)

	recognizer, err = New(Config{Provider: "Baidu", BaiduAPIKey: "key", BaiduSecretKey: "secret"})
	require.NoError(t, err)
	require.IsType(t, &BaiduRecognizer{}, recognizer)

	_, err = New(Config{Provider: "azure"})
	require.Error(t, err)

	_, err = New(Config{Provider: "tencent"})
	require.Error(t, err)
}
