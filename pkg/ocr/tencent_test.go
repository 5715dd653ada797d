package ocr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTencentRecognizerRequiresCredentials(t *testing.T) {
	_, err := NewTencentRecognizer(TencentConfig{SecretID: "id"})
	require.Error(t, err)

	_, err = NewTencentRecognizer(TencentConfig{SecretID: "id", SecretKey: "key"})
	require.NoError(t, err)
}

func TestTencentRecognize(t *testing.T) {
	var gotBody map[string]string
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Response":{"TextDetections":[{"DetectedText":"line one"},{"DetectedText":"line two"}]}}`))
	}))
	defer server.Close()

	recognizer, err := NewTencentRecognizer(TencentConfig{
		SecretID:  "id",
		SecretKey: "key",
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
	})
	require.NoError(t, err)

	text, err := recognizer.Recognize(context.Background(), []byte("image-bytes"))
	require.NoError(t, err)
	require.Equal(t, "line one\nline two", text)

	require.NotEmpty(t, gotBody["ImageBase64"])
	require.Equal(t, "GeneralBasicOCR", gotHeaders.Get("X-TC-Action"))
	require.Equal(t, "2018-11-19", gotHeaders.Get("X-TC-Version"))
	require.Contains(t, gotHeaders.Get("Authorization"), "TC3-HMAC-SHA256 Credential=id/")
	require.Contains(t, gotHeaders.Get("Authorization"), "SignedHeaders=content-type;host")
}

func TestTencentRecognizeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Response":{"Error":{"Code":"AuthFailure","Message":"signature invalid"}}}`))
	}))
	defer server.Close()

	recognizer, err := NewTencentRecognizer(TencentConfig{
		SecretID:  "id",
		SecretKey: "key",
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
	})
	require.NoError(t, err)

	_, err = recognizer.Recognize(context.Background(), []byte("image"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "AuthFailure")
}

func TestTencentRecognizeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	recognizer, err := NewTencentRecognizer(TencentConfig{
		SecretID:  "id",
		SecretKey: "key",
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
	})
	require.NoError(t, err)

	_, err = recognizer.Recognize(context.Background(), []byte("image"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
}
