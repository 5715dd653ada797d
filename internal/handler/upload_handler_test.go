package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/zhipi-dev/zhipi-go-api/internal/dto"
	"github.com/zhipi-dev/zhipi-go-api/internal/models"
)

var pngPayload = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func buildUploadRequest(t *testing.T, target, student string, images map[string][]byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if student != "" {
		require.NoError(t, writer.WriteField("student", student))
	}
	for name, data := range images {
		part, err := writer.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(fiber.MethodPost, target, &buf)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}

func TestUploadEndpoint(t *testing.T) {
	ta := setupTestApp(t)
	createPlan(t, ta.app, "plan1")

	req := buildUploadRequest(t, "/upload/plan1", "alice", map[string][]byte{
		"page1.png": pngPayload,
	})
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope apiEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)

	var upload dto.UploadResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &upload))
	require.NotEmpty(t, upload.RecordID)
	require.Equal(t, models.RecordStatusPending, upload.Status)
	require.Equal(t, 1, ta.queue.count())

	record, err := ta.records.Get(context.Background(), "plan1", upload.RecordID)
	require.NoError(t, err)
	require.Equal(t, "alice", record.Student)
	require.Len(t, record.Images, 1)
}

func TestUploadEndpointUnknownPlan(t *testing.T) {
	ta := setupTestApp(t)

	req := buildUploadRequest(t, "/upload/ghost", "alice", map[string][]byte{
		"page1.png": pngPayload,
	})
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUploadEndpointRejectsBadUploads(t *testing.T) {
	ta := setupTestApp(t)
	createPlan(t, ta.app, "plan1")

	cases := []struct {
		name    string
		student string
		images  map[string][]byte
	}{
		{name: "missing student", student: "", images: map[string][]byte{"a.png": pngPayload}},
		{name: "no images", student: "alice", images: nil},
		{name: "bad extension", student: "alice", images: map[string][]byte{"a.bmp": pngPayload}},
		{name: "not an image", student: "alice", images: map[string][]byte{"a.png": []byte("plain text")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := buildUploadRequest(t, "/upload/plan1", tc.student, tc.images)
			resp, err := ta.app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}

	require.Zero(t, ta.queue.count())
}

func TestUploadEndpointRequiresMultipart(t *testing.T) {
	ta := setupTestApp(t)
	createPlan(t, ta.app, "plan1")

	resp, _ := doJSON(t, ta.app, fiber.MethodPost, "/upload/plan1", fiber.Map{"student": "alice"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
