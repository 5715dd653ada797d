package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/zhipi-dev/zhipi-go-api/internal/models"
)

func newSubmissionFixture(t *testing.T, policy UploadPolicy) (pipelineFixture, *queueStub, SubmissionService) {
	t.Helper()

	fixture := newPipelineFixture(t, "grade it")
	queue := &queueStub{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewSubmissionService(fixture.plans, fixture.records, queue, validate, policy, testLogger())

	return fixture, queue, svc
}

func pngImage(name string) UploadedImage {
	return UploadedImage{FileName: name, Data: pngHeader}
}

func TestSubmissionCreate(t *testing.T) {
	fixture, queue, svc := newSubmissionFixture(t, UploadPolicy{})
	ctx := context.Background()

	resp, err := svc.Create(ctx, "plan1", "alice", []UploadedImage{pngImage("page1.png"), pngImage("page2.PNG")})
	require.NoError(t, err)
	require.NotEmpty(t, resp.RecordID)
	require.Equal(t, models.RecordStatusPending, resp.Status)
	require.Equal(t, 1, queue.count())

	record := fixture.get(t, resp.RecordID)
	require.Equal(t, "alice", record.Student)
	require.Len(t, record.Images, 2)
	require.Equal(t, "images/"+resp.RecordID+"_1.png", record.Images[0])
	require.Equal(t, "images/"+resp.RecordID+"_2.png", record.Images[1])

	data, err := fixture.records.ReadImage(ctx, "plan1", record.Images[0])
	require.NoError(t, err)
	require.Equal(t, pngHeader, data)
}

func TestSubmissionCreateUnknownPlan(t *testing.T) {
	_, queue, svc := newSubmissionFixture(t, UploadPolicy{})

	_, err := svc.Create(context.Background(), "ghost", "alice", []UploadedImage{pngImage("a.png")})
	require.ErrorIs(t, err, ErrPlanNotFound)
	require.Zero(t, queue.count())
}

func TestSubmissionCreateValidation(t *testing.T) {
	_, queue, svc := newSubmissionFixture(t, UploadPolicy{MaxImages: 2, MaxImageBytes: 16})
	ctx := context.Background()

	cases := []struct {
		name    string
		student string
		images  []UploadedImage
	}{
		{name: "blank student", student: "  ", images: []UploadedImage{pngImage("a.png")}},
		{name: "no images", student: "alice", images: nil},
		{name: "too many images", student: "alice", images: []UploadedImage{pngImage("a.png"), pngImage("b.png"), pngImage("c.png")}},
		{name: "unsupported extension", student: "alice", images: []UploadedImage{{FileName: "a.gif", Data: pngHeader}}},
		{name: "oversized image", student: "alice", images: []UploadedImage{{FileName: "a.png", Data: bytes.Repeat([]byte{0x1}, 32)}}},
		{name: "content is not an image", student: "alice", images: []UploadedImage{{FileName: "a.png", Data: []byte("plain text")}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "plan1", tc.student, tc.images)
			require.ErrorIs(t, err, ErrInvalidUpload)
		})
	}

	require.Zero(t, queue.count())
}

func TestSubmissionListAndGet(t *testing.T) {
	_, _, svc := newSubmissionFixture(t, UploadPolicy{})
	ctx := context.Background()

	resp, err := svc.Create(ctx, "plan1", "alice", []UploadedImage{pngImage("a.png")})
	require.NoError(t, err)

	items, err := svc.List(ctx, "plan1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, resp.RecordID, items[0].ID)
	require.Equal(t, "alice", items[0].Student)

	record, err := svc.Get(ctx, "plan1", resp.RecordID)
	require.NoError(t, err)
	require.Equal(t, "alice", record.Student)
	require.Len(t, record.Images, 1)

	_, err = svc.Get(ctx, "plan1", "1700000000000")
	require.ErrorIs(t, err, ErrRecordNotFound)

	_, err = svc.List(ctx, "ghost")
	require.ErrorIs(t, err, ErrPlanNotFound)
}

func TestSubmissionDelete(t *testing.T) {
	_, _, svc := newSubmissionFixture(t, UploadPolicy{})
	ctx := context.Background()

	resp, err := svc.Create(ctx, "plan1", "alice", []UploadedImage{pngImage("a.png")})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "plan1", resp.RecordID))
	require.ErrorIs(t, svc.Delete(ctx, "plan1", resp.RecordID), ErrRecordNotFound)
	require.ErrorIs(t, svc.Delete(ctx, "ghost", resp.RecordID), ErrPlanNotFound)
}
