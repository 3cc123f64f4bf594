package s3

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/videotube/account-service/internal/core/domain"
)

type fakePutter struct {
	input   *s3.PutObjectInput
	deleted []string
	err     error
}

func (f *fakePutter) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestMediaStore_Upload(t *testing.T) {
	fake := &fakePutter{}
	store := NewMediaStore(fake, "media", "https://cdn.example.com/media/")
	store.now = func() time.Time { return time.Date(2026, 5, 7, 0, 0, 0, 0, time.UTC) }

	url, err := store.Upload(context.Background(), domain.MediaAvatar, domain.Upload{
		Filename:    "Me.PNG",
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	key := aws.ToString(fake.input.Key)
	if !strings.HasPrefix(key, "avatars/2026/05/07/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %q", key)
	}
	if url != "https://cdn.example.com/media/"+key {
		t.Fatalf("unexpected url %q", url)
	}
	if aws.ToString(fake.input.Bucket) != "media" || aws.ToString(fake.input.ContentType) != "image/png" {
		t.Fatalf("unexpected input: %+v", fake.input)
	}
	if aws.ToInt64(fake.input.ContentLength) != 4 {
		t.Fatalf("expected content length 4")
	}
}

func TestMediaStore_UploadDefaults(t *testing.T) {
	fake := &fakePutter{}
	store := NewMediaStore(fake, "media", "http://localhost:9000/media")

	if _, err := store.Upload(context.Background(), domain.MediaCoverImage, domain.Upload{Filename: "banner", Body: strings.NewReader("x")}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if aws.ToString(fake.input.ContentType) != defaultContentType {
		t.Fatalf("expected default content type, got %q", aws.ToString(fake.input.ContentType))
	}
	if fake.input.ContentLength != nil {
		t.Fatalf("unknown size must not set content length")
	}
}

func TestMediaStore_UploadErrors(t *testing.T) {
	store := NewMediaStore(&fakePutter{err: errors.New("denied")}, "media", "http://x")

	if _, err := store.Upload(context.Background(), domain.MediaAvatar, domain.Upload{Filename: "a.png"}); err == nil {
		t.Fatalf("expected error for empty body")
	}
	if _, err := store.Upload(context.Background(), domain.MediaAvatar, domain.Upload{Filename: "a.png", Body: strings.NewReader("x")}); err == nil {
		t.Fatalf("expected put error")
	}
}

func TestObjectKey_UniquePerCall(t *testing.T) {
	store := NewMediaStore(&fakePutter{}, "media", "http://x")
	if store.objectKey("avatars", "a.jpg") == store.objectKey("avatars", "a.jpg") {
		t.Fatalf("expected unique keys")
	}
}

func TestMediaStore_Delete(t *testing.T) {
	fake := &fakePutter{}
	store := NewMediaStore(fake, "media", "https://cdn.example.com/media")

	if err := store.Delete(context.Background(), "https://cdn.example.com/media/avatars/2026/05/07/x.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(context.Background(), "https://elsewhere.example.com/avatar.png"); err != nil {
		t.Fatalf("foreign url should be ignored: %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "avatars/2026/05/07/x.png" {
		t.Fatalf("unexpected deletes: %v", fake.deleted)
	}
}
