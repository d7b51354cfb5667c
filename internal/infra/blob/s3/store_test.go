package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"pharmacore/internal/blob/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	s := NewMockForTests()
	ctx := context.Background()
	payload := []byte(`{"sales":[]}`)
	info, err := s.Put(ctx, "backups/j1/backup.json", bytes.NewReader(payload), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"format": "json"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) || info.ContentType != "application/json" || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Metadata["format"] != "json" {
		t.Fatalf("metadata not returned: %+v", info.Metadata)
	}
	_, rc, err := s.Get(ctx, "backups/j1/backup.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(body, payload) {
		t.Fatalf("body mismatch %q", body)
	}
	if _, err := s.Put(ctx, "backups/j1/backup.json", bytes.NewReader(payload), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if ok, err := s.Delete(ctx, "backups/j1/backup.json"); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := s.Delete(ctx, "backups/j1/backup.json"); ok || err != nil {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if _, err := s.Head(ctx, "backups/j1/backup.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListPaginates(t *testing.T) {
	bucket := &fakeBucket{objects: make(map[string]fakeObject), pageSize: 2}
	s := newMockStore(bucket)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("backups/%d/backup.json", i)
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	_, _ = s.Put(ctx, "other/key", strings.NewReader("x"), core.PutOptions{})
	list, err := s.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 5 || list[0].Key != "backups/0/backup.json" || list[4].Key != "backups/4/backup.json" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestPresign(t *testing.T) {
	s := NewMockForTests()
	u, err := s.PresignURL(context.Background(), "backups/x.json", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(u, "backups/x.json") || !strings.Contains(u, "X-Amz-Expires=60") {
		t.Fatalf("unexpected url %s", u)
	}
	if _, err := s.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestNewValidatesBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
	s, err := New(context.Background(), Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "a", SecretAccessKey: "s"})
	if err != nil || s.Driver() != core.DriverS3 {
		t.Fatalf("new: %v", err)
	}
}

func TestOpenFromEnv(t *testing.T) {
	t.Setenv(EnvBucket, "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	t.Setenv(EnvBucket, "pharmacore-backups")
	t.Setenv(EnvRegion, "eu-west-1")
	t.Setenv(EnvPathStyle, "TRUE")
	if _, err := OpenFromEnv(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
}

func TestDecodeChunked(t *testing.T) {
	got, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\nx-amz-checksum-crc32:abc\r\n\r\n"))
	if !ok || string(got) != "hello" {
		t.Fatalf("decode: %v %q", ok, got)
	}
	if _, ok := decodeChunked([]byte("plain body")); ok {
		t.Fatalf("plain body should not decode")
	}
}
