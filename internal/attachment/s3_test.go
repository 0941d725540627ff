package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 implements s3API over an in-memory map.
type fakeS3 struct {
	objects      map[string][]byte
	contentTypes map[string]string
	getErr       error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = data
	if params.ContentType != nil {
		f.contentTypes[*params.Key] = *params.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[*params.Key]
	if !ok {
		msg := fmt.Sprintf("key %q not found", *params.Key)
		return nil, &types.NoSuchKey{Message: &msg}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Store_PutAndGet(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "reports", "archives/")
	ctx := context.Background()

	if err := store.Put(ctx, "2024/01.zip", []byte("PK\x03\x04")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "2024/01.zip")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "PK\x03\x04" {
		t.Errorf("Get = %q", got)
	}
	if ct := fake.contentTypes["archives/2024/01.zip"]; ct != "application/zip" {
		t.Errorf("content type = %q, want application/zip", ct)
	}
}

func TestS3Store_GetNotFound(t *testing.T) {
	store := NewS3Store(newFakeS3(), "reports", "archives/")

	_, err := store.Get(context.Background(), "missing.zip")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing: err = %v, want ErrNotFound", err)
	}
}

func TestS3Store_GetOtherError(t *testing.T) {
	fake := newFakeS3()
	fake.getErr = errors.New("access denied")
	store := NewS3Store(fake, "reports", "")

	_, err := store.Get(context.Background(), "2024/01.zip")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Get: err = %v, want wrapped access error", err)
	}
}

func TestS3Store_KeyPrefix(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "reports", "tenant-a/")

	if err := store.Put(context.Background(), "01.zip", []byte("zip")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := fake.objects["tenant-a/01.zip"]; !ok {
		t.Errorf("expected prefixed key, got %v", fake.objects)
	}
}
