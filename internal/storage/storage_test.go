package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	p := filepath.Join(t.TempDir(), "01_book.mp3")
	require.NoError(t, os.WriteFile(p, []byte("ID3data"), 0o644))

	fake := &fakeS3{}
	u := NewS3Uploader(fake, "bucket", "/narrator/")

	key, err := u.Upload(context.Background(), "book", p)
	require.NoError(t, err)
	assert.Equal(t, "narrator/book/01_book.mp3", key)
	assert.Equal(t, "bucket", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "audio/mpeg", aws.ToString(fake.in.ContentType))
	assert.Equal(t, int64(7), aws.ToInt64(fake.in.ContentLength))
	assert.Equal(t, []byte("ID3data"), fake.body)
}

func TestUploadErrors(t *testing.T) {
	u := NewS3Uploader(&fakeS3{}, "bucket", "")
	_, err := u.Upload(context.Background(), "book", filepath.Join(t.TempDir(), "nope.mp3"))
	assert.Error(t, err)

	p := filepath.Join(t.TempDir(), "book_translated.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	u = NewS3Uploader(&fakeS3{err: errors.New("denied")}, "bucket", "")
	_, err = u.Upload(context.Background(), "book", p)
	assert.ErrorContains(t, err, "denied")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/plain; charset=utf-8", contentType("a.TXT"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}
