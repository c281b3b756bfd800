package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubS3 struct {
	puts    []*s3.PutObjectInput
	bodies  []string
	deletes []string
	objects map[string]string
	putErr  error
}

func (s *stubS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if s.putErr != nil {
		return nil, s.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	s.puts = append(s.puts, in)
	s.bodies = append(s.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func (s *stubS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	s.deletes = append(s.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (s *stubS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := s.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestPostObjectPath(t *testing.T) {
	assert.Equal(t, "posts/u1/p1/final.jpg", PostObjectPath("u1", "p1", "/tmp/sess/final.jpg"))
}

func TestCleanPath(t *testing.T) {
	for _, bad := range []string{"", "/abs/key", "..", "../x", "a/../../x", "."} {
		_, err := cleanPath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
	p, err := cleanPath("posts/a//b/./c.jpg")
	require.NoError(t, err)
	assert.Equal(t, "posts/a/b/c.jpg", p)
}

func TestS3StorePut(t *testing.T) {
	client := &stubS3{}
	st := NewS3Store(client, "media-bucket", "eu-west-1", "")
	src := writeFile(t, "final.jpg", "pixels")

	url, err := st.Put(context.Background(), "posts/u1/p1/final.jpg", src)
	require.NoError(t, err)
	assert.Equal(t, "https://media-bucket.s3.eu-west-1.amazonaws.com/posts/u1/p1/final.jpg", url)

	require.Len(t, client.puts, 1)
	in := client.puts[0]
	assert.Equal(t, "media-bucket", aws.ToString(in.Bucket))
	assert.Equal(t, "posts/u1/p1/final.jpg", aws.ToString(in.Key))
	assert.Equal(t, "image/jpeg", aws.ToString(in.ContentType))
	assert.Equal(t, projectTag, aws.ToString(in.Tagging))
	assert.Equal(t, int64(6), aws.ToInt64(in.ContentLength))
	assert.Equal(t, "pixels", client.bodies[0])
}

func TestS3StorePutErrors(t *testing.T) {
	client := &stubS3{putErr: errors.New("throttled")}
	st := NewS3Store(client, "b", "", "https://cdn.example.com/")

	_, err := st.Put(context.Background(), "posts/x.jpg", writeFile(t, "x.jpg", "x"))
	assert.ErrorContains(t, err, "throttled")

	_, err = st.Put(context.Background(), "posts/x.jpg", filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)

	_, err = st.Put(context.Background(), "../escape", writeFile(t, "y.jpg", "y"))
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestS3StoreDeleteAndURL(t *testing.T) {
	client := &stubS3{}
	st := NewS3Store(client, "b", "", "https://cdn.example.com/")

	require.NoError(t, st.Delete(context.Background(), "posts/u/p/final.jpg"))
	assert.Equal(t, []string{"posts/u/p/final.jpg"}, client.deletes)
	assert.Equal(t, "https://cdn.example.com/posts/a%20b/c.jpg", st.URL("posts/a b/c.jpg"))
	assert.Equal(t, "https://b.s3.amazonaws.com/k", NewS3Store(client, "b", "", "").URL("k"))
}

func TestS3StoreDownload(t *testing.T) {
	client := &stubS3{objects: map[string]string{"uploads/a.jpg": "data"}}
	st := NewS3Store(client, "b", "", "")
	dst := filepath.Join(t.TempDir(), "a.jpg")

	require.NoError(t, st.Download(context.Background(), "uploads/a.jpg", dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	assert.Error(t, st.Download(context.Background(), "uploads/missing.jpg", dst))
}

func TestS3StorePresignWithoutPresigner(t *testing.T) {
	_, err := NewS3Store(&stubS3{}, "b", "", "").PresignedURL(context.Background(), "k", 0)
	assert.Error(t, err)
}

func TestLocalStorePutDelete(t *testing.T) {
	base := t.TempDir()
	st, err := NewLocalStore(base, "")
	require.NoError(t, err)
	src := writeFile(t, "final.jpg", "pixels")

	url, err := st.Put(context.Background(), "posts/u1/p1/final.jpg", src)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
	assert.True(t, st.Exists("posts/u1/p1/final.jpg"))

	got, err := os.ReadFile(filepath.Join(base, "posts", "u1", "p1", "final.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(got))

	entries, err := os.ReadDir(filepath.Join(base, "posts", "u1", "p1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, st.Delete(context.Background(), "posts/u1/p1/final.jpg"))
	assert.False(t, st.Exists("posts/u1/p1/final.jpg"))
	assert.NoDirExists(t, filepath.Join(base, "posts"))
	assert.DirExists(t, base)

	// Deleting twice is fine.
	assert.NoError(t, st.Delete(context.Background(), "posts/u1/p1/final.jpg"))
}

func TestLocalStoreBaseURL(t *testing.T) {
	st, err := NewLocalStore(t.TempDir(), "http://localhost:8080/media/")
	require.NoError(t, err)
	url, err := st.Put(context.Background(), "posts/a.jpg", writeFile(t, "a.jpg", "a"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/posts/a.jpg", url)
}

func TestLocalStoreCancelled(t *testing.T) {
	st, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = st.Put(ctx, "posts/a.jpg", writeFile(t, "a.jpg", "a"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, st.Delete(ctx, "posts/a.jpg"), context.Canceled)
}
