package compilecache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key("/app/pages/index.jsx", ContentHash([]byte("one")), "")
	b := Key("/app/pages/index.jsx", ContentHash([]byte("two")), "")
	c := Key("/app/pages/about.jsx", ContentHash([]byte("one")), "")
	d := Key("/app/pages/index.jsx", ContentHash([]byte("one")), "h|F")

	assert.Len(t, a, 12+1+12+len(".cjs"))
	assert.True(t, strings.HasSuffix(a, ".cjs"))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Equal(t, a[:12], b[:12], "path half is stable across edits")
	assert.Equal(t, a, Key("/app/pages/index.jsx", ContentHash([]byte("one")), ""))
}

func TestDiskStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	s, err := NewDiskStore(dir)
	require.NoError(t, err)

	_, err = s.Get(ctx, "missing.cjs")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "a.cjs", []byte("module.exports = 1")))
	data, err := s.Get(ctx, "a.cjs")
	require.NoError(t, err)
	assert.Equal(t, "module.exports = 1", string(data))

	require.NoError(t, s.Put(ctx, "a.cjs", []byte("module.exports = 2")))
	data, err = s.Get(ctx, "a.cjs")
	require.NoError(t, err)
	assert.Equal(t, "module.exports = 2", string(data))

	require.NoError(t, s.Delete(ctx, "a.cjs"))
	require.NoError(t, s.Delete(ctx, "a.cjs"))
	_, err = s.Get(ctx, "a.cjs")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Put(ctx, "../escape.cjs", nil))
	assert.Error(t, s.Put(ctx, "", nil))
}

func TestDiskStorePrune(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	for _, k := range []string{"a.cjs", "b.cjs", "c.cjs"} {
		require.NoError(t, s.Put(ctx, k, []byte(k)))
	}
	n, err := s.Prune(map[string]bool{"b.cjs": true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.cjs", entries[0].Name())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStore(2)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "b", []byte("2")))
	require.NoError(t, s.Put(ctx, "c", []byte("3")))
	assert.Equal(t, 2, s.Len())

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewMemoryStore(0)
	assert.Error(t, err)
}

func TestLayeredBackfill(t *testing.T) {
	ctx := context.Background()
	front, err := NewMemoryStore(8)
	require.NoError(t, err)
	back, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	l := NewLayered(front, nil, back)

	require.NoError(t, back.Put(ctx, "k.cjs", []byte("compiled")))

	data, err := l.Get(ctx, "k.cjs")
	require.NoError(t, err)
	assert.Equal(t, "compiled", string(data))

	data, err = front.Get(ctx, "k.cjs")
	require.NoError(t, err, "hit in a later layer is copied forward")
	assert.Equal(t, "compiled", string(data))

	require.NoError(t, l.Delete(ctx, "k.cjs"))
	_, err = l.Get(ctx, "k.cjs")
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingStore) Put(context.Context, string, []byte) error   { return f.err }
func (f failingStore) Delete(context.Context, string) error        { return f.err }

func TestLayeredErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	mem, err := NewMemoryStore(4)
	require.NoError(t, err)

	l := NewLayered(failingStore{boom}, mem)
	_, err = l.Get(ctx, "k")
	assert.ErrorIs(t, err, boom, "layer failure surfaces when nothing hits")

	require.NoError(t, mem.Put(ctx, "k", []byte("v")))
	data, err := l.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))

	assert.ErrorIs(t, l.Put(ctx, "x", []byte("y")), boom)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: map[string][]byte{}}
	s := NewS3Store(client, "bucket", "compile/")

	_, err := s.Get(ctx, "a.cjs")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "a.cjs", []byte("code")))
	assert.Contains(t, client.objects, "bucket/compile/a.cjs")

	data, err := s.Get(ctx, "a.cjs")
	require.NoError(t, err)
	assert.Equal(t, "code", string(data))

	require.NoError(t, s.Delete(ctx, "a.cjs"))
	_, err = s.Get(ctx, "a.cjs")
	assert.ErrorIs(t, err, ErrNotFound)
}
