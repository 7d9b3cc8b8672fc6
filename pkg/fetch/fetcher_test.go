package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, opts Options) *HTTPFetcher {
	t.Helper()
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join(t.TempDir(), "cache")
	}
	f, err := NewHTTPFetcher(opts)
	require.NoError(t, err)
	t.Cleanup(f.Purge)
	return f
}

func newImageServer(t *testing.T, body []byte, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

type upperTransformer struct{}

func (upperTransformer) Transform(src io.Reader, dst io.Writer) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	_, err = dst.Write([]byte(strings.ToUpper(string(data))))
	return err
}

func TestHTTPFetcher_FetchToLocal(t *testing.T) {
	t.Run("remote asset", func(t *testing.T) {
		server := newImageServer(t, []byte("page-bytes"), nil)
		f := newTestFetcher(t, Options{})
		dst := filepath.Join(t.TempDir(), "c1-1-p0.jpg")

		got, err := f.FetchToLocal(context.Background(), server.URL+"/p0.jpg", dst)
		require.NoError(t, err)
		assert.Equal(t, dst, got)

		content, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "page-bytes", string(content))
	})

	t.Run("repeated ref served from cache", func(t *testing.T) {
		var hits int32
		server := newImageServer(t, []byte("cover"), &hits)
		f := newTestFetcher(t, Options{})
		dir := t.TempDir()

		_, err := f.FetchToLocal(context.Background(), server.URL+"/cover.jpg", filepath.Join(dir, "a.jpg"))
		require.NoError(t, err)
		_, err = f.FetchToLocal(context.Background(), server.URL+"/cover.jpg", filepath.Join(dir, "b.jpg"))
		require.NoError(t, err)

		assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
		assert.FileExists(t, filepath.Join(dir, "b.jpg"))
	})

	t.Run("bad status", func(t *testing.T) {
		server := newImageServer(t, nil, nil)
		f := newTestFetcher(t, Options{})
		dst := filepath.Join(t.TempDir(), "p.jpg")

		_, err := f.FetchToLocal(context.Background(), server.URL+"/missing.jpg", dst)

		var ferr *FetchError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, dst, ferr.Path)
		var serr *StatusError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, http.StatusNotFound, serr.StatusCode)
		assert.NoFileExists(t, dst)
	})

	t.Run("unreachable host", func(t *testing.T) {
		f := newTestFetcher(t, Options{Timeout: 2 * time.Second})
		_, err := f.FetchToLocal(context.Background(), "http://invalid-url-that-does-not-exist.local/p.jpg",
			filepath.Join(t.TempDir(), "p.jpg"))

		var ferr *FetchError
		assert.ErrorAs(t, err, &ferr)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		f := newTestFetcher(t, Options{Timeout: 50 * time.Millisecond})
		_, err := f.FetchToLocal(context.Background(), server.URL+"/slow.jpg", filepath.Join(t.TempDir(), "p.jpg"))
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := newImageServer(t, []byte("x"), nil)
		f := newTestFetcher(t, Options{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.FetchToLocal(ctx, server.URL+"/p.jpg", filepath.Join(t.TempDir(), "p.jpg"))
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("local path and file url", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src.jpg")
		require.NoError(t, os.WriteFile(src, []byte("local"), 0644))
		f := newTestFetcher(t, Options{})

		_, err := f.FetchToLocal(context.Background(), src, filepath.Join(dir, "a.jpg"))
		require.NoError(t, err)
		_, err = f.FetchToLocal(context.Background(), "file://"+src, filepath.Join(dir, "b.jpg"))
		require.NoError(t, err)

		for _, name := range []string{"a.jpg", "b.jpg"} {
			content, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err)
			assert.Equal(t, "local", string(content))
		}
	})

	t.Run("missing local file", func(t *testing.T) {
		f := newTestFetcher(t, Options{})
		_, err := f.FetchToLocal(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"), filepath.Join(t.TempDir(), "p.jpg"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty ref", func(t *testing.T) {
		f := newTestFetcher(t, Options{})
		_, err := f.FetchToLocal(context.Background(), "", filepath.Join(t.TempDir(), "p.jpg"))
		assert.Error(t, err)
	})

	t.Run("transformer applied", func(t *testing.T) {
		server := newImageServer(t, []byte("abc"), nil)
		f := newTestFetcher(t, Options{Transformer: upperTransformer{}})
		dst := filepath.Join(t.TempDir(), "p.jpg")

		_, err := f.FetchToLocal(context.Background(), server.URL+"/p.jpg", dst)
		require.NoError(t, err)

		content, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "ABC", string(content))
	})
}

func TestHTTPFetcher_ConcurrentFetchKeepsOneCacheFile(t *testing.T) {
	// Both requests are held until the second one arrives so the downloads overlap.
	var arrived sync.WaitGroup
	arrived.Add(2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived.Done()
		arrived.Wait()
		w.Write([]byte("shared"))
	}))
	t.Cleanup(server.Close)

	cacheDir := filepath.Join(t.TempDir(), "cache")
	f := newTestFetcher(t, Options{CacheDir: cacheDir})
	dir := t.TempDir()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.FetchToLocal(context.Background(), server.URL+"/cover.jpg", filepath.Join(dir, string(rune('a'+i))+".jpg"))
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	for _, name := range []string{"a.jpg", "b.jpg"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, "shared", string(data))
	}

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	f.Purge()
	entries, err = os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHTTPFetcher_PurgeRemovesCacheFiles(t *testing.T) {
	server := newImageServer(t, []byte("x"), nil)
	cacheDir := filepath.Join(t.TempDir(), "cache")
	f := newTestFetcher(t, Options{CacheDir: cacheDir})

	_, err := f.FetchToLocal(context.Background(), server.URL+"/p.jpg", filepath.Join(t.TempDir(), "p.jpg"))
	require.NoError(t, err)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	f.Purge()

	entries, err = os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSourceKind(t *testing.T) {
	assert.Equal(t, "remote", sourceKind("https://uploads.example.org/p.jpg"))
	assert.Equal(t, "remote", sourceKind("http://uploads.example.org/p.jpg"))
	assert.Equal(t, "local", sourceKind("file:///tmp/p.jpg"))
	assert.Equal(t, "local", sourceKind("/tmp/p.jpg"))
	assert.Equal(t, "/tmp/p.jpg", localFilePath("file:///tmp/p.jpg"))
}
