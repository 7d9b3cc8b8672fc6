// Package fetch turns asset references into local files.
//
// Remote assets are downloaded into a cache directory first and then copied to
// the requested path, so a repeated reference inside the cache TTL is served
// without touching the network.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/kerbaras/comicdl/pkg/metrics"
)

// Fetcher produces a local file for an asset reference.
type Fetcher interface {
	FetchToLocal(ctx context.Context, ref, localPath string) (string, error)
}

// Transformer rewrites an asset while it is copied into place.
type Transformer interface {
	Transform(src io.Reader, dst io.Writer) error
}

// Options configures an HTTPFetcher.
type Options struct {
	CacheDir    string
	CacheSize   int
	CacheTTL    time.Duration
	Timeout     time.Duration
	UserAgent   string
	Client      *http.Client
	Transformer Transformer
	Logger      zerolog.Logger
}

// HTTPFetcher fetches http(s) references through a cache directory and copies
// file:// references and plain paths directly.
type HTTPFetcher struct {
	client      *http.Client
	cacheDir    string
	cacheMu     sync.Mutex
	cache       *lru.LRU[string, string]
	policy      timeout.Timeout[any]
	userAgent   string
	transformer Transformer
	logger      zerolog.Logger
}

// NewHTTPFetcher creates the cache directory and returns a ready fetcher.
func NewHTTPFetcher(opts Options) (*HTTPFetcher, error) {
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join(os.TempDir(), "comicdl-cache")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if err := os.MkdirAll(opts.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Evicted entries take their cached file with them.
	onEvict := func(_ string, path string) {
		os.Remove(path)
	}

	return &HTTPFetcher{
		client:      opts.Client,
		cacheDir:    opts.CacheDir,
		cache:       lru.NewLRU[string, string](opts.CacheSize, onEvict, opts.CacheTTL),
		policy:      timeout.New[any](opts.Timeout),
		userAgent:   opts.UserAgent,
		transformer: opts.Transformer,
		logger:      opts.Logger.With().Str("component", "fetcher").Logger(),
	}, nil
}

// FetchToLocal writes the asset behind ref to localPath and returns localPath.
func (f *HTTPFetcher) FetchToLocal(ctx context.Context, ref, localPath string) (string, error) {
	start := time.Now()
	source := sourceKind(ref)

	err := f.fetch(ctx, source, ref, localPath)
	metrics.AssetFetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AssetFetchesTotal.WithLabelValues(source, "error").Inc()
		return "", &FetchError{Ref: ref, Path: localPath, Err: err}
	}
	metrics.AssetFetchesTotal.WithLabelValues(source, "success").Inc()
	return localPath, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, source, ref, localPath string) error {
	if ref == "" {
		return fmt.Errorf("empty asset reference")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if source == "local" {
		return f.copyFile(localFilePath(ref), localPath)
	}

	cached, ok := f.cache.Get(ref)
	if ok {
		if _, err := os.Stat(cached); err == nil {
			f.logger.Debug().Str("ref", ref).Msg("Serving asset from cache")
			return f.copyFile(cached, localPath)
		}
		f.cache.Remove(ref)
	}

	cached, err := f.download(ctx, ref)
	if err != nil {
		return err
	}
	return f.copyFile(f.remember(ref, cached), localPath)
}

// remember caches a downloaded file under ref. When a concurrent download of the
// same ref got there first, the new file is dropped and the cached one returned.
func (f *HTTPFetcher) remember(ref, path string) string {
	f.cacheMu.Lock()
	defer f.cacheMu.Unlock()

	if existing, ok := f.cache.Get(ref); ok && existing != path {
		if _, err := os.Stat(existing); err == nil {
			os.Remove(path)
			return existing
		}
	}
	f.cache.Add(ref, path)
	return path
}

// download stores the remote asset in the cache directory and returns its path.
func (f *HTTPFetcher) download(ctx context.Context, ref string) (string, error) {
	cachePath := filepath.Join(f.cacheDir, uuid.NewString())

	err := failsafe.With[any](f.policy).WithContext(ctx).RunWithExecution(func(exec failsafe.Execution[any]) error {
		req, err := http.NewRequestWithContext(exec.Context(), http.MethodGet, ref, nil)
		if err != nil {
			return err
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		return writeAtomic(cachePath, func(w io.Writer) error {
			_, err := io.Copy(w, resp.Body)
			return err
		})
	})
	if err != nil {
		return "", err
	}
	return cachePath, nil
}

func (f *HTTPFetcher) copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeAtomic(dst, func(w io.Writer) error {
		counter := &countingWriter{w: w}
		var err error
		if f.transformer != nil {
			err = f.transformer.Transform(in, counter)
		} else {
			_, err = io.Copy(counter, in)
		}
		metrics.AssetBytesTotal.Add(float64(counter.n))
		return err
	})
}

// writeAtomic writes to a sibling temp file and renames it over path.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Purge drops every cached asset.
func (f *HTTPFetcher) Purge() {
	f.cache.Purge()
}

func sourceKind(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return "remote"
	}
	return "local"
}

func localFilePath(ref string) string {
	if strings.HasPrefix(ref, "file://") {
		if u, err := url.Parse(ref); err == nil {
			return u.Path
		}
		return strings.TrimPrefix(ref, "file://")
	}
	return ref
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
