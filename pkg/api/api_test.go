package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/comicdl/pkg/data"
	"github.com/kerbaras/comicdl/pkg/fetch"
	"github.com/kerbaras/comicdl/pkg/services"
)

func setupServer(t *testing.T) (*httptest.Server, *services.Manager) {
	t.Helper()
	fetcher, err := fetch.NewHTTPFetcher(fetch.Options{CacheDir: t.TempDir(), Logger: zerolog.Nop()})
	require.NoError(t, err)

	m := services.NewManager(services.Options{
		Dir:     t.TempDir(),
		Store:   data.NewStore(data.NewMemoryBackend()),
		Fetcher: fetcher,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, m.Open(context.Background()))

	server := httptest.NewServer(NewRouter(m, zerolog.Nop()))
	t.Cleanup(func() {
		server.Close()
		m.Close()
	})
	return server, m
}

// localSources writes page files to a temp dir and references them by path.
func localSources(t *testing.T, chapterID string, pages int) services.AssetSources {
	dir := t.TempDir()
	cover := filepath.Join(dir, "cover.jpg")
	require.NoError(t, os.WriteFile(cover, []byte("cover"), 0644))

	s := services.AssetSources{Cover: cover, Pages: map[string][]string{}}
	for i := 0; i < pages; i++ {
		p := filepath.Join(dir, fmt.Sprintf("%s-%d.jpg", chapterID, i))
		require.NoError(t, os.WriteFile(p, []byte(fmt.Sprintf("page %d", i)), 0644))
		s.Pages[chapterID] = append(s.Pages[chapterID], p)
	}
	return s
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func postDownload(t *testing.T, server *httptest.Server, comicID string, req downloadRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(server.URL+"/comics/"+comicID+"/downloads", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	return resp
}

func waitDownloaded(t *testing.T, server *httptest.Server, comicID, chapterID string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		var status services.ChapterStatus
		getJSON(t, fmt.Sprintf("%s/comics/%s/chapters/%s", server.URL, comicID, chapterID), &status)
		return status.Status == services.StatusDownloaded
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDownloadFlow(t *testing.T) {
	server, _ := setupServer(t)

	var status services.ChapterStatus
	code := getJSON(t, server.URL+"/comics/c1/chapters/1", &status)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, services.StatusNone, status.Status)

	resp := postDownload(t, server, "c1", downloadRequest{Chapters: []string{"1"}, Sources: localSources(t, "1", 3)})
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	waitDownloaded(t, server, "c1", "1")

	var pages map[string][]string
	assert.Equal(t, http.StatusOK, getJSON(t, server.URL+"/comics/c1/chapters/1/pages", &pages))
	assert.Len(t, pages["pages"], 3)

	resp, err := http.Get(server.URL + "/comics/c1/chapters/1/pages/2")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "page 2", string(body))

	resp, err = http.Get(server.URL + "/comics/c1/chapters/1/pages/7")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/comics/c1/cover")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "cover", string(body))

	var info services.DownloadInfo
	assert.Equal(t, http.StatusOK, getJSON(t, server.URL+"/comics/c1/info?total=4", &info))
	assert.Equal(t, services.DownloadInfo{DownloadedCount: 1, Progress: 0.25}, info)

	var downloads map[string]json.RawMessage
	getJSON(t, server.URL+"/downloads", &downloads)
	assert.Contains(t, downloads, "c1")
}

func TestDownloadResponseReportsQueued(t *testing.T) {
	server, _ := setupServer(t)

	release := make(chan struct{})
	assets := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("asset"))
	}))
	t.Cleanup(func() {
		close(release)
		assets.Close()
	})

	sources := services.AssetSources{
		Cover: assets.URL + "/cover.jpg",
		Pages: map[string][]string{
			"1": {assets.URL + "/1/0.jpg"},
			"2": {assets.URL + "/2/0.jpg"},
		},
	}
	resp := postDownload(t, server, "c1", downloadRequest{Chapters: []string{"1", "2"}, Sources: sources})
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var statuses map[string]services.ChapterStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statuses))
	assert.Contains(t, []services.Status{services.StatusQueued, services.StatusDownloading}, statuses["1"].Status)
	// The single worker is held on chapter 1.
	assert.Equal(t, services.StatusQueued, statuses["2"].Status)
}

func TestDeleteChapter(t *testing.T) {
	server, m := setupServer(t)
	require.NoError(t, m.DownloadChapters(context.Background(), "c1", []string{"1"}, localSources(t, "1", 2)))

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/comics/c1/chapters/1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var status services.ChapterStatus
	getJSON(t, server.URL+"/comics/c1/chapters/1", &status)
	assert.Equal(t, services.StatusNone, status.Status)

	assert.Equal(t, http.StatusNotFound, getJSON(t, server.URL+"/comics/c1/cover", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, server.URL+"/comics/c1/chapters/1/pages", nil))
}

func TestDownloadInfoValidation(t *testing.T) {
	server, _ := setupServer(t)

	var info services.DownloadInfo
	assert.Equal(t, http.StatusOK, getJSON(t, server.URL+"/comics/c1/info?total=0", &info))
	assert.Equal(t, services.DownloadInfo{}, info)

	var e errorResponse
	assert.Equal(t, http.StatusBadRequest, getJSON(t, server.URL+"/comics/c1/info?total=abc", &e))
	assert.NotEmpty(t, e.Error)
}

func TestDownloadRequestValidation(t *testing.T) {
	server, _ := setupServer(t)

	resp, err := http.Post(server.URL+"/comics/c1/downloads", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postDownload(t, server, "c1", downloadRequest{})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelUnknownChapter(t *testing.T) {
	server, _ := setupServer(t)

	resp, err := http.Post(server.URL+"/comics/c1/chapters/1/cancel", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQueueAndMetrics(t *testing.T) {
	server, _ := setupServer(t)

	var entries []services.QueueEntry
	assert.Equal(t, http.StatusOK, getJSON(t, server.URL+"/queue", &entries))
	assert.Empty(t, entries)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "comicdl_asset_bytes_total")
}

func TestNewHTTPServer(t *testing.T) {
	srv := NewHTTPServer("127.0.0.1", 0, http.NotFoundHandler())
	assert.Equal(t, "127.0.0.1:8088", srv.Addr)
}
