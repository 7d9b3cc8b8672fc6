package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/comicdl/pkg/services"
	"github.com/kerbaras/comicdl/pkg/sources"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		in         string
		start, end float64
		wantErr    bool
	}{
		{in: "", start: 0, end: -1},
		{in: "3", start: 3, end: 3},
		{in: "1-10", start: 1, end: 10},
		{in: " 2 - 4 ", start: 2, end: 4},
		{in: "1.5-2", start: 1.5, end: 2},
		{in: "5-1", wantErr: true},
		{in: "a-b", wantErr: true},
		{in: "1-x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			start, end, err := parseRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestSelectChapters(t *testing.T) {
	chapters := []sources.Chapter{
		{ID: "a", Number: "1"},
		{ID: "b", Number: "2"},
		{ID: "b", Number: "2"},
		{ID: "c", Number: "2.5"},
		{ID: "d", Number: "3"},
		{ID: "e", Number: ""},
	}

	assert.Equal(t, []string{"b", "c"}, selectChapters(chapters, 2, 2.5))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, selectChapters(chapters, 0, -1))
	assert.Empty(t, selectChapters(chapters, 10, 20))
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	dir := t.TempDir()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args,
		"--store-driver", "memory",
		"--download-dir", filepath.Join(dir, "comics"),
		"--log-level", "error",
	))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestListEmpty(t *testing.T) {
	out := runCommand(t, "list")
	assert.Contains(t, out, "No downloaded comics")
}

func TestStatusNothingDownloaded(t *testing.T) {
	out := runCommand(t, "status", "comic-1", "--total", "10")
	assert.Contains(t, out, "Nothing downloaded for comic-1")
	assert.Contains(t, out, "0/10 chapters downloaded")
}

func TestStatusOfUnknownChapter(t *testing.T) {
	out := runCommand(t, "status", "comic-1", "7")
	assert.Contains(t, out, "chapter 7")
	assert.Contains(t, out, "none")
}

type fakeStatusReader struct {
	statusFunc func(comicID, chapterID string) services.ChapterStatus
}

func (f *fakeStatusReader) GetChapterStatus(comicID, chapterID string) services.ChapterStatus {
	return f.statusFunc(comicID, chapterID)
}

func TestCountDownloadedOnlyCountsRequested(t *testing.T) {
	onDevice := map[string]bool{"1": true, "2": true, "3": true, "4": true, "5": true}
	r := &fakeStatusReader{statusFunc: func(comicID, chapterID string) services.ChapterStatus {
		if comicID == "c1" && onDevice[chapterID] {
			return services.ChapterStatus{Status: services.StatusDownloaded, Progress: 1}
		}
		return services.ChapterStatus{Status: services.StatusFailed}
	}}

	assert.Equal(t, 2, countDownloaded(r, "c1", []string{"4", "5", "6"}))
	assert.Equal(t, 0, countDownloaded(r, "c2", []string{"1"}))
	assert.Equal(t, 0, countDownloaded(r, "c1", nil))
}
