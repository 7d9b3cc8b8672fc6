package components

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/comicdl/pkg/data"
)

func testRecords() data.Records {
	return data.Records{
		"beta": {
			ComicID:  "beta",
			CoverURI: "/c/beta-cover.jpg",
			Chapters: map[string][]string{
				"10": {"a", "b"},
				"2":  {"c"},
			},
		},
		"alpha": {
			ComicID:  "alpha",
			Chapters: map[string][]string{"1": {"x", "y", "z"}},
		},
	}
}

func TestDownloadRows(t *testing.T) {
	rows := DownloadRows(testRecords())
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"alpha", "1", "3", "no", "1"}, []string(rows[0]))
	assert.Equal(t, []string{"beta", "2", "3", "yes", "2, 10"}, []string(rows[1]))
}

func TestDownloadsView(t *testing.T) {
	assert.Contains(t, DownloadsView(data.Records{}, 80), "No downloaded comics")

	view := DownloadsView(testRecords(), 120)
	assert.True(t, strings.Contains(view, "alpha"))
	assert.True(t, strings.Contains(view, "Chapters"))
}
