package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Asset fetch metrics
var (
	AssetFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicdl_asset_fetches_total",
			Help: "Total number of asset fetches, by source and result.",
		},
		[]string{"source", "status"},
	)

	AssetBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "comicdl_asset_bytes_total",
			Help: "Total bytes written to the comics directory.",
		},
	)

	AssetFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "comicdl_asset_fetch_duration_seconds",
			Help:    "Duration of asset fetches.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)

// Chapter lifecycle metrics
var (
	ChapterDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comicdl_chapter_downloads_total",
			Help: "Chapters that reached a terminal state, by status.",
		},
		[]string{"status"},
	)

	ChapterDeletionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "comicdl_chapter_deletions_total",
			Help: "Total number of deleted chapters.",
		},
	)

	QueueEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "comicdl_queue_entries",
			Help: "Current queue entries, by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		AssetFetchesTotal,
		AssetBytesTotal,
		AssetFetchDuration,
		ChapterDownloadsTotal,
		ChapterDeletionsTotal,
		QueueEntries,
	)
}
