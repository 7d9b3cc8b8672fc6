package services

// Status is the effective download state of one chapter.
type Status string

const (
	StatusNone        Status = "none"
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusFailed      Status = "failed"
	StatusDownloaded  Status = "downloaded"
)

// ChapterStatus is what GetChapterStatus reports.
type ChapterStatus struct {
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

// DownloadInfo summarizes how much of a comic is on-device.
type DownloadInfo struct {
	DownloadedCount int     `json:"downloadedCount"`
	Progress        float64 `json:"progress"`
}

// AssetSources resolves a comic's cover and each chapter's pages to fetchable references.
type AssetSources struct {
	Cover string              `json:"cover"`
	Pages map[string][]string `json:"pages"` // chapterID -> page refs in page order
}

// DownloadProgress is emitted on the progress channel as chapters move through the queue.
type DownloadProgress struct {
	BatchID     string
	ComicID     string
	ChapterID   string
	CurrentPage int
	TotalPages  int
	Progress    float64
	Status      Status
	Error       error
}
