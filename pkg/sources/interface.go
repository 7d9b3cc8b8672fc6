package sources

import (
	"context"

	"github.com/kerbaras/comicdl/pkg/services"
)

// Comic is a catalog entry.
type Comic struct {
	ID          string
	Title       string
	Description string
	CoverURL    string
}

// Chapter is a catalog chapter.
type Chapter struct {
	ID       string
	ComicID  string
	Title    string
	Language string
	Volume   string
	Number   string
	Pages    int
}

// Catalog resolves comics and chapters to fetchable asset references.
type Catalog interface {
	GetComic(ctx context.Context, id string) (*Comic, error)
	GetChapters(ctx context.Context, comicID, language string) ([]Chapter, error)
	GetPages(ctx context.Context, chapterID string) ([]string, error)
	Sources(ctx context.Context, comicID string, chapterIDs []string) (services.AssetSources, error)
}
