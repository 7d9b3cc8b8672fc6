package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kerbaras/comicdl/pkg/services"
)

const (
	DefaultMangaDexURL = "https://api.mangadex.org"
	mangaDexCoversURL  = "https://uploads.mangadex.org/covers"
)

type mdRelationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		FileName string `json:"fileName"`
	} `json:"attributes"`
}

type mdManga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       map[string]string `json:"title"`
		Description map[string]string `json:"description"`
	} `json:"attributes"`
	Relationships []mdRelationship `json:"relationships"`
}

func (m *mdManga) toComic(coversURL string) *Comic {
	c := &Comic{
		ID:          m.ID,
		Title:       firstValue(m.Attributes.Title, "en"),
		Description: firstValue(m.Attributes.Description, "en"),
	}
	for _, rel := range m.Relationships {
		if rel.Type == "cover_art" && rel.Attributes.FileName != "" {
			c.CoverURL = fmt.Sprintf("%s/%s/%s", coversURL, m.ID, rel.Attributes.FileName)
			break
		}
	}
	return c
}

type mdChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title    string `json:"title"`
		Language string `json:"translatedLanguage"`
		Volume   string `json:"volume"`
		Number   string `json:"chapter"`
		Pages    int    `json:"pages"`
	} `json:"attributes"`
}

func (c *mdChapter) toChapter(comicID string) Chapter {
	return Chapter{
		ID:       c.ID,
		ComicID:  comicID,
		Title:    c.Attributes.Title,
		Language: c.Attributes.Language,
		Volume:   c.Attributes.Volume,
		Number:   c.Attributes.Number,
		Pages:    c.Attributes.Pages,
	}
}

// MangaDex is a Catalog backed by the MangaDex API.
type MangaDex struct {
	api       *API
	coversURL string
}

func NewMangaDex(client *http.Client, baseURL, userAgent string) *MangaDex {
	if baseURL == "" {
		baseURL = DefaultMangaDexURL
	}
	return &MangaDex{api: NewAPI(client, baseURL, userAgent), coversURL: mangaDexCoversURL}
}

func (m *MangaDex) GetComic(ctx context.Context, id string) (*Comic, error) {
	var resp struct {
		Data mdManga `json:"data"`
	}
	params := url.Values{"includes[]": {"cover_art"}}
	if err := m.api.Get(ctx, "/manga/"+url.PathEscape(id), params, &resp); err != nil {
		return nil, err
	}
	return resp.Data.toComic(m.coversURL), nil
}

func (m *MangaDex) GetChapters(ctx context.Context, comicID, language string) ([]Chapter, error) {
	params := url.Values{
		"order[volume]":  {"asc"},
		"order[chapter]": {"asc"},
		"limit":          {"500"},
	}
	if language != "" {
		params.Set("translatedLanguage[]", language)
	}
	var feed struct {
		Data []mdChapter `json:"data"`
	}
	if err := m.api.Get(ctx, "/manga/"+url.PathEscape(comicID)+"/feed", params, &feed); err != nil {
		return nil, err
	}
	out := make([]Chapter, len(feed.Data))
	for i := range feed.Data {
		out[i] = feed.Data[i].toChapter(comicID)
	}
	return out, nil
}

func (m *MangaDex) GetPages(ctx context.Context, chapterID string) ([]string, error) {
	var server struct {
		BaseURL string `json:"baseUrl"`
		Chapter struct {
			Hash string   `json:"hash"`
			Data []string `json:"data"`
		} `json:"chapter"`
	}
	if err := m.api.Get(ctx, "/at-home/server/"+url.PathEscape(chapterID), nil, &server); err != nil {
		return nil, err
	}
	pages := make([]string, len(server.Chapter.Data))
	for i, file := range server.Chapter.Data {
		pages[i] = fmt.Sprintf("%s/data/%s/%s", server.BaseURL, server.Chapter.Hash, file)
	}
	return pages, nil
}

// Sources resolves the comic cover and the pages of each chapter.
func (m *MangaDex) Sources(ctx context.Context, comicID string, chapterIDs []string) (services.AssetSources, error) {
	comic, err := m.GetComic(ctx, comicID)
	if err != nil {
		return services.AssetSources{}, fmt.Errorf("failed to get comic: %w", err)
	}
	sources := services.AssetSources{
		Cover: comic.CoverURL,
		Pages: make(map[string][]string, len(chapterIDs)),
	}
	for _, id := range chapterIDs {
		pages, err := m.GetPages(ctx, id)
		if err != nil {
			return services.AssetSources{}, fmt.Errorf("failed to get pages of chapter %s: %w", id, err)
		}
		sources.Pages[id] = pages
	}
	return sources, nil
}

func firstValue(m map[string]string, preferred string) string {
	if v, ok := m[preferred]; ok {
		return v
	}
	for _, v := range m {
		return v
	}
	return ""
}
