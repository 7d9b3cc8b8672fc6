package data

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, driver string) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := OpenStore(context.Background(), driver, path)
	if err != nil {
		t.Fatalf("Failed to open %s store: %v", driver, err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func commitChapter(comicID, chapterID, cover string, pages ...string) func(Records) error {
	return func(rs Records) error {
		r := rs.Record(comicID)
		if r.CoverURI == "" {
			r.CoverURI = cover
		}
		r.Chapters[chapterID] = pages
		return nil
	}
}

func TestStoreDrivers(t *testing.T) {
	for _, driver := range []string{"duckdb", "bolt"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			store, path := setupTestStore(t, driver)

			rs, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, rs)

			err = store.Commit(ctx, commitChapter("comic-1", "1", "/d/comic-1-cover.jpg",
				"/d/comic-1-1-p0.jpg", "/d/comic-1-1-p1.jpg"))
			require.NoError(t, err)

			record, ok := store.Get("comic-1")
			require.True(t, ok)
			assert.Equal(t, "comic-1", record.ComicID)
			assert.Equal(t, "/d/comic-1-cover.jpg", record.CoverURI)
			assert.Equal(t, []string{"/d/comic-1-1-p0.jpg", "/d/comic-1-1-p1.jpg"}, record.Chapters["1"])

			// Reopen and verify persistence
			require.NoError(t, store.Close())
			reopened, err := OpenStore(ctx, driver, path)
			require.NoError(t, err)
			defer reopened.Close()

			record, ok = reopened.Get("comic-1")
			require.True(t, ok)
			assert.Len(t, record.Chapters["1"], 2)
		})
	}
}

func TestStoreCommitRewritesWholeMap(t *testing.T) {
	ctx := context.Background()
	store, path := setupTestStore(t, "duckdb")

	require.NoError(t, store.Commit(ctx, commitChapter("a", "1", "a.jpg", "a1.jpg")))
	require.NoError(t, store.Commit(ctx, commitChapter("b", "1", "b.jpg", "b1.jpg")))
	require.NoError(t, store.Commit(ctx, func(rs Records) error {
		delete(rs, "a")
		return nil
	}))
	require.NoError(t, store.Close())

	reopened, err := OpenStore(ctx, "duckdb", path)
	require.NoError(t, err)
	defer reopened.Close()

	all := reopened.All()
	assert.Len(t, all, 1)
	assert.Contains(t, all, "b")
}

func TestStoreCommitErrorLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t, "duckdb")

	require.NoError(t, store.Commit(ctx, commitChapter("a", "1", "a.jpg", "a1.jpg")))

	boom := errors.New("boom")
	err := store.Commit(ctx, func(rs Records) error {
		rs.Record("a").Chapters["2"] = []string{"a2.jpg"}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	record, ok := store.Get("a")
	require.True(t, ok)
	assert.False(t, record.HasChapter("2"))
}

func TestStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t, "memory")

	require.NoError(t, store.Commit(ctx, commitChapter("a", "1", "a.jpg", "a1.jpg")))

	record, _ := store.Get("a")
	record.Chapters["1"][0] = "mutated"
	delete(record.Chapters, "1")

	again, _ := store.Get("a")
	assert.Equal(t, []string{"a1.jpg"}, again.Chapters["1"])
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t, "bolt")
	require.NoError(t, store.Close())

	err := store.Commit(ctx, commitChapter("a", "1", "a.jpg", "a1.jpg"))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	// Close is idempotent
	assert.NoError(t, store.Close())
}

func TestStoreCorruptedBlob(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Write(ctx, []byte("{not json")))

	store := NewStore(backend)
	err := store.Open(ctx)

	var derr *DeserializeError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, err.Error(), StorageKey)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), "postgres", "")
	assert.Error(t, err)
}
