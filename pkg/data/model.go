package data

// DownloadRecord is the persisted download metadata for one comic.
type DownloadRecord struct {
	ComicID  string              `json:"-"`
	CoverURI string              `json:"coverUri"`
	Chapters map[string][]string `json:"chapters"` // chapterID -> page paths in page order
}

// Clone returns a deep copy of the record.
func (r *DownloadRecord) Clone() *DownloadRecord {
	if r == nil {
		return nil
	}
	out := &DownloadRecord{
		ComicID:  r.ComicID,
		CoverURI: r.CoverURI,
		Chapters: make(map[string][]string, len(r.Chapters)),
	}
	for id, pages := range r.Chapters {
		out.Chapters[id] = append([]string(nil), pages...)
	}
	return out
}

// HasChapter reports whether the chapter has been committed.
func (r *DownloadRecord) HasChapter(chapterID string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Chapters[chapterID]
	return ok
}

// Records maps comic IDs to their download records.
type Records map[string]*DownloadRecord

// Clone returns a deep copy of every record.
func (rs Records) Clone() Records {
	out := make(Records, len(rs))
	for id, r := range rs {
		out[id] = r.Clone()
	}
	return out
}

// Record returns the record for comicID, creating an empty one if needed.
func (rs Records) Record(comicID string) *DownloadRecord {
	r, ok := rs[comicID]
	if !ok {
		r = &DownloadRecord{ComicID: comicID, Chapters: make(map[string][]string)}
		rs[comicID] = r
	}
	if r.Chapters == nil {
		r.Chapters = make(map[string][]string)
	}
	return r
}
