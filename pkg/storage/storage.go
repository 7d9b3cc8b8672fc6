// Package storage owns the on-device comics directory and its file naming.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirectoryError reports a failure to prepare the comics directory.
type DirectoryError struct {
	Dir string
	Err error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("failed to prepare directory %s: %v", e.Dir, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// Layout names the files kept in a single comics directory.
type Layout struct {
	Dir string
}

func NewLayout(dir string) Layout {
	return Layout{Dir: dir}
}

// EnsureDirectory creates the directory (and parents) if it is missing.
func (l Layout) EnsureDirectory() error {
	return EnsureDirectory(l.Dir)
}

// CoverPath is where the comic's cover is stored.
func (l Layout) CoverPath(comicID string) string {
	return filepath.Join(l.Dir, fmt.Sprintf("%s-cover.jpg", sanitize(comicID)))
}

// PagePath is where page pageIndex (0-based) of a chapter is stored.
func (l Layout) PagePath(comicID, chapterID string, pageIndex int) string {
	return filepath.Join(l.Dir, fmt.Sprintf("%s-%s-p%d.jpg", sanitize(comicID), sanitize(chapterID), pageIndex))
}

// EnsureDirectory is idempotent; an existing directory is left alone.
func EnsureDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return &DirectoryError{Dir: dir, Err: fmt.Errorf("not a directory")}
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return &DirectoryError{Dir: dir, Err: err}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &DirectoryError{Dir: dir, Err: err}
	}
	return nil
}

// RemoveFile deletes path. A missing file is not an error.
func RemoveFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// sanitize escapes an id into a filename fragment. Bytes other than ASCII
// letters, digits, '.' and '_' become %XX, so distinct ids never share a name and
// the '-' separators in Layout names stay unambiguous.
func sanitize(id string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '.', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0F])
		}
	}
	return b.String()
}
