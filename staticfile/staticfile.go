// Package staticfile implements the static file server (component F,
// §4.F): given a resolved filesystem path it verifies the target is a
// regular file, memory-maps its content, determines a Content-Type, and
// hands back everything a response needs (mod time, content type, bytes).
//
// Grounded on original_source/source/httputils/httputils.c's
// is_regular_file / get_file_size / send_file (the mmap-based static
// send), enriched with an in-memory cache (staticfile/cache.go) adapted
// from the teacher's coffer.go so repeat requests for the same file
// avoid a fresh mmap.
package staticfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dieortin/http-server/mimetable"
)

// Sentinel errors mirroring the not-found / internal split used by the
// dispatcher to pick a status code (§4.F, §7).
var (
	ErrNotFound = errors.New("staticfile: not found")
	ErrInternal = errors.New("staticfile: internal error")
)

// File is a served static asset. Bytes() is valid until Close is called.
// Close is always safe to call, including on cache hits where there is no
// mapping to release.
type File struct {
	ModTime     time.Time
	ContentType string

	data   []byte
	mapped bool
}

// Bytes returns the file content.
func (f *File) Bytes() []byte { return f.data }

// Len returns len(Bytes()).
func (f *File) Len() int { return len(f.data) }

// Close releases the mmap backing this File, if any.
func (f *File) Close() error {
	if f.mapped && len(f.data) > 0 {
		return unix.Munmap(f.data)
	}
	return nil
}

// Server resolves request paths under Root to static files.
type Server struct {
	Root  string
	Table *mimetable.Table

	cache *cache
}

// New returns a Server rooted at root, caching up to maxCacheBytes of
// asset content in memory.
func New(root string, table *mimetable.Table, maxCacheBytes int) (*Server, error) {
	c, err := newCache(maxCacheBytes)
	if err != nil {
		return nil, err
	}
	return &Server{Root: root, Table: table, cache: c}, nil
}

// Open resolves requestPath (already joined with the webroot by the
// dispatcher's path-resolution step, §4.H) to a static file. It rejects
// anything that isn't a regular file, per §4.F's "directories and
// special files are never served directly here" edge case.
func (s *Server) Open(fullPath string) (*File, error) {
	clean := filepath.Clean(fullPath)
	if !strings.HasPrefix(clean, filepath.Clean(s.Root)) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fullPath)
	}

	fi, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fullPath)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", ErrNotFound, fullPath)
	}

	if data, contentType, ok := s.cache.get(clean, fi.ModTime()); ok {
		return &File{ModTime: fi.ModTime(), ContentType: contentType, data: data}, nil
	}

	data, err := s.mapFile(clean, fi.Size())
	if err != nil {
		return nil, err
	}

	contentType := s.contentType(clean, data)
	s.cache.put(clean, fi.ModTime(), contentType, data)

	return &File{ModTime: fi.ModTime(), ContentType: contentType, data: data, mapped: true}, nil
}

func (s *Server) mapFile(path string, size int64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrInternal, path, err)
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %s: %v", ErrInternal, path, err)
	}

	return data, nil
}

func (s *Server) contentType(path string, data []byte) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ct, ok := s.Table.Lookup(ext); ok {
		return ct
	}
	return mimetable.Sniff(data)
}
