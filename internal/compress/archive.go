package compress

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ArchiveType names a supported container format.
type ArchiveType string

const (
	ArchiveZip  ArchiveType = "zip"
	ArchiveTar  ArchiveType = "tar"
	ArchiveNone ArchiveType = ""
)

var ErrNoCSV = errors.New("CSV file not found in archive")

// ParseArchiveType accepts "zip" or "tar", case-insensitively.
func ParseArchiveType(value string) (ArchiveType, error) {
	switch ArchiveType(strings.ToLower(strings.TrimSpace(value))) {
	case ArchiveZip:
		return ArchiveZip, nil
	case ArchiveTar:
		return ArchiveTar, nil
	}
	return ArchiveNone, fmt.Errorf("unsupported archive type %q", value)
}

// TypeFromPath picks the archive type from a file extension. Plain files map to ArchiveNone.
func TypeFromPath(path string) ArchiveType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return ArchiveZip
	case ".tar":
		return ArchiveTar
	}
	return ArchiveNone
}

// OpenCSV unwraps the first CSV entry of an archive, or returns r as is.
func OpenCSV(kind ArchiveType, r io.ReadCloser) (io.ReadCloser, error) {
	switch kind {
	case ArchiveZip:
		return unpack(r, zipCSV)
	case ArchiveTar:
		return unpack(r, tarCSV)
	case ArchiveNone:
		return r, nil
	}
	r.Close()
	return nil, fmt.Errorf("unsupported archive type %q", kind)
}

// NewWriter returns a writer that packs a single entry into the chosen archive.
func NewWriter(kind ArchiveType, w io.Writer, fileName string) (io.WriteCloser, error) {
	switch kind {
	case ArchiveZip:
		return zipEntry(w, fileName)
	case ArchiveTar:
		return tarEntry(w, fileName), nil
	}
	return nil, fmt.Errorf("unsupported archive type %q", kind)
}

// unpack buffers the whole archive, since zip needs random access, and hands
// it to find. r is always closed.
func unpack(r io.ReadCloser, find func([]byte) (io.ReadCloser, error)) (io.ReadCloser, error) {
	data, err := io.ReadAll(r)
	closeErr := r.Close()
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close archive: %w", closeErr)
	}
	return find(data)
}

func isCSV(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}

// entryWriter is a single archive member; finish writes the archive trailer.
type entryWriter struct {
	io.Writer
	finish func() error
}

func (e *entryWriter) Close() error {
	return e.finish()
}
