package compress

import (
	"archive/zip"
	"bytes"
	"io"
	"time"
)

// zipCSV opens the first CSV member of a zip archive.
func zipCSV(data []byte) (io.ReadCloser, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() && isCSV(f.Name) {
			return f.Open()
		}
	}
	return nil, ErrNoCSV
}

// zipEntry streams writes into a single deflated member. Close finishes the
// central directory but leaves w open.
func zipEntry(w io.Writer, fileName string) (io.WriteCloser, error) {
	zw := zip.NewWriter(w)
	member, err := zw.CreateHeader(&zip.FileHeader{
		Name:     fileName,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return &entryWriter{Writer: member, finish: zw.Close}, nil
}
