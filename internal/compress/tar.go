package compress

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"time"
)

// tarCSV positions on the first regular CSV member of a tar archive.
func tarCSV(data []byte) (io.ReadCloser, error) {
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoCSV
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag == tar.TypeReg && isCSV(header.Name) {
			return io.NopCloser(tr), nil
		}
	}
}

// tarEntry buffers the member body, since a tar header carries the size up front.
func tarEntry(w io.Writer, fileName string) io.WriteCloser {
	body := &bytes.Buffer{}
	modTime := time.Now()
	return &entryWriter{Writer: body, finish: func() error {
		tw := tar.NewWriter(w)
		err := tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     fileName,
			Mode:     0o644,
			Size:     int64(body.Len()),
			ModTime:  modTime,
		})
		if err != nil {
			return err
		}
		if _, err := body.WriteTo(tw); err != nil {
			return err
		}
		return tw.Close()
	}}
}
