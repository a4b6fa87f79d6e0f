package upload

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/filex"
)

// source is an opened upload body with its resolved metadata.
type source struct {
	body        io.Reader
	name        string
	size        int64
	contentType string
	closer      io.Closer
}

func (s *source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

type lener interface{ Len() int }

// openSource resolves the body, name, size and MIME type of an upload. Bodies
// of unknown length are buffered so the PUT can carry a Content-Length.
func openSource(file io.Reader, path, name string, size int64) (*source, error) {
	src := &source{name: name, size: size}

	switch {
	case file != nil:
		src.body = file
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return nil, common.ValidationError.Wrap(fmt.Errorf("open %s: %w", path, err))
		}
		src.body, src.closer = f, f
		if src.name == "" {
			src.name = filepath.Base(path)
		}
	default:
		return nil, common.ValidationError.Wrap(common.ErrMissingFile)
	}

	if src.size <= 0 {
		src.size = knownSize(src.body)
	}
	if src.size < 0 {
		b, err := io.ReadAll(src.body)
		if err != nil {
			_ = src.Close()
			return nil, common.ValidationError.Wrap(fmt.Errorf("read %s: %w", src.name, err))
		}
		src.body = bytes.NewReader(b)
		src.size = int64(len(b))
	}

	br := bufio.NewReaderSize(src.body, filex.SniffLen)
	head, _ := br.Peek(filex.SniffLen)
	src.contentType = filex.DetectContentType(src.name, head)
	src.body = br

	return src, nil
}

func knownSize(r io.Reader) int64 {
	switch v := r.(type) {
	case *os.File:
		if fi, err := v.Stat(); err == nil && fi.Mode().IsRegular() {
			return fi.Size()
		}
	case lener:
		return int64(v.Len())
	}
	return -1
}
