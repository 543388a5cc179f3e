package inflate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mnemo/internal/errors"
)

// FileReader resolves source paths against a base directory and reads exact
// byte ranges from the underlying files.
type FileReader struct {
	BaseDir string
}

// NewFileReader creates a FileReader rooted at baseDir.
func NewFileReader(baseDir string) *FileReader {
	return &FileReader{BaseDir: baseDir}
}

// ReadRange reads source[start:end). A missing file reports SourceNotFound;
// any other failure reports SourceReadFailed, so callers can tell the two
// apart.
func (r *FileReader) ReadRange(source string, start, end int) (string, error) {
	if start < 0 {
		start = 0
	}
	if end <= start {
		return "", errors.New(errors.InvalidRange,
			fmt.Sprintf("range [%d, %d) of %s", start, end, source), nil)
	}

	path := source
	if !filepath.IsAbs(path) && r.BaseDir != "" {
		path = filepath.Join(r.BaseDir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New(errors.SourceNotFound, path, err)
		}
		return "", errors.New(errors.SourceReadFailed, path, err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(start), io.SeekStart); err != nil {
		return "", errors.New(errors.SourceReadFailed, path, err)
	}

	buf := make([]byte, end-start)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", errors.New(errors.SourceReadFailed, path, err)
	}
	return string(buf[:n]), nil
}
