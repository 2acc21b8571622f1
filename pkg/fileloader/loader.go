package fileloader

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pechorka/lostfound/pkg/contenttype"
	"github.com/pechorka/lostfound/pkg/sizeconverter"
)

const defaultMaxFileSize = 20 * 1024 * 1024 // 20 MB

// File is a local file read into memory, ready to be attached to a
// multipart upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Loader struct {
	maxFileSize int64 // in bytes
	maxSizeErr  error
}

type Config struct {
	MaxFileSize int64
}

func NewLoader(cfg Config) *Loader {
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	return &Loader{
		maxFileSize: cfg.MaxFileSize,
		maxSizeErr:  errors.New("file is too big, max size is " + sizeconverter.HumanReadableSizeInMB(cfg.MaxFileSize)),
	}
}

// LoadImage reads an image from disk and detects its content type.
// Non-image files are rejected before anything is sent to the backend.
func (l *Loader) LoadImage(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat file")
	}
	if info.Size() > l.maxFileSize {
		return nil, l.maxSizeErr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	ct := contenttype.Detect(data)
	if !contenttype.IsImage(ct) {
		return nil, errors.Errorf("%s is not an image (detected %s)", filepath.Base(path), ct)
	}
	return &File{
		Name:        filepath.Base(path),
		ContentType: ct,
		Data:        data,
	}, nil
}
