package infrastructure

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Francouer/proto-watch/internal/domain"
)

type FileRepositoryImpl struct {
	logger domain.Logger
}

// NewFileRepository creates a new file repository
func NewFileRepository(logger domain.Logger) domain.FileRepository {
	return &FileRepositoryImpl{
		logger: logger,
	}
}

func (f *FileRepositoryImpl) CreateDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}

func (f *FileRepositoryImpl) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListFiles walks root recursively and returns every file whose extension
// matches. A missing root yields an empty list.
func (f *FileRepositoryImpl) ListFiles(root string, extension string) ([]domain.SchemaFile, error) {
	files := []domain.SchemaFile{}

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		f.logger.Debug("Source root %s does not exist, nothing to discover", root)
		return files, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return files, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if filepath.Ext(d.Name()) != extension {
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		files = append(files, domain.NewSchemaFile(abs))
		return nil
	})

	return files, err
}
